package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Conversation roles as persisted.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one persisted turn. Rows are append-only; persistence is the
// source of truth for "this event was already handled".
type Message struct {
	ID         uuid.UUID
	InstanceID uuid.UUID
	Phone      string
	Role       string
	Content    string
	MediaType  *string
	MediaURL   *string
	CreatedAt  time.Time
}

// Store defines message persistence as seen by the webhook pipeline.
type Store interface {
	Insert(ctx context.Context, msg Message) error
	RecentHistory(ctx context.Context, instanceID uuid.UUID, phone string, limit int) ([]Message, error)
	HasRecentDuplicate(ctx context.Context, instanceID uuid.UUID, phone, content string, window time.Duration) (bool, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists messages in the relational database.
type PostgresStore struct {
	pool querier
}

// NewPostgresStore initializes a store backed by pgxpool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("messages: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

func newStoreWithQuerier(q querier) *PostgresStore {
	if q == nil {
		panic("messages: querier required")
	}
	return &PostgresStore{pool: q}
}

var _ Store = (*PostgresStore)(nil)

// Insert appends one turn.
func (s *PostgresStore) Insert(ctx context.Context, msg Message) error {
	id := msg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	query := `
		INSERT INTO messages (id, instance_id, phone_number, role, content, media_type, media_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := s.pool.Exec(ctx, query,
		id, msg.InstanceID, msg.Phone, msg.Role, msg.Content, msg.MediaType, msg.MediaURL,
	); err != nil {
		return fmt.Errorf("messages: insert failed: %w", err)
	}
	return nil
}

// RecentHistory returns up to limit turns for (instance, phone) in
// chronological order. The query reads most-recent-first so the limit keeps
// the newest turns, then the slice is reversed.
func (s *PostgresStore) RecentHistory(ctx context.Context, instanceID uuid.UUID, phone string, limit int) ([]Message, error) {
	query := `
		SELECT id, instance_id, phone_number, role, content, media_type, media_url, created_at
		FROM messages
		WHERE instance_id = $1 AND phone_number = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := s.pool.Query(ctx, query, instanceID, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("messages: history query failed: %w", err)
	}
	defer rows.Close()

	var history []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID, &m.InstanceID, &m.Phone, &m.Role, &m.Content,
			&m.MediaType, &m.MediaURL, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("messages: history scan failed: %w", err)
		}
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messages: history rows failed: %w", err)
	}

	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

// HasRecentDuplicate reports whether the same user text already arrived for
// (instance, phone) inside the trailing window. The gateway's short ack
// timeout causes at-least-once delivery; a match means this event is a retry.
func (s *PostgresStore) HasRecentDuplicate(ctx context.Context, instanceID uuid.UUID, phone, content string, window time.Duration) (bool, error) {
	query := `
		SELECT 1 FROM messages
		WHERE instance_id = $1 AND phone_number = $2 AND role = $3
		  AND lower(content) = lower($4)
		  AND created_at >= $5
		LIMIT 1
	`
	cutoff := time.Now().Add(-window)
	var one int
	if err := s.pool.QueryRow(ctx, query,
		instanceID, phone, RoleUser, strings.TrimSpace(content), cutoff,
	).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("messages: duplicate check failed: %w", err)
	}
	return true, nil
}
