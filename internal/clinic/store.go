package clinic

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInstanceNotFound indicates the gateway instance id has no row in our
// database. Distinct from an auth failure: there is no clinic to reply with.
var ErrInstanceNotFound = errors.New("clinic: instance not found")

// Resolver turns a gateway-side instance id into a full WebhookContext.
type Resolver interface {
	ResolveWebhookContext(ctx context.Context, zapiInstanceID string) (*WebhookContext, error)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store resolves webhook contexts from PostgreSQL.
type Store struct {
	pool rowQuerier
}

// NewStore initializes a store backed by pgxpool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("clinic: pgx pool required")
	}
	return &Store{pool: pool}
}

func newStoreWithQuerier(q rowQuerier) *Store {
	if q == nil {
		panic("clinic: querier required")
	}
	return &Store{pool: q}
}

// ResolveWebhookContext fetches instance tokens, clinic profile, and calendar
// credentials in one query keyed by the Z-API instance id.
func (s *Store) ResolveWebhookContext(ctx context.Context, zapiInstanceID string) (*WebhookContext, error) {
	query := `
		SELECT i.id, i.zapi_token, COALESCE(i.client_token, ''),
		       c.id, c.name, c.specialties, c.consultation_fee, c.rules, c.assistant_name,
		       COALESCE(c.google_access_token, ''),
		       COALESCE(c.google_refresh_token, ''),
		       COALESCE(c.google_calendar_id, '')
		FROM instances i
		JOIN clinics c ON c.id = i.clinic_id
		WHERE i.zapi_instance_id = $1
	`
	var wc WebhookContext
	if err := s.pool.QueryRow(ctx, query, zapiInstanceID).Scan(
		&wc.InstanceID,
		&wc.ZAPIToken,
		&wc.ClientToken,
		&wc.ClinicID,
		&wc.ClinicName,
		&wc.Specialties,
		&wc.ConsultationFee,
		&wc.Rules,
		&wc.AssistantName,
		&wc.GoogleAccessToken,
		&wc.GoogleRefreshToken,
		&wc.GoogleCalendarID,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("clinic: resolve webhook context: %w", err)
	}
	return &wc, nil
}
