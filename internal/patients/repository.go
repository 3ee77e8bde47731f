package patients

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines patient storage as seen by the webhook pipeline.
type Repository interface {
	GetOrCreateByPhone(ctx context.Context, clinicID uuid.UUID, phone string) (*Patient, error)
	MarkBooked(ctx context.Context, patientID uuid.UUID, name string) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores patients in the relational database.
type PostgresRepository struct {
	pool querier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("patients: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newRepositoryWithQuerier(q querier) *PostgresRepository {
	if q == nil {
		panic("patients: querier required")
	}
	return &PostgresRepository{pool: q}
}

var _ Repository = (*PostgresRepository)(nil)

// GetOrCreateByPhone returns the patient for (clinic, phone), inserting a new
// LEAD when none exists. Two first contacts racing on the same number both
// succeed: the insert is ON CONFLICT DO NOTHING and the loser re-selects.
func (r *PostgresRepository) GetOrCreateByPhone(ctx context.Context, clinicID uuid.UUID, phone string) (*Patient, error) {
	if p, err := r.getByPhone(ctx, clinicID, phone); err == nil {
		return p, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("patients: lookup failed: %w", err)
	}

	insert := `
		INSERT INTO patients (id, clinic_id, phone_number, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (clinic_id, phone_number) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, insert, uuid.New(), clinicID, phone, StatusLead); err != nil {
		return nil, fmt.Errorf("patients: insert lead failed: %w", err)
	}

	p, err := r.getByPhone(ctx, clinicID, phone)
	if err != nil {
		return nil, fmt.Errorf("patients: reload after insert failed: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) getByPhone(ctx context.Context, clinicID uuid.UUID, phone string) (*Patient, error) {
	query := `
		SELECT id, clinic_id, phone_number, name, status, created_at
		FROM patients
		WHERE clinic_id = $1 AND phone_number = $2
	`
	var p Patient
	if err := r.pool.QueryRow(ctx, query, clinicID, phone).Scan(
		&p.ID, &p.ClinicID, &p.PhoneNumber, &p.Name, &p.Status, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkBooked records the collected name and flips the status after a
// successful booking.
func (r *PostgresRepository) MarkBooked(ctx context.Context, patientID uuid.UUID, name string) error {
	query := `
		UPDATE patients SET name = $1, status = $2, updated_at = now()
		WHERE id = $3
	`
	if _, err := r.pool.Exec(ctx, query, name, StatusBooked, patientID); err != nil {
		return fmt.Errorf("patients: mark booked failed: %w", err)
	}
	return nil
}
