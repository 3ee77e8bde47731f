package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StatusConfirmed is the only status written by the webhook pipeline; the
// dashboard owns later transitions.
const StatusConfirmed = "CONFIRMED"

// Appointment is a scheduling outcome. A row exists only when the paired
// calendar event insertion also succeeded.
type Appointment struct {
	ID          uuid.UUID
	ClinicID    uuid.UUID
	PatientID   uuid.UUID
	ScheduledAt time.Time
	Status      string
}

// Repository persists appointments.
type Repository interface {
	CreateConfirmed(ctx context.Context, clinicID, patientID uuid.UUID, scheduledAt time.Time) (*Appointment, error)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRepository stores appointments in the relational database.
type PostgresRepository struct {
	pool execer
}

// NewPostgresRepository creates a repository backed by pgx pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newRepositoryWithExec(e execer) *PostgresRepository {
	if e == nil {
		panic("bookings: exec required")
	}
	return &PostgresRepository{pool: e}
}

var _ Repository = (*PostgresRepository)(nil)

// CreateConfirmed inserts a confirmed appointment row.
func (r *PostgresRepository) CreateConfirmed(ctx context.Context, clinicID, patientID uuid.UUID, scheduledAt time.Time) (*Appointment, error) {
	appt := &Appointment{
		ID:          uuid.New(),
		ClinicID:    clinicID,
		PatientID:   patientID,
		ScheduledAt: scheduledAt,
		Status:      StatusConfirmed,
	}
	query := `
		INSERT INTO appointments (id, clinic_id, patient_id, scheduled_at, status)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.pool.Exec(ctx, query,
		appt.ID, appt.ClinicID, appt.PatientID, appt.ScheduledAt, appt.Status,
	); err != nil {
		return nil, fmt.Errorf("bookings: insert confirmed: %w", err)
	}
	return appt, nil
}
