package patients

import (
	"time"

	"github.com/google/uuid"
)

// Patient statuses. A patient starts as a LEAD on first contact and becomes
// AGENDADO once a booking tool call completes.
const (
	StatusLead   = "LEAD"
	StatusBooked = "AGENDADO"
)

// Patient is a phone number scoped to one clinic.
type Patient struct {
	ID          uuid.UUID
	ClinicID    uuid.UUID
	PhoneNumber string
	Name        *string
	Status      string
	CreatedAt   time.Time
}
