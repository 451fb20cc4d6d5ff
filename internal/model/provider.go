package model

import (
	"time"

	"github.com/google/uuid"
)

// Provider is a clinician with a recurring weekly schedule. UserActive is
// read from the joined account record; identity itself is managed outside
// this service.
type Provider struct {
	ID                       uuid.UUID `db:"id" json:"id"`
	UserID                   uuid.UUID `db:"user_id" json:"user_id"`
	ClinicID                 uuid.UUID `db:"clinic_id" json:"clinic_id"`
	Specialization           string    `db:"specialization" json:"specialization"`
	SlotDurationMinutes      int       `db:"slot_duration_minutes" json:"slot_duration_minutes"`
	IsAcceptingAppointments  bool      `db:"is_accepting_appointments" json:"is_accepting_appointments"`
	VideoConsultationEnabled bool      `db:"video_consultation_enabled" json:"video_consultation_enabled"`
	UserActive               bool      `db:"user_active" json:"user_active"`
	CreatedAt                time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time `db:"updated_at" json:"updated_at"`
}

type Patient struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	ClinicID  uuid.UUID `db:"clinic_id" json:"clinic_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
