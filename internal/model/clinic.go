package model

import (
	"time"

	"github.com/google/uuid"
)

// ClinicSettings carries the per-clinic policy knobs this service consumes.
type ClinicSettings struct {
	ClinicID                uuid.UUID `db:"clinic_id" json:"clinic_id"`
	CancellationWindowHours int       `db:"cancellation_window_hours" json:"cancellation_window_hours"`
	NoShowGraceMinutes      int       `db:"no_show_grace_minutes" json:"no_show_grace_minutes"`
	UpdatedAt               time.Time `db:"updated_at" json:"updated_at"`
}

const DefaultCancellationWindowHours = 24

// ActorRole is the role of the caller as established by the upstream
// identity layer. Authorization policy itself is not implemented here.
type ActorRole string

const (
	RolePatient      ActorRole = "patient"
	RoleProvider     ActorRole = "provider"
	RoleReceptionist ActorRole = "receptionist"
	RoleAdmin        ActorRole = "admin"
)

type Actor struct {
	UserID   uuid.UUID `json:"user_id"`
	Role     ActorRole `json:"role"`
	ClinicID uuid.UUID `json:"clinic_id"`
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleReceptionist
}
