package model

import (
	"time"

	"github.com/google/uuid"
)

// ProviderSchedule is one weekly recurring availability entry. At most one
// active entry exists per provider per weekday.
type ProviderSchedule struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	ProviderID          uuid.UUID `db:"provider_id" json:"provider_id"`
	DayOfWeek           int       `db:"day_of_week" json:"day_of_week"`
	StartTime           string    `db:"start_time" json:"start_time"`
	EndTime             string    `db:"end_time" json:"end_time"`
	BreakStartTime      *string   `db:"break_start_time" json:"break_start_time,omitempty"`
	BreakEndTime        *string   `db:"break_end_time" json:"break_end_time,omitempty"`
	SlotDurationMinutes int       `db:"slot_duration_minutes" json:"slot_duration_minutes"`
	IsActive            bool      `db:"is_active" json:"is_active"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// BlockedDate removes an entire day from a provider's availability.
type BlockedDate struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ProviderID uuid.UUID `db:"provider_id" json:"provider_id"`
	Date       time.Time `db:"blocked_date" json:"blocked_date"`
	Reason     *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type UpsertScheduleRequest struct {
	DayOfWeek           int     `json:"day_of_week" validate:"min=0,max=6"`
	StartTime           string  `json:"start_time" validate:"required,datetime=15:04"`
	EndTime             string  `json:"end_time" validate:"required,datetime=15:04"`
	BreakStartTime      *string `json:"break_start_time" validate:"omitempty,datetime=15:04"`
	BreakEndTime        *string `json:"break_end_time" validate:"omitempty,datetime=15:04"`
	SlotDurationMinutes int     `json:"slot_duration_minutes" validate:"required,min=5,max=120"`
	IsActive            bool    `json:"is_active"`
}

type BlockDateRequest struct {
	Date   string  `json:"date" validate:"required,datetime=2006-01-02"`
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}
