package model

import (
	"time"

	"github.com/google/uuid"
)

type QueueStatus string

const (
	QueueStatusWaiting        QueueStatus = "waiting"
	QueueStatusCalled         QueueStatus = "called"
	QueueStatusInConsultation QueueStatus = "in_consultation"
	QueueStatusCompleted      QueueStatus = "completed"
)

// QueueEntry tracks a checked-in appointment through the provider's daily
// queue. Entries are created at check-in, not at booking. A closed entry
// (cancelled or no-show appointment) is forced to completed.
type QueueEntry struct {
	ID                  uuid.UUID   `db:"id" json:"id"`
	AppointmentID       uuid.UUID   `db:"appointment_id" json:"appointment_id"`
	PatientID           uuid.UUID   `db:"patient_id" json:"patient_id"`
	ProviderID          uuid.UUID   `db:"provider_id" json:"provider_id"`
	ClinicID            uuid.UUID   `db:"clinic_id" json:"clinic_id"`
	QueuePosition       int         `db:"queue_position" json:"queue_position"`
	Status              QueueStatus `db:"status" json:"status"`
	ArrivalTime         *time.Time  `db:"arrival_time" json:"arrival_time,omitempty"`
	CalledAt            *time.Time  `db:"called_at" json:"called_at,omitempty"`
	ConsultationStartAt *time.Time  `db:"consultation_start_at" json:"consultation_start_at,omitempty"`
	CompletedAt         *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt           time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at" json:"updated_at"`
}

// QueueStats summarizes a provider's queue for the current day.
type QueueStats struct {
	TotalToday     int `db:"total_today" json:"total_today"`
	Waiting        int `db:"waiting" json:"waiting"`
	Called         int `db:"called" json:"called"`
	InConsultation int `db:"in_consultation" json:"in_consultation"`
	Completed      int `db:"completed" json:"completed"`
}

type ReorderQueueRequest struct {
	EntryIDs []string `json:"entry_ids" validate:"required,min=1,dive,uuid"`
}
