package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "scheduled"
	AppointmentStatusWaiting    AppointmentStatus = "waiting"
	AppointmentStatusCalled     AppointmentStatus = "called"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
	AppointmentStatusNoShow     AppointmentStatus = "no_show"
)

// IsActive reports whether the status counts against slot and same-day
// booking limits. Cancelled and no-show appointments free their slot.
func (s AppointmentStatus) IsActive() bool {
	return s != AppointmentStatusCancelled && s != AppointmentStatusNoShow
}

// IsTerminal reports whether no further transitions are allowed.
func (s AppointmentStatus) IsTerminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled || s == AppointmentStatusNoShow
}

type AppointmentType string

const (
	AppointmentTypeInPerson AppointmentType = "in_person"
	AppointmentTypeVideo    AppointmentType = "video"
)

type Appointment struct {
	ID                   uuid.UUID         `db:"id" json:"id"`
	PatientID            uuid.UUID         `db:"patient_id" json:"patient_id"`
	ProviderID           uuid.UUID         `db:"provider_id" json:"provider_id"`
	ClinicID             uuid.UUID         `db:"clinic_id" json:"clinic_id"`
	Date                 time.Time         `db:"scheduled_date" json:"scheduled_date"`
	Time                 string            `db:"scheduled_time" json:"scheduled_time"`
	Type                 AppointmentType   `db:"appointment_type" json:"appointment_type"`
	Status               AppointmentStatus `db:"status" json:"status"`
	QueueNumber          int               `db:"queue_number" json:"queue_number"`
	EstimatedWaitMinutes int               `db:"estimated_wait_minutes" json:"estimated_wait_minutes"`
	IsEmergency          bool              `db:"is_emergency" json:"is_emergency"`
	ConsultationNotes    *string           `db:"consultation_notes" json:"consultation_notes,omitempty"`
	Diagnosis            *string           `db:"diagnosis" json:"diagnosis,omitempty"`
	Prescriptions        json.RawMessage   `db:"prescriptions" json:"prescriptions,omitempty"`
	FollowUpDate         *time.Time        `db:"follow_up_date" json:"follow_up_date,omitempty"`
	ActualStartTime      *time.Time        `db:"actual_start_time" json:"actual_start_time,omitempty"`
	ActualEndTime        *time.Time        `db:"actual_end_time" json:"actual_end_time,omitempty"`
	CancellationReason   *string           `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledBy          *uuid.UUID        `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CreatedAt            time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time         `db:"updated_at" json:"updated_at"`
}

// DateTime combines the scheduled date and HH:MM time into one instant.
func (a *Appointment) DateTime() time.Time {
	t, err := time.Parse("15:04", a.Time)
	if err != nil {
		return a.Date
	}
	return time.Date(a.Date.Year(), a.Date.Month(), a.Date.Day(), t.Hour(), t.Minute(), 0, 0, a.Date.Location())
}

type CreateAppointmentRequest struct {
	ProviderID  string `json:"provider_id" validate:"required,uuid"`
	PatientID   string `json:"patient_id" validate:"required,uuid"`
	Date        string `json:"scheduled_date" validate:"required,datetime=2006-01-02"`
	Time        string `json:"scheduled_time" validate:"required,datetime=15:04"`
	Type        string `json:"appointment_type" validate:"required,oneof=in_person video"`
	IsEmergency bool   `json:"is_emergency"`
}

type RescheduleAppointmentRequest struct {
	NewDate string `json:"new_date" validate:"required,datetime=2006-01-02"`
	NewTime string `json:"new_time" validate:"required,datetime=15:04"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// ConsultationData carries the outcome recorded when a consultation completes.
type ConsultationData struct {
	Notes         *string         `json:"consultation_notes"`
	Diagnosis     *string         `json:"diagnosis"`
	Prescriptions json.RawMessage `json:"prescriptions"`
	FollowUpDate  *time.Time      `json:"follow_up_date"`
}

type AppointmentFilters struct {
	ProviderID uuid.UUID
	PatientID  uuid.UUID
	Status     AppointmentStatus
	StartDate  time.Time
	EndDate    time.Time
}
