package event

import (
	"fmt"

	"github.com/google/uuid"
)

// Topics emitted by the core. Delivery transport lives outside this service.
const (
	TopicAppointmentCreated       = "appointment:created"
	TopicAppointmentCancelled     = "appointment:cancelled"
	TopicAppointmentRescheduled   = "appointment:rescheduled"
	TopicAppointmentStatusChanged = "appointment:status_changed"
	TopicAppointmentCompleted     = "appointment:completed"
	TopicQueueCheckedIn           = "queue:checked_in"
	TopicQueuePatientCalled       = "queue:patient_called"
	TopicQueueYourTurn            = "queue:your_turn"
	TopicQueueUpdated             = "queue:updated"
	TopicQueueWaitTimeUpdated     = "queue:wait_time_updated"
	TopicQueueReordered           = "queue:reordered"
)

// PatientChannel scopes a topic to one patient's subscribers.
func PatientChannel(patientID uuid.UUID) string {
	return fmt.Sprintf("patient:%s", patientID)
}

// ClinicChannel scopes a topic to a clinic's staff subscribers.
func ClinicChannel(clinicID uuid.UUID) string {
	return fmt.Sprintf("clinic:%s", clinicID)
}
