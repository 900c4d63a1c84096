package model

import "time"

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// Appointment is the read-only projection of an appointment record that the
// call coordinator needs: the two participants and whether the appointment
// is still open. The appointment store owns the full record.
type Appointment struct {
	ID         string            `db:"id" json:"id"`
	ProviderID string            `db:"provider_id" json:"providerId"`
	DoctorID   string            `db:"doctor_id" json:"doctorId"`
	Status     AppointmentStatus `db:"status" json:"status"`
	StartTime  time.Time         `db:"start_time" json:"startTime"`
}

// Callable reports whether the appointment may still host calls.
func (a *Appointment) Callable() bool {
	return a.Status != AppointmentStatusCancelled && a.Status != AppointmentStatusCompleted
}

// ParticipantOf returns the counterpart of userID on this appointment, or
// empty when userID is neither the provider nor the doctor.
func (a *Appointment) ParticipantOf(userID string) string {
	switch userID {
	case a.ProviderID:
		return a.DoctorID
	case a.DoctorID:
		return a.ProviderID
	}
	return ""
}
