package api

import "mindcare-service/internal/models"

type AppointmentCreateRequest struct {
	StudentRef      string `json:"student_ref"`
	TherapistRef    string `json:"therapist_ref"`
	AppointmentDate string `json:"appointment_date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	Reason          string `json:"reason,omitempty"`
}

// AppointmentCancelRequest carries the mandatory reason. When StudentRef is
// set the cancellation is limited to that student's own appointments.
type AppointmentCancelRequest struct {
	Reason     string `json:"reason"`
	StudentRef string `json:"student_ref,omitempty"`
}

type AppointmentCompleteRequest struct {
	SessionNote *string `json:"session_note,omitempty"`
}

type DayScheduleRequest struct {
	TimeSlots []models.SlotTime `json:"time_slots"`
}

type SlotGenerateRequest struct {
	TherapistRef string `json:"therapist_ref"`
	DateFrom     string `json:"date_from"`
	DateTo       string `json:"date_to"`
}

type SlotGenerateResponse struct {
	TherapistRef string `json:"therapist_ref"`
	DaysCreated  int    `json:"days_created"`
}

type AvailabilityResponse struct {
	TherapistRef string            `json:"therapist_ref"`
	Date         string            `json:"date"`
	Slots        []models.SlotTime `json:"available_slots"`
}
