package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "Pending"
	AppointmentConfirmed AppointmentStatus = "Confirmed"
	AppointmentCompleted AppointmentStatus = "Completed"
	AppointmentCancelled AppointmentStatus = "Cancelled"
)

// Active reports whether an appointment in this status holds its slot.
func (s AppointmentStatus) Active() bool {
	return s == AppointmentPending || s == AppointmentConfirmed
}

func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentCompleted || s == AppointmentCancelled
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentPending, AppointmentConfirmed, AppointmentCompleted, AppointmentCancelled:
		return true
	}
	return false
}

// CanTransition encodes Pending -> Confirmed -> Completed plus cancellation
// from either active state.
func (s AppointmentStatus) CanTransition(to AppointmentStatus) bool {
	switch s {
	case AppointmentPending:
		return to == AppointmentConfirmed || to == AppointmentCancelled
	case AppointmentConfirmed:
		return to == AppointmentCompleted || to == AppointmentCancelled
	default:
		return false
	}
}

// ParseStatus accepts any letter case ("pending", "PENDING").
func ParseStatus(s string) (AppointmentStatus, error) {
	s = strings.TrimSpace(s)
	for _, st := range []AppointmentStatus{AppointmentPending, AppointmentConfirmed, AppointmentCompleted, AppointmentCancelled} {
		if strings.EqualFold(string(st), s) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

type Appointment struct {
	ID           int64             `json:"appointment_id"`
	StudentRef   string            `json:"student_ref"`
	TherapistRef string            `json:"therapist_ref"`
	Date         string            `json:"appointment_date"`
	StartTime    string            `json:"start_time"`
	EndTime      string            `json:"end_time"`
	Status       AppointmentStatus `json:"status"`
	Reason       string            `json:"reason,omitempty"`
	CancelReason string            `json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time        `json:"cancelled_at,omitempty"`
	SessionNote  string            `json:"session_note,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// AppointmentUpdate carries the fields a status transition may change.
// Nil fields are left untouched.
type AppointmentUpdate struct {
	Status       *AppointmentStatus
	CancelReason *string
	CancelledAt  *time.Time
	SessionNote  *string
}

func (u AppointmentUpdate) Apply(a *Appointment) {
	if u.Status != nil {
		a.Status = *u.Status
	}
	if u.CancelReason != nil {
		a.CancelReason = *u.CancelReason
	}
	if u.CancelledAt != nil {
		at := *u.CancelledAt
		a.CancelledAt = &at
	}
	if u.SessionNote != nil {
		a.SessionNote = *u.SessionNote
	}
}

type AppointmentFilter struct {
	Status       *AppointmentStatus
	TherapistRef *string
	DateFrom     *string
	DateTo       *string
}

func (f AppointmentFilter) Match(a Appointment) bool {
	if f.Status != nil && a.Status != *f.Status {
		return false
	}
	if f.TherapistRef != nil && a.TherapistRef != *f.TherapistRef {
		return false
	}
	if f.DateFrom != nil && a.Date < *f.DateFrom {
		return false
	}
	if f.DateTo != nil && a.Date > *f.DateTo {
		return false
	}
	return true
}

type Slot struct {
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	IsAvailable   bool   `json:"is_available"`
	AppointmentID *int64 `json:"appointment_id,omitempty"`
}

// Held reports whether the slot is occupied by an appointment.
func (s Slot) Held() bool {
	return !s.IsAvailable && s.AppointmentID != nil
}

type SlotTime struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type DaySchedule struct {
	TherapistRef string `json:"therapist_ref"`
	Date         string `json:"date"`
	Slots        []Slot `json:"time_slots"`
}

type WorkingHours struct {
	Start       string
	End         string
	SlotMinutes int
}

// Slots expands the template into consecutive slots; a trailing remainder
// shorter than SlotMinutes is dropped.
func (w WorkingHours) Slots() ([]Slot, error) {
	start, err := time.Parse(ClockLayout, w.Start)
	if err != nil {
		return nil, fmt.Errorf("invalid working hours start %q: %w", w.Start, err)
	}
	end, err := time.Parse(ClockLayout, w.End)
	if err != nil {
		return nil, fmt.Errorf("invalid working hours end %q: %w", w.End, err)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("working hours end %s is not after start %s", w.End, w.Start)
	}
	if w.SlotMinutes <= 0 {
		return nil, fmt.Errorf("invalid slot duration: %d", w.SlotMinutes)
	}
	dur := time.Duration(w.SlotMinutes) * time.Minute

	var slots []Slot
	for cur := start; !cur.Add(dur).After(end); cur = cur.Add(dur) {
		slots = append(slots, Slot{
			StartTime:   cur.Format(ClockLayout),
			EndTime:     cur.Add(dur).Format(ClockLayout),
			IsAvailable: true,
		})
	}
	return slots, nil
}

type DateRange struct {
	From string
	To   string
}

// Dates lists every calendar date in the inclusive range.
func (r DateRange) Dates() ([]string, error) {
	from, err := ParseDate(r.From)
	if err != nil {
		return nil, err
	}
	to, err := ParseDate(r.To)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("date range end %s is before start %s", r.To, r.From)
	}

	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates, nil
}

type Therapist struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	Gender         string `json:"gender,omitempty" yaml:"gender"`
	Specialization string `json:"specialization,omitempty" yaml:"specialization"`
	ProfileImage   string `json:"profile_image,omitempty" yaml:"profile_image"`
	Active         bool   `json:"active" yaml:"active"`
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// NormalizeClock accepts "15:04" and "15:04:05" and returns "15:04".
func NormalizeClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{ClockLayout, "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ClockLayout), nil
		}
	}
	return "", fmt.Errorf("invalid time of day %q", s)
}
