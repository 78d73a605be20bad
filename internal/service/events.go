package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mindcare-service/internal/models"
)

type EventKind string

const (
	EventBooked          EventKind = "appointment.booked"
	EventConfirmed       EventKind = "appointment.confirmed"
	EventCancelled       EventKind = "appointment.cancelled"
	EventCompleted       EventKind = "appointment.completed"
	EventScheduleChanged EventKind = "schedule.changed"
)

// Event describes a committed mutation. Appointment is nil for schedule
// changes; Date is empty when a change spans several days.
type Event struct {
	Kind         EventKind           `json:"kind"`
	TherapistRef string              `json:"therapist_ref"`
	StudentRef   string              `json:"student_ref,omitempty"`
	Date         string              `json:"date,omitempty"`
	Appointment  *models.Appointment `json:"appointment,omitempty"`
	At           time.Time           `json:"at"`
}

// Listener is notified after a mutation has been persisted and its locks
// released. Listeners run synchronously on the caller's goroutine.
type Listener func(ctx context.Context, ev Event)

func (s *Service) OnChange(l Listener) {
	if l == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, l)
}

func (s *Service) emit(ctx context.Context, ev Event) {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, l := range listeners {
		s.notify(ctx, l, ev)
	}
}

func (s *Service) notify(ctx context.Context, l Listener, ev Event) {
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("change listener panicked",
				slog.String("kind", string(ev.Kind)),
				slog.String("panic", fmt.Sprint(p)),
			)
		}
	}()

	l(ctx, ev)
}

func newAppointmentEvent(kind EventKind, appt models.Appointment, at time.Time) Event {
	a := appt
	return Event{
		Kind:         kind,
		TherapistRef: appt.TherapistRef,
		StudentRef:   appt.StudentRef,
		Date:         appt.Date,
		Appointment:  &a,
		At:           at.UTC(),
	}
}
