package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"mindcare-service/internal/models"
	"mindcare-service/pkg/response"
)

// Slots

func (s *Service) AvailableSlots(ctx context.Context, therapistRef, date string) ([]models.SlotTime, error) {
	const op = "service.AvailableSlots"

	d, err := models.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, response.ErrBadRequest)
	}

	slots, err := s.calendar.AvailableSlots(ctx, therapistRef, d.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return slots, nil
}

// Day returns the whole schedule for one therapist and date, held slots included.
func (s *Service) Day(ctx context.Context, therapistRef, date string) (*models.DaySchedule, error) {
	const op = "service.Day"

	d, err := models.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, response.ErrBadRequest)
	}

	day, err := s.calendar.Day(ctx, therapistRef, d.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return day, nil
}

// GenerateSlots fills the range from the configured working hours. Days that
// already have a schedule are kept as they are.
func (s *Service) GenerateSlots(ctx context.Context, therapistRef string, dates models.DateRange) (created int, err error) {
	const op = "service.GenerateSlots"

	ctx, span := s.start(ctx, op, attribute.String("mindcare.therapist_ref", therapistRef))
	defer s.finish(span, op, time.Now(), &err)

	if strings.TrimSpace(therapistRef) == "" {
		return 0, fmt.Errorf("%s: therapist_ref is required: %w", op, response.ErrBadRequest)
	}
	if _, err := dates.Dates(); err != nil {
		return 0, fmt.Errorf("%s: %v: %w", op, err, response.ErrBadRequest)
	}
	if _, err := s.directory.Get(ctx, therapistRef); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	release, err := s.acquire(ctx, therapistLock(therapistRef))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	created, err = s.calendar.GenerateSlots(ctx, therapistRef, dates, s.hours)
	release()
	if err != nil {
		return created, fmt.Errorf("%s: %w", op, err)
	}

	if created > 0 {
		s.log.Debug("slots generated",
			slog.String("therapist_ref", therapistRef),
			slog.String("from", dates.From),
			slog.String("to", dates.To),
			slog.Int("days", created),
		)
		s.emit(ctx, Event{Kind: EventScheduleChanged, TherapistRef: therapistRef, At: s.now().UTC()})
	}

	return created, nil
}

// GenerateWindow generates `days` days starting at from's calendar date for
// every therapist in the directory.
func (s *Service) GenerateWindow(ctx context.Context, from time.Time, days int) (int, error) {
	const op = "service.GenerateWindow"

	if days <= 0 {
		return 0, fmt.Errorf("%s: window must be at least one day: %w", op, response.ErrBadRequest)
	}

	therapists, err := s.directory.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	start := from.In(s.loc)
	dates := models.DateRange{
		From: start.Format(models.DateLayout),
		To:   start.AddDate(0, 0, days-1).Format(models.DateLayout),
	}

	total := 0
	for _, t := range therapists {
		n, err := s.GenerateSlots(ctx, t.ID, dates)
		total += n
		if err != nil {
			return total, fmt.Errorf("%s: therapist %s: %w", op, t.ID, err)
		}
	}

	s.log.Info("availability window generated",
		slog.String("from", dates.From),
		slog.String("to", dates.To),
		slog.Int("therapists", len(therapists)),
		slog.Int("days_created", total),
	)

	return total, nil
}

// SetDaySchedule replaces the slots a therapist offers on one date. Slots held
// by an active appointment must stay in the list; they keep their hold.
func (s *Service) SetDaySchedule(ctx context.Context, therapistRef, date string, slots []models.SlotTime) (day *models.DaySchedule, err error) {
	const op = "service.SetDaySchedule"

	ctx, span := s.start(ctx, op, attribute.String("mindcare.therapist_ref", therapistRef))
	defer s.finish(span, op, time.Now(), &err)

	d, err := models.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, response.ErrBadRequest)
	}
	date = d.Format(models.DateLayout)

	if _, err := s.directory.Get(ctx, therapistRef); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	next, err := normalizeSlots(slots)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	release, err := s.acquire(ctx, therapistLock(therapistRef))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	day, err = s.replaceDay(ctx, therapistRef, date, next)
	release()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("day schedule replaced",
		slog.String("therapist_ref", therapistRef),
		slog.String("date", date),
		slog.Int("slots", len(day.Slots)),
	)
	s.emit(ctx, Event{Kind: EventScheduleChanged, TherapistRef: therapistRef, Date: date, At: s.now().UTC()})

	return day, nil
}

func (s *Service) replaceDay(ctx context.Context, therapistRef, date string, next []models.Slot) (*models.DaySchedule, error) {
	byStart := make(map[string]int, len(next))
	for i, slot := range next {
		byStart[slot.StartTime] = i
	}

	current, err := s.calendar.Day(ctx, therapistRef, date)
	if err == nil {
		for _, held := range current.Slots {
			if !held.Held() {
				continue
			}
			active, err := s.holderActive(ctx, *held.AppointmentID)
			if err != nil {
				return nil, err
			}
			if !active {
				continue
			}
			i, ok := byStart[held.StartTime]
			if !ok || next[i].EndTime != held.EndTime {
				return nil, fmt.Errorf("slot %s: %w", held.StartTime, response.ErrSlotHeld)
			}
			next[i].IsAvailable = false
			id := *held.AppointmentID
			next[i].AppointmentID = &id
		}
	} else if !isNotFound(err) {
		return nil, err
	}

	day := models.DaySchedule{TherapistRef: therapistRef, Date: date, Slots: next}
	if err := s.calendar.ReplaceDay(ctx, day); err != nil {
		return nil, err
	}

	return s.calendar.Day(ctx, therapistRef, date)
}

// holderActive reports whether the appointment holding a slot still needs it.
// A hold left by a closed or missing appointment is stale.
func (s *Service) holderActive(ctx context.Context, id int64) (bool, error) {
	appt, err := s.appts.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("slot holder %d: %w", id, err)
	}
	return appt.Status.Active(), nil
}

func normalizeSlots(in []models.SlotTime) ([]models.Slot, error) {
	out := make([]models.Slot, 0, len(in))
	seen := make(map[string]bool, len(in))

	for _, st := range in {
		start, err := models.NormalizeClock(st.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, response.ErrBadRequest)
		}
		end, err := models.NormalizeClock(st.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, response.ErrBadRequest)
		}
		if end <= start {
			return nil, fmt.Errorf("slot %s ends before it starts: %w", start, response.ErrBadRequest)
		}
		if seen[start] {
			return nil, fmt.Errorf("duplicate slot %s: %w", start, response.ErrBadRequest)
		}
		seen[start] = true

		out = append(out, models.Slot{StartTime: start, EndTime: end, IsAvailable: true})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	for i := 1; i < len(out); i++ {
		if out[i].StartTime < out[i-1].EndTime {
			return nil, fmt.Errorf("slot %s overlaps %s: %w", out[i].StartTime, out[i-1].StartTime, response.ErrBadRequest)
		}
	}

	return out, nil
}

// Therapists

func (s *Service) ListTherapists(ctx context.Context) ([]models.Therapist, error) {
	const op = "service.ListTherapists"

	therapists, err := s.directory.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return therapists, nil
}
