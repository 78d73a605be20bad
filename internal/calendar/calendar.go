// Package calendar keeps each therapist's per-day slot schedule.
package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"mindcare-service/internal/models"
	"mindcare-service/internal/storage"
	"mindcare-service/pkg/response"
)

type Calendar struct {
	store storage.Store
}

func New(store storage.Store) *Calendar {
	return &Calendar{store: store}
}

func dayKey(therapistRef, date string) string {
	return fmt.Sprintf("availability:%s:%s", therapistRef, date)
}

// GenerateSlots creates a schedule for every date in the range that does not
// already have one. It returns the number of days created.
func (c *Calendar) GenerateSlots(ctx context.Context, therapistRef string, dates models.DateRange, hours models.WorkingHours) (int, error) {
	const op = "calendar.GenerateSlots"

	days, err := dates.Dates()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	template, err := hours.Slots()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	created := 0
	for _, date := range days {
		_, err := c.Day(ctx, therapistRef, date)
		if err == nil {
			continue
		}
		if !errors.Is(err, response.ErrNotFound) {
			return created, fmt.Errorf("%s: %w", op, err)
		}

		slots := make([]models.Slot, len(template))
		copy(slots, template)

		if err := c.save(ctx, models.DaySchedule{
			TherapistRef: therapistRef,
			Date:         date,
			Slots:        slots,
		}); err != nil {
			return created, fmt.Errorf("%s: %w", op, err)
		}
		created++
	}

	return created, nil
}

// Day returns the full schedule, including held slots.
func (c *Calendar) Day(ctx context.Context, therapistRef, date string) (*models.DaySchedule, error) {
	const op = "calendar.Day"

	raw, err := c.store.Get(ctx, dayKey(therapistRef, date))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var day models.DaySchedule
	if err := json.Unmarshal([]byte(raw), &day); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}

	return &day, nil
}

// AvailableSlots lists free slots in chronological order. A missing day
// yields an empty list, not an error.
func (c *Calendar) AvailableSlots(ctx context.Context, therapistRef, date string) ([]models.SlotTime, error) {
	const op = "calendar.AvailableSlots"

	day, err := c.Day(ctx, therapistRef, date)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return []models.SlotTime{}, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	free := make([]models.SlotTime, 0, len(day.Slots))
	for _, s := range day.Slots {
		if s.IsAvailable {
			free = append(free, models.SlotTime{StartTime: s.StartTime, EndTime: s.EndTime})
		}
	}
	sort.Slice(free, func(i, j int) bool { return free[i].StartTime < free[j].StartTime })

	return free, nil
}

// MarkSlot flips one slot. A missing day or slot is reported as ErrNotFound.
func (c *Calendar) MarkSlot(ctx context.Context, therapistRef, date, startTime string, available bool, appointmentID *int64) error {
	const op = "calendar.MarkSlot"

	day, err := c.Day(ctx, therapistRef, date)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	idx := -1
	for i, s := range day.Slots {
		if s.StartTime == startTime {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%s: slot %s: %w", op, startTime, response.ErrNotFound)
	}

	day.Slots[idx].IsAvailable = available
	if available || appointmentID == nil {
		day.Slots[idx].AppointmentID = nil
	} else {
		id := *appointmentID
		day.Slots[idx].AppointmentID = &id
	}

	if err := c.save(ctx, *day); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ReplaceDay overwrites a day's schedule as given.
func (c *Calendar) ReplaceDay(ctx context.Context, day models.DaySchedule) error {
	const op = "calendar.ReplaceDay"

	if err := c.save(ctx, day); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Calendar) save(ctx context.Context, day models.DaySchedule) error {
	sort.SliceStable(day.Slots, func(i, j int) bool { return day.Slots[i].StartTime < day.Slots[j].StartTime })

	raw, err := json.Marshal(day)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	return c.store.Set(ctx, dayKey(day.TherapistRef, day.Date), string(raw))
}
