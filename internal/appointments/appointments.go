// Package appointments is the appointment table: one record per globally
// unique id, with secondary indexes by student and by therapist.
package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"mindcare-service/internal/models"
	"mindcare-service/internal/storage"
	"mindcare-service/pkg/response"
)

const seqKey = "appointments:seq"

type Store struct {
	store storage.Store
	now   func() time.Time
}

func New(store storage.Store) *Store {
	return &Store{store: store, now: time.Now}
}

func recordKey(id int64) string {
	return "appointment:" + strconv.FormatInt(id, 10)
}

func studentKey(ref string) string {
	return "appointments:student:" + ref
}

func therapistKey(ref string) string {
	return "appointments:therapist:" + ref
}

// NextID reserves a fresh id. Reserved ids are never handed out again, even
// if the record is never inserted.
func (s *Store) NextID(ctx context.Context) (int64, error) {
	const op = "appointments.NextID"

	id, err := s.store.Incr(ctx, seqKey)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// Create reserves an id, stamps CreatedAt and persists the record.
func (s *Store) Create(ctx context.Context, appt models.Appointment) (models.Appointment, error) {
	const op = "appointments.Create"

	id, err := s.NextID(ctx)
	if err != nil {
		return models.Appointment{}, fmt.Errorf("%s: %w", op, err)
	}
	appt.ID = id

	if err := s.Insert(ctx, &appt); err != nil {
		return models.Appointment{}, fmt.Errorf("%s: %w", op, err)
	}

	return appt, nil
}

// Insert persists a record under a previously reserved id and indexes it.
// CreatedAt is set when zero.
func (s *Store) Insert(ctx context.Context, appt *models.Appointment) error {
	const op = "appointments.Insert"

	if appt.ID <= 0 {
		return fmt.Errorf("%s: id must be reserved first", op)
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = s.now().UTC()
	}

	// The record is written last: an id indexed without a record is skipped
	// on read, so a failed insert leaves nothing visible.
	if err := s.appendIndex(ctx, studentKey(appt.StudentRef), appt.ID); err != nil {
		return fmt.Errorf("%s: student index: %w", op, err)
	}
	if err := s.appendIndex(ctx, therapistKey(appt.TherapistRef), appt.ID); err != nil {
		return fmt.Errorf("%s: therapist index: %w", op, err)
	}
	if err := s.put(ctx, *appt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (models.Appointment, error) {
	const op = "appointments.Get"

	raw, err := s.store.Get(ctx, recordKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return models.Appointment{}, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return models.Appointment{}, fmt.Errorf("%s: %w", op, err)
	}

	var appt models.Appointment
	if err := json.Unmarshal([]byte(raw), &appt); err != nil {
		return models.Appointment{}, fmt.Errorf("%s: decode: %w", op, err)
	}

	return appt, nil
}

// FindGlobalByID resolves an appointment and its owning student from the id alone.
func (s *Store) FindGlobalByID(ctx context.Context, id int64) (string, models.Appointment, error) {
	const op = "appointments.FindGlobalByID"

	appt, err := s.Get(ctx, id)
	if err != nil {
		return "", models.Appointment{}, fmt.Errorf("%s: %w", op, err)
	}

	return appt.StudentRef, appt, nil
}

// GetByStudent returns the student's appointments in booking order.
func (s *Store) GetByStudent(ctx context.Context, studentRef string) ([]models.Appointment, error) {
	const op = "appointments.GetByStudent"

	appts, err := s.loadIndex(ctx, studentKey(studentRef))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return appts, nil
}

// GetByTherapist returns every student's appointments with the therapist,
// ascending by date and start time.
func (s *Store) GetByTherapist(ctx context.Context, therapistRef string) ([]models.Appointment, error) {
	const op = "appointments.GetByTherapist"

	appts, err := s.loadIndex(ctx, therapistKey(therapistRef))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sort.SliceStable(appts, func(i, j int) bool {
		if appts[i].Date != appts[j].Date {
			return appts[i].Date < appts[j].Date
		}
		return appts[i].StartTime < appts[j].StartTime
	})

	return appts, nil
}

// Update merges the given fields into the student's appointment. It reports
// false when the student has no appointment with that id.
func (s *Store) Update(ctx context.Context, studentRef string, id int64, upd models.AppointmentUpdate) (bool, error) {
	const op = "appointments.Update"

	appt, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if appt.StudentRef != studentRef {
		return false, nil
	}

	upd.Apply(&appt)

	if err := s.put(ctx, appt); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

func (s *Store) put(ctx context.Context, appt models.Appointment) error {
	raw, err := json.Marshal(appt)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	return s.store.Set(ctx, recordKey(appt.ID), string(raw))
}

func (s *Store) readIndex(ctx context.Context, key string) ([]int64, error) {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode index %s: %w", key, err)
	}

	return ids, nil
}

func (s *Store) appendIndex(ctx context.Context, key string, id int64) error {
	ids, err := s.readIndex(ctx, key)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}

	raw, err := json.Marshal(append(ids, id))
	if err != nil {
		return fmt.Errorf("encode index %s: %w", key, err)
	}

	return s.store.Set(ctx, key, string(raw))
}

func (s *Store) loadIndex(ctx context.Context, key string) ([]models.Appointment, error) {
	ids, err := s.readIndex(ctx, key)
	if err != nil {
		return nil, err
	}

	appts := make([]models.Appointment, 0, len(ids))
	for _, id := range ids {
		appt, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, response.ErrNotFound) {
				continue
			}
			return nil, err
		}
		appts = append(appts, appt)
	}

	return appts, nil
}
