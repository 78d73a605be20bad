package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mindcare-service/internal/lock"
	"mindcare-service/internal/models"
	"mindcare-service/pkg/response"
	"mindcare-service/pkg/sl"
)

var tracer = otel.Tracer("mindcare.internal.service")

const lockPoll = 25 * time.Millisecond

type SlotCalendar interface {
	GenerateSlots(ctx context.Context, therapistRef string, dates models.DateRange, hours models.WorkingHours) (int, error)
	Day(ctx context.Context, therapistRef, date string) (*models.DaySchedule, error)
	AvailableSlots(ctx context.Context, therapistRef, date string) ([]models.SlotTime, error)
	MarkSlot(ctx context.Context, therapistRef, date, startTime string, available bool, appointmentID *int64) error
	ReplaceDay(ctx context.Context, day models.DaySchedule) error
}

type AppointmentStore interface {
	NextID(ctx context.Context) (int64, error)
	Insert(ctx context.Context, appt *models.Appointment) error
	Get(ctx context.Context, id int64) (models.Appointment, error)
	FindGlobalByID(ctx context.Context, id int64) (string, models.Appointment, error)
	GetByStudent(ctx context.Context, studentRef string) ([]models.Appointment, error)
	GetByTherapist(ctx context.Context, therapistRef string) ([]models.Appointment, error)
	Update(ctx context.Context, studentRef string, id int64, upd models.AppointmentUpdate) (bool, error)
}

type TherapistDirectory interface {
	List(ctx context.Context) ([]models.Therapist, error)
	Get(ctx context.Context, id string) (models.Therapist, error)
}

// OperationObserver receives the outcome of every service operation.
type OperationObserver interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
}

type Options struct {
	Hours    models.WorkingHours
	Location *time.Location
	// LockTTL bounds how long a crashed holder can block a therapist's calendar.
	LockTTL time.Duration
	// LockWait is how long an operation retries a contended lock before ErrLocked.
	LockWait time.Duration
	Logger   *slog.Logger
	Observer OperationObserver
	Now      func() time.Time
}

// Service is the single writer for appointments and slot calendars. Every
// mutation runs under the therapist's lock, so the check-then-mark sequence
// in BookAppointment cannot interleave with another writer.
type Service struct {
	calendar  SlotCalendar
	appts     AppointmentStore
	directory TherapistDirectory
	locker    lock.Locker

	hours    models.WorkingHours
	loc      *time.Location
	lockTTL  time.Duration
	lockWait time.Duration
	log      *slog.Logger
	observer OperationObserver
	now      func() time.Time

	mu        sync.RWMutex
	listeners []Listener
}

func NewService(calendar SlotCalendar, appts AppointmentStore, directory TherapistDirectory, locker lock.Locker, opts Options) *Service {
	if opts.Hours.SlotMinutes == 0 {
		opts.Hours = models.WorkingHours{Start: "09:00", End: "17:00", SlotMinutes: 60}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Second
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		calendar:  calendar,
		appts:     appts,
		directory: directory,
		locker:    locker,
		hours:     opts.Hours,
		loc:       opts.Location,
		lockTTL:   opts.LockTTL,
		lockWait:  opts.LockWait,
		log:       opts.Logger,
		observer:  opts.Observer,
		now:       opts.Now,
	}
}

type BookRequest struct {
	StudentRef   string
	TherapistRef string
	Date         string
	StartTime    string
	EndTime      string
	Reason       string
}

// Bookings

func (s *Service) BookAppointment(ctx context.Context, req BookRequest) (appt models.Appointment, err error) {
	const op = "service.BookAppointment"

	ctx, span := s.start(ctx, op, attribute.String("mindcare.therapist_ref", req.TherapistRef))
	defer s.finish(span, op, time.Now(), &err)

	req, err = normalizeBooking(req)
	if err != nil {
		return models.Appointment{}, fmt.Errorf("%s: %w", op, err)
	}

	release, err := s.acquire(ctx, therapistLock(req.TherapistRef), studentLock(req.StudentRef))
	if err != nil {
		return models.Appointment{}, fmt.Errorf("%s: %w", op, err)
	}

	appt, err = s.book(ctx, req)
	release()
	if err != nil {
		return models.Appointment{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("appointment booked",
		slog.Int64("appointment_id", appt.ID),
		slog.String("student_ref", appt.StudentRef),
		slog.String("therapist_ref", appt.TherapistRef),
		slog.String("date", appt.Date),
		slog.String("start_time", appt.StartTime),
	)
	s.emit(ctx, newAppointmentEvent(EventBooked, appt, s.now()))

	return appt, nil
}

func (s *Service) book(ctx context.Context, req BookRequest) (models.Appointment, error) {
	free, err := s.calendar.AvailableSlots(ctx, req.TherapistRef, req.Date)
	if err != nil {
		return models.Appointment{}, err
	}

	wanted := models.SlotTime{StartTime: req.StartTime, EndTime: req.EndTime}
	found := false
	for _, slot := range free {
		if slot == wanted {
			found = true
			break
		}
	}
	if !found {
		return models.Appointment{}, response.ErrSlotUnavailable
	}

	id, err := s.appts.NextID(ctx)
	if err != nil {
		return models.Appointment{}, err
	}

	// The slot is claimed before the record exists, so no reader ever sees an
	// active appointment whose slot still looks free.
	if err := s.calendar.MarkSlot(ctx, req.TherapistRef, req.Date, req.StartTime, false, &id); err != nil {
		return models.Appointment{}, fmt.Errorf("mark slot: %w", err)
	}

	appt := models.Appointment{
		ID:           id,
		StudentRef:   req.StudentRef,
		TherapistRef: req.TherapistRef,
		Date:         req.Date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Status:       models.AppointmentPending,
		Reason:       req.Reason,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.appts.Insert(ctx, &appt); err != nil {
		if rbErr := s.calendar.MarkSlot(ctx, req.TherapistRef, req.Date, req.StartTime, true, nil); rbErr != nil {
			s.log.Error("failed to release slot after insert failure",
				slog.Int64("appointment_id", id),
				sl.Err(rbErr),
			)
		}
		return models.Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}

	return appt, nil
}

func (s *Service) ConfirmAppointment(ctx context.Context, id int64) (appt models.Appointment, err error) {
	const op = "service.ConfirmAppointment"

	ctx, span := s.start(ctx, op, attribute.Int64("mindcare.appointment_id", id))
	defer s.finish(span, op, time.Now(), &err)

	appt, err = s.transition(ctx, "", id, models.AppointmentConfirmed, models.AppointmentUpdate{})
	if err != nil {
		return models.Appointment{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("appointment confirmed", slog.Int64("appointment_id", id))
	s.emit(ctx, newAppointmentEvent(EventConfirmed, appt, s.now()))

	return appt, nil
}

// CancelAppointment cancels by id alone, as a therapist or admin would.
func (s *Service) CancelAppointment(ctx context.Context, id int64, reason string) (models.Appointment, error) {
	return s.cancel(ctx, "", id, reason)
}

// CancelOwnAppointment cancels only if the appointment belongs to studentRef;
// otherwise it reports ErrNotFound.
func (s *Service) CancelOwnAppointment(ctx context.Context, studentRef string, id int64, reason string) (models.Appointment, error) {
	if strings.TrimSpace(studentRef) == "" {
		return models.Appointment{}, fmt.Errorf("service.CancelOwnAppointment: student_ref is required: %w", response.ErrBadRequest)
	}
	return s.cancel(ctx, studentRef, id, reason)
}

func (s *Service) cancel(ctx context.Context, studentRef string, id int64, reason string) (appt models.Appointment, err error) {
	const op = "service.CancelAppointment"

	ctx, span := s.start(ctx, op, attribute.Int64("mindcare.appointment_id", id))
	defer s.finish(span, op, time.Now(), &err)

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.Appointment{}, fmt.Errorf("%s: %w", op, response.ErrEmptyReason)
	}

	at := s.now().UTC()
	appt, err = s.transition(ctx, studentRef, id, models.AppointmentCancelled, models.AppointmentUpdate{
		CancelReason: &reason,
		CancelledAt:  &at,
	})
	if err != nil {
		return models.Appointment{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("appointment cancelled", slog.Int64("appointment_id", id), slog.String("reason", reason))
	s.emit(ctx, newAppointmentEvent(EventCancelled, appt, at))

	return appt, nil
}

// CompleteAppointment closes a confirmed session. Only this transition may
// record a session note.
func (s *Service) CompleteAppointment(ctx context.Context, id int64, sessionNote *string) (appt models.Appointment, err error) {
	const op = "service.CompleteAppointment"

	ctx, span := s.start(ctx, op, attribute.Int64("mindcare.appointment_id", id))
	defer s.finish(span, op, time.Now(), &err)

	var upd models.AppointmentUpdate
	if sessionNote != nil {
		note := strings.TrimSpace(*sessionNote)
		if note != "" {
			upd.SessionNote = &note
		}
	}

	appt, err = s.transition(ctx, "", id, models.AppointmentCompleted, upd)
	if err != nil {
		return models.Appointment{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("appointment completed", slog.Int64("appointment_id", id))
	s.emit(ctx, newAppointmentEvent(EventCompleted, appt, s.now()))

	return appt, nil
}

// transition applies a status change under the therapist's lock. When
// studentRef is set, appointments owned by other students are not found.
func (s *Service) transition(ctx context.Context, studentRef string, id int64, to models.AppointmentStatus, upd models.AppointmentUpdate) (models.Appointment, error) {
	owner, current, err := s.appts.FindGlobalByID(ctx, id)
	if err != nil {
		return models.Appointment{}, err
	}
	if studentRef != "" && owner != studentRef {
		return models.Appointment{}, response.ErrNotFound
	}

	release, err := s.acquire(ctx, therapistLock(current.TherapistRef))
	if err != nil {
		return models.Appointment{}, err
	}
	defer release()

	// Re-read under the lock: another writer may have moved it on.
	current, err = s.appts.Get(ctx, id)
	if err != nil {
		return models.Appointment{}, err
	}
	if !current.Status.CanTransition(to) {
		return models.Appointment{}, fmt.Errorf("%s -> %s: %w", current.Status, to, response.ErrInvalidTransition)
	}

	// The slot is freed before the status leaves the active set, and re-held
	// if the update fails, so a closed appointment never keeps its slot.
	released := false
	if !to.Active() {
		released, err = s.releaseSlot(ctx, current)
		if err != nil {
			return models.Appointment{}, err
		}
	}

	upd.Status = &to
	ok, err := s.appts.Update(ctx, owner, id, upd)
	if err == nil && !ok {
		err = response.ErrNotFound
	}
	if err != nil {
		if released {
			s.reholdSlot(ctx, current)
		}
		return models.Appointment{}, err
	}

	upd.Apply(&current)
	return current, nil
}

func (s *Service) reholdSlot(ctx context.Context, appt models.Appointment) {
	id := appt.ID
	if err := s.calendar.MarkSlot(ctx, appt.TherapistRef, appt.Date, appt.StartTime, false, &id); err != nil {
		s.log.Error("failed to re-hold slot after update failure",
			slog.Int64("appointment_id", appt.ID),
			sl.Err(err),
		)
	}
}

// releaseSlot frees the slot only while it is still held by appt and reports
// whether it did. A slot that is no longer tracked is ignored.
func (s *Service) releaseSlot(ctx context.Context, appt models.Appointment) (bool, error) {
	day, err := s.calendar.Day(ctx, appt.TherapistRef, appt.Date)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("release slot: %w", err)
	}

	for _, slot := range day.Slots {
		if slot.StartTime != appt.StartTime {
			continue
		}
		if slot.AppointmentID == nil || *slot.AppointmentID != appt.ID {
			return false, nil
		}
		if err := s.calendar.MarkSlot(ctx, appt.TherapistRef, appt.Date, appt.StartTime, true, nil); err != nil {
			return false, fmt.Errorf("release slot: %w", err)
		}
		return true, nil
	}

	return false, nil
}

func (s *Service) GetAppointment(ctx context.Context, id int64) (models.Appointment, error) {
	const op = "service.GetAppointment"

	appt, err := s.appts.Get(ctx, id)
	if err != nil {
		return models.Appointment{}, fmt.Errorf("%s: %w", op, err)
	}

	return appt, nil
}

// ListUpcoming returns the student's earliest active appointment dated on or
// after now's calendar day. ok is false when there is none.
func (s *Service) ListUpcoming(ctx context.Context, studentRef string, now time.Time) (appt models.Appointment, ok bool, err error) {
	const op = "service.ListUpcoming"

	all, err := s.appts.GetByStudent(ctx, studentRef)
	if err != nil {
		return models.Appointment{}, false, fmt.Errorf("%s: %w", op, err)
	}

	today := now.In(s.loc).Format(models.DateLayout)

	var candidates []models.Appointment
	for _, a := range all {
		if a.Status.Active() && a.Date >= today {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return models.Appointment{}, false, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	return candidates[0], true, nil
}

// ListFiltered applies every provided filter and sorts newest date first.
func (s *Service) ListFiltered(ctx context.Context, studentRef string, filter models.AppointmentFilter) ([]models.Appointment, error) {
	const op = "service.ListFiltered"

	all, err := s.appts.GetByStudent(ctx, studentRef)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]models.Appointment, 0, len(all))
	for _, a := range all {
		if filter.Match(a) {
			result = append(result, a)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date > result[j].Date
		}
		return result[i].StartTime > result[j].StartTime
	})

	return result, nil
}

func (s *Service) ListByTherapist(ctx context.Context, therapistRef string) ([]models.Appointment, error) {
	const op = "service.ListByTherapist"

	appts, err := s.appts.GetByTherapist(ctx, therapistRef)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return appts, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, response.ErrNotFound)
}

func therapistLock(ref string) string {
	return "therapist:" + ref
}

func studentLock(ref string) string {
	return "student:" + ref
}

// acquire takes every key or none. Keys are taken in sorted order.
func (s *Service) acquire(ctx context.Context, keys ...string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	type holding struct{ key, token string }
	var held []holding
	release := func() {
		unlockCtx := context.WithoutCancel(ctx)
		for i := len(held) - 1; i >= 0; i-- {
			if err := s.locker.Unlock(unlockCtx, held[i].key, held[i].token); err != nil {
				s.log.Warn("failed to release lock", slog.String("key", held[i].key), sl.Err(err))
			}
		}
	}

	for _, key := range sorted {
		token, ok, err := s.tryLock(ctx, key)
		if err != nil {
			release()
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if !ok {
			release()
			return nil, fmt.Errorf("lock %s: %w", key, response.ErrLocked)
		}
		held = append(held, holding{key: key, token: token})
	}

	return release, nil
}

func (s *Service) tryLock(ctx context.Context, key string) (string, bool, error) {
	deadline := time.Now().Add(s.lockWait)

	for {
		token, ok, err := s.locker.Lock(ctx, key, s.lockTTL)
		if err != nil || ok {
			return token, ok, err
		}
		if time.Now().After(deadline) {
			return "", false, nil
		}

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(lockPoll):
		}
	}
}

func (s *Service) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, op)
	span.SetAttributes(attrs...)
	return ctx, span
}

func (s *Service) finish(span trace.Span, op string, started time.Time, errp *error) {
	if *errp != nil {
		span.RecordError(*errp)
	}
	span.End()

	if s.observer != nil {
		s.observer.ObserveOperation(op, *errp, time.Since(started))
	}
}

func normalizeBooking(req BookRequest) (BookRequest, error) {
	req.StudentRef = strings.TrimSpace(req.StudentRef)
	req.TherapistRef = strings.TrimSpace(req.TherapistRef)
	req.Reason = strings.TrimSpace(req.Reason)

	if req.StudentRef == "" {
		return req, fmt.Errorf("student_ref is required: %w", response.ErrBadRequest)
	}
	if req.TherapistRef == "" {
		return req, fmt.Errorf("therapist_ref is required: %w", response.ErrBadRequest)
	}

	date, err := models.ParseDate(req.Date)
	if err != nil {
		return req, fmt.Errorf("%v: %w", err, response.ErrBadRequest)
	}
	req.Date = date.Format(models.DateLayout)

	if req.StartTime, err = models.NormalizeClock(req.StartTime); err != nil {
		return req, fmt.Errorf("%v: %w", err, response.ErrBadRequest)
	}
	if req.EndTime, err = models.NormalizeClock(req.EndTime); err != nil {
		return req, fmt.Errorf("%v: %w", err, response.ErrBadRequest)
	}
	if req.EndTime <= req.StartTime {
		return req, fmt.Errorf("end_time must be after start_time: %w", response.ErrBadRequest)
	}

	return req, nil
}
