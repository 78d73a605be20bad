// Package jobs runs periodic maintenance against the scheduling service.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"mindcare-service/pkg/sl"
)

const jobTimeout = 5 * time.Minute

type WindowGenerator interface {
	GenerateWindow(ctx context.Context, from time.Time, days int) (int, error)
}

type Config struct {
	// Spec is a standard five-field cron expression.
	Spec       string
	WindowDays int
	Location   *time.Location
}

// Scheduler keeps the bookable window rolling forward: each run generates
// slots for the next WindowDays days for every therapist.
type Scheduler struct {
	cron *cron.Cron
	gen  WindowGenerator
	days int
	log  *slog.Logger
	now  func() time.Time
}

func New(log *slog.Logger, gen WindowGenerator, cfg Config) (*Scheduler, error) {
	const op = "jobs.New"

	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 30
	}

	s := &Scheduler{
		cron: cron.New(cron.WithLocation(cfg.Location)),
		gen:  gen,
		days: cfg.WindowDays,
		log:  log.With(slog.String("component", "jobs")),
		now:  time.Now,
	}

	if _, err := s.cron.AddFunc(cfg.Spec, s.RefreshWindow); err != nil {
		return nil, fmt.Errorf("%s: spec %q: %w", op, cfg.Spec, err)
	}

	return s, nil
}

// RefreshWindow is the cron job body. Failures are logged; the next tick
// retries since generation is idempotent.
func (s *Scheduler) RefreshWindow() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	started := s.now()
	created, err := s.gen.GenerateWindow(ctx, started, s.days)
	if err != nil {
		s.log.Error("availability window refresh failed", slog.Int("days_created", created), sl.Err(err))
		return
	}

	s.log.Info("availability window refreshed",
		slog.Int("days_created", created),
		slog.Duration("took", time.Since(started)),
	)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents further runs and waits for a running job, or until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("jobs did not finish before shutdown", sl.Err(ctx.Err()))
	}
}
