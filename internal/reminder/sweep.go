package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Pet-ner/AniDoc-sub000/internal/pets"
)

// EventSink receives due reminder events; implemented by the notification
// dispatcher. A sink failure for one pet never aborts the sweep.
type EventSink interface {
	Dispatch(ctx context.Context, ev Event) error
}

// Result summarizes one sweep over the active pet population.
type Result struct {
	PetsEvaluated int
	Dispatched    int
	Failed        int
	Errors        []string
	Duration      time.Duration
}

// Summary returns a one-line human-readable result.
func (r Result) Summary() string {
	return fmt.Sprintf("pets=%d dispatched=%d failed=%d duration=%s",
		r.PetsEvaluated, r.Dispatched, r.Failed, r.Duration.Round(time.Millisecond))
}

// Sweeper drives rule evaluation across the active pet population on a
// daily cadence.
type Sweeper struct {
	directory pets.Directory
	sink      EventSink
	logger    *slog.Logger

	// at is the daily wall-clock fire time, "HH:MM".
	at  string
	now func() time.Time
}

// NewSweeper creates a sweep driver. at is the daily fire time ("HH:MM");
// it only matters for Start, Run can be called directly at any time.
func NewSweeper(directory pets.Directory, sink EventSink, at string, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		directory: directory,
		sink:      sink,
		logger:    logger,
		at:        at,
		now:       time.Now,
	}
}

// Run executes one sweep: evaluate both rules for every active pet and
// dispatch each eligible reminder once. Per-pet failures are counted and
// logged, never propagated — the reminder stays eligible and retries
// naturally on the next day's sweep.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	start := s.now()
	today := start

	var result Result

	population, err := s.directory.ListActive(ctx)
	if err != nil {
		result.Duration = s.now().Sub(start)
		return result, fmt.Errorf("list active pets: %w", err)
	}

	for _, pet := range population {
		result.PetsEvaluated++
		s.evaluatePet(ctx, pet, today, &result)
	}

	result.Duration = s.now().Sub(start)
	s.logger.Info("Reminder sweep complete", "summary", result.Summary())
	return result, nil
}

func (s *Sweeper) evaluatePet(ctx context.Context, pet pets.Snapshot, today time.Time, result *Result) {
	ev, ok, err := VaccinationDue(pet, today)
	if err != nil {
		s.recordFailure(result, pet.ID, err)
	} else if ok {
		s.dispatch(ctx, ev, result)
	}

	if ev, ok := AntiparasiticDue(pet, today); ok {
		s.dispatch(ctx, ev, result)
	}
}

func (s *Sweeper) dispatch(ctx context.Context, ev Event, result *Result) {
	if err := s.sink.Dispatch(ctx, ev); err != nil {
		s.recordFailure(result, ev.PetID, err)
		return
	}
	result.Dispatched++
}

func (s *Sweeper) recordFailure(result *Result, petID string, err error) {
	result.Failed++
	result.Errors = append(result.Errors, fmt.Sprintf("pet %s: %s", petID, err))
	s.logger.Warn("Reminder evaluation failed", "pet_id", petID, "error", err)
}

// Start runs a sweep every day at the configured wall-clock time.
// Blocks until ctx is cancelled. Intended to be called with `go`.
func (s *Sweeper) Start(ctx context.Context) {
	hour, minute, err := parseClock(s.at)
	if err != nil {
		s.logger.Error("Invalid sweep time, daily sweeps disabled", "at", s.at, "error", err)
		return
	}
	s.logger.Info("Daily reminder sweeps started", "at", s.at)

	for {
		next := nextFireTime(s.now(), hour, minute)
		timer := time.NewTimer(next.Sub(s.now()))

		select {
		case <-timer.C:
			if _, err := s.Run(ctx); err != nil {
				s.logger.Error("Reminder sweep failed", "error", err)
			}
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Daily reminder sweeps stopped")
			return
		}
	}
}

// parseClock parses a "HH:MM" daily fire time.
func parseClock(at string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(at), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", at)
	}
	if _, err := fmt.Sscanf(parts[0]+" "+parts[1], "%d %d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", at)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock time out of range: %q", at)
	}
	return hour, minute, nil
}

// nextFireTime returns the next occurrence of hour:minute strictly after now.
func nextFireTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
