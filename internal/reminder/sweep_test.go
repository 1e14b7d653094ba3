package reminder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pet-ner/AniDoc-sub000/internal/pets"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	failOn string // pet ID whose dispatches fail
}

func (s *recordingSink) Dispatch(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.PetID == s.failOn {
		return errors.New("dispatch failed")
	}
	s.events = append(s.events, ev)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSweeper(dir pets.Directory, sink EventSink, now time.Time) *Sweeper {
	s := NewSweeper(dir, sink, "09:00", discardLogger())
	s.now = func() time.Time { return now }
	return s
}

func TestSweeper_Run(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	birth := now.AddDate(0, 0, -45) // dog round-1 window

	dir := pets.NewMemDirectory(
		pets.Snapshot{ID: "p1", OwnerID: "u1", Name: "초코", Species: "강아지", BirthDate: datePtr(birth)},
		pets.Snapshot{ID: "p2", OwnerID: "u2", Name: "나비", Species: "고양이", BirthDate: datePtr(now.AddDate(-2, 0, 0))},
	)
	sink := &recordingSink{}

	result, err := newTestSweeper(dir, sink, now).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, result.PetsEvaluated)
	assert.Equal(t, 1, result.Dispatched) // p1 vaccination; p2 aged out, no parasite dose due
	assert.Equal(t, 0, result.Failed)
	require.Len(t, sink.events, 1)
	assert.Equal(t, "p1", sink.events[0].PetID)
	assert.Equal(t, KindVaccination, sink.events[0].Kind)
}

// A rule failure for one pet never aborts the sweep for the rest.
func TestSweeper_RuleFailureIsIsolated(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	dir := pets.NewMemDirectory(
		// Malformed: dog with no birth date.
		pets.Snapshot{ID: "bad", OwnerID: "u1", Name: "?", Species: "강아지"},
		pets.Snapshot{ID: "ok", OwnerID: "u2", Name: "초코", Species: "강아지",
			BirthDate: datePtr(now.AddDate(0, 0, -45))},
	)
	sink := &recordingSink{}

	result, err := newTestSweeper(dir, sink, now).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, result.PetsEvaluated)
	assert.Equal(t, 1, result.Dispatched)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, sink.events, 1)
	assert.Equal(t, "ok", sink.events[0].PetID)
}

func TestSweeper_DispatchFailureIsIsolated(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	birth := now.AddDate(0, 0, -45)

	dir := pets.NewMemDirectory(
		pets.Snapshot{ID: "p1", OwnerID: "u1", Name: "초코", Species: "강아지", BirthDate: datePtr(birth)},
		pets.Snapshot{ID: "p2", OwnerID: "u2", Name: "보리", Species: "강아지", BirthDate: datePtr(birth)},
	)
	sink := &recordingSink{failOn: "p1"}

	result, err := newTestSweeper(dir, sink, now).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Dispatched)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "p1")
}

// Running the sweep on consecutive days without a sent marker re-fires the
// same reminder each day while the pet stays in the window. The recent
// antiparasitic dose keeps that rule quiet (its next lead day is weeks out),
// so every event here is the repeated vaccination reminder.
func TestSweeper_AtLeastOnceAcrossDays(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	birth := start.AddDate(0, 0, -45)

	dir := pets.NewMemDirectory(
		pets.Snapshot{ID: "p1", OwnerID: "u1", Name: "초코", Species: "강아지",
			BirthDate:             datePtr(birth),
			LastAntiparasiticDate: datePtr(start.AddDate(0, 0, -5))},
	)
	sink := &recordingSink{}

	for day := 0; day < 3; day++ {
		_, err := newTestSweeper(dir, sink, start.AddDate(0, 0, day)).Run(context.Background())
		require.NoError(t, err)
	}

	require.Len(t, sink.events, 3)
	for _, ev := range sink.events {
		assert.Equal(t, KindVaccination, ev.Kind)
	}
}

// A pet with no recorded dose gets both rules on the monthly fallback day:
// the vaccination reminder plus the antiparasitic fallback.
func TestSweeper_FallbackDayFiresBothRules(t *testing.T) {
	now := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)

	dir := pets.NewMemDirectory(
		pets.Snapshot{ID: "p1", OwnerID: "u1", Name: "초코", Species: "강아지",
			BirthDate: datePtr(now.AddDate(0, 0, -45))},
	)
	sink := &recordingSink{}

	result, err := newTestSweeper(dir, sink, now).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, result.Dispatched)
	require.Len(t, sink.events, 2)

	kinds := map[Kind]bool{}
	for _, ev := range sink.events {
		kinds[ev.Kind] = true
	}
	assert.True(t, kinds[KindVaccination])
	assert.True(t, kinds[KindAntiparasitic])
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{"09:00", 9, 0, false},
		{"23:59", 23, 59, false},
		{"0:5", 0, 5, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"morning", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		h, m, err := parseClock(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.hour, h)
		assert.Equal(t, tt.minute, m)
	}
}

func TestNextFireTime(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	next := nextFireTime(now, 9, 0)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), next)

	// Already past today's fire time: next day.
	next = nextFireTime(now, 7, 30)
	assert.Equal(t, time.Date(2026, 3, 11, 7, 30, 0, 0, time.UTC), next)

	// Exactly at the fire time: strictly after, so next day.
	next = nextFireTime(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), 9, 0)
	assert.Equal(t, time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), next)
}
