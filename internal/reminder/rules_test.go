package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pet-ner/AniDoc-sub000/internal/pets"
)

var today = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func datePtr(t time.Time) *time.Time { return &t }

func snapshot(birth time.Time) pets.Snapshot {
	return pets.Snapshot{
		ID:        "pet-1",
		OwnerID:   "owner-1",
		Name:      "초코",
		Species:   "강아지",
		BirthDate: datePtr(birth),
	}
}

// ============================================
// Vaccination rule
// ============================================

func TestVaccinationDue_Round1Window(t *testing.T) {
	// Born 6 weeks + 3 days ago: ageWeeks = 6, round-1 window [6,8] matches,
	// and today is well past birth+6w-5d.
	birth := today.AddDate(0, 0, -(6*7 + 3))

	ev, ok, err := VaccinationDue(snapshot(birth), today)

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, KindVaccination, ev.Kind)
	assert.Equal(t, 1, ev.Round)
	assert.Equal(t, "owner-1", ev.RecipientID)
	assert.Contains(t, ev.Message, "초코")
	assert.Contains(t, ev.Message, "1차")
	assert.Contains(t, ev.Message, "종합백신 1차")
}

func TestVaccinationDue_LeadWindow(t *testing.T) {
	tests := []struct {
		name     string
		ageDays  int
		eligible bool
	}{
		// Window lookup gates first: at 5 whole weeks there is no dog
		// window yet, so the 5-day lead date alone does not fire.
		{"age 5 weeks, before window", 41, false},
		{"on window open", 42, true},
		{"inside window", 50, true},
		{"last day of window", 8*7 + 6, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			birth := today.AddDate(0, 0, -tt.ageDays)
			_, ok, err := VaccinationDue(snapshot(birth), today)
			require.NoError(t, err)
			assert.Equal(t, tt.eligible, ok)
		})
	}
}

func TestVaccinationDue_DeceasedNeverEligible(t *testing.T) {
	p := snapshot(today.AddDate(0, 0, -70))
	p.Species = "고양이"
	p.Deceased = true

	_, ok, err := VaccinationDue(p, today)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVaccinationDue_UnknownSpecies(t *testing.T) {
	p := snapshot(today.AddDate(0, 0, -45))
	p.Species = "햄스터"

	_, ok, err := VaccinationDue(p, today)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVaccinationDue_AgedOut(t *testing.T) {
	// 30 weeks old: past the last dog window [21,23].
	p := snapshot(today.AddDate(0, 0, -30*7))

	_, ok, err := VaccinationDue(p, today)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVaccinationDue_MissingBirthDate(t *testing.T) {
	p := snapshot(today)
	p.BirthDate = nil

	_, ok, err := VaccinationDue(p, today)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestVaccinationDue_FutureBirthDate(t *testing.T) {
	p := snapshot(today.AddDate(0, 0, 14))

	_, ok, err := VaccinationDue(p, today)
	assert.Error(t, err)
	assert.False(t, ok)
}

// The rule has no "already sent" marker: it stays eligible on every daily
// evaluation from the lead day until the pet ages into the next window.
func TestVaccinationDue_FiresEveryDayWhileEligible(t *testing.T) {
	birth := today.AddDate(0, 0, -42) // round-1 window opens today

	for day := 0; day < 5; day++ {
		_, ok, err := VaccinationDue(snapshot(birth), today.AddDate(0, 0, day))
		require.NoError(t, err)
		assert.True(t, ok, "day %d", day)
	}
}

// ============================================
// Antiparasitic rule
// ============================================

func TestAntiparasiticDue_WithLastDose(t *testing.T) {
	tests := []struct {
		name        string
		lastDoseAgo int
		eligible    bool
	}{
		{"dose 26 days ago, before lead", 26, false},
		{"dose 27 days ago, lead day", 27, true},
		{"dose 30 days ago, due today", 30, true},
		{"dose 45 days ago, overdue", 45, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := snapshot(today.AddDate(-1, 0, 0))
			p.LastAntiparasiticDate = datePtr(today.AddDate(0, 0, -tt.lastDoseAgo))

			ev, ok := AntiparasiticDue(p, today)
			assert.Equal(t, tt.eligible, ok)
			if tt.eligible {
				assert.Equal(t, KindAntiparasitic, ev.Kind)
				wantDue := today.AddDate(0, 0, -tt.lastDoseAgo+30)
				assert.Equal(t, wantDue.Format("2006-01-02"), ev.DueDate.Format("2006-01-02"))
				assert.Contains(t, ev.Message, "초코")
			}
		})
	}
}

func TestAntiparasiticDue_FallbackDay(t *testing.T) {
	p := snapshot(today.AddDate(-1, 0, 0))
	p.LastAntiparasiticDate = nil

	day12 := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	ev, ok := AntiparasiticDue(p, day12)
	require.True(t, ok)
	assert.Equal(t, "2026-03-15", ev.DueDate.Format("2006-01-02"))
	assert.Contains(t, ev.Message, "2026-03-15")

	day13 := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)
	_, ok = AntiparasiticDue(p, day13)
	assert.False(t, ok)
}

func TestAntiparasiticDue_Deceased(t *testing.T) {
	p := snapshot(today.AddDate(-1, 0, 0))
	p.Deceased = true
	p.LastAntiparasiticDate = datePtr(today.AddDate(0, 0, -30))

	_, ok := AntiparasiticDue(p, today)
	assert.False(t, ok)
}

func TestWholeWeeksBetween(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, wholeWeeksBetween(base, base.AddDate(0, 0, 6)))
	assert.Equal(t, 1, wholeWeeksBetween(base, base.AddDate(0, 0, 7)))
	assert.Equal(t, 6, wholeWeeksBetween(base, base.AddDate(0, 0, 45)))
}

// A spring-forward transition in the server's location makes one elapsed
// day 23 hours long; the count must stay calendar-exact regardless.
func TestWholeWeeksBetween_AcrossDSTTransition(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2026-03-08 is the US spring-forward date.
	birth := time.Date(2026, 1, 15, 0, 0, 0, 0, ny)
	assert.Equal(t, 6, wholeWeeksBetween(birth, birth.AddDate(0, 0, 42)))
	assert.Equal(t, 5, wholeWeeksBetween(birth, birth.AddDate(0, 0, 41)))
}
