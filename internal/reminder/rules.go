// Package reminder derives care-due events from pet lifecycle snapshots and
// drives the daily sweep over the active pet population.
//
// The rules are pure functions of (snapshot, today): no I/O, no mutation.
// They fire on the lead day and every day thereafter while eligible — there
// is no "already sent" marker, so a reminder repeats on each daily sweep
// until the pet ages out of its window (at-least-once delivery).
package reminder

import (
	"fmt"
	"time"

	"github.com/Pet-ner/AniDoc-sub000/internal/careplan"
	"github.com/Pet-ner/AniDoc-sub000/internal/pets"
)

// Kind classifies a reminder event.
type Kind string

const (
	KindVaccination   Kind = "VACCINATION"
	KindAntiparasitic Kind = "ANTIPARASITIC"
)

const (
	// vaccinationLeadDays is how many days before a window opens the
	// vaccination reminder starts firing.
	vaccinationLeadDays = 5

	// antiparasiticCycleDays is the dosing cadence for heartworm preventives.
	antiparasiticCycleDays = 30
	// antiparasiticLeadDays is the reminder lead before the next due dose.
	antiparasiticLeadDays = 3

	// fallbackDueDay is the default monthly dosing day when no last dose is
	// recorded; the reminder fires antiparasiticLeadDays before it.
	fallbackDueDay = 15
)

// Event is one due reminder, produced by a rule and consumed by the
// dispatcher within the same evaluation cycle.
type Event struct {
	PetID       string
	PetName     string
	RecipientID string // pet owner's user ID
	Kind        Kind
	Round       int // vaccination round, 0 for antiparasitic
	DueDate     time.Time
	Message     string
}

// VaccinationDue evaluates the vaccination rule for one pet.
// Returns ok=false when the pet is deceased, the species has no schedule,
// or the current age falls outside every window. A missing birth date is
// malformed lifecycle data and returns an error.
func VaccinationDue(p pets.Snapshot, today time.Time) (Event, bool, error) {
	if p.Deceased {
		return Event{}, false, nil
	}
	if careplan.ScheduleFor(p.Species) == nil {
		return Event{}, false, nil
	}
	if p.BirthDate == nil {
		return Event{}, false, fmt.Errorf("pet %s: vaccination rule: missing birth date", p.ID)
	}

	birth := dateOf(*p.BirthDate)
	now := dateOf(today)

	if now.Before(birth) {
		return Event{}, false, fmt.Errorf("pet %s: vaccination rule: birth date %s is in the future",
			p.ID, birth.Format("2006-01-02"))
	}
	ageWeeks := wholeWeeksBetween(birth, now)

	window, ok := careplan.Lookup(p.Species, ageWeeks)
	if !ok {
		return Event{}, false, nil
	}

	windowStart := birth.AddDate(0, 0, window.StartWeeks*7)
	windowEnd := birth.AddDate(0, 0, window.EndWeeks*7)
	reminderDate := windowStart.AddDate(0, 0, -vaccinationLeadDays)
	if now.Before(reminderDate) {
		return Event{}, false, nil
	}

	msg := fmt.Sprintf("%s의 %d차 예방접종 시기입니다. 접종 항목: %s (접종 기간: %s ~ %s)",
		p.Name, window.Round, window.CareTypes,
		windowStart.Format("2006-01-02"), windowEnd.Format("2006-01-02"))

	return Event{
		PetID:       p.ID,
		PetName:     p.Name,
		RecipientID: p.OwnerID,
		Kind:        KindVaccination,
		Round:       window.Round,
		DueDate:     windowStart,
		Message:     msg,
	}, true, nil
}

// AntiparasiticDue evaluates the heartworm-preventive rule for one pet.
// Independent of species: every pet with a recorded dose is reminded 3 days
// before the next 30-day cycle; pets with no recorded dose get a monthly
// fallback reminder on the 12th, 3 days before the default due day (15th).
func AntiparasiticDue(p pets.Snapshot, today time.Time) (Event, bool) {
	if p.Deceased {
		return Event{}, false
	}

	now := dateOf(today)

	if p.LastAntiparasiticDate == nil {
		if now.Day() != fallbackDueDay-antiparasiticLeadDays {
			return Event{}, false
		}
		due := time.Date(now.Year(), now.Month(), fallbackDueDay, 0, 0, 0, 0, now.Location())
		msg := fmt.Sprintf("%s의 심장사상충 예방약 투여일이 다가옵니다. 다음 투여 예정일: %s",
			p.Name, due.Format("2006-01-02"))
		return Event{
			PetID:       p.ID,
			PetName:     p.Name,
			RecipientID: p.OwnerID,
			Kind:        KindAntiparasitic,
			DueDate:     due,
			Message:     msg,
		}, true
	}

	nextDue := dateOf(*p.LastAntiparasiticDate).AddDate(0, 0, antiparasiticCycleDays)
	reminderDate := nextDue.AddDate(0, 0, -antiparasiticLeadDays)
	if now.Before(reminderDate) {
		return Event{}, false
	}

	msg := fmt.Sprintf("%s의 심장사상충 예방약 투여일이 다가옵니다. 다음 투여 예정일: %s",
		p.Name, nextDue.Format("2006-01-02"))
	return Event{
		PetID:       p.ID,
		PetName:     p.Name,
		RecipientID: p.OwnerID,
		Kind:        KindAntiparasitic,
		DueDate:     nextDue,
		Message:     msg,
	}, true
}

// dateOf truncates a timestamp to midnight in its own location so the rules
// compare calendar dates, not instants.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// wholeWeeksBetween returns complete weeks elapsed from a to b, counted in
// calendar days. The dates are re-anchored in UTC so a DST transition in
// the pets' location can never shorten a day and shift the count.
func wholeWeeksBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(bu.Sub(au).Hours() / 24)
	return days / 7
}
