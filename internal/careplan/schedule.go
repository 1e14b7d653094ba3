// Package careplan holds the static, species-keyed table of care windows
// used by the reminder rules. A care window is an age range in weeks since
// birth during which a vaccination round is due. The table is read-only
// after init and safe for concurrent lookup.
package careplan

import "strings"

// Window is one vaccination round's age range, in whole weeks since birth.
type Window struct {
	Round      int
	StartWeeks int
	EndWeeks   int
	CareTypes  string
}

// --------------------------------------------------------------------------
// Species schedules — ordered by StartWeeks, contiguous, non-overlapping
// --------------------------------------------------------------------------

var dogSchedule = []Window{
	{Round: 1, StartWeeks: 6, EndWeeks: 8, CareTypes: "종합백신 1차, 코로나 장염 1차"},
	{Round: 2, StartWeeks: 9, EndWeeks: 11, CareTypes: "종합백신 2차, 코로나 장염 2차"},
	{Round: 3, StartWeeks: 12, EndWeeks: 14, CareTypes: "종합백신 3차, 켄넬코프 1차"},
	{Round: 4, StartWeeks: 15, EndWeeks: 17, CareTypes: "종합백신 4차, 켄넬코프 2차"},
	{Round: 5, StartWeeks: 18, EndWeeks: 20, CareTypes: "종합백신 5차, 인플루엔자 1차"},
	{Round: 6, StartWeeks: 21, EndWeeks: 23, CareTypes: "광견병, 인플루엔자 2차"},
}

var catSchedule = []Window{
	{Round: 1, StartWeeks: 8, EndWeeks: 10, CareTypes: "종합백신 1차"},
	{Round: 2, StartWeeks: 11, EndWeeks: 13, CareTypes: "종합백신 2차"},
	{Round: 3, StartWeeks: 14, EndWeeks: 16, CareTypes: "종합백신 3차, 광견병"},
}

// Species vocabulary: a schedule applies when the pet's species string
// contains one of its tokens, case-insensitively. Covers the deployment
// locale plus English fallbacks.
var speciesTokens = []struct {
	tokens   []string
	schedule []Window
}{
	{tokens: []string{"강아지", "개", "dog"}, schedule: dogSchedule},
	{tokens: []string{"고양이", "cat"}, schedule: catSchedule},
}

// ScheduleFor returns the ordered care windows for a species, or nil when
// the species is not applicable. Never an error: unmatched species simply
// have no schedule.
func ScheduleFor(species string) []Window {
	s := strings.ToLower(strings.TrimSpace(species))
	if s == "" {
		return nil
	}
	for _, entry := range speciesTokens {
		for _, tok := range entry.tokens {
			if strings.Contains(s, tok) {
				return entry.schedule
			}
		}
	}
	return nil
}

// Lookup returns the single window whose [StartWeeks, EndWeeks] interval
// contains ageWeeks, or ok=false when the species is unrecognized or the
// age falls outside every window.
func Lookup(species string, ageWeeks int) (Window, bool) {
	for _, w := range ScheduleFor(species) {
		if ageWeeks >= w.StartWeeks && ageWeeks <= w.EndWeeks {
			return w, true
		}
	}
	return Window{}, false
}
