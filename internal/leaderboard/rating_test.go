package leaderboard

import (
	"math"
	"testing"
	"time"
)

func newPlayer(name string, rating, deviation float64, today time.Time) PlayerRecord {
	return PlayerRecord{
		Name:            name,
		Rating:          rating,
		RatingDeviation: deviation,
		DisplayRating:   rating,
		LastUpdated:     today,
	}
}

// TestApplyRatings_ThreeWayFullTie is spec scenario 4: three equally rated
// new players, all tied. Every player's rating must be unchanged and every
// deviation must shrink by the same amount.
func TestApplyRatings_ThreeWayFullTie(t *testing.T) {
	settings := Settings{MeanRating: 1500, RatingScale: 200, UnratedDeviation: 600, DeviationPerDay: 0}
	today := time.Now().UTC().Truncate(24 * time.Hour)

	teams := [][]PlayerRecord{
		{newPlayer("P1", 1500, 600, today)},
		{newPlayer("P2", 1500, 600, today)},
		{newPlayer("P3", 1500, 600, today)},
	}
	ties := []bool{true, true}

	applyRatings(settings, teams, ties, today)

	for _, team := range teams {
		p := team[0]
		if math.Abs(p.Rating-1500) > 1e-6 {
			t.Fatalf("expected %s's rating unchanged in a full tie, got %v", p.Name, p.Rating)
		}
		if p.RatingDeviation >= 600 {
			t.Fatalf("expected %s's deviation to shrink, got %v", p.Name, p.RatingDeviation)
		}
	}

	d0, d1, d2 := teams[0][0].RatingDeviation, teams[1][0].RatingDeviation, teams[2][0].RatingDeviation
	if math.Abs(d0-d1) > 1e-9 || math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("expected symmetric deviation shrinkage for interchangeable players, got %v %v %v", d0, d1, d2)
	}
}

// TestApplyRatings_ConservesMeanRating checks the cross-team Δμ
// conservation property from spec §8.
func TestApplyRatings_ConservesMeanRating(t *testing.T) {
	settings := Settings{MeanRating: 1500, RatingScale: 200, UnratedDeviation: 300, DeviationPerDay: 0}
	today := time.Now().UTC().Truncate(24 * time.Hour)

	teams := [][]PlayerRecord{
		{newPlayer("Alice", 1600, 250, today)},
		{newPlayer("Bob", 1400, 350, today)},
	}
	ties := []bool{false}

	before := 0.0
	for _, team := range teams {
		for _, p := range team {
			before += p.Rating
		}
	}

	applyRatings(settings, teams, ties, today)

	after := 0.0
	for _, team := range teams {
		for _, p := range team {
			after += p.Rating
		}
	}

	if math.Abs(after-before) > 1e-6 {
		t.Fatalf("expected total rating conserved, before=%v after=%v", before, after)
	}
}

func TestApplyRatings_DeviationNeverNegativeOrUnbounded(t *testing.T) {
	settings := Settings{MeanRating: 1500, RatingScale: 200, UnratedDeviation: 50, DeviationPerDay: 0}
	today := time.Now().UTC().Truncate(24 * time.Hour)

	teams := [][]PlayerRecord{
		{newPlayer("Alice", 2000, 50, today)},
		{newPlayer("Bob", 1000, 50, today)},
	}
	applyRatings(settings, teams, []bool{false}, today)

	for _, team := range teams {
		if team[0].RatingDeviation <= 0 {
			t.Fatalf("expected a strictly positive deviation, got %v", team[0].RatingDeviation)
		}
	}
}

func TestTieGroups_ContiguousRuns(t *testing.T) {
	groups := tieGroups(4, []bool{true, false, true})
	want := [][]int{{0, 1}, {2, 3}}
	if len(groups) != len(want) {
		t.Fatalf("tieGroups = %v, want %v", groups, want)
	}
	for i := range want {
		if len(groups[i]) != len(want[i]) {
			t.Fatalf("group %d = %v, want %v", i, groups[i], want[i])
		}
	}
}

func TestInflateDeviation_SkipsAlreadyUpdatedToday(t *testing.T) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	settings := Settings{RatingScale: 200, DeviationPerDay: 0.1}

	fresh := []PlayerRecord{newPlayer("Alice", 1500, 300, today)}
	inflateDeviation(fresh, settings, today)
	if fresh[0].RatingDeviation != 300 {
		t.Fatalf("expected no inflation for a player already updated today, got %v", fresh[0].RatingDeviation)
	}

	stale := []PlayerRecord{newPlayer("Bob", 1500, 300, today.AddDate(0, 0, -2))}
	inflateDeviation(stale, settings, today)
	if stale[0].RatingDeviation <= 300 {
		t.Fatalf("expected inflation for a player stale by 2 days, got %v", stale[0].RatingDeviation)
	}
}
