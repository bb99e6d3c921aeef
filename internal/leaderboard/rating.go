package leaderboard

import (
	"math"
	"time"
)

// tieGroups partitions team indices 0..n into contiguous groups joined by
// ties[i] == true (team i tied with team i+1). The loop bound is n
// (teams.len()), not ties.len()+1 — the original source's bound used the
// length of its own output accumulator, which is the bug spec §9 calls out.
func tieGroups(n int, ties []bool) [][]int {
	var groups [][]int
	i := 0
	for i < n {
		group := []int{i}
		for i+1 < n && i < len(ties) && ties[i] {
			i++
			group = append(group, i)
		}
		groups = append(groups, group)
		i++
	}
	return groups
}

// inflateDeviation applies the daily σ inflation to every player who hasn't
// been updated yet today (spec §4.5 "For each player not yet updated
// today").
func inflateDeviation(players []PlayerRecord, settings Settings, today time.Time) {
	for i := range players {
		p := &players[i]
		last := p.LastUpdated
		if !last.Before(today) {
			continue
		}
		days := daysBetween(last, today)
		v := p.RatingDeviation*p.RatingDeviation + math.Pow(settings.DeviationPerDay*settings.RatingScale, 2)*float64(days)
		p.RatingDeviation = math.Sqrt(v)
	}
}

func daysBetween(from, to time.Time) int {
	d := to.Truncate(24 * time.Hour).Sub(from.Truncate(24 * time.Hour))
	return int(d / (24 * time.Hour))
}

// applyRatings runs one reverse Plackett-Luce Weng-Lin Bradley-Terry
// update in place over teamsData, grouped by ties, per spec §4.5. today is
// used both for the daily σ inflation and as the new LastUpdated stamp.
func applyRatings(settings Settings, teamsData [][]PlayerRecord, ties []bool, today time.Time) {
	for _, team := range teamsData {
		inflateDeviation(team, settings, today)
	}

	type teamAgg struct {
		r, v float64 // R_t, V_t
	}
	agg := make([]teamAgg, len(teamsData))
	for t, team := range teamsData {
		for _, p := range team {
			agg[t].r += p.Rating
			agg[t].v += p.RatingDeviation * p.RatingDeviation
		}
	}

	beta2 := settings.RatingScale * settings.RatingScale
	c2 := 0.0
	for _, a := range agg {
		c2 += a.v + beta2
	}
	c := math.Max(math.Sqrt(c2), math.SmallestNonzeroFloat64)

	groups := tieGroups(len(teamsData), ties)
	groupOf := make([]int, len(teamsData))
	for gi, g := range groups {
		for _, t := range g {
			groupOf[t] = gi
		}
	}

	expR := make([]float64, len(teamsData))
	for t, a := range agg {
		expR[t] = math.Exp(-a.r / c * math.Pi / math.Sqrt(3))
	}

	groupSum := make([]float64, len(groups))
	for gi, g := range groups {
		for _, t := range g {
			groupSum[gi] += expR[t]
		}
	}
	cumulative := make([]float64, len(groups))
	running := 0.0
	for gi, s := range groupSum {
		running += s
		cumulative[gi] = running
	}

	deltaR := make([]float64, len(teamsData))
	deltaV := make([]float64, len(teamsData))
	for t := range teamsData {
		gi := groupOf[t]
		var dr, dv float64
		for j := gi; j < len(groups); j++ {
			size := float64(len(groups[j]))
			p := expR[t] / cumulative[j]

			if j == gi {
				dr += (1 - p) * agg[t].v / c / size
			} else {
				dr += -p * agg[t].v / c / size
			}
			for k := 1; k < len(groups[j]); k++ {
				dr += -p * agg[t].v / c / size
			}
			dv += p * (1 - p) * math.Pow(agg[t].v, 1.5) / (c * c * c)
		}
		deltaR[t] = dr
		deltaV[t] = dv
	}

	for t, team := range teamsData {
		v := agg[t].v
		for i := range team {
			p := &team[i]
			ratio := p.RatingDeviation * p.RatingDeviation / v
			p.Rating -= ratio * deltaR[t]
			p.RatingDeviation = math.Sqrt(p.RatingDeviation * p.RatingDeviation * math.Max(0.0001, 1-ratio*deltaV[t]))
			p.DisplayRating = p.Rating - p.RatingDeviation*settings.ConservativeRating
			p.LastUpdated = today
		}
	}
}
