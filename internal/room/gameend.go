package room

import (
	"context"
	"math/rand/v2"

	"github.com/sgr-room/matchd/internal/hostdriver"
)

// reset is the graceful teardown described in spec §4.1.6: it always
// returns the room to Idle (or, if a Close is pending, leaves the actual
// termination to the run loop's post-select check).
func (c *Controller) reset(ctx context.Context) {
	c.resetVotes = nil
	c.cancelVotes = nil

	if c.closing {
		c.chat("Room is closing.")
		c.setState(StateIdle)
		return
	}

	for _, p := range c.gp.Players() {
		c.driver.Execute(ctx, hostdriver.ScriptChangeTeam, p.ID, int32(0))
	}
	c.driver.Execute(ctx, hostdriver.ScriptAllReadyReset)

	c.gp = emptyGamePlayers(c.params.Queue, c.params.TeamNum)
	c.setState(StateIdle)
	c.rearm(c.params.IdleTime)
}

// quorumMet reports whether the in-room queue currently satisfies the
// launch requirement for the room's queue kind.
func (c *Controller) quorumMet() bool {
	n := len(inRoomPlayers(c.q))
	switch c.gp.Kind() {
	case QueueTeams:
		teamNum := c.params.TeamNum
		if c.params.Mode == ModeFootball {
			teamNum = 2
		} else if teamNum > 4 {
			teamNum = 4
		}
		return n >= c.params.TeamSize*teamNum
	case QueueFFA:
		return n >= c.params.FFAMin
	default:
		return n >= 2
	}
}

// onPlayerJoin implements spec §4.1.8.
func (c *Controller) onPlayerJoin(ctx context.Context, name string) {
	switch c.state {
	case StateIdle:
		if c.quorumMet() {
			c.rearm(0)
		}
	case StatePick, StateMapSelection, StateReady:
		// ignored
	case StateGameStarting, StateInGame:
		if c.gp.Kind() == QueueSingles {
			return
		}
		p := c.gp.ByName(name)
		if p == nil {
			return
		}
		qp, ok := c.q.ByName(name)
		if !ok {
			return
		}
		c.driver.Execute(ctx, hostdriver.ScriptChangeTeam, qp.ID, p.Team)
		c.driver.Execute(ctx, hostdriver.ScriptReplayPlayerJoined, qp.ID)
	}
}

// isCaptain reports whether name currently holds a picker/captain slot.
func (c *Controller) isCaptain(name string) bool {
	switch c.gp.Kind() {
	case QueueSingles:
		return c.gp.picker != nil && c.gp.picker.Name == name
	case QueueTeams:
		for _, team := range c.gp.teams {
			if len(team) > 0 && team[0].Name == name {
				return true
			}
		}
	}
	return false
}

// removeFromTeams drops a seated non-captain member by name. Reports
// whether anyone was removed.
func (c *Controller) removeFromTeams(name string) bool {
	for i, team := range c.gp.teams {
		for j, p := range team {
			if p.Name == name {
				c.gp.teams[i] = append(team[:j], team[j+1:]...)
				return true
			}
		}
	}
	return false
}

// onPlayerLeave implements spec §4.1.9.
func (c *Controller) onPlayerLeave(ctx context.Context, name string) {
	switch c.state {
	case StateIdle:
		// no-op

	case StatePick:
		if c.isCaptain(name) {
			c.reset(ctx)
		} else {
			c.removeFromTeams(name)
		}

	case StateMapSelection, StateReady:
		if p := c.gp.ByName(name); p != nil && p.Team != 0 {
			c.q.PushBack(name)
			c.reset(ctx)
		}

	case StateGameStarting, StateInGame:
		c.onMidGameLeave(ctx, name)
	}
}

func (c *Controller) onMidGameLeave(ctx context.Context, name string) {
	switch c.gp.Kind() {
	case QueueSingles:
		var survivor *string
		if c.gp.picker != nil && c.gp.picker.Name != name {
			survivor = &c.gp.picker.Name
		}
		if c.gp.picked != nil && c.gp.picked.Name != name {
			survivor = &c.gp.picked.Name
		}
		if survivor != nil {
			c.onGameEnd(ctx, survivor, false)
		}

	case QueueTeams:
		var lastSurvivingTeam []Player
		survivingTeams := 0
		for _, team := range c.gp.teams {
			alive := false
			for _, p := range team {
				if qp, ok := c.q.ByName(p.Name); ok && qp.InRoom {
					alive = true
					break
				}
			}
			if alive {
				survivingTeams++
				lastSurvivingTeam = team
			}
		}
		switch survivingTeams {
		case 1:
			if len(lastSurvivingTeam) > 0 {
				winner := lastSurvivingTeam[0].Name
				c.onGameEnd(ctx, &winner, false)
			}
		case 0:
			c.reset(ctx)
		}

	case QueueFFA:
		var last *string
		alive := 0
		for _, p := range c.gp.inGame {
			if qp, ok := c.q.ByName(p.Name); ok && qp.InRoom {
				alive++
				n := p.Name
				last = &n
			}
		}
		switch alive {
		case 1:
			c.onGameEnd(ctx, last, false)
		case 0:
			c.reset(ctx)
		}
	}
}

// participantGroups returns the current game's players grouped the way the
// Leaderboard Service expects teams: one slice of names per side.
func (c *Controller) participantGroups() [][]string {
	switch c.gp.Kind() {
	case QueueSingles:
		var out [][]string
		if c.gp.picker != nil {
			out = append(out, []string{c.gp.picker.Name})
		}
		if c.gp.picked != nil {
			out = append(out, []string{c.gp.picked.Name})
		}
		return out
	case QueueTeams:
		out := make([][]string, 0, len(c.gp.teams))
		for _, team := range c.gp.teams {
			names := make([]string, len(team))
			for i, p := range team {
				names[i] = p.Name
			}
			out = append(out, names)
		}
		return out
	default: // FFA: every player is their own placement group
		out := make([][]string, 0, len(c.gp.inGame))
		for _, p := range c.gp.inGame {
			out = append(out, []string{p.Name})
		}
		return out
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// onGameEnd implements spec §4.1.10. winner, when non-nil, names the
// participant whose side should be forced to a winning score — the
// representation the game-end edge and the premature-leave handlers
// observe is a player, not a raw team number, so the winning side is
// resolved by membership rather than a team id (see DESIGN.md).
func (c *Controller) onGameEnd(ctx context.Context, winner *string, tie bool) {
	groups := c.participantGroups()

	if c.lb != nil && len(groups) > 0 {
		scores := make([]float64, len(groups))

		if winner == nil {
			script := hostdriver.ScriptReadScoresFFA
			if c.params.Mode == ModeFootball {
				script = hostdriver.ScriptReadScoresFootball
			}
			if raw, err := c.driver.Execute(ctx, script); err == nil {
				if m, ok := raw.(map[string]any); ok {
					for i, g := range groups {
						var total float64
						for _, name := range g {
							total += toFloat(m[name])
						}
						scores[i] = total
					}
				}
			}
		} else {
			for i, g := range groups {
				for _, name := range g {
					if name == *winner {
						scores[i] = float64(c.params.Rounds)
					}
				}
			}
		}

		// descending insertion sort: N is at most a handful of teams.
		for i := 1; i < len(groups); i++ {
			for j := i; j > 0 && scores[j] > scores[j-1]; j-- {
				scores[j], scores[j-1] = scores[j-1], scores[j]
				groups[j], groups[j-1] = groups[j-1], groups[j]
			}
		}

		var ties []bool
		if len(groups) > 1 {
			ties = make([]bool, len(groups)-1)
			for i := range ties {
				ties[i] = tie || scores[i] == scores[i+1]
			}
		}

		if summary, err := c.lb.Update(ctx, groups, ties); err == nil {
			c.chat(summary)
		}
	}

	c.reorderQueueAfterGame()
	c.reset(ctx)
}

func (c *Controller) reorderQueueAfterGame() {
	switch c.gp.Kind() {
	case QueueSingles:
		if c.gp.picked != nil {
			c.q.PushBack(c.gp.picked.Name)
		}
		if c.gp.picker != nil {
			c.q.PushBack(c.gp.picker.Name)
		}

	case QueueTeams:
		var nonCaptains, captains []string
		for _, team := range c.gp.teams {
			for i, p := range team {
				if i == 0 {
					captains = append(captains, p.Name)
				} else {
					nonCaptains = append(nonCaptains, p.Name)
				}
			}
		}
		rand.Shuffle(len(nonCaptains), func(i, j int) { nonCaptains[i], nonCaptains[j] = nonCaptains[j], nonCaptains[i] })
		rand.Shuffle(len(captains), func(i, j int) { captains[i], captains[j] = captains[j], captains[i] })
		for _, n := range nonCaptains {
			c.q.PushBack(n)
		}
		for _, n := range captains {
			c.q.PushBack(n)
		}

	case QueueFFA:
		names := make([]string, len(c.gp.inGame))
		for i, p := range c.gp.inGame {
			names[i] = p.Name
		}
		rand.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
		for _, n := range names {
			c.q.PushBack(n)
		}
	}
}
