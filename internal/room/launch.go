package room

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/sgr-room/matchd/internal/hostdriver"
)

// launchOutcome reports what attemptLaunch did, so its caller knows whether
// to re-arm idle_time, retry immediately, or leave the timer as already set.
type launchOutcome int

const (
	launchBlocked launchOutcome = iota // not enough players; re-arm idle_time
	launchRetry                        // re-arm to 0 and try again next tick
	launchStarted                      // state already changed and timer already armed
)

// inRoomPlayers returns queued players with InRoom=true, in queue order.
func inRoomPlayers(q *queue) []Player {
	var out []Player
	for _, p := range q.Snapshot() {
		if p.InRoom {
			out = append(out, p)
		}
	}
	return out
}

// attemptLaunch implements spec §4.1.1: the Idle -> Pick/MapSelection/Ready
// launch paths, keyed by the room's queue kind.
func (c *Controller) attemptLaunch(ctx context.Context) launchOutcome {
	kind := c.gp.Kind()

	if kind == QueueFFA && c.params.Mode == ModeFootball {
		// Football never runs FFA lobbies; run this launch as Singles and
		// retry immediately. reset rebuilds the FFA variant from params, so
		// the fold repeats on every launch.
		c.gp = NewSinglesGamePlayers()
		return launchRetry
	}

	switch kind {
	case QueueSingles:
		return c.launchSingles(ctx)
	case QueueTeams:
		return c.launchTeams(ctx)
	default:
		return c.launchFFA(ctx)
	}
}

func (c *Controller) launchSingles(ctx context.Context) launchOutcome {
	candidates := inRoomPlayers(c.q)
	if len(candidates) < 2 {
		return launchBlocked
	}

	c.teamFlip = rand.IntN(2) == 0
	pickerTeam, opponentTeam := int32(1), int32(1)
	if c.params.Mode == ModeFootball {
		if c.teamFlip {
			pickerTeam, opponentTeam = 2, 3
		} else {
			pickerTeam, opponentTeam = 3, 2
		}
	}

	picker := candidates[0]
	picker.Team = pickerTeam
	c.q.Update(picker.Name, func(p *Player) { p.Team = pickerTeam })

	if len(candidates) == 2 {
		opponent := candidates[1]
		opponent.Team = opponentTeam
		c.q.Update(opponent.Name, func(p *Player) { p.Team = opponentTeam })

		gp := NewSinglesGamePlayers()
		pk, op := picker, opponent
		gp.picker, gp.picked = &pk, &op
		c.gp = gp

		c.driver.Execute(ctx, hostdriver.ScriptSendStartCountdown)
		c.startMapSelection(ctx)
		return launchStarted
	}

	gp := NewSinglesGamePlayers()
	pk := picker
	gp.picker = &pk
	c.gp = gp

	c.driver.Execute(ctx, hostdriver.ScriptSendStartCountdown)
	c.setState(StatePick)
	c.rearm(c.params.PickTime)
	c.chat(fmt.Sprintf("%s, pick your opponent with !pick <name>.", picker.Name))
	return launchStarted
}

func (c *Controller) launchTeams(ctx context.Context) launchOutcome {
	teamNum := c.params.TeamNum
	if c.params.Mode == ModeFootball {
		teamNum = 2
	} else if teamNum > 4 {
		teamNum = 4
	}
	if teamNum < 1 {
		teamNum = 1
	}

	candidates := inRoomPlayers(c.q)
	if len(candidates) < c.params.TeamSize*teamNum {
		return launchBlocked
	}

	c.teamFlip = rand.IntN(2) == 0
	gp := NewTeamsGamePlayers(teamNum)
	for i := 0; i < teamNum; i++ {
		var bucket int32
		if c.params.Mode == ModeFootball {
			if (i == 0) == c.teamFlip {
				bucket = 2
			} else {
				bucket = 3
			}
		} else {
			bucket = int32(2 + i)
		}
		captain := candidates[i]
		captain.Team = bucket
		c.q.Update(captain.Name, func(p *Player) { p.Team = bucket })
		gp.teams[i] = []Player{captain}
	}
	c.gp = gp

	c.driver.Execute(ctx, hostdriver.ScriptSendStartCountdown)
	c.setState(StatePick)
	c.rearm(c.params.PickTime)
	c.chat(fmt.Sprintf("%s, pick a teammate with !pick <name>.", gp.teams[0][0].Name))
	return launchStarted
}

func (c *Controller) launchFFA(ctx context.Context) launchOutcome {
	candidates := inRoomPlayers(c.q)
	if len(candidates) < c.params.FFAMin {
		return launchBlocked
	}
	if len(candidates) > c.params.FFAMax {
		candidates = candidates[:c.params.FFAMax]
	}

	for i := range candidates {
		candidates[i].Team = 1
		c.q.Update(candidates[i].Name, func(p *Player) { p.Team = 1 })
	}

	gp := NewFFAGamePlayers()
	gp.inGame = candidates
	c.gp = gp

	c.driver.Execute(ctx, hostdriver.ScriptSendStartCountdown)
	c.startMapSelection(ctx)
	return launchStarted
}

// startMapSelection implements spec §4.1.3.
func (c *Controller) startMapSelection(ctx context.Context) {
	if c.params.Mode == ModeFootball {
		c.setState(StateReady)
		c.rearm(c.params.ReadyTime)
		c.chat("Use !r to start.")
		return
	}

	c.mapStrikes = make([]bool, len(c.params.Maps))
	c.playerStrikes = make(map[string]int)

	if len(c.params.Maps) > 0 {
		idx := rand.IntN(len(c.params.Maps))
		c.mapStrikes[idx] = true
		c.driver.Execute(ctx, hostdriver.ScriptLoadMap, c.params.Maps[idx])
	}

	for _, p := range c.gp.Players() {
		p.ReadyCmd = false
	}
	c.driver.Execute(ctx, hostdriver.ScriptAllReadyReset)

	if c.params.StrikeCount <= 0 || len(c.params.Maps) < 2 {
		c.setState(StateReady)
		c.rearm(c.params.ReadyTime)
		c.chat("Use !r to start.")
		return
	}

	c.setState(StateMapSelection)
	c.rearm(c.params.StrikeTime)
	c.chat("Use !s to roll another map or use !r to start.")
}
