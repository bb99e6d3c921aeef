package room

import (
	"context"

	"github.com/sgr-room/matchd/internal/hostdriver"
)

// onTransitionTimerExpired implements spec §4.1 "State transitions on timer
// expiry".
func (c *Controller) onTransitionTimerExpired(ctx context.Context) {
	switch c.state {
	case StateIdle:
		switch c.attemptLaunch(ctx) {
		case launchBlocked:
			c.rearm(c.params.IdleTime)
		case launchRetry:
			c.rearm(0)
		case launchStarted:
			// already re-armed by the launch path
		}

	case StatePick:
		c.kick(ctx, c.currentPicker())
		c.reset(ctx)

	case StateMapSelection:
		c.setState(StateReady)
		c.rearm(c.params.ReadyTime)
		c.chat("The current map has been selected. Use !r to start.")

	case StateReady:
		for _, p := range c.gp.Players() {
			if !p.Ready && !p.ReadyCmd {
				c.kick(ctx, p.Name)
			}
		}
		c.reset(ctx)

	case StateGameStarting:
		c.rearm(maxTimer)

	case StateInGame:
		c.onGameEnd(ctx, nil, false)
	}
}

// currentPicker returns the name of whichever player must act next in Pick.
func (c *Controller) currentPicker() string {
	switch c.gp.Kind() {
	case QueueSingles:
		if c.gp.picker != nil {
			return c.gp.picker.Name
		}
	case QueueTeams:
		if c.gp.pickerIdx < len(c.gp.teams) && len(c.gp.teams[c.gp.pickerIdx]) > 0 {
			return c.gp.teams[c.gp.pickerIdx][0].Name
		}
	}
	return ""
}

// kick removes name from the game and the host lobby. A no-op if name is
// empty (defensive against a malformed GamePlayers at the call site).
func (c *Controller) kick(ctx context.Context, name string) {
	if name == "" {
		return
	}
	if p, ok := c.q.ByName(name); ok {
		c.driver.Execute(ctx, hostdriver.ScriptKickPlayer, p.ID)
	}
	c.q.Remove(name)
}
