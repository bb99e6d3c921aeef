package room

import (
	"context"
	"fmt"
	"time"

	"github.com/sgr-room/matchd/internal/hostdriver"
)

// onUpdateTick implements spec §4.1.7 (player snapshot loop), the warning
// table of §4.1, and the lobby-visibility edge detection of §4.1.6.
func (c *Controller) onUpdateTick(ctx context.Context) {
	c.syncPlayers(ctx)
	c.emitWarnings()
	c.checkLobbyEdge(ctx)
	c.drainIncomingChat(ctx)
}

// syncPlayers reconciles the queue (and, while a game is seated, the
// GamePlayers copies) against the host's live player snapshot.
func (c *Controller) syncPlayers(ctx context.Context) {
	snap, err := c.driver.Players(ctx)
	if err != nil {
		return // transient host error: drop this tick, no state mutation
	}

	now := time.Now()
	present := make(map[string]bool, len(snap))
	reevaluateReady := false

	for _, sp := range snap {
		present[sp.Name] = true

		joined := c.q.Upsert(now, Player{ID: sp.ID, Team: sp.Team, Name: sp.Name})
		if joined {
			c.onPlayerJoin(ctx, sp.Name)
		}

		if seated := c.gp.ByName(sp.Name); seated != nil {
			seated.ID = sp.ID
			seated.Team = sp.Team
			wasReady := seated.Ready
			seated.Ready = sp.Ready
			if sp.Ready && !wasReady && (c.state == StateMapSelection || c.state == StateReady) {
				reevaluateReady = true
			}
		}
	}

	for _, name := range c.q.MarkAbsent(present) {
		c.onPlayerLeave(ctx, name)
	}
	c.q.EvictStale(now)

	if reevaluateReady {
		c.checkReady(ctx, false)
	}
}

// inGameWarningThresholds builds the strictly-decreasing threshold list for
// InGame reminders: half of game_time, then 60s/30s/10s, each kept only if
// it is less than the previous accepted threshold (spec §4.1).
func inGameWarningThresholds(gameTime time.Duration) []time.Duration {
	candidates := []time.Duration{gameTime / 2, 60 * time.Second, 30 * time.Second, 10 * time.Second}
	var out []time.Duration
	prev := time.Duration(1<<63 - 1)
	for _, cand := range candidates {
		if cand > 0 && cand < prev {
			out = append(out, cand)
			prev = cand
		}
	}
	return out
}

// checkWarnings walks a strictly-decreasing threshold list, emitting msg
// once per crossing and advancing warningStep monotonically.
func (c *Controller) checkWarnings(thresholds []time.Duration, msg func(remaining time.Duration) string) {
	remaining := time.Until(c.deadline)
	if remaining < 0 {
		remaining = 0
	}
	for c.warningStep < len(thresholds) && remaining < thresholds[c.warningStep] {
		c.chat(msg(remaining))
		c.warningStep++
	}
}

func (c *Controller) emitWarnings() {
	switch c.state {
	case StatePick:
		c.checkWarnings([]time.Duration{c.params.PickTime / 2}, func(remaining time.Duration) string {
			return fmt.Sprintf("%s left to pick.", remaining.Round(time.Second))
		})
	case StateReady:
		c.checkWarnings([]time.Duration{c.params.ReadyTime / 2}, func(remaining time.Duration) string {
			return fmt.Sprintf("Use !r to ready up, %s left.", remaining.Round(time.Second))
		})
	case StateInGame:
		c.checkWarnings(inGameWarningThresholds(c.params.GameTime), func(remaining time.Duration) string {
			return fmt.Sprintf("%s left.", remaining.Round(time.Second))
		})
	}
}

// checkLobbyEdge detects the host's lobby-visible flag transition that
// drives GameStarting -> InGame and InGame -> game-end (spec §4.1.6).
func (c *Controller) checkLobbyEdge(ctx context.Context) {
	switch c.state {
	case StateGameStarting:
		res, err := c.driver.Execute(ctx, hostdriver.ScriptLobbyVisible)
		if err != nil {
			return
		}
		if visible, ok := res.(bool); ok && !visible {
			c.setState(StateInGame)
			c.rearm(c.params.GameTime)
		}

	case StateInGame:
		res, err := c.driver.Execute(ctx, hostdriver.ScriptLobbyVisible)
		if err != nil {
			return
		}
		if visible, ok := res.(bool); ok && visible {
			c.onGameEnd(ctx, nil, false)
		}
	}
}

// drainIncomingChat reads and dispatches any chat commands accumulated
// since the last tick.
func (c *Controller) drainIncomingChat(ctx context.Context) {
	lines, err := c.driver.DrainChatMessages(ctx)
	if err != nil {
		return
	}
	for _, line := range lines {
		c.handleChatLine(ctx, line)
	}
}
