package room

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/sgr-room/matchd/internal/hostdriver"
)

// splitChatLine splits a raw "<name>: <text>" chat line as returned by
// Driver.DrainChatMessages. The bot's own messages are assumed filtered by
// the host side, matching the "self-issued messages are ignored" contract
// of spec §6.
func splitChatLine(line string) (name, text string, ok bool) {
	i := strings.Index(line, ": ")
	if i < 0 {
		return "", "", false
	}
	return line[:i], line[i+2:], true
}

// handleChatLine dispatches one chat line against the command vocabulary of
// spec §6.
func (c *Controller) handleChatLine(ctx context.Context, line string) {
	name, text, ok := splitChatLine(line)
	if !ok || !strings.HasPrefix(text, "!") {
		return
	}

	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	args := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), fields[0]))

	switch cmd {
	case "!help", "!h", "!?":
		c.chat("Commands: !queue !pick <name> !strike !ready !reset !cancel !ping !discord")
	case "!ping":
		c.chat("Pong.")
	case "!discord", "!d":
		c.chat("Ask a moderator for the Discord invite.")
	case "!queue", "!q":
		c.cmdQueue()
	case "!pick", "!p":
		c.cmdPick(ctx, name, args)
	case "!strike", "!s":
		c.cmdStrike(ctx, name)
	case "!ready", "!r":
		c.cmdReady(ctx, name)
	case "!reset", "!re":
		c.cmdResetVote(ctx, name)
	case "!cancel", "!c":
		c.cmdCancelVote(ctx, name)
	}
}

func (c *Controller) cmdQueue() {
	var names []string
	for _, p := range c.q.Snapshot() {
		if p.InRoom {
			names = append(names, p.Name)
		}
	}
	if len(names) == 0 {
		c.chat("Queue is empty.")
		return
	}
	c.chat("Queue: " + strings.Join(names, ", "))
}

// cmdPick implements spec §4.1.2.
func (c *Controller) cmdPick(ctx context.Context, issuer, args string) {
	if c.state != StatePick {
		c.chat("It's not time to pick.")
		return
	}
	if issuer != c.currentPicker() {
		c.chat("It's not your turn to pick.")
		return
	}
	if args == "" {
		c.chat("Usage: !pick <name>")
		return
	}

	candidates := c.gp.TeamZero(c.q)
	names := make([]string, len(candidates))
	for i, p := range candidates {
		names[i] = p.Name
	}

	matches := Find(args, names)
	if len(matches) != 1 {
		c.chat("I couldn't find a match.")
		return
	}

	matchedName := matches[0]
	matched, ok := c.q.ByName(matchedName)
	if !ok {
		c.chat("I couldn't find a match.")
		return
	}

	switch c.gp.Kind() {
	case QueueSingles:
		team := int32(1)
		if c.params.Mode == ModeFootball {
			if c.teamFlip {
				team = 3
			} else {
				team = 2
			}
		}
		matched.Team = team
		c.q.Update(matched.Name, func(p *Player) { p.Team = team })
		c.gp.picked = &matched
		c.driver.Execute(ctx, hostdriver.ScriptChangeTeam, matched.ID, team)
		c.startMapSelection(ctx)

	case QueueTeams:
		idx := c.gp.pickerIdx
		team := int32(2 + idx)
		if c.params.Mode == ModeFootball {
			if (idx == 0) == c.teamFlip {
				team = 2
			} else {
				team = 3
			}
		}
		matched.Team = team
		c.q.Update(matched.Name, func(p *Player) { p.Team = team })
		c.gp.teams[idx] = append(c.gp.teams[idx], matched)
		c.driver.Execute(ctx, hostdriver.ScriptChangeTeam, matched.ID, team)

		if c.allTeamsFull() {
			c.startMapSelection(ctx)
			return
		}
		c.advancePicker()
		c.rearm(c.params.PickTime)
		c.chat(fmt.Sprintf("%s, pick a teammate with !pick <name>.", c.currentPicker()))
	}
}

func (c *Controller) allTeamsFull() bool {
	for _, team := range c.gp.teams {
		if len(team) < c.params.TeamSize {
			return false
		}
	}
	return true
}

func (c *Controller) advancePicker() {
	n := len(c.gp.teams)
	for i := 1; i <= n; i++ {
		idx := (c.gp.pickerIdx + i) % n
		if len(c.gp.teams[idx]) < c.params.TeamSize {
			c.gp.pickerIdx = idx
			return
		}
	}
}

// cmdStrike implements spec §4.1.4.
func (c *Controller) cmdStrike(ctx context.Context, issuer string) {
	if c.state != StateMapSelection {
		return
	}

	// double-strike guard: reject silently while still inside the +2s
	// padding a previous strike armed.
	if time.Until(c.deadline) > c.params.StrikeTime {
		return
	}

	p := c.gp.ByName(issuer)
	if p == nil || p.Team == 0 {
		c.chat("You must be in the game to strike.")
		return
	}

	if c.playerStrikes[issuer] >= c.params.StrikeCount {
		c.chat("You've used all of you're strikes")
		return
	}

	c.playerStrikes[issuer]++

	for _, gp := range c.gp.Players() {
		gp.ReadyCmd = false
	}
	c.driver.Execute(ctx, hostdriver.ScriptAllReadyReset)

	unstruck := c.unstruckMaps()
	if len(unstruck) > 0 {
		idx := unstruck[rand.IntN(len(unstruck))]
		c.mapStrikes[idx] = true
		c.driver.Execute(ctx, hostdriver.ScriptLoadMap, c.params.Maps[idx])
		unstruck = c.unstruckMaps()
	}

	allUsed := true
	for _, gp := range c.gp.Players() {
		if c.playerStrikes[gp.Name] < c.params.StrikeCount {
			allUsed = false
			break
		}
	}

	if allUsed || len(unstruck) < 2 {
		c.setState(StateReady)
		c.rearm(c.params.ReadyTime)
		c.chat("Use !r to start.")
		return
	}

	c.rearm(c.params.StrikeTime + 2*time.Second)
	remaining := c.params.StrikeCount - c.playerStrikes[issuer]
	c.chat(fmt.Sprintf("%s struck a map. They have %d strike(s) remaining.", issuer, remaining))
}

func (c *Controller) unstruckMaps() []int {
	var out []int
	for i, struck := range c.mapStrikes {
		if !struck {
			out = append(out, i)
		}
	}
	return out
}

// cmdReady implements spec §4.1.5.
func (c *Controller) cmdReady(ctx context.Context, issuer string) {
	if c.state != StateMapSelection && c.state != StateReady {
		return
	}
	p := c.gp.ByName(issuer)
	if p == nil {
		return
	}
	p.ReadyCmd = true
	c.checkReady(ctx, true)
}

// checkReady re-evaluates the ready count and starts the game once every
// in-game player is ready.
func (c *Controller) checkReady(ctx context.Context, viaCommand bool) {
	players := c.gp.Players()
	if len(players) == 0 {
		return
	}
	ready := 0
	for _, p := range players {
		if p.Ready || p.ReadyCmd {
			ready++
		}
	}
	if ready >= len(players) {
		c.driver.Execute(ctx, hostdriver.ScriptStartGame)
		c.setState(StateGameStarting)
		c.rearm(maxTimer)
		return
	}
	if viaCommand {
		c.chat(fmt.Sprintf("%d/%d players ready.", ready, len(players)))
	}
}

// cmdResetVote and cmdCancelVote implement the majority votes of spec
// §4.1.6. Only seated (in-game) players may vote, and each votes at most
// once.
func (c *Controller) cmdResetVote(ctx context.Context, issuer string) {
	if c.gp.ByName(issuer) == nil {
		return
	}
	if c.resetVotes == nil {
		c.resetVotes = make(map[string]bool)
	}
	c.resetVotes[issuer] = true

	if c.voteResolved(c.resetVotes) {
		c.resetVotes = nil
		c.cancelVotes = nil
		c.chat("Vote passed: restarting the game.")
		c.driver.Execute(ctx, hostdriver.ScriptAllReadyReset)
		c.driver.Execute(ctx, hostdriver.ScriptStartGame)
	}
}

func (c *Controller) cmdCancelVote(ctx context.Context, issuer string) {
	if c.gp.ByName(issuer) == nil {
		return
	}
	if c.cancelVotes == nil {
		c.cancelVotes = make(map[string]bool)
	}
	c.cancelVotes[issuer] = true

	if c.voteResolved(c.cancelVotes) {
		c.resetVotes = nil
		c.cancelVotes = nil
		c.chat("Vote passed: cancelling the game.")
		c.reset(ctx)
	}
}

func (c *Controller) voteResolved(votes map[string]bool) bool {
	eligible := c.gp.Count()
	if eligible == 0 {
		return false
	}
	return len(votes) > eligible/2
}
