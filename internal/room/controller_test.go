package room

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sgr-room/matchd/internal/hostdriver"
)

func newTestController(params Parameters, driver hostdriver.Driver, lb LeaderboardClient) *Controller {
	c := New(params, driver, lb, nil)
	// run normally creates the transition timer; these tests drive the
	// state-machine methods directly, so give rearm a timer to reset.
	c.timer = time.NewTimer(maxTimer)
	return c
}

func seedQueue(c *Controller, names ...string) {
	now := time.Now()
	for i, name := range names {
		c.q.Upsert(now, Player{ID: int32(i + 1), Name: name, InRoom: true})
	}
}

func pendingChat(c *Controller) string {
	return strings.Join(c.throttle.pending, "\n")
}

// TestLaunchSingles_TwoPlayers is spec scenario 1: two queued players launch
// straight into map selection with one map already struck.
func TestLaunchSingles_TwoPlayers(t *testing.T) {
	params := Defaults()
	params.Queue = QueueSingles
	params.Mode = ModeSimple
	params.Maps = []string{"a", "b", "c"}

	driver := hostdriver.NewFake()
	c := newTestController(params, driver, nil)
	seedQueue(c, "Alice", "Bob")

	ctx := context.Background()
	if outcome := c.attemptLaunch(ctx); outcome != launchStarted {
		t.Fatalf("expected launchStarted, got %v", outcome)
	}

	if c.state != StateMapSelection {
		t.Fatalf("expected StateMapSelection, got %v", c.state)
	}
	if c.gp.picker == nil || c.gp.picker.Name != "Alice" {
		t.Fatalf("expected Alice as picker, got %+v", c.gp.picker)
	}
	if c.gp.picked == nil || c.gp.picked.Name != "Bob" {
		t.Fatalf("expected Bob as picked, got %+v", c.gp.picked)
	}

	struckCount := 0
	for _, s := range c.mapStrikes {
		if s {
			struckCount++
		}
	}
	if struckCount != 1 {
		t.Fatalf("expected exactly one map pre-struck, got %d", struckCount)
	}

	if !strings.Contains(pendingChat(c), "Use !s to roll another map or use !r to start.") {
		t.Fatalf("expected strike prompt in chat, got %q", pendingChat(c))
	}
}

// TestLaunchSingles_SoloPick_TimeoutKicksPicker is spec scenario 2: with
// three queued players the first becomes picker and the room goes to Pick
// instead of straight to map selection, then the transition timer kicks the
// picker who never picked and resets the room to Idle.
func TestLaunchSingles_SoloPick_TimeoutKicksPicker(t *testing.T) {
	params := Defaults()
	params.Queue = QueueSingles
	params.Mode = ModeSimple
	params.Maps = []string{"a", "b", "c"}

	driver := hostdriver.NewFake()
	c := newTestController(params, driver, nil)
	seedQueue(c, "Alice", "Bob", "Carol")

	ctx := context.Background()
	if outcome := c.attemptLaunch(ctx); outcome != launchStarted {
		t.Fatalf("expected launchStarted, got %v", outcome)
	}
	if c.state != StatePick {
		t.Fatalf("expected StatePick with three candidates, got %v", c.state)
	}

	// Simulate the 60s pick_time timer expiring with no !pick issued.
	c.onTransitionTimerExpired(ctx)

	if c.state != StateIdle {
		t.Fatalf("expected a timed-out picker to reset the room to Idle, got %v", c.state)
	}
	if _, ok := c.q.ByName("Alice"); ok {
		t.Fatal("expected the unpicked picker to be kicked from the queue")
	}
}

// TestCmdStrike_DoubleStrikeGuard is spec scenario 3: a second !s issued
// immediately after a strike (inside the +2s padding the strike just armed)
// is rejected outright.
func TestCmdStrike_DoubleStrikeGuard(t *testing.T) {
	params := Defaults()
	params.Queue = QueueSingles
	params.Mode = ModeSimple
	params.StrikeCount = 2
	params.Maps = []string{"a", "b", "c", "d", "e"}

	driver := hostdriver.NewFake()
	c := newTestController(params, driver, nil)
	seedQueue(c, "Alice", "Bob")

	ctx := context.Background()
	if outcome := c.attemptLaunch(ctx); outcome != launchStarted {
		t.Fatalf("expected launchStarted, got %v", outcome)
	}
	if c.state != StateMapSelection {
		t.Fatalf("expected StateMapSelection, got %v", c.state)
	}

	c.cmdStrike(ctx, "Alice")
	if c.state != StateMapSelection {
		t.Fatalf("expected to remain in StateMapSelection after one strike with maps left, got %v", c.state)
	}
	if c.playerStrikes["Alice"] != 1 {
		t.Fatalf("expected Alice's strike count at 1, got %d", c.playerStrikes["Alice"])
	}

	// Immediately strike again, well inside the 22s re-armed window.
	c.cmdStrike(ctx, "Bob")

	if c.state != StateMapSelection {
		t.Fatalf("expected the guard to leave state unchanged, got %v", c.state)
	}
	if c.playerStrikes["Alice"] != 1 {
		t.Fatalf("expected Alice's strike count unchanged at 1, got %d", c.playerStrikes["Alice"])
	}
	if c.playerStrikes["Bob"] != 0 {
		t.Fatalf("expected the double-strike guard to reject Bob's strike, got %d", c.playerStrikes["Bob"])
	}
}

type fakeLeaderboard struct {
	summary string
}

func (f *fakeLeaderboard) Update(ctx context.Context, teams [][]string, ties []bool) (string, error) {
	return f.summary, nil
}

func (f *fakeLeaderboard) Release() {}

// TestOnMidGameLeave_SinglesFootball is spec scenario 5: the loser of a
// Singles Football match leaves mid-game, forcing a game-end in the
// survivor's favor and moving both players to the back of the queue with
// the loser ahead of the winner.
func TestOnMidGameLeave_SinglesFootball(t *testing.T) {
	params := Defaults()
	params.Queue = QueueSingles
	params.Mode = ModeFootball

	driver := hostdriver.NewFake()
	lb := &fakeLeaderboard{summary: "Winner/Loser: Alice def. Bob"}
	c := newTestController(params, driver, lb)
	seedQueue(c, "Alice", "Bob")

	alice, _ := c.q.ByName("Alice")
	bob, _ := c.q.ByName("Bob")
	alice.Team = 2
	bob.Team = 3
	gp := NewSinglesGamePlayers()
	gp.picker, gp.picked = &alice, &bob
	c.gp = gp
	c.setState(StateInGame)

	ctx := context.Background()
	c.onMidGameLeave(ctx, "Bob")

	if c.state != StateIdle {
		t.Fatalf("expected the room to reset to Idle after game end, got %v", c.state)
	}
	if !strings.Contains(pendingChat(c), lb.summary) {
		t.Fatalf("expected the leaderboard summary posted to chat, got %q", pendingChat(c))
	}

	snap := c.q.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected both players still queued, got %d", len(snap))
	}
	if snap[0].Name != "Bob" || snap[1].Name != "Alice" {
		t.Fatalf("expected Bob ordered before Alice at the tail, got %v", names(snap))
	}
}
