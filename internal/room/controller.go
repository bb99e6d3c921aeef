package room

import (
	"context"
	"log/slog"
	"time"

	"github.com/sgr-room/matchd/internal/hostdriver"
)

const (
	updateInterval    = 250 * time.Millisecond
	chatClearInterval = 10 * time.Minute
	// maxTimer stands in for an unbounded wait (GameStarting waits for the
	// host's lobby->game edge, not a deadline).
	maxTimer = 365 * 24 * time.Hour
)

// controlMsg is sent over a Controller's mailbox (spec §4.1 "Public control
// contract").
type controlMsg int

const (
	ctrlClose controlMsg = iota
	ctrlForceClose
)

// LeaderboardClient is the narrow interface a Room Controller needs from a
// Leaderboard Service's handle: request a rating update and get back the
// rendered summary. Kept separate from the leaderboard package so room
// never imports it directly — leaderboard.Handle satisfies this.
type LeaderboardClient interface {
	Update(ctx context.Context, teams [][]string, ties []bool) (string, error)
	Release()
}

// Controller drives one room from Idle through teardown. One goroutine per
// Controller; it exclusively owns its Driver, queue, and GamePlayers (spec
// §5) — nothing outside this package touches that state concurrently.
type Controller struct {
	log    *slog.Logger
	driver hostdriver.Driver
	lb     LeaderboardClient // nil if this room has no leaderboard

	params Parameters

	state       State
	q           *queue
	gp          GamePlayers
	teamFlip    bool
	closing     bool
	warningStep int

	mapStrikes    []bool
	playerStrikes map[string]int

	readyVotes  map[string]bool
	resetVotes  map[string]bool
	cancelVotes map[string]bool

	throttle *chatThrottle

	mailbox chan controlMsg

	// timer is the single resettable transition_timer (spec §9: "reset, not
	// cancelled"). Only valid while run is executing.
	timer *time.Timer
	// deadline is when timer is next due to fire, recorded by rearm so
	// warning emission can compute a remaining-time figure without
	// inspecting the timer itself.
	deadline time.Time
}

// Handle is the external, coarse control surface a Supervisor holds for a
// running room (spec §4.1 "Public control contract").
type Handle struct {
	mailbox chan controlMsg
	done    chan struct{}
}

// Close requests a graceful shutdown: if the room is Idle it terminates
// within about a second; otherwise it finishes the current cycle and
// terminates at the next reset.
func (h *Handle) Close() {
	select {
	case h.mailbox <- ctrlClose:
	case <-h.done:
	}
}

// ForceClose terminates the room immediately, without waiting for a
// natural reset point.
func (h *Handle) ForceClose() {
	select {
	case h.mailbox <- ctrlForceClose:
	case <-h.done:
	}
}

// Done is closed once the Controller's run loop has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// New constructs a Controller for an about-to-open room. Call Start to
// launch its goroutine and obtain a Handle.
func New(params Parameters, driver hostdriver.Driver, lb LeaderboardClient, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		log:           log,
		driver:        driver,
		lb:            lb,
		params:        params,
		state:         StateIdle,
		q:             newQueue(),
		gp:            emptyGamePlayers(params.Queue, params.TeamNum),
		playerStrikes: make(map[string]int),
		throttle:      newChatThrottle(),
		mailbox:       make(chan controlMsg, 4),
	}
}

func emptyGamePlayers(kind QueueKind, teamNum int) GamePlayers {
	switch kind {
	case QueueTeams:
		return NewTeamsGamePlayers(teamNum)
	case QueueFFA:
		return NewFFAGamePlayers()
	default:
		return NewSinglesGamePlayers()
	}
}

// Start launches the Controller's goroutine and returns a Handle to it.
func (c *Controller) Start(ctx context.Context) *Handle {
	h := &Handle{mailbox: c.mailbox, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		c.run(ctx)
	}()
	return h
}

// run is the single cooperative loop described in spec §4.1 "Periodic
// work": a select over five sources, each ticking independently.
func (c *Controller) run(ctx context.Context) {
	c.timer = time.NewTimer(c.params.IdleTime)
	defer c.timer.Stop()

	updateTicker := time.NewTicker(updateInterval)
	defer updateTicker.Stop()

	chatTicker := time.NewTicker(chatRefillPeriod)
	defer chatTicker.Stop()

	chatClearTicker := time.NewTicker(chatClearInterval)
	defer chatClearTicker.Stop()

	defer func() {
		if c.lb != nil {
			c.lb.Release()
		}
		c.driver.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-c.mailbox:
			if !ok {
				c.driver.Chat(ctx, "Room is shutting down.")
				return
			}
			switch msg {
			case ctrlForceClose:
				c.driver.Chat(ctx, "Room is shutting down.")
				return
			case ctrlClose:
				if c.state == StateIdle {
					c.driver.Chat(ctx, "Room is closing.")
					return
				}
				c.closing = true
			}

		case <-c.timer.C:
			c.onTransitionTimerExpired(ctx)

		case <-updateTicker.C:
			c.onUpdateTick(ctx)

		case <-chatTicker.C:
			c.throttle.Refill()
			c.throttle.Drain(ctx, chatSink(c.driver))

		case <-chatClearTicker.C:
			c.driver.Execute(ctx, hostdriver.ScriptClearChat)
		}

		if c.closing && c.state == StateIdle {
			c.driver.Chat(ctx, "Room is closing.")
			return
		}
	}
}

// rearm re-arms the shared transition_timer to fire after d. Timers are
// reset, never recreated (spec §9).
func (c *Controller) rearm(d time.Duration) {
	if !c.timer.Stop() {
		select {
		case <-c.timer.C:
		default:
		}
	}
	c.timer.Reset(d)
	c.deadline = time.Now().Add(d)
}

// setState moves the room into a new state and resets the warning-emission
// step (spec §4.1: "reset to 0 on every state transition").
func (c *Controller) setState(state State) {
	c.state = state
	c.warningStep = 0
}

func (c *Controller) chat(msg string) {
	c.throttle.Enqueue(msg)
}
