// Package supervisor owns the process-wide registry of open rooms and
// shared leaderboard services, and the room-creation rate limit (spec
// §4.4).
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sgr-room/matchd/internal/hostdriver"
	"github.com/sgr-room/matchd/internal/leaderboard"
	"github.com/sgr-room/matchd/internal/room"
)

// createInterval is the minimum spacing between successive room creations.
const createInterval = 5 * time.Second

// maxCreateAttempts bounds make_client+make_room retries per spec §7
// "Room-creation failure".
const maxCreateAttempts = 10

// closeAllDeadline bounds close_all's graceful wait before escalating to
// ForceClose (spec §4.4).
const closeAllDeadline = 10 * time.Minute

// DriverFactory dials the game host and returns a ready Host Driver for a
// new room with the given parameters. Supplied by cmd/matchd, which knows
// the concrete bridge address.
type DriverFactory func(ctx context.Context, params room.Parameters) (hostdriver.Driver, error)

// LeaderboardLookup resolves a leaderboard abbreviation to its persistent
// id, used to key the shared Registry.
type LeaderboardLookup func(ctx context.Context, abbreviation string) (int64, error)

type openRoom struct {
	id     string
	handle *room.Handle
	lb     *leaderboard.Handle
}

// Supervisor is the process-wide owner of room handles (spec §3
// "Ownership").
type Supervisor struct {
	makeDriver DriverFactory
	lookupLB   LeaderboardLookup
	registry   *leaderboard.Registry
	log        *slog.Logger

	mu         sync.Mutex
	rooms      map[string]*openRoom
	lastCreate time.Time
}

func New(makeDriver DriverFactory, lookupLB LeaderboardLookup, registry *leaderboard.Registry, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		makeDriver: makeDriver,
		lookupLB:   lookupLB,
		registry:   registry,
		log:        log,
		rooms:      make(map[string]*openRoom),
	}
}

// OpenRoom implements spec §4.4 open_room: rate-limited, retried room
// creation, returning the new room's id once its Controller goroutine is
// running.
func (s *Supervisor) OpenRoom(ctx context.Context, params room.Parameters) (string, error) {
	if err := s.waitForCreateSlot(ctx); err != nil {
		return "", err
	}

	var lbHandle *leaderboard.Handle
	if params.LeaderboardAbbreviation != "" {
		id, err := s.lookupLB(ctx, params.LeaderboardAbbreviation)
		if err != nil {
			return "", fmt.Errorf("supervisor: resolve leaderboard %q: %w", params.LeaderboardAbbreviation, err)
		}
		lbHandle, err = s.registry.Acquire(ctx, id)
		if err != nil {
			return "", fmt.Errorf("supervisor: acquire leaderboard %q: %w", params.LeaderboardAbbreviation, err)
		}
	}

	driver, err := s.dialWithRetry(ctx, params)
	if err != nil {
		if lbHandle != nil {
			lbHandle.Release()
		}
		return "", fmt.Errorf("supervisor: open room %q: %w", params.Name, err)
	}

	var lb room.LeaderboardClient
	if lbHandle != nil {
		lb = lbHandle
	}
	ctrl := room.New(params, driver, lb, s.log)
	// The room outlives the request that opened it; it ends through its
	// Handle (Close/ForceClose), not when ctx is cancelled.
	handle := ctrl.Start(context.WithoutCancel(ctx))

	id := roomID(params)
	s.mu.Lock()
	s.rooms[id] = &openRoom{id: id, handle: handle, lb: lbHandle}
	s.mu.Unlock()

	go func() {
		<-handle.Done()
		s.mu.Lock()
		delete(s.rooms, id)
		s.mu.Unlock()
	}()

	return id, nil
}

func (s *Supervisor) dialWithRetry(ctx context.Context, params room.Parameters) (hostdriver.Driver, error) {
	var lastErr error
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		driver, err := s.makeDriver(ctx, params)
		if err == nil {
			return driver, nil
		}
		lastErr = err
		s.log.Warn("room creation attempt failed", "room", params.Name, "attempt", attempt+1, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil, fmt.Errorf("exhausted %d attempts: %w", maxCreateAttempts, lastErr)
}

func (s *Supervisor) waitForCreateSlot(ctx context.Context) error {
	s.mu.Lock()
	wait := createInterval - time.Since(s.lastCreate)
	if wait < 0 {
		wait = 0
	}
	s.lastCreate = time.Now().Add(wait)
	s.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func roomID(params room.Parameters) string {
	return fmt.Sprintf("%s-%d", params.Name, time.Now().UnixNano())
}

// CloseAll implements spec §4.4 close_all: Close every room, wait up to
// closeAllDeadline, then ForceClose any stragglers.
func (s *Supervisor) CloseAll(ctx context.Context) {
	s.mu.Lock()
	handles := make([]*room.Handle, 0, len(s.rooms))
	for _, r := range s.rooms {
		handles = append(handles, r.handle)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}

	deadline := time.NewTimer(closeAllDeadline)
	defer deadline.Stop()

	for _, h := range handles {
		select {
		case <-h.Done():
		case <-deadline.C:
			s.ForceCloseAll()
			return
		case <-ctx.Done():
			return
		}
	}
}

// ForceCloseAll implements spec §4.4 force_close_all: ForceClose every
// room and drop the registry immediately.
func (s *Supervisor) ForceCloseAll() {
	s.mu.Lock()
	handles := make([]*room.Handle, 0, len(s.rooms))
	for id, r := range s.rooms {
		handles = append(handles, r.handle)
		delete(s.rooms, id)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.ForceClose()
	}
}

// RoomIDs returns the ids of currently open rooms, for the admin surface.
func (s *Supervisor) RoomIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	return ids
}
