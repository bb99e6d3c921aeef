package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// registryEntry pairs a live Service with the refcount gating its
// shutdown. The count, and the decision to close svc.stop, are only ever
// touched under Registry.mu, so Acquire and release can never interleave
// (a Handle can't be handed out for a Service that has already started
// tearing down).
type registryEntry struct {
	svc      *Service
	refCount int
}

// Registry hands out shared Handles to leaderboard Services, starting a
// Service's goroutine on first acquisition and letting it die once its
// last Handle is released (spec §9: rooms share one Leaderboard Service
// per id via a weak reference, upgraded to a strong handle for the
// duration of one Update call's room membership).
type Registry struct {
	store Store
	sink  MatchSink
	log   *slog.Logger

	mu   sync.Mutex
	live map[int64]*registryEntry
}

func NewRegistry(store Store, sink MatchSink, log *slog.Logger) *Registry {
	return &Registry{
		store: store,
		sink:  sink,
		log:   log,
		live:  make(map[int64]*registryEntry),
	}
}

// Acquire returns a Handle to the Service for id, starting it if this is
// the first live reference. The caller must call Handle.Release when done
// holding it (typically: for the lifetime of one room).
func (r *Registry) Acquire(ctx context.Context, id int64) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.live[id]
	if !ok {
		settings, err := r.store.LoadSettings(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("leaderboard: load settings %d: %w", id, err)
		}
		svc := newService(id, settings, r.store, r.sink, r.log)
		entry = &registryEntry{svc: svc}
		r.live[id] = entry
		go func() {
			// The Service ends when its last Handle is released, not
			// when the acquiring caller's ctx is cancelled.
			svc.run(context.WithoutCancel(ctx))
			r.mu.Lock()
			if r.live[id] == entry {
				delete(r.live, id)
			}
			r.mu.Unlock()
		}()
	}
	entry.refCount++
	return &Handle{registry: r, id: id, svc: entry.svc}, nil
}

// release drops one reference to id's Service. At zero it removes the
// entry and closes the Service's stop channel, all under r.mu so a
// concurrent Acquire either sees the entry before this runs (and gets a
// valid extra reference) or doesn't see it at all (and starts a fresh
// Service) — never a Handle onto a Service that's already shutting down.
func (r *Registry) release(id int64, svc *Service) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.live[id]
	if !ok || entry.svc != svc {
		return
	}
	entry.refCount--
	if entry.refCount <= 0 {
		delete(r.live, id)
		close(svc.stop)
	}
}
