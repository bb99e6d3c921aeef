package leaderboard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeStore is an in-memory Store double: every named player starts
// unrated at settings.MeanRating, and TopPlayers calls are counted so tests
// can observe how many refreshes actually ran.
type fakeStore struct {
	settings Settings

	mu        sync.Mutex
	players   map[string]*PlayerRecord
	nextID    int64
	topCalls  int32
}

func newFakeStore(settings Settings) *fakeStore {
	return &fakeStore{settings: settings, players: make(map[string]*PlayerRecord)}
}

func (s *fakeStore) LoadSettings(ctx context.Context, id int64) (Settings, error) {
	return s.settings, nil
}

func (s *fakeStore) RunUpdate(ctx context.Context, id int64, fn func(tx UpdateTx) error) error {
	return fn(&fakeTx{store: s})
}

func (s *fakeStore) TopPlayers(ctx context.Context, id int64, limit int) ([]PlayerRecord, error) {
	atomic.AddInt32(&s.topCalls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PlayerRecord, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	return out, nil
}

func (s *fakeStore) CurrentSeason(ctx context.Context, id int64) (int, error) { return 1, nil }

func (s *fakeStore) SavedMessages(ctx context.Context, id int64) ([]int64, error) { return nil, nil }

func (s *fakeStore) SaveMessages(ctx context.Context, id int64, messageIDs []int64) error { return nil }

func (s *fakeStore) refreshCount() int32 { return atomic.LoadInt32(&s.topCalls) }

type fakeTx struct {
	store *fakeStore
}

func (tx *fakeTx) FetchOrCreatePlayers(ctx context.Context, lbID int64, names []string, settings Settings, today time.Time) ([]PlayerRecord, error) {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	out := make([]PlayerRecord, len(names))
	for i, name := range names {
		p, ok := tx.store.players[name]
		if !ok {
			tx.store.nextID++
			p = &PlayerRecord{
				ID:              tx.store.nextID,
				Name:            name,
				Rating:          settings.MeanRating,
				RatingDeviation: settings.UnratedDeviation * settings.RatingScale,
				DisplayRating:   settings.MeanRating,
				LastUpdated:     today,
			}
			tx.store.players[name] = p
		}
		out[i] = *p
	}
	return out, nil
}

func (tx *fakeTx) ApplyRatings(ctx context.Context, players []PlayerRecord) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for _, p := range players {
		cp := p
		tx.store.players[p.Name] = &cp
	}
	return nil
}

func (tx *fakeTx) SaveGame(ctx context.Context, game Game, teams []GameTeam) error { return nil }

// TestService_UpdateCoalescesWithinRefreshWindow is spec scenario 6: a
// second rating update arriving while a refresh is still rate-limited must
// not trigger a second immediate refresh; it only flags a deferred one.
func TestService_UpdateCoalescesWithinRefreshWindow(t *testing.T) {
	store := newFakeStore(Settings{MeanRating: 1500, RatingScale: 200, UnratedDeviation: 300})
	registry := NewRegistry(store, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h, err := registry.Acquire(ctx, 1)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer h.Release()

	if _, err := h.Update(ctx, [][]string{{"Alice"}, {"Bob"}}, []bool{false}); err != nil {
		t.Fatalf("first update failed: %v", err)
	}
	if _, err := h.Update(ctx, [][]string{{"Alice"}, {"Bob"}}, []bool{false}); err != nil {
		t.Fatalf("second update failed: %v", err)
	}

	// Give the Service's own goroutine a moment to run its post-reply
	// refresh bookkeeping before we inspect the fake store.
	time.Sleep(50 * time.Millisecond)

	if got := store.refreshCount(); got != 1 {
		t.Fatalf("expected exactly one refresh for two updates inside the rate-limit window, got %d", got)
	}
}
