package room

import (
	"testing"
	"time"
)

func TestQueue_UpsertThenInRoomCount(t *testing.T) {
	q := newQueue()
	now := time.Now()

	if joined := q.Upsert(now, Player{ID: 1, Name: "alice"}); !joined {
		t.Fatal("expected a brand new entry to report joined=true")
	}
	if joined := q.Upsert(now, Player{ID: 1, Name: "alice"}); joined {
		t.Fatal("expected re-upserting an already-present player to report joined=false")
	}
	if q.InRoomCount() != 1 {
		t.Fatalf("expected 1 in-room player, got %d", q.InRoomCount())
	}
}

func TestQueue_MarkAbsentThenEvictStale(t *testing.T) {
	q := newQueue()
	now := time.Now()
	q.Upsert(now, Player{ID: 1, Name: "alice"})

	left := q.MarkAbsent(map[string]bool{})
	if len(left) != 1 || left[0] != "alice" {
		t.Fatalf("expected alice to be marked absent, got %v", left)
	}
	if q.InRoomCount() != 0 {
		t.Fatalf("expected 0 in-room players after MarkAbsent, got %d", q.InRoomCount())
	}

	// Still within spotHold: not evicted yet.
	q.EvictStale(now.Add(spotHold - time.Second))
	if q.Len() != 1 {
		t.Fatalf("expected entry to survive within spotHold, len=%d", q.Len())
	}

	// Past spotHold: evicted.
	q.EvictStale(now.Add(spotHold + time.Second))
	if q.Len() != 0 {
		t.Fatalf("expected entry evicted past spotHold, len=%d", q.Len())
	}
}

func TestQueue_ReappearingBeforeEvictionKeepsPosition(t *testing.T) {
	q := newQueue()
	now := time.Now()
	q.Upsert(now, Player{ID: 1, Name: "alice"})
	q.Upsert(now, Player{ID: 2, Name: "bob"})

	// bob drops, then reconnects before spotHold elapses.
	q.MarkAbsent(map[string]bool{"alice": true})
	q.Upsert(now.Add(time.Second), Player{ID: 3, Name: "bob"})
	q.EvictStale(now.Add(time.Second))

	snap := q.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected bob to keep his queue slot, got %d entries", len(snap))
	}
	if snap[0].Name != "alice" || snap[1].Name != "bob" {
		t.Fatalf("expected reconnecting bob to retain his original position, got %v", names(snap))
	}
}

func TestQueue_PushBackMovesToEnd(t *testing.T) {
	q := newQueue()
	now := time.Now()
	q.Upsert(now, Player{ID: 1, Name: "alice"})
	q.Upsert(now, Player{ID: 2, Name: "bob"})

	q.PushBack("alice")
	snap := q.Snapshot()
	if snap[0].Name != "bob" || snap[1].Name != "alice" {
		t.Fatalf("expected [bob alice] after PushBack, got %v", names(snap))
	}
}

func names(players []Player) []string {
	out := make([]string, len(players))
	for i, p := range players {
		out[i] = p.Name
	}
	return out
}
