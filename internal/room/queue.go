package room

import "time"

// queue holds the room's ordered, deduplicated-by-name player list. An
// entry with InRoom=false survives spotHold before being evicted, so a
// player who drops and reconnects quickly keeps their place in line.
type queue struct {
	entries []queueEntry
}

func newQueue() *queue {
	return &queue{}
}

// indexByName returns the index of the entry for name, or -1.
func (q *queue) indexByName(name string) int {
	for i := range q.entries {
		if q.entries[i].player.Name == name {
			return i
		}
	}
	return -1
}

// Upsert refreshes an existing entry for the snapshot player's name or
// inserts a new entry at the back. Returns true if this is a newly-joining
// entry (either brand new, or transitioning from InRoom=false to true).
func (q *queue) Upsert(now time.Time, snap Player) (joined bool) {
	if i := q.indexByName(snap.Name); i >= 0 {
		wasInRoom := q.entries[i].player.InRoom
		p := &q.entries[i].player
		p.ID = snap.ID
		p.Team = snap.Team
		p.InRoom = true
		q.entries[i].lastSeen = now
		return !wasInRoom
	}

	q.entries = append(q.entries, queueEntry{
		lastSeen: now,
		player: Player{
			ID:     snap.ID,
			Team:   snap.Team,
			Name:   snap.Name,
			InRoom: true,
		},
	})
	return true
}

// MarkAbsent flips InRoom=false for every entry whose name is not in
// present. Returns the names that transitioned from present to absent.
func (q *queue) MarkAbsent(present map[string]bool) []string {
	var left []string
	for i := range q.entries {
		if q.entries[i].player.InRoom && !present[q.entries[i].player.Name] {
			q.entries[i].player.InRoom = false
			left = append(left, q.entries[i].player.Name)
		}
	}
	return left
}

// EvictStale removes entries that have been out of the room longer than
// spotHold, relative to now.
func (q *queue) EvictStale(now time.Time) {
	kept := q.entries[:0]
	for _, e := range q.entries {
		if !e.player.InRoom && now.Sub(e.lastSeen) > spotHold {
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
}

// Len returns the number of queue entries (present or within grace).
func (q *queue) Len() int { return len(q.entries) }

// Snapshot returns a copy of every queued player, in order.
func (q *queue) Snapshot() []Player {
	out := make([]Player, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.player
	}
	return out
}

// ByName returns a copy of the player with the given name.
func (q *queue) ByName(name string) (Player, bool) {
	if i := q.indexByName(name); i >= 0 {
		return q.entries[i].player, true
	}
	return Player{}, false
}

// Update applies fn to the entry for name, if present.
func (q *queue) Update(name string, fn func(p *Player)) bool {
	if i := q.indexByName(name); i >= 0 {
		fn(&q.entries[i].player)
		return true
	}
	return false
}

// Remove deletes the entry for name, if present.
func (q *queue) Remove(name string) bool {
	if i := q.indexByName(name); i >= 0 {
		q.entries = append(q.entries[:i], q.entries[i+1:]...)
		return true
	}
	return false
}

// PushBack moves the named entry to the end of the queue, preserving its
// data. No-op if the name isn't queued.
func (q *queue) PushBack(name string) {
	if i := q.indexByName(name); i >= 0 {
		e := q.entries[i]
		q.entries = append(q.entries[:i], q.entries[i+1:]...)
		q.entries = append(q.entries, e)
	}
}

// InRoomCount returns the number of entries currently present.
func (q *queue) InRoomCount() int {
	n := 0
	for _, e := range q.entries {
		if e.player.InRoom {
			n++
		}
	}
	return n
}
