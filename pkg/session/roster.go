package session

import (
	"sort"
	"sync"

	"github.com/inkwell-notes/inkwell/pkg/wire"
)

// Tracker holds the set of participants currently connected to a note
// channel. The set is always replaced wholesale from the last server
// snapshot and never patched locally.
type Tracker struct {
	mu      sync.Mutex
	current map[int64]string
}

func NewTracker() *Tracker {
	return &Tracker{current: map[int64]string{}}
}

// ReplaceFrom discards the tracked roster and copies the snapshot in.
func (t *Tracker) ReplaceFrom(snapshot wire.Roster) {
	next := make(map[int64]string, len(snapshot))
	for id, name := range snapshot {
		next[id] = name
	}
	t.mu.Lock()
	t.current = next
	t.mu.Unlock()
}

// Count reports the number of tracked participants.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.current)
}

// List returns the tracked participants sorted by id. The ordering is a
// display convenience only; it carries no protocol meaning and does not
// persist across snapshots.
func (t *Tracker) List() []wire.Participant {
	t.mu.Lock()
	out := make([]wire.Participant, 0, len(t.current))
	for id, name := range t.current {
		out = append(out, wire.Participant{ID: id, Name: name})
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
