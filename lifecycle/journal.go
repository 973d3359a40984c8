package lifecycle

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transition is one recorded status change of a unit.
type Transition struct {
	ID        string    `json:"id"`
	Unit      string    `json:"unit"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Timestamp time.Time `json:"timestamp"`

	// Legal is false when the change did not follow an edge of the state machine.
	Legal bool `json:"legal"`
}

// Journal is an in-memory, bounded record of status transitions indexed by unit.
// It is safe for concurrent use.
type Journal struct {
	mu       sync.RWMutex
	capacity int
	entries  []Transition
	index    map[string][]Transition
	illegal  []Transition
}

// DefaultJournalCapacity bounds the number of transitions kept when no
// capacity is given.
const DefaultJournalCapacity = 4096

// NewJournal creates a journal keeping at most capacity entries. Older entries
// are evicted first. A capacity <= 0 selects DefaultJournalCapacity.
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultJournalCapacity
	}
	return &Journal{
		capacity: capacity,
		index:    make(map[string][]Transition),
	}
}

// Record stores a status change and returns the stored entry.
func (j *Journal) Record(unit string, from, to Status) Transition {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	t := Transition{
		ID:        id.String(),
		Unit:      unit,
		From:      from,
		To:        to,
		Timestamp: time.Now(),
		Legal:     ValidTransition(from, to),
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(j.entries, t)
	j.index[unit] = append(j.index[unit], t)
	if !t.Legal {
		j.illegal = append(j.illegal, t)
	}
	if len(j.entries) > j.capacity {
		j.evictLocked(len(j.entries) - j.capacity)
	}
	return t
}

func (j *Journal) evictLocked(n int) {
	for _, old := range j.entries[:n] {
		history := j.index[old.Unit]
		if len(history) > 0 && history[0].ID == old.ID {
			history = history[1:]
		}
		if len(history) == 0 {
			delete(j.index, old.Unit)
		} else {
			j.index[old.Unit] = history
		}
	}
	j.entries = append([]Transition(nil), j.entries[n:]...)
}

// History returns the recorded transitions of one unit, oldest first.
func (j *Journal) History(unit string) []Transition {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]Transition(nil), j.index[unit]...)
}

// Since returns all transitions recorded after the given time.
func (j *Journal) Since(since time.Time) []Transition {
	j.mu.RLock()
	defer j.mu.RUnlock()

	filtered := make([]Transition, 0)
	for _, t := range j.entries {
		if t.Timestamp.After(since) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// Illegal returns every transition that did not follow the state machine.
// Illegal entries are kept even after eviction from the main log.
func (j *Journal) Illegal() []Transition {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]Transition(nil), j.illegal...)
}

// Len returns the number of retained transitions.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// Forget drops the history of a unit, used when a unit is unregistered.
func (j *Journal) Forget(unit string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	delete(j.index, unit)
	kept := j.entries[:0]
	for _, t := range j.entries {
		if t.Unit != unit {
			kept = append(kept, t)
		}
	}
	j.entries = kept
}
