package ecs

import (
	"sort"
	"sync"
	"time"
)

// EventKey identifies an event for batching and FIFO-per-key ordering.
type EventKey struct {
	Type string
	ID   string
}

// EventEntry is a single event inserted into the events table.
type EventEntry struct {
	Key        EventKey
	Event      any
	InsertedAt time.Time
}

// BatchEvents turns a time-ordered sequence of entries into an ordered list
// of batches where each batch contains at most one entry per key. Entries
// sharing a key land in distinct batches, earliest insertion first; entries
// with distinct keys inserted at the same instant land in the same batch.
//
// The algorithm: sort ascending by InsertedAt (stable, so same-instant
// entries keep their input relative order), then repeatedly peel the first
// occurrence of each distinct key out of the remainder into the next batch
// until nothing remains.
func BatchEvents(entries []EventEntry) [][]EventEntry {
	if len(entries) == 0 {
		return nil
	}

	sorted := make([]EventEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].InsertedAt.Before(sorted[j].InsertedAt)
	})

	var batches [][]EventEntry
	for len(sorted) > 0 {
		seen := make(map[EventKey]struct{}, len(sorted))
		batch := make([]EventEntry, 0, len(sorted))
		remainder := make([]EventEntry, 0, len(sorted))
		for _, e := range sorted {
			if _, ok := seen[e.Key]; ok {
				remainder = append(remainder, e)
				continue
			}
			seen[e.Key] = struct{}{}
			batch = append(batch, e)
		}
		batches = append(batches, batch)
		sorted = remainder
	}
	return batches
}

// EventStore is the external events table: writable by any task at any
// time within a frame, drained only by the frame driver at a frame boundary.
type EventStore interface {
	Insert(entry EventEntry)
	Drain() []EventEntry
}

// eventTable is the default, concurrency-safe EventStore implementation: a
// mutex-guarded slice, since event keys repeat.
type eventTable struct {
	mu      sync.Mutex
	entries []EventEntry
}

// NewEventStore constructs the default in-memory events table.
func NewEventStore() EventStore {
	return &eventTable{}
}

func (t *eventTable) Insert(entry EventEntry) {
	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.mu.Unlock()
}

func (t *eventTable) Drain() []EventEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	drained := t.entries
	t.entries = nil
	return drained
}

var _ EventStore = (*eventTable)(nil)
