package ecs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBatchEventsOneKeyPerBatch(t *testing.T) {
	base := time.Unix(0, 0)
	entries := []EventEntry{
		{Key: EventKey{Type: "damage", ID: "e1"}, Event: 1, InsertedAt: base},
		{Key: EventKey{Type: "damage", ID: "e1"}, Event: 2, InsertedAt: base.Add(time.Millisecond)},
		{Key: EventKey{Type: "damage", ID: "e2"}, Event: 3, InsertedAt: base.Add(2 * time.Millisecond)},
	}

	batches := BatchEvents(entries)
	require.Len(t, batches, 2)
	require.Len(t, batches[0], 2, "first batch should hold one entry per distinct key")

	seen := make(map[EventKey]struct{})
	for _, e := range batches[0] {
		_, dup := seen[e.Key]
		require.False(t, dup, "duplicate key %v within a single batch", e.Key)
		seen[e.Key] = struct{}{}
	}

	require.Len(t, batches[1], 1)
	require.Equal(t, 2, batches[1][0].Event, "expected the second (e1, event 2) entry deferred to batch 1")
}

func TestBatchEventsSameInstantDistinctKeysShareBatch(t *testing.T) {
	now := time.Unix(100, 0)
	entries := []EventEntry{
		{Key: EventKey{Type: "spawn", ID: "a"}, Event: "a", InsertedAt: now},
		{Key: EventKey{Type: "spawn", ID: "b"}, Event: "b", InsertedAt: now},
	}

	batches := BatchEvents(entries)
	require.Len(t, batches, 1, "distinct keys at the same instant should share a batch")
	require.Len(t, batches[0], 2)
}

func TestBatchEventsEmpty(t *testing.T) {
	require.Nil(t, BatchEvents(nil))
}

func TestEventStoreInsertDrainResets(t *testing.T) {
	store := NewEventStore()
	store.Insert(EventEntry{Key: EventKey{Type: "x", ID: "1"}})
	store.Insert(EventEntry{Key: EventKey{Type: "x", ID: "2"}})

	drained := store.Drain()
	require.Len(t, drained, 2)

	again := store.Drain()
	require.Empty(t, again, "drain should reset the store")
}
