package research

import (
	"fmt"
	"testing"
	"time"
)

func TestActivityLog_BoundedEviction(t *testing.T) {
	const capacity = 50
	const overflow = 7

	log := NewActivityLog(capacity)
	for i := 0; i < capacity+overflow; i++ {
		log.Append(Entry{
			Timestamp: time.Unix(int64(i), 0),
			Kind:      EntryProgress,
			Message:   fmt.Sprintf("entry-%d", i),
		})
	}

	entries := log.Entries()
	if len(entries) != capacity {
		t.Fatalf("expected exactly %d retained entries, got %d", capacity, len(entries))
	}
	if entries[0].Message != fmt.Sprintf("entry-%d", overflow) {
		t.Fatalf("oldest retained entry should be entry-%d, got %s", overflow, entries[0].Message)
	}
	if entries[capacity-1].Message != fmt.Sprintf("entry-%d", capacity+overflow-1) {
		t.Fatalf("newest entry wrong: %s", entries[capacity-1].Message)
	}
}

func TestActivityLog_PreservesArrivalOrder(t *testing.T) {
	log := NewActivityLog(10)
	// Timestamps deliberately out of order; the log orders by arrival.
	log.Append(Entry{Timestamp: time.Unix(100, 0), Kind: EntryProgress, Message: "first"})
	log.Append(Entry{Timestamp: time.Unix(50, 0), Kind: EntryProgress, Message: "second"})

	entries := log.Entries()
	if entries[0].Message != "first" || entries[1].Message != "second" {
		t.Fatalf("expected arrival order preserved, got %+v", entries)
	}
}

func TestActivityLog_FilterIsReadOnlyProjection(t *testing.T) {
	log := NewActivityLog(10)
	log.Append(Entry{Kind: EntryStarted, Message: "a"})
	log.Append(Entry{Kind: EntryProgress, Message: "b"})
	log.Append(Entry{Kind: EntryProtocolError, Message: "c"})
	log.Append(Entry{Kind: EntryProgress, Message: "d"})

	filtered := log.Filter(EntryStarted, EntryProgress)
	if len(filtered) != 3 {
		t.Fatalf("expected 3 filtered entries, got %d", len(filtered))
	}
	if filtered[0].Message != "a" || filtered[1].Message != "b" || filtered[2].Message != "d" {
		t.Fatalf("filter must preserve order, got %+v", filtered)
	}
	if log.Len() != 4 {
		t.Fatalf("filter must not mutate the log, len=%d", log.Len())
	}
}

func TestActivityLog_EntriesReturnsCopy(t *testing.T) {
	log := NewActivityLog(5)
	log.Append(Entry{Kind: EntryStarted, Message: "original"})

	entries := log.Entries()
	entries[0].Message = "mutated"

	if log.Entries()[0].Message != "original" {
		t.Fatal("mutating a snapshot must not affect the log")
	}
}
