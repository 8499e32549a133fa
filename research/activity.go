package research

import "time"

// EntryKind tags an activity log entry with the event class it records.
type EntryKind string

const (
	EntryStarted             EntryKind = "started"
	EntryProgress            EntryKind = "progress"
	EntryStep                EntryKind = "step"
	EntryCompleted           EntryKind = "completed"
	EntryFailed              EntryKind = "failed"
	EntryError               EntryKind = "error"
	EntryConnected           EntryKind = "connected"
	EntryCancelled           EntryKind = "cancelled"
	EntryProtocolError       EntryKind = "protocol_error"
	EntryIgnoredPostTerminal EntryKind = "ignored_post_terminal"
)

// Entry is one row in the activity log. Percentage is only set for
// progress events and carries the value as reported, before any clamping.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	Kind       EntryKind `json:"kind"`
	Message    string    `json:"message"`
	Percentage *int      `json:"percentage,omitempty"`
}

// ActivityLog is a bounded FIFO of diagnostic entries. When full, each
// append evicts the oldest entry. It is not safe for concurrent use;
// the coordinator serializes all access.
type ActivityLog struct {
	capacity int
	entries  []Entry
}

// NewActivityLog creates a log holding at most capacity entries.
// A capacity below 1 falls back to a single slot.
func NewActivityLog(capacity int) *ActivityLog {
	if capacity < 1 {
		capacity = 1
	}
	return &ActivityLog{
		capacity: capacity,
		entries:  make([]Entry, 0, capacity),
	}
}

// Append adds an entry, evicting the oldest when at capacity
func (l *ActivityLog) Append(e Entry) {
	if len(l.entries) == l.capacity {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:l.capacity-1]
	}
	l.entries = append(l.entries, e)
}

// Len returns the number of retained entries
func (l *ActivityLog) Len() int {
	return len(l.entries)
}

// Capacity returns the maximum number of retained entries
func (l *ActivityLog) Capacity() int {
	return l.capacity
}

// Entries returns a copy of the retained entries, oldest first
func (l *ActivityLog) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Filter returns the retained entries matching any of the given kinds,
// oldest first.
func (l *ActivityLog) Filter(kinds ...EntryKind) []Entry {
	var out []Entry
	for _, e := range l.entries {
		for _, k := range kinds {
			if e.Kind == k {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
