package queue

import (
	"context"
	"time"
)

// Entry is an advisory projection of a reminder into the dispatch queue.
// It is not authoritative: the sweeper must reconcile every popped entry
// against the durable store before acting, because the task may have been
// completed, deleted or had its reminder disabled after enqueue.
type Entry struct {
	ReminderID int64     `json:"reminder_id"`
	OwnerID    int64     `json:"owner_id"`
	TaskID     int64     `json:"task_id"`
	FireAt     time.Time `json:"-"`
}

// Queue is a time-ordered, deduplicated set of pending reminder entries.
// It is a dispatch-priority index over the durable store, not a source of
// truth; losing its contents loses dispatch hints, not reminders.
type Queue interface {
	// Enqueue inserts the entry. Enqueueing an identical entry (same
	// reminder, owner, task and fire time) is a no-op, so re-registering the
	// same logical reminder is harmless.
	Enqueue(ctx context.Context, entry Entry) error

	// PopDue returns all entries with a fire time at or before now, ascending
	// by fire time. Entries are not removed; removal is a separate explicit
	// step so the caller can act before committing the removal.
	PopDue(ctx context.Context, now time.Time) ([]Entry, error)

	// Remove deletes the exact entry. Removing an absent entry is a no-op.
	Remove(ctx context.Context, entry Entry) error

	// Count returns the number of queued entries. Observability hook.
	Count(ctx context.Context) (int, error)
}
