package queue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// scoreBytes is the length of the big-endian fire-time prefix on every key.
const scoreBytes = 8

// BadgerQueue implements Queue over an embedded BadgerDB. Each entry is one
// key: an 8-byte big-endian unix-second score followed by the canonical JSON
// payload. Badger iterates keys in byte order, so a forward scan bounded by
// the score prefix yields entries ascending by fire time, and an identical
// payload at an identical score collapses into a single key.
type BadgerQueue struct {
	db     *badger.DB
	logger *slog.Logger
}

// entryPayload is the serialized form of an Entry. The fire time travels as
// unix seconds so encoding is deterministic regardless of the sub-second
// precision the timestamp arrived with.
type entryPayload struct {
	ReminderID int64 `json:"reminder_id"`
	OwnerID    int64 `json:"owner_id"`
	TaskID     int64 `json:"task_id"`
	FireAt     int64 `json:"fire_at"`
}

// NewBadgerQueue creates a queue over an already-open Badger database.
// The caller owns the database lifecycle.
func NewBadgerQueue(db *badger.DB, logger *slog.Logger) *BadgerQueue {
	return &BadgerQueue{
		db:     db,
		logger: logger.With("component", "reminder_queue"),
	}
}

// Config holds settings for opening the queue's backing store.
type Config struct {
	// Path is the directory for the Badger files. Ignored when InMemory is true.
	Path string

	// InMemory keeps the queue off disk. Used in tests.
	InMemory bool

	// Logger receives Badger's internal log output. Nil disables it.
	Logger *slog.Logger
}

// Open opens the queue's backing Badger database.
func Open(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("queue path is required for a persistent queue")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue storage: %w", err)
	}

	return db, nil
}

// Enqueue inserts the entry, or does nothing if the identical entry is
// already present.
func (q *BadgerQueue) Enqueue(ctx context.Context, entry Entry) error {
	key, err := encodeKey(entry)
	if err != nil {
		return err
	}

	err = q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, nil)
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue reminder %d: %w", entry.ReminderID, err)
	}

	q.logger.Debug("reminder enqueued",
		"reminder_id", entry.ReminderID,
		"fire_at", entry.FireAt.UTC())
	return nil
}

// PopDue returns all entries with a fire time at or before now, ascending by
// fire time. Undecodable keys are logged and skipped; a corrupt entry must
// never take the sweep loop down.
func (q *BadgerQueue) PopDue(ctx context.Context, now time.Time) ([]Entry, error) {
	bound := uint64(now.Unix())

	var due []Entry
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			if len(key) < scoreBytes {
				q.logger.Warn("skipping malformed queue key", "key_len", len(key))
				continue
			}

			score := binary.BigEndian.Uint64(key[:scoreBytes])
			if score > bound {
				// Keys are ordered by score; nothing further is due.
				break
			}

			entry, err := decodeKey(key)
			if err != nil {
				q.logger.Warn("skipping undecodable queue entry", "error", err)
				continue
			}
			due = append(due, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan due reminders: %w", err)
	}

	return due, nil
}

// Remove deletes the exact entry.
func (q *BadgerQueue) Remove(ctx context.Context, entry Entry) error {
	key, err := encodeKey(entry)
	if err != nil {
		return err
	}

	err = q.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("failed to remove reminder %d from queue: %w", entry.ReminderID, err)
	}

	return nil
}

// Count returns the number of queued entries.
func (q *BadgerQueue) Count(ctx context.Context) (int, error) {
	count := 0
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count queue entries: %w", err)
	}

	return count, nil
}

func encodeKey(entry Entry) ([]byte, error) {
	payload, err := json.Marshal(entryPayload{
		ReminderID: entry.ReminderID,
		OwnerID:    entry.OwnerID,
		TaskID:     entry.TaskID,
		FireAt:     entry.FireAt.Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode queue entry: %w", err)
	}

	key := make([]byte, scoreBytes+len(payload))
	binary.BigEndian.PutUint64(key[:scoreBytes], uint64(entry.FireAt.Unix()))
	copy(key[scoreBytes:], payload)
	return key, nil
}

func decodeKey(key []byte) (Entry, error) {
	var payload entryPayload
	if err := json.Unmarshal(key[scoreBytes:], &payload); err != nil {
		return Entry{}, fmt.Errorf("failed to decode queue entry: %w", err)
	}

	return Entry{
		ReminderID: payload.ReminderID,
		OwnerID:    payload.OwnerID,
		TaskID:     payload.TaskID,
		FireAt:     time.Unix(payload.FireAt, 0).UTC(),
	}, nil
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
