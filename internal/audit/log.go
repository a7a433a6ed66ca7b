// Package audit keeps the append-only event log. The log serves two masters:
// operators reading back what happened, and the admin replay endpoint, which
// re-presents a logged raw payload to the dispatcher.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sambatesdesign/ChimpLink/internal/blobstore"
)

// Publisher fans appended entries out to an external sink. Publish failures
// must be handled inside the implementation; the log never propagates them.
type Publisher interface {
	Publish(ctx context.Context, entry Entry)
}

// Log is the append-only audit log, stored as one JSON array blob. Appends
// are load-append-save round trips serialized by a mutex so concurrent events
// cannot drop each other's entries within this process.
type Log struct {
	mu        sync.Mutex
	store     blobstore.Store
	logger    *slog.Logger
	publisher Publisher
	now       func() time.Time
}

type Option func(*Log)

// WithPublisher mirrors every appended entry to an external sink.
func WithPublisher(p Publisher) Option {
	return func(l *Log) { l.publisher = p }
}

// WithClock overrides the timestamp source; used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

func NewLog(store blobstore.Store, logger *slog.Logger, opts ...Option) *Log {
	l := &Log{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append stamps and persists a new entry. A store failure degrades to a
// warning: the event was still processed, only its record is lost.
func (l *Log) Append(ctx context.Context, entry Entry) {
	entry.ID = uuid.New().String()
	entry.Timestamp = l.now().UTC().Format(time.RFC3339)

	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load(ctx)
	if err != nil {
		l.logger.WarnContext(ctx, "audit log not persisted",
			"event", entry.Event,
			"error", err,
		)
		return
	}
	entries = append(entries, entry)
	if err := l.save(ctx, entries); err != nil {
		l.logger.WarnContext(ctx, "audit log not persisted",
			"event", entry.Event,
			"error", err,
		)
		return
	}

	if l.publisher != nil {
		l.publisher.Publish(ctx, entry)
	}
}

// Entries returns a copy of the full log, oldest first.
func (l *Log) Entries(ctx context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

// Find returns the entry with the given id, if present.
func (l *Log) Find(ctx context.Context, id string) (Entry, bool, error) {
	entries, err := l.Entries(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

func (l *Log) load(ctx context.Context) ([]Entry, error) {
	data, err := l.store.Load(ctx, blobstore.KeyLog)
	if errors.Is(err, blobstore.ErrNotFound) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode log blob: %w", err)
	}
	return entries, nil
}

func (l *Log) save(ctx context.Context, entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode log blob: %w", err)
	}
	return l.store.Save(ctx, blobstore.KeyLog, data)
}
