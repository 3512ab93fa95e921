// Package session orchestrates one interactive sharing session:
// aggregate the offered attachments, persist the resulting record,
// wake the consumer, and signal completion back to the invoking
// surface. The session is the outermost error boundary — nothing in
// the pipeline surfaces an error to the sharing user; every failure
// degrades to a smaller record or no record, and the completion
// callback fires exactly once on every path.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kalambet/shuttle/internal/aggregate"
	"github.com/kalambet/shuttle/internal/attachment"
	"github.com/kalambet/shuttle/internal/record"
	"github.com/kalambet/shuttle/internal/trigger"
)

// DefaultTimeout bounds a whole session. Attachment resolution has no
// natural upper bound, and an interactive surface must not hang on one
// stuck provider.
const DefaultTimeout = 10 * time.Second

// RecordWriter persists a finalized record. Satisfied by *inbox.Store.
type RecordWriter interface {
	WriteRecord(rec record.Record) (string, error)
}

// Session runs sharing sessions against one inbox and consumer.
type Session struct {
	agg     *aggregate.Aggregator
	store   RecordWriter
	wake    trigger.Trigger
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Session. store may be nil when the shared container
// could not be resolved; the session then completes without
// persisting, by design. wake may be nil to disable handoff.
func New(agg *aggregate.Aggregator, store RecordWriter, wake trigger.Trigger) *Session {
	if wake == nil {
		wake = trigger.Noop{}
	}
	return &Session{
		agg:     agg,
		store:   store,
		wake:    wake,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
}

// WithTimeout overrides the session deadline. Zero disables it.
func (s *Session) WithTimeout(d time.Duration) *Session {
	s.timeout = d
	return s
}

// Result reports what one session produced. EntryID is empty when
// persistence was skipped or failed.
type Result struct {
	Record  record.Record
	EntryID string
}

// Run executes one session. done is the completion signal owed to the
// invoking surface; it is invoked exactly once, on success and on every
// failure path alike. done may be nil.
func (s *Session) Run(ctx context.Context, caption string, items []attachment.Provider, done func()) Result {
	var once sync.Once
	signal := func() {
		if done != nil {
			once.Do(done)
		}
	}
	defer signal()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rec := s.agg.Aggregate(ctx, caption, items)
	res := Result{Record: rec}

	if s.store == nil {
		s.logger.Warn("no shared container, record not persisted", "title", rec.Title)
		return res
	}

	id, err := s.store.WriteRecord(rec)
	if err != nil {
		// Absorbed: data loss is preferred over erroring the user's
		// sharing interaction.
		s.logger.Error("persisting record failed", "error", err)
		return res
	}
	res.EntryID = id
	s.logger.Info("record persisted", "entry", id, "title", rec.Title)

	if err := s.wake.Wake(ctx); err != nil {
		s.logger.Debug("consumer wake failed, entry awaits next launch", "error", err)
	}
	return res
}
