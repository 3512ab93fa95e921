// Package importer is the consumer-side routine: it drains the shared
// inbox into the application's primary store. It runs strictly after
// the producer's rename has landed, so every record it sees is
// complete; malformed entries are quarantined rather than retried.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kalambet/shuttle/internal/inbox"
	"github.com/kalambet/shuttle/internal/storage"
	"github.com/kalambet/shuttle/internal/syncstatus"
)

// ItemStore abstracts the primary store operations the importer needs.
type ItemStore interface {
	SaveItem(item storage.Item) error
	GetItem(id string) (storage.Item, error)
}

// Importer drains inbox entries into the primary store.
type Importer struct {
	inbox      *inbox.Store
	store      ItemStore
	status     *syncstatus.Tracker
	payloadDir string
	poll       time.Duration
	kick       chan struct{}
	logger     *slog.Logger
}

// New creates an Importer. Payload files are copied out of the shared
// container into payloadDir so consumed entries can be deleted. If
// pollInterval is <= 0, it defaults to 30s.
func New(in *inbox.Store, store ItemStore, status *syncstatus.Tracker, payloadDir string, pollInterval time.Duration) *Importer {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &Importer{
		inbox:      in,
		store:      store,
		status:     status,
		payloadDir: payloadDir,
		poll:       pollInterval,
		kick:       make(chan struct{}, 1),
		logger:     slog.Default(),
	}
}

// Nudge requests a drain without waiting for the next poll. Safe to
// call from any goroutine; nudges coalesce.
func (i *Importer) Nudge() {
	select {
	case i.kick <- struct{}{}:
	default:
	}
}

// RunOnce drains every pending inbox entry. Returns the number of
// entries imported. Per-entry failures are absorbed: malformed records
// are quarantined, transient store errors leave the entry for the next
// drain.
func (i *Importer) RunOnce(ctx context.Context) (int, error) {
	i.status.Begin()

	entries, err := i.inbox.List()
	if err != nil {
		i.status.Fail(err)
		return 0, fmt.Errorf("listing inbox: %w", err)
	}

	imported := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if err := i.importEntry(entry); err != nil {
			i.logger.Warn("importing entry failed", "entry", entry.ID, "error", err)
			continue
		}
		imported++
	}

	i.status.Succeed(time.Now())
	if imported > 0 {
		i.logger.Info("inbox drained", "imported", imported)
	}
	return imported, nil
}

func (i *Importer) importEntry(entry inbox.Entry) error {
	rec, err := i.inbox.ReadRecord(entry.ID)
	if err != nil {
		if errors.Is(err, inbox.ErrNotFound) {
			return nil // consumed by a concurrent drain
		}
		// Unparseable entries never heal; move them aside and move on.
		if qErr := i.inbox.Quarantine(entry.ID); qErr != nil {
			return fmt.Errorf("%v (quarantine also failed: %w)", err, qErr)
		}
		return err
	}

	// Already imported: a replayed entry (e.g. crash between save and
	// remove) is cleaned up without duplicating the item.
	if _, err := i.store.GetItem(entry.ID); err == nil {
		return i.inbox.Remove(entry.ID, rec.ImagePath)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("checking item %s: %w", entry.ID, err)
	}

	imagePath := ""
	if rec.ImagePath != "" {
		name, err := i.copyPayload(rec.ImagePath)
		if err != nil {
			// A referenced-but-missing payload degrades to a record
			// without an image rather than blocking the entry.
			i.logger.Warn("payload unavailable", "entry", entry.ID, "payload", rec.ImagePath, "error", err)
		} else {
			imagePath = name
		}
	}

	item := storage.Item{
		ID:         entry.ID,
		Title:      rec.Title,
		Subtitle:   rec.Subtitle,
		Text:       rec.Text,
		URL:        rec.URL,
		ImagePath:  imagePath,
		CreatedAt:  rec.CreatedAt,
		ImportedAt: time.Now().UTC(),
	}
	if err := i.store.SaveItem(item); err != nil {
		return fmt.Errorf("saving item %s: %w", entry.ID, err)
	}

	return i.inbox.Remove(entry.ID, rec.ImagePath)
}

// copyPayload moves payload bytes out of the shared container into the
// consumer's own payload directory and returns the local filename.
func (i *Importer) copyPayload(name string) (string, error) {
	data, err := i.inbox.ReadPayload(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(i.payloadDir, 0o755); err != nil {
		return "", fmt.Errorf("creating payload directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(i.payloadDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("copying payload %s: %w", name, err)
	}
	return name, nil
}

// Run drains the inbox until ctx is cancelled: once at startup, then on
// every poll tick, nudge, and filesystem event in the inbox directory.
// The watcher is best-effort; polling alone keeps the importer correct.
func (i *Importer) Run(ctx context.Context) {
	var events chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		i.logger.Warn("inbox watcher unavailable, falling back to polling", "error", err)
	} else {
		defer watcher.Close()
		if err := watcher.Add(i.inbox.Dir()); err != nil {
			i.logger.Warn("watching inbox failed, falling back to polling", "error", err)
		} else {
			events = watcher.Events
		}
	}

	ticker := time.NewTicker(i.poll)
	defer ticker.Stop()

	drain := func() {
		if _, err := i.RunOnce(ctx); err != nil {
			i.logger.Error("inbox drain failed", "error", err)
		}
	}

	drain()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			drain()
		case <-i.kick:
			drain()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			// A producer's rename lands as Create (or Rename) of the
			// final record name.
			if ev.Op&(fsnotify.Create|fsnotify.Rename) != 0 && strings.HasSuffix(ev.Name, ".json") {
				drain()
			}
		}
	}
}
