package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kalambet/shuttle/internal/inbox"
	"github.com/kalambet/shuttle/internal/record"
	"github.com/kalambet/shuttle/internal/storage"
	"github.com/kalambet/shuttle/internal/syncstatus"
)

type fixture struct {
	inbox      *inbox.Store
	store      *storage.Store
	tracker    *syncstatus.Tracker
	payloadDir string
	importer   *Importer
}

func setup(t *testing.T) *fixture {
	t.Helper()
	in, err := inbox.Open(filepath.Join(t.TempDir(), "inbox"))
	if err != nil {
		t.Fatalf("inbox.Open: %v", err)
	}
	st, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	tracker := syncstatus.NewTracker()
	payloadDir := filepath.Join(t.TempDir(), "payloads")
	return &fixture{
		inbox:      in,
		store:      st,
		tracker:    tracker,
		payloadDir: payloadDir,
		importer:   New(in, st, tracker, payloadDir, time.Minute),
	}
}

func writeEntry(t *testing.T, f *fixture, title string) string {
	t.Helper()
	rec := record.Record{Title: title, URL: "https://example.com/" + title}
	rec.Finalize(time.Now())
	id, err := f.inbox.WriteRecord(rec)
	if err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	return id
}

func TestRunOnce_ImportsAndRemovesEntries(t *testing.T) {
	f := setup(t)
	id1 := writeEntry(t, f, "one")
	id2 := writeEntry(t, f, "two")

	n, err := f.importer.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 2 {
		t.Errorf("imported = %d, want 2", n)
	}

	for _, id := range []string{id1, id2} {
		if _, err := f.store.GetItem(id); err != nil {
			t.Errorf("GetItem(%s): %v", id, err)
		}
	}
	entries, err := f.inbox.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("inbox still holds %d entries", len(entries))
	}
	if got := f.tracker.Status().State; got != syncstatus.StateSuccess {
		t.Errorf("tracker state = %v, want success", got)
	}
	if f.tracker.Status().LastSync.IsZero() {
		t.Error("LastSync not stamped")
	}
}

func TestRunOnce_CopiesPayloadOut(t *testing.T) {
	f := setup(t)

	payload := []byte{0xFF, 0xD8, 0xFF}
	name, err := f.inbox.SavePayload(payload, "shot.jpg")
	if err != nil {
		t.Fatalf("SavePayload: %v", err)
	}
	rec := record.Record{Title: "pic", ImagePath: name}
	rec.Finalize(time.Now())
	id, err := f.inbox.WriteRecord(rec)
	if err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}

	if _, err := f.importer.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	item, err := f.store.GetItem(id)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.ImagePath != name {
		t.Errorf("ImagePath = %q, want %q", item.ImagePath, name)
	}
	copied, err := os.ReadFile(filepath.Join(f.payloadDir, name))
	if err != nil {
		t.Fatalf("payload not copied: %v", err)
	}
	if string(copied) != string(payload) {
		t.Error("payload bytes differ after copy")
	}
	// The shared container is fully drained, payload included.
	if _, err := f.inbox.ReadPayload(name); !errors.Is(err, inbox.ErrNotFound) {
		t.Errorf("payload still in container: %v", err)
	}
}

func TestRunOnce_QuarantinesMalformedEntry(t *testing.T) {
	f := setup(t)

	bad := filepath.Join(f.inbox.Dir(), "pkg-broken.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("writing malformed entry: %v", err)
	}
	good := writeEntry(t, f, "fine")

	n, err := f.importer.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 {
		t.Errorf("imported = %d, want 1", n)
	}
	if _, err := f.store.GetItem(good); err != nil {
		t.Errorf("good entry not imported: %v", err)
	}
	if _, err := os.Stat(bad + ".bad"); err != nil {
		t.Errorf("malformed entry not quarantined: %v", err)
	}

	// A second drain must not trip over the quarantined file.
	if n, err := f.importer.RunOnce(context.Background()); err != nil || n != 0 {
		t.Errorf("second RunOnce = (%d, %v), want (0, nil)", n, err)
	}
}

func TestRunOnce_ReplayedEntryDoesNotDuplicate(t *testing.T) {
	f := setup(t)
	id := writeEntry(t, f, "once")

	if _, err := f.importer.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	// Simulate a crash between save and remove: the same entry appears
	// again with identical content and ID.
	rec := record.Record{Title: "once", URL: "https://example.com/once"}
	rec.Finalize(time.Now())
	data, err := record.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(f.inbox.Dir(), id+".json"), data, 0o644); err != nil {
		t.Fatalf("replaying entry: %v", err)
	}

	if _, err := f.importer.RunOnce(context.Background()); err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}

	entries, err := f.inbox.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("replayed entry not cleaned up: %+v", entries)
	}
}

func TestNudge_Coalesces(t *testing.T) {
	f := setup(t)
	for i := 0; i < 10; i++ {
		f.importer.Nudge() // must never block
	}
}

func TestRun_ImportsOnNudge(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		f.importer.Run(ctx)
		close(done)
	}()

	// Startup drain runs on an empty inbox; then a new entry plus a
	// nudge must get imported without waiting for the poll tick.
	id := writeEntry(t, f, "nudged")
	f.importer.Nudge()

	deadline := time.After(5 * time.Second)
	for {
		if _, err := f.store.GetItem(id); err == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("entry not imported after nudge")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}
