package syncstatus

import (
	"errors"
	"testing"
	"time"
)

func TestTracker_Lifecycle(t *testing.T) {
	tr := NewTracker()

	if got := tr.Status(); got.State != StateIdle || !got.Online {
		t.Fatalf("initial status = %+v, want idle and online", got)
	}

	tr.Begin()
	if got := tr.Status().State; got != StateSyncing {
		t.Errorf("state = %v, want syncing", got)
	}

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tr.Succeed(now)
	got := tr.Status()
	if got.State != StateSuccess {
		t.Errorf("state = %v, want success", got.State)
	}
	if !got.LastSync.Equal(now) {
		t.Errorf("LastSync = %v, want %v", got.LastSync, now)
	}

	tr.Fail(errors.New("boom"))
	got = tr.Status()
	if got.State != StateError || got.Error != "boom" {
		t.Errorf("status = %+v, want error state with message", got)
	}
}

func TestTracker_SubscribeSeesLatest(t *testing.T) {
	tr := NewTracker()
	ch := tr.Subscribe()

	// Two rapid transitions: a slow subscriber must still observe the
	// most recent one.
	tr.Begin()
	tr.Succeed(time.Now())

	select {
	case got := <-ch:
		if got.State != StateSuccess {
			t.Errorf("state = %v, want latest (success)", got.State)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification received")
	}
}

func TestTracker_TriggerSync(t *testing.T) {
	tr := NewTracker()
	called := 0
	tr.OnTrigger(func() { called++ })

	tr.TriggerSync()
	tr.TriggerSync()
	if called != 2 {
		t.Errorf("trigger hook called %d times, want 2", called)
	}
}

func TestTracker_TriggerWithoutHook(t *testing.T) {
	NewTracker().TriggerSync() // must not panic
}

func TestTracker_SetOnline(t *testing.T) {
	tr := NewTracker()
	tr.SetOnline(false)
	if tr.Status().Online {
		t.Error("Online = true, want false")
	}
}
