// Package syncstatus tracks the consumer's inbox-drain state for
// presentation surfaces. It is an injected dependency rather than a
// process-wide singleton so the ingestion core stays testable in
// isolation.
package syncstatus

import (
	"sync"
	"time"
)

// State is the coarse sync state a presentation layer visualizes.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Status is a read-only snapshot.
type Status struct {
	State    State     `json:"state"`
	LastSync time.Time `json:"last_sync,omitzero"`
	Online   bool      `json:"online"`
	Error    string    `json:"error,omitempty"`
}

// Tracker holds the current status and notifies subscribers on change.
// TriggerFn, when set, is invoked by TriggerSync to start a manual
// drain; the tracker itself never imports the importer.
type Tracker struct {
	mu        sync.Mutex
	status    Status
	subs      []chan Status
	triggerFn func()
}

// NewTracker returns a Tracker in the idle state, assumed online.
func NewTracker() *Tracker {
	return &Tracker{status: Status{State: StateIdle, Online: true}}
}

// Status returns the current snapshot.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// SetOnline updates connectivity.
func (t *Tracker) SetOnline(online bool) {
	t.mu.Lock()
	t.status.Online = online
	t.notifyLocked()
	t.mu.Unlock()
}

// Begin marks a sync as started.
func (t *Tracker) Begin() {
	t.mu.Lock()
	t.status.State = StateSyncing
	t.status.Error = ""
	t.notifyLocked()
	t.mu.Unlock()
}

// Succeed marks the running sync as finished and stamps LastSync.
func (t *Tracker) Succeed(now time.Time) {
	t.mu.Lock()
	t.status.State = StateSuccess
	t.status.LastSync = now.UTC()
	t.status.Error = ""
	t.notifyLocked()
	t.mu.Unlock()
}

// Fail marks the running sync as failed.
func (t *Tracker) Fail(err error) {
	t.mu.Lock()
	t.status.State = StateError
	if err != nil {
		t.status.Error = err.Error()
	}
	t.notifyLocked()
	t.mu.Unlock()
}

// Subscribe returns a channel receiving status snapshots after each
// change. The channel is buffered; slow subscribers miss intermediate
// states but always observe the latest on their next receive.
func (t *Tracker) Subscribe() <-chan Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan Status, 1)
	t.subs = append(t.subs, ch)
	return ch
}

// OnTrigger registers the manual-sync hook.
func (t *Tracker) OnTrigger(fn func()) {
	t.mu.Lock()
	t.triggerFn = fn
	t.mu.Unlock()
}

// TriggerSync requests a manual drain, if a hook is registered.
func (t *Tracker) TriggerSync() {
	t.mu.Lock()
	fn := t.triggerFn
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (t *Tracker) notifyLocked() {
	for _, ch := range t.subs {
		select {
		case ch <- t.status:
		default:
			// Drop the stale snapshot and replace it with the current one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- t.status:
			default:
			}
		}
	}
}
