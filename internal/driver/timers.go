// Package driver implements the reactive observers that sit between the
// document store and the game rules: an authoritative timeout driver
// that keeps a game moving when its players do not, and a bot seat that
// plays an automated player.
//
// Observers never act on remembered state. A timer firing re-reads the
// document and submits a rule update computed from that fresh snapshot;
// the rules reject it if the turn generation has moved on, so a stale
// timer is harmless.
package driver

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// timerSet owns an observer's named one-shot timers. Scheduling a name
// replaces any pending timer under that name, so deadlines recomputed
// from newer snapshots always win.
type timerSet struct {
	clock quartz.Clock

	mu     sync.Mutex
	timers map[string]*quartz.Timer
}

func newTimerSet(clock quartz.Clock) *timerSet {
	return &timerSet{clock: clock, timers: make(map[string]*quartz.Timer)}
}

func (ts *timerSet) schedule(name string, d time.Duration, fn func()) {
	if d < 0 {
		d = 0
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if t, ok := ts.timers[name]; ok {
		t.Stop()
	}
	ts.timers[name] = ts.clock.AfterFunc(d, fn)
}

func (ts *timerSet) stop(names ...string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for _, name := range names {
		if t, ok := ts.timers[name]; ok {
			t.Stop()
			delete(ts.timers, name)
		}
	}
}

func (ts *timerSet) stopAll() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for name, t := range ts.timers {
		t.Stop()
		delete(ts.timers, name)
	}
}
