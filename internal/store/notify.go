package store

import (
	"context"
	"sync"
)

// notifier implements the subscribe/notify boundary shared by the
// backends. Each subscriber owns a capacity-1 channel; publishing
// replaces any undelivered snapshot so slow readers wake to the latest
// state rather than a backlog.
type notifier struct {
	mu   sync.Mutex
	subs map[string]map[int]*subscriber
	next int
}

type subscriber struct {
	ch     chan Snapshot
	closed bool
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[string]map[int]*subscriber)}
}

// subscribe registers a listener for a document id, priming the channel
// with the given snapshot.
func (n *notifier) subscribe(ctx context.Context, id string, current Snapshot) (<-chan Snapshot, func()) {
	n.mu.Lock()
	sub := &subscriber{ch: make(chan Snapshot, 1)}
	sub.ch <- current

	if n.subs[id] == nil {
		n.subs[id] = make(map[int]*subscriber)
	}
	n.next++
	key := n.next
	n.subs[id][key] = sub
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if s, ok := n.subs[id][key]; ok && !s.closed {
			s.closed = true
			close(s.ch)
			delete(n.subs[id], key)
		}
	}

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return sub.ch, cancel
}

// publish delivers a snapshot to every live subscriber of the id.
func (n *notifier) publish(id string, snap Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, sub := range n.subs[id] {
		if sub.closed {
			continue
		}
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- snap
	}
}
