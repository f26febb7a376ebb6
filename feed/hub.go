package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/flashbots/anonboard/board"
)

// Publisher receives committed snapshots.
type Publisher interface {
	Publish(ctx context.Context, snap *board.Snapshot) error
}

const subscriberBuffer = 16

type subscriber struct {
	ctx context.Context
	ch  chan *board.Snapshot
}

// Hub fans committed snapshots out to in-process subscribers.
//
// Sends never block the publisher. When a subscriber's buffer is full its
// oldest pending snapshot is dropped, so a slow reader still ends up with the
// latest state.
type Hub struct {
	mu          sync.Mutex
	latest      *board.Snapshot
	subscribers []*subscriber
}

// NewHub creates a hub whose first subscribers receive initial, if non-nil.
func NewHub(initial *board.Snapshot) *Hub {
	h := &Hub{}
	if initial != nil {
		h.latest = initial.Clone()
	}
	return h
}

// Latest returns the last published snapshot or nil.
func (h *Hub) Latest() *board.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.latest == nil {
		return nil
	}
	return h.latest.Clone()
}

// Subscribe returns a channel of snapshots, starting with the latest one.
// The channel is closed once ctx is done.
func (h *Hub) Subscribe(ctx context.Context) <-chan *board.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &subscriber{ctx: ctx, ch: make(chan *board.Snapshot, subscriberBuffer)}
	if h.latest != nil {
		sub.ch <- h.latest.Clone()
	}
	h.subscribers = append(h.subscribers, sub)

	go func() {
		<-ctx.Done()
		h.remove(sub)
	}()

	return sub.ch
}

// Watch is Subscribe with the signature shared by remote snapshot sources.
func (h *Hub) Watch(ctx context.Context) (<-chan *board.Snapshot, error) {
	return h.Subscribe(ctx), nil
}

// Publish delivers snap to every live subscriber.
func (h *Hub) Publish(ctx context.Context, snap *board.Snapshot) error {
	if snap == nil {
		return errors.New("nil snapshot")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = snap.Clone()
	for _, sub := range h.subscribers {
		if sub.ctx.Err() != nil {
			continue
		}
		deliverLatest(sub.ch, h.latest.Clone())
	}
	return nil
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, s := range h.subscribers {
		if s == sub {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// deliverLatest sends snap without blocking, evicting the oldest buffered
// value if needed. Callers must be the only sender on ch.
func deliverLatest(ch chan *board.Snapshot, snap *board.Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Fanout publishes to several publishers, collecting every failure.
type Fanout []Publisher

// Publish calls every publisher, even after a failure.
func (f Fanout) Publish(ctx context.Context, snap *board.Snapshot) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
