// Package stream buffers conversation events per remote peer so a slow or
// absent consumer never blocks producers, while a consumer draining later
// still receives every event in publish order.
package stream

import (
	"context"
	"strings"
	"sync"
)

// Stream holds per-conversation FIFO event queues. Queues for different
// conversations are independent; events within one conversation are strictly
// ordered by the order Publish acquired the lock.
type Stream struct {
	mu     sync.Mutex
	queues map[string][]Event
	subs   map[int]chan struct{}
	next   int
}

// New creates an empty event stream.
func New() *Stream {
	return &Stream{
		queues: make(map[string][]Event),
		subs:   make(map[int]chan struct{}),
	}
}

// key normalizes the conversation identifier; bare JIDs compare
// case-insensitively.
func key(remoteJID string) string {
	return strings.ToLower(remoteJID)
}

// Publish appends the event to the tail of its conversation's queue, then
// signals availability to subscribers. The signal is a wake-up, not a
// delivery: zero or many listeners may be present, and a listener that is
// already signalled is not signalled again.
func (s *Stream) Publish(evt Event) {
	s.mu.Lock()
	k := key(evt.RemoteJID)
	s.queues[k] = append(s.queues[k], evt)
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()
}

// Drain atomically removes and returns all currently queued events for the
// conversation, oldest first. A conversation with nothing queued yields an
// empty result, not an error.
//
// Cancellation is checked between events and is best-effort-partial: events
// dequeued before the cancellation are returned alongside ctx.Err(), and the
// remainder stays queued for a later drain.
func (s *Stream) Drain(ctx context.Context, remoteJID string) ([]Event, error) {
	k := key(remoteJID)

	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queues[k]
	var drained []Event
	for len(q) > 0 {
		if err := ctx.Err(); err != nil {
			s.queues[k] = q
			return drained, err
		}
		drained = append(drained, q[0])
		q = q[1:]
	}
	delete(s.queues, k)
	return drained, nil
}

// Clear discards all queued events for the conversation without returning
// them. Used when a conversation is being torn down.
func (s *Stream) Clear(remoteJID string) {
	s.mu.Lock()
	delete(s.queues, key(remoteJID))
	s.mu.Unlock()
}

// Pending returns how many events are currently queued for the conversation.
func (s *Stream) Pending(remoteJID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[key(remoteJID)])
}

// Subscribe returns a signal channel that coalesces availability
// notifications, and an unsubscribe function. The channel carries no event
// data; consumers react by calling Drain.
func (s *Stream) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
