// Package broadcaster fans lifecycle events out to many SSE subscribers,
// pruning ones that stop draining their buffer.
package broadcaster

import (
	"log"
	"sync"
	"time"
)

const (
	subscriberBuffer = 100
	healthTick       = 10 * time.Second
)

// Subscriber is a connected client's outbound line buffer. HTTP handlers
// read from Lines until the channel closes.
type Subscriber struct {
	lines chan []byte
}

// Lines returns the channel of framed SSE lines for this subscriber.
func (s *Subscriber) Lines() <-chan []byte { return s.lines }

// Broadcaster holds the subscriber set. It is not a global: New returns a
// fresh instance, and the command wiring builds one and passes it to every
// publisher and to the HTTP event stream.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New constructs a Broadcaster and starts its health tick.
func New() *Broadcaster {
	b := &Broadcaster{
		subscribers: make(map[*Subscriber]struct{}),
		stopCh:      make(chan struct{}),
	}
	go b.healthTickLoop()
	return b
}

// Stop ends the health tick loop. Existing subscriber channels are left
// open for handlers to close as their requests end.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe registers a new subscriber and immediately offers it the
// connection banner line.
func (b *Broadcaster) Subscribe() *Subscriber {
	sub := &Subscriber{lines: make(chan []byte, subscriberBuffer)}

	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	offer(sub, []byte("data: connected\n\n"))
	return sub
}

// Unsubscribe removes sub from the subscriber set and closes its channel.
// Safe to call more than once.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub.lines)
	}
	b.mu.Unlock()
}

// Publish serializes event once and offers it to every subscriber via a
// non-blocking send. A subscriber whose buffer is full is left in place;
// it is pruned on the next health tick, not immediately, matching
// spec.md §4.6.
func (b *Broadcaster) Publish(event Event) {
	data, err := marshalEvent(event)
	if err != nil {
		log.Printf("broadcaster: cannot serialize event: %v", err)
		return
	}
	line := append([]byte("data: "), append(data, []byte("\n\n")...)...)

	b.mu.Lock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		offer(s, line)
	}
}

func (b *Broadcaster) healthTickLoop() {
	ticker := time.NewTicker(healthTick)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.pingAndEvict()
		}
	}
}

func (b *Broadcaster) pingAndEvict() {
	b.mu.Lock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	ping := []byte("data: ping\n\n")
	for _, s := range subs {
		if !offer(s, ping) {
			b.Unsubscribe(s)
		}
	}
}

// offer attempts a non-blocking send and reports whether it succeeded.
func offer(s *Subscriber, line []byte) bool {
	select {
	case s.lines <- line:
		return true
	default:
		return false
	}
}
