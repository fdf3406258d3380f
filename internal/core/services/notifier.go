package services

import (
	"sync"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driven"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driving"
	"github.com/custodia-labs/viewshot-cli/internal/logger"
)

// Ensure Notifier implements both sides of the notification ports.
var (
	_ driven.NotificationPublisher = (*Notifier)(nil)
	_ driving.NotificationSource   = (*Notifier)(nil)
)

// defaultSubscriberBuffer is used when Subscribe is given a non-positive size.
const defaultSubscriberBuffer = 32

// Notifier fans notifications out to subscribers over bounded channels.
// A subscriber that falls behind loses notifications instead of blocking
// the publisher.
type Notifier struct {
	mu      sync.Mutex
	subs    map[int]chan domain.Notification
	nextID  int
	closed  bool
	dropped int
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan domain.Notification)}
}

// Subscribe registers an observer. The returned function unsubscribes and
// closes the channel; it is safe to call more than once.
func (n *Notifier) Subscribe(buffer int) (<-chan domain.Notification, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan domain.Notification, buffer)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		close(ch)
		return ch, func() {}
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if c, ok := n.subs[id]; ok {
				delete(n.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers note to every subscriber without blocking.
func (n *Notifier) Publish(note domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	for _, ch := range n.subs {
		select {
		case ch <- note:
		default:
			n.dropped++
			logger.Debug("notifier: subscriber full, dropped %s", note.Kind)
		}
	}
}

// Dropped returns how many deliveries were skipped because a subscriber
// was full.
func (n *Notifier) Dropped() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dropped
}

// Close closes every subscriber channel. Later publishes are ignored.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for id, ch := range n.subs {
		close(ch)
		delete(n.subs, id)
	}
}
