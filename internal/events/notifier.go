// Package events provides an in-process bus announcing writes to the
// benchmark database, used to invalidate cached read results.
package events

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Type identifies what kind of write happened.
type Type int

const (
	// UploadCommitted is published after an upload's rows were committed.
	UploadCommitted Type = iota
	// EntityCreated is published after a staff member registered a row.
	EntityCreated
)

func (t Type) String() string {
	switch t {
	case UploadCommitted:
		return "upload_committed"
	case EntityCreated:
		return "entity_created"
	default:
		return "unknown"
	}
}

// Event describes one write.
type Event struct {
	Type Type
	// Subject is the upload kind for uploads and the table name for entities.
	Subject   string
	UploadID  string
	Timestamp int64
}

// Notifier is a pub/sub bus. Publishing never blocks.
type Notifier struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	bufferSize  int
	nextID      atomic.Uint64
	dropped     atomic.Int64
}

// NewNotifier creates a notifier whose subscriber channels hold bufferSize
// pending events.
func NewNotifier(bufferSize int) *Notifier {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &Notifier{
		subscribers: make(map[string]*Subscriber),
		bufferSize:  bufferSize,
	}
}

// Publish delivers ev to every matching subscriber. A subscriber whose
// channel is full misses the event.
func (n *Notifier) Publish(ev Event) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixNano()
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, sub := range n.subscribers {
		if !sub.matches(ev.Subject) {
			continue
		}
		select {
		case sub.Ch <- ev:
		default:
			n.dropped.Add(1)
		}
	}
}

// Subscribe registers a subscriber under id. With filters set, only events
// whose subject starts with one of them are delivered.
func (n *Notifier) Subscribe(id string, filters ...string) *Subscriber {
	sub := &Subscriber{
		ID:      id,
		Filters: filters,
		Ch:      make(chan Event, n.bufferSize),
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if old, ok := n.subscribers[id]; ok {
		close(old.Ch)
	}
	n.subscribers[id] = sub
	return sub
}

// SubscribeAutoID registers a subscriber under a generated id.
func (n *Notifier) SubscribeAutoID(filters ...string) *Subscriber {
	return n.Subscribe("sub_"+strconv.FormatUint(n.nextID.Add(1), 10), filters...)
}

// Unsubscribe removes a subscriber and closes its channel.
func (n *Notifier) Unsubscribe(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if sub, ok := n.subscribers[id]; ok {
		delete(n.subscribers, id)
		close(sub.Ch)
	}
}

// Dropped returns how many deliveries were skipped on full channels.
func (n *Notifier) Dropped() int64 {
	return n.dropped.Load()
}

// Subscriber receives events on Ch.
type Subscriber struct {
	ID      string
	Filters []string
	Ch      chan Event
}

func (s *Subscriber) matches(subject string) bool {
	if len(s.Filters) == 0 {
		return true
	}
	for _, f := range s.Filters {
		if f == "" || strings.HasPrefix(subject, f) {
			return true
		}
	}
	return false
}
