// Package bus implements the Message Bus: best-effort point-to-point and
// broadcast routing between agents with bounded per-subscriber back-pressure, built
// around a per-subscriber registry keyed by agent id rather than a single shared channel.
package bus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/infer-no-dev/devkit/internal/errkind"
)

// DefaultQueueCapacity is the recommended per-subscriber inbound queue size.
const DefaultQueueCapacity = 64

// Wildcard, used as Message.To, fans a message out to every current subscriber.
const Wildcard = "*"

// Type tags the nature of a Message.
type Type string

// Recognised message types.
const (
	TaskRequest Type = "task_request"
	TaskResponse Type = "task_response"
	Collaboration Type = "collaboration"
	SystemNotification Type = "system_notification"
	Heartbeat Type = "heartbeat"
)

// Message is one bus envelope.
type Message struct {
	Timestamp time.Time
	Payload any
	ID string
	From string
	To string
	Type Type
}

// subscriber holds one agent's inbound queue plus its dropped-message counter.
type subscriber struct {
	inbox chan Message
	dropped atomic.Int64
}

// Bus routes messages between registered subscribers.
type Bus struct {
	mu sync.RWMutex
	subs map[string]*subscriber
	cap int
}

// New builds a Bus with the given per-subscriber queue capacity (DefaultQueueCapacity
// when capacity <= 0).
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Bus{subs: make(map[string]*subscriber), cap: capacity}
}

// Subscribe registers agentID and returns a read-only channel of messages addressed to it
// or to Wildcard. A prior subscription under the same id is dropped and its channel closed.
func (b *Bus) Subscribe(agentID string) <-chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.subs[agentID]; ok {
		close(old.inbox)
	}
	s := &subscriber{inbox: make(chan Message, b.cap)}
	b.subs[agentID] = s
	return s.inbox
}

// Unsubscribe removes agentID's registration and closes its channel.
func (b *Bus) Unsubscribe(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.subs[agentID]; ok {
		close(s.inbox)
		delete(b.subs, agentID)
	}
}

// Send routes msg by msg.To. An empty ID and zero Timestamp are filled in.
// Delivery is best-effort per subscriber: a full inbox drops the message for that
// subscriber only, counted in DroppedCount, and never returns an error to the caller —
// the bus has no way to apply back-pressure to a sender without blocking every other
// subscriber's delivery.
func (b *Bus) Send(msg Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if msg.To == Wildcard {
		for _, s := range b.subs {
			deliver(s, msg)
		}
		return
	}
	if s, ok := b.subs[msg.To]; ok {
		deliver(s, msg)
	}
}

func deliver(s *subscriber, msg Message) {
	select {
	case s.inbox <- msg:
	default:
		s.dropped.Add(1)
	}
}

// DroppedCount reports how many messages have been dropped for agentID due to a full
// inbox. Returns NotFound if agentID was never subscribed.
func (b *Bus) DroppedCount(agentID string) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.subs[agentID]
	if !ok {
		return 0, errkind.New(errkind.NotFound, "unknown subscriber: "+agentID)
	}
	return s.dropped.Load(), nil
}
