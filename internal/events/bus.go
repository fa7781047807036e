// Package events provides the in-process pub/sub bus that fans
// conversational signals out to the UI gateway and the orchestrator's
// ambient listeners.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Topic identifies an event stream on the bus.
type Topic string

const (
	TopicProactiveMessage Topic = "proactive-message"
	TopicSpeechStart      Topic = "speech-start"
	TopicSpeechEnd        Topic = "speech-end"
	TopicWakeWordDetected Topic = "wake-word-detected"
	TopicStartListening   Topic = "start-listening"
	TopicIdleUpdate       Topic = "idle-update"
	TopicRecordingRequest Topic = "recording-request"
)

// Event is one published message. Payload types are the models the topic
// implies (models.VoiceEvent, models.WakeWordEvent, plain strings).
type Event struct {
	ID        string
	Topic     Topic
	Payload   any
	Timestamp time.Time
}

// Subscription is a live subscription. Events arrive on C until
// Unsubscribe is called, after which C is closed.
type Subscription struct {
	id     string
	topics map[Topic]struct{}
	ch     chan Event
	bus    *Bus

	mu     sync.Mutex
	closed bool
}

// C is the receive channel for this subscription.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Unsubscribe detaches from the bus and closes C. Safe to call more
// than once.
func (s *Subscription) Unsubscribe() {
	s.bus.remove(s.id)
	s.close()
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// trySend delivers without blocking the publisher beyond the timeout.
func (s *Subscription) trySend(ev Event, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	select {
	case s.ch <- ev:
		return true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s.ch <- ev:
		return true
	case <-timer.C:
		return false
	}
}

func (s *Subscription) wants(topic Topic) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

// Metrics are the bus delivery counters.
type Metrics struct {
	Published int64
	Delivered int64
	Dropped   int64
}

// Bus is a non-blocking pub/sub bus. Publish never waits longer than the
// publish timeout per subscriber; a slow subscriber drops events rather
// than stalling the conversation loop.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool

	bufferSize     int
	publishTimeout time.Duration

	published atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64
}

// NewBus creates a bus with default buffering (64 events per subscriber,
// 10ms publish timeout).
func NewBus() *Bus {
	return &Bus{
		subs:           map[string]*Subscription{},
		bufferSize:     64,
		publishTimeout: 10 * time.Millisecond,
	}
}

// Subscribe registers for the given topics. With no topics, the
// subscription receives every event.
func (b *Bus) Subscribe(topics ...Topic) *Subscription {
	sub := &Subscription{
		id:  uuid.NewString(),
		ch:  make(chan Event, b.bufferSize),
		bus: b,
	}
	if len(topics) > 0 {
		sub.topics = make(map[Topic]struct{}, len(topics))
		for _, t := range topics {
			sub.topics[t] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.close()
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Publish delivers an event to every matching subscription. Never blocks
// past the per-subscriber timeout; undeliverable events are counted as
// dropped.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	ev := Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	b.published.Add(1)

	for _, sub := range subs {
		if !sub.wants(topic) {
			continue
		}
		if sub.trySend(ev, b.publishTimeout) {
			b.delivered.Add(1)
		} else {
			b.dropped.Add(1)
		}
	}
}

func (b *Bus) remove(id string) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// Metrics returns a snapshot of the delivery counters.
func (b *Bus) Metrics() Metrics {
	return Metrics{
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
		Dropped:   b.dropped.Load(),
	}
}

// Close tears down every subscription and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = map[string]*Subscription{}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}
