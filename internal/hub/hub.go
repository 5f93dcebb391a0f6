// Package hub fans published messages out to live subscriber connections.
//
// Two topics exist, telemetry and alerts, each with its own registry. A
// publish is a non-blocking enqueue onto every subscriber's bounded buffer;
// a subscriber whose buffer is full is dropped (closed and evicted) rather
// than ever blocking the publisher or its peers. There is no replay: a
// reconnecting client is a brand-new subscriber and starts from the next
// published message.
package hub

import (
	"sync"

	"github.com/sirupsen/logrus"

	"fleet-monitor/realtime/internal/metrics"
)

type Topic string

const (
	TopicTelemetry Topic = "telemetry"
	TopicAlerts    Topic = "alerts"
)

// Subscription is one live subscriber on a topic. Messages arrive on C in
// publish order until the hub closes it.
type Subscription struct {
	topic  Topic
	ch     chan []byte
	closed bool
}

func (s *Subscription) C() <-chan []byte { return s.ch }

type topicSet struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

type Hub struct {
	telemetry topicSet
	alerts    topicSet
	buffer    int
	log       *logrus.Logger
}

func New(bufferSize int, log *logrus.Logger) *Hub {
	return &Hub{
		telemetry: topicSet{subs: make(map[*Subscription]struct{})},
		alerts:    topicSet{subs: make(map[*Subscription]struct{})},
		buffer:    bufferSize,
		log:       log,
	}
}

func (h *Hub) set(topic Topic) *topicSet {
	if topic == TopicAlerts {
		return &h.alerts
	}
	return &h.telemetry
}

func (h *Hub) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{topic: topic, ch: make(chan []byte, h.buffer)}
	ts := h.set(topic)
	ts.mu.Lock()
	ts.subs[sub] = struct{}{}
	ts.mu.Unlock()
	return sub
}

// Unsubscribe removes the subscription and closes its channel. Messages
// already queued but not yet drained are discarded with it. Safe to call
// more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	ts := h.set(sub.topic)
	ts.mu.Lock()
	if !sub.closed {
		sub.closed = true
		delete(ts.subs, sub)
		close(sub.ch)
	}
	ts.mu.Unlock()
}

// Publish enqueues payload to every current subscriber of the topic.
// Subscribers whose buffers are full are dropped on the spot.
func (h *Hub) Publish(topic Topic, payload []byte) {
	ts := h.set(topic)
	ts.mu.Lock()
	var slow []*Subscription
	for sub := range ts.subs {
		select {
		case sub.ch <- payload:
		default:
			slow = append(slow, sub)
		}
	}
	for _, sub := range slow {
		sub.closed = true
		delete(ts.subs, sub)
		close(sub.ch)
		metrics.SubscribersDropped.Add(1)
	}
	ts.mu.Unlock()

	for range slow {
		h.log.WithField("topic", topic).Warn("dropped slow subscriber")
	}
}

// Send enqueues payload to a single subscription, used for direct replies
// like pongs. Returns false if the subscription is gone or its buffer full.
func (h *Hub) Send(sub *Subscription, payload []byte) bool {
	ts := h.set(sub.topic)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if sub.closed {
		return false
	}
	select {
	case sub.ch <- payload:
		return true
	default:
		return false
	}
}

func (h *Hub) SubscriberCount(topic Topic) int {
	ts := h.set(topic)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.subs)
}
