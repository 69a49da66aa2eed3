package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LoaderFunc re-runs a subscription's query and returns the full current
// result set. Each subscription owns exactly one query.
type LoaderFunc func(ctx context.Context) (interface{}, error)

// Snapshot carries the complete result set of one subscription's query as of
// the write that triggered the delivery.
type Snapshot struct {
	Topic string
	Data  interface{}
}

// Subscription is a live listener on a topic. Snapshots arrive on C until
// Cancel is called; Cancel closes C before returning and is idempotent.
type Subscription struct {
	Topic string
	C     <-chan Snapshot

	id     uint64
	ch     chan Snapshot
	loader LoaderFunc
	closed bool
	hub    *Hub
}

// Cancel stops further delivery. It is synchronous: once it returns, C is
// closed and no snapshot will follow. In-flight writes are not rolled back.
func (s *Subscription) Cancel() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	delete(s.hub.subs[s.Topic], s.id)
	if len(s.hub.subs[s.Topic]) == 0 {
		delete(s.hub.subs, s.Topic)
	}
	close(s.ch)
}

// Hub fans out store-change notifications to per-query subscribers. Services
// call Publish after every successful write; the hub re-runs each affected
// subscription's loader and delivers the full snapshot.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[uint64]*Subscription
	nextID uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]*Subscription)}
}

// Subscribe registers a listener on topic and delivers the initial snapshot
// before returning, so a new subscriber never starts from an empty view.
func (h *Hub) Subscribe(ctx context.Context, topic string, loader LoaderFunc) (*Subscription, error) {
	data, err := loader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial snapshot for %s: %v", topic, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		Topic:  topic,
		id:     h.nextID,
		ch:     make(chan Snapshot, 8),
		loader: loader,
		hub:    h,
	}
	sub.C = sub.ch

	if h.subs[topic] == nil {
		h.subs[topic] = make(map[uint64]*Subscription)
	}
	h.subs[topic][sub.id] = sub

	sub.ch <- Snapshot{Topic: topic, Data: data}
	return sub, nil
}

// Publish redelivers the current result set to every subscriber of topic.
// Within one subscription, deliveries follow the store's write order; a
// subscriber whose buffer is full misses that round instead of blocking the
// writer, and catches up on the next one.
func (h *Hub) Publish(ctx context.Context, topic string) {
	h.mu.Lock()
	listeners := make([]*Subscription, 0, len(h.subs[topic]))
	for _, sub := range h.subs[topic] {
		listeners = append(listeners, sub)
	}
	h.mu.Unlock()

	for _, sub := range listeners {
		data, err := sub.loader(ctx)
		if err != nil {
			logrus.WithField("topic", topic).Warnf("Snapshot reload failed: %v", err)
			continue
		}

		h.mu.Lock()
		if !sub.closed {
			select {
			case sub.ch <- Snapshot{Topic: topic, Data: data}:
			default:
				logrus.WithField("topic", topic).Debug("Subscriber buffer full, skipping round")
			}
		}
		h.mu.Unlock()
	}
}

// GroupPostsTopic scopes a subscription to one group's post feed.
func GroupPostsTopic(groupID primitive.ObjectID) string {
	return "group:" + groupID.Hex() + ":posts"
}

// UserNotificationsTopic scopes a subscription to one user's notifications.
func UserNotificationsTopic(userID primitive.ObjectID) string {
	return "user:" + userID.Hex() + ":notifications"
}
