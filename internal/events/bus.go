// Package events provides an in-process publish/subscribe bus for billing events.
package events

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Topic names a class of events.
type Topic string

// Billing topics.
const (
	OrderCreated   Topic = "order.created"
	OrderPaid      Topic = "order.paid"
	OrderCancelled Topic = "order.cancelled"
	OrderRefunded  Topic = "order.refunded"
	CodeRedeemed   Topic = "recharge_code.redeemed"
	BalanceChanged Topic = "balance.changed"
)

// Event is delivered to subscribers of its topic.
type Event struct {
	Topic      Topic
	UserID     uint64
	OrderNo    string
	OrderType  string
	PayMethod  string
	Amount     int64 // cents
	OccurredAt time.Time
}

// Handler consumes an event. Errors are logged and do not affect the publisher.
type Handler func(ctx context.Context, evt Event) error

// Publisher is what billing depends on.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Bus dispatches events synchronously to subscribers in registration order.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Topic]map[uint64]Handler
	order  map[Topic][]uint64
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{
		subs:  make(map[Topic]map[uint64]Handler),
		order: make(map[Topic][]uint64),
	}
}

// Subscribe registers h for topic and returns a function that removes it.
func (b *Bus) Subscribe(topic Topic, h Handler) func() {
	if b == nil || h == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]Handler)
	}
	b.subs[topic][id] = h
	b.order[topic] = append(b.order[topic], id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[topic], id)
			ids := b.order[topic]
			for i, existing := range ids {
				if existing == id {
					b.order[topic] = append(ids[:i:i], ids[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers evt to every current subscriber of evt.Topic.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	if b == nil {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	b.mu.RLock()
	ids := b.order[evt.Topic]
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		if h, ok := b.subs[evt.Topic][id]; ok {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		if errHandle := h(ctx, evt); errHandle != nil {
			log.WithError(errHandle).WithFields(log.Fields{
				"topic":    evt.Topic,
				"order_no": evt.OrderNo,
			}).Warn("events: subscriber failed")
		}
	}
}
