// Package events provides a generic broadcast producer used to deliver
// one-way protocol notifications to any number of subscribed watchers.
package events

import (
	"context"
	"sync"
	"time"
)

const (
	defaultBroadcastTimeout       = time.Minute
	defaultSubscriptionBufferSize = 10
)

type subID uint64

// Producer manages event subscriptions and broadcasts events to them.
type Producer[T any] struct {
	sync.RWMutex
	nextID                 subID
	subs                   map[subID]*Subscription[T]
	subscriptionBufferSize int
	broadcastTimeout       time.Duration // maximum duration to wait for an event to be sent.
}

type ProducerOpt[T any] func(*Producer[T])

// WithBroadcastTimeout bounds the amount of time the producer will wait to send
// to each subscriber before dropping the send.
func WithBroadcastTimeout[T any](timeout time.Duration) ProducerOpt[T] {
	return func(ep *Producer[T]) {
		ep.broadcastTimeout = timeout
	}
}

// WithSubscriptionBuffer customizes the size of the subscription buffer channel.
func WithSubscriptionBuffer[T any](size int) ProducerOpt[T] {
	return func(ep *Producer[T]) {
		ep.subscriptionBufferSize = size
	}
}

func NewProducer[T any](opts ...ProducerOpt[T]) *Producer[T] {
	producer := &Producer[T]{
		subs:                   make(map[subID]*Subscription[T]),
		subscriptionBufferSize: defaultSubscriptionBufferSize,
		broadcastTimeout:       defaultBroadcastTimeout,
	}
	for _, opt := range opts {
		opt(producer)
	}
	return producer
}

// Subscribe returns a handle to a new event subscription,
// adding it to the set of active subscriptions.
func (ep *Producer[T]) Subscribe() *Subscription[T] {
	ep.Lock()
	defer ep.Unlock()
	sub := &Subscription[T]{
		id:       ep.nextID,
		events:   make(chan T, ep.subscriptionBufferSize),
		producer: ep,
	}
	ep.subs[sub.id] = sub
	ep.nextID++
	return sub
}

// Broadcast sends an event to all active subscriptions. It spawns a goroutine
// per subscriber so a slow consumer cannot block the producer; sends that do
// not complete within the broadcast timeout are dropped.
func (ep *Producer[T]) Broadcast(ctx context.Context, event T) {
	ep.RLock()
	defer ep.RUnlock()
	for _, sub := range ep.subs {
		go func(listener *Subscription[T]) {
			select {
			case listener.events <- event:
			case <-time.After(ep.broadcastTimeout):
			case <-ctx.Done():
			}
		}(sub)
	}
}

func (ep *Producer[T]) remove(id subID) {
	ep.Lock()
	defer ep.Unlock()
	delete(ep.subs, id)
}

// Subscription defines a generic handle to a subscription of
// events from a producer.
type Subscription[T any] struct {
	id       subID
	events   chan T
	producer *Producer[T]
	once     sync.Once
}

// Next waits for the next event or context cancelation, returning the event or an error.
func (es *Subscription[T]) Next(ctx context.Context) (T, error) {
	select {
	case ev := <-es.events:
		return ev, nil
	case <-ctx.Done():
		var zeroVal T
		return zeroVal, ctx.Err()
	}
}

// Close removes the subscription from its producer. Events broadcast after
// Close are no longer delivered to this handle.
func (es *Subscription[T]) Close() {
	es.once.Do(func() {
		es.producer.remove(es.id)
	})
}
