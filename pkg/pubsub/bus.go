// Package pubsub provides the synchronous named-channel delivery primitive
// the property store publishes through. Delivery happens on the caller's
// stack, in subscription order, and is re-entrant: handlers may subscribe,
// cancel, or publish while a delivery is in flight.
//
// The bus is deliberately not safe for concurrent use across goroutines; the
// property store's execution model is single-threaded and recursion-based, so
// the bus matches it instead of adding locking nobody can rely on.
package pubsub

// Handler receives payloads published on a channel.
type Handler func(payload any)

// Subscription represents a registered handler and can cancel it.
type Subscription struct {
	bus     *Bus
	channel string
	id      int
}

// Cancel removes the handler from its channel. Cancelling during a delivery
// is allowed; the handler will not run again once Cancel returns, but a
// delivery already dispatched to it completes normally.
func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.cancel(s.channel, s.id)
	s.bus = nil
}

type subscriber struct {
	id        int
	fn        Handler
	cancelled bool
}

// Bus routes payloads from publishers to channel subscribers.
type Bus struct {
	channels map[string][]*subscriber
	nextID   int
}

// New constructs an empty bus.
func New() *Bus {
	return &Bus{channels: map[string][]*subscriber{}}
}

// Subscribe registers fn on channel and returns its subscription handle.
// Handlers on the same channel run in subscription order.
func (b *Bus) Subscribe(channel string, fn Handler) *Subscription {
	if fn == nil {
		return &Subscription{}
	}
	b.nextID++
	sub := &subscriber{id: b.nextID, fn: fn}
	b.channels[channel] = append(b.channels[channel], sub)
	return &Subscription{bus: b, channel: channel, id: sub.id}
}

// Publish delivers payload synchronously to every current subscriber of
// channel. Subscribers added during delivery do not receive the in-flight
// payload; subscribers cancelled during delivery are skipped.
func (b *Bus) Publish(channel string, payload any) {
	subs := b.channels[channel]
	if len(subs) == 0 {
		return
	}
	// Snapshot so re-entrant Subscribe/Cancel calls cannot shift the slice
	// out from under the loop.
	snapshot := make([]*subscriber, len(subs))
	copy(snapshot, subs)
	for _, sub := range snapshot {
		if sub.cancelled {
			continue
		}
		sub.fn(payload)
	}
}

// Subscribers reports how many live handlers are registered on channel.
func (b *Bus) Subscribers(channel string) int {
	count := 0
	for _, sub := range b.channels[channel] {
		if !sub.cancelled {
			count++
		}
	}
	return count
}

func (b *Bus) cancel(channel string, id int) {
	subs := b.channels[channel]
	for i, sub := range subs {
		if sub.id != id {
			continue
		}
		sub.cancelled = true
		b.channels[channel] = append(subs[:i:i], subs[i+1:]...)
		return
	}
}
