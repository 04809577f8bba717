// Package events is the topology-change notification broker: the
// mechanism by which the topology manager and buddy-group coordinator
// publish changes, and RPC TopologyService.SubscribeTopology fans them
// out to subscribed clients.
package events

import (
	"sync"
	"time"
)

// Type identifies the kind of topology change that occurred.
type Type string

const (
	TypeNodeRegistered    Type = "node.registered"
	TypeNodeOffline       Type = "node.offline"
	TypeNodeRemoved       Type = "node.removed"
	TypeTargetUpdated     Type = "target.updated"
	TypeCapacityReclassed Type = "capacity.reclassified"
	TypeQuotaExceeded     Type = "quota.exceeded"
	TypeBuddyResync       Type = "buddy.needs_resync"
	TypeBuddyFailover     Type = "buddy.failover"
	TypeRootInodeSet      Type = "root_inode.set"
)

// Event is one topology change notification.
type Event struct {
	Type      Type
	Timestamp time.Time
	EntityUID int64
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// Broker manages event subscriptions and fan-out distribution.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]bool
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 256),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's distribution loop.
func (b *Broker) Start() { go b.run() }

// Stop stops the broker.
func (b *Broker) Stop() { close(b.stopCh) }

// Subscribe creates a new subscription and returns its channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 64)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Publish publishes an event to all current subscribers.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full; drop rather than block the broker.
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
