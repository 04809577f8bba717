/*
Package events is an in-memory pub/sub broker for topology-change
notifications.

A single Broker instance is shared by the process. Publishers (the
topology manager, the buddy-group coordinator, and the RPC handlers) call
Publish with a typed Event; subscribers, chiefly RPC's
TopologyService.SubscribeTopology stream, call Subscribe and range over
the returned channel. Delivery is non-blocking: a subscriber whose buffer
is full misses the event rather than stalling the broadcast loop, since a
streaming RPC client is expected to reconnect and re-list on gaps.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&events.Event{
		Type:      events.TypeNodeRegistered,
		EntityUID: node.UID,
		Message:   "node registered",
	})

	for ev := range sub {
		// forward ev to the RPC stream
	}

# Event types

node.registered, node.offline, node.removed track the registration state
machine; target.updated covers consistency changes and target removal;
buddy.needs_resync and buddy.failover track buddy-group health, and the
RPC layer also sends buddy.needs_resync when a buddy group is removed.
capacity.reclassified and
quota.exceeded are defined, but the capacity and quota engines hold no
broker and never publish them.
*/
package events
