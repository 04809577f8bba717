// Package buddy owns primary/secondary/consistency tracking for mirrored
// meta and storage targets: marking a buddy needs_resync when its
// counterpart reports trouble, the atomic operator-triggered failover
// swap, and the topology-change events that let meta/storage/client
// daemons learn about both without polling the store directly.
package buddy

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/beegfs/mgmtd/pkg/events"
	"github.com/beegfs/mgmtd/pkg/log"
	"github.com/beegfs/mgmtd/pkg/mgmterr"
	"github.com/beegfs/mgmtd/pkg/store"
	"github.com/beegfs/mgmtd/pkg/types"
)

// Coordinator is the single owner of buddy-group consistency transitions
// and failovers; pkg/beemsg and pkg/rpc both delegate here rather than
// writing to the store directly, so every transition is published
// consistently regardless of which interface triggered it.
type Coordinator struct {
	store  *store.Store
	events *events.Broker
	log    zerolog.Logger
}

// NewCoordinator wires a Coordinator to its store and event broker.
func NewCoordinator(st *store.Store, broker *events.Broker) *Coordinator {
	return &Coordinator{store: st, events: broker, log: log.WithComponent("buddy")}
}

// ReportConsistency handles a target's periodic state message: reporterUID
// is the target that sent it, and observed is the consistency it believes
// its buddy is now in. If reporterUID belongs to no group, the report is
// applied to reporterUID itself (there is no buddy to redirect to);
// otherwise it is applied to reporterUID's buddy, since a target can only
// ever speak to its own counterpart's reachability, not its own.
func (c *Coordinator) ReportConsistency(ctx context.Context, reporterUID int64, observed types.Consistency) error {
	group, ok, err := c.store.GroupForTarget(ctx, reporterUID)
	if err != nil {
		return err
	}
	if !ok {
		return c.store.SetTargetConsistency(ctx, reporterUID, observed)
	}

	buddyUID := group.SecondaryUID
	if buddyUID == reporterUID {
		buddyUID = group.PrimaryUID
	}
	if err := c.store.SetTargetConsistency(ctx, buddyUID, observed); err != nil {
		return err
	}
	if observed == types.ConsistencyNeedsResync {
		c.events.Publish(&events.Event{Type: events.TypeBuddyResync, EntityUID: buddyUID, Message: "buddy reported unreachable"})
	}
	return nil
}

// SetConsistency directly sets targetUID's own consistency, the path an
// operator uses (via the RPC surface) rather than a daemon's periodic
// report. Transitioning to bad requires the group's other member to
// currently be good, so a group is never left with no healthy member.
func (c *Coordinator) SetConsistency(ctx context.Context, targetUID int64, consistency types.Consistency) error {
	if consistency == types.ConsistencyBad {
		group, ok, err := c.store.GroupForTarget(ctx, targetUID)
		if err != nil {
			return err
		}
		if ok {
			buddyUID := group.SecondaryUID
			if buddyUID == targetUID {
				buddyUID = group.PrimaryUID
			}
			buddy, err := c.store.TargetByUID(ctx, buddyUID)
			if err != nil {
				return err
			}
			if buddy.Consistency != types.ConsistencyGood {
				return mgmterr.New(mgmterr.KindStoreConstraint, "cannot mark target bad without a healthy surviving buddy")
			}
		}
	}
	if err := c.store.SetTargetConsistency(ctx, targetUID, consistency); err != nil {
		return err
	}
	c.events.Publish(&events.Event{Type: events.TypeTargetUpdated, EntityUID: targetUID, Message: "consistency set to " + string(consistency)})
	return nil
}

// Failover atomically swaps primary/secondary for groupUID and notifies
// subscribers so affected meta/storage/client nodes can redirect traffic.
func (c *Coordinator) Failover(ctx context.Context, groupUID int64) (types.BuddyGroup, error) {
	g, err := c.store.FailoverBuddyGroup(ctx, groupUID)
	if err != nil {
		return types.BuddyGroup{}, err
	}
	c.events.Publish(&events.Event{Type: events.TypeBuddyFailover, EntityUID: g.UID, Message: "failover"})
	return g, nil
}
