// Package topology implements the node/target registration state
// machine, ID assignment, and liveness tracking that sit above the
// store's durable bookkeeping: the Store holds the durable truth, the
// Manager's Cache holds a warm, read-optimized view refreshed on every
// mutation.
package topology

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/beegfs/mgmtd/pkg/clock"
	"github.com/beegfs/mgmtd/pkg/events"
	"github.com/beegfs/mgmtd/pkg/log"
	"github.com/beegfs/mgmtd/pkg/metrics"
	"github.com/beegfs/mgmtd/pkg/mgmterr"
	"github.com/beegfs/mgmtd/pkg/store"
	"github.com/beegfs/mgmtd/pkg/types"
)

// Config controls registration policy and liveness timeouts.
type Config struct {
	RegistrationEnabled bool
	OfflineTimeout      time.Duration // active -> offline after this much silence
	AutoRemoveTimeout   time.Duration // client_offline -> removed after this much more silence
	TickInterval        time.Duration // liveness tick period, default 1s
}

// Manager owns the registration state machine, ID assignment (delegated
// to the Store, which tracks the smallest-unused-node_id invariant), and
// the per-second liveness tick described in the topology manager's
// specification.
type Manager struct {
	cfg      Config
	store    *store.Store
	cache    *Cache
	events   *events.Broker
	liveness *LivenessStore // optional; nil disables warm-restart persistence
	clock    clock.Clock
	log      zerolog.Logger
}

// NewManager wires a Manager to its Store, event broker, and clock.
// liveness may be nil, in which case last-contact times are kept only in
// the Store.
func NewManager(cfg Config, st *store.Store, broker *events.Broker, liveness *LivenessStore, clk clock.Clock) *Manager {
	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Second
	}
	return &Manager{
		cfg:      cfg,
		store:    st,
		cache:    NewCache(),
		events:   broker,
		liveness: liveness,
		clock:    clk,
		log:      log.WithComponent("topology"),
	}
}

// Cache exposes the manager's warm read-optimized view.
func (m *Manager) Cache() *Cache { return m.cache }

// Addr builds the "host:port" BeeMsg address for a node from its first
// advertised NIC, reporting false if the node has none (not yet possible
// for an active node, but guards callers against a node mid-registration).
func Addr(n types.Node) (string, bool) {
	if len(n.NICs) == 0 {
		return "", false
	}
	return net.JoinHostPort(n.NICs[0].Address, strconv.Itoa(int(n.Port))), true
}

// RegisterNode handles a node's registration request: UNKNOWN -> PROPOSED
// -> ACTIVE. A node identified by a previously-seen machine UUID reuses
// its prior node_id and is reactivated rather than re-proposed. When
// registration is globally disabled, only already-known machines may
// proceed; a genuinely new machine is rejected.
func (m *Manager) RegisterNode(ctx context.Context, req types.Node) (types.Node, error) {
	if !m.cfg.RegistrationEnabled {
		known := false
		if req.MachineUUID != "" {
			var err error
			_, known, err = m.store.NodeByMachineUUID(ctx, req.Kind, req.MachineUUID)
			if err != nil {
				return types.Node{}, err
			}
		}
		if !known {
			return types.Node{}, mgmterr.New(mgmterr.KindRegistryDisabled, "node registration is disabled")
		}
	}

	n, err := m.store.RegisterNode(ctx, req)
	if err != nil {
		return types.Node{}, err
	}
	now := m.clock.Now()
	if err := m.store.ActivateNode(ctx, n.UID); err != nil {
		return types.Node{}, err
	}
	if err := m.store.TouchNode(ctx, n.UID, now.Unix()); err != nil {
		return types.Node{}, err
	}
	n.RegState = types.StateActive
	n.LastContact = now
	m.touchLiveness(n.UID, now)

	m.events.Publish(&events.Event{Type: events.TypeNodeRegistered, EntityUID: n.UID, Message: n.Alias})
	if err := m.Refresh(ctx); err != nil {
		return n, err
	}
	return n, nil
}

// RegisterTarget handles the target registration nested inside a storage
// or meta node's registration, assigning it a target_id per kind.
func (m *Manager) RegisterTarget(ctx context.Context, req types.Target) (types.Target, error) {
	t, err := m.store.RegisterTarget(ctx, req)
	if err != nil {
		return types.Target{}, err
	}
	if err := m.Refresh(ctx); err != nil {
		return t, err
	}
	return t, nil
}

// Heartbeat advances a node's last-contact time, returning it from
// OFFLINE or CLIENT-OFFLINE back to ACTIVE if applicable.
func (m *Manager) Heartbeat(ctx context.Context, nodeUID int64) error {
	now := m.clock.Now()
	if err := m.store.TouchNode(ctx, nodeUID, now.Unix()); err != nil {
		return err
	}
	m.touchLiveness(nodeUID, now)
	return m.Refresh(ctx)
}

// Refresh rebuilds the cache from the store's current state. Called
// after every mutation and once at startup.
func (m *Manager) Refresh(ctx context.Context) error {
	var nodes []types.Node
	for _, kind := range []types.NodeKind{types.NodeMeta, types.NodeStorage, types.NodeClient, types.NodeManagement} {
		ns, err := m.store.ListNodes(ctx, kind)
		if err != nil {
			return err
		}
		nodes = append(nodes, ns...)
	}

	var targets []types.Target
	for _, kind := range []types.NodeKind{types.NodeMeta, types.NodeStorage} {
		ts, err := m.store.ListTargets(ctx, kind)
		if err != nil {
			return err
		}
		targets = append(targets, ts...)
	}

	var groups []types.BuddyGroup
	for _, kind := range []types.NodeKind{types.NodeMeta, types.NodeStorage} {
		gs, err := m.store.ListBuddyGroups(ctx, kind)
		if err != nil {
			return err
		}
		groups = append(groups, gs...)
	}

	m.cache.Replace(nodes, targets, groups)
	m.recordMetrics(nodes, targets, groups)
	return nil
}

func (m *Manager) recordMetrics(nodes []types.Node, targets []types.Target, groups []types.BuddyGroup) {
	counts := map[[2]string]int{}
	for _, n := range nodes {
		counts[[2]string{string(n.Kind), string(n.RegState)}]++
	}
	for k, v := range counts {
		metrics.NodesTotal.WithLabelValues(k[0], k[1]).Set(float64(v))
	}

	targetCounts := map[[2]string]int{}
	for _, t := range targets {
		targetCounts[[2]string{string(t.Kind), string(t.Consistency)}]++
	}
	for k, v := range targetCounts {
		metrics.TargetsTotal.WithLabelValues(k[0], k[1]).Set(float64(v))
	}

	groupCounts := map[string]int{}
	for _, g := range groups {
		groupCounts[string(g.Kind)]++
	}
	for k, v := range groupCounts {
		metrics.BuddyGroupsTotal.WithLabelValues(k).Set(float64(v))
	}
}

func (m *Manager) touchLiveness(uid int64, at time.Time) {
	if m.liveness == nil {
		return
	}
	if err := m.liveness.Touch(uid, at); err != nil {
		m.log.Warn().Err(err).Int64("uid", uid).Msg("failed to persist liveness touch")
	}
}

// Tick runs one liveness pass: nodes silent past OfflineTimeout move to
// OFFLINE (or CLIENT-OFFLINE for clients); clients silent past
// OfflineTimeout+AutoRemoveTimeout are reaped entirely. Storage and meta
// nodes are never auto-removed.
func (m *Manager) Tick(ctx context.Context) error {
	now := m.clock.Now()

	offlineCutoff := now.Add(-m.cfg.OfflineTimeout).Unix()
	newlyOffline, err := m.store.MarkNodesOffline(ctx, offlineCutoff)
	if err != nil {
		return err
	}
	for _, uid := range newlyOffline {
		m.events.Publish(&events.Event{Type: events.TypeNodeOffline, EntityUID: uid})
	}

	removeCutoff := now.Add(-m.cfg.OfflineTimeout - m.cfg.AutoRemoveTimeout).Unix()
	removed, err := m.store.ReapOfflineClients(ctx, removeCutoff)
	if err != nil {
		return err
	}
	for _, uid := range removed {
		m.events.Publish(&events.Event{Type: events.TypeNodeRemoved, EntityUID: uid})
		if m.liveness != nil {
			if err := m.liveness.Forget(uid); err != nil {
				m.log.Warn().Err(err).Int64("uid", uid).Msg("failed to forget liveness record")
			}
		}
	}

	if len(newlyOffline) > 0 || len(removed) > 0 {
		return m.Refresh(ctx)
	}
	return nil
}

// Run drives the liveness tick on the manager's clock until ctx is
// canceled, matching the supervisor's cooperative-task shutdown model:
// the ticker is stopped and Run returns as soon as ctx.Done() fires.
func (m *Manager) Run(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			if err := m.Tick(ctx); err != nil {
				m.log.Error().Err(err).Msg("liveness tick failed")
			}
		}
	}
}
