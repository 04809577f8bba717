package capacity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/beegfs/mgmtd/pkg/beemsg"
	"github.com/beegfs/mgmtd/pkg/clock"
	"github.com/beegfs/mgmtd/pkg/log"
	"github.com/beegfs/mgmtd/pkg/topology"
	"github.com/beegfs/mgmtd/pkg/types"
)

// metaPoolUID is the virtual pool meta targets are grouped under; meta
// targets have no real PoolUID since pools only administer storage.
const metaPoolUID int64 = 0

// Config controls the classifier engine's tick and the limits applied to
// every pool. Per-pool limit overrides are an open question the minimum
// CLI surface never resolved (it carries no --capacity-* flags at all);
// a single Limits value applied uniformly is the documented decision.
type Config struct {
	Limits       Limits
	TickInterval time.Duration
}

// Engine re-runs Classify on the heartbeat tick, reducing storage buddy
// groups to the worse of their two members first, and pushes a
// PushCapacityClass BeeMsg to every node whose target's class changed
// since the previous cycle.
type Engine struct {
	cfg    Config
	cache  *topology.Cache
	client *beemsg.Client
	clock  clock.Clock
	log    zerolog.Logger

	mu        sync.Mutex
	lastClass map[int64]types.CapacityClass
}

// NewEngine wires an Engine to the topology cache it reads from and the
// BeeMsg client it pushes class changes through.
func NewEngine(cfg Config, cache *topology.Cache, client *beemsg.Client, clk clock.Clock) *Engine {
	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Second
	}
	return &Engine{
		cfg:       cfg,
		cache:     cache,
		client:    client,
		clock:     clk,
		log:       log.WithComponent("capacity"),
		lastClass: make(map[int64]types.CapacityClass),
	}
}

// Run drives Cycle on the engine's clock until ctx is canceled, matching
// the shutdown shape every other ticker-driven component in this daemon
// uses.
func (e *Engine) Run(ctx context.Context) error {
	ticker := e.clock.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			if err := e.Cycle(ctx); err != nil {
				e.log.Error().Err(err).Msg("capacity classification cycle failed")
			}
		}
	}
}

// Cycle classifies every storage pool and the meta pool, pushing updates
// for any entity whose class changed.
func (e *Engine) Cycle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	byPool := map[int64][]Entity{}
	memberUID := map[int64]bool{}
	for _, g := range e.cache.BuddyGroups() {
		if g.Kind != types.NodeStorage {
			continue
		}
		primary, _ := e.cache.Target(g.PrimaryUID)
		secondary, _ := e.cache.Target(g.SecondaryUID)
		memberUID[g.PrimaryUID] = true
		memberUID[g.SecondaryUID] = true
		ent := MinOfTwo(g.UID, entityOf(g.PrimaryUID, primary), entityOf(g.SecondaryUID, secondary))
		byPool[g.PoolUID] = append(byPool[g.PoolUID], ent)
	}
	for _, n := range e.cache.NodesByKind(types.NodeStorage) {
		for _, t := range e.cache.TargetsByNode(n.UID) {
			if memberUID[t.UID] {
				continue
			}
			byPool[t.PoolUID] = append(byPool[t.PoolUID], entityOf(t.UID, t))
		}
	}

	var metaEntities []Entity
	for _, n := range e.cache.NodesByKind(types.NodeMeta) {
		for _, t := range e.cache.TargetsByNode(n.UID) {
			metaEntities = append(metaEntities, entityOf(t.UID, t))
		}
	}
	byPool[metaPoolUID] = append(byPool[metaPoolUID], metaEntities...)

	for poolUID, entities := range byPool {
		if len(entities) == 0 {
			continue
		}
		for _, r := range Classify(e.cfg.Limits, entities) {
			e.applyResult(ctx, poolUID, r)
		}
	}
	return nil
}

func entityOf(uid int64, t types.Target) Entity {
	return Entity{UID: uid, FreeSpace: t.Capacity.FreeSpace, FreeInodes: t.Capacity.FreeInodes}
}

func (e *Engine) applyResult(ctx context.Context, poolUID int64, r Result) {
	e.mu.Lock()
	prev, seen := e.lastClass[r.UID]
	changed := !seen || prev != r.Class
	e.lastClass[r.UID] = r.Class
	e.mu.Unlock()
	if !changed {
		return
	}
	e.push(ctx, r.UID, r.Class)
}

// push sends the new class to every node owning the target (a group UID
// fans out to both members; a plain target UID pushes once).
func (e *Engine) push(ctx context.Context, uid int64, class types.CapacityClass) {
	if ctx.Err() != nil {
		return
	}
	if t, ok := e.cache.Target(uid); ok {
		e.pushToTarget(t, class)
		return
	}
	for _, g := range e.cache.BuddyGroups() {
		if g.UID != uid {
			continue
		}
		if pt, ok := e.cache.Target(g.PrimaryUID); ok {
			e.pushToTarget(pt, class)
		}
		if st, ok := e.cache.Target(g.SecondaryUID); ok {
			e.pushToTarget(st, class)
		}
		return
	}
}

func (e *Engine) pushToTarget(t types.Target, class types.CapacityClass) {
	if t.NodeUID == nil {
		return
	}
	n, ok := e.cache.Node(*t.NodeUID)
	if !ok || n.RegState != types.StateActive {
		return
	}
	addr, ok := topology.Addr(n)
	if !ok {
		return
	}
	if err := e.client.PushCapacityClass(addr, t.TargetID, class); err != nil {
		e.log.Warn().Err(err).Int64("target_uid", t.UID).Str("class", string(class)).
			Msg("failed to push capacity class")
	}
}
