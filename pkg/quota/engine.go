// Package quota implements the periodic pull/compare/push cycle that
// keeps per-identity storage accounting consistent across the cluster:
// tracked identities are enumerated, each active storage node is asked
// for its locally observed usage, the results are persisted, usage is
// summed per pool and compared against configured limits, and any
// identity over its limit is pushed back out so storage nodes can
// enforce locally.
package quota

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/beegfs/mgmtd/pkg/beemsg"
	"github.com/beegfs/mgmtd/pkg/clock"
	"github.com/beegfs/mgmtd/pkg/log"
	"github.com/beegfs/mgmtd/pkg/store"
	"github.com/beegfs/mgmtd/pkg/topology"
	"github.com/beegfs/mgmtd/pkg/types"
)

// Config controls the quota cycle's tracked identities, timing, and
// enforcement policy. Enforce gates step 5 only: steps 1-4 (enumerate,
// pull, persist, compute-exceeded) always run regardless, so an
// administrator can watch usage accumulate before flipping enforcement
// on.
type Config struct {
	Users        IdentitySource
	Groups       IdentitySource
	PasswdPath   string // defaults to /etc/passwd
	GroupPath    string // defaults to /etc/group
	TickInterval time.Duration
	Enforce      bool
}

// Engine drives the quota cycle on its own clock-backed ticker,
// mirroring topology.Manager.Run's shutdown shape.
type Engine struct {
	cfg    Config
	store  *store.Store
	cache  *topology.Cache
	client *beemsg.Client
	clock  clock.Clock
	log    zerolog.Logger
}

// NewEngine wires an Engine to the store, the topology cache it reads
// reachable storage nodes from, and the BeeMsg client it pulls/pushes
// through.
func NewEngine(cfg Config, st *store.Store, cache *topology.Cache, client *beemsg.Client, clk clock.Clock) *Engine {
	if cfg.TickInterval == 0 {
		cfg.TickInterval = 30 * time.Second
	}
	if cfg.PasswdPath == "" {
		cfg.PasswdPath = "/etc/passwd"
	}
	if cfg.GroupPath == "" {
		cfg.GroupPath = "/etc/group"
	}
	return &Engine{
		cfg:    cfg,
		store:  st,
		cache:  cache,
		client: client,
		clock:  clk,
		log:    log.WithComponent("quota"),
	}
}

// Run drives one cycle per tick until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := e.clock.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			if err := e.Cycle(ctx); err != nil {
				e.log.Error().Err(err).Msg("quota cycle failed")
			}
		}
	}
}

// trackedIdentity pairs an enumerated ID with the identity type it was
// enumerated for, so the pull/push phases can iterate user and group
// accounting independently without duplicating the walk.
type trackedIdentity struct {
	idType types.IdentityType
	id     int64
}

// Cycle runs steps 1-4 unconditionally and step 5 (push) only if
// enforcement is enabled.
func (e *Engine) Cycle(ctx context.Context) error {
	identities, err := e.enumerate()
	if err != nil {
		return err
	}
	e.log.Debug().Int("count", len(identities)).Msg("tracked identities enumerated")

	if err := e.pull(ctx, identities); err != nil {
		return err
	}

	pools, err := e.store.ListPools(ctx)
	if err != nil {
		return err
	}
	for _, pool := range pools {
		for _, idType := range []types.IdentityType{types.IdentityUser, types.IdentityGroup} {
			for _, qtype := range []types.QuotaType{types.QuotaSpace, types.QuotaInodes} {
				exceeded, err := e.computeExceeded(ctx, pool.UID, idType, qtype)
				if err != nil {
					return err
				}
				if !e.cfg.Enforce || len(exceeded) == 0 {
					continue
				}
				if err := e.push(pool.UID, idType, qtype, exceeded); err != nil {
					e.log.Warn().Err(err).Uint16("pool_id", pool.PoolID).Msg("failed to push exceeded quota")
				}
			}
		}
	}
	return nil
}

// enumerate runs step 1: build the independent tracked sets for users
// and groups.
func (e *Engine) enumerate() ([]trackedIdentity, error) {
	var out []trackedIdentity

	userIDs, err := Enumerate(e.cfg.Users, e.cfg.PasswdPath)
	if err != nil {
		return nil, err
	}
	for _, id := range userIDs {
		out = append(out, trackedIdentity{idType: types.IdentityUser, id: id})
	}

	groupIDs, err := Enumerate(e.cfg.Groups, e.cfg.GroupPath)
	if err != nil {
		return nil, err
	}
	for _, id := range groupIDs {
		out = append(out, trackedIdentity{idType: types.IdentityGroup, id: id})
	}

	return out, nil
}

// pull runs steps 2-3: ask every reachable storage node for each
// tracked identity's usage and persist it per target. A node addresses
// usage as a whole, not per target, so its reported value is recorded
// against every target it owns; this only double counts on the
// atypical deployment where a single storage node serves more than one
// target in the same pool, a limitation noted in the project's design
// notes since the wire protocol carries no target field.
func (e *Engine) pull(ctx context.Context, identities []trackedIdentity) error {
	nodes := e.cache.ActiveNodesByKind(types.NodeStorage)
	for _, n := range nodes {
		addr, ok := topology.Addr(n)
		if !ok {
			continue
		}
		targets := e.cache.TargetsByNode(n.UID)
		if len(targets) == 0 {
			continue
		}

		for _, qtype := range []types.QuotaType{types.QuotaSpace, types.QuotaInodes} {
			for _, ident := range identities {
				value, err := e.client.PullQuotaUsage(addr, ident.idType, qtype, ident.id)
				if err != nil {
					e.log.Warn().Err(err).Str("addr", addr).Int64("id", ident.id).Msg("quota pull failed")
					continue
				}
				for _, t := range targets {
					if err := ctx.Err(); err != nil {
						return err
					}
					u := types.QuotaUsage{QuotaID: ident.id, IDType: ident.idType, Type: qtype, TargetID: t.UID, Value: value}
					if err := e.store.RecordQuotaUsage(ctx, u); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// computeExceeded runs step 4 for one (pool, idType, qtype): sum usage
// across the pool's targets for every identity that has reported any,
// and compare against its specific limit or, absent one, the pool's
// default limit. Identities with neither are never exceeded.
func (e *Engine) computeExceeded(ctx context.Context, poolUID int64, idType types.IdentityType, qtype types.QuotaType) ([]int64, error) {
	ids, err := e.store.DistinctQuotaIDsInPool(ctx, idType, qtype, poolUID)
	if err != nil {
		return nil, err
	}

	defaultLimit, hasDefault, err := e.store.QuotaDefaultLimitFor(ctx, idType, qtype, poolUID)
	if err != nil {
		return nil, err
	}

	var exceeded []int64
	for _, id := range ids {
		limit, hasSpecific, err := e.store.QuotaLimitFor(ctx, id, idType, qtype, poolUID)
		if err != nil {
			return nil, err
		}
		if !hasSpecific {
			if !hasDefault {
				continue
			}
			limit = defaultLimit
		}

		usage, err := e.store.SumQuotaUsageInPool(ctx, id, idType, qtype, poolUID)
		if err != nil {
			return nil, err
		}
		if usage > limit {
			exceeded = append(exceeded, id)
		}
	}
	return exceeded, nil
}

// push runs step 5: notify every active storage node serving poolUID
// which identities of (idType, qtype) are currently over their limit.
func (e *Engine) push(poolUID int64, idType types.IdentityType, qtype types.QuotaType, exceeded []int64) error {
	seen := map[int64]struct{}{}
	for _, t := range e.allPoolTargets(poolUID) {
		if t.NodeUID == nil {
			continue
		}
		if _, ok := seen[*t.NodeUID]; ok {
			continue
		}
		seen[*t.NodeUID] = struct{}{}

		n, ok := e.cache.Node(*t.NodeUID)
		if !ok || n.RegState != types.StateActive {
			continue
		}
		addr, ok := topology.Addr(n)
		if !ok {
			continue
		}
		if err := e.client.PushExceededQuota(addr, idType, qtype, exceeded); err != nil {
			return err
		}
	}
	return nil
}

// allPoolTargets scans every storage node's owned targets for the ones
// belonging to poolUID; the cache indexes targets by node, not by pool,
// since pool membership changes far less often than ownership.
func (e *Engine) allPoolTargets(poolUID int64) []types.Target {
	var out []types.Target
	for _, n := range e.cache.NodesByKind(types.NodeStorage) {
		for _, t := range e.cache.TargetsByNode(n.UID) {
			if t.PoolUID == poolUID {
				out = append(out, t)
			}
		}
	}
	return out
}
