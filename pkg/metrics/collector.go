package metrics

import (
	"context"
	"time"

	"github.com/beegfs/mgmtd/pkg/types"
)

// topologySource is the read surface Collector needs. pkg/store.Store
// satisfies it; tests can supply a stub.
type topologySource interface {
	ListNodes(ctx context.Context, kind types.NodeKind) ([]types.Node, error)
	ListTargets(ctx context.Context, kind types.NodeKind) ([]types.Target, error)
	ListBuddyGroups(ctx context.Context, kind types.NodeKind) ([]types.BuddyGroup, error)
}

// Collector periodically refreshes the gauge-shaped metrics from the
// current store contents. Counters and histograms are updated inline by
// the wire/RPC/store packages as events happen, not here.
type Collector struct {
	store  topologySource
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(store topologySource) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a fixed interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c.collectNodeMetrics(ctx)
	c.collectTargetMetrics(ctx)
	c.collectBuddyGroupMetrics(ctx)
}

func (c *Collector) collectNodeMetrics(ctx context.Context) {
	nodes, err := c.store.ListNodes(ctx, "")
	if err != nil {
		return
	}

	counts := make(map[string]map[string]int)
	for _, n := range nodes {
		kind := string(n.Kind)
		if counts[kind] == nil {
			counts[kind] = make(map[string]int)
		}
		counts[kind][string(n.RegState)]++
	}

	for kind, states := range counts {
		for state, count := range states {
			NodesTotal.WithLabelValues(kind, state).Set(float64(count))
		}
	}
}

func (c *Collector) collectTargetMetrics(ctx context.Context) {
	targets, err := c.store.ListTargets(ctx, "")
	if err != nil {
		return
	}

	counts := make(map[string]map[string]int)
	for _, t := range targets {
		kind := string(t.Kind)
		if counts[kind] == nil {
			counts[kind] = make(map[string]int)
		}
		counts[kind][string(t.Consistency)]++
	}

	for kind, consistencies := range counts {
		for consistency, count := range consistencies {
			TargetsTotal.WithLabelValues(kind, consistency).Set(float64(count))
		}
	}
}

func (c *Collector) collectBuddyGroupMetrics(ctx context.Context) {
	groups, err := c.store.ListBuddyGroups(ctx, "")
	if err != nil {
		return
	}

	counts := make(map[string]int)
	for _, g := range groups {
		counts[string(g.Kind)]++
	}
	for kind, count := range counts {
		BuddyGroupsTotal.WithLabelValues(kind).Set(float64(count))
	}
}
