package topology

import (
	"sync"

	"github.com/beegfs/mgmtd/pkg/types"
)

// snapshot is one immutable view of the cluster topology. A new snapshot
// entirely replaces the old one rather than being mutated in place, so
// readers never observe a partially-updated view.
type snapshot struct {
	nodesByUID   map[int64]types.Node
	nodesByKind  map[types.NodeKind][]types.Node
	targetsByUID map[int64]types.Target
	groups       []types.BuddyGroup
}

func emptySnapshot() *snapshot {
	return &snapshot{
		nodesByUID:   make(map[int64]types.Node),
		nodesByKind:  make(map[types.NodeKind][]types.Node),
		targetsByUID: make(map[int64]types.Target),
	}
}

// Cache is the topology manager's warm, read-optimized view of the
// cluster, refreshed wholesale on every mutation. Reads take a read lock
// over a pointer swap, so readers never block each other and never block
// behind a writer refreshing the view.
type Cache struct {
	mu   sync.RWMutex
	snap *snapshot
}

// NewCache returns an empty cache, ready to be populated by Replace.
func NewCache() *Cache {
	return &Cache{snap: emptySnapshot()}
}

// Replace swaps in a freshly built view of the cluster.
func (c *Cache) Replace(nodes []types.Node, targets []types.Target, groups []types.BuddyGroup) {
	s := emptySnapshot()
	for _, n := range nodes {
		s.nodesByUID[n.UID] = n
		s.nodesByKind[n.Kind] = append(s.nodesByKind[n.Kind], n)
	}
	for _, t := range targets {
		s.targetsByUID[t.UID] = t
	}
	s.groups = groups

	c.mu.Lock()
	c.snap = s
	c.mu.Unlock()
}

// Node returns a node by UID.
func (c *Cache) Node(uid int64) (types.Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.snap.nodesByUID[uid]
	return n, ok
}

// NodesByKind returns every node of the given kind, active or not.
func (c *Cache) NodesByKind(kind types.NodeKind) []types.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Node, len(c.snap.nodesByKind[kind]))
	copy(out, c.snap.nodesByKind[kind])
	return out
}

// ActiveNodesByKind returns every node of the given kind currently in the
// active registration state, the set eligible to receive BeeMsg pushes.
func (c *Cache) ActiveNodesByKind(kind types.NodeKind) []types.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []types.Node
	for _, n := range c.snap.nodesByKind[kind] {
		if n.RegState == types.StateActive {
			out = append(out, n)
		}
	}
	return out
}

// Target returns a target by UID.
func (c *Cache) Target(uid int64) (types.Target, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.snap.targetsByUID[uid]
	return t, ok
}

// TargetsByNode returns every target currently mapped to nodeUID.
func (c *Cache) TargetsByNode(nodeUID int64) []types.Target {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []types.Target
	for _, t := range c.snap.targetsByUID {
		if t.NodeUID != nil && *t.NodeUID == nodeUID {
			out = append(out, t)
		}
	}
	return out
}

// BuddyGroups returns every buddy group currently known.
func (c *Cache) BuddyGroups() []types.BuddyGroup {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.BuddyGroup, len(c.snap.groups))
	copy(out, c.snap.groups)
	return out
}
