package capacity

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beegfs/mgmtd/pkg/beemsg"
	"github.com/beegfs/mgmtd/pkg/clock"
	"github.com/beegfs/mgmtd/pkg/topology"
	"github.com/beegfs/mgmtd/pkg/types"
	"github.com/beegfs/mgmtd/pkg/wire"
)

// fakeStorageNode answers SetCapacityPool with an OK ack and records every
// push it receives, standing in for a storage daemon the same way
// pkg/quota's own fake node does for GetQuotaInfo/SetExceededQuota.
type fakeStorageNode struct {
	lis net.Listener

	mu     sync.Mutex
	pushes []wire.SetCapacityPool
}

func newFakeStorageNode(t *testing.T) *fakeStorageNode {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	n := &fakeStorageNode{lis: lis}
	go n.serve()
	t.Cleanup(func() { lis.Close() })
	return n
}

func (n *fakeStorageNode) addr() string { return n.lis.Addr().String() }

func (n *fakeStorageNode) serve() {
	for {
		conn, err := n.lis.Accept()
		if err != nil {
			return
		}
		go n.handle(conn)
	}
}

func (n *fakeStorageNode) handle(conn net.Conn) {
	defer conn.Close()
	for {
		h, err := wire.DecodeHeader(conn)
		if err != nil {
			return
		}
		body := make([]byte, int(h.Length)-wire.HeaderSize)
		if _, err := readFullConn(conn, body); err != nil {
			return
		}
		if h.Type != wire.MsgSetCapacityPool {
			return
		}
		req := &wire.SetCapacityPool{}
		if err := req.DecodeBody(bytes.NewReader(body)); err != nil {
			return
		}
		n.mu.Lock()
		n.pushes = append(n.pushes, *req)
		n.mu.Unlock()
		if err := wire.Encode(conn, &wire.Ack{OK: true}, nil); err != nil {
			return
		}
	}
}

func readFullConn(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		m, err := conn.Read(buf[total:])
		total += m
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (n *fakeStorageNode) received() []wire.SetCapacityPool {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]wire.SetCapacityPool, len(n.pushes))
	copy(out, n.pushes)
	return out
}

func int64p(v int64) *int64 { return &v }

func nodeAndTarget(t *testing.T, addr string, targetID uint16, kind types.NodeKind, free, freeInodes int64) (types.Node, types.Target) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	var port int
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}
	nodeUID := int64(targetID) + 1000
	n := types.Node{UID: nodeUID, Alias: "n", Kind: kind, Port: uint16(port), RegState: types.StateActive,
		NICs: []types.NIC{{Type: types.NICEthernet, Address: host, Name: "eth0"}}}
	target := types.Target{UID: int64(targetID), Alias: "t", Kind: kind, TargetID: targetID, NodeUID: &nodeUID,
		Capacity: types.Capacity{FreeSpace: int64p(free), FreeInodes: int64p(freeInodes)}}
	return n, target
}

func TestEngine_PushesOnFirstClassification(t *testing.T) {
	node := newFakeStorageNode(t)
	n, tgt := nodeAndTarget(t, node.addr(), 1, types.NodeStorage, 100, 100)

	cache := topology.NewCache()
	cache.Replace([]types.Node{n}, []types.Target{tgt}, nil)

	client := beemsg.NewClient(beemsg.Config{})
	t.Cleanup(client.Close)
	fc := clock.NewFake(time.Unix(0, 0))

	eng := NewEngine(Config{Limits: Limits{SpaceLow: 10, InodesLow: 10}}, cache, client, fc)
	require.NoError(t, eng.Cycle(context.Background()))

	received := node.received()
	require.Len(t, received, 1)
	assert.Equal(t, uint16(1), received[0].TargetID)
	assert.Equal(t, types.ClassNormal, received[0].Class)
}

func TestEngine_NoPushWhenClassUnchanged(t *testing.T) {
	node := newFakeStorageNode(t)
	n, tgt := nodeAndTarget(t, node.addr(), 1, types.NodeStorage, 100, 100)

	cache := topology.NewCache()
	cache.Replace([]types.Node{n}, []types.Target{tgt}, nil)

	client := beemsg.NewClient(beemsg.Config{})
	t.Cleanup(client.Close)
	fc := clock.NewFake(time.Unix(0, 0))

	eng := NewEngine(Config{Limits: Limits{SpaceLow: 10, InodesLow: 10}}, cache, client, fc)
	require.NoError(t, eng.Cycle(context.Background()))
	require.Len(t, node.received(), 1)

	require.NoError(t, eng.Cycle(context.Background()))
	assert.Len(t, node.received(), 1, "second cycle with no class change must not push again")
}

func TestEngine_PushesAgainWhenClassChanges(t *testing.T) {
	node := newFakeStorageNode(t)
	n, tgt := nodeAndTarget(t, node.addr(), 1, types.NodeStorage, 100, 100)

	cache := topology.NewCache()
	cache.Replace([]types.Node{n}, []types.Target{tgt}, nil)

	client := beemsg.NewClient(beemsg.Config{})
	t.Cleanup(client.Close)
	fc := clock.NewFake(time.Unix(0, 0))

	eng := NewEngine(Config{Limits: Limits{SpaceLow: 10, InodesLow: 10, SpaceEmergency: 5, InodesEmergency: 5}}, cache, client, fc)
	require.NoError(t, eng.Cycle(context.Background()))
	require.Equal(t, types.ClassNormal, eng.lastClass[1])

	tgt.Capacity.FreeSpace = int64p(0)
	cache.Replace([]types.Node{n}, []types.Target{tgt}, nil)
	require.NoError(t, eng.Cycle(context.Background()))

	received := node.received()
	require.Len(t, received, 2)
	assert.Equal(t, types.ClassEmergency, received[1].Class)
}

func TestEngine_BuddyGroupClassifiesAsWorseOfTwoMembersAndPushesBoth(t *testing.T) {
	primaryNode := newFakeStorageNode(t)
	secondaryNode := newFakeStorageNode(t)
	pn, pt := nodeAndTarget(t, primaryNode.addr(), 1, types.NodeStorage, 100, 100)
	sn, st := nodeAndTarget(t, secondaryNode.addr(), 2, types.NodeStorage, 0, 0)

	group := types.BuddyGroup{UID: 500, Alias: "bg", Kind: types.NodeStorage, PrimaryUID: pt.UID, SecondaryUID: st.UID}

	cache := topology.NewCache()
	cache.Replace([]types.Node{pn, sn}, []types.Target{pt, st}, []types.BuddyGroup{group})

	client := beemsg.NewClient(beemsg.Config{})
	t.Cleanup(client.Close)
	fc := clock.NewFake(time.Unix(0, 0))

	eng := NewEngine(Config{Limits: Limits{SpaceLow: 10, InodesLow: 10, SpaceEmergency: 5, InodesEmergency: 5}}, cache, client, fc)
	require.NoError(t, eng.Cycle(context.Background()))

	assert.Equal(t, types.ClassEmergency, eng.lastClass[group.UID])
	require.Len(t, primaryNode.received(), 1)
	require.Len(t, secondaryNode.received(), 1)
	assert.Equal(t, types.ClassEmergency, primaryNode.received()[0].Class)
	assert.Equal(t, types.ClassEmergency, secondaryNode.received()[0].Class)
}
