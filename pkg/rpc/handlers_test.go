package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/beegfs/mgmtd/pkg/events"
	"github.com/beegfs/mgmtd/pkg/store"
	"github.com/beegfs/mgmtd/pkg/types"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), store.Config{Path: ":memory:", MaxReaders: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)
	return NewServer(Config{Addr: "127.0.0.1:0"}, st, broker, nil), st
}

func TestListNodes_ReturnsRegisteredNodes(t *testing.T) {
	s, st := newTestServer(t)
	_, err := st.RegisterNode(context.Background(), types.Node{Alias: "meta01", Kind: types.NodeMeta, Port: 8004})
	require.NoError(t, err)

	resp, err := s.ListNodes(context.Background(), &ListNodesRequest{Kind: "meta"})
	require.NoError(t, err)
	require.Len(t, resp.Nodes, 1)
	assert.Equal(t, "meta01", resp.Nodes[0].Alias)
}

func TestGetNode_UnknownNodeID_ReturnsNotFoundStatus(t *testing.T) {
	s, _ := newTestServer(t)
	_, err := s.GetNode(context.Background(), &GetNodeRequest{Kind: "meta", NodeID: 999})
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestRemoveNode_RemovesRegisteredNode(t *testing.T) {
	s, st := newTestServer(t)
	node, err := st.RegisterNode(context.Background(), types.Node{Alias: "storage01", Kind: types.NodeStorage, Port: 8003})
	require.NoError(t, err)

	_, err = s.RemoveNode(context.Background(), &RemoveNodeRequest{Kind: "storage", NodeID: node.NodeID})
	require.NoError(t, err)

	nodes, err := st.ListNodes(context.Background(), types.NodeStorage)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestCreatePool_ThenListPools_RoundTrips(t *testing.T) {
	s, _ := newTestServer(t)
	created, err := s.CreatePool(context.Background(), &CreatePoolRequest{Alias: "pool_fast"})
	require.NoError(t, err)

	resp, err := s.ListPools(context.Background(), &Empty{})
	require.NoError(t, err)
	var found bool
	for _, p := range resp.Pools {
		if p.PoolID == created.PoolID {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCreateBuddyGroup_ThenFailover_SwapsPrimaryAndSecondary(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()
	t1, err := st.RegisterTarget(ctx, types.Target{Alias: "t1", Kind: types.NodeStorage})
	require.NoError(t, err)
	t2, err := st.RegisterTarget(ctx, types.Target{Alias: "t2", Kind: types.NodeStorage})
	require.NoError(t, err)

	created, err := s.CreateBuddyGroup(ctx, &CreateBuddyGroupRequest{
		Alias: "bg1", Kind: "storage", PrimaryID: t1.TargetID, SecondaryID: t2.TargetID,
	})
	require.NoError(t, err)
	assert.Equal(t, t1.TargetID, created.PrimaryID)

	failed, err := s.FailoverBuddyGroup(ctx, &FailoverBuddyGroupRequest{Kind: "storage", GroupID: created.GroupID})
	require.NoError(t, err)
	assert.Equal(t, t2.TargetID, failed.PrimaryID)
	assert.Equal(t, t1.TargetID, failed.SecondaryID)
}

func TestSetQuotaLimit_ThenListQuotaLimits_RoundTrips(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()
	pool, err := st.ListPools(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, pool)

	_, err = s.SetQuotaLimit(ctx, &SetQuotaLimitRequest{
		QuotaID: 1001, IDType: "user", Type: "space", PoolID: pool[0].PoolID, Value: 1 << 30,
	})
	require.NoError(t, err)

	resp, err := s.ListQuotaLimits(ctx, &ListQuotaLimitsRequest{PoolID: pool[0].PoolID})
	require.NoError(t, err)
	require.Len(t, resp.Limits, 1)
	assert.EqualValues(t, 1<<30, resp.Limits[0].Value)
}

func TestRemoveTarget_RemovesRegisteredTarget(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()
	target, err := st.RegisterTarget(ctx, types.Target{Alias: "t1", Kind: types.NodeStorage})
	require.NoError(t, err)

	_, err = s.RemoveTarget(ctx, &RemoveTargetRequest{TargetID: target.TargetID})
	require.NoError(t, err)

	_, err = st.TargetByUID(ctx, target.UID)
	assert.Error(t, err)
}

func TestRemoveBuddyGroup_RemovesCreatedGroup(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()
	t1, err := st.RegisterTarget(ctx, types.Target{Alias: "t1", Kind: types.NodeStorage})
	require.NoError(t, err)
	t2, err := st.RegisterTarget(ctx, types.Target{Alias: "t2", Kind: types.NodeStorage})
	require.NoError(t, err)
	created, err := s.CreateBuddyGroup(ctx, &CreateBuddyGroupRequest{
		Alias: "bg1", Kind: "storage", PrimaryID: t1.TargetID, SecondaryID: t2.TargetID,
	})
	require.NoError(t, err)

	_, err = s.RemoveBuddyGroup(ctx, &RemoveBuddyGroupRequest{Kind: "storage", GroupID: created.GroupID})
	require.NoError(t, err)

	resp, err := s.ListBuddyGroups(ctx, &ListBuddyGroupsRequest{Kind: "storage"})
	require.NoError(t, err)
	assert.Empty(t, resp.Groups)
}

func TestSetQuotaDefaultLimit_PersistsDefaultLimit(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()
	pools, err := st.ListPools(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, pools)

	_, err = s.SetQuotaDefaultLimit(ctx, &SetQuotaDefaultLimitRequest{
		IDType: "user", Type: "space", PoolID: pools[0].PoolID, Value: 2 << 30,
	})
	require.NoError(t, err)

	value, ok, err := st.QuotaDefaultLimitFor(ctx, types.IdentityUser, types.QuotaSpace, pools[0].UID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 2<<30, value)
}

func TestSetRootInode_ThenGetRootInode_RoundTripsTarget(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()
	target, err := st.RegisterTarget(ctx, types.Target{Alias: "meta1", Kind: types.NodeMeta})
	require.NoError(t, err)

	_, err = s.SetRootInode(ctx, &SetRootInodeRequest{TargetID: target.TargetID})
	require.NoError(t, err)

	got, err := s.GetRootInode(ctx, &Empty{})
	require.NoError(t, err)
	assert.Equal(t, target.TargetID, got.TargetID)
	assert.Zero(t, got.GroupID)
}

func TestSetRootInode_RejectsStorageTarget(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()
	target, err := st.RegisterTarget(ctx, types.Target{Alias: "s1", Kind: types.NodeStorage})
	require.NoError(t, err)

	_, err = s.SetRootInode(ctx, &SetRootInodeRequest{TargetID: target.TargetID})
	assert.Error(t, err)
}

func TestSubscribeTopology_ReceivesPublishedEvent(t *testing.T) {
	s, _ := newTestServer(t)
	sub := s.events.Subscribe()
	defer s.events.Unsubscribe(sub)

	s.events.Publish(&events.Event{Type: events.TypeNodeRegistered, EntityUID: 42, Message: "test"})

	ev := <-sub
	got := toTopologyEvent(ev)
	assert.Equal(t, "node.registered", got.Type)
	assert.EqualValues(t, 42, got.EntityUID)
}
