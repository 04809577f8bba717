package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beegfs/mgmtd/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{Path: ":memory:", MaxReaders: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_SeedsManagementSingletonAndDefaultPool(t *testing.T) {
	s := openTestStore(t)

	uid, kind, err := s.ResolveAlias(context.Background(), "management")
	require.NoError(t, err)
	assert.Equal(t, int64(1), uid)
	assert.Equal(t, types.EntityManagement, kind)

	pools, err := s.ListPools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, types.DefaultPoolID, pools[0].PoolID)
	assert.Equal(t, "storage_pool_default", pools[0].Alias)
}

func TestOpen_IsIdempotentAcrossReopens(t *testing.T) {
	// Reopening a database that has already been migrated must not attempt
	// to reapply migration 1 and duplicate the seed rows.
	s := openTestStore(t)
	v1, err := currentSchemaVersion(s.writerDB)
	require.NoError(t, err)

	require.NoError(t, migrate(s.writerDB))
	v2, err := currentSchemaVersion(s.writerDB)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	pools, err := s.ListPools(context.Background())
	require.NoError(t, err)
	assert.Len(t, pools, 1)
}

func TestRegisterNode_AssignsSmallestUnusedNodeID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n1, err := s.RegisterNode(ctx, types.Node{Alias: "meta1", Kind: types.NodeMeta, Port: 8004})
	require.NoError(t, err)
	assert.Equal(t, uint16(1), n1.NodeID)

	n2, err := s.RegisterNode(ctx, types.Node{Alias: "meta2", Kind: types.NodeMeta, Port: 8005})
	require.NoError(t, err)
	assert.Equal(t, uint16(2), n2.NodeID)

	require.NoError(t, s.RemoveNode(ctx, n1.UID))

	n3, err := s.RegisterNode(ctx, types.Node{Alias: "meta3", Kind: types.NodeMeta, Port: 8006})
	require.NoError(t, err)
	assert.Equal(t, uint16(1), n3.NodeID, "the freed ID should be reused for a new node")
}

func TestRegisterNode_ReRegistrationWithSameMachineUUIDIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.RegisterNode(ctx, types.Node{
		Alias: "storage1", Kind: types.NodeStorage, Port: 8003, MachineUUID: "uuid-1",
	})
	require.NoError(t, err)

	second, err := s.RegisterNode(ctx, types.Node{
		Alias: "storage1-retry", Kind: types.NodeStorage, Port: 8003, MachineUUID: "uuid-1",
	})
	require.NoError(t, err)

	assert.Equal(t, first.UID, second.UID)
	assert.Equal(t, first.NodeID, second.NodeID)

	nodes, err := s.ListNodes(ctx, types.NodeStorage)
	require.NoError(t, err)
	assert.Len(t, nodes, 1, "re-registration must not create a second node")
}

func TestUIDsAreNeverReused(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.RegisterNode(ctx, types.Node{Alias: "meta1", Kind: types.NodeMeta, Port: 8004})
	require.NoError(t, err)
	firstUID := n.UID

	require.NoError(t, s.RemoveNode(ctx, firstUID))

	n2, err := s.RegisterNode(ctx, types.Node{Alias: "meta1-again", Kind: types.NodeMeta, Port: 8004})
	require.NoError(t, err)
	assert.Greater(t, n2.UID, firstUID, "a UID must never be reused after its entity is deleted")
}

func TestRemoveNode_CascadesEntityRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.RegisterNode(ctx, types.Node{Alias: "meta1", Kind: types.NodeMeta, Port: 8004})
	require.NoError(t, err)

	require.NoError(t, s.RemoveNode(ctx, n.UID))

	_, _, err = s.ResolveAlias(ctx, "meta1")
	assert.Error(t, err, "the registry entry must be gone once the subtype row is deleted")
}

func TestRemoveNode_RestrictedWhileTargetReferencesIt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	node, err := s.RegisterNode(ctx, types.Node{Alias: "storage1", Kind: types.NodeStorage, Port: 8003})
	require.NoError(t, err)
	uid := node.UID

	target, err := s.RegisterTarget(ctx, types.Target{Alias: "target1", Kind: types.NodeStorage, NodeUID: &uid})
	require.NoError(t, err)
	require.NotZero(t, target.UID)

	err = s.RemoveNode(ctx, node.UID)
	assert.Error(t, err, "a node still referenced by a target must not be removable")
}

func TestCreateBuddyGroup_RejectsTargetReuse(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.RegisterTarget(ctx, types.Target{Alias: "t1", Kind: types.NodeStorage})
	require.NoError(t, err)
	b, err := s.RegisterTarget(ctx, types.Target{Alias: "t2", Kind: types.NodeStorage})
	require.NoError(t, err)
	c, err := s.RegisterTarget(ctx, types.Target{Alias: "t3", Kind: types.NodeStorage})
	require.NoError(t, err)

	_, err = s.CreateBuddyGroup(ctx, types.BuddyGroup{
		Alias: "bg1", Kind: types.NodeStorage, PrimaryUID: a.UID, SecondaryUID: b.UID,
	})
	require.NoError(t, err)

	_, err = s.CreateBuddyGroup(ctx, types.BuddyGroup{
		Alias: "bg2", Kind: types.NodeStorage, PrimaryUID: a.UID, SecondaryUID: c.UID,
	})
	assert.Error(t, err, "a target already in a buddy group of this kind must be rejected")
}

func TestFailoverBuddyGroup_SwapsAndMarksResync(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.RegisterTarget(ctx, types.Target{Alias: "t1", Kind: types.NodeStorage})
	require.NoError(t, err)
	b, err := s.RegisterTarget(ctx, types.Target{Alias: "t2", Kind: types.NodeStorage})
	require.NoError(t, err)

	group, err := s.CreateBuddyGroup(ctx, types.BuddyGroup{
		Alias: "bg1", Kind: types.NodeStorage, PrimaryUID: a.UID, SecondaryUID: b.UID,
	})
	require.NoError(t, err)

	after, err := s.FailoverBuddyGroup(ctx, group.UID)
	require.NoError(t, err)
	assert.Equal(t, b.UID, after.PrimaryUID)
	assert.Equal(t, a.UID, after.SecondaryUID)

	targets, err := s.ListTargets(ctx, types.NodeStorage)
	require.NoError(t, err)
	for _, tg := range targets {
		if tg.UID == a.UID {
			assert.Equal(t, types.ConsistencyNeedsResync, tg.Consistency)
		}
	}
}

func TestRemovePool_RefusesDefaultPool(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pools, err := s.ListPools(ctx)
	require.NoError(t, err)
	require.Len(t, pools, 1)

	err = s.RemovePool(ctx, pools[0].UID)
	assert.Error(t, err)
}

func TestQuotaUsage_SumsAcrossTargets(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	t1, err := s.RegisterTarget(ctx, types.Target{Alias: "t1", Kind: types.NodeStorage})
	require.NoError(t, err)
	t2, err := s.RegisterTarget(ctx, types.Target{Alias: "t2", Kind: types.NodeStorage})
	require.NoError(t, err)

	require.NoError(t, s.RecordQuotaUsage(ctx, types.QuotaUsage{
		QuotaID: 1001, IDType: types.IdentityUser, Type: types.QuotaSpace, TargetID: t1.UID, Value: 100,
	}))
	require.NoError(t, s.RecordQuotaUsage(ctx, types.QuotaUsage{
		QuotaID: 1001, IDType: types.IdentityUser, Type: types.QuotaSpace, TargetID: t2.UID, Value: 250,
	}))

	total, err := s.SumQuotaUsage(ctx, 1001, types.IdentityUser, types.QuotaSpace)
	require.NoError(t, err)
	assert.Equal(t, int64(350), total)
}

func TestRootInode_NotFoundUntilSet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.RootInode(ctx)
	assert.Error(t, err)
}

func TestSetRootInode_PointsAtMetaTarget(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	target, err := s.RegisterTarget(ctx, types.Target{Alias: "meta1", Kind: types.NodeMeta})
	require.NoError(t, err)

	require.NoError(t, s.SetRootInode(ctx, target.UID, 0))

	r, err := s.RootInode(ctx)
	require.NoError(t, err)
	require.NotNil(t, r.TargetUID)
	assert.Equal(t, target.UID, *r.TargetUID)
	assert.Nil(t, r.GroupUID)
}

func TestSetRootInode_RejectsStorageTarget(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	target, err := s.RegisterTarget(ctx, types.Target{Alias: "s1", Kind: types.NodeStorage})
	require.NoError(t, err)

	err = s.SetRootInode(ctx, target.UID, 0)
	assert.Error(t, err)
}

func TestSetRootInode_RejectsBothOrNeitherSet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.SetRootInode(ctx, 0, 0))
	assert.Error(t, s.SetRootInode(ctx, 1, 2))
}

func TestRemoveTarget_CascadesEntityRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	target, err := s.RegisterTarget(ctx, types.Target{Alias: "t1", Kind: types.NodeStorage})
	require.NoError(t, err)

	require.NoError(t, s.RemoveTarget(ctx, target.UID))

	_, _, err = s.ResolveAlias(ctx, "t1")
	assert.Error(t, err)
}

func TestRemoveBuddyGroup_CascadesEntityRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	t1, err := s.RegisterTarget(ctx, types.Target{Alias: "t1", Kind: types.NodeStorage})
	require.NoError(t, err)
	t2, err := s.RegisterTarget(ctx, types.Target{Alias: "t2", Kind: types.NodeStorage})
	require.NoError(t, err)
	g, err := s.CreateBuddyGroup(ctx, types.BuddyGroup{
		Alias: "bg1", Kind: types.NodeStorage, PrimaryUID: t1.UID, SecondaryUID: t2.UID,
	})
	require.NoError(t, err)

	require.NoError(t, s.RemoveBuddyGroup(ctx, g.UID))

	_, _, err = s.ResolveAlias(ctx, "bg1")
	assert.Error(t, err)
}

func TestSetQuotaDefaultLimit_ThenQuotaDefaultLimitFor_RoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pools, err := s.ListPools(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, pools)

	require.NoError(t, s.SetQuotaDefaultLimit(ctx, types.QuotaDefaultLimit{
		IDType: types.IdentityGroup, Type: types.QuotaInodes, PoolUID: pools[0].UID, Value: 5000,
	}))

	value, ok, err := s.QuotaDefaultLimitFor(ctx, types.IdentityGroup, types.QuotaInodes, pools[0].UID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(5000), value)
}

func TestMarkNodesOffline_OnlyAffectsStaleActiveNodes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.RegisterNode(ctx, types.Node{Alias: "meta1", Kind: types.NodeMeta, Port: 8004})
	require.NoError(t, err)
	require.NoError(t, s.ActivateNode(ctx, n.UID))
	require.NoError(t, s.TouchNode(ctx, n.UID, 100))

	offline, err := s.MarkNodesOffline(ctx, 200)
	require.NoError(t, err)
	require.Contains(t, offline, n.UID)

	nodes, err := s.ListNodes(ctx, types.NodeMeta)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, types.StateOffline, nodes[0].RegState)
}
