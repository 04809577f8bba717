package buddy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beegfs/mgmtd/pkg/events"
	"github.com/beegfs/mgmtd/pkg/store"
	"github.com/beegfs/mgmtd/pkg/types"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *store.Store, events.Subscriber) {
	t.Helper()
	st, err := store.Open(context.Background(), store.Config{Path: ":memory:", MaxReaders: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)
	sub := broker.Subscribe()

	return NewCoordinator(st, broker), st, sub
}

func makeGroup(t *testing.T, st *store.Store) (primary, secondary types.Target, group types.BuddyGroup) {
	t.Helper()
	ctx := context.Background()
	p, err := st.RegisterTarget(ctx, types.Target{Alias: "t-primary", Kind: types.NodeStorage})
	require.NoError(t, err)
	s, err := st.RegisterTarget(ctx, types.Target{Alias: "t-secondary", Kind: types.NodeStorage})
	require.NoError(t, err)
	g, err := st.CreateBuddyGroup(ctx, types.BuddyGroup{Alias: "bg-test", Kind: types.NodeStorage, PrimaryUID: p.UID, SecondaryUID: s.UID})
	require.NoError(t, err)
	return p, s, g
}

func TestReportConsistency_RedirectsToBuddyNotReporter(t *testing.T) {
	c, st, _ := newTestCoordinator(t)
	primary, secondary, _ := makeGroup(t, st)

	require.NoError(t, c.ReportConsistency(context.Background(), primary.UID, types.ConsistencyNeedsResync))

	updated, err := st.TargetByUID(context.Background(), secondary.UID)
	require.NoError(t, err)
	assert.Equal(t, types.ConsistencyNeedsResync, updated.Consistency)

	reporter, err := st.TargetByUID(context.Background(), primary.UID)
	require.NoError(t, err)
	assert.Equal(t, types.ConsistencyGood, reporter.Consistency)
}

func TestReportConsistency_PublishesBuddyResyncEvent(t *testing.T) {
	c, st, sub := newTestCoordinator(t)
	primary, secondary, _ := makeGroup(t, st)

	require.NoError(t, c.ReportConsistency(context.Background(), primary.UID, types.ConsistencyNeedsResync))

	ev := <-sub
	assert.Equal(t, events.TypeBuddyResync, ev.Type)
	assert.Equal(t, secondary.UID, ev.EntityUID)
}

func TestReportConsistency_AppliesDirectlyWhenTargetHasNoGroup(t *testing.T) {
	c, st, _ := newTestCoordinator(t)
	ctx := context.Background()
	solo, err := st.RegisterTarget(ctx, types.Target{Alias: "solo-meta", Kind: types.NodeMeta})
	require.NoError(t, err)

	require.NoError(t, c.ReportConsistency(ctx, solo.UID, types.ConsistencyBad))

	updated, err := st.TargetByUID(ctx, solo.UID)
	require.NoError(t, err)
	assert.Equal(t, types.ConsistencyBad, updated.Consistency)
}

func TestSetConsistency_RejectsBadWithoutHealthyBuddy(t *testing.T) {
	c, st, _ := newTestCoordinator(t)
	primary, secondary, _ := makeGroup(t, st)
	require.NoError(t, st.SetTargetConsistency(context.Background(), secondary.UID, types.ConsistencyNeedsResync))

	err := c.SetConsistency(context.Background(), primary.UID, types.ConsistencyBad)
	require.Error(t, err)

	unchanged, err := st.TargetByUID(context.Background(), primary.UID)
	require.NoError(t, err)
	assert.Equal(t, types.ConsistencyGood, unchanged.Consistency)
}

func TestSetConsistency_AllowsBadWithHealthyBuddy(t *testing.T) {
	c, st, _ := newTestCoordinator(t)
	primary, secondary, _ := makeGroup(t, st)

	require.NoError(t, c.SetConsistency(context.Background(), primary.UID, types.ConsistencyBad))

	updated, err := st.TargetByUID(context.Background(), primary.UID)
	require.NoError(t, err)
	assert.Equal(t, types.ConsistencyBad, updated.Consistency)
	_ = secondary
}

func TestFailover_SwapsPrimaryAndSecondaryAndPublishes(t *testing.T) {
	c, st, sub := newTestCoordinator(t)
	primary, secondary, group := makeGroup(t, st)

	updated, err := c.Failover(context.Background(), group.UID)
	require.NoError(t, err)
	assert.Equal(t, secondary.UID, updated.PrimaryUID)
	assert.Equal(t, primary.UID, updated.SecondaryUID)

	ev := <-sub
	assert.Equal(t, events.TypeBuddyFailover, ev.Type)
	assert.Equal(t, group.UID, ev.EntityUID)
}
