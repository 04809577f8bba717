package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beegfs/mgmtd/pkg/mgmterr"
	"github.com/beegfs/mgmtd/pkg/types"
)

func roundTrip(t *testing.T, secret []byte, msg, out Message) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, msg, secret))
	require.NoError(t, Decode(&buf, out, secret))
}

func TestHeartbeat_RoundTrip(t *testing.T) {
	in := &Heartbeat{
		Alias:       "storage1",
		Kind:        types.NodeStorage,
		NodeID:      7,
		Port:        8003,
		MachineUUID: "uuid-123",
		NICs: []types.NIC{
			{Type: types.NICEthernet, Address: "192.0.2.10", Name: "eth0"},
			{Type: types.NICRDMA, Address: "198.51.100.5", Name: "ib0"},
		},
	}
	out := &Heartbeat{}
	roundTrip(t, nil, in, out)
	assert.Equal(t, in, out)
}

func TestRegisterNode_RoundTrip(t *testing.T) {
	in := &RegisterNode{Heartbeat{Alias: "meta1", Kind: types.NodeMeta, Port: 8004}}
	out := &RegisterNode{}
	roundTrip(t, nil, in, out)
	assert.Equal(t, in.Alias, out.Alias)
	assert.Equal(t, in.Kind, out.Kind)
}

func TestRegisterNodeResp_RoundTrip(t *testing.T) {
	in := &RegisterNodeResp{NodeID: 42}
	out := &RegisterNodeResp{}
	roundTrip(t, nil, in, out)
	assert.Equal(t, in, out)
}

func TestGetNodesResp_RoundTrip(t *testing.T) {
	in := &GetNodesResp{Nodes: []NodeInfo{
		{NodeID: 1, Alias: "meta1", Port: 8004, NICs: []types.NIC{{Type: types.NICEthernet, Address: "10.0.0.1", Name: "eth0"}}},
		{NodeID: 2, Alias: "meta2", Port: 8004},
	}}
	out := &GetNodesResp{}
	roundTrip(t, nil, in, out)
	assert.Equal(t, in, out)
}

func TestGetTargetMappingsResp_RoundTrip(t *testing.T) {
	in := &GetTargetMappingsResp{Mappings: []TargetMapping{{TargetID: 1, NodeID: 1}, {TargetID: 2, NodeID: 0}}}
	out := &GetTargetMappingsResp{}
	roundTrip(t, nil, in, out)
	assert.Equal(t, in, out)
}

func TestGetStoragePoolsResp_RoundTrip(t *testing.T) {
	in := &GetStoragePoolsResp{Pools: []PoolInfo{
		{PoolID: 1, Alias: "storage_pool_default", TargetIDs: []uint16{1, 2, 3}},
	}}
	out := &GetStoragePoolsResp{}
	roundTrip(t, nil, in, out)
	assert.Equal(t, in, out)
}

func TestGetMirrorBuddyGroupsResp_RoundTrip(t *testing.T) {
	in := &GetMirrorBuddyGroupsResp{Groups: []BuddyGroupInfo{{GroupID: 1, PrimaryID: 1, SecondaryID: 2}}}
	out := &GetMirrorBuddyGroupsResp{}
	roundTrip(t, nil, in, out)
	assert.Equal(t, in, out)
}

func TestSetCapacityPool_RoundTrip(t *testing.T) {
	in := &SetCapacityPool{TargetID: 3, Class: types.ClassLow}
	out := &SetCapacityPool{}
	roundTrip(t, nil, in, out)
	assert.Equal(t, in, out)
}

func TestSetTargetConsistency_RoundTrip(t *testing.T) {
	in := &SetTargetConsistency{TargetID: 5, Consistency: types.ConsistencyNeedsResync}
	out := &SetTargetConsistency{}
	roundTrip(t, nil, in, out)
	assert.Equal(t, in, out)
}

func TestReportTargetCapacity_RoundTrip(t *testing.T) {
	in := &ReportTargetCapacity{
		TargetID: 3, TotalSpace: 100 << 30, TotalInodes: 1 << 20,
		FreeSpace: 40 << 30, FreeInodes: 1 << 19,
	}
	out := &ReportTargetCapacity{}
	roundTrip(t, nil, in, out)
	assert.Equal(t, in, out)
}

func TestGetQuotaInfo_RoundTrip(t *testing.T) {
	in := &GetQuotaInfo{IDType: types.IdentityUser, QType: types.QuotaSpace, ID: 1001}
	out := &GetQuotaInfo{}
	roundTrip(t, nil, in, out)
	assert.Equal(t, in, out)
}

func TestSetExceededQuota_RoundTrip(t *testing.T) {
	in := &SetExceededQuota{IDType: types.IdentityGroup, QType: types.QuotaInodes, IDs: []int64{1001, 1002}}
	out := &SetExceededQuota{}
	roundTrip(t, nil, in, out)
	assert.Equal(t, in, out)
}

func TestRemoveNode_RoundTrip(t *testing.T) {
	in := &RemoveNode{Kind: types.NodeStorage, NodeID: 4}
	out := &RemoveNode{}
	roundTrip(t, nil, in, out)
	assert.Equal(t, in, out)
}

func TestEncode_WithAuthSecret_DecodesWithMatchingSecret(t *testing.T) {
	secret := []byte("shared-secret-file-contents")
	in := &RegisterNodeResp{NodeID: 9}
	out := &RegisterNodeResp{}
	roundTrip(t, secret, in, out)
	assert.Equal(t, in, out)
}

func TestDecode_WrongAuthSecret_IsRejected(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &RegisterNodeResp{NodeID: 9}, []byte("correct-secret")))

	err := Decode(&buf, &RegisterNodeResp{}, []byte("wrong-secret"))
	require.Error(t, err)
	assert.True(t, mgmterr.Is(err, mgmterr.KindWireAuth))
}

func TestDecode_WrongMessageType_IsMalformed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &RegisterNodeResp{NodeID: 9}, nil))

	err := Decode(&buf, &RegisterTargetResp{}, nil)
	require.Error(t, err)
	assert.True(t, mgmterr.Is(err, mgmterr.KindWireMalformed))
}

func TestDecodeHeader_RejectsOversizeLength(t *testing.T) {
	var buf bytes.Buffer
	h := Header{Length: MaxMessageSize + 1, Type: MsgHeartbeat}
	require.NoError(t, h.Encode(&buf))

	_, err := DecodeHeader(&buf)
	require.Error(t, err)
	assert.True(t, mgmterr.Is(err, mgmterr.KindWireMalformed))
}

func TestDecodeHeader_RejectsTruncatedInput(t *testing.T) {
	_, err := DecodeHeader(bytes.NewReader([]byte{1, 2, 3}))
	require.Error(t, err)
	assert.True(t, mgmterr.Is(err, mgmterr.KindWireMalformed))
}

func TestReadString_RejectsEmbeddedNUL(t *testing.T) {
	var buf bytes.Buffer
	putString(&buf, "bad\x00name")
	_, err := readString(&buf)
	require.Error(t, err)
	assert.True(t, mgmterr.Is(err, mgmterr.KindWireMalformed))
}

func TestNICList_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	nics := []types.NIC{
		{Type: types.NICEthernet, Address: "203.0.113.7", Name: "eth1"},
	}
	require.NoError(t, putNICList(&buf, nics))
	out, err := readNICList(&buf)
	require.NoError(t, err)
	assert.Equal(t, nics, out)
}
