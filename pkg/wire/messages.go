package wire

import (
	"bytes"
	"io"

	"github.com/beegfs/mgmtd/pkg/mgmterr"
	"github.com/beegfs/mgmtd/pkg/types"
)

// Message is implemented by every BeeMsg payload type. Type identifies the
// wire message type so a dispatch table can be keyed on it; EncodeBody and
// DecodeBody handle only the payload, the header is framed separately by
// Encode/Decode below.
type Message interface {
	Type() MsgType
	EncodeBody(buf *bytes.Buffer) error
	DecodeBody(r io.Reader) error
}

// Encode writes a complete frame (header plus body) for msg to w, computing
// the auth hash from secret (nil disables auth, writing a zero hash).
func Encode(w io.Writer, msg Message, secret []byte) error {
	var body bytes.Buffer
	if err := msg.EncodeBody(&body); err != nil {
		return err
	}
	h := Header{
		Length: uint64(HeaderSize + body.Len()),
		Type:   msg.Type(),
	}
	if secret != nil {
		h.AuthHash = AuthHash(secret)
	}
	if err := h.Encode(w); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}

// Decode reads a complete frame from r into msg, checking that the header's
// declared type matches msg's and, when secret is non-nil, that the auth
// hash matches.
func Decode(r io.Reader, msg Message, secret []byte) error {
	h, err := DecodeHeader(r)
	if err != nil {
		return err
	}
	if h.Type != msg.Type() {
		return mgmterr.New(mgmterr.KindWireMalformed, "message type mismatch")
	}
	if secret != nil && h.AuthHash != AuthHash(secret) {
		return mgmterr.New(mgmterr.KindWireAuth, "auth hash mismatch")
	}
	body := io.LimitReader(r, int64(h.Length)-HeaderSize)
	return msg.DecodeBody(body)
}

// Heartbeat is sent periodically by every daemon to announce liveness and,
// on first contact, to register. An unset MachineUUID means "not yet
// assigned a persistent identity" (legacy clients predating that field).
type Heartbeat struct {
	Alias       string
	Kind        types.NodeKind
	NodeID      uint16
	Port        uint16
	MachineUUID string
	NICs        []types.NIC
}

func (m *Heartbeat) Type() MsgType { return MsgHeartbeat }

func (m *Heartbeat) EncodeBody(buf *bytes.Buffer) error {
	putString(buf, m.Alias)
	putString(buf, string(m.Kind))
	putUint16(buf, m.NodeID)
	putUint16(buf, m.Port)
	putString(buf, m.MachineUUID)
	return putNICList(buf, m.NICs)
}

func (m *Heartbeat) DecodeBody(r io.Reader) error {
	var err error
	if m.Alias, err = readString(r); err != nil {
		return err
	}
	kind, err := readString(r)
	if err != nil {
		return err
	}
	m.Kind = types.NodeKind(kind)
	if m.NodeID, err = readUint16(r); err != nil {
		return err
	}
	if m.Port, err = readUint16(r); err != nil {
		return err
	}
	if m.MachineUUID, err = readString(r); err != nil {
		return err
	}
	m.NICs, err = readNICList(r)
	return err
}

// RegisterNode is the explicit registration request a daemon sends on
// startup, distinct from the recurring Heartbeat that follows it.
type RegisterNode struct {
	Heartbeat
}

func (m *RegisterNode) Type() MsgType { return MsgRegisterNode }

// RegisterNodeResp carries back the assigned (or previously assigned,
// for an idempotent re-registration) NodeID.
type RegisterNodeResp struct {
	NodeID uint16
}

func (m *RegisterNodeResp) Type() MsgType { return MsgRegisterNodeResp }

func (m *RegisterNodeResp) EncodeBody(buf *bytes.Buffer) error {
	putUint16(buf, m.NodeID)
	return nil
}

func (m *RegisterNodeResp) DecodeBody(r io.Reader) error {
	var err error
	m.NodeID, err = readUint16(r)
	return err
}

// RegisterTarget registers a storage unit exposed by the sending node. A
// zero NodeID means "not yet mapped to a node" (meta targets are mapped
// implicitly at registration; storage targets may arrive unmapped).
type RegisterTarget struct {
	Alias    string
	Kind     types.NodeKind
	TargetID uint16
	NodeID   uint16
}

func (m *RegisterTarget) Type() MsgType { return MsgRegisterTarget }

func (m *RegisterTarget) EncodeBody(buf *bytes.Buffer) error {
	putString(buf, m.Alias)
	putString(buf, string(m.Kind))
	putUint16(buf, m.TargetID)
	putUint16(buf, m.NodeID)
	return nil
}

func (m *RegisterTarget) DecodeBody(r io.Reader) error {
	var err error
	if m.Alias, err = readString(r); err != nil {
		return err
	}
	kind, err := readString(r)
	if err != nil {
		return err
	}
	m.Kind = types.NodeKind(kind)
	if m.TargetID, err = readUint16(r); err != nil {
		return err
	}
	m.NodeID, err = readUint16(r)
	return err
}

// RegisterTargetResp carries back the assigned TargetID.
type RegisterTargetResp struct {
	TargetID uint16
}

func (m *RegisterTargetResp) Type() MsgType { return MsgRegisterTargetResp }

func (m *RegisterTargetResp) EncodeBody(buf *bytes.Buffer) error {
	putUint16(buf, m.TargetID)
	return nil
}

func (m *RegisterTargetResp) DecodeBody(r io.Reader) error {
	var err error
	m.TargetID, err = readUint16(r)
	return err
}

// GetNodes requests the current roster of one node kind.
type GetNodes struct {
	Kind types.NodeKind
}

func (m *GetNodes) Type() MsgType { return MsgGetNodes }

func (m *GetNodes) EncodeBody(buf *bytes.Buffer) error {
	putString(buf, string(m.Kind))
	return nil
}

func (m *GetNodes) DecodeBody(r io.Reader) error {
	kind, err := readString(r)
	m.Kind = types.NodeKind(kind)
	return err
}

// GetNodesResp carries back every node of the requested kind.
type GetNodesResp struct {
	Nodes []NodeInfo
}

// NodeInfo is the wire projection of types.Node; it omits fields (UID,
// LastContact) that are management-internal and never sent to peers.
type NodeInfo struct {
	NodeID uint16
	Alias  string
	Port   uint16
	NICs   []types.NIC
}

func (m *GetNodesResp) Type() MsgType { return MsgGetNodesResp }

func (m *GetNodesResp) EncodeBody(buf *bytes.Buffer) error {
	putUint16(buf, uint16(len(m.Nodes)))
	for _, n := range m.Nodes {
		putUint16(buf, n.NodeID)
		putString(buf, n.Alias)
		putUint16(buf, n.Port)
		if err := putNICList(buf, n.NICs); err != nil {
			return err
		}
	}
	return nil
}

func (m *GetNodesResp) DecodeBody(r io.Reader) error {
	count, err := readUint16(r)
	if err != nil {
		return err
	}
	m.Nodes = make([]NodeInfo, 0, count)
	for i := uint16(0); i < count; i++ {
		var n NodeInfo
		if n.NodeID, err = readUint16(r); err != nil {
			return err
		}
		if n.Alias, err = readString(r); err != nil {
			return err
		}
		if n.Port, err = readUint16(r); err != nil {
			return err
		}
		if n.NICs, err = readNICList(r); err != nil {
			return err
		}
		m.Nodes = append(m.Nodes, n)
	}
	return nil
}

// GetTargetMappings requests the node each target of a kind currently maps
// to.
type GetTargetMappings struct {
	Kind types.NodeKind
}

func (m *GetTargetMappings) Type() MsgType { return MsgGetTargetMappings }

func (m *GetTargetMappings) EncodeBody(buf *bytes.Buffer) error {
	putString(buf, string(m.Kind))
	return nil
}

func (m *GetTargetMappings) DecodeBody(r io.Reader) error {
	kind, err := readString(r)
	m.Kind = types.NodeKind(kind)
	return err
}

// TargetMapping pairs a TargetID with the NodeID it is currently mapped to;
// NodeID 0 means unmapped.
type TargetMapping struct {
	TargetID uint16
	NodeID   uint16
}

// GetTargetMappingsResp carries back the full mapping table for one kind.
type GetTargetMappingsResp struct {
	Mappings []TargetMapping
}

func (m *GetTargetMappingsResp) Type() MsgType { return MsgGetTargetMappingsResp }

func (m *GetTargetMappingsResp) EncodeBody(buf *bytes.Buffer) error {
	putUint16(buf, uint16(len(m.Mappings)))
	for _, tm := range m.Mappings {
		putUint16(buf, tm.TargetID)
		putUint16(buf, tm.NodeID)
	}
	return nil
}

func (m *GetTargetMappingsResp) DecodeBody(r io.Reader) error {
	count, err := readUint16(r)
	if err != nil {
		return err
	}
	m.Mappings = make([]TargetMapping, count)
	for i := range m.Mappings {
		if m.Mappings[i].TargetID, err = readUint16(r); err != nil {
			return err
		}
		if m.Mappings[i].NodeID, err = readUint16(r); err != nil {
			return err
		}
	}
	return nil
}

// GetStoragePools requests the current storage pool roster; it takes no
// parameters, there being exactly one administrative namespace of pools.
type GetStoragePools struct{}

func (m *GetStoragePools) Type() MsgType                        { return MsgGetStoragePools }
func (m *GetStoragePools) EncodeBody(buf *bytes.Buffer) error    { return nil }
func (m *GetStoragePools) DecodeBody(r io.Reader) error          { return nil }

// PoolInfo is the wire projection of types.Pool.
type PoolInfo struct {
	PoolID    uint16
	Alias     string
	TargetIDs []uint16
}

// GetStoragePoolsResp carries back every pool and its member target IDs.
type GetStoragePoolsResp struct {
	Pools []PoolInfo
}

func (m *GetStoragePoolsResp) Type() MsgType { return MsgGetStoragePoolsResp }

func (m *GetStoragePoolsResp) EncodeBody(buf *bytes.Buffer) error {
	putUint16(buf, uint16(len(m.Pools)))
	for _, p := range m.Pools {
		putUint16(buf, p.PoolID)
		putString(buf, p.Alias)
		putUint16(buf, uint16(len(p.TargetIDs)))
		for _, id := range p.TargetIDs {
			putUint16(buf, id)
		}
	}
	return nil
}

func (m *GetStoragePoolsResp) DecodeBody(r io.Reader) error {
	poolCount, err := readUint16(r)
	if err != nil {
		return err
	}
	m.Pools = make([]PoolInfo, poolCount)
	for i := range m.Pools {
		if m.Pools[i].PoolID, err = readUint16(r); err != nil {
			return err
		}
		if m.Pools[i].Alias, err = readString(r); err != nil {
			return err
		}
		targetCount, err := readUint16(r)
		if err != nil {
			return err
		}
		m.Pools[i].TargetIDs = make([]uint16, targetCount)
		for j := range m.Pools[i].TargetIDs {
			if m.Pools[i].TargetIDs[j], err = readUint16(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetMirrorBuddyGroups requests the buddy-group roster for one kind.
type GetMirrorBuddyGroups struct {
	Kind types.NodeKind
}

func (m *GetMirrorBuddyGroups) Type() MsgType { return MsgGetMirrorBuddyGroups }

func (m *GetMirrorBuddyGroups) EncodeBody(buf *bytes.Buffer) error {
	putString(buf, string(m.Kind))
	return nil
}

func (m *GetMirrorBuddyGroups) DecodeBody(r io.Reader) error {
	kind, err := readString(r)
	m.Kind = types.NodeKind(kind)
	return err
}

// BuddyGroupInfo is the wire projection of types.BuddyGroup.
type BuddyGroupInfo struct {
	GroupID      uint16
	PrimaryID    uint16
	SecondaryID  uint16
}

// GetMirrorBuddyGroupsResp carries back every buddy group of the requested
// kind.
type GetMirrorBuddyGroupsResp struct {
	Groups []BuddyGroupInfo
}

func (m *GetMirrorBuddyGroupsResp) Type() MsgType { return MsgGetMirrorBuddyGroupsResp }

func (m *GetMirrorBuddyGroupsResp) EncodeBody(buf *bytes.Buffer) error {
	putUint16(buf, uint16(len(m.Groups)))
	for _, g := range m.Groups {
		putUint16(buf, g.GroupID)
		putUint16(buf, g.PrimaryID)
		putUint16(buf, g.SecondaryID)
	}
	return nil
}

func (m *GetMirrorBuddyGroupsResp) DecodeBody(r io.Reader) error {
	count, err := readUint16(r)
	if err != nil {
		return err
	}
	m.Groups = make([]BuddyGroupInfo, count)
	for i := range m.Groups {
		if m.Groups[i].GroupID, err = readUint16(r); err != nil {
			return err
		}
		if m.Groups[i].PrimaryID, err = readUint16(r); err != nil {
			return err
		}
		if m.Groups[i].SecondaryID, err = readUint16(r); err != nil {
			return err
		}
	}
	return nil
}

// ReportTargetCapacity is sent periodically by meta and storage nodes to
// report a target's current total/free space and inode counts, the
// quadruple the capacity-pool classifier buckets into normal/low/emergency.
type ReportTargetCapacity struct {
	TargetID    uint16
	TotalSpace  int64
	TotalInodes int64
	FreeSpace   int64
	FreeInodes  int64
}

func (m *ReportTargetCapacity) Type() MsgType { return MsgReportTargetCapacity }

func (m *ReportTargetCapacity) EncodeBody(buf *bytes.Buffer) error {
	putUint16(buf, m.TargetID)
	putInt64(buf, m.TotalSpace)
	putInt64(buf, m.TotalInodes)
	putInt64(buf, m.FreeSpace)
	putInt64(buf, m.FreeInodes)
	return nil
}

func (m *ReportTargetCapacity) DecodeBody(r io.Reader) error {
	var err error
	if m.TargetID, err = readUint16(r); err != nil {
		return err
	}
	if m.TotalSpace, err = readInt64(r); err != nil {
		return err
	}
	if m.TotalInodes, err = readInt64(r); err != nil {
		return err
	}
	if m.FreeSpace, err = readInt64(r); err != nil {
		return err
	}
	m.FreeInodes, err = readInt64(r)
	return err
}

// SetCapacityPool is pushed to storage nodes after a reclassification so
// they can locally prefer or avoid targets for new file placement.
type SetCapacityPool struct {
	TargetID uint16
	Class    types.CapacityClass
}

func (m *SetCapacityPool) Type() MsgType { return MsgSetCapacityPool }

func (m *SetCapacityPool) EncodeBody(buf *bytes.Buffer) error {
	putUint16(buf, m.TargetID)
	putString(buf, string(m.Class))
	return nil
}

func (m *SetCapacityPool) DecodeBody(r io.Reader) error {
	var err error
	if m.TargetID, err = readUint16(r); err != nil {
		return err
	}
	class, err := readString(r)
	m.Class = types.CapacityClass(class)
	return err
}

// SetTargetConsistency reports (or, pushed the other direction, commands) a
// target's replication health.
type SetTargetConsistency struct {
	TargetID    uint16
	Consistency types.Consistency
}

func (m *SetTargetConsistency) Type() MsgType { return MsgSetTargetConsistency }

func (m *SetTargetConsistency) EncodeBody(buf *bytes.Buffer) error {
	putUint16(buf, m.TargetID)
	putString(buf, string(m.Consistency))
	return nil
}

func (m *SetTargetConsistency) DecodeBody(r io.Reader) error {
	var err error
	if m.TargetID, err = readUint16(r); err != nil {
		return err
	}
	c, err := readString(r)
	m.Consistency = types.Consistency(c)
	return err
}

// GetQuotaInfo requests a storage node's locally tracked usage for one
// identity, as part of the quota pull cycle.
type GetQuotaInfo struct {
	IDType types.IdentityType
	QType  types.QuotaType
	ID     int64
}

func (m *GetQuotaInfo) Type() MsgType { return MsgGetQuotaInfo }

func (m *GetQuotaInfo) EncodeBody(buf *bytes.Buffer) error {
	putString(buf, string(m.IDType))
	putString(buf, string(m.QType))
	putInt64(buf, m.ID)
	return nil
}

func (m *GetQuotaInfo) DecodeBody(r io.Reader) error {
	idType, err := readString(r)
	if err != nil {
		return err
	}
	m.IDType = types.IdentityType(idType)
	qType, err := readString(r)
	if err != nil {
		return err
	}
	m.QType = types.QuotaType(qType)
	m.ID, err = readInt64(r)
	return err
}

// GetQuotaInfoResp carries back the usage value a storage node reports for
// the identity named by the matching GetQuotaInfo.
type GetQuotaInfoResp struct {
	Value int64
}

func (m *GetQuotaInfoResp) Type() MsgType { return MsgGetQuotaInfoResp }

func (m *GetQuotaInfoResp) EncodeBody(buf *bytes.Buffer) error {
	putInt64(buf, m.Value)
	return nil
}

func (m *GetQuotaInfoResp) DecodeBody(r io.Reader) error {
	var err error
	m.Value, err = readInt64(r)
	return err
}

// SetExceededQuota is pushed to storage nodes so they can locally enforce
// writes from an identity that has exceeded its limit, without needing to
// round-trip to the management service on every write.
type SetExceededQuota struct {
	IDType  types.IdentityType
	QType   types.QuotaType
	IDs     []int64
}

func (m *SetExceededQuota) Type() MsgType { return MsgSetExceededQuota }

func (m *SetExceededQuota) EncodeBody(buf *bytes.Buffer) error {
	putString(buf, string(m.IDType))
	putString(buf, string(m.QType))
	putUint16(buf, uint16(len(m.IDs)))
	for _, id := range m.IDs {
		putInt64(buf, id)
	}
	return nil
}

func (m *SetExceededQuota) DecodeBody(r io.Reader) error {
	idType, err := readString(r)
	if err != nil {
		return err
	}
	m.IDType = types.IdentityType(idType)
	qType, err := readString(r)
	if err != nil {
		return err
	}
	m.QType = types.QuotaType(qType)
	count, err := readUint16(r)
	if err != nil {
		return err
	}
	m.IDs = make([]int64, count)
	for i := range m.IDs {
		if m.IDs[i], err = readInt64(r); err != nil {
			return err
		}
	}
	return nil
}

// RemoveNode asks the management service to remove a node (and, per the
// store's cascade rules, refuses if anything still references it).
type RemoveNode struct {
	Kind   types.NodeKind
	NodeID uint16
}

func (m *RemoveNode) Type() MsgType { return MsgRemoveNode }

func (m *RemoveNode) EncodeBody(buf *bytes.Buffer) error {
	putString(buf, string(m.Kind))
	putUint16(buf, m.NodeID)
	return nil
}

func (m *RemoveNode) DecodeBody(r io.Reader) error {
	kind, err := readString(r)
	if err != nil {
		return err
	}
	m.Kind = types.NodeKind(kind)
	m.NodeID, err = readUint16(r)
	return err
}

// Ack is a generic success response for requests with nothing else to
// report back (e.g. RemoveNode, SetCapacityPool, SetTargetConsistency).
type Ack struct {
	OK bool
}

func (m *Ack) Type() MsgType { return MsgAck }

func (m *Ack) EncodeBody(buf *bytes.Buffer) error {
	putBool(buf, m.OK)
	return nil
}

func (m *Ack) DecodeBody(r io.Reader) error {
	var err error
	m.OK, err = readBool(r)
	return err
}
