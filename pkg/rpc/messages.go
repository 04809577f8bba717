package rpc

import "github.com/beegfs/mgmtd/pkg/types"

// NICDTO mirrors types.NIC for the wire.
type NICDTO struct {
	Type    uint8  `json:"type"`
	Address string `json:"address"`
	Name    string `json:"name"`
}

func nicToDTO(n types.NIC) NICDTO {
	return NICDTO{Type: uint8(n.Type), Address: n.Address, Name: n.Name}
}

// NodeDTO mirrors types.Node for the wire.
type NodeDTO struct {
	NodeID      uint16   `json:"node_id"`
	Alias       string   `json:"alias"`
	Kind        string   `json:"kind"`
	Port        uint16   `json:"port"`
	MachineUUID string   `json:"machine_uuid,omitempty"`
	RegState    string   `json:"reg_state"`
	NICs        []NICDTO `json:"nics,omitempty"`
}

func nodeToDTO(n types.Node) NodeDTO {
	dto := NodeDTO{
		NodeID: n.NodeID, Alias: n.Alias, Kind: string(n.Kind), Port: n.Port,
		MachineUUID: n.MachineUUID, RegState: string(n.RegState),
	}
	for _, nic := range n.NICs {
		dto.NICs = append(dto.NICs, nicToDTO(nic))
	}
	return dto
}

type ListNodesRequest struct {
	Kind string `json:"kind,omitempty"`
}

type ListNodesResponse struct {
	Nodes []NodeDTO `json:"nodes"`
}

type GetNodeRequest struct {
	Kind   string `json:"kind"`
	NodeID uint16 `json:"node_id"`
}

type RemoveNodeRequest struct {
	Kind   string `json:"kind"`
	NodeID uint16 `json:"node_id"`
}

// CapacityDTO mirrors types.Capacity, with nil meaning "not yet reported".
type CapacityDTO struct {
	TotalSpace  *int64 `json:"total_space,omitempty"`
	TotalInodes *int64 `json:"total_inodes,omitempty"`
	FreeSpace   *int64 `json:"free_space,omitempty"`
	FreeInodes  *int64 `json:"free_inodes,omitempty"`
}

// TargetDTO mirrors types.Target for the wire.
type TargetDTO struct {
	TargetID    uint16      `json:"target_id"`
	Alias       string      `json:"alias"`
	Kind        string      `json:"kind"`
	NodeID      uint16      `json:"node_id,omitempty"`
	Capacity    CapacityDTO `json:"capacity"`
	Consistency string      `json:"consistency"`
	PoolID      uint16      `json:"pool_id,omitempty"`
}

type ListTargetsRequest struct {
	Kind string `json:"kind,omitempty"`
}

type ListTargetsResponse struct {
	Targets []TargetDTO `json:"targets"`
}

type SetTargetConsistencyRequest struct {
	TargetID    uint16 `json:"target_id"`
	Consistency string `json:"consistency"`
}

type RemoveTargetRequest struct {
	TargetID uint16 `json:"target_id"`
}

// PoolDTO mirrors types.Pool for the wire.
type PoolDTO struct {
	PoolID uint16 `json:"pool_id"`
	Alias  string `json:"alias"`
}

type ListPoolsResponse struct {
	Pools []PoolDTO `json:"pools"`
}

type CreatePoolRequest struct {
	Alias string `json:"alias"`
}

type RemovePoolRequest struct {
	PoolID uint16 `json:"pool_id"`
}

// BuddyGroupDTO mirrors types.BuddyGroup for the wire.
type BuddyGroupDTO struct {
	GroupID     uint16 `json:"group_id"`
	Alias       string `json:"alias"`
	Kind        string `json:"kind"`
	PrimaryID   uint16 `json:"primary_target_id"`
	SecondaryID uint16 `json:"secondary_target_id"`
}

type ListBuddyGroupsRequest struct {
	Kind string `json:"kind,omitempty"`
}

type ListBuddyGroupsResponse struct {
	Groups []BuddyGroupDTO `json:"groups"`
}

type CreateBuddyGroupRequest struct {
	Alias       string `json:"alias"`
	Kind        string `json:"kind"`
	PrimaryID   uint16 `json:"primary_target_id"`
	SecondaryID uint16 `json:"secondary_target_id"`
}

type FailoverBuddyGroupRequest struct {
	Kind    string `json:"kind"`
	GroupID uint16 `json:"group_id"`
}

type RemoveBuddyGroupRequest struct {
	Kind    string `json:"kind"`
	GroupID uint16 `json:"group_id"`
}

// RootInodeDTO mirrors types.RootInode for the wire: exactly one of
// TargetID/GroupID is nonzero once the root inode has been established.
type RootInodeDTO struct {
	TargetID uint16 `json:"target_id,omitempty"`
	GroupID  uint16 `json:"group_id,omitempty"`
}

type SetRootInodeRequest struct {
	TargetID uint16 `json:"target_id,omitempty"`
	GroupID  uint16 `json:"group_id,omitempty"`
}

// QuotaLimitDTO mirrors types.QuotaLimit for the wire.
type QuotaLimitDTO struct {
	QuotaID int64  `json:"quota_id"`
	IDType  string `json:"id_type"`
	Type    string `json:"type"`
	PoolID  uint16 `json:"pool_id"`
	Value   int64  `json:"value"`
}

type SetQuotaLimitRequest struct {
	QuotaID int64  `json:"quota_id"`
	IDType  string `json:"id_type"`
	Type    string `json:"type"`
	PoolID  uint16 `json:"pool_id"`
	Value   int64  `json:"value"`
}

type SetQuotaDefaultLimitRequest struct {
	IDType string `json:"id_type"`
	Type   string `json:"type"`
	PoolID uint16 `json:"pool_id"`
	Value  int64  `json:"value"`
}

type ListQuotaLimitsRequest struct {
	PoolID uint16 `json:"pool_id"`
}

type ListQuotaLimitsResponse struct {
	Limits []QuotaLimitDTO `json:"limits"`
}

type GetQuotaUsageRequest struct {
	QuotaID int64  `json:"quota_id"`
	IDType  string `json:"id_type"`
	Type    string `json:"type"`
}

type GetQuotaUsageResponse struct {
	Value int64 `json:"value"`
}

// TopologyEvent mirrors events.Event for the wire.
type TopologyEvent struct {
	Type      string            `json:"type"`
	Timestamp int64             `json:"timestamp_unix"`
	EntityUID int64             `json:"entity_uid"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type SubscribeTopologyRequest struct{}
