// Package types holds the domain entities shared across the management
// service: nodes, targets, storage pools, buddy groups, and quotas.
package types

import "time"

// EntityKind identifies which subtype table a UID's registry row refers to.
type EntityKind string

const (
	EntityNode       EntityKind = "node"
	EntityTarget     EntityKind = "target"
	EntityPool       EntityKind = "pool"
	EntityBuddyGroup EntityKind = "buddy_group"
	EntityManagement EntityKind = "management"
)

// NodeKind is the role a node plays in the cluster.
type NodeKind string

const (
	NodeMeta       NodeKind = "meta"
	NodeStorage    NodeKind = "storage"
	NodeClient     NodeKind = "client"
	NodeManagement NodeKind = "management"
)

// NICType distinguishes the transport a network interface exposes.
type NICType uint8

const (
	NICEthernet NICType = 1
	NICRDMA     NICType = 2
)

// NIC is one network interface a node advertises to peers.
type NIC struct {
	Type    NICType
	Address string // textual IP address
	Name    string // interface name, must not contain NUL bytes
}

// Node is a meta, storage, client, or management daemon known to the
// management service.
type Node struct {
	UID          int64
	Alias        string
	Kind         NodeKind
	NodeID       uint16 // logical ID, unique per Kind
	Port         uint16
	LastContact  time.Time
	MachineUUID  string // optional
	NICs         []NIC
	RegState     RegistrationState
}

// RegistrationState is the node's position in the liveness state machine.
type RegistrationState string

const (
	StateUnknown        RegistrationState = "unknown"
	StateProposed       RegistrationState = "proposed"
	StateActive         RegistrationState = "active"
	StateOffline        RegistrationState = "offline"
	StateClientOffline  RegistrationState = "client_offline"
	StateRemoved        RegistrationState = "removed"
)

// Consistency is the replication health of a target.
type Consistency string

const (
	ConsistencyGood        Consistency = "good"
	ConsistencyNeedsResync Consistency = "needs_resync"
	ConsistencyBad         Consistency = "bad"
)

// Capacity is the quadruple of space/inode counters a target reports.
// Fields are pointers so NULL ("not yet reported") is representable.
type Capacity struct {
	TotalSpace  *int64
	TotalInodes *int64
	FreeSpace   *int64
	FreeInodes  *int64
}

// Target is a storage unit (meta or storage) exposed by a node.
type Target struct {
	UID         int64
	Alias       string
	Kind        NodeKind // meta or storage
	TargetID    uint16   // logical ID, unique per Kind
	NodeUID     *int64   // NULL = unmapped (storage targets only)
	Capacity    Capacity
	Consistency Consistency
	PoolUID     int64 // storage targets only; zero for meta
}

// Pool is an administrative grouping of storage targets.
type Pool struct {
	UID    int64
	Alias  string
	PoolID uint16
}

// DefaultPoolID is the pool ID that always exists and cannot be deleted.
const DefaultPoolID uint16 = 1

// BuddyGroup mirrors two targets of the same kind for local HA.
type BuddyGroup struct {
	UID             int64
	Alias           string
	Kind            NodeKind // meta or storage
	GroupID         uint16   // logical ID, unique per Kind
	PrimaryUID      int64
	SecondaryUID    int64
	PoolUID         int64 // storage groups only
}

// RootInode is the singleton pointer to the metadata root. Exactly one of
// TargetUID / GroupUID is set.
type RootInode struct {
	TargetUID *int64
	GroupUID  *int64
}

// IdentityType distinguishes user vs. group quota accounting.
type IdentityType string

const (
	IdentityUser  IdentityType = "user"
	IdentityGroup IdentityType = "group"
)

// QuotaType distinguishes space vs. inode accounting.
type QuotaType string

const (
	QuotaSpace  QuotaType = "space"
	QuotaInodes QuotaType = "inodes"
)

// QuotaLimit is an administrator-set limit for one identity in one pool.
type QuotaLimit struct {
	QuotaID   int64
	IDType    IdentityType
	Type      QuotaType
	PoolUID   int64
	Value     int64
}

// QuotaDefaultLimit is the fallback limit applied when no QuotaLimit
// exists for a given (IDType, Type, PoolUID).
type QuotaDefaultLimit struct {
	IDType  IdentityType
	Type    QuotaType
	PoolUID int64
	Value   int64
}

// QuotaUsage is one target's reported consumption for one identity.
type QuotaUsage struct {
	QuotaID  int64
	IDType   IdentityType
	Type     QuotaType
	TargetID int64
	Value    int64
}

// CapacityClass is the dynamic bucket a target/group falls into.
type CapacityClass string

const (
	ClassNormal    CapacityClass = "normal"
	ClassLow       CapacityClass = "low"
	ClassEmergency CapacityClass = "emergency"
)
