/*
Package types defines the core data structures shared across the
management service: nodes, targets, storage pools, buddy groups, and
quota accounting.

These are plain value types with no persistence or wire-format logic of
their own; pkg/store reads and writes them, and pkg/wire and pkg/rpc
translate them to and from the BeeMsg and RPC encodings respectively.

# Core types

Node is a meta, storage, client, or management daemon, identified by a
UID from the entity registry and a kind-scoped NodeID. Target is a
storage unit exposed by a node, with a Capacity quadruple and a
Consistency health flag. Pool groups storage targets administratively.
BuddyGroup pairs two targets of the same kind for local high
availability. QuotaLimit, QuotaDefaultLimit, and QuotaUsage track
per-identity space and inode accounting.

# Enumerations

Enums use typed string or small-int constants: EntityKind distinguishes
registry subtypes, NodeKind distinguishes daemon roles, RegistrationState
is a node's position in the liveness state machine, Consistency is a
target's replication health, and CapacityClass is the dynamic bucket a
pool's free-space classifier assigns.
*/
package types
