// Package store is the management service's single source of truth: the
// entity registry, node/target/pool/buddy-group bookkeeping, and quota
// tables, all backed by a SQLite database reached through a single-writer
// executor plus a bounded pool of read-only connections.
package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/beegfs/mgmtd/pkg/mgmterr"
	"github.com/beegfs/mgmtd/pkg/types"
)

// Store owns the management database: one writer connection serialized
// through an executor, and a pool of read-only connections for queries
// that don't need to observe the writer's in-flight transaction.
type Store struct {
	writerDB *sql.DB
	exec     *executor
	readers  *readPool
}

// Config controls how a Store opens its backing database.
type Config struct {
	// Path is the SQLite database file. ":memory:" is valid for tests.
	Path string
	// MaxReaders bounds the read-only connection pool (--max-blocking-threads).
	MaxReaders int
}

const defaultMaxReaders = 128

// queryer is satisfied by *sql.DB (and would be by *sql.Tx, though nothing
// here needs that yet); it lets read-side helpers like nodeNICs run against
// the read pool without depending on *sql.DB directly.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// writerDSN builds the data source name for the single writer connection.
// ":memory:" is rewritten to a shared-cache URI so the read pool (opened
// separately) observes the same in-memory database rather than its own
// empty one.
func writerDSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?cache=shared&_pragma=busy_timeout(5000)"
	}
	return path + "?_pragma=busy_timeout(5000)"
}

// Open opens (creating if necessary) the database at cfg.Path, applies any
// pending migrations, and seeds a brand-new database with the management
// singleton and default storage pool.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.MaxReaders <= 0 {
		cfg.MaxReaders = defaultMaxReaders
	}

	writerDB, err := sql.Open("sqlite3", writerDSN(cfg.Path))
	if err != nil {
		return nil, mgmterr.Wrap(mgmterr.KindIO, "open writer connection", err)
	}
	writerDB.SetMaxOpenConns(1)

	if err := migrate(writerDB); err != nil {
		writerDB.Close()
		return nil, err
	}

	readers, err := newReadPool(cfg.Path, cfg.MaxReaders)
	if err != nil {
		writerDB.Close()
		return nil, err
	}

	return &Store{
		writerDB: writerDB,
		exec:     newExecutor(writerDB),
		readers:  readers,
	}, nil
}

// Close drains the writer executor and closes every connection.
func (s *Store) Close() error {
	s.exec.close()
	s.readers.close()
	return s.writerDB.Close()
}

// write submits fn to the single-writer executor and type-asserts the
// result, so callers get back the concrete type they expect.
func write[T any](ctx context.Context, s *Store, fn func(*sql.Tx) (any, error)) (T, error) {
	var zero T
	v, err := s.exec.submit(ctx, fn)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	return v.(T), nil
}

// --- entity registry -------------------------------------------------

// insertEntity inserts a new registry row and returns its UID. Callers run
// this inside the same transaction as the subtype row insert, so a
// failure on either side rolls back both.
func insertEntity(tx *sql.Tx, alias string, kind types.EntityKind) (int64, error) {
	res, err := tx.Exec(`INSERT INTO entities (alias, kind) VALUES (?, ?)`, alias, string(kind))
	if err != nil {
		return 0, translateSQLError(err)
	}
	return res.LastInsertId()
}

// ResolveAlias returns the UID and kind registered under alias.
func (s *Store) ResolveAlias(ctx context.Context, alias string) (int64, types.EntityKind, error) {
	var uid int64
	var kind string
	err := s.readers.db().QueryRowContext(ctx,
		`SELECT uid, kind FROM entities WHERE alias = ?`, alias).Scan(&uid, &kind)
	if err != nil {
		return 0, "", translateSQLError(err)
	}
	return uid, types.EntityKind(kind), nil
}

// --- nodes -------------------------------------------------------------

// nextNodeID returns the smallest node_id not currently in use for kind
// (the smallest unused 16-bit ID).
func nextNodeID(tx *sql.Tx, kind types.NodeKind) (uint16, error) {
	rows, err := tx.Query(`SELECT node_id FROM nodes WHERE kind = ? ORDER BY node_id`, string(kind))
	if err != nil {
		return 0, translateSQLError(err)
	}
	defer rows.Close()
	return smallestUnused(rows)
}

func smallestUnused(rows *sql.Rows) (uint16, error) {
	var want uint16 = 1
	for rows.Next() {
		var id uint16
		if err := rows.Scan(&id); err != nil {
			return 0, translateSQLError(err)
		}
		if id == want {
			want++
			continue
		}
		if id > want {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return 0, translateSQLError(err)
	}
	return want, nil
}

// RegisterNode returns the existing node unchanged when the request carries
// a machine UUID already registered for that kind (idempotent
// re-registration; the request's alias, port and NICs are then ignored),
// and otherwise creates a new node.
func (s *Store) RegisterNode(ctx context.Context, n types.Node) (types.Node, error) {
	return write[types.Node](ctx, s, func(tx *sql.Tx) (any, error) {
		if n.MachineUUID != "" {
			existing, err := nodeByMachineUUID(tx, n.Kind, n.MachineUUID)
			if err == nil {
				return existing, nil
			}
			if !mgmterr.Is(err, mgmterr.KindStoreNotFound) {
				return nil, err
			}
		}

		uid, err := insertEntity(tx, n.Alias, types.EntityNode)
		if err != nil {
			return nil, err
		}
		nodeID, err := nextNodeID(tx, n.Kind)
		if err != nil {
			return nil, err
		}
		_, err = tx.Exec(`INSERT INTO nodes (uid, kind, node_id, port, machine_uuid, reg_state)
			VALUES (?, ?, ?, ?, ?, ?)`,
			uid, string(n.Kind), nodeID, n.Port, nullableString(n.MachineUUID), string(types.StateProposed))
		if err != nil {
			return nil, translateSQLError(err)
		}
		for i, nic := range n.NICs {
			_, err = tx.Exec(`INSERT INTO nics (node_uid, ord, nic_type, address, name) VALUES (?, ?, ?, ?, ?)`,
				uid, i, int(nic.Type), nic.Address, nic.Name)
			if err != nil {
				return nil, translateSQLError(err)
			}
		}

		n.UID = uid
		n.NodeID = nodeID
		n.RegState = types.StateProposed
		return n, nil
	})
}

func nodeByMachineUUID(tx *sql.Tx, kind types.NodeKind, machineUUID string) (types.Node, error) {
	var n types.Node
	var uid int64
	var nodeID uint16
	var port uint16
	var regState string
	err := tx.QueryRow(`SELECT uid, node_id, port, reg_state FROM nodes
		WHERE kind = ? AND machine_uuid = ?`, string(kind), machineUUID).
		Scan(&uid, &nodeID, &port, &regState)
	if err != nil {
		return types.Node{}, translateSQLError(err)
	}
	n.UID, n.NodeID, n.Port, n.Kind = uid, nodeID, port, kind
	n.MachineUUID = machineUUID
	n.RegState = types.RegistrationState(regState)
	return n, nil
}

// NodeByMachineUUID looks up a node by kind and machine UUID, reporting
// whether it exists. Used by the topology manager to decide whether a
// registration request is from an already-known machine before deciding
// whether to reject it under a registration-disabled policy.
func (s *Store) NodeByMachineUUID(ctx context.Context, kind types.NodeKind, machineUUID string) (types.Node, bool, error) {
	var n types.Node
	var uid int64
	var nodeID uint16
	var port uint16
	var regState string
	err := s.readers.db().QueryRowContext(ctx, `SELECT uid, node_id, port, reg_state FROM nodes
		WHERE kind = ? AND machine_uuid = ?`, string(kind), machineUUID).
		Scan(&uid, &nodeID, &port, &regState)
	if err != nil {
		if mgmterr.Is(translateSQLError(err), mgmterr.KindStoreNotFound) {
			return types.Node{}, false, nil
		}
		return types.Node{}, false, translateSQLError(err)
	}
	n.UID, n.NodeID, n.Port, n.Kind = uid, nodeID, port, kind
	n.MachineUUID = machineUUID
	n.RegState = types.RegistrationState(regState)
	return n, true, nil
}

// ActivateNode transitions a node from proposed to active.
func (s *Store) ActivateNode(ctx context.Context, uid int64) error {
	_, err := write[struct{}](ctx, s, func(tx *sql.Tx) (any, error) {
		_, err := tx.Exec(`UPDATE nodes SET reg_state = ? WHERE uid = ?`, string(types.StateActive), uid)
		return nil, translateSQLError(err)
	})
	return err
}

// TouchNode records a heartbeat, advancing last_contact and, if the node
// had fallen offline, moving it back to active.
func (s *Store) TouchNode(ctx context.Context, uid int64, unixSeconds int64) error {
	_, err := write[struct{}](ctx, s, func(tx *sql.Tx) (any, error) {
		_, err := tx.Exec(`UPDATE nodes SET last_contact = ?,
			reg_state = CASE WHEN reg_state IN ('offline', 'client_offline') THEN 'active' ELSE reg_state END
			WHERE uid = ?`, unixSeconds, uid)
		return nil, translateSQLError(err)
	})
	return err
}

// MarkNodesOffline transitions every node whose last_contact predates
// cutoff from active to offline (client_offline for client nodes).
func (s *Store) MarkNodesOffline(ctx context.Context, cutoffUnixSeconds int64) ([]int64, error) {
	return write[[]int64](ctx, s, func(tx *sql.Tx) (any, error) {
		rows, err := tx.Query(`SELECT uid, kind FROM nodes WHERE reg_state = 'active' AND last_contact < ?`, cutoffUnixSeconds)
		if err != nil {
			return nil, translateSQLError(err)
		}
		var uids []int64
		var kinds []string
		for rows.Next() {
			var uid int64
			var kind string
			if err := rows.Scan(&uid, &kind); err != nil {
				rows.Close()
				return nil, translateSQLError(err)
			}
			uids = append(uids, uid)
			kinds = append(kinds, kind)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, translateSQLError(err)
		}

		for i, uid := range uids {
			state := string(types.StateOffline)
			if kinds[i] == string(types.NodeClient) {
				state = string(types.StateClientOffline)
			}
			if _, err := tx.Exec(`UPDATE nodes SET reg_state = ? WHERE uid = ?`, state, uid); err != nil {
				return nil, translateSQLError(err)
			}
		}
		return uids, nil
	})
}

// RemoveNode deletes a node and, transitively via the cascade trigger, its
// registry entry. Deletion is blocked by ON DELETE RESTRICT if any
// target still references it.
func (s *Store) RemoveNode(ctx context.Context, uid int64) error {
	_, err := write[struct{}](ctx, s, func(tx *sql.Tx) (any, error) {
		_, err := tx.Exec(`DELETE FROM nodes WHERE uid = ?`, uid)
		return nil, translateSQLError(err)
	})
	return err
}

// ReapOfflineClients deletes every client node that has sat in
// client_offline since before cutoff, and returns the removed UIDs. Only
// clients are eligible: meta, storage, and management nodes are never
// auto-removed, matching the rule that their reg_state only moves to
// offline, never removed, without an operator action.
func (s *Store) ReapOfflineClients(ctx context.Context, cutoffUnixSeconds int64) ([]int64, error) {
	return write[[]int64](ctx, s, func(tx *sql.Tx) (any, error) {
		rows, err := tx.Query(`SELECT uid FROM nodes
			WHERE kind = ? AND reg_state = ? AND last_contact < ?`,
			string(types.NodeClient), string(types.StateClientOffline), cutoffUnixSeconds)
		if err != nil {
			return nil, translateSQLError(err)
		}
		var uids []int64
		for rows.Next() {
			var uid int64
			if err := rows.Scan(&uid); err != nil {
				rows.Close()
				return nil, translateSQLError(err)
			}
			uids = append(uids, uid)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, translateSQLError(err)
		}
		for _, uid := range uids {
			if _, err := tx.Exec(`DELETE FROM nodes WHERE uid = ?`, uid); err != nil {
				return nil, translateSQLError(err)
			}
		}
		return uids, nil
	})
}

// ListNodes returns every node of kind, or every node if kind is empty.
func (s *Store) ListNodes(ctx context.Context, kind types.NodeKind) ([]types.Node, error) {
	var rows *sql.Rows
	var err error
	if kind == "" {
		rows, err = s.readers.db().QueryContext(ctx,
			`SELECT e.uid, e.alias, n.kind, n.node_id, n.port, n.last_contact, n.machine_uuid, n.reg_state
			 FROM nodes n JOIN entities e ON e.uid = n.uid ORDER BY n.kind, n.node_id`)
	} else {
		rows, err = s.readers.db().QueryContext(ctx,
			`SELECT e.uid, e.alias, n.kind, n.node_id, n.port, n.last_contact, n.machine_uuid, n.reg_state
			 FROM nodes n JOIN entities e ON e.uid = n.uid WHERE n.kind = ? ORDER BY n.node_id`, string(kind))
	}
	if err != nil {
		return nil, translateSQLError(err)
	}
	defer rows.Close()

	var out []types.Node
	for rows.Next() {
		var n types.Node
		var kindStr, regState string
		var machineUUID sql.NullString
		var lastContact int64
		if err := rows.Scan(&n.UID, &n.Alias, &kindStr, &n.NodeID, &n.Port, &lastContact, &machineUUID, &regState); err != nil {
			return nil, translateSQLError(err)
		}
		n.Kind = types.NodeKind(kindStr)
		n.RegState = types.RegistrationState(regState)
		n.MachineUUID = machineUUID.String
		n.LastContact = time.Unix(lastContact, 0).UTC()
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, translateSQLError(err)
	}
	for i := range out {
		nics, err := nodeNICs(ctx, s.readers.db(), out[i].UID)
		if err != nil {
			return nil, err
		}
		out[i].NICs = nics
	}
	return out, nil
}

func nodeNICs(ctx context.Context, q queryer, nodeUID int64) ([]types.NIC, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT nic_type, address, name FROM nics WHERE node_uid = ? ORDER BY ord`, nodeUID)
	if err != nil {
		return nil, translateSQLError(err)
	}
	defer rows.Close()
	var nics []types.NIC
	for rows.Next() {
		var n types.NIC
		var nicType int
		if err := rows.Scan(&nicType, &n.Address, &n.Name); err != nil {
			return nil, translateSQLError(err)
		}
		n.Type = types.NICType(nicType)
		nics = append(nics, n)
	}
	return nics, translateSQLError(rows.Err())
}

// NodeByUID looks up a single node by its registry UID.
func (s *Store) NodeByUID(ctx context.Context, uid int64) (types.Node, error) {
	var n types.Node
	var kindStr, regState string
	var machineUUID sql.NullString
	var lastContact int64
	err := s.readers.db().QueryRowContext(ctx,
		`SELECT e.uid, e.alias, n.kind, n.node_id, n.port, n.last_contact, n.machine_uuid, n.reg_state
		 FROM nodes n JOIN entities e ON e.uid = n.uid WHERE n.uid = ?`, uid).
		Scan(&n.UID, &n.Alias, &kindStr, &n.NodeID, &n.Port, &lastContact, &machineUUID, &regState)
	if err != nil {
		return types.Node{}, translateSQLError(err)
	}
	n.Kind = types.NodeKind(kindStr)
	n.RegState = types.RegistrationState(regState)
	n.MachineUUID = machineUUID.String
	n.LastContact = time.Unix(lastContact, 0).UTC()
	nics, err := nodeNICs(ctx, s.readers.db(), uid)
	if err != nil {
		return types.Node{}, err
	}
	n.NICs = nics
	return n, nil
}

// --- targets -------------------------------------------------------------

// nextTargetID returns the smallest unused target_id for kind.
func nextTargetID(tx *sql.Tx, kind types.NodeKind) (uint16, error) {
	rows, err := tx.Query(`SELECT target_id FROM targets WHERE kind = ? ORDER BY target_id`, string(kind))
	if err != nil {
		return 0, translateSQLError(err)
	}
	defer rows.Close()
	return smallestUnused(rows)
}

// RegisterTarget creates a target and assigns it the lowest unused
// target_id for its kind, optionally mapping it to a node (storage
// targets arrive unmapped and are mapped in a later call).
func (s *Store) RegisterTarget(ctx context.Context, t types.Target) (types.Target, error) {
	return write[types.Target](ctx, s, func(tx *sql.Tx) (any, error) {
		uid, err := insertEntity(tx, t.Alias, types.EntityTarget)
		if err != nil {
			return nil, err
		}
		targetID, err := nextTargetID(tx, t.Kind)
		if err != nil {
			return nil, err
		}
		poolUID := t.PoolUID
		if poolUID == 0 && t.Kind == types.NodeStorage {
			poolUID, err = defaultPoolUID(tx)
			if err != nil {
				return nil, err
			}
		}
		_, err = tx.Exec(`INSERT INTO targets (uid, kind, target_id, node_uid, pool_uid) VALUES (?, ?, ?, ?, ?)`,
			uid, string(t.Kind), targetID, nullableInt64(t.NodeUID), nullableInt64IfNonZero(poolUID))
		if err != nil {
			return nil, translateSQLError(err)
		}
		t.UID, t.TargetID, t.PoolUID = uid, targetID, poolUID
		t.Consistency = types.ConsistencyGood
		return t, nil
	})
}

func defaultPoolUID(tx *sql.Tx) (int64, error) {
	var uid int64
	err := tx.QueryRow(`SELECT uid FROM pools WHERE pool_id = ?`, types.DefaultPoolID).Scan(&uid)
	return uid, translateSQLError(err)
}

// MapTarget attaches an unmapped storage target to the node that reports
// it (storage targets arrive unmapped).
func (s *Store) MapTarget(ctx context.Context, targetUID, nodeUID int64) error {
	_, err := write[struct{}](ctx, s, func(tx *sql.Tx) (any, error) {
		_, err := tx.Exec(`UPDATE targets SET node_uid = ? WHERE uid = ?`, nodeUID, targetUID)
		return nil, translateSQLError(err)
	})
	return err
}

// UpdateTargetCapacity overwrites the reported capacity quadruple.
func (s *Store) UpdateTargetCapacity(ctx context.Context, targetUID int64, cap types.Capacity) error {
	_, err := write[struct{}](ctx, s, func(tx *sql.Tx) (any, error) {
		_, err := tx.Exec(`UPDATE targets SET total_space = ?, total_inodes = ?, free_space = ?, free_inodes = ?
			WHERE uid = ?`, cap.TotalSpace, cap.TotalInodes, cap.FreeSpace, cap.FreeInodes, targetUID)
		return nil, translateSQLError(err)
	})
	return err
}

// SetTargetConsistency updates a target's replication health.
func (s *Store) SetTargetConsistency(ctx context.Context, targetUID int64, c types.Consistency) error {
	_, err := write[struct{}](ctx, s, func(tx *sql.Tx) (any, error) {
		_, err := tx.Exec(`UPDATE targets SET consistency = ? WHERE uid = ?`, string(c), targetUID)
		return nil, translateSQLError(err)
	})
	return err
}

// ListTargets returns every target of kind, or every target if kind is empty.
func (s *Store) ListTargets(ctx context.Context, kind types.NodeKind) ([]types.Target, error) {
	query := `SELECT e.uid, e.alias, t.kind, t.target_id, t.node_uid, t.total_space, t.total_inodes,
		t.free_space, t.free_inodes, t.consistency, t.pool_uid
		FROM targets t JOIN entities e ON e.uid = t.uid`
	args := []any{}
	if kind != "" {
		query += ` WHERE t.kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY t.kind, t.target_id`

	rows, err := s.readers.db().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateSQLError(err)
	}
	defer rows.Close()

	var out []types.Target
	for rows.Next() {
		var t types.Target
		var kindStr, consistency string
		var nodeUID, poolUID sql.NullInt64
		if err := rows.Scan(&t.UID, &t.Alias, &kindStr, &t.TargetID, &nodeUID,
			&t.Capacity.TotalSpace, &t.Capacity.TotalInodes, &t.Capacity.FreeSpace, &t.Capacity.FreeInodes,
			&consistency, &poolUID); err != nil {
			return nil, translateSQLError(err)
		}
		t.Kind = types.NodeKind(kindStr)
		t.Consistency = types.Consistency(consistency)
		if nodeUID.Valid {
			v := nodeUID.Int64
			t.NodeUID = &v
		}
		t.PoolUID = poolUID.Int64
		out = append(out, t)
	}
	return out, translateSQLError(rows.Err())
}

// TargetByUID looks up a single target by its registry UID.
func (s *Store) TargetByUID(ctx context.Context, uid int64) (types.Target, error) {
	var t types.Target
	var kindStr, consistency string
	var nodeUID, poolUID sql.NullInt64
	err := s.readers.db().QueryRowContext(ctx,
		`SELECT e.uid, e.alias, t.kind, t.target_id, t.node_uid, t.total_space, t.total_inodes,
			t.free_space, t.free_inodes, t.consistency, t.pool_uid
		 FROM targets t JOIN entities e ON e.uid = t.uid WHERE t.uid = ?`, uid).
		Scan(&t.UID, &t.Alias, &kindStr, &t.TargetID, &nodeUID,
			&t.Capacity.TotalSpace, &t.Capacity.TotalInodes, &t.Capacity.FreeSpace, &t.Capacity.FreeInodes,
			&consistency, &poolUID)
	if err != nil {
		return types.Target{}, translateSQLError(err)
	}
	t.Kind = types.NodeKind(kindStr)
	t.Consistency = types.Consistency(consistency)
	if nodeUID.Valid {
		v := nodeUID.Int64
		t.NodeUID = &v
	}
	t.PoolUID = poolUID.Int64
	return t, nil
}

// --- pools -------------------------------------------------------------

// CreatePool creates a new storage pool with the smallest unused pool_id.
func (s *Store) CreatePool(ctx context.Context, alias string) (types.Pool, error) {
	return write[types.Pool](ctx, s, func(tx *sql.Tx) (any, error) {
		uid, err := insertEntity(tx, alias, types.EntityPool)
		if err != nil {
			return nil, err
		}
		rows, err := tx.Query(`SELECT pool_id FROM pools ORDER BY pool_id`)
		if err != nil {
			return nil, translateSQLError(err)
		}
		poolID, err := smallestUnused(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(`INSERT INTO pools (uid, pool_id) VALUES (?, ?)`, uid, poolID); err != nil {
			return nil, translateSQLError(err)
		}
		return types.Pool{UID: uid, Alias: alias, PoolID: poolID}, nil
	})
}

// RemovePool deletes a pool, refusing to delete DefaultPoolID.
func (s *Store) RemovePool(ctx context.Context, uid int64) error {
	_, err := write[struct{}](ctx, s, func(tx *sql.Tx) (any, error) {
		var poolID uint16
		if err := tx.QueryRow(`SELECT pool_id FROM pools WHERE uid = ?`, uid).Scan(&poolID); err != nil {
			return nil, translateSQLError(err)
		}
		if poolID == types.DefaultPoolID {
			return nil, mgmterr.New(mgmterr.KindStoreConstraint, "the default storage pool cannot be removed")
		}
		_, err := tx.Exec(`DELETE FROM pools WHERE uid = ?`, uid)
		return nil, translateSQLError(err)
	})
	return err
}

// ListPools returns every storage pool.
func (s *Store) ListPools(ctx context.Context) ([]types.Pool, error) {
	rows, err := s.readers.db().QueryContext(ctx,
		`SELECT e.uid, e.alias, p.pool_id FROM pools p JOIN entities e ON e.uid = p.uid ORDER BY p.pool_id`)
	if err != nil {
		return nil, translateSQLError(err)
	}
	defer rows.Close()

	var out []types.Pool
	for rows.Next() {
		var p types.Pool
		if err := rows.Scan(&p.UID, &p.Alias, &p.PoolID); err != nil {
			return nil, translateSQLError(err)
		}
		out = append(out, p)
	}
	return out, translateSQLError(rows.Err())
}

// --- buddy groups --------------------------------------------------------

// CreateBuddyGroup pairs primary and secondary targets of the same kind
// into a new group. The uniqueness trigger rejects a target already
// used by another group of this kind.
func (s *Store) CreateBuddyGroup(ctx context.Context, g types.BuddyGroup) (types.BuddyGroup, error) {
	return write[types.BuddyGroup](ctx, s, func(tx *sql.Tx) (any, error) {
		uid, err := insertEntity(tx, g.Alias, types.EntityBuddyGroup)
		if err != nil {
			return nil, err
		}
		rows, err := tx.Query(`SELECT group_id FROM buddy_groups WHERE kind = ? ORDER BY group_id`, string(g.Kind))
		if err != nil {
			return nil, translateSQLError(err)
		}
		groupID, err := smallestUnused(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		_, err = tx.Exec(`INSERT INTO buddy_groups (uid, kind, group_id, primary_target_uid, secondary_target_uid, pool_uid)
			VALUES (?, ?, ?, ?, ?, ?)`, uid, string(g.Kind), groupID, g.PrimaryUID, g.SecondaryUID, nullableInt64IfNonZero(g.PoolUID))
		if err != nil {
			return nil, translateSQLError(err)
		}
		g.UID, g.GroupID = uid, groupID
		return g, nil
	})
}

// FailoverBuddyGroup atomically swaps primary and secondary, marking the
// new secondary as needing resync.
func (s *Store) FailoverBuddyGroup(ctx context.Context, groupUID int64) (types.BuddyGroup, error) {
	return write[types.BuddyGroup](ctx, s, func(tx *sql.Tx) (any, error) {
		var g types.BuddyGroup
		var kind string
		if err := tx.QueryRow(`SELECT kind, group_id, primary_target_uid, secondary_target_uid FROM buddy_groups WHERE uid = ?`, groupUID).
			Scan(&kind, &g.GroupID, &g.PrimaryUID, &g.SecondaryUID); err != nil {
			return nil, translateSQLError(err)
		}
		g.UID, g.Kind = groupUID, types.NodeKind(kind)
		g.PrimaryUID, g.SecondaryUID = g.SecondaryUID, g.PrimaryUID

		if _, err := tx.Exec(`UPDATE buddy_groups SET primary_target_uid = ?, secondary_target_uid = ? WHERE uid = ?`,
			g.PrimaryUID, g.SecondaryUID, groupUID); err != nil {
			return nil, translateSQLError(err)
		}
		if _, err := tx.Exec(`UPDATE targets SET consistency = 'needs_resync' WHERE uid = ?`, g.SecondaryUID); err != nil {
			return nil, translateSQLError(err)
		}
		return g, nil
	})
}

// GroupForTarget returns the buddy group targetUID belongs to, as either
// primary or secondary member, reporting ok=false if it belongs to none.
func (s *Store) GroupForTarget(ctx context.Context, targetUID int64) (types.BuddyGroup, bool, error) {
	row := s.readers.db().QueryRowContext(ctx,
		`SELECT e.uid, e.alias, b.kind, b.group_id, b.primary_target_uid, b.secondary_target_uid, b.pool_uid
		 FROM buddy_groups b JOIN entities e ON e.uid = b.uid
		 WHERE b.primary_target_uid = ? OR b.secondary_target_uid = ?`, targetUID, targetUID)

	var g types.BuddyGroup
	var kindStr string
	var poolUID sql.NullInt64
	err := row.Scan(&g.UID, &g.Alias, &kindStr, &g.GroupID, &g.PrimaryUID, &g.SecondaryUID, &poolUID)
	if err == sql.ErrNoRows {
		return types.BuddyGroup{}, false, nil
	}
	if err != nil {
		return types.BuddyGroup{}, false, translateSQLError(err)
	}
	g.Kind = types.NodeKind(kindStr)
	g.PoolUID = poolUID.Int64
	return g, true, nil
}

// ListBuddyGroups returns every buddy group of kind, or all if kind is empty.
func (s *Store) ListBuddyGroups(ctx context.Context, kind types.NodeKind) ([]types.BuddyGroup, error) {
	query := `SELECT e.uid, e.alias, b.kind, b.group_id, b.primary_target_uid, b.secondary_target_uid, b.pool_uid
		FROM buddy_groups b JOIN entities e ON e.uid = b.uid`
	args := []any{}
	if kind != "" {
		query += ` WHERE b.kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY b.kind, b.group_id`

	rows, err := s.readers.db().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateSQLError(err)
	}
	defer rows.Close()

	var out []types.BuddyGroup
	for rows.Next() {
		var g types.BuddyGroup
		var kindStr string
		var poolUID sql.NullInt64
		if err := rows.Scan(&g.UID, &g.Alias, &kindStr, &g.GroupID, &g.PrimaryUID, &g.SecondaryUID, &poolUID); err != nil {
			return nil, translateSQLError(err)
		}
		g.Kind = types.NodeKind(kindStr)
		g.PoolUID = poolUID.Int64
		out = append(out, g)
	}
	return out, translateSQLError(rows.Err())
}

// RemoveTarget deletes a target and, transitively via the cascade
// trigger, its registry entry. Deletion is blocked by ON DELETE RESTRICT
// if a buddy group or the root inode still references it.
func (s *Store) RemoveTarget(ctx context.Context, uid int64) error {
	_, err := write[struct{}](ctx, s, func(tx *sql.Tx) (any, error) {
		_, err := tx.Exec(`DELETE FROM targets WHERE uid = ?`, uid)
		return nil, translateSQLError(err)
	})
	return err
}

// RemoveBuddyGroup deletes a buddy group and, transitively via the
// cascade trigger, its registry entry. Deletion is blocked by ON DELETE
// RESTRICT if the root inode still points at it.
func (s *Store) RemoveBuddyGroup(ctx context.Context, uid int64) error {
	_, err := write[struct{}](ctx, s, func(tx *sql.Tx) (any, error) {
		_, err := tx.Exec(`DELETE FROM buddy_groups WHERE uid = ?`, uid)
		return nil, translateSQLError(err)
	})
	return err
}

// --- root inode ------------------------------------------------------------

// RootInode returns the current root-inode pointer. It reports NotFound
// until the first SetRootInode call establishes one.
func (s *Store) RootInode(ctx context.Context) (types.RootInode, error) {
	var targetUID, groupUID sql.NullInt64
	err := s.readers.db().QueryRowContext(ctx,
		`SELECT target_uid, group_uid FROM root_inode WHERE id = 1`).Scan(&targetUID, &groupUID)
	if err != nil {
		return types.RootInode{}, translateSQLError(err)
	}
	if !targetUID.Valid && !groupUID.Valid {
		return types.RootInode{}, mgmterr.NotFound("root inode")
	}
	var r types.RootInode
	if targetUID.Valid {
		v := targetUID.Int64
		r.TargetUID = &v
	}
	if groupUID.Valid {
		v := groupUID.Int64
		r.GroupUID = &v
	}
	return r, nil
}

// SetRootInode points the root inode at a meta target or a meta buddy
// group, exclusively. Exactly one of targetUID/groupUID must be nonzero;
// the other selects which kind of entity is being pointed at.
func (s *Store) SetRootInode(ctx context.Context, targetUID, groupUID int64) error {
	_, err := write[struct{}](ctx, s, func(tx *sql.Tx) (any, error) {
		if (targetUID == 0) == (groupUID == 0) {
			return nil, mgmterr.New(mgmterr.KindStoreConstraint,
				"root inode must point at exactly one of a meta target or a meta buddy group")
		}
		if targetUID != 0 {
			var kind string
			if err := tx.QueryRow(`SELECT kind FROM targets WHERE uid = ?`, targetUID).Scan(&kind); err != nil {
				return nil, translateSQLError(err)
			}
			if kind != string(types.NodeMeta) {
				return nil, mgmterr.New(mgmterr.KindStoreConstraint, "root inode target must be a meta target")
			}
		}
		if groupUID != 0 {
			var kind string
			if err := tx.QueryRow(`SELECT kind FROM buddy_groups WHERE uid = ?`, groupUID).Scan(&kind); err != nil {
				return nil, translateSQLError(err)
			}
			if kind != string(types.NodeMeta) {
				return nil, mgmterr.New(mgmterr.KindStoreConstraint, "root inode group must be a meta buddy group")
			}
		}
		_, err := tx.Exec(`UPDATE root_inode SET target_uid = ?, group_uid = ? WHERE id = 1`,
			nullableInt64IfNonZero(targetUID), nullableInt64IfNonZero(groupUID))
		return nil, translateSQLError(err)
	})
	return err
}

// --- quotas --------------------------------------------------------------

// SetQuotaLimit upserts an administrator-set limit for one identity.
func (s *Store) SetQuotaLimit(ctx context.Context, l types.QuotaLimit) error {
	_, err := write[struct{}](ctx, s, func(tx *sql.Tx) (any, error) {
		_, err := tx.Exec(`INSERT INTO quota_limits (quota_id, id_type, qtype, pool_uid, value) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id_type, qtype, pool_uid, quota_id) DO UPDATE SET value = excluded.value`,
			l.QuotaID, string(l.IDType), string(l.Type), l.PoolUID, l.Value)
		return nil, translateSQLError(err)
	})
	return err
}

// QuotaLimitFor looks up the administrator-set limit for one specific
// identity, reporting whether one exists.
func (s *Store) QuotaLimitFor(ctx context.Context, quotaID int64, idType types.IdentityType, qtype types.QuotaType, poolUID int64) (int64, bool, error) {
	var value int64
	err := s.readers.db().QueryRowContext(ctx,
		`SELECT value FROM quota_limits WHERE quota_id = ? AND id_type = ? AND qtype = ? AND pool_uid = ?`,
		quotaID, string(idType), string(qtype), poolUID).Scan(&value)
	if err != nil {
		if mgmterr.Is(translateSQLError(err), mgmterr.KindStoreNotFound) {
			return 0, false, nil
		}
		return 0, false, translateSQLError(err)
	}
	return value, true, nil
}

// SetQuotaDefaultLimit upserts the fallback limit applied to identities
// with no specific QuotaLimit row.
func (s *Store) SetQuotaDefaultLimit(ctx context.Context, l types.QuotaDefaultLimit) error {
	_, err := write[struct{}](ctx, s, func(tx *sql.Tx) (any, error) {
		_, err := tx.Exec(`INSERT INTO quota_default_limits (id_type, qtype, pool_uid, value) VALUES (?, ?, ?, ?)
			ON CONFLICT(id_type, qtype, pool_uid) DO UPDATE SET value = excluded.value`,
			string(l.IDType), string(l.Type), l.PoolUID, l.Value)
		return nil, translateSQLError(err)
	})
	return err
}

// QuotaDefaultLimitFor looks up the fallback limit for (idType, qtype,
// poolUID), reporting whether one has been configured.
func (s *Store) QuotaDefaultLimitFor(ctx context.Context, idType types.IdentityType, qtype types.QuotaType, poolUID int64) (int64, bool, error) {
	var value int64
	err := s.readers.db().QueryRowContext(ctx,
		`SELECT value FROM quota_default_limits WHERE id_type = ? AND qtype = ? AND pool_uid = ?`,
		string(idType), string(qtype), poolUID).Scan(&value)
	if err != nil {
		if mgmterr.Is(translateSQLError(err), mgmterr.KindStoreNotFound) {
			return 0, false, nil
		}
		return 0, false, translateSQLError(err)
	}
	return value, true, nil
}

// ListQuotaLimits returns every quota limit for a pool.
func (s *Store) ListQuotaLimits(ctx context.Context, poolUID int64) ([]types.QuotaLimit, error) {
	rows, err := s.readers.db().QueryContext(ctx,
		`SELECT quota_id, id_type, qtype, pool_uid, value FROM quota_limits WHERE pool_uid = ?`, poolUID)
	if err != nil {
		return nil, translateSQLError(err)
	}
	defer rows.Close()

	var out []types.QuotaLimit
	for rows.Next() {
		var l types.QuotaLimit
		var idType, qtype string
		if err := rows.Scan(&l.QuotaID, &idType, &qtype, &l.PoolUID, &l.Value); err != nil {
			return nil, translateSQLError(err)
		}
		l.IDType, l.Type = types.IdentityType(idType), types.QuotaType(qtype)
		out = append(out, l)
	}
	return out, translateSQLError(rows.Err())
}

// RecordQuotaUsage overwrites one target's reported usage for an identity,
// called once per target during the quota pull phase.
func (s *Store) RecordQuotaUsage(ctx context.Context, u types.QuotaUsage) error {
	_, err := write[struct{}](ctx, s, func(tx *sql.Tx) (any, error) {
		_, err := tx.Exec(`INSERT INTO quota_usage (quota_id, id_type, qtype, target_uid, value) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(quota_id, id_type, qtype, target_uid) DO UPDATE SET value = excluded.value`,
			u.QuotaID, string(u.IDType), string(u.Type), u.TargetID, u.Value)
		return nil, translateSQLError(err)
	})
	return err
}

// SumQuotaUsage aggregates usage across all targets for one identity.
func (s *Store) SumQuotaUsage(ctx context.Context, quotaID int64, idType types.IdentityType, qtype types.QuotaType) (int64, error) {
	var total sql.NullInt64
	err := s.readers.db().QueryRowContext(ctx,
		`SELECT sum(value) FROM quota_usage WHERE quota_id = ? AND id_type = ? AND qtype = ?`,
		quotaID, string(idType), string(qtype)).Scan(&total)
	if err != nil {
		return 0, translateSQLError(err)
	}
	return total.Int64, nil
}

// SumQuotaUsageInPool aggregates usage for one identity across only the
// targets belonging to poolUID, which is what the exceeded-quota
// computation (step 4 of the quota cycle) actually needs: a pool's
// limit is compared against usage on that pool's targets, not the
// identity's usage cluster-wide.
func (s *Store) SumQuotaUsageInPool(ctx context.Context, quotaID int64, idType types.IdentityType, qtype types.QuotaType, poolUID int64) (int64, error) {
	var total sql.NullInt64
	err := s.readers.db().QueryRowContext(ctx,
		`SELECT sum(u.value) FROM quota_usage u JOIN targets t ON t.uid = u.target_uid
		 WHERE u.quota_id = ? AND u.id_type = ? AND u.qtype = ? AND t.pool_uid = ?`,
		quotaID, string(idType), string(qtype), poolUID).Scan(&total)
	if err != nil {
		return 0, translateSQLError(err)
	}
	return total.Int64, nil
}

// DistinctQuotaIDsInPool returns every quota_id that has reported usage
// on a target in poolUID for (idType, qtype), the candidate set for the
// exceeded-quota computation.
func (s *Store) DistinctQuotaIDsInPool(ctx context.Context, idType types.IdentityType, qtype types.QuotaType, poolUID int64) ([]int64, error) {
	rows, err := s.readers.db().QueryContext(ctx,
		`SELECT DISTINCT u.quota_id FROM quota_usage u JOIN targets t ON t.uid = u.target_uid
		 WHERE u.id_type = ? AND u.qtype = ? AND t.pool_uid = ? ORDER BY u.quota_id`,
		string(idType), string(qtype), poolUID)
	if err != nil {
		return nil, translateSQLError(err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, translateSQLError(err)
		}
		ids = append(ids, id)
	}
	return ids, translateSQLError(rows.Err())
}

// --- config_kv -----------------------------------------------------------

// GetConfig reads one config_kv value, returning ok=false if absent.
func (s *Store) GetConfig(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.readers.db().QueryRowContext(ctx, `SELECT value FROM config_kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, translateSQLError(err)
	}
	return value, true, nil
}

// SetConfig upserts one config_kv value.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := write[struct{}](ctx, s, func(tx *sql.Tx) (any, error) {
		_, err := tx.Exec(`INSERT INTO config_kv (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
		return nil, translateSQLError(err)
	})
	return err
}

// --- small helpers ---------------------------------------------------

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableInt64IfNonZero(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
