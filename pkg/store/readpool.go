package store

import (
	"database/sql"
	"fmt"

	"github.com/beegfs/mgmtd/pkg/mgmterr"
)

// readPool is a bounded pool of read-only connections, separate from the
// single writer connection so queries never block behind (or are blocked
// by) the writer executor's in-flight transaction.
type readPool struct {
	conn *sql.DB
}

func newReadPool(path string, maxConns int) (*readPool, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&mode=ro", path)
	if path == ":memory:" {
		// A plain ":memory:" read-only connection would see its own empty
		// database, not the writer's; the shared-cache URI keeps it
		// pointed at the same in-memory database as the writer.
		dsn = "file::memory:?cache=shared&_pragma=busy_timeout(5000)&mode=ro"
	}
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, mgmterr.Wrap(mgmterr.KindIO, "open read pool", err)
	}
	conn.SetMaxOpenConns(maxConns)
	return &readPool{conn: conn}, nil
}

func (p *readPool) db() *sql.DB { return p.conn }

func (p *readPool) close() error { return p.conn.Close() }
