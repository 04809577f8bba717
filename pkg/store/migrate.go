package store

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/beegfs/mgmtd/pkg/mgmterr"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type migration struct {
	version int
	name    string
	sql     string
}

func loadMigrations() ([]migration, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var out []migration
	for _, e := range entries {
		name := e.Name()
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("malformed migration filename %q", name)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("malformed migration version in %q: %w", name, err)
		}
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", name, err)
		}
		out = append(out, migration{version: version, name: name, sql: string(data)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// LatestSchemaVersion returns the highest migration version this binary
// knows how to apply.
func LatestSchemaVersion() (int, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return 0, err
	}
	if len(migrations) == 0 {
		return 0, nil
	}
	return migrations[len(migrations)-1].version, nil
}

// currentSchemaVersion reads config_kv.schema_version, returning 0 if the
// config_kv table doesn't exist yet (a brand-new, uninitialized database).
func currentSchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='config_kv'`).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("check config_kv existence: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}

	var raw string
	err = db.QueryRow(`SELECT value FROM config_kv WHERE key = 'schema_version'`).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse schema_version %q: %w", raw, err)
	}
	return version, nil
}

// migrate applies every migration with version > current, in ascending
// order, inside a single transaction. A schema version ahead of what
// this binary knows is rejected outright.
func migrate(db *sql.DB) error {
	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	current, err := currentSchemaVersion(db)
	if err != nil {
		return mgmterr.Wrap(mgmterr.KindStoreMigration, "read current schema version", err)
	}

	latest := 0
	if len(migrations) > 0 {
		latest = migrations[len(migrations)-1].version
	}
	if current > latest {
		return mgmterr.New(mgmterr.KindStoreMigration,
			fmt.Sprintf("database schema version %d is newer than the latest version %d this binary supports", current, latest))
	}
	if current == latest {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return mgmterr.Wrap(mgmterr.KindStoreMigration, "begin migration transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := tx.Exec(m.sql); err != nil {
			return mgmterr.Wrap(mgmterr.KindStoreMigration, fmt.Sprintf("apply migration %s", m.name), err)
		}
		if _, err := tx.Exec(`INSERT INTO config_kv (key, value) VALUES ('schema_version', ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, strconv.Itoa(m.version)); err != nil {
			return mgmterr.Wrap(mgmterr.KindStoreMigration, "update schema_version", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mgmterr.Wrap(mgmterr.KindStoreMigration, "commit migration transaction", err)
	}
	return nil
}
