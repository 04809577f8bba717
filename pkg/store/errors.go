package store

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/beegfs/mgmtd/pkg/metrics"
	"github.com/beegfs/mgmtd/pkg/mgmterr"
)

// translateSQLError turns a raw sqlite error into the management service's
// error taxonomy, translating an alias uniqueness failure into a
// conflict carrying a user-friendly message and other constraint
// failures into already-exists or constraint errors. It matches on the SQLite
// error text rather than driver-specific error types so it keeps
// working regardless of which database/sql driver is wired underneath.
func translateSQLError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		metrics.StoreErrorsTotal.WithLabelValues(string(mgmterr.KindStoreNotFound)).Inc()
		return mgmterr.Wrap(mgmterr.KindStoreNotFound, "record not found", err)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed: entities.alias"):
		metrics.StoreErrorsTotal.WithLabelValues(string(mgmterr.KindStoreConflict)).Inc()
		return mgmterr.Wrap(mgmterr.KindStoreConflict, aliasConflictMessage(msg), err)
	case strings.Contains(msg, "UNIQUE constraint failed"):
		metrics.StoreErrorsTotal.WithLabelValues(string(mgmterr.KindStoreAlreadyExists)).Inc()
		return mgmterr.Wrap(mgmterr.KindStoreAlreadyExists, "a record with these identifying fields already exists", err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		metrics.StoreErrorsTotal.WithLabelValues(string(mgmterr.KindStoreConstraint)).Inc()
		return mgmterr.Wrap(mgmterr.KindStoreConstraint, "operation would violate a foreign-key relationship", err)
	case strings.Contains(msg, "CHECK constraint failed"), strings.Contains(msg, "RAISE(ABORT"):
		metrics.StoreErrorsTotal.WithLabelValues(string(mgmterr.KindStoreConstraint)).Inc()
		return mgmterr.Wrap(mgmterr.KindStoreConstraint, "operation would violate a data invariant", err)
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "SQLITE_BUSY"):
		metrics.StoreErrorsTotal.WithLabelValues(string(mgmterr.KindBusy)).Inc()
		return mgmterr.Wrap(mgmterr.KindBusy, "store is busy", err)
	default:
		metrics.StoreErrorsTotal.WithLabelValues(string(mgmterr.KindIO)).Inc()
		return mgmterr.Wrap(mgmterr.KindIO, "store operation failed", err)
	}
}

// aliasConflictMessage extracts the offending alias is not possible from
// the driver error alone, so the message names the constraint instead of
// guessing the value; callers that know the attempted alias should prefer
// mgmterr.Conflictf directly.
func aliasConflictMessage(string) string {
	return "alias already exists"
}
