package main

import "github.com/beegfs/mgmtd/pkg/mgmterr"

// exitError carries a specific process exit code through cobra's RunE
// return value to main's single os.Exit call, since cobra only gives us
// an error, not a code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitf(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// codeForKind maps an mgmterr.Kind to one of spec.md's process exit
// codes, for errors that reach main without already being wrapped in an
// exitError (a bug surfacing through a path this package didn't
// anticipate still needs to exit with something other than success).
func codeForKind(err error) int {
	switch {
	case mgmterr.Is(err, mgmterr.KindConfig):
		return 1
	case mgmterr.Is(err, mgmterr.KindStoreMigration), mgmterr.Is(err, mgmterr.KindIO):
		return 2
	case mgmterr.Is(err, mgmterr.KindTransportBind):
		return 3
	default:
		return 4
	}
}
