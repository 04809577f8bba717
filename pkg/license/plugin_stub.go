//go:build !(linux && cgo)

package license

import "github.com/beegfs/mgmtd/pkg/mgmterr"

// loadPlugin always fails on platforms (or cgo-disabled builds) where
// the stdlib plugin package isn't supported, e.g. darwin and windows.
func loadPlugin(path string) (FeatureChecker, error) {
	return nil, mgmterr.New(mgmterr.KindConfig, "dynamic license plugins require linux with cgo enabled")
}
