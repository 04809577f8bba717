//go:build linux && cgo

package license

import (
	"plugin"

	"github.com/beegfs/mgmtd/pkg/mgmterr"
)

// pluginChecker adapts a loaded plug-in's exported IsFeatureAllowed symbol
// to the FeatureChecker interface.
type pluginChecker struct {
	fn func(string) bool
}

func (p pluginChecker) IsFeatureAllowed(featureID string) bool { return p.fn(featureID) }

// loadPlugin opens a Go plug-in (.so) built with `go build -buildmode=plugin`
// and resolves its exported IsFeatureAllowed(string) bool symbol.
func loadPlugin(path string) (FeatureChecker, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, mgmterr.Wrap(mgmterr.KindConfig, "open license plugin", err)
	}
	sym, err := p.Lookup("IsFeatureAllowed")
	if err != nil {
		return nil, mgmterr.Wrap(mgmterr.KindConfig, "license plugin missing IsFeatureAllowed symbol", err)
	}
	fn, ok := sym.(func(string) bool)
	if !ok {
		return nil, mgmterr.New(mgmterr.KindConfig, "license plugin IsFeatureAllowed has the wrong signature")
	}
	return pluginChecker{fn: fn}, nil
}
