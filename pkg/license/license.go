// Package license gates enterprise-only features behind an optional,
// dynamically loaded plug-in. Per the management protocol's own framing,
// the license library is an external collaborator exposing one operation,
// is_feature_allowed(feature_id) -> bool; when no plug-in is configured, or
// the plug-in can't be loaded, every enterprise feature is simply off.
package license

import (
	"github.com/rs/zerolog"

	"github.com/beegfs/mgmtd/pkg/log"
	"github.com/beegfs/mgmtd/pkg/mgmterr"
)

// FeatureChecker is the loaded plug-in's single operation.
type FeatureChecker interface {
	IsFeatureAllowed(featureID string) bool
}

// staticDeny is the default checker: no plug-in, no enterprise features.
type staticDeny struct{}

func (staticDeny) IsFeatureAllowed(string) bool { return false }

// Gate answers whether an enterprise feature is licensed. The zero value is
// not usable; build one with NewGate.
type Gate struct {
	checker FeatureChecker
	log     zerolog.Logger
}

// NewGate builds a Gate. An empty pluginPath disables enterprise features
// outright (no attempt to load anything). A non-empty path that fails to
// load — missing file, wrong symbol, or a platform/build with no plug-in
// support at all — logs a warning and falls back to the same all-denied
// behavior rather than failing startup; a management daemon with a stale or
// misconfigured license plug-in should still run its open-source feature
// set.
func NewGate(pluginPath string) *Gate {
	g := &Gate{checker: staticDeny{}, log: log.WithComponent("license")}
	if pluginPath == "" {
		return g
	}
	checker, err := loadPlugin(pluginPath)
	if err != nil {
		g.log.Warn().Err(err).Str("path", pluginPath).
			Msg("enterprise license plugin unavailable, enterprise features disabled")
		return g
	}
	g.checker = checker
	return g
}

// Allowed reports whether featureID is licensed.
func (g *Gate) Allowed(featureID string) bool {
	return g.checker.IsFeatureAllowed(featureID)
}

// Require returns a KindLicenseDenied error if featureID is not licensed,
// for handlers that should refuse an enterprise-only operation outright
// rather than silently degrading.
func (g *Gate) Require(featureID string) error {
	if !g.Allowed(featureID) {
		return mgmterr.New(mgmterr.KindLicenseDenied, "feature \""+featureID+"\" requires an enterprise license")
	}
	return nil
}
