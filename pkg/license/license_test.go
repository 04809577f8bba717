package license

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beegfs/mgmtd/pkg/mgmterr"
)

func TestNewGate_EmptyPathDeniesEverything(t *testing.T) {
	g := NewGate("")
	assert.False(t, g.Allowed("dr-replication"))
}

func TestNewGate_UnloadablePluginFallsBackToDenied(t *testing.T) {
	g := NewGate("/nonexistent/license.so")
	assert.False(t, g.Allowed("dr-replication"))
}

func TestGate_RequireReturnsLicenseDeniedError(t *testing.T) {
	g := NewGate("")
	err := g.Require("dr-replication")
	require.Error(t, err)
	assert.True(t, mgmterr.Is(err, mgmterr.KindLicenseDenied))
}

func TestGate_RequireSucceedsWhenAllowed(t *testing.T) {
	g := &Gate{checker: alwaysAllow{}}
	require.NoError(t, g.Require("dr-replication"))
}

type alwaysAllow struct{}

func (alwaysAllow) IsFeatureAllowed(string) bool { return true }
