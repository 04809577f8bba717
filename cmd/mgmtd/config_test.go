package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindAddr_NoInterfacesBindsAllHosts(t *testing.T) {
	assert.Equal(t, ":8008", bindAddr(nil, 8008))
}

func TestBindAddr_FirstInterfaceIsTheBindHost(t *testing.T) {
	assert.Equal(t, "10.0.0.5:8010", bindAddr([]string{"10.0.0.5", "10.0.0.6"}, 8010))
}

func TestRegisterDaemonFlags_DefaultsMatchDefaultConfig(t *testing.T) {
	cfg := defaultConfig()
	cmd := &cobra.Command{Use: "test"}
	registerStoreFlags(cmd.Flags(), &cfg)
	registerDaemonFlags(cmd.Flags(), &cfg)

	require.NoError(t, cmd.Flags().Parse(nil))
	assert.Equal(t, "/var/lib/beegfs/mgmtd.sqlite", cfg.DBFile)
	assert.Equal(t, 8008, cfg.BeeMsgPort)
	assert.Equal(t, 8010, cfg.GRPCPort)
	assert.False(t, cfg.TLSDisable)
	assert.False(t, cfg.QuotaEnable)
}

func TestRegisterDaemonFlags_ExplicitFlagsOverrideDefaults(t *testing.T) {
	cfg := defaultConfig()
	cmd := &cobra.Command{Use: "test"}
	registerStoreFlags(cmd.Flags(), &cfg)
	registerDaemonFlags(cmd.Flags(), &cfg)

	require.NoError(t, cmd.Flags().Parse([]string{
		"--db-file=/tmp/mgmtd.sqlite",
		"--beemsg-port=9001",
		"--quota-enable",
		"--interfaces=10.0.0.1,10.0.0.2",
		"--tls-disable",
	}))

	assert.Equal(t, "/tmp/mgmtd.sqlite", cfg.DBFile)
	assert.Equal(t, 9001, cfg.BeeMsgPort)
	assert.True(t, cfg.QuotaEnable)
	assert.True(t, cfg.TLSDisable)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Interfaces)
}

func TestRunInit_RefusesExistingDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mgmtd.sqlite")
	require.NoError(t, os.WriteFile(path, []byte{}, 0o644))

	cfg := defaultConfig()
	cfg.DBFile = path

	err := runInit(context.Background(), &cfg)
	require.Error(t, err)
	var ee *exitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 1, ee.code)
}

func TestRunInit_CreatesDatabaseThenRefusesASecondTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mgmtd.sqlite")

	cfg := defaultConfig()
	cfg.DBFile = path

	require.NoError(t, runInit(context.Background(), &cfg))

	err := runInit(context.Background(), &cfg)
	require.Error(t, err)
	var ee *exitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 1, ee.code)
}

func TestRunDaemon_RefusesMissingDatabaseWithoutInit(t *testing.T) {
	dir := t.TempDir()
	cfg := defaultConfig()
	cfg.DBFile = filepath.Join(dir, "does-not-exist.sqlite")

	err := runDaemon(context.Background(), &cfg)
	require.Error(t, err)
	var ee *exitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 1, ee.code)
}

func TestRunDaemon_RejectsConfigFileFlag(t *testing.T) {
	cfg := defaultConfig()
	cfg.ConfigFile = "/etc/mgmtd.yaml"

	err := runDaemon(context.Background(), &cfg)
	require.Error(t, err)
	var ee *exitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 1, ee.code)
}
