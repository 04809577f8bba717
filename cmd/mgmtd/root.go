package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beegfs/mgmtd/pkg/log"
)

var cfg = defaultConfig()

var rootCmd = &cobra.Command{
	Use:   "mgmtd",
	Short: "management service for a parallel distributed file system cluster",
	Long: `mgmtd coordinates cluster topology, membership, capacity
classification, and quota accounting. It does not serve file data or
metadata itself; meta and storage nodes connect to it over the BeeMsg
wire protocol, and administrators connect over the RPC interface.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd.Context(), &cfg)
	},
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("mgmtd version %s\ncommit: %s\nbuilt: %s\n", version, commit, buildTime))

	registerStoreFlags(rootCmd.PersistentFlags(), &cfg)
	registerDaemonFlags(rootCmd.PersistentFlags(), &cfg)

	cobra.OnInitialize(func() {
		log.Init(log.Config{
			Level:  log.Level(cfg.LogLevel),
			Target: log.Target(cfg.LogTarget),
		})
	})

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}
