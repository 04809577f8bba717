package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/beegfs/mgmtd/pkg/log"
	"github.com/beegfs/mgmtd/pkg/mgmterr"
	"github.com/beegfs/mgmtd/pkg/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "create a new, empty management database",
	Long: `init creates the management database at --db-file and seeds it
with the management singleton and default storage pool. It refuses to
run against a path that already exists, so a misconfigured --db-file
can never silently wipe an existing cluster's state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd.Context(), &cfg)
	},
}

// runInit creates the database at cfg.DBFile, refusing if it already
// exists (store.Open itself would happily create-and-seed an arbitrary
// path, which is exactly the accidental-creation risk this gate closes).
func runInit(ctx context.Context, cfg *Config) error {
	if _, err := os.Stat(cfg.DBFile); err == nil {
		return exitf(1, mgmterr.New(mgmterr.KindConfig,
			fmt.Sprintf("refusing to init: %q already exists", cfg.DBFile)))
	} else if !os.IsNotExist(err) {
		return exitf(2, mgmterr.Wrap(mgmterr.KindIO, "stat db-file", err))
	}

	st, err := store.Open(ctx, store.Config{Path: cfg.DBFile, MaxReaders: cfg.MaxBlockingThreads})
	if err != nil {
		return exitf(2, err)
	}
	defer st.Close()

	log.WithComponent("init").Info().Str("db_file", cfg.DBFile).Msg("management database initialized")
	return nil
}
