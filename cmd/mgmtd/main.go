// Command mgmtd is the management service of a parallel distributed
// file system cluster: it tracks node/target registration, capacity
// classification, buddy-group consistency, and per-identity quota
// accounting, and exposes that state over the legacy BeeMsg wire
// protocol and a modern RPC interface.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, ee.Error())
			return ee.code
		}
		fmt.Fprintln(os.Stderr, err.Error())
		return codeForKind(err)
	}
	return 0
}
