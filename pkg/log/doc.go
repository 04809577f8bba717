/*
Package log provides structured logging for the management service using
zerolog.

A single package-level Logger is initialized once via Init() and is safe
for concurrent use from every package. WithComponent creates a child
logger that tags every line with a component name, which is how the
store, wire, rpc, topology, capacity, quota, and buddy packages identify
their log output.

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stderr,
	})

	log.Info("management service starting")

	storeLog := log.WithComponent("store")
	storeLog.Info().Int("schema_version", 3).Msg("migrations applied")
	storeLog.Error().Err(err).Msg("transaction failed")

# Levels

Debug is for verbose development detail, Info for the default production
volume, Warn for conditions worth noticing but not acting on immediately,
Error for failed operations that were handled, and Fatal for conditions
the process cannot recover from (it logs and calls os.Exit(1)).

# Output

Output defaults to os.Stderr so a systemd-managed process's stdout stays
free for interactive use (init's printed confirmation, a shell prompt);
journald captures stderr either way. JSONOutput switches between
structured JSON and a human-readable console writer.
*/
package log
