package main

import (
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// Config holds every CLI flag this daemon understands, bound once at
// flag-registration time and passed down by reference from there on —
// no package reaches back into cobra's flag set once RunE starts.
type Config struct {
	ConfigFile         string
	DBFile             string
	MaxBlockingThreads int

	BeeMsgPort int
	GRPCPort   int
	Interfaces []string

	TLSDisable  bool
	TLSCertFile string
	TLSKeyFile  string

	AuthDisable bool
	AuthFile    string

	ConnectionLimit int

	RegistrationDisable     bool
	NodeOfflineTimeout      time.Duration
	ClientAutoRemoveTimeout time.Duration

	QuotaEnable         bool
	QuotaEnforce        bool
	QuotaUpdateInterval time.Duration

	LogTarget string
	LogLevel  string

	LicensePlugin string
	LivenessFile  string
	MetricsAddr   string
}

func defaultConfig() Config {
	return Config{
		DBFile:                  "/var/lib/beegfs/mgmtd.sqlite",
		MaxBlockingThreads:      128,
		BeeMsgPort:              8008,
		GRPCPort:                8010,
		NodeOfflineTimeout:      180 * time.Second,
		ClientAutoRemoveTimeout: 30 * time.Minute,
		QuotaUpdateInterval:     30 * time.Second,
		LogTarget:               "stderr",
		LogLevel:                "info",
		MetricsAddr:             "127.0.0.1:9090",
	}
}

// registerStoreFlags binds the flags both the daemon and the init
// subcommand need to locate and size the database, so init (run once,
// ahead of the daemon) and the daemon itself always agree on where the
// store lives.
func registerStoreFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.DBFile, "db-file", cfg.DBFile, "path to the management database file")
	fs.IntVar(&cfg.MaxBlockingThreads, "max-blocking-threads", cfg.MaxBlockingThreads, "cap on the read-only connection pool")
}

// registerDaemonFlags binds every flag from spec.md's minimum CLI
// surface that only the running daemon (not init) needs.
func registerDaemonFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.ConfigFile, "config-file", cfg.ConfigFile,
		"reserved for future config-file support; non-empty values are rejected")

	fs.IntVar(&cfg.BeeMsgPort, "beemsg-port", cfg.BeeMsgPort, "BeeMsg TCP/UDP listen port")
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "RPC (gRPC) listen port")
	fs.StringSliceVar(&cfg.Interfaces, "interfaces", cfg.Interfaces,
		"network interfaces/addresses to bind; first entry is used as the bind host, empty binds all interfaces")

	fs.BoolVar(&cfg.TLSDisable, "tls-disable", cfg.TLSDisable, "serve RPC in plaintext (development/test only)")
	fs.StringVar(&cfg.TLSCertFile, "tls-cert-file", cfg.TLSCertFile, "TLS certificate file")
	fs.StringVar(&cfg.TLSKeyFile, "tls-key-file", cfg.TLSKeyFile, "TLS private key file")

	fs.BoolVar(&cfg.AuthDisable, "auth-disable", cfg.AuthDisable, "disable the shared-secret auth check")
	fs.StringVar(&cfg.AuthFile, "auth-file", cfg.AuthFile, "file holding the shared auth secret")

	fs.IntVar(&cfg.ConnectionLimit, "connection-limit", cfg.ConnectionLimit, "max concurrent inbound BeeMsg TCP connections, 0 means unlimited")

	fs.BoolVar(&cfg.RegistrationDisable, "registration-disable", cfg.RegistrationDisable, "refuse new node/target registrations")
	fs.DurationVar(&cfg.NodeOfflineTimeout, "node-offline-timeout", cfg.NodeOfflineTimeout, "silence before an active node is marked offline")
	fs.DurationVar(&cfg.ClientAutoRemoveTimeout, "client-auto-remove-timeout", cfg.ClientAutoRemoveTimeout, "additional silence before a client_offline node is removed")

	fs.BoolVar(&cfg.QuotaEnable, "quota-enable", cfg.QuotaEnable, "run the quota pull/compare/push cycle")
	fs.BoolVar(&cfg.QuotaEnforce, "quota-enforce", cfg.QuotaEnforce, "push exceeded-quota notices to storage nodes (quota-enable must also be set)")
	fs.DurationVar(&cfg.QuotaUpdateInterval, "quota-update-interval", cfg.QuotaUpdateInterval, "quota cycle tick period")

	fs.StringVar(&cfg.LogTarget, "log-target", cfg.LogTarget, "log sink: stderr or journald")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")

	fs.StringVar(&cfg.LicensePlugin, "license-plugin", cfg.LicensePlugin, "path to an enterprise license plug-in (.so); empty runs the open-source feature set")
	fs.StringVar(&cfg.LivenessFile, "liveness-file", cfg.LivenessFile, "path to the warm liveness cache; defaults next to db-file")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address the Prometheus /metrics endpoint listens on")
}

// bindAddr builds a listen address from the configured interfaces and
// port: the first configured interface is used as the bind host; no
// interfaces configured binds every interface.
func bindAddr(interfaces []string, port int) string {
	host := ""
	if len(interfaces) > 0 {
		host = interfaces[0]
	}
	return host + ":" + strconv.Itoa(port)
}
