package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/beegfs/mgmtd/pkg/beemsg"
	"github.com/beegfs/mgmtd/pkg/buddy"
	"github.com/beegfs/mgmtd/pkg/capacity"
	"github.com/beegfs/mgmtd/pkg/clock"
	"github.com/beegfs/mgmtd/pkg/events"
	"github.com/beegfs/mgmtd/pkg/license"
	"github.com/beegfs/mgmtd/pkg/log"
	"github.com/beegfs/mgmtd/pkg/metrics"
	"github.com/beegfs/mgmtd/pkg/mgmterr"
	"github.com/beegfs/mgmtd/pkg/quota"
	"github.com/beegfs/mgmtd/pkg/rpc"
	"github.com/beegfs/mgmtd/pkg/store"
	"github.com/beegfs/mgmtd/pkg/supervisor"
	"github.com/beegfs/mgmtd/pkg/topology"
)

// runDaemon wires every subsystem together and runs the daemon until ctx
// is canceled (by an OS signal, handled in main) or a subsystem fails.
func runDaemon(ctx context.Context, cfg *Config) error {
	if cfg.ConfigFile != "" {
		return exitf(1, mgmterr.New(mgmterr.KindConfig, "config-file parsing is not implemented; configure mgmtd with flags"))
	}

	if _, err := os.Stat(cfg.DBFile); err != nil {
		if os.IsNotExist(err) {
			return exitf(1, mgmterr.New(mgmterr.KindConfig,
				fmt.Sprintf("database %q does not exist; run `mgmtd init --db-file %s` first", cfg.DBFile, cfg.DBFile)))
		}
		return exitf(2, mgmterr.Wrap(mgmterr.KindIO, "stat db-file", err))
	}

	daemonLog := log.WithComponent("mgmtd")

	metrics.SetVersion(version)

	st, err := store.Open(ctx, store.Config{Path: cfg.DBFile, MaxReaders: cfg.MaxBlockingThreads})
	if err != nil {
		metrics.RegisterComponent("store", false, err.Error())
		return exitf(2, err)
	}
	metrics.RegisterComponent("store", true, "")
	defer st.Close()

	var secret []byte
	if !cfg.AuthDisable {
		if cfg.AuthFile == "" {
			return exitf(1, mgmterr.New(mgmterr.KindConfig, "--auth-file is required unless --auth-disable is set"))
		}
		secret, err = os.ReadFile(cfg.AuthFile)
		if err != nil {
			return exitf(1, mgmterr.Wrap(mgmterr.KindConfig, "read auth-file", err))
		}
	}

	var tlsCert *tls.Certificate
	if !cfg.TLSDisable {
		if cfg.TLSCertFile == "" || cfg.TLSKeyFile == "" {
			return exitf(1, mgmterr.New(mgmterr.KindConfig, "--tls-cert-file and --tls-key-file are required unless --tls-disable is set"))
		}
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return exitf(1, mgmterr.Wrap(mgmterr.KindConfig, "load TLS certificate", err))
		}
		tlsCert = &cert
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	livenessPath := cfg.LivenessFile
	if livenessPath == "" {
		livenessPath = filepath.Join(filepath.Dir(cfg.DBFile), "mgmtd-liveness.bolt")
	}
	liveness, err := topology.OpenLivenessStore(livenessPath)
	if err != nil {
		daemonLog.Warn().Err(err).Str("path", livenessPath).
			Msg("liveness cache unavailable, last-contact times are kept only in the store")
		liveness = nil
	} else {
		defer liveness.Close()
	}

	topo := topology.NewManager(topology.Config{
		RegistrationEnabled: !cfg.RegistrationDisable,
		OfflineTimeout:      cfg.NodeOfflineTimeout,
		AutoRemoveTimeout:   cfg.ClientAutoRemoveTimeout,
	}, st, broker, liveness, clock.Real{})
	if err := topo.Refresh(ctx); err != nil {
		return exitf(4, err)
	}

	coord := buddy.NewCoordinator(st, broker)

	beemsgClient := beemsg.NewClient(beemsg.Config{Secret: secret})
	defer beemsgClient.Close()

	beemsgSrv := beemsg.NewServer(beemsg.Config{
		Addr:            bindAddr(cfg.Interfaces, cfg.BeeMsgPort),
		Secret:          secret,
		ConnectionLimit: cfg.ConnectionLimit,
	}, st, topo, coord)

	rpcSrv := rpc.NewServer(rpc.Config{
		Addr:    bindAddr(cfg.Interfaces, cfg.GRPCPort),
		Secret:  secret,
		TLSCert: tlsCert,
	}, st, broker, coord)

	lic := license.NewGate(cfg.LicensePlugin)
	daemonLog.Info().Bool("enterprise_allowed", lic.Allowed("enterprise")).Msg("license gate initialized")

	collector := metrics.NewCollector(st)
	metricsSrv := newMetricsServer(cfg.MetricsAddr)

	sup := supervisor.New(clock.Real{}, 30*time.Second)
	sup.Add(supervisor.ServerTask("beemsg", withHealth("beemsg", beemsgSrv.Start), beemsgSrv.Stop))
	sup.Add(supervisor.ServerTask("rpc", withHealth("rpc", rpcSrv.Start), rpcSrv.Stop))
	sup.Add(supervisor.ServerTask("metrics", metricsSrv.Start, metricsSrv.Stop))
	sup.Add(supervisor.ServerTask("metrics-collector", func() error { collector.Start(); return nil }, collector.Stop))
	sup.Add(supervisor.Task{Name: "topology", Run: topo.Run})

	capEngine := capacity.NewEngine(capacity.Config{
		Limits: defaultCapacityLimits,
	}, topo.Cache(), beemsgClient, clock.Real{})
	sup.Add(supervisor.Task{Name: "capacity", Run: capEngine.Run})

	if cfg.QuotaEnable {
		quotaEngine := quota.NewEngine(quota.Config{
			TickInterval: cfg.QuotaUpdateInterval,
			Enforce:      cfg.QuotaEnforce,
		}, st, topo.Cache(), beemsgClient, clock.Real{})
		sup.Add(supervisor.Task{Name: "quota", Run: quotaEngine.Run})
	}

	daemonLog.Info().
		Str("beemsg_addr", bindAddr(cfg.Interfaces, cfg.BeeMsgPort)).
		Str("rpc_addr", bindAddr(cfg.Interfaces, cfg.GRPCPort)).
		Str("db_file", cfg.DBFile).
		Msg("mgmtd starting")

	if err := sup.Run(ctx); err != nil {
		return exitf(4, err)
	}

	daemonLog.Info().Msg("mgmtd shutdown complete")
	return nil
}

// withHealth wraps a ServerTask start func so the health checker reflects
// whether the named subsystem actually came up, instead of only ever seeing
// the components GetReadiness was told about at construction time.
func withHealth(name string, start func() error) func() error {
	return func() error {
		if err := start(); err != nil {
			metrics.RegisterComponent(name, false, err.Error())
			return err
		}
		metrics.RegisterComponent(name, true, "")
		return nil
	}
}

// defaultCapacityLimits is the single, pool-wide set of low/emergency
// thresholds applied uniformly to every storage pool and the virtual
// meta pool, since the minimum CLI surface carries no --capacity-*
// flags to configure limits per pool.
var defaultCapacityLimits = capacity.Limits{
	SpaceLow:        10 << 30, // 10 GiB
	SpaceEmergency:  3 << 30,  // 3 GiB
	InodesLow:       1_000_000,
	InodesEmergency: 100_000,
}

// metricsServer exposes the Prometheus /metrics endpoint, adapted to the
// start-then-background/explicit-Stop shape supervisor.ServerTask
// expects, the same way beemsg.Server and rpc.Server already do.
type metricsServer struct {
	addr string
	lis  net.Listener
}

func newMetricsServer(addr string) *metricsServer {
	return &metricsServer{addr: addr}
}

func (m *metricsServer) Start() error {
	lis, err := net.Listen("tcp", m.addr)
	if err != nil {
		return mgmterr.Wrap(mgmterr.KindTransportBind, "listen metrics", err)
	}
	m.lis = lis
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	go func() {
		if err := http.Serve(lis, mux); err != nil {
			log.WithComponent("metrics").Debug().Err(err).Msg("metrics listener closed")
		}
	}()
	return nil
}

func (m *metricsServer) Stop() {
	if m.lis != nil {
		m.lis.Close()
	}
}
