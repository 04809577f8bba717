// Package beemsg implements the UDP/TCP server for the legacy BeeMsg wire
// protocol: daemons announce themselves and query cluster state over this
// protocol, while the management service pushes capacity/consistency/quota
// updates back out over the same wire using the client in this package.
package beemsg

import (
	"bytes"
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/beegfs/mgmtd/pkg/buddy"
	"github.com/beegfs/mgmtd/pkg/log"
	"github.com/beegfs/mgmtd/pkg/metrics"
	"github.com/beegfs/mgmtd/pkg/mgmterr"
	"github.com/beegfs/mgmtd/pkg/store"
	"github.com/beegfs/mgmtd/pkg/topology"
	"github.com/beegfs/mgmtd/pkg/wire"
)

// Config controls how the server binds and authenticates.
type Config struct {
	Addr            string
	Secret          []byte // nil or empty disables auth
	PoolCap         int    // idle outgoing connections kept per peer, default 12; dialing is not capped
	IdleTimeout     time.Duration
	ConnectionLimit int // max concurrent inbound TCP connections, 0 means unlimited
}

// Server listens for BeeMsg datagrams and connections and dispatches them
// to the handler table.
type Server struct {
	cfg      Config
	store    *store.Store
	topo     *topology.Manager
	buddy    *buddy.Coordinator
	udpConn  *net.UDPConn
	tcpLis   net.Listener
	handlers map[wire.MsgType]HandlerFunc
	outbound *connPool
	inbound  chan struct{} // nil when ConnectionLimit is 0 (unlimited)
	log      zerolog.Logger
	done     chan struct{}
}

// NewServer builds a server bound to a store, topology manager, and buddy
// coordinator but does not yet listen; call Start. topo and coord may be
// nil in tests that only exercise the read-only query handlers, since
// those fall back to reading the store directly.
func NewServer(cfg Config, st *store.Store, topo *topology.Manager, coord *buddy.Coordinator) *Server {
	if cfg.PoolCap == 0 {
		cfg.PoolCap = 12
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 30 * time.Second
	}
	s := &Server{
		cfg:      cfg,
		store:    st,
		topo:     topo,
		buddy:    coord,
		log:      log.WithComponent("beemsg"),
		done:     make(chan struct{}),
		outbound: newConnPool(cfg.PoolCap, cfg.IdleTimeout),
	}
	if cfg.ConnectionLimit > 0 {
		s.inbound = make(chan struct{}, cfg.ConnectionLimit)
	}
	s.handlers = s.buildHandlers()
	return s
}

// Start binds the UDP socket and TCP listener and begins serving.
func (s *Server) Start() error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.cfg.Addr)
	if err != nil {
		return mgmterr.Wrap(mgmterr.KindTransportBind, "resolve udp address", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return mgmterr.Wrap(mgmterr.KindTransportBind, "listen udp", err)
	}
	s.udpConn = conn

	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		conn.Close()
		return mgmterr.Wrap(mgmterr.KindTransportBind, "listen tcp", err)
	}
	s.tcpLis = lis

	go s.serveUDP()
	go s.serveTCP()
	s.log.Info().Str("addr", s.cfg.Addr).Msg("beemsg server listening")
	return nil
}

// Stop closes both listeners and every pooled outgoing connection.
func (s *Server) Stop() {
	close(s.done)
	if s.udpConn != nil {
		s.udpConn.Close()
	}
	if s.tcpLis != nil {
		s.tcpLis.Close()
	}
	s.outbound.closeAll()
}

func (s *Server) serveUDP() {
	buf := make([]byte, wire.MaxMessageSize)
	for {
		n, addr, err := s.udpConn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.log.Error().Err(err).Msg("udp read failed")
				continue
			}
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		go s.handleFrame(context.Background(), addr, frame, func(reply []byte) {
			_, _ = s.udpConn.WriteToUDP(reply, addr)
		})
	}
}

func (s *Server) serveTCP() {
	for {
		conn, err := s.tcpLis.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.log.Error().Err(err).Msg("tcp accept failed")
				continue
			}
		}
		if s.inbound != nil {
			select {
			case s.inbound <- struct{}{}:
			default:
				s.log.Warn().Str("peer", conn.RemoteAddr().String()).Msg("connection limit reached, rejecting")
				conn.Close()
				continue
			}
		}
		go s.serveTCPConn(conn)
	}
}

// serveTCPConn multiplexes requests sequentially on one connection: a
// long-lived connection may carry many messages, but only one is decoded
// and handled at a time, matching how the legacy protocol uses TCP for
// occasional larger transfers rather than concurrent pipelining.
func (s *Server) serveTCPConn(conn net.Conn) {
	defer conn.Close()
	if s.inbound != nil {
		defer func() { <-s.inbound }()
	}
	for {
		h, err := wire.DecodeHeader(conn)
		if err != nil {
			return
		}
		body := make([]byte, int(h.Length)-wire.HeaderSize)
		if _, err := readFull(conn, body); err != nil {
			return
		}
		var frame bytes.Buffer
		_ = h.Encode(&frame)
		frame.Write(body)

		s.handleFrame(context.Background(), conn.RemoteAddr(), frame.Bytes(), func(reply []byte) {
			_, _ = conn.Write(reply)
		})
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// handleFrame decodes one complete frame, authenticates it, dispatches to
// the matching handler, and (if the handler produces a reply) hands the
// encoded reply to send.
func (s *Server) handleFrame(ctx context.Context, peer net.Addr, frame []byte, send func([]byte)) {
	r := bytes.NewReader(frame)
	h, err := wire.DecodeHeader(r)
	if err != nil {
		metrics.MalformedMessagesTotal.WithLabelValues("tcp").Inc()
		s.log.Error().Err(err).Msg("malformed beemsg frame")
		return
	}
	if len(s.cfg.Secret) > 0 && h.AuthHash != wire.AuthHash(s.cfg.Secret) {
		metrics.AuthFailuresTotal.WithLabelValues("beemsg").Inc()
		s.log.Error().Msg("beemsg auth mismatch")
		return
	}

	factory, ok := messageFactories[h.Type]
	if !ok {
		metrics.MalformedMessagesTotal.WithLabelValues("tcp").Inc()
		s.log.Error().Uint16("type", uint16(h.Type)).Msg("unhandled beemsg type")
		return
	}
	msg := factory()
	if err := msg.DecodeBody(r); err != nil {
		metrics.MalformedMessagesTotal.WithLabelValues("tcp").Inc()
		s.log.Error().Err(err).Msg("malformed beemsg body")
		return
	}

	handler, ok := s.handlers[h.Type]
	if !ok {
		return // no server-side handler for this type (it is only ever pushed, not received)
	}

	timer := metrics.NewTimer()
	reply, err := handler(ctx, peer, msg)
	timer.ObserveDurationVec(metrics.BeeMsgRequestDuration, msgTypeName(h.Type))
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.BeeMsgRequestsTotal.WithLabelValues(msgTypeName(h.Type), result).Inc()
	if err != nil {
		s.log.Error().Err(err).Str("type", msgTypeName(h.Type)).Str("peer", peer.String()).Msg("beemsg handler failed")
		return
	}
	switch h.Type {
	case wire.MsgGetNodes, wire.MsgGetTargetMappings, wire.MsgGetStoragePools, wire.MsgGetMirrorBuddyGroups:
		// read-only queries succeed silently
	default:
		s.log.Info().Str("type", msgTypeName(h.Type)).Str("peer", peer.String()).Msg("beemsg request handled")
	}
	if reply == nil {
		return
	}

	var out bytes.Buffer
	var secret []byte
	if len(s.cfg.Secret) > 0 {
		secret = s.cfg.Secret
	}
	if err := wire.Encode(&out, reply, secret); err != nil {
		s.log.Error().Err(err).Msg("failed to encode beemsg reply")
		return
	}
	send(out.Bytes())
}

func msgTypeName(t wire.MsgType) string {
	switch t {
	case wire.MsgHeartbeat:
		return "heartbeat"
	case wire.MsgRegisterNode:
		return "register_node"
	case wire.MsgRegisterTarget:
		return "register_target"
	case wire.MsgGetNodes:
		return "get_nodes"
	case wire.MsgGetTargetMappings:
		return "get_target_mappings"
	case wire.MsgGetStoragePools:
		return "get_storage_pools"
	case wire.MsgGetMirrorBuddyGroups:
		return "get_mirror_buddy_groups"
	case wire.MsgSetCapacityPool:
		return "set_capacity_pool"
	case wire.MsgSetTargetConsistency:
		return "set_target_consistency"
	case wire.MsgGetQuotaInfo:
		return "get_quota_info"
	case wire.MsgSetExceededQuota:
		return "set_exceeded_quota"
	case wire.MsgRemoveNode:
		return "remove_node"
	default:
		return "unknown"
	}
}
