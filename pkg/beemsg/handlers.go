package beemsg

import (
	"context"
	"net"
	"time"

	"github.com/beegfs/mgmtd/pkg/mgmterr"
	"github.com/beegfs/mgmtd/pkg/types"
	"github.com/beegfs/mgmtd/pkg/wire"
)

// HandlerFunc handles one decoded message from a peer and optionally
// produces a reply. Every handler is atomic: it either completes and the
// caller logs INFO on state-changing success, or returns an error that the
// caller logs exactly once as ERROR with the full cause chain.
type HandlerFunc func(ctx context.Context, peer net.Addr, msg wire.Message) (wire.Message, error)

// messageFactories builds a zero-value Message for each wire type so the
// server can decode a frame's body once its type is known from the header.
// This is the closed dispatch table the legacy protocol calls for: no
// handler hierarchy, just a flat map keyed on message type.
var messageFactories = map[wire.MsgType]func() wire.Message{
	wire.MsgHeartbeat:             func() wire.Message { return &wire.Heartbeat{} },
	wire.MsgRegisterNode:          func() wire.Message { return &wire.RegisterNode{} },
	wire.MsgRegisterTarget:        func() wire.Message { return &wire.RegisterTarget{} },
	wire.MsgGetNodes:              func() wire.Message { return &wire.GetNodes{} },
	wire.MsgGetTargetMappings:     func() wire.Message { return &wire.GetTargetMappings{} },
	wire.MsgGetStoragePools:       func() wire.Message { return &wire.GetStoragePools{} },
	wire.MsgGetMirrorBuddyGroups:  func() wire.Message { return &wire.GetMirrorBuddyGroups{} },
	wire.MsgSetCapacityPool:       func() wire.Message { return &wire.SetCapacityPool{} },
	wire.MsgSetTargetConsistency:  func() wire.Message { return &wire.SetTargetConsistency{} },
	wire.MsgGetQuotaInfo:          func() wire.Message { return &wire.GetQuotaInfo{} },
	wire.MsgGetQuotaInfoResp:      func() wire.Message { return &wire.GetQuotaInfoResp{} },
	wire.MsgSetExceededQuota:      func() wire.Message { return &wire.SetExceededQuota{} },
	wire.MsgRemoveNode:            func() wire.Message { return &wire.RemoveNode{} },
	wire.MsgReportTargetCapacity:  func() wire.Message { return &wire.ReportTargetCapacity{} },
}

// buildHandlers wires the server-side handler table: only message types a
// daemon sends unsolicited or in response to a cluster-state query are
// handled here. Pushes the management service itself originates
// (SetCapacityPool, SetExceededQuota, the GetQuotaInfo pull) are sent by
// Client in client.go, not received here.
func (s *Server) buildHandlers() map[wire.MsgType]HandlerFunc {
	return map[wire.MsgType]HandlerFunc{
		wire.MsgHeartbeat:            s.handleHeartbeat,
		wire.MsgRegisterNode:         s.handleRegisterNode,
		wire.MsgRegisterTarget:       s.handleRegisterTarget,
		wire.MsgGetNodes:             s.handleGetNodes,
		wire.MsgGetTargetMappings:    s.handleGetTargetMappings,
		wire.MsgGetStoragePools:      s.handleGetStoragePools,
		wire.MsgGetMirrorBuddyGroups: s.handleGetMirrorBuddyGroups,
		wire.MsgSetTargetConsistency: s.handleSetTargetConsistency,
		wire.MsgRemoveNode:           s.handleRemoveNode,
		wire.MsgReportTargetCapacity: s.handleReportTargetCapacity,
	}
}

func (s *Server) handleHeartbeat(ctx context.Context, peer net.Addr, m wire.Message) (wire.Message, error) {
	hb := m.(*wire.Heartbeat)
	req := types.Node{
		Alias:       hb.Alias,
		Kind:        hb.Kind,
		Port:        hb.Port,
		MachineUUID: hb.MachineUUID,
		NICs:        hb.NICs,
	}
	if s.topo != nil {
		node, err := s.topo.RegisterNode(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := s.topo.Heartbeat(ctx, node.UID); err != nil {
			return nil, err
		}
		return &wire.RegisterNodeResp{NodeID: node.NodeID}, nil
	}
	node, err := s.store.RegisterNode(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.store.TouchNode(ctx, node.UID, nowUnix()); err != nil {
		return nil, err
	}
	return &wire.RegisterNodeResp{NodeID: node.NodeID}, nil
}

func (s *Server) handleRegisterNode(ctx context.Context, peer net.Addr, m wire.Message) (wire.Message, error) {
	rn := m.(*wire.RegisterNode)
	req := types.Node{
		Alias:       rn.Alias,
		Kind:        rn.Kind,
		Port:        rn.Port,
		MachineUUID: rn.MachineUUID,
		NICs:        rn.NICs,
	}
	if s.topo != nil {
		node, err := s.topo.RegisterNode(ctx, req)
		if err != nil {
			return nil, err
		}
		return &wire.RegisterNodeResp{NodeID: node.NodeID}, nil
	}
	node, err := s.store.RegisterNode(ctx, req)
	if err != nil {
		return nil, err
	}
	return &wire.RegisterNodeResp{NodeID: node.NodeID}, nil
}

func (s *Server) handleRegisterTarget(ctx context.Context, peer net.Addr, m wire.Message) (wire.Message, error) {
	rt := m.(*wire.RegisterTarget)
	var nodeUID *int64
	if rt.NodeID != 0 {
		uid, _, err := s.resolveNodeByLogicalID(ctx, rt.Kind, rt.NodeID)
		if err != nil {
			return nil, err
		}
		nodeUID = &uid
	}
	req := types.Target{
		Alias:   rt.Alias,
		Kind:    rt.Kind,
		NodeUID: nodeUID,
	}
	if s.topo != nil {
		target, err := s.topo.RegisterTarget(ctx, req)
		if err != nil {
			return nil, err
		}
		return &wire.RegisterTargetResp{TargetID: target.TargetID}, nil
	}
	target, err := s.store.RegisterTarget(ctx, req)
	if err != nil {
		return nil, err
	}
	return &wire.RegisterTargetResp{TargetID: target.TargetID}, nil
}

func (s *Server) handleGetNodes(ctx context.Context, peer net.Addr, m wire.Message) (wire.Message, error) {
	gn := m.(*wire.GetNodes)
	nodes, err := s.store.ListNodes(ctx, gn.Kind)
	if err != nil {
		return nil, err
	}
	resp := &wire.GetNodesResp{Nodes: make([]wire.NodeInfo, 0, len(nodes))}
	for _, n := range nodes {
		resp.Nodes = append(resp.Nodes, wire.NodeInfo{NodeID: n.NodeID, Alias: n.Alias, Port: n.Port, NICs: n.NICs})
	}
	return resp, nil
}

func (s *Server) handleGetTargetMappings(ctx context.Context, peer net.Addr, m wire.Message) (wire.Message, error) {
	gt := m.(*wire.GetTargetMappings)
	targets, err := s.store.ListTargets(ctx, gt.Kind)
	if err != nil {
		return nil, err
	}
	resp := &wire.GetTargetMappingsResp{Mappings: make([]wire.TargetMapping, 0, len(targets))}
	for _, t := range targets {
		var nodeID uint16
		if t.NodeUID != nil {
			if n, err := s.store.NodeByUID(ctx, *t.NodeUID); err == nil {
				nodeID = n.NodeID
			}
		}
		resp.Mappings = append(resp.Mappings, wire.TargetMapping{TargetID: t.TargetID, NodeID: nodeID})
	}
	return resp, nil
}

func (s *Server) handleGetStoragePools(ctx context.Context, peer net.Addr, m wire.Message) (wire.Message, error) {
	pools, err := s.store.ListPools(ctx)
	if err != nil {
		return nil, err
	}
	targets, err := s.store.ListTargets(ctx, types.NodeStorage)
	if err != nil {
		return nil, err
	}
	byPool := make(map[int64][]uint16)
	for _, t := range targets {
		byPool[t.PoolUID] = append(byPool[t.PoolUID], t.TargetID)
	}
	resp := &wire.GetStoragePoolsResp{Pools: make([]wire.PoolInfo, 0, len(pools))}
	for _, p := range pools {
		resp.Pools = append(resp.Pools, wire.PoolInfo{PoolID: p.PoolID, Alias: p.Alias, TargetIDs: byPool[p.UID]})
	}
	return resp, nil
}

func (s *Server) handleGetMirrorBuddyGroups(ctx context.Context, peer net.Addr, m wire.Message) (wire.Message, error) {
	gb := m.(*wire.GetMirrorBuddyGroups)
	groups, err := s.store.ListBuddyGroups(ctx, gb.Kind)
	if err != nil {
		return nil, err
	}
	resp := &wire.GetMirrorBuddyGroupsResp{Groups: make([]wire.BuddyGroupInfo, 0, len(groups))}
	for _, g := range groups {
		primary, err := s.store.TargetByUID(ctx, g.PrimaryUID)
		if err != nil {
			return nil, err
		}
		secondary, err := s.store.TargetByUID(ctx, g.SecondaryUID)
		if err != nil {
			return nil, err
		}
		resp.Groups = append(resp.Groups, wire.BuddyGroupInfo{
			GroupID:     g.GroupID,
			PrimaryID:   primary.TargetID,
			SecondaryID: secondary.TargetID,
		})
	}
	return resp, nil
}

func (s *Server) handleSetTargetConsistency(ctx context.Context, peer net.Addr, m wire.Message) (wire.Message, error) {
	sc := m.(*wire.SetTargetConsistency)
	target, err := s.resolveTargetByLogicalID(ctx, sc.TargetID)
	if err != nil {
		return nil, err
	}
	if s.buddy != nil {
		if err := s.buddy.ReportConsistency(ctx, target.UID, sc.Consistency); err != nil {
			return nil, err
		}
	} else if err := s.store.SetTargetConsistency(ctx, target.UID, sc.Consistency); err != nil {
		return nil, err
	}
	return &wire.Ack{OK: true}, nil
}

func (s *Server) handleReportTargetCapacity(ctx context.Context, peer net.Addr, m wire.Message) (wire.Message, error) {
	rc := m.(*wire.ReportTargetCapacity)
	target, err := s.resolveTargetByLogicalID(ctx, rc.TargetID)
	if err != nil {
		return nil, err
	}
	cap := types.Capacity{
		TotalSpace:  &rc.TotalSpace,
		TotalInodes: &rc.TotalInodes,
		FreeSpace:   &rc.FreeSpace,
		FreeInodes:  &rc.FreeInodes,
	}
	if err := s.store.UpdateTargetCapacity(ctx, target.UID, cap); err != nil {
		return nil, err
	}
	if s.topo != nil {
		if err := s.topo.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return &wire.Ack{OK: true}, nil
}

func (s *Server) handleRemoveNode(ctx context.Context, peer net.Addr, m wire.Message) (wire.Message, error) {
	rn := m.(*wire.RemoveNode)
	uid, _, err := s.resolveNodeByLogicalID(ctx, rn.Kind, rn.NodeID)
	if err != nil {
		return nil, err
	}
	if err := s.store.RemoveNode(ctx, uid); err != nil {
		return nil, err
	}
	if s.topo != nil {
		if err := s.topo.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return &wire.Ack{OK: true}, nil
}

func (s *Server) resolveNodeByLogicalID(ctx context.Context, kind types.NodeKind, nodeID uint16) (int64, types.Node, error) {
	nodes, err := s.store.ListNodes(ctx, kind)
	if err != nil {
		return 0, types.Node{}, err
	}
	for _, n := range nodes {
		if n.NodeID == nodeID {
			return n.UID, n, nil
		}
	}
	return 0, types.Node{}, mgmterr.NotFound("node")
}

func (s *Server) resolveTargetByLogicalID(ctx context.Context, targetID uint16) (types.Target, error) {
	for _, kind := range []types.NodeKind{types.NodeMeta, types.NodeStorage} {
		targets, err := s.store.ListTargets(ctx, kind)
		if err != nil {
			return types.Target{}, err
		}
		for _, t := range targets {
			if t.TargetID == targetID {
				return t, nil
			}
		}
	}
	return types.Target{}, mgmterr.NotFound("target")
}

func nowUnix() int64 { return timeNow().Unix() }

// timeNow is a var so it can be swapped in tests without pulling in a full
// clock abstraction for this one call site.
var timeNow = func() time.Time { return time.Now() }
