package rpc

import (
	"context"

	"github.com/beegfs/mgmtd/pkg/events"
	"github.com/beegfs/mgmtd/pkg/mgmterr"
	"github.com/beegfs/mgmtd/pkg/types"
)

// --- NodeService ---------------------------------------------------------

func (s *Server) ListNodes(ctx context.Context, req *ListNodesRequest) (*ListNodesResponse, error) {
	nodes, err := s.store.ListNodes(ctx, types.NodeKind(req.Kind))
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &ListNodesResponse{}
	for _, n := range nodes {
		resp.Nodes = append(resp.Nodes, nodeToDTO(n))
	}
	return resp, nil
}

func (s *Server) GetNode(ctx context.Context, req *GetNodeRequest) (*NodeDTO, error) {
	_, node, err := s.resolveNode(ctx, types.NodeKind(req.Kind), req.NodeID)
	if err != nil {
		return nil, toStatus(err)
	}
	dto := nodeToDTO(node)
	return &dto, nil
}

func (s *Server) RemoveNode(ctx context.Context, req *RemoveNodeRequest) (*Empty, error) {
	uid, _, err := s.resolveNode(ctx, types.NodeKind(req.Kind), req.NodeID)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.store.RemoveNode(ctx, uid); err != nil {
		return nil, toStatus(err)
	}
	s.events.Publish(&events.Event{Type: events.TypeNodeRemoved, EntityUID: uid, Message: "node removed via rpc"})
	return &Empty{}, nil
}

func (s *Server) resolveNode(ctx context.Context, kind types.NodeKind, nodeID uint16) (int64, types.Node, error) {
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

// --- TargetService -------------------------------------------------------

func (s *Server) ListTargets(ctx context.Context, req *ListTargetsRequest) (*ListTargetsResponse, error) {
	targets, err := s.store.ListTargets(ctx, types.NodeKind(req.Kind))
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &ListTargetsResponse{}
	for _, t := range targets {
		dto := TargetDTO{
			TargetID: t.TargetID, Alias: t.Alias, Kind: string(t.Kind),
			Capacity: CapacityDTO{
				TotalSpace: t.Capacity.TotalSpace, TotalInodes: t.Capacity.TotalInodes,
				FreeSpace: t.Capacity.FreeSpace, FreeInodes: t.Capacity.FreeInodes,
			},
			Consistency: string(t.Consistency),
		}
		if t.NodeUID != nil {
			if n, err := s.store.NodeByUID(ctx, *t.NodeUID); err == nil {
				dto.NodeID = n.NodeID
			}
		}
		if pool, err := s.poolByUID(ctx, t.PoolUID); err == nil {
			dto.PoolID = pool.PoolID
		}
		resp.Targets = append(resp.Targets, dto)
	}
	return resp, nil
}

func (s *Server) SetTargetConsistency(ctx context.Context, req *SetTargetConsistencyRequest) (*Empty, error) {
	target, err := s.resolveTarget(ctx, req.TargetID)
	if err != nil {
		return nil, toStatus(err)
	}
	consistency := types.Consistency(req.Consistency)
	if s.buddy != nil {
		if err := s.buddy.SetConsistency(ctx, target.UID, consistency); err != nil {
			return nil, toStatus(err)
		}
		return &Empty{}, nil
	}
	if err := s.store.SetTargetConsistency(ctx, target.UID, consistency); err != nil {
		return nil, toStatus(err)
	}
	s.events.Publish(&events.Event{Type: events.TypeTargetUpdated, EntityUID: target.UID, Message: "consistency set via rpc"})
	return &Empty{}, nil
}

func (s *Server) RemoveTarget(ctx context.Context, req *RemoveTargetRequest) (*Empty, error) {
	target, err := s.resolveTarget(ctx, req.TargetID)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.store.RemoveTarget(ctx, target.UID); err != nil {
		return nil, toStatus(err)
	}
	s.events.Publish(&events.Event{Type: events.TypeTargetUpdated, EntityUID: target.UID, Message: "target removed via rpc"})
	return &Empty{}, nil
}

func (s *Server) resolveTarget(ctx context.Context, targetID uint16) (types.Target, error) {
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

// --- PoolService -----------------------------------------------------------

func (s *Server) ListPools(ctx context.Context, _ *Empty) (*ListPoolsResponse, error) {
	pools, err := s.store.ListPools(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &ListPoolsResponse{}
	for _, p := range pools {
		resp.Pools = append(resp.Pools, PoolDTO{PoolID: p.PoolID, Alias: p.Alias})
	}
	return resp, nil
}

func (s *Server) CreatePool(ctx context.Context, req *CreatePoolRequest) (*PoolDTO, error) {
	p, err := s.store.CreatePool(ctx, req.Alias)
	if err != nil {
		return nil, toStatus(err)
	}
	return &PoolDTO{PoolID: p.PoolID, Alias: p.Alias}, nil
}

func (s *Server) RemovePool(ctx context.Context, req *RemovePoolRequest) (*Empty, error) {
	p, err := s.poolByLogicalID(ctx, req.PoolID)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.store.RemovePool(ctx, p.UID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *Server) poolByUID(ctx context.Context, uid int64) (types.Pool, error) {
	pools, err := s.store.ListPools(ctx)
	if err != nil {
		return types.Pool{}, err
	}
	for _, p := range pools {
		if p.UID == uid {
			return p, nil
		}
	}
	return types.Pool{}, mgmterr.NotFound("pool")
}

func (s *Server) poolByLogicalID(ctx context.Context, poolID uint16) (types.Pool, error) {
	pools, err := s.store.ListPools(ctx)
	if err != nil {
		return types.Pool{}, err
	}
	for _, p := range pools {
		if p.PoolID == poolID {
			return p, nil
		}
	}
	return types.Pool{}, mgmterr.NotFound("pool")
}

// --- BuddyGroupService -----------------------------------------------------

func (s *Server) ListBuddyGroups(ctx context.Context, req *ListBuddyGroupsRequest) (*ListBuddyGroupsResponse, error) {
	groups, err := s.store.ListBuddyGroups(ctx, types.NodeKind(req.Kind))
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &ListBuddyGroupsResponse{}
	for _, g := range groups {
		dto, err := s.buddyGroupToDTO(ctx, g)
		if err != nil {
			return nil, toStatus(err)
		}
		resp.Groups = append(resp.Groups, dto)
	}
	return resp, nil
}

func (s *Server) CreateBuddyGroup(ctx context.Context, req *CreateBuddyGroupRequest) (*BuddyGroupDTO, error) {
	primary, err := s.resolveTarget(ctx, req.PrimaryID)
	if err != nil {
		return nil, toStatus(err)
	}
	secondary, err := s.resolveTarget(ctx, req.SecondaryID)
	if err != nil {
		return nil, toStatus(err)
	}
	g, err := s.store.CreateBuddyGroup(ctx, types.BuddyGroup{
		Alias: req.Alias, Kind: types.NodeKind(req.Kind),
		PrimaryUID: primary.UID, SecondaryUID: secondary.UID, PoolUID: primary.PoolUID,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	dto, err := s.buddyGroupToDTO(ctx, g)
	if err != nil {
		return nil, toStatus(err)
	}
	return &dto, nil
}

func (s *Server) FailoverBuddyGroup(ctx context.Context, req *FailoverBuddyGroupRequest) (*BuddyGroupDTO, error) {
	groups, err := s.store.ListBuddyGroups(ctx, types.NodeKind(req.Kind))
	if err != nil {
		return nil, toStatus(err)
	}
	var groupUID int64
	found := false
	for _, g := range groups {
		if g.GroupID == req.GroupID {
			groupUID, found = g.UID, true
			break
		}
	}
	if !found {
		return nil, toStatus(mgmterr.NotFound("buddy group"))
	}
	var g types.BuddyGroup
	if s.buddy != nil {
		g, err = s.buddy.Failover(ctx, groupUID)
	} else {
		g, err = s.store.FailoverBuddyGroup(ctx, groupUID)
		if err == nil {
			s.events.Publish(&events.Event{Type: events.TypeBuddyFailover, EntityUID: g.UID, Message: "failover via rpc"})
		}
	}
	if err != nil {
		return nil, toStatus(err)
	}
	dto, err := s.buddyGroupToDTO(ctx, g)
	if err != nil {
		return nil, toStatus(err)
	}
	return &dto, nil
}

func (s *Server) RemoveBuddyGroup(ctx context.Context, req *RemoveBuddyGroupRequest) (*Empty, error) {
	g, err := s.groupByLogicalID(ctx, types.NodeKind(req.Kind), req.GroupID)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.store.RemoveBuddyGroup(ctx, g.UID); err != nil {
		return nil, toStatus(err)
	}
	s.events.Publish(&events.Event{Type: events.TypeBuddyResync, EntityUID: g.UID, Message: "buddy group removed via rpc"})
	return &Empty{}, nil
}

func (s *Server) groupByLogicalID(ctx context.Context, kind types.NodeKind, groupID uint16) (types.BuddyGroup, error) {
	groups, err := s.store.ListBuddyGroups(ctx, kind)
	if err != nil {
		return types.BuddyGroup{}, err
	}
	for _, g := range groups {
		if g.GroupID == groupID {
			return g, nil
		}
	}
	return types.BuddyGroup{}, mgmterr.NotFound("buddy group")
}

func (s *Server) groupByUID(ctx context.Context, uid int64) (types.BuddyGroup, error) {
	groups, err := s.store.ListBuddyGroups(ctx, "")
	if err != nil {
		return types.BuddyGroup{}, err
	}
	for _, g := range groups {
		if g.UID == uid {
			return g, nil
		}
	}
	return types.BuddyGroup{}, mgmterr.NotFound("buddy group")
}

func (s *Server) buddyGroupToDTO(ctx context.Context, g types.BuddyGroup) (BuddyGroupDTO, error) {
	dto := BuddyGroupDTO{GroupID: g.GroupID, Alias: g.Alias, Kind: string(g.Kind)}
	primary, err := s.store.TargetByUID(ctx, g.PrimaryUID)
	if err != nil {
		return BuddyGroupDTO{}, err
	}
	secondary, err := s.store.TargetByUID(ctx, g.SecondaryUID)
	if err != nil {
		return BuddyGroupDTO{}, err
	}
	dto.PrimaryID = primary.TargetID
	dto.SecondaryID = secondary.TargetID
	return dto, nil
}

// --- TopologyService (root inode) ----------------------------------------

func (s *Server) GetRootInode(ctx context.Context, _ *Empty) (*RootInodeDTO, error) {
	r, err := s.store.RootInode(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	dto := RootInodeDTO{}
	if r.TargetUID != nil {
		t, err := s.store.TargetByUID(ctx, *r.TargetUID)
		if err != nil {
			return nil, toStatus(err)
		}
		dto.TargetID = t.TargetID
	}
	if r.GroupUID != nil {
		g, err := s.groupByUID(ctx, *r.GroupUID)
		if err != nil {
			return nil, toStatus(err)
		}
		dto.GroupID = g.GroupID
	}
	return &dto, nil
}

func (s *Server) SetRootInode(ctx context.Context, req *SetRootInodeRequest) (*Empty, error) {
	var targetUID, groupUID int64
	if req.TargetID != 0 {
		t, err := s.resolveTarget(ctx, req.TargetID)
		if err != nil {
			return nil, toStatus(err)
		}
		targetUID = t.UID
	}
	if req.GroupID != 0 {
		g, err := s.groupByLogicalID(ctx, types.NodeMeta, req.GroupID)
		if err != nil {
			return nil, toStatus(err)
		}
		groupUID = g.UID
	}
	if err := s.store.SetRootInode(ctx, targetUID, groupUID); err != nil {
		return nil, toStatus(err)
	}
	s.events.Publish(&events.Event{Type: events.TypeRootInodeSet, Message: "root inode set via rpc"})
	return &Empty{}, nil
}

// --- QuotaService ------------------------------------------------------

func (s *Server) SetQuotaLimit(ctx context.Context, req *SetQuotaLimitRequest) (*Empty, error) {
	pool, err := s.poolByLogicalID(ctx, req.PoolID)
	if err != nil {
		return nil, toStatus(err)
	}
	err = s.store.SetQuotaLimit(ctx, types.QuotaLimit{
		QuotaID: req.QuotaID, IDType: types.IdentityType(req.IDType),
		Type: types.QuotaType(req.Type), PoolUID: pool.UID, Value: req.Value,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *Server) SetQuotaDefaultLimit(ctx context.Context, req *SetQuotaDefaultLimitRequest) (*Empty, error) {
	pool, err := s.poolByLogicalID(ctx, req.PoolID)
	if err != nil {
		return nil, toStatus(err)
	}
	err = s.store.SetQuotaDefaultLimit(ctx, types.QuotaDefaultLimit{
		IDType: types.IdentityType(req.IDType), Type: types.QuotaType(req.Type),
		PoolUID: pool.UID, Value: req.Value,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *Server) ListQuotaLimits(ctx context.Context, req *ListQuotaLimitsRequest) (*ListQuotaLimitsResponse, error) {
	pool, err := s.poolByLogicalID(ctx, req.PoolID)
	if err != nil {
		return nil, toStatus(err)
	}
	limits, err := s.store.ListQuotaLimits(ctx, pool.UID)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &ListQuotaLimitsResponse{}
	for _, l := range limits {
		resp.Limits = append(resp.Limits, QuotaLimitDTO{
			QuotaID: l.QuotaID, IDType: string(l.IDType), Type: string(l.Type),
			PoolID: req.PoolID, Value: l.Value,
		})
	}
	return resp, nil
}

func (s *Server) GetQuotaUsage(ctx context.Context, req *GetQuotaUsageRequest) (*GetQuotaUsageResponse, error) {
	value, err := s.store.SumQuotaUsage(ctx, req.QuotaID, types.IdentityType(req.IDType), types.QuotaType(req.Type))
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetQuotaUsageResponse{Value: value}, nil
}
