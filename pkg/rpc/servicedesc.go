package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// The handler shims below follow the exact shape protoc-gen-go-grpc emits
// for a unary method: decode into a typed request, then either call the
// service method directly or, when an interceptor chain is installed, run
// it through that chain first. Writing them by hand is what lets this
// package register real grpc.ServiceDesc values without a protoc step.

func _NodeService_ListNodes_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListNodesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).ListNodes(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpc.NodeService/ListNodes"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).ListNodes(ctx, req.(*ListNodesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _NodeService_GetNode_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetNodeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).GetNode(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpc.NodeService/GetNode"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).GetNode(ctx, req.(*GetNodeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _NodeService_RemoveNode_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RemoveNodeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).RemoveNode(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpc.NodeService/RemoveNode"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).RemoveNode(ctx, req.(*RemoveNodeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var nodeServiceDesc = grpc.ServiceDesc{
	ServiceName: "rpc.NodeService",
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListNodes", Handler: _NodeService_ListNodes_Handler},
		{MethodName: "GetNode", Handler: _NodeService_GetNode_Handler},
		{MethodName: "RemoveNode", Handler: _NodeService_RemoveNode_Handler},
	},
	Metadata: "rpc.proto",
}

func _TargetService_ListTargets_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListTargetsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).ListTargets(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpc.TargetService/ListTargets"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).ListTargets(ctx, req.(*ListTargetsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TargetService_SetTargetConsistency_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SetTargetConsistencyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).SetTargetConsistency(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpc.TargetService/SetTargetConsistency"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).SetTargetConsistency(ctx, req.(*SetTargetConsistencyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TargetService_RemoveTarget_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RemoveTargetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).RemoveTarget(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpc.TargetService/RemoveTarget"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).RemoveTarget(ctx, req.(*RemoveTargetRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var targetServiceDesc = grpc.ServiceDesc{
	ServiceName: "rpc.TargetService",
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListTargets", Handler: _TargetService_ListTargets_Handler},
		{MethodName: "SetTargetConsistency", Handler: _TargetService_SetTargetConsistency_Handler},
		{MethodName: "RemoveTarget", Handler: _TargetService_RemoveTarget_Handler},
	},
	Metadata: "rpc.proto",
}

func _PoolService_ListPools_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).ListPools(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpc.PoolService/ListPools"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).ListPools(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _PoolService_CreatePool_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreatePoolRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).CreatePool(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpc.PoolService/CreatePool"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).CreatePool(ctx, req.(*CreatePoolRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PoolService_RemovePool_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RemovePoolRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).RemovePool(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpc.PoolService/RemovePool"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).RemovePool(ctx, req.(*RemovePoolRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var poolServiceDesc = grpc.ServiceDesc{
	ServiceName: "rpc.PoolService",
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListPools", Handler: _PoolService_ListPools_Handler},
		{MethodName: "CreatePool", Handler: _PoolService_CreatePool_Handler},
		{MethodName: "RemovePool", Handler: _PoolService_RemovePool_Handler},
	},
	Metadata: "rpc.proto",
}

func _BuddyGroupService_ListBuddyGroups_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListBuddyGroupsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).ListBuddyGroups(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpc.BuddyGroupService/ListBuddyGroups"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).ListBuddyGroups(ctx, req.(*ListBuddyGroupsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _BuddyGroupService_CreateBuddyGroup_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateBuddyGroupRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).CreateBuddyGroup(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpc.BuddyGroupService/CreateBuddyGroup"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).CreateBuddyGroup(ctx, req.(*CreateBuddyGroupRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _BuddyGroupService_FailoverBuddyGroup_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FailoverBuddyGroupRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).FailoverBuddyGroup(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpc.BuddyGroupService/FailoverBuddyGroup"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).FailoverBuddyGroup(ctx, req.(*FailoverBuddyGroupRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _BuddyGroupService_RemoveBuddyGroup_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RemoveBuddyGroupRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).RemoveBuddyGroup(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpc.BuddyGroupService/RemoveBuddyGroup"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).RemoveBuddyGroup(ctx, req.(*RemoveBuddyGroupRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var buddyGroupServiceDesc = grpc.ServiceDesc{
	ServiceName: "rpc.BuddyGroupService",
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListBuddyGroups", Handler: _BuddyGroupService_ListBuddyGroups_Handler},
		{MethodName: "CreateBuddyGroup", Handler: _BuddyGroupService_CreateBuddyGroup_Handler},
		{MethodName: "FailoverBuddyGroup", Handler: _BuddyGroupService_FailoverBuddyGroup_Handler},
		{MethodName: "RemoveBuddyGroup", Handler: _BuddyGroupService_RemoveBuddyGroup_Handler},
	},
	Metadata: "rpc.proto",
}

func _QuotaService_SetQuotaLimit_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SetQuotaLimitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).SetQuotaLimit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpc.QuotaService/SetQuotaLimit"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).SetQuotaLimit(ctx, req.(*SetQuotaLimitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _QuotaService_ListQuotaLimits_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListQuotaLimitsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).ListQuotaLimits(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpc.QuotaService/ListQuotaLimits"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).ListQuotaLimits(ctx, req.(*ListQuotaLimitsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _QuotaService_GetQuotaUsage_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetQuotaUsageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).GetQuotaUsage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpc.QuotaService/GetQuotaUsage"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).GetQuotaUsage(ctx, req.(*GetQuotaUsageRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _QuotaService_SetQuotaDefaultLimit_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SetQuotaDefaultLimitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).SetQuotaDefaultLimit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpc.QuotaService/SetQuotaDefaultLimit"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).SetQuotaDefaultLimit(ctx, req.(*SetQuotaDefaultLimitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var quotaServiceDesc = grpc.ServiceDesc{
	ServiceName: "rpc.QuotaService",
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SetQuotaLimit", Handler: _QuotaService_SetQuotaLimit_Handler},
		{MethodName: "ListQuotaLimits", Handler: _QuotaService_ListQuotaLimits_Handler},
		{MethodName: "GetQuotaUsage", Handler: _QuotaService_GetQuotaUsage_Handler},
		{MethodName: "SetQuotaDefaultLimit", Handler: _QuotaService_SetQuotaDefaultLimit_Handler},
	},
	Metadata: "rpc.proto",
}

func _TopologyService_GetRootInode_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).GetRootInode(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpc.TopologyService/GetRootInode"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).GetRootInode(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _TopologyService_SetRootInode_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SetRootInodeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).SetRootInode(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpc.TopologyService/SetRootInode"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).SetRootInode(ctx, req.(*SetRootInodeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var topologyServiceDesc = grpc.ServiceDesc{
	ServiceName: "rpc.TopologyService",
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetRootInode", Handler: _TopologyService_GetRootInode_Handler},
		{MethodName: "SetRootInode", Handler: _TopologyService_SetRootInode_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "SubscribeTopology",
			Handler:       _TopologyService_SubscribeTopology_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "rpc.proto",
}
