package rpc

import (
	"google.golang.org/grpc"

	"github.com/beegfs/mgmtd/pkg/events"
)

// subscribeTopology streams every topology-change event published after
// the call starts until the client disconnects or the server shuts down.
// There is no replay of history: a client that needs the current state
// lists it first (ListNodes/ListTargets/...) and then subscribes for
// changes, same as the broker's own doc comment describes.
func (s *Server) subscribeTopology(req *SubscribeTopologyRequest, stream grpc.ServerStream) error {
	sub := s.events.Subscribe()
	defer s.events.Unsubscribe(sub)

	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return nil
			}
			if err := stream.SendMsg(toTopologyEvent(ev)); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return stream.Context().Err()
		}
	}
}

func toTopologyEvent(ev *events.Event) *TopologyEvent {
	return &TopologyEvent{
		Type:      string(ev.Type),
		Timestamp: ev.Timestamp.Unix(),
		EntityUID: ev.EntityUID,
		Message:   ev.Message,
		Metadata:  ev.Metadata,
	}
}

func _TopologyService_SubscribeTopology_Handler(srv any, stream grpc.ServerStream) error {
	req := new(SubscribeTopologyRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(*Server).subscribeTopology(req, stream)
}
