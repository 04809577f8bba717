package rpc

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/beegfs/mgmtd/pkg/mgmterr"
)

// toStatus translates the store/domain error taxonomy into the nearest
// gRPC status code, so a CLI or dashboard client can branch on
// status.Code(err) without reaching into this process's internals.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case mgmterr.Is(err, mgmterr.KindStoreNotFound):
		return status.Error(codes.NotFound, err.Error())
	case mgmterr.Is(err, mgmterr.KindStoreAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case mgmterr.Is(err, mgmterr.KindStoreConflict), mgmterr.Is(err, mgmterr.KindStoreConstraint):
		return status.Error(codes.FailedPrecondition, err.Error())
	case mgmterr.Is(err, mgmterr.KindRegistryExhausted):
		return status.Error(codes.ResourceExhausted, err.Error())
	case mgmterr.Is(err, mgmterr.KindBusy):
		return status.Error(codes.Unavailable, err.Error())
	case mgmterr.Is(err, mgmterr.KindShutdown):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
