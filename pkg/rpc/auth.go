package rpc

import (
	"context"
	"encoding/hex"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/beegfs/mgmtd/pkg/wire"
)

// authHashMetadataKey carries the hex-encoded shared-secret auth hash,
// computed the same way as the BeeMsg header field, so one secret file
// authenticates both protocols.
const authHashMetadataKey = "authorization-hash"

func authHashHeader(secret []byte) string {
	var b [8]byte
	h := wire.AuthHash(secret)
	for i := range b {
		b[i] = byte(h >> (8 * i))
	}
	return hex.EncodeToString(b[:])
}

func checkAuth(ctx context.Context, secret []byte) error {
	if len(secret) == 0 {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing rpc metadata")
	}
	vals := md.Get(authHashMetadataKey)
	if len(vals) != 1 || vals[0] != authHashHeader(secret) {
		return status.Error(codes.Unauthenticated, "auth hash mismatch")
	}
	return nil
}

func (s *Server) unaryAuthInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if err := checkAuth(ctx, s.cfg.Secret); err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

func (s *Server) streamAuthInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if err := checkAuth(ss.Context(), s.cfg.Secret); err != nil {
		return err
	}
	return handler(srv, ss)
}
