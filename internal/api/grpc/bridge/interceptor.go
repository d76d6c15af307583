package bridge

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/oshokin/cpx-bridge/internal/logger"
)

// ActorMetadataKey carries "user@host" of the calling client.
const ActorMetadataKey = "x-cpx-actor"

// ActorFromContext returns the caller announced in incoming metadata.
func ActorFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}

	values := md.Get(ActorMetadataKey)
	if len(values) == 0 {
		return ""
	}

	return values[0]
}

// LoggingInterceptor logs every unary call with its caller, duration and code.
func LoggingInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	ctx = logger.WithKV(ctx, "method", info.FullMethod)
	if actor := ActorFromContext(ctx); actor != "" {
		ctx = logger.WithKV(ctx, "actor", actor)
	}

	started := time.Now()
	resp, err := handler(ctx, req)

	logger.DebugKV(ctx, "Call handled",
		"code", status.Code(err).String(),
		"duration", time.Since(started))

	return resp, err
}
