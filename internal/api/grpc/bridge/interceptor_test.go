package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// TestActorFromContext reads the caller from incoming metadata.
func TestActorFromContext(t *testing.T) {
	t.Parallel()

	require.Empty(t, ActorFromContext(context.Background()))

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(ActorMetadataKey, "ada@desk"))
	require.Equal(t, "ada@desk", ActorFromContext(ctx))
}

// TestLoggingInterceptor passes the handler result through unchanged.
func TestLoggingInterceptor(t *testing.T) {
	t.Parallel()

	info := &grpc.UnaryServerInfo{FullMethod: FullMethod(MethodStop)}
	failure := status.Error(codes.FailedPrecondition, "not running")

	resp, err := LoggingInterceptor(context.Background(), "req", info, func(context.Context, any) (any, error) {
		return "resp", nil
	})
	require.NoError(t, err)
	require.Equal(t, "resp", resp)

	_, err = LoggingInterceptor(context.Background(), "req", info, func(context.Context, any) (any, error) {
		return nil, failure
	})
	require.Equal(t, failure, err)
}
