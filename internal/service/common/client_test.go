//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/cpx-bridge/internal/api/grpc/bridge"
	"github.com/oshokin/cpx-bridge/internal/domain/board"
	"github.com/oshokin/cpx-bridge/internal/domain/host"
)

// fakeConn records the last call and answers with a canned response.
type fakeConn struct {
	method   string
	request  *structpb.Struct
	metadata metadata.MD
	response *structpb.Struct
	err      error
}

// Invoke implements grpc.ClientConnInterface.
func (f *fakeConn) Invoke(ctx context.Context, method string, args, reply any, _ ...grpc.CallOption) error {
	f.method = method
	f.request = args.(*structpb.Struct) //nolint:forcetypeassert // Client always sends Struct.
	f.metadata, _ = metadata.FromOutgoingContext(ctx)

	if f.err != nil {
		return f.err
	}

	if f.response != nil {
		proto.Merge(reply.(*structpb.Struct), f.response) //nolint:forcetypeassert // Same as above.
	}

	return nil
}

// NewStream implements grpc.ClientConnInterface.
func (f *fakeConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, status.Error(codes.Unimplemented, host.NotImplementedError)
}

// TestDial_ValidatesAddress verifies that Dial rejects empty addresses.
func TestDial_ValidatesAddress(t *testing.T) {
	t.Parallel()

	c, err := Dial(context.Background(), "")
	require.Error(t, err)
	require.Nil(t, c)
}

// TestClient_callContext checks timeout vs cancel-only behavior of callContext.
func TestClient_callContext(t *testing.T) {
	t.Parallel()

	c := &Client{
		callTimeout: 0,
	}

	ctx, cancel := c.callContext(context.Background())
	cancel()

	require.NotNil(t, ctx)

	c.callTimeout = 10 * time.Millisecond

	ctx, cancel = c.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)
}

// TestClient_SendEvent encodes the event and value and announces the actor.
func TestClient_SendEvent(t *testing.T) {
	t.Parallel()

	conn := new(fakeConn)
	c := &Client{api: conn, actor: &Actor{Hostname: "desk", Username: "ada"}}

	require.Error(t, c.SendEvent(context.Background(), "", nil))
	require.NoError(t, c.SendEvent(context.Background(), board.EventLight, 120))

	require.Equal(t, api.FullMethod(api.MethodSendEvent), conn.method)
	require.Equal(t, "light", conn.request.GetFields()[api.FieldEvent].GetStringValue())
	require.InDelta(t, 120, conn.request.GetFields()[api.FieldValue].GetNumberValue(), 0)
	require.Equal(t, []string{"ada@desk"}, conn.metadata.Get(api.ActorMetadataKey))
}

// TestClient_GetState decodes the state document.
func TestClient_GetState(t *testing.T) {
	t.Parallel()

	resp, err := structpb.NewStruct(map[string]any{
		host.ActiveDeviceField: host.CPX,
		host.StateField: map[string]any{
			"red_led":    true,
			"brightness": 0.5,
		},
	})
	require.NoError(t, err)

	c := &Client{api: &fakeConn{response: resp}}

	snapshot, err := c.GetState(context.Background())
	require.NoError(t, err)
	require.Equal(t, host.CPX, snapshot.Device)
	require.True(t, snapshot.State.RedLED)
	require.InDelta(t, 0.5, snapshot.State.Brightness, 0)
}

// TestClient_ExecWrapsStatus keeps the gRPC status reachable.
func TestClient_ExecWrapsStatus(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{err: status.Error(codes.InvalidArgument, host.ErrorNoFile)}
	c := &Client{api: conn}

	err := c.Exec(context.Background(), "")
	require.Error(t, err)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	require.Equal(t, api.FullMethod(api.MethodExec), conn.method)
}

// TestClient_MountAndDeploy reads path and files from the responses.
func TestClient_MountAndDeploy(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{response: &structpb.Struct{Fields: map[string]*structpb.Value{
		api.FieldPath: structpb.NewStringValue("/media/CIRCUITPY"),
	}}}
	c := &Client{api: conn}

	path, err := c.Mount(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/media/CIRCUITPY", path)

	files, err := structpb.NewList([]any{"/media/CIRCUITPY/code.py"})
	require.NoError(t, err)

	conn.response = &structpb.Struct{Fields: map[string]*structpb.Value{
		api.FieldFiles: structpb.NewListValue(files),
	}}

	written, err := c.Deploy(context.Background(), "main.py", "")
	require.NoError(t, err)
	require.Equal(t, []string{"/media/CIRCUITPY/code.py"}, written)
	require.Empty(t, conn.request.GetFields()[api.FieldLib].GetStringValue())

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(wd, "main.py"), conn.request.GetFields()[api.FieldFile].GetStringValue())

	_, err = c.Deploy(context.Background(), "main.py", "libs")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(wd, "libs"), conn.request.GetFields()[api.FieldLib].GetStringValue())
}

// TestClient_ExecResolvesRelativePath sends an absolute path and keeps an empty one empty.
func TestClient_ExecResolvesRelativePath(t *testing.T) {
	t.Parallel()

	conn := new(fakeConn)
	c := &Client{api: conn}

	require.NoError(t, c.Exec(context.Background(), "prog.py"))

	file := conn.request.GetFields()[api.FieldFile].GetStringValue()
	require.True(t, filepath.IsAbs(file))
	require.Equal(t, "prog.py", filepath.Base(file))

	require.NoError(t, c.Exec(context.Background(), ""))
	require.Empty(t, conn.request.GetFields()[api.FieldFile].GetStringValue())
}

// TestAbsPath resolves relative paths and leaves empty ones alone.
func TestAbsPath(t *testing.T) {
	t.Parallel()

	got, err := AbsPath("")
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = AbsPath(filepath.Join("examples", "blink.py"))
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(got))

	absolute := filepath.Join(t.TempDir(), "code.py")

	got, err = AbsPath(absolute)
	require.NoError(t, err)
	require.Equal(t, absolute, got)
}
