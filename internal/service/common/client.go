//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/cpx-bridge/internal/api/grpc/bridge"
	"github.com/oshokin/cpx-bridge/internal/config"
	"github.com/oshokin/cpx-bridge/internal/domain/board"
	"github.com/oshokin/cpx-bridge/internal/domain/host"
	"github.com/oshokin/cpx-bridge/internal/repository/state"
)

// Client wraps the bridge gRPC service with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the bridge.
	conn *grpc.ClientConn
	// api is what calls are invoked on; conn unless replaced in tests.
	api grpc.ClientConnInterface

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// actor, when set, is announced to the server on every call.
	actor *Actor
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor announces actor to the server in call metadata.
func WithActor(actor *Actor) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errEventRequired is returned when SendEvent gets an empty event name.
	errEventRequired = errors.New("event must be provided")
)

// Dial establishes a gRPC connection to the bridge.
// The bridge listens on loopback only, so plaintext transport is used.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial bridge: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         conn,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// SendEvent relays an input event and its value to the running program.
func (c *Client) SendEvent(ctx context.Context, event board.Event, value any) error {
	if event == "" {
		return errEventRequired
	}

	fields := map[string]any{api.FieldEvent: string(event)}
	if value != nil {
		fields[api.FieldValue] = value
	}

	req, err := structpb.NewStruct(fields)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	if _, err = c.invoke(ctx, api.MethodSendEvent, req); err != nil {
		return fmt.Errorf("send event %s: %w", event, err)
	}

	return nil
}

// GetState retrieves the active device and the last board state.
func (c *Client) GetState(ctx context.Context) (*board.Snapshot, error) {
	resp, err := c.invoke(ctx, api.MethodGetState, nil)
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}

	return state.FromStruct(resp)
}

// SetActiveDevice switches the device the bridge drives.
func (c *Client) SetActiveDevice(ctx context.Context, device string) (*board.Snapshot, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		host.ActiveDeviceField: structpb.NewStringValue(device),
	}}

	resp, err := c.invoke(ctx, api.MethodSetActiveDevice, req)
	if err != nil {
		return nil, fmt.Errorf("set active device: %w", err)
	}

	return state.FromStruct(resp)
}

// Exec runs file in the bridge's simulator. Relative paths are resolved
// against the caller's working directory.
func (c *Client) Exec(ctx context.Context, file string) error {
	file, err := AbsPath(file)
	if err != nil {
		return err
	}

	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		api.FieldFile: structpb.NewStringValue(file),
	}}

	if _, err = c.invoke(ctx, api.MethodExec, req); err != nil {
		return fmt.Errorf("%s: %w", host.ExecCommand, err)
	}

	return nil
}

// Stop terminates the running program.
func (c *Client) Stop(ctx context.Context) error {
	if _, err := c.invoke(ctx, api.MethodStop, nil); err != nil {
		return fmt.Errorf("stop: %w", err)
	}

	return nil
}

// Mount returns the path of the device drive as seen by the bridge.
func (c *Client) Mount(ctx context.Context) (string, error) {
	resp, err := c.invoke(ctx, api.MethodMount, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", host.MountCommand, err)
	}

	return resp.GetFields()[api.FieldPath].GetStringValue(), nil
}

// Deploy asks the bridge to copy file and libDir to the device drive.
// Relative paths are resolved against the caller's working directory.
func (c *Client) Deploy(ctx context.Context, file, libDir string) ([]string, error) {
	file, err := AbsPath(file)
	if err != nil {
		return nil, err
	}

	if libDir, err = AbsPath(libDir); err != nil {
		return nil, err
	}

	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		api.FieldFile: structpb.NewStringValue(file),
		api.FieldLib:  structpb.NewStringValue(libDir),
	}}

	resp, err := c.invoke(ctx, api.MethodDeploy, req)
	if err != nil {
		return nil, fmt.Errorf("deploy: %w", err)
	}

	values := resp.GetFields()[api.FieldFiles].GetListValue().GetValues()

	files := make([]string, 0, len(values))
	for _, v := range values {
		files = append(files, v.GetStringValue())
	}

	return files, nil
}

// AbsPath resolves path against the working directory. The bridge runs in its
// own process, so paths sent to it must not depend on the caller's directory.
// An empty path stays empty.
func AbsPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return path, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}

	return abs, nil
}

func (c *Client) invoke(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if c.actor != nil {
		callCtx = metadata.AppendToOutgoingContext(callCtx, api.ActorMetadataKey, c.actor.String())
	}

	return api.Invoke(callCtx, c.api, method, req)
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
