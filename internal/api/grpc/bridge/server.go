package bridge

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/cpx-bridge/internal/domain/board"
	"github.com/oshokin/cpx-bridge/internal/domain/host"
	"github.com/oshokin/cpx-bridge/internal/repository/state"
	"github.com/oshokin/cpx-bridge/internal/service/runner"
)

// Service abstracts the business operations the transport depends on.
type Service interface {
	SendEvent(ctx context.Context, event board.Event, value any) error
	Snapshot(ctx context.Context) *board.Snapshot
	SetActiveDevice(ctx context.Context, device string) error
	Exec(ctx context.Context, file string) error
	Stop(ctx context.Context) error
	Mount(ctx context.Context) (string, error)
	Deploy(ctx context.Context, file, libDir string) ([]string, error)
}

// Server implements BridgeServer on top of a Service.
type Server struct {
	service Service
}

var _ BridgeServer = (*Server)(nil)

// NewServer wires service into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// SendEvent relays {event, value} to the running simulator.
func (s *Server) SendEvent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := stringField(req, FieldEvent)
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "event is required")
	}

	var value any
	if v, ok := req.GetFields()[FieldValue]; ok {
		value = v.AsInterface()
	}

	if err := s.service.SendEvent(ctx, board.Event(name), value); err != nil {
		return nil, toStatus(err)
	}

	return new(structpb.Struct), nil
}

// GetState returns {active_device, state, timestamp}.
func (s *Server) GetState(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	doc, err := state.ToStruct(s.service.Snapshot(ctx))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return doc, nil
}

// SetActiveDevice switches the board the bridge drives.
func (s *Server) SetActiveDevice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.service.SetActiveDevice(ctx, stringField(req, host.ActiveDeviceField)); err != nil {
		return nil, toStatus(err)
	}

	return s.GetState(ctx, req)
}

// Exec runs {file} in the simulator, replacing any running program.
func (s *Server) Exec(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.service.Exec(ctx, stringField(req, FieldFile)); err != nil {
		return nil, toStatus(err)
	}

	return new(structpb.Struct), nil
}

// Stop terminates the running program.
func (s *Server) Stop(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.service.Stop(ctx); err != nil {
		return nil, toStatus(err)
	}

	return new(structpb.Struct), nil
}

// Mount returns {path} of the detected device drive.
func (s *Server) Mount(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	path, err := s.service.Mount(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	return structpb.NewStruct(map[string]any{FieldPath: path})
}

// Deploy copies {file, lib_dir} to the device drive and returns {files}.
func (s *Server) Deploy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	written, err := s.service.Deploy(ctx, stringField(req, FieldFile), stringField(req, FieldLib))
	if err != nil {
		return nil, toStatus(err)
	}

	files := make([]any, len(written))
	for i, f := range written {
		files[i] = f
	}

	return structpb.NewStruct(map[string]any{FieldFiles: files})
}

// UnknownMethodHandler answers calls to methods the bridge does not provide.
func UnknownMethodHandler(_ any, _ grpc.ServerStream) error {
	return status.Error(codes.Unimplemented, host.NotImplementedError)
}

func stringField(req *structpb.Struct, name string) string {
	return strings.TrimSpace(req.GetFields()[name].GetStringValue())
}

// toStatus maps domain errors onto gRPC codes, keeping the user-facing text.
func toStatus(err error) error {
	switch {
	case errors.Is(err, host.ErrSendingEvent):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, host.ErrNoFile):
		return status.Error(codes.InvalidArgument, host.ErrorNoFile)
	case errors.Is(err, host.ErrDeviceNotImplemented),
		errors.Is(err, runner.ErrUnknownEvent):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, host.ErrNoDevice):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, host.ErrUnsupportedOS),
		errors.Is(err, runner.ErrNotRunning):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, host.ErrNotImplemented),
		errors.Is(err, board.ErrNotImplemented):
		return status.Error(codes.Unimplemented, host.NotImplementedError)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
