package bridge

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cpx.bridge.v1.BridgeService"

// Method names of ServiceName.
const (
	MethodSendEvent       = "SendEvent"
	MethodGetState        = "GetState"
	MethodSetActiveDevice = "SetActiveDevice"
	MethodExec            = "Exec"
	MethodStop            = "Stop"
	MethodMount           = "Mount"
	MethodDeploy          = "Deploy"
)

// Request and response field names.
const (
	FieldEvent = "event"
	FieldValue = "value"
	FieldFile  = "file"
	FieldLib   = "lib_dir"
	FieldPath  = "path"
	FieldFiles = "files"
)

// BridgeServer is the server API of ServiceName.
type BridgeServer interface {
	SendEvent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SetActiveDevice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Exec(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Stop(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Mount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Deploy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(srv BridgeServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// FullMethod returns "/<service>/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler(method string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return call(srv.(BridgeServer), ctx, in) //nolint:forcetypeassert // Guaranteed by HandlerType.
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(method),
		}

		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BridgeServer), ctx, req.(*structpb.Struct)) //nolint:forcetypeassert // Same as above.
		}

		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes ServiceName for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // Mirrors what protoc-gen-go-grpc emits.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BridgeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodSendEvent, Handler: unaryHandler(MethodSendEvent, BridgeServer.SendEvent)},
		{MethodName: MethodGetState, Handler: unaryHandler(MethodGetState, BridgeServer.GetState)},
		{MethodName: MethodSetActiveDevice, Handler: unaryHandler(MethodSetActiveDevice, BridgeServer.SetActiveDevice)},
		{MethodName: MethodExec, Handler: unaryHandler(MethodExec, BridgeServer.Exec)},
		{MethodName: MethodStop, Handler: unaryHandler(MethodStop, BridgeServer.Stop)},
		{MethodName: MethodMount, Handler: unaryHandler(MethodMount, BridgeServer.Mount)},
		{MethodName: MethodDeploy, Handler: unaryHandler(MethodDeploy, BridgeServer.Deploy)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cpx/bridge/v1/bridge.proto",
}

// RegisterBridgeServer registers srv on s.
func RegisterBridgeServer(s grpc.ServiceRegistrar, srv BridgeServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Invoke calls method on conn with a Struct request and response.
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, method string, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		req = new(structpb.Struct)
	}

	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, FullMethod(method), req, out); err != nil {
		return nil, err
	}

	return out, nil
}
