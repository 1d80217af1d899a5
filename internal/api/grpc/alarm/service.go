package alarm

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "alarmclock.v1.AlarmService"

// Full method names.
const (
	ListAlarmsFullMethodName  = "/" + ServiceName + "/ListAlarms"
	CreateAlarmFullMethodName = "/" + ServiceName + "/CreateAlarm"
	CommitAlarmFullMethodName = "/" + ServiceName + "/CommitAlarm"
	DeleteAlarmFullMethodName = "/" + ServiceName + "/DeleteAlarm"
	ToggleAlarmFullMethodName = "/" + ServiceName + "/ToggleAlarm"
	GetStatusFullMethodName   = "/" + ServiceName + "/GetStatus"
)

// AlarmServiceServer is the server API of the alarm service.
type AlarmServiceServer interface {
	ListAlarms(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CreateAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CommitAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DeleteAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ToggleAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// serverMethod adapts one AlarmServiceServer method.
type serverMethod func(srv AlarmServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// unaryHandler builds the grpc.MethodHandler of a method, honoring interceptors.
func unaryHandler(fullMethod string, call serverMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return call(srv.(AlarmServiceServer), ctx, in) //nolint:forcetypeassert // Guaranteed by HandlerType.
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AlarmServiceServer), ctx, req.(*structpb.Struct)) //nolint:forcetypeassert // Decoded above.
		}

		return interceptor(ctx, in, info, handler)
	}
}

// AlarmServiceDesc describes the alarm service for grpc.Server registration.
//
//nolint:gochecknoglobals // Service descriptors are package-level by convention.
var AlarmServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AlarmServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListAlarms",
			Handler:    unaryHandler(ListAlarmsFullMethodName, AlarmServiceServer.ListAlarms),
		},
		{
			MethodName: "CreateAlarm",
			Handler:    unaryHandler(CreateAlarmFullMethodName, AlarmServiceServer.CreateAlarm),
		},
		{
			MethodName: "CommitAlarm",
			Handler:    unaryHandler(CommitAlarmFullMethodName, AlarmServiceServer.CommitAlarm),
		},
		{
			MethodName: "DeleteAlarm",
			Handler:    unaryHandler(DeleteAlarmFullMethodName, AlarmServiceServer.DeleteAlarm),
		},
		{
			MethodName: "ToggleAlarm",
			Handler:    unaryHandler(ToggleAlarmFullMethodName, AlarmServiceServer.ToggleAlarm),
		},
		{
			MethodName: "GetStatus",
			Handler:    unaryHandler(GetStatusFullMethodName, AlarmServiceServer.GetStatus),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "alarmclock/v1/alarm.proto",
}

// RegisterAlarmServiceServer registers srv on the gRPC server.
func RegisterAlarmServiceServer(s grpc.ServiceRegistrar, srv AlarmServiceServer) {
	s.RegisterService(&AlarmServiceDesc, srv)
}

// AlarmServiceClient is the client API of the alarm service.
type AlarmServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAlarmServiceClient creates a client over the connection.
func NewAlarmServiceClient(cc grpc.ClientConnInterface) *AlarmServiceClient {
	return &AlarmServiceClient{cc: cc}
}

// ListAlarms returns the alarm set.
func (c *AlarmServiceClient) ListAlarms(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListAlarmsFullMethodName, in, opts...)
}

// CreateAlarm returns a fresh, uncommitted alarm.
func (c *AlarmServiceClient) CreateAlarm(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CreateAlarmFullMethodName, in, opts...)
}

// CommitAlarm inserts or replaces an alarm.
func (c *AlarmServiceClient) CommitAlarm(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CommitAlarmFullMethodName, in, opts...)
}

// DeleteAlarm removes an alarm.
func (c *AlarmServiceClient) DeleteAlarm(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, DeleteAlarmFullMethodName, in, opts...)
}

// ToggleAlarm flips an alarm's IsSet flag.
func (c *AlarmServiceClient) ToggleAlarm(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ToggleAlarmFullMethodName, in, opts...)
}

// GetStatus returns the engine status.
func (c *AlarmServiceClient) GetStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GetStatusFullMethodName, in, opts...)
}

// invoke performs one unary call.
func (c *AlarmServiceClient) invoke(
	ctx context.Context,
	method string,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	if in == nil {
		in = new(structpb.Struct)
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
