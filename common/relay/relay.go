// Package relay defines the flymap.Relay gRPC service. Messages are well known protobuf
// types so no generated code is needed.
package relay

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName      = "flymap.Relay"
	FollowMethod     = "/flymap.Relay/Follow"
	SnapshotMethod   = "/flymap.Relay/Snapshot"
	DiagnosticMethod = "/flymap.Relay/Diagnostics"
)

// RelayServer is the server API for the relay service.
type RelayServer interface {
	// Follow streams decoded updates until the client goes away.
	Follow(*emptypb.Empty, Relay_FollowServer) error
	// Snapshot returns the current world state.
	Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// Diagnostics returns the most recent decode diagnostics.
	Diagnostics(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
}

// UnimplementedRelayServer can be embedded to have forward compatible implementations.
type UnimplementedRelayServer struct{}

func (UnimplementedRelayServer) Follow(*emptypb.Empty, Relay_FollowServer) error {
	return status.Errorf(codes.Unimplemented, "method Follow not implemented")
}

func (UnimplementedRelayServer) Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Snapshot not implemented")
}

func (UnimplementedRelayServer) Diagnostics(context.Context, *emptypb.Empty) (*structpb.ListValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Diagnostics not implemented")
}

func RegisterRelayServer(s grpc.ServiceRegistrar, srv RelayServer) {
	s.RegisterService(&Relay_ServiceDesc, srv)
}

type Relay_FollowServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type relayFollowServer struct {
	grpc.ServerStream
}

func (x *relayFollowServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func _Relay_Follow_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}

	return srv.(RelayServer).Follow(m, &relayFollowServer{stream})
}

func _Relay_Snapshot_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(RelayServer).Snapshot(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SnapshotMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RelayServer).Snapshot(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

func _Relay_Diagnostics_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(RelayServer).Diagnostics(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: DiagnosticMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RelayServer).Diagnostics(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

// Relay_ServiceDesc is the grpc.ServiceDesc for the relay service.
var Relay_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RelayServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Snapshot",
			Handler:    _Relay_Snapshot_Handler,
		},
		{
			MethodName: "Diagnostics",
			Handler:    _Relay_Diagnostics_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Follow",
			Handler:       _Relay_Follow_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "flymap/relay",
}

// RelayClient is the client API for the relay service.
type RelayClient interface {
	Follow(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (Relay_FollowClient, error)
	Snapshot(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	Diagnostics(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error)
}

type relayClient struct {
	cc grpc.ClientConnInterface
}

func NewRelayClient(cc grpc.ClientConnInterface) RelayClient {
	return &relayClient{cc}
}

func (c *relayClient) Follow(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (Relay_FollowClient, error) {
	stream, err := c.cc.NewStream(ctx, &Relay_ServiceDesc.Streams[0], FollowMethod, opts...)
	if err != nil {
		return nil, err
	}

	x := &relayFollowClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}

	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}

	return x, nil
}

type Relay_FollowClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type relayFollowClient struct {
	grpc.ClientStream
}

func (x *relayFollowClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}

	return m, nil
}

func (c *relayClient) Snapshot(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SnapshotMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *relayClient) Diagnostics(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, DiagnosticMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
