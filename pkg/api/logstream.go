package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// LogStreamServiceName is the fully qualified gRPC service name
const LogStreamServiceName = "whisker.logs.v1.LogStream"

// Full method names of the LogStream service
const (
	LogStreamStreamLogsMethod    = "/" + LogStreamServiceName + "/StreamLogs"
	LogStreamGetRecentLogsMethod = "/" + LogStreamServiceName + "/GetRecentLogs"
	LogStreamGetStatsMethod      = "/" + LogStreamServiceName + "/GetStats"
)

// LogStreamServer is the server API of the LogStream service.
//
// Messages are well-known protobuf types: records travel as
// google.protobuf.Struct in the same flattened shape the HTTP API uses.
type LogStreamServer interface {
	// StreamLogs sends a connection marker, recent history, then live
	// records and heartbeats until the client goes away
	StreamLogs(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error

	// GetRecentLogs takes {"count": n} and returns {"logs": [...], "count": n}
	GetRecentLogs(context.Context, *structpb.Struct) (*structpb.Struct, error)

	GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterLogStreamServer registers srv on s
func RegisterLogStreamServer(s grpc.ServiceRegistrar, srv LogStreamServer) {
	s.RegisterService(&LogStreamServiceDesc, srv)
}

func streamLogsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(LogStreamServer).StreamLogs(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

func getRecentLogsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LogStreamServer).GetRecentLogs(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LogStreamGetRecentLogsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LogStreamServer).GetRecentLogs(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LogStreamServer).GetStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LogStreamGetStatsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LogStreamServer).GetStats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// LogStreamServiceDesc describes the LogStream service
var LogStreamServiceDesc = grpc.ServiceDesc{
	ServiceName: LogStreamServiceName,
	HandlerType: (*LogStreamServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetRecentLogs", Handler: getRecentLogsHandler},
		{MethodName: "GetStats", Handler: getStatsHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamLogs", Handler: streamLogsHandler, ServerStreams: true},
	},
	Metadata: "whisker/logs/v1/logs.proto",
}

// LogStreamClient is the client API of the LogStream service
type LogStreamClient interface {
	StreamLogs(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
	GetRecentLogs(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetStats(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type logStreamClient struct {
	cc grpc.ClientConnInterface
}

// NewLogStreamClient creates a LogStream client on cc
func NewLogStreamClient(cc grpc.ClientConnInterface) LogStreamClient {
	return &logStreamClient{cc: cc}
}

func (c *logStreamClient) StreamLogs(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &LogStreamServiceDesc.Streams[0], LogStreamStreamLogsMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *logStreamClient) GetRecentLogs(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, LogStreamGetRecentLogsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *logStreamClient) GetStats(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, LogStreamGetStatsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
