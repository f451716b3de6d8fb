package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cuemby/whisker/pkg/events"
	"github.com/cuemby/whisker/pkg/log"
	"github.com/cuemby/whisker/pkg/metrics"
	"github.com/cuemby/whisker/pkg/types"
)

// GRPCServer serves the LogStream service and the standard health service
type GRPCServer struct {
	broker         *events.Broker
	historyDefault int

	server *grpc.Server
	health *health.Server
}

// NewGRPCServer creates a gRPC server for the log feed
func NewGRPCServer(broker *events.Broker, historyDefault int) *GRPCServer {
	if historyDefault <= 0 {
		historyDefault = 100
	}

	s := &GRPCServer{
		broker:         broker,
		historyDefault: historyDefault,
		server: grpc.NewServer(
			grpc.ChainUnaryInterceptor(UnaryLoggingInterceptor()),
			grpc.ChainStreamInterceptor(StreamLoggingInterceptor()),
		),
		health: health.NewServer(),
	}

	RegisterLogStreamServer(s.server, s)
	healthpb.RegisterHealthServer(s.server, s.health)
	s.health.SetServingStatus(LogStreamServiceName, healthpb.HealthCheckResponse_SERVING)

	return s
}

// Start listens on addr and serves until Stop
func (s *GRPCServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener
func (s *GRPCServer) Serve(lis net.Listener) error {
	logger := log.WithComponent("grpc")
	logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC API listening")
	metrics.RegisterComponent(metrics.ComponentGRPC, true, "listening")

	if err := s.server.Serve(lis); err != nil {
		metrics.UpdateComponent(metrics.ComponentGRPC, false, err.Error())
		return err
	}
	return nil
}

// Stop drains the server. Open log streams keep GracefulStop waiting, so
// once ctx is done the remaining connections are closed.
func (s *GRPCServer) Stop(ctx context.Context) {
	s.health.Shutdown()
	metrics.UpdateComponent(metrics.ComponentGRPC, false, "shutting down")

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
		<-done
	}
}

// StreamLogs implements LogStreamServer
func (s *GRPCServer) StreamLogs(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	metrics.StreamSessions.WithLabelValues(transportGRPC).Inc()
	session := s.broker.Attach()

	logger := log.WithSessionID(session.ID())
	logger.Info().Str("transport", transportGRPC).Msg("Log stream client connected")

	reason := session.Run(stream.Context(), func(rec types.LogRecord) error {
		msg, err := RecordToStruct(rec)
		if err != nil {
			return err
		}
		return stream.Send(msg)
	})

	logger.Info().Str("transport", transportGRPC).Str("reason", string(reason)).Msg("Log stream client disconnected")

	if reason == events.ClosedEvicted {
		return status.Error(codes.ResourceExhausted, "stream dropped: consumer too slow")
	}
	return nil
}

// GetRecentLogs implements LogStreamServer
func (s *GRPCServer) GetRecentLogs(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	count := s.historyDefault
	if v, ok := req.GetFields()["count"]; ok {
		n := v.GetNumberValue()
		if n < 0 {
			return nil, status.Error(codes.InvalidArgument, "count must be non-negative")
		}
		if n > 0 {
			count = int(n)
		}
	}

	logs := s.broker.History(count)
	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(logs))}
	for _, rec := range logs {
		msg, err := RecordToStruct(rec)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		list.Values = append(list.Values, structpb.NewStructValue(msg))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"logs":  structpb.NewListValue(list),
		"count": structpb.NewNumberValue(float64(len(logs))),
	}}, nil
}

// GetStats implements LogStreamServer
func (s *GRPCServer) GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	st := s.broker.Stats()

	fields := map[string]*structpb.Value{
		"total_logs":         structpb.NewNumberValue(float64(st.Count)),
		"max_logs":           structpb.NewNumberValue(float64(st.Capacity)),
		"active_subscribers": structpb.NewNumberValue(float64(st.ActiveSubscribers)),
		"oldest_log":         structpb.NewNullValue(),
		"newest_log":         structpb.NewNullValue(),
	}
	if st.Count > 0 {
		fields["oldest_log"] = structpb.NewStringValue(st.Oldest.Format(time.RFC3339Nano))
		fields["newest_log"] = structpb.NewStringValue(st.Newest.Format(time.RFC3339Nano))
	}
	return &structpb.Struct{Fields: fields}, nil
}

// RecordToStruct converts a record to its flattened Struct form
func RecordToStruct(rec types.LogRecord) (*structpb.Struct, error) {
	if msg, err := structpb.NewStruct(rec.Map()); err == nil {
		return msg, nil
	}

	// Payload values structpb cannot take directly go through JSON
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	msg := new(structpb.Struct)
	if err := protojson.Unmarshal(data, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// StructToRecord converts a Struct received from the LogStream service back
// into a record
func StructToRecord(msg *structpb.Struct) (types.LogRecord, error) {
	var rec types.LogRecord
	data, err := protojson.Marshal(msg)
	if err != nil {
		return rec, err
	}
	err = json.Unmarshal(data, &rec)
	return rec, err
}
