package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cuemby/whisker/pkg/api"
	"github.com/cuemby/whisker/pkg/types"
)

// DefaultTimeout bounds every unary call
const DefaultTimeout = 10 * time.Second

// ErrStreamDropped is returned by Tail when the server dropped the stream
// because the client fell behind
var ErrStreamDropped = errors.New("log stream dropped by server")

// Stats mirrors the feed statistics of the server
type Stats struct {
	TotalLogs         int
	MaxLogs           int
	ActiveSubscribers int
	OldestLog         *time.Time
	NewestLog         *time.Time
}

// Client wraps the whisker gRPC API for CLI usage
type Client struct {
	conn   *grpc.ClientConn
	logs   api.LogStreamClient
	health healthpb.HealthClient
}

// NewClient connects to the gRPC API at addr. Without options the
// connection is plaintext.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	return &Client{
		conn:   conn,
		logs:   api.NewLogStreamClient(conn),
		health: healthpb.NewHealthClient(conn),
	}, nil
}

// Close closes the client connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// RecentLogs returns up to count recent records, oldest first. count <= 0
// uses the server default.
func (c *Client) RecentLogs(count int) ([]types.LogRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	req := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	if count > 0 {
		req.Fields["count"] = structpb.NewNumberValue(float64(count))
	}

	resp, err := c.logs.GetRecentLogs(ctx, req)
	if err != nil {
		return nil, err
	}

	values := resp.GetFields()["logs"].GetListValue().GetValues()
	records := make([]types.LogRecord, 0, len(values))
	for _, v := range values {
		rec, err := api.StructToRecord(v.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Stats returns the feed statistics
func (c *Client) Stats() (Stats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	resp, err := c.logs.GetStats(ctx, &emptypb.Empty{})
	if err != nil {
		return Stats{}, err
	}

	fields := resp.GetFields()
	stats := Stats{
		TotalLogs:         int(fields["total_logs"].GetNumberValue()),
		MaxLogs:           int(fields["max_logs"].GetNumberValue()),
		ActiveSubscribers: int(fields["active_subscribers"].GetNumberValue()),
	}
	if stats.OldestLog, err = parseTime(fields["oldest_log"]); err != nil {
		return Stats{}, err
	}
	if stats.NewestLog, err = parseTime(fields["newest_log"]); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func parseTime(v *structpb.Value) (*time.Time, error) {
	s := v.GetStringValue()
	if s == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return &ts, nil
}

// Tail streams the feed into fn until ctx is cancelled, the server ends
// the stream or fn returns an error. A cancelled ctx returns nil.
func (c *Client) Tail(ctx context.Context, fn func(types.LogRecord) error) error {
	stream, err := c.logs.StreamLogs(ctx, &emptypb.Empty{})
	if err != nil {
		return err
	}

	for {
		msg, err := stream.Recv()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return nil
			case status.Code(err) == codes.Canceled && ctx.Err() != nil:
				return nil
			case status.Code(err) == codes.ResourceExhausted:
				return ErrStreamDropped
			}
			return err
		}

		rec, err := api.StructToRecord(msg)
		if err != nil {
			return fmt.Errorf("failed to decode record: %w", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// Health returns the serving status of the log stream service
func (c *Client) Health() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: api.LogStreamServiceName})
	if err != nil {
		return "", err
	}
	return resp.GetStatus().String(), nil
}
