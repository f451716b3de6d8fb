/*
Package client provides a Go client for the whisker gRPC API.

It wraps the whisker.logs.v1.LogStream service and the gRPC health service
behind plain Go types, decoding every google.protobuf.Struct back into a
types.LogRecord. The whisker CLI uses it for the logs subcommands.

# Usage

	c, err := client.NewClient("localhost:9000")
	if err != nil {
		return err
	}
	defer c.Close()

	records, err := c.RecentLogs(20)

	err = c.Tail(ctx, func(rec types.LogRecord) error {
		fmt.Println(rec.Message)
		return nil
	})

Unary calls time out after DefaultTimeout. Tail runs until its context is
cancelled or the server ends the stream; ErrStreamDropped means the server
evicted the stream because the client read too slowly.
*/
package client
