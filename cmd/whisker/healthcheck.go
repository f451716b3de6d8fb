package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/whisker/pkg/api"
	"github.com/cuemby/whisker/pkg/health"
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check whether a running whisker server is ready",
	Long: `Probe the /ready endpoint of a running server, and its gRPC health
service when --grpc-addr is given. Exits non-zero when a probe fails, which
makes it usable as a container HEALTHCHECK.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		grpcAddr, _ := cmd.Flags().GetString("grpc-addr")

		cfg := health.DefaultConfig()
		cfg.Retries, _ = cmd.Flags().GetInt("retries")
		cfg.Timeout, _ = cmd.Flags().GetDuration("timeout")

		checkers := []health.Checker{health.NewHTTPChecker(url)}
		if grpcAddr != "" {
			checkers = append(checkers, health.NewGRPCChecker(grpcAddr, api.LogStreamServiceName))
		}

		ctx := context.Background()
		for _, checker := range checkers {
			result := health.Probe(ctx, checker, cfg)
			if !result.Healthy {
				return fmt.Errorf("%s check failed: %s", checker.Type(), result.Message)
			}
			fmt.Fprintf(os.Stdout, "✓ %s: %s (%s)\n", checker.Type(), result.Message, result.Duration.Round(time.Millisecond))
		}
		return nil
	},
}

func init() {
	healthcheckCmd.Flags().String("url", "http://127.0.0.1:8000/ready", "Readiness URL of the server")
	healthcheckCmd.Flags().String("grpc-addr", "", "Also check the gRPC health service at this address")
	healthcheckCmd.Flags().Int("retries", health.DefaultConfig().Retries, "Consecutive failures before giving up")
	healthcheckCmd.Flags().Duration("timeout", health.DefaultConfig().Timeout, "Timeout of a single attempt")

	rootCmd.AddCommand(healthcheckCmd)
}
