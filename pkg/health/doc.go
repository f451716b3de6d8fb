/*
Package health probes a running whisker server from the outside.

It backs the `whisker healthcheck` command, which container runtimes and
process supervisors can run to decide whether a whisker instance is ready.
Two checkers exist: HTTPChecker reads an HTTP endpoint (normally /ready,
which reports the critical components registered in pkg/metrics) and
GRPCChecker asks the standard grpc.health.v1 service about the LogStream
service.

# Retries

Probe runs a checker until it succeeds once or fails Config.Retries times in
a row, waiting Config.Interval between attempts. Each attempt is bounded by
Config.Timeout. Status keeps the consecutive success and failure counts that
drive the decision.

# Usage

	checker := health.NewHTTPChecker("http://127.0.0.1:8000/ready")
	result := health.Probe(ctx, checker, health.DefaultConfig())
	if !result.Healthy {
		return fmt.Errorf("not ready: %s", result.Message)
	}
*/
package health
