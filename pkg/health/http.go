package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPChecker probes an HTTP endpoint of a running whisker, normally /ready
type HTTPChecker struct {
	// URL is the full URL to check (e.g., "http://127.0.0.1:8000/ready")
	URL string

	// ExpectedStatusMin is the minimum acceptable HTTP status code (default: 200)
	ExpectedStatusMin int

	// ExpectedStatusMax is the maximum acceptable HTTP status code (default: 299)
	ExpectedStatusMax int

	Client *http.Client
}

// NewHTTPChecker creates a new HTTP health checker
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{
		URL:               url,
		ExpectedStatusMin: 200,
		ExpectedStatusMax: 299,
		Client:            &http.Client{Timeout: 10 * time.Second},
	}
}

// statusBody is the part of /health and /ready replies the checker reads
type statusBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Check performs the HTTP health check
func (h *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()
	fail := func(format string, args ...any) Result {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf(format, args...),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return fail("failed to create request: %v", err)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return fail("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	healthy := resp.StatusCode >= h.ExpectedStatusMin && resp.StatusCode <= h.ExpectedStatusMax

	message := fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	var body statusBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Status != "" {
		message = fmt.Sprintf("%s: %s", message, body.Status)
		if body.Message != "" {
			message = fmt.Sprintf("%s (%s)", message, body.Message)
		}
	}
	if !healthy {
		message = fmt.Sprintf("%s, expected %d-%d", message, h.ExpectedStatusMin, h.ExpectedStatusMax)
	}

	return Result{
		Healthy:   healthy,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type
func (h *HTTPChecker) Type() CheckType {
	return CheckTypeHTTP
}

// WithStatusRange sets the expected status code range
func (h *HTTPChecker) WithStatusRange(min, max int) *HTTPChecker {
	h.ExpectedStatusMin = min
	h.ExpectedStatusMax = max
	return h
}

// WithTimeout sets the HTTP client timeout
func (h *HTTPChecker) WithTimeout(timeout time.Duration) *HTTPChecker {
	h.Client.Timeout = timeout
	return h
}
