package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is returned by /api/health
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// errorResponse is the body of every 4xx/5xx JSON reply
type errorResponse struct {
	Detail string `json:"detail"`
}

// apiHealthHandler answers as long as the process serves HTTP. Component
// health lives on /health and /ready.
func (s *Server) apiHealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   s.version,
		Timestamp: s.now(),
	})
}

func (s *Server) now() time.Time {
	if s.broker != nil {
		return s.broker.Now()
	}
	return time.Now()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
