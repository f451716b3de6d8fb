package api

import (
	"io"
	"net/http"
	"time"

	"github.com/valyala/fastjson"

	"github.com/cuemby/whisker/pkg/types"
)

// LogHistoryResponse is the reply of GET /api/logs/history
type LogHistoryResponse struct {
	Success   bool              `json:"success"`
	Logs      []types.LogRecord `json:"logs"`
	Count     int               `json:"count"`
	Timestamp time.Time         `json:"timestamp"`
}

// LogStatsResponse is the reply of GET /api/logs/stats
type LogStatsResponse struct {
	TotalLogs         int        `json:"total_logs"`
	MaxLogs           int        `json:"max_logs"`
	ActiveSubscribers int        `json:"active_subscribers"`
	OldestLog         *time.Time `json:"oldest_log"`
	NewestLog         *time.Time `json:"newest_log"`
}

// LogIngestResponse is the reply of POST /api/logs
type LogIngestResponse struct {
	Success bool `json:"success"`
}

func (s *Server) logsHistoryHandler(w http.ResponseWriter, r *http.Request) {
	count, err := queryInt(r, "count", s.historyDefault)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if count == 0 {
		count = s.historyDefault
	}

	logs := s.broker.History(count)
	writeJSON(w, http.StatusOK, LogHistoryResponse{
		Success:   true,
		Logs:      logs,
		Count:     len(logs),
		Timestamp: s.now(),
	})
}

func (s *Server) logsStatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.statsResponse())
}

func (s *Server) statsResponse() LogStatsResponse {
	st := s.broker.Stats()
	resp := LogStatsResponse{
		TotalLogs:         st.Count,
		MaxLogs:           st.Capacity,
		ActiveSubscribers: st.ActiveSubscribers,
	}
	if st.Count > 0 {
		oldest, newest := st.Oldest, st.Newest
		resp.OldestLog = &oldest
		resp.NewestLog = &newest
	}
	return resp
}

// logsIngestHandler turns a JSON object into a custom record. "message" is
// required, "level" defaults to INFO and every other key becomes payload.
func (s *Server) logsIngestHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	p := s.parsers.Get()
	defer s.parsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	obj, err := v.Object()
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "body must be a JSON object")
		return
	}

	message := string(v.GetStringBytes("message"))
	if message == "" {
		writeDetail(w, http.StatusBadRequest, "message is required")
		return
	}
	level := types.ParseLevel(string(v.GetStringBytes("level")), types.LevelInfo)

	var fields map[string]any
	obj.Visit(func(key []byte, item *fastjson.Value) {
		k := string(key)
		if types.IsReservedKey(k) {
			return
		}
		if fields == nil {
			fields = make(map[string]any)
		}
		fields[k] = types.ValueOf(item)
	})

	s.broker.Emit(level, message, fields)
	writeJSON(w, http.StatusAccepted, LogIngestResponse{Success: true})
}
