package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/whisker/pkg/events"
	"github.com/cuemby/whisker/pkg/metrics"
	"github.com/cuemby/whisker/pkg/storage"
	"github.com/cuemby/whisker/pkg/types"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Broker == nil {
		opts.Broker = events.NewBroker(events.Config{Capacity: 100})
	}
	if opts.Version == "" {
		opts.Version = "test"
	}
	return NewServer(opts)
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v), w.Body.String())
}

func TestAPIHealth(t *testing.T) {
	s := newTestServer(t, Options{Version: "1.0.0"})

	w := do(t, s, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp HealthResponse
	decode(t, w, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.0.0", resp.Version)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, Options{})

	w := do(t, s, http.MethodPost, "/api/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = do(t, s, http.MethodGet, "/api/move", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestMoveHandler(t *testing.T) {
	s := newTestServer(t, Options{})

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantNext []int
		wantErr  string
	}{
		{
			name:     "moves horizontally first",
			body:     `{"labyrinth":[[0,0,0],[0,0,0],[0,0,0]],"position":[0,0],"goal":[2,2]}`,
			wantCode: http.StatusOK,
			wantNext: []int{1, 0},
		},
		{
			name:     "goes around a wall",
			body:     `{"labyrinth":[[0,1,0],[0,0,0]],"position":[0,0],"goal":[2,0]}`,
			wantCode: http.StatusOK,
			wantNext: []int{0, 1},
		},
		{
			name:     "already at goal",
			body:     `{"labyrinth":[[0,0]],"position":[1,0],"goal":[1,0]}`,
			wantCode: http.StatusOK,
			wantNext: []int{1, 0},
		},
		{
			name:     "nearest of several cheeses wins",
			body:     `{"labyrinth":[[0,0,0,0,0]],"position":[2,0],"goal":[4,0],"available_cheeses":[[4,0],[0,0]]}`,
			wantCode: http.StatusOK,
			wantNext: []int{3, 0},
		},
		{
			name:     "position with one coordinate",
			body:     `{"labyrinth":[[0,0]],"position":[0],"goal":[1,0]}`,
			wantCode: http.StatusBadRequest,
			wantErr:  "exactly 2 coordinates",
		},
		{
			name:     "negative goal",
			body:     `{"labyrinth":[[0,0]],"position":[0,0],"goal":[-1,0]}`,
			wantCode: http.StatusBadRequest,
			wantErr:  "non-negative",
		},
		{
			name:     "empty labyrinth",
			body:     `{"labyrinth":[],"position":[0,0],"goal":[0,0]}`,
			wantCode: http.StatusBadRequest,
			wantErr:  "empty labyrinth",
		},
		{
			name:     "ragged labyrinth",
			body:     `{"labyrinth":[[0,0],[0]],"position":[0,0],"goal":[1,0]}`,
			wantCode: http.StatusBadRequest,
			wantErr:  "row 1",
		},
		{
			name:     "goal on a wall",
			body:     `{"labyrinth":[[0,1]],"position":[0,0],"goal":[1,0]}`,
			wantCode: http.StatusBadRequest,
			wantErr:  "is a wall",
		},
		{
			name:     "position outside",
			body:     `{"labyrinth":[[0,0]],"position":[5,0],"goal":[1,0]}`,
			wantCode: http.StatusBadRequest,
			wantErr:  "outside the labyrinth",
		},
		{
			name:     "malformed body",
			body:     `{"labyrinth":`,
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/move", tt.body)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())

			if tt.wantCode == http.StatusOK {
				var resp MoveResponse
				decode(t, w, &resp)
				assert.Equal(t, tt.wantNext, resp.NextPosition)
				return
			}

			var resp errorResponse
			decode(t, w, &resp)
			assert.Contains(t, resp.Detail, tt.wantErr)
		})
	}
}

func TestMoveHandlerRejectsOversizedLabyrinth(t *testing.T) {
	s := newTestServer(t, Options{})

	row := make([]int, maxLabyrinthSize+1)
	body, err := json.Marshal(MoveRequest{
		Labyrinth: [][]int{row},
		Position:  []int{0, 0},
		Goal:      []int{1, 0},
	})
	require.NoError(t, err)

	w := do(t, s, http.MethodPost, "/api/move", string(body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMoveHandlerJournalsWithMouseID(t *testing.T) {
	journal, err := storage.NewBoltJournal(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = journal.Close() }()

	s := newTestServer(t, Options{Journal: journal})

	w := do(t, s, http.MethodPost, "/api/move", `{"labyrinth":[[0,0,0]],"position":[0,0],"goal":[2,0],"mouse_id":"m1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	moves, err := journal.List("m1", 0)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, types.Point{X: 0, Y: 0}, moves[0].From)
	assert.Equal(t, types.Point{X: 1, Y: 0}, moves[0].To)
	assert.Equal(t, types.East, moves[0].Direction)
}

// brokenJournal fails every Append while broken is set
type brokenJournal struct {
	storage.Journal
	broken bool
}

func (j *brokenJournal) Append(entry storage.MoveEntry) (storage.MoveEntry, error) {
	if j.broken {
		return storage.MoveEntry{}, fmt.Errorf("disk full")
	}
	return j.Journal.Append(entry)
}

func TestMoveHandlerJournalFailureDegradesHealth(t *testing.T) {
	bolt, err := storage.NewBoltJournal(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = bolt.Close() }()

	journal := &brokenJournal{Journal: bolt, broken: true}
	s := newTestServer(t, Options{Journal: journal})
	metrics.RegisterComponent(metrics.ComponentJournal, true, "open")
	t.Cleanup(func() { metrics.RegisterComponent(metrics.ComponentJournal, true, "open") })

	body := `{"labyrinth":[[0,0,0]],"position":[0,0],"goal":[2,0],"mouse_id":"m1"}`
	w := do(t, s, http.MethodPost, "/api/move", body)
	require.Equal(t, http.StatusOK, w.Code)

	comp, ok := metrics.Component(metrics.ComponentJournal)
	require.True(t, ok)
	assert.False(t, comp.Healthy)
	assert.Equal(t, "disk full", comp.Message)

	journal.broken = false
	w = do(t, s, http.MethodPost, "/api/move", body)
	require.Equal(t, http.StatusOK, w.Code)

	comp, _ = metrics.Component(metrics.ComponentJournal)
	assert.True(t, comp.Healthy)
}

func mouseBody(t *testing.T, v map[string]any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestMouseMoveHandler(t *testing.T) {
	s := newTestServer(t, Options{})

	grid := [][]string{
		{"path", "wall", "cheese"},
		{"path", "path", "path"},
	}

	tests := []struct {
		name          string
		body          string
		wantMove      string
		wantMoves     []string
		wantReasoning string
	}{
		{
			name: "moves towards cheese",
			body: mouseBody(t, map[string]any{
				"mouseId":  "mouse_1",
				"position": map[string]int{"x": 0, "y": 0},
				"environment": map[string]any{
					"grid":            grid,
					"cheesePositions": []map[string]int{{"x": 2, "y": 0}},
				},
			}),
			wantMove:      "south",
			wantReasoning: "Moving south towards cheese at (2, 0) - distance: 2",
		},
		{
			name: "already on cheese",
			body: mouseBody(t, map[string]any{
				"mouseId":  "mouse_1",
				"position": map[string]int{"x": 2, "y": 0},
				"environment": map[string]any{
					"grid":            grid,
					"cheesePositions": []map[string]int{{"x": 2, "y": 0}},
				},
			}),
			wantMove:      "north",
			wantReasoning: "Mouse is already on cheese at (2, 0) - staying in place",
		},
		{
			name: "boxed in",
			body: mouseBody(t, map[string]any{
				"mouseId":  "mouse_1",
				"position": map[string]int{"x": 0, "y": 0},
				"environment": map[string]any{
					"grid":            [][]string{{"path", "wall", "path"}, {"wall", "wall", "path"}},
					"cheesePositions": []map[string]int{{"x": 2, "y": 1}},
				},
			}),
			wantMove:      "north",
			wantReasoning: "Staying in place - no valid moves available",
		},
		{
			name: "no cheese",
			body: mouseBody(t, map[string]any{
				"mouseId":        "mouse_2",
				"position":       map[string]int{"x": 0, "y": 0},
				"environment":    map[string]any{"grid": grid},
				"availableMoves": []string{"east"},
			}),
			wantMove:      "east",
			wantReasoning: "No cheese found, random movement",
		},
		{
			name: "invalid position falls back to random",
			body: mouseBody(t, map[string]any{
				"mouseId":  "mouse_3",
				"position": map[string]int{"x": 1, "y": 0},
				"environment": map[string]any{
					"grid":            grid,
					"cheesePositions": []map[string]int{{"x": 2, "y": 0}},
				},
				"availableMoves": []string{"west", "south"},
			}),
			wantMoves:     []string{"west", "south"},
			wantReasoning: "Error occurred, using random movement:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/mouse/move", tt.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var resp MouseMoveResponse
			decode(t, w, &resp)
			if tt.wantMove != "" {
				assert.Equal(t, tt.wantMove, resp.Move)
			} else {
				assert.Contains(t, tt.wantMoves, resp.Move)
			}
			assert.True(t, strings.HasPrefix(resp.Reasoning, tt.wantReasoning), resp.Reasoning)
		})
	}
}

func TestMouseMoveHandlerUnparseableBody(t *testing.T) {
	s := newTestServer(t, Options{})

	w := do(t, s, http.MethodPost, "/api/mouse/move", `{not json`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp MouseMoveResponse
	decode(t, w, &resp)
	assert.Equal(t, "unknown", resp.MouseID)
	assert.Contains(t, allMoves, resp.Move)
	assert.Contains(t, resp.Reasoning, "Error occurred")
}

func TestMouseHistory(t *testing.T) {
	t.Run("disabled without journal", func(t *testing.T) {
		s := newTestServer(t, Options{})
		w := do(t, s, http.MethodGet, "/api/mouse/mouse_1/history", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	journal, err := storage.NewBoltJournal(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = journal.Close() }()
	s := newTestServer(t, Options{Journal: journal})

	body := mouseBody(t, map[string]any{
		"mouseId":  "mouse_1",
		"position": map[string]int{"x": 0, "y": 0},
		"environment": map[string]any{
			"grid":            [][]string{{"path", "path", "path", "cheese"}},
			"cheesePositions": []map[string]int{{"x": 3, "y": 0}},
		},
	})
	for range 3 {
		w := do(t, s, http.MethodPost, "/api/mouse/move", body)
		require.Equal(t, http.StatusOK, w.Code)
	}

	t.Run("lists recorded moves", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/api/mouse/mouse_1/history?limit=2", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp MouseHistoryResponse
		decode(t, w, &resp)
		assert.Equal(t, "mouse_1", resp.MouseID)
		assert.Equal(t, 2, resp.Count)
		require.Len(t, resp.Moves, 2)
		assert.Equal(t, types.East, resp.Moves[1].Direction)
		assert.Contains(t, resp.Moves[1].Reasoning, "Moving east")
	})

	t.Run("unknown mouse", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/api/mouse/ghost/history", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad limit", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/api/mouse/mouse_1/history?limit=abc", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLogsHistory(t *testing.T) {
	broker := events.NewBroker(events.Config{Capacity: 100})
	s := newTestServer(t, Options{Broker: broker, HistoryDefault: 5})

	for i := range 10 {
		broker.Emit(types.LevelInfo, fmt.Sprintf("msg-%d", i), nil)
	}

	tests := []struct {
		name      string
		target    string
		wantCount int
		wantFirst string
	}{
		{name: "default count", target: "/api/logs/history", wantCount: 5, wantFirst: "msg-5"},
		{name: "explicit count", target: "/api/logs/history?count=3", wantCount: 3, wantFirst: "msg-7"},
		{name: "more than held", target: "/api/logs/history?count=50", wantCount: 10, wantFirst: "msg-0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusOK, w.Code)

			var resp LogHistoryResponse
			decode(t, w, &resp)
			assert.True(t, resp.Success)
			assert.Equal(t, tt.wantCount, resp.Count)
			require.Len(t, resp.Logs, tt.wantCount)
			assert.Equal(t, tt.wantFirst, resp.Logs[0].Message)
			assert.Equal(t, types.KindCustom, resp.Logs[0].Kind)
		})
	}

	w := do(t, s, http.MethodGet, "/api/logs/history?count=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogsStats(t *testing.T) {
	broker := events.NewBroker(events.Config{Capacity: 10})
	s := newTestServer(t, Options{Broker: broker})

	w := do(t, s, http.MethodGet, "/api/logs/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var empty map[string]any
	decode(t, w, &empty)
	assert.EqualValues(t, 0, empty["total_logs"])
	assert.EqualValues(t, 10, empty["max_logs"])
	assert.Nil(t, empty["oldest_log"])
	assert.Nil(t, empty["newest_log"])

	broker.Emit(types.LevelInfo, "one", nil)
	broker.Emit(types.LevelInfo, "two", nil)
	_ = broker.Attach()

	w = do(t, s, http.MethodGet, "/api/logs/stats", "")
	var resp LogStatsResponse
	decode(t, w, &resp)
	assert.Equal(t, 2, resp.TotalLogs)
	assert.Equal(t, 10, resp.MaxLogs)
	assert.Equal(t, 1, resp.ActiveSubscribers)
	require.NotNil(t, resp.OldestLog)
	require.NotNil(t, resp.NewestLog)
	assert.False(t, resp.NewestLog.Before(*resp.OldestLog))
}

func TestLogsIngest(t *testing.T) {
	broker := events.NewBroker(events.Config{Capacity: 10})
	s := newTestServer(t, Options{Broker: broker})

	w := do(t, s, http.MethodPost, "/api/logs", `{"message":"mouse found cheese","level":"warning","mouse_id":"mouse_2","turn":7,"type":"spoofed"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	history := broker.History(0)
	require.Len(t, history, 1)
	rec := history[0]
	assert.Equal(t, types.KindCustom, rec.Kind)
	assert.Equal(t, types.LevelWarning, rec.Level)
	assert.Equal(t, "mouse found cheese", rec.Message)
	assert.Equal(t, "mouse_2", rec.Fields["mouse_id"])
	assert.Equal(t, float64(7), rec.Fields["turn"])
	assert.NotContains(t, rec.Fields, "type")

	tests := []struct {
		name string
		body string
	}{
		{name: "missing message", body: `{"level":"info"}`},
		{name: "not an object", body: `["message"]`},
		{name: "not json", body: `message`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/logs", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Len(t, broker.History(0), 1)
}

func TestLogsIngestRateLimited(t *testing.T) {
	s := newTestServer(t, Options{RateLimit: RateLimit{RequestsPerSecond: 0.001, Burst: 2}})

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/logs", bytes.NewBufferString(`{"message":"hi"}`))
		req.RemoteAddr = "10.0.0.1:5000"
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusAccepted, http.StatusAccepted, http.StatusTooManyRequests}, codes)

	// Another client has its own bucket
	req := httptest.NewRequest(http.MethodPost, "/api/logs", bytes.NewBufferString(`{"message":"hi"}`))
	req.RemoteAddr = "10.0.0.2:5000"
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestCORS(t *testing.T) {
	t.Run("preflight", func(t *testing.T) {
		s := newTestServer(t, Options{})
		req := httptest.NewRequest(http.MethodOptions, "/api/move", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	})

	t.Run("configured origin", func(t *testing.T) {
		s := newTestServer(t, Options{AllowedOrigin: "http://localhost:3000"})
		w := do(t, s, http.MethodGet, "/api/health", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})
}

func TestJSONResponsesAreCompressed(t *testing.T) {
	broker := events.NewBroker(events.Config{Capacity: 100})
	s := newTestServer(t, Options{Broker: broker})
	for i := range 50 {
		broker.Emit(types.LevelInfo, fmt.Sprintf("a reasonably long log message number %d", i), nil)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/logs/history?count=50", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t, Options{})

	for _, path := range []string{"/metrics", "/live"} {
		w := do(t, s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "remote addr", remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "forwarded for first hop", headers: map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, remote: "10.0.0.1:80", want: "203.0.113.5"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.7"}, remote: "10.0.0.1:80", want: "198.51.100.7"},
		{name: "remote without port", remote: "192.0.2.9", want: "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	l := NewRateLimiter(RateLimit{RequestsPerSecond: 1, Burst: 1})
	for i := range maxLimiters + 1 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = fmt.Sprintf("10.%d.%d.%d:1", (i>>16)&0xff, (i>>8)&0xff, i&0xff)
		l.Allow(req)
	}
	require.Equal(t, maxLimiters+1, l.size())

	l.Cleanup()
	assert.Equal(t, 0, l.size())
}
