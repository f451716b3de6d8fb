package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cuemby/whisker/pkg/log"
	"github.com/cuemby/whisker/pkg/metrics"
	"github.com/cuemby/whisker/pkg/types"
)

const (
	transportSSE       = "sse"
	transportWebSocket = "websocket"
	transportGRPC      = "grpc"

	wsWriteTimeout = 10 * time.Second
)

// sseHandler streams the log feed as server-sent events, one
// "data: <json>\n\n" frame per record
func (s *Server) sseHandler(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	// Streams outlive any server write timeout
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	metrics.StreamSessions.WithLabelValues(transportSSE).Inc()
	session := s.broker.Attach()

	logger := log.WithSessionID(session.ID())
	logger.Info().Str("transport", transportSSE).Str("remote", getClientIP(r)).Msg("Log stream client connected")

	reason := session.Run(r.Context(), func(rec types.LogRecord) error {
		return writeSSE(w, rc, rec)
	})

	logger.Info().Str("transport", transportSSE).Str("reason", string(reason)).Msg("Log stream client disconnected")
}

func writeSSE(w http.ResponseWriter, rc *http.ResponseController, rec types.LogRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	frame := make([]byte, 0, len(data)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, data...)
	frame = append(frame, '\n', '\n')

	if _, err := w.Write(frame); err != nil {
		return err
	}
	return rc.Flush()
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if s.cors == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == s.cors
		},
	}
}

// wsHandler streams the log feed over a WebSocket, one JSON text frame per
// record. Client messages are read and discarded; the stream ends when the
// client goes away.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	metrics.StreamSessions.WithLabelValues(transportWebSocket).Inc()
	session := s.broker.Attach()

	logger := log.WithSessionID(session.ID())
	logger.Info().Str("transport", transportWebSocket).Str("remote", getClientIP(r)).Msg("Log stream client connected")

	reason := session.Run(ctx, func(rec types.LogRecord) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteMessage(websocket.TextMessage, data)
	})

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(reason)),
		time.Now().Add(time.Second))

	logger.Info().Str("transport", transportWebSocket).Str("reason", string(reason)).Msg("Log stream client disconnected")
}
