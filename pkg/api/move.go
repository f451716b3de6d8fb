package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"

	"github.com/valyala/fastjson"

	"github.com/cuemby/whisker/pkg/log"
	"github.com/cuemby/whisker/pkg/metrics"
	"github.com/cuemby/whisker/pkg/movement"
	"github.com/cuemby/whisker/pkg/storage"
	"github.com/cuemby/whisker/pkg/types"
)

const (
	// maxLabyrinthSize bounds both labyrinth dimensions
	maxLabyrinthSize = 100

	maxBodyBytes = 1 << 20

	defaultHistoryLimit = 50
)

// Move decision outcomes
const (
	outcomeMoved   = "moved"
	outcomeStayed  = "stayed"
	outcomeRandom  = "random"
	outcomeInvalid = "invalid"
)

var allMoves = []string{"north", "south", "east", "west"}

// MoveRequest is the body of POST /api/move
type MoveRequest struct {
	Labyrinth        [][]int `json:"labyrinth"`
	Position         []int   `json:"position"`
	Goal             []int   `json:"goal"`
	AvailableCheeses [][]int `json:"available_cheeses,omitempty"`
	MouseID          string  `json:"mouse_id,omitempty"`
}

// MoveResponse is the reply of POST /api/move
type MoveResponse struct {
	NextPosition []int `json:"next_position"`
}

// MouseMoveResponse is the reply of POST /api/mouse/move
type MouseMoveResponse struct {
	MouseID   string `json:"mouseId"`
	Move      string `json:"move"`
	Reasoning string `json:"reasoning"`
}

// MouseHistoryResponse is the reply of GET /api/mouse/{id}/history
type MouseHistoryResponse struct {
	MouseID string              `json:"mouse_id"`
	Moves   []storage.MoveEntry `json:"moves"`
	Count   int                 `json:"count"`
}

func toPoint(name string, coords []int) (types.Point, error) {
	if len(coords) != 2 {
		return types.Point{}, fmt.Errorf("%w: %s must have exactly 2 coordinates", movement.ErrInvalidInput, name)
	}
	if coords[0] < 0 || coords[1] < 0 {
		return types.Point{}, fmt.Errorf("%w: %s coordinates must be non-negative", movement.ErrInvalidInput, name)
	}
	return types.Point{X: coords[0], Y: coords[1]}, nil
}

func checkSize(grid types.Grid) error {
	if grid.Height() > maxLabyrinthSize || grid.Width() > maxLabyrinthSize {
		return fmt.Errorf("%w: labyrinth exceeds %dx%d", movement.ErrInvalidInput, maxLabyrinthSize, maxLabyrinthSize)
	}
	return nil
}

func (req MoveRequest) points() (current, goal types.Point, cheeses []types.Point, err error) {
	if current, err = toPoint("position", req.Position); err != nil {
		return
	}
	if goal, err = toPoint("goal", req.Goal); err != nil {
		return
	}
	for i, c := range req.AvailableCheeses {
		p, perr := toPoint("available_cheeses["+strconv.Itoa(i)+"]", c)
		if perr != nil {
			err = perr
			return
		}
		cheeses = append(cheeses, p)
	}
	return
}

// moveHandler computes the next position in the labyrinth for a single step
func (s *Server) moveHandler(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	current, goal, cheeses, err := req.points()
	if err == nil {
		err = checkSize(req.Labyrinth)
	}
	if err != nil {
		metrics.MoveDecisions.WithLabelValues(outcomeInvalid).Inc()
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	// With several cheeses the nearest one wins over the requested goal
	if len(cheeses) > 1 {
		goal, _ = movement.NearestGoal(current, cheeses)
	}

	timer := metrics.NewTimer()
	next, err := movement.Decide(req.Labyrinth, current, goal)
	timer.ObserveDuration(metrics.MoveDecisionLatency)
	if err != nil {
		metrics.MoveDecisions.WithLabelValues(outcomeInvalid).Inc()
		if errors.Is(err, movement.ErrInvalidInput) {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		writeDetail(w, http.StatusInternalServerError, "internal server error: "+err.Error())
		return
	}

	outcome := outcomeMoved
	if next == current {
		outcome = outcomeStayed
	}
	metrics.MoveDecisions.WithLabelValues(outcome).Inc()

	if req.MouseID != "" {
		s.record(req.MouseID, current, next, &goal, "")
	}

	writeJSON(w, http.StatusOK, MoveResponse{NextPosition: []int{next.X, next.Y}})
}

// mouseRequest is the frontend move request after parsing
type mouseRequest struct {
	mouseID   string
	position  types.Point
	grid      types.Grid
	cheeses   []types.Point
	available []string
}

func parseMouseRequest(v *fastjson.Value) mouseRequest {
	req := mouseRequest{
		mouseID: "unknown",
		position: types.Point{
			X: v.GetInt("position", "x"),
			Y: v.GetInt("position", "y"),
		},
		available: allMoves,
	}

	if id := v.GetStringBytes("mouseId"); len(id) > 0 {
		req.mouseID = string(id)
	}

	// Only "wall" blocks; path, cheese and start are all passable
	for _, row := range v.GetArray("environment", "grid") {
		cells := row.GetArray()
		gridRow := make([]int, len(cells))
		for x, cell := range cells {
			if string(cell.GetStringBytes()) == "wall" {
				gridRow[x] = types.CellWall
			}
		}
		req.grid = append(req.grid, gridRow)
	}

	for _, c := range v.GetArray("environment", "cheesePositions") {
		req.cheeses = append(req.cheeses, types.Point{X: c.GetInt("x"), Y: c.GetInt("y")})
	}

	if moves := v.GetArray("availableMoves"); len(moves) > 0 {
		req.available = make([]string, 0, len(moves))
		for _, m := range moves {
			if name := m.GetStringBytes(); len(name) > 0 {
				req.available = append(req.available, string(name))
			}
		}
		if len(req.available) == 0 {
			req.available = allMoves
		}
	}
	return req
}

func randomMove(available []string) string {
	if len(available) == 0 {
		available = allMoves
	}
	return available[rand.IntN(len(available))]
}

// mouseMoveHandler serves the frontend move format. It always answers 200:
// anything it cannot decide falls back to a random available move.
func (s *Server) mouseMoveHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	p := s.parsers.Get()
	defer s.parsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		s.mouseFallback(w, "unknown", allMoves, err)
		return
	}

	req := parseMouseRequest(v)
	resp, err := s.decideMouseMove(req)
	if err != nil {
		s.mouseFallback(w, req.mouseID, req.available, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) mouseFallback(w http.ResponseWriter, mouseID string, available []string, err error) {
	logger := log.WithComponent("api")
	logger.Error().Err(err).Str("mouse_id", mouseID).Msg("Error processing mouse move request")
	metrics.MoveDecisions.WithLabelValues(outcomeRandom).Inc()

	writeJSON(w, http.StatusOK, MouseMoveResponse{
		MouseID:   mouseID,
		Move:      randomMove(available),
		Reasoning: "Error occurred, using random movement: " + err.Error(),
	})
}

func (s *Server) decideMouseMove(req mouseRequest) (MouseMoveResponse, error) {
	resp := MouseMoveResponse{MouseID: req.mouseID}

	if len(req.cheeses) == 0 {
		metrics.MoveDecisions.WithLabelValues(outcomeRandom).Inc()
		resp.Move = randomMove(req.available)
		resp.Reasoning = "No cheese found, random movement"
		return resp, nil
	}

	current := req.position
	for _, c := range req.cheeses {
		if c == current {
			metrics.MoveDecisions.WithLabelValues(outcomeStayed).Inc()
			resp.Move = string(types.North)
			resp.Reasoning = fmt.Sprintf("Mouse is already on cheese at (%d, %d) - staying in place", c.X, c.Y)
			return resp, nil
		}
	}

	if err := checkSize(req.grid); err != nil {
		return resp, err
	}

	goal, _ := movement.NearestGoal(current, req.cheeses)

	timer := metrics.NewTimer()
	next, err := movement.Decide(req.grid, current, goal)
	timer.ObserveDuration(metrics.MoveDecisionLatency)
	if err != nil {
		return resp, err
	}

	direction := movement.DirectionOf(current, next)
	resp.Move = string(direction)

	if next == current {
		metrics.MoveDecisions.WithLabelValues(outcomeStayed).Inc()
		resp.Reasoning = "Staying in place - no valid moves available"
	} else {
		metrics.MoveDecisions.WithLabelValues(outcomeMoved).Inc()
		resp.Reasoning = fmt.Sprintf("Moving %s towards cheese at (%d, %d) - distance: %d",
			direction, goal.X, goal.Y, movement.Manhattan(current, goal))
	}

	mouseLog := log.WithMouseID(req.mouseID)
	mouseLog.Info().
		Ints("position", []int{current.X, current.Y}).
		Ints("next_position", []int{next.X, next.Y}).
		Msg("Calculated next position")

	s.record(req.mouseID, current, next, &goal, resp.Reasoning)
	return resp, nil
}

// record appends a decision to the journal. Failures are logged; the move
// is still answered.
func (s *Server) record(mouseID string, from, to types.Point, goal *types.Point, reasoning string) {
	if s.journal == nil {
		return
	}

	_, err := s.journal.Append(storage.MoveEntry{
		MouseID:   mouseID,
		From:      from,
		To:        to,
		Goal:      goal,
		Direction: movement.DirectionOf(from, to),
		Reasoning: reasoning,
		Timestamp: s.now(),
	})
	if err != nil {
		logger := log.WithComponent("api")
		logger.Error().Err(err).Str("mouse_id", mouseID).Msg("Failed to journal move")
		metrics.UpdateComponent(metrics.ComponentJournal, false, err.Error())
		return
	}
	if comp, ok := metrics.Component(metrics.ComponentJournal); ok && !comp.Healthy {
		metrics.UpdateComponent(metrics.ComponentJournal, true, "open")
	}
}

// mouseHistoryHandler returns the journaled moves of one mouse
func (s *Server) mouseHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeDetail(w, http.StatusNotFound, "move history is disabled")
		return
	}

	mouseID := r.PathValue("id")
	limit, err := queryInt(r, "limit", defaultHistoryLimit)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	moves, err := s.journal.List(mouseID, limit)
	if err != nil {
		if errors.Is(err, storage.ErrMouseNotFound) {
			writeDetail(w, http.StatusNotFound, fmt.Sprintf("mouse %q has no recorded moves", mouseID))
			return
		}
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, MouseHistoryResponse{
		MouseID: mouseID,
		Moves:   moves,
		Count:   len(moves),
	})
}

// queryInt reads a non-negative integer query parameter
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
