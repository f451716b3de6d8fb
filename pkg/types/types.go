package types

import (
	"encoding/json"
	"maps"
	"time"
)

// Kind identifies what produced a log record
type Kind string

const (
	KindLog           Kind = "log"
	KindCustom        Kind = "custom"
	KindConnection    Kind = "connection"
	KindDisconnection Kind = "disconnection"
	KindHeartbeat     Kind = "heartbeat"
	KindError         Kind = "error"
)

// Level is the severity of a log record. The zero value means "no level".
type Level string

const (
	LevelDebug   Level = "DEBUG"
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// ParseLevel maps loose level spellings onto a Level.
// Unknown values fall back to def.
func ParseLevel(s string, def Level) Level {
	switch s {
	case "DEBUG", "debug", "trace", "TRACE":
		return LevelDebug
	case "INFO", "info":
		return LevelInfo
	case "WARNING", "warning", "WARN", "warn":
		return LevelWarning
	case "ERROR", "error", "fatal", "FATAL", "panic", "PANIC":
		return LevelError
	default:
		return def
	}
}

// LogRecord is a single entry of the log feed.
//
// Records are values: once ingested they are never mutated. Use Clone before
// handing a record to another owner when Fields must not be shared.
type LogRecord struct {
	Kind      Kind
	Level     Level
	Message   string
	Timestamp time.Time

	// Source information, set by the log-capture adapter
	Module   string
	Function string
	Line     int
	ThreadID string

	// Fields is the free-form payload of custom records
	Fields map[string]any
}

// Clone returns a copy of r that shares no mutable state with it.
func (r LogRecord) Clone() LogRecord {
	if r.Fields != nil {
		r.Fields = cloneFields(r.Fields)
	}
	return r
}

func cloneFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies the container types JSON payloads decode into
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneFields(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// reservedKeys are the framing keys payload fields may not override
var reservedKeys = map[string]struct{}{
	"type":      {},
	"level":     {},
	"message":   {},
	"timestamp": {},
	"module":    {},
	"function":  {},
	"line":      {},
	"thread_id": {},
}

// IsReservedKey reports whether key is part of the record framing.
func IsReservedKey(key string) bool {
	_, ok := reservedKeys[key]
	return ok
}

// Map flattens the record into the wire shape used by every transport:
// framing keys plus payload keys at the top level.
func (r LogRecord) Map() map[string]any {
	m := make(map[string]any, len(r.Fields)+8)
	for k, v := range r.Fields {
		if IsReservedKey(k) {
			continue
		}
		m[k] = v
	}

	m["type"] = string(r.Kind)
	m["message"] = r.Message
	m["timestamp"] = r.Timestamp.Format(time.RFC3339Nano)
	if r.Level != "" {
		m["level"] = string(r.Level)
	}
	if r.Module != "" {
		m["module"] = r.Module
	}
	if r.Function != "" {
		m["function"] = r.Function
	}
	if r.Line != 0 {
		m["line"] = r.Line
	}
	if r.ThreadID != "" {
		m["thread_id"] = r.ThreadID
	}
	return m
}

// MarshalJSON encodes the flattened wire shape.
func (r LogRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// UnmarshalJSON decodes the flattened wire shape back into a record.
// Unknown keys end up in Fields.
func (r *LogRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out LogRecord
	if v, ok := raw["type"].(string); ok {
		out.Kind = Kind(v)
	}
	if v, ok := raw["level"].(string); ok {
		out.Level = Level(v)
	}
	if v, ok := raw["message"].(string); ok {
		out.Message = v
	}
	if v, ok := raw["timestamp"].(string); ok {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return err
		}
		out.Timestamp = ts
	}
	if v, ok := raw["module"].(string); ok {
		out.Module = v
	}
	if v, ok := raw["function"].(string); ok {
		out.Function = v
	}
	if v, ok := raw["line"].(float64); ok {
		out.Line = int(v)
	}
	if v, ok := raw["thread_id"].(string); ok {
		out.ThreadID = v
	}

	payload := maps.Clone(raw)
	maps.DeleteFunc(payload, func(k string, _ any) bool { return IsReservedKey(k) })
	if len(payload) > 0 {
		out.Fields = payload
	}

	*r = out
	return nil
}

// Point is a cell coordinate; X is the column and Y the row
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Grid is a rectangular maze indexed as grid[y][x]
type Grid [][]int

const (
	CellFree = 0
	CellWall = 1
)

// Width returns the number of columns
func (g Grid) Width() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Height returns the number of rows
func (g Grid) Height() int {
	return len(g)
}

// InBounds reports whether p lies inside the grid
func (g Grid) InBounds(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.Y < g.Height() && p.X < g.Width()
}

// Passable reports whether p is inside the grid and not a wall
func (g Grid) Passable(p Point) bool {
	return g.InBounds(p) && g[p.Y][p.X] == CellFree
}

// Direction is a single 4-connected step
type Direction string

const (
	North Direction = "north"
	East  Direction = "east"
	South Direction = "south"
	West  Direction = "west"
)

// Step returns the neighbour of p in direction d
func (p Point) Step(d Direction) Point {
	switch d {
	case North:
		return Point{X: p.X, Y: p.Y - 1}
	case East:
		return Point{X: p.X + 1, Y: p.Y}
	case South:
		return Point{X: p.X, Y: p.Y + 1}
	case West:
		return Point{X: p.X - 1, Y: p.Y}
	}
	return p
}

// Neighbours returns the 4-connected neighbours of p in scan order N, E, S, W
func (p Point) Neighbours() []Point {
	return []Point{p.Step(North), p.Step(East), p.Step(South), p.Step(West)}
}
