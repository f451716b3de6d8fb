package storage

import (
	"errors"
	"time"

	"github.com/cuemby/whisker/pkg/types"
)

// ErrMouseNotFound is returned when a mouse has no journal entries
var ErrMouseNotFound = errors.New("mouse not found")

// MoveEntry records one movement decision
type MoveEntry struct {
	Seq       uint64          `json:"seq"`
	MouseID   string          `json:"mouse_id"`
	From      types.Point     `json:"from"`
	To        types.Point     `json:"to"`
	Goal      *types.Point    `json:"goal,omitempty"`
	Direction types.Direction `json:"direction"`
	Reasoning string          `json:"reasoning,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Journal stores movement decisions per mouse
type Journal interface {
	// Append stores entry and returns it with its sequence number set
	Append(entry MoveEntry) (MoveEntry, error)

	// List returns up to limit most recent entries for a mouse, oldest first.
	// limit <= 0 returns all of them.
	List(mouseID string, limit int) ([]MoveEntry, error)

	// Mice returns the ids of every mouse with at least one entry
	Mice() ([]string, error)

	// Delete removes every entry of a mouse
	Delete(mouseID string) error

	Close() error
}
