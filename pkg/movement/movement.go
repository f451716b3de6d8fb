package movement

import (
	"errors"
	"fmt"

	"github.com/cuemby/whisker/pkg/types"
)

// ErrInvalidInput is returned when the grid or a position cannot be used
var ErrInvalidInput = errors.New("invalid movement input")

// Validate checks that grid is a non-empty rectangle of free/wall cells
func Validate(grid types.Grid) error {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return fmt.Errorf("%w: empty labyrinth", ErrInvalidInput)
	}

	width := len(grid[0])
	for y, row := range grid {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d cells, expected %d", ErrInvalidInput, y, len(row), width)
		}
		for x, cell := range row {
			if cell != types.CellFree && cell != types.CellWall {
				return fmt.Errorf("%w: cell (%d, %d) has value %d", ErrInvalidInput, x, y, cell)
			}
		}
	}
	return nil
}

func checkPosition(grid types.Grid, name string, p types.Point) error {
	if !grid.InBounds(p) {
		return fmt.Errorf("%w: %s (%d, %d) is outside the labyrinth", ErrInvalidInput, name, p.X, p.Y)
	}
	if !grid.Passable(p) {
		return fmt.Errorf("%w: %s (%d, %d) is a wall", ErrInvalidInput, name, p.X, p.Y)
	}
	return nil
}

// Decide returns the next cell for a mouse at current heading for goal.
//
// It prefers a step that shortens the horizontal distance, then one that
// shortens the vertical distance, then the first free neighbour in
// north/east/south/west order. With no free neighbour the mouse stays.
func Decide(grid types.Grid, current, goal types.Point) (types.Point, error) {
	if err := Validate(grid); err != nil {
		return current, err
	}
	if err := checkPosition(grid, "position", current); err != nil {
		return current, err
	}
	if err := checkPosition(grid, "goal", goal); err != nil {
		return current, err
	}

	if current == goal {
		return current, nil
	}

	if dx := goal.X - current.X; dx != 0 {
		next := types.Point{X: current.X + sign(dx), Y: current.Y}
		if grid.Passable(next) {
			return next, nil
		}
	}

	if dy := goal.Y - current.Y; dy != 0 {
		next := types.Point{X: current.X, Y: current.Y + sign(dy)}
		if grid.Passable(next) {
			return next, nil
		}
	}

	for _, next := range current.Neighbours() {
		if grid.Passable(next) {
			return next, nil
		}
	}

	return current, nil
}

// NearestGoal returns the candidate closest to current by Manhattan
// distance. Ties keep the earliest candidate; ok is false when there are none.
func NearestGoal(current types.Point, candidates []types.Point) (types.Point, bool) {
	if len(candidates) == 0 {
		return types.Point{}, false
	}

	best := candidates[0]
	bestDist := Manhattan(current, best)
	for _, c := range candidates[1:] {
		if d := Manhattan(current, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, true
}

// DirectionOf maps a single step onto a direction. Staying in place maps to
// north.
func DirectionOf(from, to types.Point) types.Direction {
	switch {
	case to.X > from.X:
		return types.East
	case to.X < from.X:
		return types.West
	case to.Y > from.Y:
		return types.South
	case to.Y < from.Y:
		return types.North
	default:
		return types.North
	}
}

// Manhattan returns |dx| + |dy|
func Manhattan(a, b types.Point) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
