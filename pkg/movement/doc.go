// Package movement decides a mouse's next step through a labyrinth.
//
// The heuristic is greedy and looks one step ahead only; it is deterministic
// for a given grid, position and goal.
package movement
