/*
Package types defines the core data structures shared across whisker.

# Log Records

LogRecord is the unit of the log feed. Its wire shape is a flat JSON object:

	{
	  "type": "custom",
	  "level": "INFO",
	  "message": "Mouse moved to position (3, 4)",
	  "timestamp": "2026-10-19T10:30:00.123Z",
	  "simulation_id": "sim_1234",
	  "mouse_id": "mouse_2"
	}

type, level, message, timestamp, module, function, line and thread_id are
framing keys; payload keys with the same names are ignored when encoding.
Heartbeat, connection and disconnection markers carry no level.

# Maze Types

Grid is indexed grid[y][x] with 0 for a free cell and 1 for a wall. Point
holds a column (X) and a row (Y). North decreases Y, east increases X.
*/
package types
