/*
Package storage provides the BoltDB-backed move journal.

Every movement decision the API answers can be appended to the journal so a
mouse's path can be inspected later through GET /api/mouse/{id}/history.
Log records are never written here; the log feed is in memory only.

# Layout

	whisker.db
	└── moves            (bucket)
	    ├── mouse_1      (nested bucket)
	    │   ├── 00000001 → {"seq":1,"mouse_id":"mouse_1","from":{...},...}
	    │   └── 00000002 → ...
	    └── mouse_2
	        └── ...

Keys are 8-byte big-endian sequence numbers from the nested bucket's
NextSequence, so cursor order equals append order.

The journal is optional: serve only opens it when a data directory is
configured.
*/
package storage
