/*
Package persistence stores the window collection and settings between runs.

Two independent records are written through a RecordStore:

	windows-settings  {defaultUrl, deviceStrategy, autoSaveInterval}
	windows-data      ordered list of sessions

There is no transaction across the two records. A crash between the writes
can leave settings from one save and windows from another; both are
individually valid, so loading still succeeds.

Record stores:
  - MemoryStore: in-process map
  - FileStore: one JSON file per record, replaced atomically via rename
  - SQLiteStore: a single records table on modernc.org/sqlite

GuardedStore wraps any of them with a circuit breaker and metrics.
*/
package persistence
