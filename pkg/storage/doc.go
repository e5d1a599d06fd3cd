// Package storage persists engagement result collections.
//
// Every Sink replaces its whole contents on Save. File sinks (CSV, JSON)
// write a temp file and rename it into place; the SQLite sink rewrites its
// table in one transaction; the Redis sink rewrites its list in MULTI/EXEC.
// A reader therefore never sees a half-written collection.
package storage
