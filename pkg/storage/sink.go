package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Row is the engagement totals of one identifier
type Row struct {
	ID        string `json:"id"`
	Favorites int64  `json:"favorites"`
	Replies   int64  `json:"replies"`
	Retweets  int64  `json:"retweets"`
}

// Columns is the tabular layout of a Row
var Columns = []string{"id", "favorites", "replies", "retweets"}

// Sink persists a whole result collection. Save replaces everything
// previously saved; Load returns what the last Save wrote, or no rows if
// nothing was saved yet.
type Sink interface {
	Save(ctx context.Context, rows []Row) error
	Load(ctx context.Context) ([]Row, error)
	Close() error
	// Kind names the backend, e.g. csv or redis
	Kind() string
	String() string
}

// Options tunes the sinks that need more than a destination
type Options struct {
	RedisKey    string
	SQLiteTable string
}

// Open picks a sink for dest: redis:// and rediss:// URLs go to Redis,
// otherwise the file extension decides (.csv, .json, .db, .sqlite).
func Open(ctx context.Context, dest string, opts Options) (Sink, error) {
	if strings.HasPrefix(dest, "redis://") || strings.HasPrefix(dest, "rediss://") {
		return OpenRedis(ctx, dest, opts.RedisKey)
	}

	switch strings.ToLower(filepath.Ext(dest)) {
	case ".csv":
		return NewCSVSink(dest), nil
	case ".json":
		return NewJSONSink(dest), nil
	case ".db", ".sqlite", ".sqlite3":
		return NewSQLiteSink(ctx, dest, opts.SQLiteTable)
	default:
		return nil, fmt.Errorf("unsupported output %q: use .csv, .json, .db or a redis:// URL", dest)
	}
}

// writeAtomic writes through a temp file in the destination directory and
// renames it into place, so readers see either the old or the new file.
func writeAtomic(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
