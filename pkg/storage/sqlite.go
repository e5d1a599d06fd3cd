package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	_ "modernc.org/sqlite"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteSink keeps rows in a SQLite table, in collection order
type SQLiteSink struct {
	db    *sql.DB
	path  string
	table string
}

// NewSQLiteSink opens (or creates) the database at path and ensures the
// results table exists.
func NewSQLiteSink(ctx context.Context, path, table string) (*SQLiteSink, error) {
	if table == "" {
		table = "engagement"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			position  INTEGER PRIMARY KEY,
			id        TEXT NOT NULL,
			favorites INTEGER NOT NULL DEFAULT 0,
			replies   INTEGER NOT NULL DEFAULT 0,
			retweets  INTEGER NOT NULL DEFAULT 0
		)`, table)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}

	return &SQLiteSink{db: db, path: path, table: table}, nil
}

// Save replaces the table contents inside one transaction
func (s *SQLiteSink) Save(ctx context.Context, rows []Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+s.table); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear %s: %w", s.table, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (position, id, favorites, replies, retweets) VALUES (?, ?, ?, ?, ?)", s.table))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, i, r.ID, r.Favorites, r.Replies, r.Retweets); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert row %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rows: %w", err)
	}
	return nil
}

// Load returns the rows in the order they were saved
func (s *SQLiteSink) Load(ctx context.Context) ([]Row, error) {
	rs, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT id, favorites, replies, retweets FROM %s ORDER BY position", s.table))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer rs.Close()

	var rows []Row
	for rs.Next() {
		var r Row
		if err := rs.Scan(&r.ID, &r.Favorites, &r.Replies, &r.Retweets); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rows = append(rows, r)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return rows, nil
}

func (s *SQLiteSink) Close() error   { return s.db.Close() }
func (s *SQLiteSink) Kind() string   { return "sqlite" }
func (s *SQLiteSink) String() string { return s.path + "#" + s.table }
