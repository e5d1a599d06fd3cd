package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// CSVSink writes rows as CSV with an id,favorites,replies,retweets header
type CSVSink struct {
	path string
}

// NewCSVSink creates a CSV sink at path
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Save(ctx context.Context, rows []Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeAtomic(s.path, func(f *os.File) error {
		w := csv.NewWriter(f)
		if err := w.Write(Columns); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		for _, r := range rows {
			record := []string{
				r.ID,
				strconv.FormatInt(r.Favorites, 10),
				strconv.FormatInt(r.Replies, 10),
				strconv.FormatInt(r.Retweets, 10),
			}
			if err := w.Write(record); err != nil {
				return fmt.Errorf("failed to write row %s: %w", r.ID, err)
			}
		}
		w.Flush()
		return w.Error()
	})
}

func (s *CSVSink) Load(ctx context.Context) ([]Row, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Columns)

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if header[0] != Columns[0] {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	var rows []Row
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		row, err := parseRecord(record)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRecord(record []string) (Row, error) {
	var counts [3]int64
	for i := range counts {
		n, err := strconv.ParseInt(record[i+1], 10, 64)
		if err != nil {
			return Row{}, fmt.Errorf("invalid %s for %s: %w", Columns[i+1], record[0], err)
		}
		counts[i] = n
	}
	return Row{ID: record[0], Favorites: counts[0], Replies: counts[1], Retweets: counts[2]}, nil
}

func (s *CSVSink) Close() error   { return nil }
func (s *CSVSink) Kind() string   { return "csv" }
func (s *CSVSink) String() string { return s.path }

// JSONSink writes rows as a JSON array
type JSONSink struct {
	path string
}

// NewJSONSink creates a JSON sink at path
func NewJSONSink(path string) *JSONSink {
	return &JSONSink{path: path}
}

func (s *JSONSink) Save(ctx context.Context, rows []Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rows == nil {
		rows = []Row{}
	}
	return writeAtomic(s.path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("failed to encode rows: %w", err)
		}
		return nil
	})
}

func (s *JSONSink) Load(ctx context.Context) ([]Row, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.path, err)
	}
	return rows, nil
}

func (s *JSONSink) Close() error   { return nil }
func (s *JSONSink) Kind() string   { return "json" }
func (s *JSONSink) String() string { return s.path }
