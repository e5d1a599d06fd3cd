package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"engagedl/pkg/downloader"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	barWidth      = 24
)

// StatusTracker prints one status line per batch. It implements
// downloader.Progress.
type StatusTracker struct {
	mu        sync.Mutex
	out       io.Writer
	now       func() time.Time
	startTime time.Time

	Batches       int
	FailedBatches int
	Rows          int
	Offset        int
	Total         int
}

// NewStatusTracker creates a tracker writing to stdout
func NewStatusTracker() *StatusTracker {
	return NewStatusTrackerTo(os.Stdout)
}

// NewStatusTrackerTo creates a tracker writing to out
func NewStatusTrackerTo(out io.Writer) *StatusTracker {
	return &StatusTracker{out: out, now: time.Now, startTime: time.Now()}
}

// BatchDone records a batch and prints the status line
func (st *StatusTracker) BatchDone(r downloader.BatchReport) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.Batches++
	if r.Err != nil {
		st.FailedBatches++
	}
	st.Rows = r.TotalRows
	st.Offset = r.NextOffset
	st.Total = r.Total

	if IsQuietMode() {
		return
	}
	fmt.Fprintf(st.out, "\r%s %s", st.label(r), st.line())
}

// Finish ends the status line
func (st *StatusTracker) Finish() {
	if IsQuietMode() {
		return
	}
	fmt.Fprintln(st.out)
}

func (st *StatusTracker) label(r downloader.BatchReport) string {
	if r.Err != nil {
		return Red("[FAILED]")
	}
	return Green("[OK]    ")
}

// line renders bar, offset, rows, failures and rate
func (st *StatusTracker) line() string {
	return fmt.Sprintf("%s %d/%d ids | %d rows | %d failed | %.1f batches/min",
		st.bar(), st.Offset, st.Total, st.Rows, st.FailedBatches, st.rate())
}

func (st *StatusTracker) bar() string {
	progress := 1.0
	if st.Total > 0 {
		progress = float64(st.Offset) / float64(st.Total)
	}
	filled := int(progress * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	return "[" + strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, barWidth-filled) + "]"
}

// rate returns the average number of batches per minute
func (st *StatusTracker) rate() float64 {
	elapsed := st.now().Sub(st.startTime).Minutes()
	if elapsed <= 0 {
		return 0
	}
	return float64(st.Batches) / elapsed
}

// Elapsed returns the time since tracking started
func (st *StatusTracker) Elapsed() time.Duration {
	return st.now().Sub(st.startTime)
}
