package downloader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"engagedl/pkg/checkpoint"
	"engagedl/pkg/engagement"
	"engagedl/pkg/logger"
	"engagedl/pkg/metrics"
	"engagedl/pkg/ratelimit"
	"engagedl/pkg/retry"
	"engagedl/pkg/storage"
)

const (
	// MinInterval is the smallest gap allowed between two batch starts
	MinInterval = 10 * time.Second
	// DefaultCheckpointEvery is the number of batches between persists
	DefaultCheckpointEvery = 100
)

// Options configures one download run
type Options struct {
	// Client submits batches. When nil, one is built from Credentials
	// and ClientOptions.
	Client        Client
	Credentials   engagement.Credentials
	ClientOptions []engagement.Option

	IDs         []string
	StartOffset int
	Sink        storage.Sink

	// Endpoint defaults to the totals endpoint, Types to the default set
	Endpoint string
	Types    []engagement.Type

	CheckpointEvery int
	IncludeMissing  bool

	// MinInterval is raised to the 10s floor when lower
	MinInterval time.Duration
	Clock       ratelimit.Clock

	// InitialRows seeds the collection, e.g. rows loaded on resume
	InitialRows []storage.Row

	// Checkpoints, when set, receives the offset at every persist.
	// Checkpoint is the sidecar to update; a new one is created if nil.
	Checkpoints *checkpoint.Manager
	Checkpoint  *checkpoint.Checkpoint

	// Retry governs sink writes; nil means a single attempt
	Retry *retry.Config

	Progress Progress
	Logger   logger.Logger
}

// Summary describes a finished or interrupted run
type Summary struct {
	Rows          []storage.Row
	Batches       int
	FailedBatches int
	NextOffset    int
	Elapsed       time.Duration
}

type downloader struct {
	opts    Options
	client  Client
	limiter *ratelimit.MinInterval
	clock   ratelimit.Clock
	log     logger.Logger

	rows    []storage.Row
	started time.Time
	summary Summary

	// batches recorded by the checkpoint before this run
	priorBatches int
}

// Download fetches the engagement totals of every identifier from
// StartOffset on and returns the collected rows. Rows are persisted to the
// sink every CheckpointEvery batches and always once more at the end.
func Download(ctx context.Context, opts Options) ([]storage.Row, error) {
	summary, err := Run(ctx, opts)
	if summary == nil {
		return nil, err
	}
	return summary.Rows, err
}

// Run is Download with batch statistics. The summary is returned even
// when the run is interrupted, as long as the partial rows were persisted.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	d, err := newDownloader(opts)
	if err != nil {
		return nil, err
	}
	return d.run(ctx)
}

func newDownloader(opts Options) (*downloader, error) {
	if opts.Sink == nil {
		return nil, errors.New("no output sink configured")
	}
	if opts.StartOffset < 0 {
		return nil, fmt.Errorf("start offset must not be negative, got %d", opts.StartOffset)
	}
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = DefaultCheckpointEvery
	}
	if opts.MinInterval < MinInterval {
		opts.MinInterval = MinInterval
	}
	if opts.Clock == nil {
		opts.Clock = ratelimit.SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.Endpoint == "" {
		opts.Endpoint = engagement.TotalsURL
	}
	if len(opts.Types) == 0 {
		opts.Types = engagement.DefaultTypes()
	}

	client := opts.Client
	if client == nil {
		clientOpts := append([]engagement.Option{engagement.WithLogger(opts.Logger)}, opts.ClientOptions...)
		client = engagement.NewClient(opts.Credentials, clientOpts...)
	}

	rows := make([]storage.Row, len(opts.InitialRows))
	copy(rows, opts.InitialRows)

	var prior int
	if opts.Checkpoint != nil {
		prior = opts.Checkpoint.BatchesDone
	}

	return &downloader{
		opts:         opts,
		client:       client,
		limiter:      ratelimit.NewMinInterval(opts.MinInterval, opts.Clock),
		clock:        opts.Clock,
		log:          opts.Logger.WithField("sink", opts.Sink.String()),
		rows:         rows,
		priorBatches: prior,
	}, nil
}

func (d *downloader) run(ctx context.Context) (*Summary, error) {
	total := len(d.opts.IDs)
	d.started = d.clock.Now()
	d.summary.NextOffset = d.opts.StartOffset

	logger.LogComponentStart(d.log, "downloader", map[string]interface{}{
		"ids":              total,
		"start_offset":     d.opts.StartOffset,
		"batches":          batchCount(total, d.opts.StartOffset),
		"checkpoint_every": d.opts.CheckpointEvery,
		"endpoint":         d.opts.Endpoint,
		"initial_rows":     len(d.rows),
	})

	if err := d.client.Authenticate(ctx); err != nil {
		d.log.WithError(err).Error("Authentication failed, nothing downloaded")
		logger.LogComponentStop(d.log, "downloader", "authentication failed")
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	if err := d.ensureCheckpoint(total); err != nil {
		return nil, err
	}

	for start := d.opts.StartOffset; start < total; start += engagement.MaxBatchSize {
		end := min(start+engagement.MaxBatchSize, total)

		if err := ctx.Err(); err != nil {
			return d.interrupted(ctx, err)
		}
		if err := d.limiter.WaitContext(ctx); err != nil {
			return d.interrupted(ctx, err)
		}

		batch := d.opts.IDs[start:end]
		began := d.clock.Now()
		result := d.client.Submit(ctx, d.opts.Endpoint, batch, d.opts.Types)
		if err := ctx.Err(); err != nil && !result.IsOK() {
			return d.interrupted(ctx, err)
		}

		rows, err := d.rowsFrom(batch, result)
		d.summary.Batches++
		d.summary.NextOffset = end
		metrics.BatchesTotal.WithLabelValues(metrics.Outcome(err == nil)).Inc()
		if err != nil {
			d.summary.FailedBatches++
		} else {
			d.rows = append(d.rows, rows...)
			metrics.RowsTotal.Add(float64(len(rows)))
		}
		logger.LogBatch(d.log, start, len(batch), len(rows), d.clock.Now().Sub(began), err)

		if d.opts.Progress != nil {
			d.opts.Progress.BatchDone(BatchReport{
				Offset:     start,
				Size:       len(batch),
				Rows:       len(rows),
				Err:        err,
				NextOffset: end,
				Total:      total,
				TotalRows:  len(d.rows),
			})
		}

		// A batch that completed while the run was being cancelled is kept.
		if err := ctx.Err(); err != nil {
			return d.interrupted(ctx, err)
		}

		if d.summary.Batches%d.opts.CheckpointEvery == 0 {
			if err := d.persist(context.WithoutCancel(ctx)); err != nil {
				return nil, err
			}
			logger.LogDownloadProgress(d.log, end, total, len(d.rows), d.clock.Now().Sub(d.started))
		}
	}

	if err := d.persist(context.WithoutCancel(ctx)); err != nil {
		return nil, err
	}

	d.summary.Elapsed = d.clock.Now().Sub(d.started)
	d.log.InfoWithFields("Download finished", map[string]interface{}{
		"rows":           len(d.rows),
		"batches":        d.summary.Batches,
		"failed_batches": d.summary.FailedBatches,
		"elapsed":        d.summary.Elapsed.Round(time.Second).String(),
	})
	logger.LogComponentStop(d.log, "downloader", "completed")

	return d.result(), nil
}

// rowsFrom turns a batch result into rows. A payload that cannot be
// parsed counts as a failed batch.
func (d *downloader) rowsFrom(batch []string, result engagement.BatchResult) ([]storage.Row, error) {
	if !result.IsOK() {
		return nil, result.Err()
	}
	rows, err := engagement.ParseRows(result.Payload())
	if err != nil {
		d.log.WithError(err).ErrorWithFields("Batch response has no usable user_groups", map[string]interface{}{
			"ids": len(batch),
		})
		return nil, err
	}
	if d.opts.IncludeMissing {
		rows = append(rows, engagement.MissingRows(batch, rows)...)
	}
	return rows, nil
}

// interrupted persists what was collected before returning the
// cancellation cause.
func (d *downloader) interrupted(ctx context.Context, cause error) (*Summary, error) {
	d.log.WarnWithFields("Download interrupted, saving partial results", map[string]interface{}{
		"next_offset": d.summary.NextOffset,
		"rows":        len(d.rows),
	})

	if err := d.persist(context.WithoutCancel(ctx)); err != nil {
		return nil, errors.Join(cause, err)
	}

	d.summary.Elapsed = d.clock.Now().Sub(d.started)
	logger.LogComponentStop(d.log, "downloader", "interrupted")
	return d.result(), cause
}

// persist replaces the sink contents with the whole collection and then
// records the offset in the checkpoint sidecar.
func (d *downloader) persist(ctx context.Context) error {
	sink := d.opts.Sink
	save := func(ctx context.Context) error {
		return sink.Save(ctx, d.rows)
	}

	var err error
	if d.opts.Retry != nil {
		err = retry.Do(ctx, save, d.opts.Retry)
	} else {
		err = save(ctx)
	}
	metrics.SinkWritesTotal.WithLabelValues(sink.Kind(), metrics.Outcome(err == nil)).Inc()
	if err != nil {
		d.log.WithError(err).ErrorWithFields("Failed to persist results", map[string]interface{}{
			"rows": len(d.rows),
		})
		return fmt.Errorf("persist results to %s: %w", sink, err)
	}

	metrics.CheckpointOffset.Set(float64(d.summary.NextOffset))
	d.log.DebugWithFields("Results persisted", map[string]interface{}{
		"rows":        len(d.rows),
		"next_offset": d.summary.NextOffset,
	})

	if d.opts.Checkpoints != nil && d.opts.Checkpoint != nil {
		if err := d.opts.Checkpoints.UpdateProgress(d.opts.Checkpoint, d.summary.NextOffset, d.priorBatches+d.summary.Batches, len(d.rows)); err != nil {
			d.log.WithError(err).Warn("Failed to update checkpoint")
		}
	}
	return nil
}

func (d *downloader) ensureCheckpoint(total int) error {
	if d.opts.Checkpoints == nil || d.opts.Checkpoint != nil {
		return nil
	}
	cp, err := d.opts.Checkpoints.Create(total, d.opts.StartOffset)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	d.opts.Checkpoint = cp
	return nil
}

func (d *downloader) result() *Summary {
	s := d.summary
	s.Rows = d.rows
	return &s
}

// batchCount is the number of batches needed for ids[offset:]
func batchCount(total, offset int) int {
	if offset >= total {
		return 0
	}
	return (total - offset + engagement.MaxBatchSize - 1) / engagement.MaxBatchSize
}
