// Package retry retries operations that fail transiently. engagedl uses
// it for result writes: a CSV rename racing a file indexer, a dropped
// Redis connection or a busy SQLite database should not lose a
// checkpoint. API batches are never retried; they fail soft instead.
//
// Basic usage:
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//		return sink.Save(ctx, rows)
//	}, retry.FromConfig(cfg.Retry, log))
//
// Context cancellation and context errors returned by the operation stop
// retrying immediately. Typed errors from pkg/errors are retried only when
// their type is retryable.
package retry
