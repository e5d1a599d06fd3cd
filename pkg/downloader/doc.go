// Package downloader drives a batched engagement download.
//
// A run authenticates once, cuts ids[offset:] into batches of at most 250
// identifiers and submits them one after another. Batch starts are kept at
// least ten seconds apart by a minimum-interval limiter that is waited on
// before each batch, so no time is spent sleeping after the last one.
//
// A batch that fails contributes no rows and the run moves on. Every
// CheckpointEvery batches the whole collection replaces the sink contents
// and the checkpoint sidecar records the next offset. The collection is
// persisted once more when the run ends, also when the context is
// cancelled part way through.
package downloader
