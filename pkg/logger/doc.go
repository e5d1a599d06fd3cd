// Package logger provides structured logging for engagedl.
//
// It wraps zerolog behind a small Logger interface so that components can
// take a logger as a dependency and tests can swap in a TestLogger or a
// no-op logger.
//
//	logger.Initialize(&cfg.Logging)
//	logger.WithField("account", name).Info("Starting download")
//
//	log := logger.GetLogger().WithField("component", "downloader")
//	log.InfoWithFields("Checkpoint saved", map[string]interface{}{
//	    "offset": 2500,
//	    "rows":   2411,
//	})
//
// Console output goes to stderr with colored levels. When Logging.File is
// set, entries are also appended to that file.
package logger
