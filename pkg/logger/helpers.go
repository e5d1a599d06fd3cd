package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs HTTP request information
func LogRequest(log Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	if statusCode >= 200 && statusCode < 300 {
		log.DebugWithFields("HTTP request completed", fields)
	} else if statusCode >= 400 && statusCode < 500 {
		log.WarnWithFields("HTTP request client error", fields)
	} else if statusCode >= 500 {
		log.ErrorWithFields("HTTP request server error", fields)
	}
}

// LogBatch logs the outcome of a single batch submission
func LogBatch(log Logger, offset, size, rows int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"offset":   offset,
		"size":     size,
		"rows":     rows,
		"duration": duration,
	}

	if err != nil {
		log.WithError(err).WarnWithFields("Batch failed, continuing", fields)
		return
	}
	log.DebugWithFields("Batch completed", fields)
}

// LogRateLimit logs rate limiting events
func LogRateLimit(log Logger, endpoint string, retryAfter int) {
	log.WithFields(map[string]interface{}{
		"endpoint":    endpoint,
		"retry_after": retryAfter,
		"action":      "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogDownloadProgress logs checkpoint progress: the next offset, percent
// of the identifier list covered and total elapsed time.
func LogDownloadProgress(log Logger, offset, total, rows int, elapsed time.Duration) {
	percentage := 100.0
	if total > 0 {
		percentage = float64(offset) / float64(total) * 100
	}

	log.WithFields(map[string]interface{}{
		"offset":     offset,
		"total":      total,
		"rows":       rows,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
		"elapsed":    elapsed.Round(time.Second).String(),
	}).Info("Download progress")
}

// LogComponentStart logs when a component starts
func LogComponentStart(log Logger, component string, config map[string]interface{}) {
	logger := log.WithField("component", component)
	
	if len(config) > 0 {
		logger = logger.WithFields(config)
	}
	
	logger.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(log Logger, component string, reason string) {
	log.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing (useful for testing)
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                             {}
func (n *nopLogger) Info(msg string)                                              {}
func (n *nopLogger) Warn(msg string)                                              {}
func (n *nopLogger) Error(msg string)                                             {}
func (n *nopLogger) Fatal(msg string)                                             {}
func (n *nopLogger) WithField(key string, value interface{}) Logger               { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger              { return n }
func (n *nopLogger) WithError(err error) Logger                                   { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                       { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{})    {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})     {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})     {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{})    {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{})    {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                                  { return nil }