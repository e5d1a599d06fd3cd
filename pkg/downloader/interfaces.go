package downloader

import (
	"context"

	"engagedl/pkg/engagement"
)

// Client is the part of engagement.Client the downloader drives
type Client interface {
	Authenticate(ctx context.Context) error
	Submit(ctx context.Context, endpoint string, ids []string, types []engagement.Type, opts ...engagement.RequestOption) engagement.BatchResult
}

// BatchReport describes one finished batch
type BatchReport struct {
	Offset     int
	Size       int
	Rows       int
	Err        error
	NextOffset int
	Total      int
	TotalRows  int
}

// Progress receives a report after every batch
type Progress interface {
	BatchDone(report BatchReport)
}
