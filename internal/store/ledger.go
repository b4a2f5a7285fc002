package store

import "context"

// Ledger is the subset of Store the batch commands write through.
type Ledger interface {
	StartRun(ctx context.Context, run Run) (string, error)
	FinishRun(ctx context.Context, runID string, processed, failed int) error
	RecordDocument(ctx context.Context, doc Document) (string, error)
}

var _ Ledger = (*Store)(nil)
