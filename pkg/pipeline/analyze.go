package pipeline

import (
	"context"
	"fmt"

	"github.com/diffbench/ingestoor/pkg/store"
)

// Analysis reports app-detail identity coverage: row counts grouped by which
// identity fields are null.
type Analysis struct {
	TotalRows int64                 `json:"total_rows"`
	Buckets   []store.NullnessCount `json:"buckets"`
}

// AnalyzeAppDetails aggregates identity-field null-ness over the app-detail
// table. Read-only; safe to call at any time, concurrently with any other
// pipeline operation.
func (p *Pipeline) AnalyzeAppDetails(ctx context.Context) (*Analysis, error) {
	total, err := p.store.CountAppDetails(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting app details: %w", err)
	}

	buckets, err := p.store.CountAppDetailNullness(ctx)
	if err != nil {
		return nil, fmt.Errorf("analyzing app details: %w", err)
	}

	return &Analysis{TotalRows: total, Buckets: buckets}, nil
}
