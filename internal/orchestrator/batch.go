package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchResult holds the outcome of one video in a batch.
type BatchResult struct {
	VideoID string
	Outcome *Outcome
	Err     error
}

// RunBatch runs the pipeline for every video ID with at most concurrency
// runs in flight. A failed run does not cancel the others; results keep the
// order of videoIDs.
func RunBatch(ctx context.Context, o Orchestrator, videoIDs []string, concurrency int) []BatchResult {
	results := make([]BatchResult, len(videoIDs))
	if concurrency <= 0 {
		concurrency = 1
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, id := range videoIDs {
		g.Go(func() error {
			out, err := o.Run(ctx, id)
			results[i] = BatchResult{VideoID: id, Outcome: out, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
