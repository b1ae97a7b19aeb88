package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/urlrisk/internal/model"
)

// DefaultConcurrency is the number of scans ScanBatch runs at once.
// Every scan owns a browser process, so the default stays small.
const DefaultConcurrency = 2

// ScanBatch scans urls with at most concurrency scans in flight and returns
// the results in input order. Every slot holds a result, degraded or not.
func (e *Engine) ScanBatch(ctx context.Context, urls []string, concurrency int) []*model.ScanResult {
	results := make([]*model.ScanResult, len(urls))
	e.ScanBatchWithCallback(ctx, urls, concurrency, func(r *model.ScanResult, i int) {
		results[i] = r
	})
	return results
}

// ScanBatchWithCallback scans urls concurrently and calls callback as each
// scan completes. The callback runs on the scanning goroutine and must be
// safe for concurrent use; distinct indexes may be written without locking.
func (e *Engine) ScanBatchWithCallback(
	ctx context.Context,
	urls []string,
	concurrency int,
	callback func(result *model.ScanResult, index int),
) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	e.logger.Info("starting batch scan",
		"total_urls", len(urls),
		"concurrency", concurrency,
	)
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, u := range urls {
		g.Go(func() error {
			callback(e.Scan(ctx, u), i)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never fail

	e.logger.Info("batch scan complete",
		"total_urls", len(urls),
		"elapsed", time.Since(start),
	)
}
