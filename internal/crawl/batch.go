package crawl

import (
	"context"
	"sync"

	"ddm-news-harvester/internal/models"
)

// ResolveAll resolves every entry in fixed-size batches: resolutions inside a
// batch run concurrently, batches run one after another, so peak concurrency
// is bounded by the batch size. The result always has the same length and
// order as the input, with out[i] resolved from entries[i].
func (c *Crawler) ResolveAll(ctx context.Context, entries []models.ListingEntry) []models.ResolvedPost {
	out := make([]models.ResolvedPost, len(entries))

	for start := 0; start < len(entries); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(entries) {
			end = len(entries)
		}
		c.log.Info("resolving batch", "from", start, "to", end, "total", len(entries))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out[i] = c.Resolve(ctx, entries[i])
			}(i)
		}
		wg.Wait()
	}
	return out
}
