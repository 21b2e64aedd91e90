package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"ddm-news-harvester/internal/models"
)

// ErrRunInProgress is returned when a harvest is requested while another run
// is still in flight; the pipeline never overlaps two runs.
var ErrRunInProgress = errors.New("harvest run already in progress")

// Publisher commits a fully built dataset. Implemented by store.Publisher.
type Publisher interface {
	Publish(posts []models.ResolvedPost) error
}

// Runner ties the crawl-resolve-publish sequence together and single-flights
// it: the daily trigger and the manual API trigger share one Runner.
type Runner struct {
	crawler   *Crawler
	publisher Publisher
	log       *slog.Logger
	running   atomic.Bool
}

func NewRunner(crawler *Crawler, publisher Publisher, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{crawler: crawler, publisher: publisher, log: log}
}

// RunOnce executes one full harvest. On any failure the previously published
// dataset stays authoritative; an empty crawl result is also treated as a
// failed run rather than publishing an empty dataset over a good one.
func (r *Runner) RunOnce(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer r.running.Store(false)

	entries, err := r.crawler.Crawl(ctx)
	if err != nil {
		r.log.Error("crawl failed, keeping current dataset", "err", err)
		return fmt.Errorf("crawl: %w", err)
	}
	if len(entries) == 0 {
		r.log.Error("crawl returned no entries, keeping current dataset")
		return errors.New("crawl returned no entries")
	}

	posts := r.crawler.ResolveAll(ctx, entries)
	failed := 0
	for _, p := range posts {
		if p.Error != "" {
			failed++
		}
	}
	r.log.Info("resolution complete", "posts", len(posts), "failed", failed)

	if err := r.publisher.Publish(posts); err != nil {
		r.log.Error("publish failed, keeping current dataset", "err", err)
		return fmt.Errorf("publish: %w", err)
	}
	r.log.Info("dataset published", "posts", len(posts))
	return nil
}
