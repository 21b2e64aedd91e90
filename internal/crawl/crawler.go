package crawl

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"ddm-news-harvester/internal/models"
)

// Fetcher retrieves one URL. Implemented by fetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, string, error)
}

// Extractor turns fetched markup into structured data. Implemented by
// extract.Extractor.
type Extractor interface {
	Listing(r io.Reader, contentType, pageURL string) ([]models.ListingEntry, string, error)
	Article(r io.Reader, contentType string) (string, error)
}

type Config struct {
	EntryURL string
	// MaxPages bounds the pagination walk so a malformed or cyclic next-page
	// control cannot keep the crawl alive forever.
	MaxPages  int
	BatchSize int
	// TopicCount keywords are derived per resolved post; 0 disables.
	TopicCount int
}

// Crawler walks the paginated listing and resolves every entry to its full
// article content.
type Crawler struct {
	fetcher   Fetcher
	extractor Extractor
	log       *slog.Logger
	cfg       Config
}

func New(fetcher Fetcher, extractor Extractor, log *slog.Logger, cfg Config) *Crawler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &Crawler{fetcher: fetcher, extractor: extractor, log: log, cfg: cfg}
}

// Crawl follows the listing pagination from the entry URL and returns all
// entries in encounter order. Any listing-page fetch or extraction failure
// fails the whole crawl: a partial listing must never look like a complete
// dataset.
func (c *Crawler) Crawl(ctx context.Context) ([]models.ListingEntry, error) {
	var all []models.ListingEntry
	cursor := c.cfg.EntryURL

	for page := 1; cursor != ""; page++ {
		if page > c.cfg.MaxPages {
			c.log.Warn("page cap reached, stopping pagination", "max_pages", c.cfg.MaxPages)
			break
		}
		c.log.Info("fetching listing page", "page", page, "url", cursor)

		body, contentType, err := c.fetcher.Fetch(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("listing page %d: %w", page, err)
		}
		entries, next, err := c.extractor.Listing(body, contentType, cursor)
		body.Close()
		if err != nil {
			return nil, fmt.Errorf("listing page %d: %w", page, err)
		}

		c.log.Info("listing page extracted", "page", page, "entries", len(entries))
		all = append(all, entries...)
		cursor = next
	}
	return all, nil
}
