package crawl

import (
	"context"

	"ddm-news-harvester/internal/models"
	"ddm-news-harvester/internal/topics"
)

// Resolve fetches one entry's detail page and extracts its content. It never
// fails past its boundary: transport and extraction failures are recorded in
// the returned post's Error field so one broken page cannot sink a run.
func (c *Crawler) Resolve(ctx context.Context, entry models.ListingEntry) models.ResolvedPost {
	post := models.ResolvedPost{ListingEntry: entry}

	body, contentType, err := c.fetcher.Fetch(ctx, entry.DetailURL)
	if err != nil {
		c.log.Warn("detail fetch failed", "url", entry.DetailURL, "err", err)
		post.Error = err.Error()
		return post
	}
	defer body.Close()

	content, err := c.extractor.Article(body, contentType)
	if err != nil {
		c.log.Warn("detail extraction failed", "url", entry.DetailURL, "err", err)
		post.Error = err.Error()
		return post
	}

	post.Content = content
	if c.cfg.TopicCount > 0 && content != "" {
		post.Topics = topics.Top(content, c.cfg.TopicCount)
	}
	return post
}
