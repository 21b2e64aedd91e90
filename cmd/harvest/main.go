package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"ddm-news-harvester/internal/config"
	"ddm-news-harvester/internal/crawl"
	"ddm-news-harvester/internal/extract"
	"ddm-news-harvester/internal/fetch"
	"ddm-news-harvester/internal/ioformats"
	"ddm-news-harvester/internal/store"
	"ddm-news-harvester/pkg/logger"
)

// harvest runs one crawl outside the daily schedule: either publishing into
// a data directory like the service would, or dumping the resolved dataset
// as NDJSON for inspection.
func main() {
	entry := flag.String("entry", "", "listing entry URL (default from config)")
	pages := flag.Int("pages", 0, "max listing pages (default from config)")
	batch := flag.Int("batch", 0, "detail resolution batch size (default from config)")
	data := flag.String("data", "", "publish into this data directory instead of dumping NDJSON")
	out := flag.String("output", "", "output NDJSON file (default stdout)")
	flag.Parse()

	godotenv.Load()
	log := logger.New()
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if *entry != "" {
		cfg.Source.EntryURL = *entry
	}
	if *pages > 0 {
		cfg.Source.MaxPages = *pages
	}
	if *batch > 0 {
		cfg.Source.BatchSize = *batch
	}

	client := fetch.NewClient(cfg.Fetch.Timeout, cfg.Fetch.DialTimeout, cfg.Fetch.SizeCap, cfg.Fetch.RequestsPerSecond, cfg.Fetch.UserAgent)
	crawler := crawl.New(client, extract.New(log), log, crawl.Config{
		EntryURL:   cfg.Source.EntryURL,
		MaxPages:   cfg.Source.MaxPages,
		BatchSize:  cfg.Source.BatchSize,
		TopicCount: cfg.Source.TopicCount,
	})
	ctx := context.Background()

	if *data != "" {
		publisher, err := store.New(*data, log)
		if err != nil {
			fmt.Fprintln(os.Stderr, "init storage:", err)
			os.Exit(1)
		}
		if err := crawl.NewRunner(crawler, publisher, log).RunOnce(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "harvest:", err)
			os.Exit(1)
		}
		return
	}

	entries, err := crawler.Crawl(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "crawl:", err)
		os.Exit(1)
	}
	posts := crawler.ResolveAll(ctx, entries)

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintln(os.Stderr, "create output:", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}
	if err := ioformats.WriteNDJSON(w, posts); err != nil {
		fmt.Fprintln(os.Stderr, "write output:", err)
		os.Exit(1)
	}
}
