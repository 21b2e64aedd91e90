package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ddm-news-harvester/internal/models"
)

func post(url, content string) models.ResolvedPost {
	return models.ResolvedPost{
		ListingEntry: models.ListingEntry{Title: "t " + url, DetailURL: url},
		Content:      content,
	}
}

func newTestPublisher(t *testing.T) *Publisher {
	t.Helper()
	p, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	return p
}

func archiveFiles(t *testing.T, p *Publisher) []string {
	t.Helper()
	entries, err := os.ReadDir(p.archiveDir)
	if err != nil {
		t.Fatalf("read archive dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestPublishFirstRun(t *testing.T) {
	p := newTestPublisher(t)
	posts := []models.ResolvedPost{post("http://x/1", "one"), post("http://x/2", "two")}

	if err := p.Publish(posts); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := p.Current(); len(got) != 2 || got[0].DetailURL != "http://x/1" {
		t.Fatalf("unexpected snapshot: %#v", got)
	}
	if n := len(archiveFiles(t, p)); n != 0 {
		t.Fatalf("first publish must not archive, got %d files", n)
	}
	if _, err := os.Stat(p.currentPath); err != nil {
		t.Fatalf("current file missing: %v", err)
	}
	if _, err := os.Stat(p.stagingPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("staging file left behind: %v", err)
	}
}

func TestPublishArchivesPrevious(t *testing.T) {
	p := newTestPublisher(t)
	p.now = func() time.Time { return time.Date(2025, 8, 30, 3, 1, 2, 0, time.Local) }

	if err := p.Publish([]models.ResolvedPost{post("http://x/1", "one")}); err != nil {
		t.Fatalf("publish 1: %v", err)
	}
	if err := p.Publish([]models.ResolvedPost{post("http://x/2", "two")}); err != nil {
		t.Fatalf("publish 2: %v", err)
	}

	names := archiveFiles(t, p)
	if len(names) != 1 || names[0] != "posts_20250830.json" {
		t.Fatalf("unexpected archives: %#v", names)
	}
	if got := p.Current(); len(got) != 1 || got[0].DetailURL != "http://x/2" {
		t.Fatalf("unexpected snapshot: %#v", got)
	}
}

func TestPublishSameDayArchiveNameRefined(t *testing.T) {
	p := newTestPublisher(t)
	p.now = func() time.Time { return time.Date(2025, 8, 30, 3, 1, 2, 0, time.Local) }

	for i := 0; i < 4; i++ {
		if err := p.Publish([]models.ResolvedPost{post("http://x/1", "v")}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	names := archiveFiles(t, p)
	want := map[string]bool{
		"posts_20250830.json":        true,
		"posts_20250830_0301.json":   true,
		"posts_20250830_030102.json": true,
	}
	if len(names) != 3 {
		t.Fatalf("want 3 distinct archives, got %#v", names)
	}
	for _, n := range names {
		if !want[n] {
			t.Fatalf("unexpected archive name %q in %#v", n, names)
		}
	}
}

func TestPublishStagingFailureLeavesCurrentUntouched(t *testing.T) {
	p := newTestPublisher(t)
	if err := p.Publish([]models.ResolvedPost{post("http://x/1", "one")}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	before, err := os.ReadFile(p.currentPath)
	if err != nil {
		t.Fatalf("read current: %v", err)
	}

	// a directory squatting on the staging path makes the staging write fail
	if err := os.Mkdir(p.stagingPath, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	err = p.Publish([]models.ResolvedPost{post("http://x/2", "two")})
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Stage != "staging" {
		t.Fatalf("want staging PersistenceError, got %v", err)
	}

	after, err := os.ReadFile(p.currentPath)
	if err != nil {
		t.Fatalf("read current: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("current file changed despite staging failure")
	}
	if got := p.Current(); len(got) != 1 || got[0].DetailURL != "http://x/1" {
		t.Fatalf("snapshot changed despite staging failure: %#v", got)
	}
}

func TestPublishArchiveFailureRollsBack(t *testing.T) {
	p := newTestPublisher(t)
	if err := p.Publish([]models.ResolvedPost{post("http://x/1", "one")}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	before, _ := os.ReadFile(p.currentPath)

	// a regular file where the archive directory should be breaks the rename
	if err := os.Remove(p.archiveDir); err != nil {
		t.Fatalf("remove archive dir: %v", err)
	}
	if err := os.WriteFile(p.archiveDir, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	err := p.Publish([]models.ResolvedPost{post("http://x/2", "two")})
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Stage != "archiving" {
		t.Fatalf("want archiving PersistenceError, got %v", err)
	}
	after, _ := os.ReadFile(p.currentPath)
	if string(before) != string(after) {
		t.Fatal("current file changed despite archive failure")
	}
	if _, err := os.Stat(p.stagingPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("staged temp not cleaned up")
	}
	if got := p.Current(); len(got) != 1 || got[0].DetailURL != "http://x/1" {
		t.Fatalf("snapshot changed despite archive failure: %#v", got)
	}
}

func TestPublishDeduplicatesByDetailURL(t *testing.T) {
	p := newTestPublisher(t)
	posts := []models.ResolvedPost{
		post("http://x/1", "first"),
		post("http://x/2", "two"),
		post("http://x/1", "duplicate"),
	}
	if err := p.Publish(posts); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got := p.Current()
	if len(got) != 2 {
		t.Fatalf("want 2 posts after dedup, got %d", len(got))
	}
	if got[0].Content != "first" || got[1].DetailURL != "http://x/2" {
		t.Fatalf("dedup must keep first occurrence in order: %#v", got)
	}
}

func TestLastUpdated(t *testing.T) {
	p := newTestPublisher(t)
	if _, ok := p.LastUpdated(); ok {
		t.Fatal("want no last_updated before any archive")
	}

	p.now = func() time.Time { return time.Date(2025, 8, 30, 3, 1, 2, 0, time.Local) }
	_ = p.Publish([]models.ResolvedPost{post("http://x/1", "one")})
	_ = p.Publish([]models.ResolvedPost{post("http://x/1", "two")})

	ts, ok := p.LastUpdated()
	if !ok {
		t.Fatal("want last_updated after archive exists")
	}
	if ts.Year() != 2025 || ts.Month() != 8 || ts.Day() != 30 {
		t.Fatalf("unexpected last_updated %v", ts)
	}
}

func TestNewLoadsExistingCurrent(t *testing.T) {
	dir := t.TempDir()
	p1, err := New(dir, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := p1.Publish([]models.ResolvedPost{post("http://x/1", "one")}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	p2, err := New(dir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := p2.Current(); len(got) != 1 || got[0].Content != "one" {
		t.Fatalf("expected restart to restore dataset, got %#v", got)
	}
}

func TestCorruptCurrentStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "current"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "current", currentFile), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := New(dir, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := p.Current(); len(got) != 0 {
		t.Fatalf("want empty dataset, got %#v", got)
	}
}
