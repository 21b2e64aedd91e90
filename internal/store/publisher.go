package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"ddm-news-harvester/internal/models"
)

// PersistenceError marks a failed step of the publish sequence.
type PersistenceError struct {
	Stage string // staging, archiving, committing
	Path  string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("publish %s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

const (
	currentFile = "posts.json"
	stagingFile = "posts_new.json"
)

// Publisher owns the published dataset: an on-disk current file with
// timestamped archives of every prior version, mirrored by an in-memory
// snapshot that readers access lock-free. A publish either fully replaces
// the current dataset or leaves it untouched.
type Publisher struct {
	currentDir  string
	archiveDir  string
	currentPath string
	stagingPath string
	log         *slog.Logger
	now         func() time.Time

	current atomic.Pointer[[]models.ResolvedPost]
}

func New(dataDir string, log *slog.Logger) (*Publisher, error) {
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{
		currentDir: filepath.Join(dataDir, "current"),
		archiveDir: filepath.Join(dataDir, "archive"),
		log:        log,
		now:        time.Now,
	}
	p.currentPath = filepath.Join(p.currentDir, currentFile)
	p.stagingPath = filepath.Join(p.currentDir, stagingFile)

	for _, dir := range []string{p.currentDir, p.archiveDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &PersistenceError{Stage: "init", Path: dir, Err: err}
		}
	}
	p.load()
	return p, nil
}

// load restores the snapshot from a current file left by a previous process.
// A corrupt or missing file just means starting empty.
func (p *Publisher) load() {
	data, err := os.ReadFile(p.currentPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			p.log.Warn("could not read current dataset", "path", p.currentPath, "err", err)
		}
		return
	}
	var posts []models.ResolvedPost
	if err := json.Unmarshal(data, &posts); err != nil {
		p.log.Warn("could not parse current dataset, starting empty", "path", p.currentPath, "err", err)
		return
	}
	p.current.Store(&posts)
	p.log.Info("loaded current dataset", "posts", len(posts))
}

// Current returns the published dataset snapshot. The returned slice is the
// committed dataset itself and must not be mutated.
func (p *Publisher) Current() []models.ResolvedPost {
	if v := p.current.Load(); v != nil {
		return *v
	}
	return nil
}

// Publish commits posts as the new current dataset: stage to a temp file,
// archive the existing current file, then rename the staged file into place.
// Renames keep "current" atomically visible; on any failure the staged temp
// is removed and the previous dataset stays authoritative (an already-taken
// archive step is harmless and not reversed).
func (p *Publisher) Publish(posts []models.ResolvedPost) error {
	posts = dedupe(posts)

	if err := writeJSON(p.stagingPath, posts); err != nil {
		_ = os.Remove(p.stagingPath)
		return &PersistenceError{Stage: "staging", Path: p.stagingPath, Err: err}
	}

	if _, err := os.Stat(p.currentPath); err == nil {
		archivePath := p.archiveName()
		if err := os.Rename(p.currentPath, archivePath); err != nil {
			_ = os.Remove(p.stagingPath)
			return &PersistenceError{Stage: "archiving", Path: archivePath, Err: err}
		}
		p.log.Info("archived previous dataset", "path", archivePath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		_ = os.Remove(p.stagingPath)
		return &PersistenceError{Stage: "archiving", Path: p.currentPath, Err: err}
	}

	if err := os.Rename(p.stagingPath, p.currentPath); err != nil {
		_ = os.Remove(p.stagingPath)
		return &PersistenceError{Stage: "committing", Path: p.currentPath, Err: err}
	}

	p.current.Store(&posts)
	return nil
}

// archiveName picks a timestamped name for today's archive, refining with a
// finer time component when a same-day name is already taken.
func (p *Publisher) archiveName() string {
	now := p.now()
	for _, layout := range []string{"20060102", "20060102_1504", "20060102_150405"} {
		name := filepath.Join(p.archiveDir, "posts_"+now.Format(layout)+".json")
		if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
			return name
		}
	}
	// multiple publishes inside one second
	for i := 2; ; i++ {
		name := filepath.Join(p.archiveDir, fmt.Sprintf("posts_%s_%d.json", now.Format("20060102_150405"), i))
		if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
			return name
		}
	}
}

// LastUpdated reports when the dataset last changed, derived from the newest
// archive file name. ok is false when no archive exists yet.
func (p *Publisher) LastUpdated() (time.Time, bool) {
	entries, err := os.ReadDir(p.archiveDir)
	if err != nil {
		p.log.Warn("could not read archive directory", "path", p.archiveDir, "err", err)
		return time.Time{}, false
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "posts_") && strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return time.Time{}, false
	}
	sort.Strings(names)
	stamp := strings.TrimSuffix(strings.TrimPrefix(names[len(names)-1], "posts_"), ".json")

	for _, layout := range []string{"20060102_150405", "20060102_1504", "20060102"} {
		if t, err := time.ParseInLocation(layout, stamp, time.Local); err == nil {
			return t, true
		}
	}
	// counter-suffixed name: fall back to its date part
	if i := strings.IndexByte(stamp, '_'); i > 0 {
		if t, err := time.ParseInLocation("20060102", stamp[:i], time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dedupe drops repeated detail URLs, keeping the first occurrence so
// discovery order is preserved.
func dedupe(posts []models.ResolvedPost) []models.ResolvedPost {
	seen := make(map[string]struct{}, len(posts))
	out := make([]models.ResolvedPost, 0, len(posts))
	for _, p := range posts {
		if _, dup := seen[p.DetailURL]; dup {
			continue
		}
		seen[p.DetailURL] = struct{}{}
		out = append(out, p)
	}
	return out
}

func writeJSON(path string, posts []models.ResolvedPost) error {
	data, err := json.MarshalIndent(posts, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
