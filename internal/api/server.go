package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ddm-news-harvester/internal/crawl"
	"ddm-news-harvester/internal/ioformats"
	"ddm-news-harvester/internal/models"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Store is the read side of the published dataset. Implemented by
// store.Publisher.
type Store interface {
	Current() []models.ResolvedPost
	LastUpdated() (time.Time, bool)
}

// Runner triggers one harvest run. Implemented by crawl.Runner.
type Runner interface {
	RunOnce(ctx context.Context) error
}

type server struct {
	store  Store
	runner Runner
	log    *slog.Logger
}

type postsResponse struct {
	Posts       []models.ResolvedPost `json:"posts"`
	Total       int                   `json:"total"`
	Offset      int                   `json:"offset"`
	Limit       int                   `json:"limit"`
	HasMore     bool                  `json:"has_more"`
	LastUpdated *string               `json:"last_updated"`
}

func NewRouter(store Store, runner Runner, log *slog.Logger) *gin.Engine {
	if log == nil {
		log = slog.Default()
	}
	s := &server{store: store, runner: runner, log: log}

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", s.health)
	r.GET("/posts", s.posts)
	r.GET("/posts/export", s.export)
	r.POST("/scrape", s.scrape)
	return r
}

func (s *server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// posts serves one page of the current dataset. Readers always see either
// the fully previous or fully new dataset: the snapshot is taken once here.
func (s *server) posts(c *gin.Context) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be an integer >= 0"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 || limit > maxLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer between 1 and 100"})
		return
	}

	current := s.store.Current()
	total := len(current)

	// clamp before adding: offset may be any non-negative int, and
	// offset+limit must not overflow
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	page := make([]models.ResolvedPost, 0, end-start)
	page = append(page, current[start:end]...)

	var lastUpdated *string
	if ts, ok := s.store.LastUpdated(); ok {
		formatted := ts.Format(time.RFC3339)
		lastUpdated = &formatted
	}

	c.JSON(http.StatusOK, postsResponse{
		Posts:       page,
		Total:       total,
		Offset:      offset,
		Limit:       limit,
		HasMore:     end < total,
		LastUpdated: lastUpdated,
	})
}

func (s *server) export(c *gin.Context) {
	current := s.store.Current()
	switch c.DefaultQuery("format", "ndjson") {
	case "ndjson":
		c.Header("Content-Type", "application/x-ndjson")
		if err := ioformats.WriteNDJSON(c.Writer, current); err != nil {
			s.log.Error("ndjson export failed", "err", err)
		}
	case "csv":
		c.Header("Content-Type", "text/csv")
		if err := ioformats.WriteCSV(c.Writer, current); err != nil {
			s.log.Error("csv export failed", "err", err)
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be ndjson or csv"})
	}
}

// scrape triggers a harvest run outside the daily schedule. The run is
// single-flighted with the scheduled one.
func (s *server) scrape(c *gin.Context) {
	s.log.Info("manual scrape triggered")
	err := s.runner.RunOnce(c.Request.Context())
	switch {
	case errors.Is(err, crawl.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{
			"message": "scrape completed",
			"posts":   len(s.store.Current()),
		})
	}
}
