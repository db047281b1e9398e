package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"newspulse/config"
	"newspulse/errs"
	"newspulse/index"
	"newspulse/types"
)

// Searcher is the search capability the controller depends on.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]types.SearchResult, error)
}

// Ingester runs an ingestion batch over a list of sources.
type Ingester interface {
	Run(ctx context.Context, sources []string) (types.BatchReport, error)
}

// Discoverer resolves a feed into article source URLs.
type Discoverer interface {
	Discover(ctx context.Context, feedURL string, maxCount int) ([]string, error)
}

// Deps wires the controllers to the underlying services.
type Deps struct {
	Searcher   Searcher
	Ingester   Ingester
	Discoverer Discoverer
	Store      index.Store
	FetchCount int
}

// RegisterSearchRoutes registers the search endpoint.
func RegisterSearchRoutes(r *gin.Engine, deps Deps) {
	r.GET("/api/search", handleSearch(deps))
}

// handleSearch serves GET /api/search?query=...&top_k=N.
func handleSearch(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Query("query")

		topK := config.DefaultTopK
		if raw := c.Query("top_k"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "top_k must be an integer"})
				return
			}
			topK = n
		}
		if topK > config.MaxTopK {
			topK = config.MaxTopK
		}

		results, err := deps.Searcher.Search(c.Request.Context(), query, topK)
		if err != nil {
			switch {
			case errors.Is(err, errs.ErrInvalidQuery):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case errors.Is(err, errs.ErrStoreUnavailable):
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"query":   query,
			"results": results,
		})
	}
}
