package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"newspulse/feeds"
)

// IngestRequest triggers a batch. Either a list of article URLs or a feed
// (preset name or feed URL) must be given; Count bounds feed discovery.
type IngestRequest struct {
	Sources []string `json:"sources"`
	Feed    string   `json:"feed"`
	Count   int      `json:"count"`
}

// RegisterIngestRoutes registers the ingestion endpoint.
func RegisterIngestRoutes(r *gin.Engine, deps Deps) {
	r.POST("/api/ingest", handleIngest(deps))
}

// handleIngest serves POST /api/ingest and runs the batch synchronously,
// returning the full report.
func handleIngest(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		sources := req.Sources
		if len(sources) == 0 {
			if req.Feed == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "either sources or feed is required"})
				return
			}
			count := req.Count
			if count <= 0 {
				count = deps.FetchCount
			}
			feedURL := feeds.ResolveFeedURL(req.Feed)
			discovered, err := deps.Discoverer.Discover(c.Request.Context(), feedURL, count)
			if err != nil {
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			sources = discovered
		}

		log.Printf("api: ingesting %d sources", len(sources))
		report, err := deps.Ingester.Run(c.Request.Context(), sources)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "report": report})
			return
		}

		c.JSON(http.StatusOK, report)
	}
}
