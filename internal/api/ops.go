package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/meridianpay/capture/internal/database"
)

// statsCacheTTL keeps aggregate stats fresh enough for dashboards without
// hitting the aggregation query on every poll.
const statsCacheTTL = 30 * time.Second

// handleListOutboxEvents handles GET /outbox/events requests. The optional
// status query narrows the listing to pending or published events.
func (s *Server) handleListOutboxEvents(c *gin.Context) {
	page := parseQueryInt(c, "page", 1)
	limit := parseQueryInt(c, "limit", 20)

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	status := c.Query("status")
	switch status {
	case "", database.OutboxStatusPending, database.OutboxStatusPublished:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid status filter",
		})
		return
	}

	offset := (page - 1) * limit

	events, total, err := s.db.ListOutboxEvents(c.Request.Context(), status, limit, offset)
	if err != nil {
		s.log.Error("Failed to list outbox events", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch outbox events",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"page":   page,
		"limit":  limit,
		"total":  total,
	})
}

// handleGetStats handles GET /stats requests
func (s *Server) handleGetStats(c *gin.Context) {
	if s.cache != nil {
		var stats database.CaptureStats
		if err := s.cache.GetJSON(c.Request.Context(), "stats:capture", &stats); err == nil {
			c.JSON(http.StatusOK, gin.H{
				"stats":  stats,
				"cached": true,
			})
			return
		}
	}

	stats, err := s.db.GetCaptureStats(c.Request.Context())
	if err != nil {
		s.log.Error("Failed to get capture stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch stats",
		})
		return
	}

	if s.cache != nil {
		s.cache.SetJSON(c.Request.Context(), "stats:capture", stats, statsCacheTTL)
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": stats,
	})
}
