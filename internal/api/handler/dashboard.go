package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vinialveslopesanjos/sentimenta/internal/api/middleware"
	"github.com/vinialveslopesanjos/sentimenta/internal/cache"
	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"github.com/vinialveslopesanjos/sentimenta/internal/repository"
)

// DashboardHandler serves aggregated sentiment views, memoized in the
// dashboard cache so repeated polls stay cheap between pipeline runs.
type DashboardHandler struct {
	connections *repository.ConnectionRepository
	posts       *repository.PostRepository
	summaries   *repository.SummaryRepository
	cache       *cache.DashboardCache
}

// NewDashboardHandler creates a new dashboard handler.
// Parameters:
//   - connections: connection repository.
//   - posts: post repository.
//   - summaries: summary repository.
//   - dashCache: redis-backed cache, nil disables memoization.
//
// Returns:
//   - *DashboardHandler: initialized handler.
func NewDashboardHandler(
	connections *repository.ConnectionRepository,
	posts *repository.PostRepository,
	summaries *repository.SummaryRepository,
	dashCache *cache.DashboardCache,
) *DashboardHandler {
	return &DashboardHandler{
		connections: connections,
		posts:       posts,
		summaries:   summaries,
		cache:       dashCache,
	}
}

// connectionSummary aggregates every post summary under one connection.
type connectionSummary struct {
	ConnectionID  string               `json:"connection_id"`
	Platform      string               `json:"platform"`
	Username      string               `json:"username"`
	Posts         int                  `json:"posts"`
	TotalComments int                  `json:"total_comments"`
	TotalAnalyzed int                  `json:"total_analyzed"`
	AvgScore      *float64             `json:"avg_score,omitempty"`
	Summaries     []domain.PostSummary `json:"post_summaries"`
}

type dashboardSummary struct {
	UserID      string              `json:"user_id"`
	Connections []connectionSummary `json:"connections"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// Summary handles GET /api/v1/dashboard/summary. Requires a user_id query
// parameter. Served from cache when a fresh entry exists; rebuilt from the
// summary rows otherwise.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *DashboardHandler) Summary(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Query parameter 'user_id' is required",
		})
		return
	}

	ctx := c.Request.Context()

	if h.cache != nil {
		if payload, hit, err := h.cache.Get(ctx, cache.SummaryKey(userID)); err != nil {
			middleware.GetLogger(c).WithError(err).Warn("Dashboard cache read failed")
		} else if hit {
			c.Header("X-Cache", "hit")
			c.Data(http.StatusOK, "application/json", []byte(payload))
			return
		}
	}

	result, err := h.build(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to build dashboard summary: " + err.Error(),
		})
		return
	}

	if h.cache != nil {
		if payload, err := json.Marshal(result); err == nil {
			if err := h.cache.Set(ctx, cache.SummaryKey(userID), string(payload)); err != nil {
				middleware.GetLogger(c).WithError(err).Warn("Dashboard cache write failed")
			}
		}
	}

	c.Header("X-Cache", "miss")
	c.JSON(http.StatusOK, result)
}

// build assembles the summary view from stored rows.
func (h *DashboardHandler) build(ctx context.Context, userID string) (*dashboardSummary, error) {
	conns, err := h.connections.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &dashboardSummary{
		UserID:      userID,
		Connections: make([]connectionSummary, 0, len(conns)),
		GeneratedAt: time.Now().UTC(),
	}

	for i := range conns {
		conn := &conns[i]
		summaries, err := h.summaries.ListByConnection(ctx, conn.ID)
		if err != nil {
			return nil, err
		}
		postCount, err := h.posts.CountByConnection(ctx, conn.ID)
		if err != nil {
			return nil, err
		}

		cs := connectionSummary{
			ConnectionID: conn.ID,
			Platform:     conn.Platform,
			Username:     conn.Username,
			Posts:        int(postCount),
			Summaries:    summaries,
		}

		var scoreSum float64
		var scoreN int
		for j := range summaries {
			cs.TotalComments += summaries[j].TotalComments
			cs.TotalAnalyzed += summaries[j].TotalAnalyzed
			if summaries[j].AvgScore != nil {
				scoreSum += *summaries[j].AvgScore
				scoreN++
			}
		}
		if scoreN > 0 {
			avg := scoreSum / float64(scoreN)
			cs.AvgScore = &avg
		}
		result.Connections = append(result.Connections, cs)
	}

	return result, nil
}
