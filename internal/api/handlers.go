package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/JustJay7/court-case-aggregator/internal/apperr"
	"github.com/JustJay7/court-case-aggregator/internal/cache"
	"github.com/JustJay7/court-case-aggregator/internal/database"
	"github.com/JustJay7/court-case-aggregator/internal/pipeline"
	"github.com/JustJay7/court-case-aggregator/internal/record"
	"github.com/JustJay7/court-case-aggregator/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	pipeline *pipeline.Service
	cache    *cache.CaseCache
	queries  *database.QueryLogs
	logger   *logger.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(svc *pipeline.Service, cache *cache.CaseCache, queries *database.QueryLogs, logger *logger.Logger) *Handlers {
	return &Handlers{
		pipeline: svc,
		cache:    cache,
		queries:  queries,
		logger:   logger,
	}
}

// lookupRequest is a case lookup body: the portal's natural key fields and
// refresh_flag, "1" to bypass the cache.
type lookupRequest struct {
	record.CaseQuery
	RefreshFlag string `json:"refresh_flag"`
}

func refreshRequested(flag string) bool {
	switch flag {
	case "1", "true", "True", "yes":
		return true
	}
	return false
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

func (h *Handlers) requestContext(c *gin.Context) context.Context {
	return pipeline.WithClientIP(c.Request.Context(), c.ClientIP())
}

// GetCaseInfo returns the lookup handler of one portal. The record is the
// response body as is.
func (h *Handlers) GetCaseInfo(portalID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req lookupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		out, err := h.pipeline.Lookup(h.requestContext(c), portalID, req.CaseQuery, refreshRequested(req.RefreshFlag))
		if err != nil {
			h.fail(c, err)
			return
		}
		c.Header("X-Cache", cacheHeader(out.FromCache))
		c.JSON(http.StatusOK, out.Record)
	}
}

func cacheHeader(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

// SearchParty handles party-name searches on the district court portal.
func (h *Handlers) SearchParty(portalID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req record.PartyQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		candidates, err := h.pipeline.SearchParty(c.Request.Context(), portalID, req)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": candidates})
	}
}

type bulkQuery struct {
	Portal string `json:"portal"`
	lookupRequest
}

// BulkSearchAPI handles bulk case lookups
func (h *Handlers) BulkSearchAPI(c *gin.Context) {
	var req struct {
		Queries []bulkQuery `json:"queries" binding:"required,min=1,max=10"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	reqs := make([]pipeline.BulkRequest, len(req.Queries))
	for i, q := range req.Queries {
		portalID := q.Portal
		if portalID == "" {
			portalID = "dc"
		}
		reqs[i] = pipeline.BulkRequest{
			Portal:  portalID,
			Query:   q.CaseQuery,
			Refresh: refreshRequested(q.RefreshFlag),
		}
	}

	jobID := uuid.NewString()
	h.logger.Info("Bulk lookup started", "job_id", jobID, "queries", len(reqs))
	results := h.pipeline.LookupMany(h.requestContext(c), reqs)

	responseData := make([]gin.H, 0, len(results))
	for _, result := range results {
		data := gin.H{
			"portal": result.Request.Portal,
			"query":  result.Request.Query,
		}

		if result.Err != nil {
			data["success"] = false
			data["status"] = apperr.HTTPStatus(result.Err)
			data["error"] = apperr.Message(result.Err)
		} else {
			data["success"] = true
			data["fromCache"] = result.Outcome.FromCache
			data["data"] = result.Outcome.Record
		}

		responseData = append(responseData, data)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"job_id":  jobID,
		"results": responseData,
	})
}

// ListQueriesAPI returns the lookup audit trail, newest first
func (h *Handlers) ListQueriesAPI(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	entries, total, err := h.queries.List(c.Request.Context(), c.Query("portal"), page, limit)
	if err != nil {
		h.fail(c, apperr.Wrap(err, apperr.KindInternal, "failed to read query log"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    entries,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealthy := h.queries.Ping(ctx) == nil
	storeHealthy := h.cache.Ping(ctx) == nil

	status, code := "healthy", http.StatusOK
	if !dbHealthy || !storeHealthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":         status,
		"database":       dbHealthy,
		"document_store": storeHealthy,
		"portals":        h.pipeline.Portals(),
		"cache":          h.cache.Stats(),
		"time":           time.Now().Unix(),
	})
}

// CacheStats returns cache statistics
func (h *Handlers) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   h.cache.Stats(),
	})
}
