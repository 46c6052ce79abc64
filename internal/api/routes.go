package api

import (
	"github.com/JustJay7/court-case-aggregator/internal/cache"
	"github.com/JustJay7/court-case-aggregator/internal/database"
	"github.com/JustJay7/court-case-aggregator/internal/metrics"
	"github.com/JustJay7/court-case-aggregator/internal/pipeline"
	"github.com/JustJay7/court-case-aggregator/internal/portal/districtcourt"
	"github.com/JustJay7/court-case-aggregator/pkg/logger"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all application routes
func SetupRoutes(router *gin.Engine, svc *pipeline.Service, cache *cache.CaseCache, queries *database.QueryLogs, m *metrics.Metrics, logger *logger.Logger) {
	h := NewHandlers(svc, cache, queries, logger)

	router.GET("/metrics", gin.WrapH(m.Handler()))

	api := router.Group("/api")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/cache/stats", h.CacheStats)
		api.GET("/queries", h.ListQueriesAPI)

		v1 := api.Group("/v1")

		// The district court keeps its unprefixed path.
		v1.POST("/getcaseInfo", h.GetCaseInfo(districtcourt.ID))
		for _, id := range svc.Portals() {
			v1.POST("/"+id+"/getcaseInfo", h.GetCaseInfo(id))
		}

		v1.POST("/dc/bulk_q/partyname", h.SearchParty(districtcourt.ID))
		v1.POST("/cases/bulk", h.BulkSearchAPI)
	}
}
