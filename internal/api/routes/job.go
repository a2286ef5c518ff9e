package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/linskybing/chainjob-cache/internal/api/handlers"
)

// JobRoutes registers job endpoints
func JobRoutes(rg *gin.RouterGroup, h *handlers.JobHandler) {
	rg.GET("/jobs", h.GetJobs)
}

// CacheRoutes registers cache endpoints. Mutating routes sit behind admin.
func CacheRoutes(rg *gin.RouterGroup, h *handlers.CacheHandler, admin gin.HandlerFunc) {
	c := rg.Group("/cache")
	{
		c.GET("/stats", h.GetStats)
		c.POST("/sync", admin, h.TriggerSync)
		c.POST("/snapshot", admin, h.ExportSnapshot)
		c.DELETE("/jobs/:id", admin, h.EvictJob)
	}
}
