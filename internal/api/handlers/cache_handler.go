package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/linskybing/chainjob-cache/internal/domain/job"
	"github.com/linskybing/chainjob-cache/pkg/response"
	"go.uber.org/zap"
)

type CacheHandler struct {
	cache     CacheAdmin
	syncer    SyncTrigger
	snapshots SnapshotExporter
	logger    *zap.Logger
}

func NewCacheHandler(cache CacheAdmin, syncer SyncTrigger, snapshots SnapshotExporter, logger *zap.Logger) *CacheHandler {
	return &CacheHandler{cache: cache, syncer: syncer, snapshots: snapshots, logger: logger}
}

// GetStats godoc
// @Summary Cache statistics
// @Tags cache
// @Produce json
// @Success 200 {object} response.CacheStatsResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/cache/stats [get]
func (h *CacheHandler) GetStats(c *gin.Context) {
	stats, err := h.cache.GetCacheStats(c.Request.Context())
	if err != nil {
		h.logger.Warn("cache stats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Error: "Failed to get cache stats", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, response.CacheStatsResponse{Success: true, Cache: stats, Timestamp: time.Now().UTC()})
}

// TriggerSync godoc
// @Summary Request an immediate sync pass
// @Tags cache
// @Security BearerAuth
// @Produce json
// @Success 202 {object} response.MessageResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/cache/sync [post]
func (h *CacheHandler) TriggerSync(c *gin.Context) {
	if h.syncer == nil {
		c.JSON(http.StatusConflict, response.ErrorResponse{Error: "No in-process syncer"})
		return
	}
	if !h.syncer.Trigger() {
		c.JSON(http.StatusConflict, response.ErrorResponse{Error: "Sync already pending or syncer not running"})
		return
	}
	c.JSON(http.StatusAccepted, response.MessageResponse{Success: true, Message: "sync requested"})
}

// ExportSnapshot godoc
// @Summary Export the cache to object storage
// @Tags cache
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.SnapshotResponse
// @Failure 500 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /api/cache/snapshot [post]
func (h *CacheHandler) ExportSnapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, response.ErrorResponse{Error: "Snapshots are disabled"})
		return
	}
	name, err := h.snapshots.Export(c.Request.Context())
	if err != nil {
		h.logger.Error("snapshot export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Error: "Failed to export snapshot", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, response.SnapshotResponse{Success: true, Object: name})
}

// EvictJob godoc
// @Summary Evict one job from the cache
// @Tags cache
// @Security BearerAuth
// @Produce json
// @Param id path int true "Job ID"
// @Success 200 {object} response.MessageResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/cache/jobs/{id} [delete]
func (h *CacheHandler) EvictJob(c *gin.Context) {
	id, err := job.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Error: "Invalid job id", Details: err.Error()})
		return
	}
	err = h.cache.Evict(c.Request.Context(), id)
	if errors.Is(err, job.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, response.ErrorResponse{Error: "Job not cached"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Error: "Failed to evict job", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, response.MessageResponse{Success: true, Message: "evicted"})
}
