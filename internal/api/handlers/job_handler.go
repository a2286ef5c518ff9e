package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linskybing/chainjob-cache/internal/chain"
	"github.com/linskybing/chainjob-cache/internal/domain/job"
	"github.com/linskybing/chainjob-cache/pkg/response"
	"github.com/linskybing/chainjob-cache/pkg/utils"
	"go.uber.org/zap"
)

// retryAfterSeconds is advertised when a chain read timed out.
const retryAfterSeconds = "5"

// JobHandler handles job-related HTTP endpoints.
type JobHandler struct {
	svc    JobReader
	logger *zap.Logger
}

// NewJobHandler creates a new job handler.
func NewJobHandler(svc JobReader, logger *zap.Logger) *JobHandler {
	return &JobHandler{svc: svc, logger: logger}
}

// GetJobs godoc
// @Summary Get one job or a filtered page of jobs
// @Description With jobId returns a single job; otherwise lists jobs matching status and client, ordered by id.
// @Tags jobs
// @Produce json
// @Param jobId query int false "Job ID"
// @Param status query int false "Status ordinal (0-5)"
// @Param client query string false "Client address"
// @Param limit query int false "Page size (default 50, max 500)"
// @Param offset query int false "Page offset"
// @Success 200 {object} response.JobListResponse
// @Success 304 "Not Modified"
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse "Job not found"
// @Failure 500 {object} response.ErrorResponse "Failed to fetch jobs"
// @Router /api/jobs [get]
func (h *JobHandler) GetJobs(c *gin.Context) {
	if raw, ok := c.GetQuery("jobId"); ok {
		h.getJob(c, raw)
		return
	}

	f, ok := bindFilter(c)
	if !ok {
		return
	}

	jobs, source, err := h.svc.ListJobs(c.Request.Context(), f)
	if err != nil {
		h.chainError(c, err)
		return
	}
	utils.JSONWithETag(c, http.StatusOK, response.JobListResponse{Jobs: jobs, Count: len(jobs), Source: string(source)})
}

// bindFilter parses the listing query and answers 400 itself when it is
// invalid.
func bindFilter(c *gin.Context) (job.Filter, bool) {
	var params job.FilterParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Error: "Invalid query parameters", Details: err.Error()})
		return job.Filter{}, false
	}
	f, err := job.ParseFilter(params)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Error: "Invalid query parameters", Details: err.Error()})
		return job.Filter{}, false
	}
	return f, true
}

func (h *JobHandler) getJob(c *gin.Context, raw string) {
	id, err := job.ParseID(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Error: "Invalid jobId", Details: err.Error()})
		return
	}

	j, source, err := h.svc.GetJob(c.Request.Context(), id)
	if errors.Is(err, job.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, response.ErrorResponse{Error: "Job not found"})
		return
	}
	if err != nil {
		h.chainError(c, err)
		return
	}
	utils.JSONWithETag(c, http.StatusOK, response.JobResponse{Job: j, Source: string(source)})
}

func (h *JobHandler) chainError(c *gin.Context, err error) {
	h.logger.Error("chain read failed",
		zap.String("request_id", c.GetString("request_id")),
		zap.String("query", c.Request.URL.RawQuery),
		zap.Error(err),
	)
	if errors.Is(err, chain.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		c.Header("Retry-After", retryAfterSeconds)
	}
	c.JSON(http.StatusInternalServerError, response.ErrorResponse{Error: "Failed to fetch jobs", Details: err.Error()})
}
