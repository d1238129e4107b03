package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	app "github.com/erp/marketsync/internal/application/integration"
	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/infrastructure/scheduler"
	"github.com/erp/marketsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// SyncAPI is the application surface served over HTTP
type SyncAPI interface {
	RunOrderSync(ctx context.Context, req app.RunRequest) (*app.RunResult, error)
	RunTransactionSync(ctx context.Context, req app.TransactionRunRequest) (*app.RunResult, error)
	RunPayoutSync(ctx context.Context, req app.RunRequest) (*app.RunResult, error)
	ArchiveTransactions(ctx context.Context, req app.ArchiveRequest) (*app.RunResult, error)
	GetRun(ctx context.Context, id uuid.UUID) (*app.RunResult, error)
	RecentRuns(ctx context.Context, kind integration.RunKind, limit int) ([]app.RunResult, error)
}

// JobQueue queues background runs
type JobQueue interface {
	Trigger(kind integration.RunKind) (*scheduler.SyncJob, error)
	History(limit int) []*scheduler.SyncJob
}

// SyncHandler serves the synchronization endpoints
type SyncHandler struct {
	BaseHandler
	service  SyncAPI
	jobs     JobQueue
	validate *validator.Validate
}

// NewSyncHandler creates a SyncHandler. jobs may be nil when the scheduler is disabled.
func NewSyncHandler(service SyncAPI, jobs JobQueue) *SyncHandler {
	return &SyncHandler{
		service:  service,
		jobs:     jobs,
		validate: newValidator(),
	}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/sync")
	g.POST("/orders", h.SyncOrders)
	g.POST("/transactions", h.SyncTransactions)
	g.POST("/payouts", h.SyncPayouts)
	g.POST("/archive", h.Archive)
	g.GET("/runs", h.ListRuns)
	g.GET("/runs/:id", h.GetRun)
	g.GET("/jobs", h.ListJobs)
	g.POST("/jobs/:kind", h.TriggerJob)
}

// ---------------------------------------------------------------------------
// Request and response bodies
// ---------------------------------------------------------------------------

// SyncRequest is the body of the order and payout endpoints
type SyncRequest struct {
	Days *int `json:"days" validate:"omitempty,gte=1,lte=365"`
}

// TransactionSyncRequest is the body of the transaction endpoint
type TransactionSyncRequest struct {
	Days     *int  `json:"days" validate:"omitempty,gte=1,lte=365"`
	NotToday *bool `json:"not_today"`
}

// ArchiveSyncRequest is the body of the archive endpoint
type ArchiveSyncRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// RunListQuery filters the run history
type RunListQuery struct {
	Kind  string `form:"kind" validate:"required,oneof=ORDERS TRANSACTIONS PAYOUTS ARCHIVE"`
	Limit int    `form:"limit" validate:"omitempty,gte=1,lte=100"`
}

// JobResponse is one scheduled job
type JobResponse struct {
	ID          uuid.UUID           `json:"id"`
	Kind        integration.RunKind `json:"kind"`
	Status      scheduler.JobStatus `json:"status"`
	Error       string              `json:"error,omitempty"`
	RetryCount  int                 `json:"retry_count"`
	MaxRetries  int                 `json:"max_retries"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	NextRetryAt *time.Time          `json:"next_retry_at,omitempty"`
	RunID       *uuid.UUID          `json:"run_id,omitempty"`
}

func toJobResponse(j *scheduler.SyncJob) JobResponse {
	resp := JobResponse{
		ID:          j.ID,
		Kind:        j.Kind,
		Status:      j.Status,
		Error:       j.Error,
		RetryCount:  j.RetryCount,
		MaxRetries:  j.MaxRetries,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		NextRetryAt: j.NextRetryAt,
	}
	if j.RunID != uuid.Nil {
		id := j.RunID
		resp.RunID = &id
	}
	return resp
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

// SyncOrders runs an order sync and returns its result
func (h *SyncHandler) SyncOrders(c *gin.Context) {
	var req SyncRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.service.RunOrderSync(c.Request.Context(), app.RunRequest{Days: req.Days})
	h.respondRun(c, result, err)
}

// SyncTransactions runs a transaction sync and returns its result
func (h *SyncHandler) SyncTransactions(c *gin.Context) {
	var req TransactionSyncRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.service.RunTransactionSync(c.Request.Context(), app.TransactionRunRequest{
		Days:     req.Days,
		NotToday: req.NotToday,
	})
	h.respondRun(c, result, err)
}

// SyncPayouts runs a payout sync and returns its result
func (h *SyncHandler) SyncPayouts(c *gin.Context) {
	var req SyncRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.service.RunPayoutSync(c.Request.Context(), app.RunRequest{Days: req.Days})
	h.respondRun(c, result, err)
}

// Archive writes the archive objects of a closed date range
func (h *SyncHandler) Archive(c *gin.Context) {
	var req ArchiveSyncRequest
	if !h.bind(c, &req) {
		return
	}
	// both values passed the datetime check
	start, _ := time.Parse(time.DateOnly, req.StartDate)
	end, _ := time.Parse(time.DateOnly, req.EndDate)
	result, err := h.service.ArchiveTransactions(c.Request.Context(), app.ArchiveRequest{StartDate: start, EndDate: end})
	h.respondRun(c, result, err)
}

// ListRuns returns the latest runs of one kind
func (h *SyncHandler) ListRuns(c *gin.Context) {
	var q RunListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(&q); err != nil {
		h.ValidationError(c, validationDetails(err))
		return
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	runs, err := h.service.RecentRuns(c.Request.Context(), integration.RunKind(q.Kind), q.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse(runs, len(runs), q.Limit))
}

// GetRun returns one run with its log
func (h *SyncHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid run ID format")
		return
	}
	result, err := h.service.GetRun(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ListJobs returns the scheduler history, newest first
func (h *SyncHandler) ListJobs(c *gin.Context) {
	if h.jobs == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Scheduler is disabled")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		h.BadRequest(c, "limit must be a positive integer")
		return
	}
	jobs := h.jobs.History(limit)
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	c.JSON(http.StatusOK, dto.NewListResponse(out, len(out), limit))
}

// TriggerJob queues a background run of the kind in the path
func (h *SyncHandler) TriggerJob(c *gin.Context) {
	if h.jobs == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Scheduler is disabled")
		return
	}
	kind := integration.RunKind(c.Param("kind"))
	if !kind.IsValid() || kind == integration.RunKindArchive {
		h.BadRequest(c, "kind must be one of ORDERS, TRANSACTIONS, PAYOUTS")
		return
	}
	job, err := h.jobs.Trigger(kind)
	switch {
	case errors.Is(err, scheduler.ErrJobActive):
		h.Conflict(c, dto.ErrCodeJobActive, err.Error())
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, err.Error())
	case err != nil:
		h.HandleError(c, err)
	default:
		h.Accepted(c, toJobResponse(job))
	}
}

// bind decodes an optional JSON body and validates it. An empty body leaves
// req at its zero value.
func (h *SyncHandler) bind(c *gin.Context, req any) bool {
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, err.Error())
			return false
		}
	}
	if err := h.validate.Struct(req); err != nil {
		h.ValidationError(c, validationDetails(err))
		return false
	}
	return true
}

func (h *SyncHandler) respondRun(c *gin.Context, result *app.RunResult, err error) {
	if result != nil && result.RunID != uuid.Nil {
		c.Header("X-Run-ID", result.RunID.String())
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
