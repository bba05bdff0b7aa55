package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/batch"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/apperr"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/dbctx"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/repos"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/scheduler"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"
)

type SchedulerHandler struct {
	log       *logger.Logger
	svc       *scheduler.Service
	schedules repos.ScheduleRepo
	sagaLog   repos.SagaLogRepo
}

func NewSchedulerHandler(log *logger.Logger, svc *scheduler.Service, schedules repos.ScheduleRepo, sagaLog repos.SagaLogRepo) *SchedulerHandler {
	return &SchedulerHandler{
		log:       log.With("handler", "SchedulerHandler"),
		svc:       svc,
		schedules: schedules,
		sagaLog:   sagaLog,
	}
}

type calculateVolumeRequest struct {
	Profile types.CreatorProfile     `json:"profile"`
	Signals types.PerformanceSignals `json:"signals"`
}

func (h *SchedulerHandler) CalculateVolume(c *gin.Context) {
	var req calculateVolumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Profile.CreatorID == "" {
		RespondError(c, http.StatusBadRequest, "validation", &apperr.ValidationError{Field: "profile.creator_id", Reason: "required"})
		return
	}
	RespondOK(c, h.svc.CalculateVolume(req.Profile, req.Signals))
}

func (h *SchedulerHandler) GenerateSchedule(c *gin.Context) {
	var req scheduler.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	result, err := h.svc.GenerateSchedule(c.Request.Context(), req)
	if err != nil {
		h.log.Error("GenerateSchedule failed", "creator_id", req.CreatorID, "error", err)
		RespondError(c, statusFor(err), batch.Classify(err), err)
		return
	}
	// A blocked schedule is a normal outcome; the report says why.
	RespondOK(c, result)
}

type runBatchRequest struct {
	Requests                []scheduler.GenerateRequest `json:"requests"`
	Parallelism             int                         `json:"parallelism"`
	PerCreatorTimeoutSecond int                         `json:"per_creator_timeout_seconds"`
}

func (h *SchedulerHandler) RunBatch(c *gin.Context) {
	var req runBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if len(req.Requests) == 0 {
		RespondError(c, http.StatusBadRequest, "validation", &apperr.ValidationError{Field: "requests", Reason: "empty"})
		return
	}
	timeout := time.Duration(req.PerCreatorTimeoutSecond) * time.Second
	result := h.svc.RunBatch(c.Request.Context(), req.Requests, req.Parallelism, timeout)
	RespondOK(c, result)
}

func (h *SchedulerHandler) GetWeek(c *gin.Context) {
	creatorID := c.Param("creator_id")
	weekStart, err := time.Parse("2006-01-02", c.Query("week_start"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", &apperr.ValidationError{Field: "week_start", Reason: "expected YYYY-MM-DD"})
		return
	}
	week, rows, err := h.schedules.GetWeek(dbctx.From(c.Request.Context()), creatorID, weekStart)
	if err != nil {
		RespondError(c, http.StatusNotFound, "not_found", err)
		return
	}
	RespondOK(c, gin.H{"week": week, "items": rows})
}

func (h *SchedulerHandler) ListSagas(c *gin.Context) {
	creatorID := c.Param("creator_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, err := h.sagaLog.ListByCreator(c.Request.Context(), creatorID, limit)
	if err != nil {
		h.log.Error("ListSagas failed", "creator_id", creatorID, "error", err)
		RespondError(c, http.StatusInternalServerError, "load_sagas_failed", err)
		return
	}
	RespondOK(c, gin.H{"sagas": rows})
}

func statusFor(err error) int {
	var valErr *apperr.ValidationError
	switch {
	case errors.As(err, &valErr):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
