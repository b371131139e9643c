package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/dto"
	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/logger"
	"github.com/Methodus-dev/methodus-shorts-planner/usecase"
)

// ITrendHandler defines the trend HTTP handlers
type ITrendHandler interface {
	GetTrending(ctx *gin.Context)
	GetFilterOptions(ctx *gin.Context)
	GetKeywordTrends(ctx *gin.Context)
	ExportCSV(ctx *gin.Context)
	Status(ctx *gin.Context)
	Refresh(ctx *gin.Context)
}

type TrendHandler struct {
	trendUseCase usecase.ITrendUseCase
}

func NewTrendHandler(trendUseCase usecase.ITrendUseCase) ITrendHandler {
	return &TrendHandler{trendUseCase: trendUseCase}
}

// GetTrending handles GET /api/trends
func (h *TrendHandler) GetTrending(ctx *gin.Context) {
	var req dto.TrendQueryRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query", "message": err.Error()})
		return
	}

	response, err := h.trendUseCase.GetTrending(ctx.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidQuery) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query", "message": err.Error()})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get trends", "message": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": response})
}

// GetFilterOptions handles GET /api/trends/filters
func (h *TrendHandler) GetFilterOptions(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": h.trendUseCase.GetFilterOptions(ctx.Request.Context())})
}

// GetKeywordTrends handles GET /api/trends/keywords
func (h *TrendHandler) GetKeywordTrends(ctx *gin.Context) {
	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val < 1 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = val
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": h.trendUseCase.GetKeywordTrends(ctx.Request.Context(), limit)})
}

// ExportCSV handles GET /api/trends/export.csv
func (h *TrendHandler) ExportCSV(ctx *gin.Context) {
	var req dto.TrendQueryRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query", "message": err.Error()})
		return
	}
	var buf bytes.Buffer
	if err := h.trendUseCase.ExportCSV(ctx.Request.Context(), &req, &buf); err != nil {
		if errors.Is(err, usecase.ErrInvalidQuery) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query", "message": err.Error()})
			return
		}
		logger.GetLogger().WithField("error", err).Error("CSV export failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export trends", "message": err.Error()})
		return
	}

	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "trends.csv"))
	ctx.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Status handles GET /api/trends/status
func (h *TrendHandler) Status(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": h.trendUseCase.Status(ctx.Request.Context())})
}

// Refresh handles POST /api/admin/refresh
func (h *TrendHandler) Refresh(ctx *gin.Context) {
	var req dto.RefreshRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid body", "message": err.Error()})
			return
		}
	}
	if v, err := strconv.ParseBool(ctx.Query("force")); err == nil {
		req.Force = v
	}
	if v, err := strconv.ParseBool(ctx.Query("wait")); err == nil {
		req.Wait = v
	}

	result := h.trendUseCase.Refresh(ctx.Request.Context(), req.Force, req.Wait)
	logger.GetLogger().WithFields(map[string]interface{}{
		"subject": ctx.GetString("admin_subject"),
		"force":   req.Force,
		"wait":    req.Wait,
		"status":  result.Status,
		"run_id":  result.RunID,
	}).Info("Manual refresh requested")

	ctx.JSON(refreshHTTPStatus(result.Status), gin.H{"success": result.Status != model.TriggerFailed, "data": result})
}

func refreshHTTPStatus(status model.TriggerStatus) int {
	switch status {
	case model.TriggerStarted, model.TriggerAlreadyRunning:
		return http.StatusAccepted
	case model.TriggerFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}
