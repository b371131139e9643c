package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Methodus-dev/methodus-shorts-planner/usecase"
)

type IHealthHandler interface {
	Healthz(c *gin.Context)
	Readyz(c *gin.Context)
}

type HealthHandler struct {
	trendUseCase usecase.ITrendUseCase
}

func NewHealthHandler(trendUseCase usecase.ITrendUseCase) IHealthHandler {
	return &HealthHandler{trendUseCase: trendUseCase}
}

// Healthz returns OK for health checks
func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz reports ready once a snapshot with data is being served. Stale data still counts.
func (h *HealthHandler) Readyz(ctx *gin.Context) {
	st := h.trendUseCase.Status(ctx.Request.Context())
	body := gin.H{
		"status":       "ready",
		"record_count": st.RecordCount,
		"stale":        st.Stale,
		"state":        st.State,
	}
	if st.RecordCount == 0 {
		body["status"] = "warming_up"
		ctx.JSON(http.StatusServiceUnavailable, body)
		return
	}
	ctx.JSON(http.StatusOK, body)
}
