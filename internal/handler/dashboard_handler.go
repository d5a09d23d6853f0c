package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comedorapp/comedor-api/internal/service"
	"github.com/comedorapp/comedor-api/pkg/response"
)

// DashboardHandler exposes the revenue dashboard.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Summary godoc
// @Summary Monthly revenue summary
// @Tags Dashboard
// @Produce json
// @Param year query int false "Year, defaults to current"
// @Param month query int false "Month 1-12, defaults to current"
// @Success 200 {object} response.Envelope
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, cached, err := h.dashboard.MonthlyRevenue(c.Request.Context(), queryInt(c, "year", 0), queryInt(c, "month", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, map[string]interface{}{"cached": cached})
}
