package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comedorapp/comedor-api/internal/service"
	appErrors "github.com/comedorapp/comedor-api/pkg/errors"
	"github.com/comedorapp/comedor-api/pkg/response"
)

// BillingHandler exposes debt and settlement endpoints.
type BillingHandler struct {
	billing *service.BillingService
}

// NewBillingHandler constructs BillingHandler.
func NewBillingHandler(billing *service.BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

// Debt godoc
// @Summary Outstanding balance for a student
// @Tags Billing
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/debt [get]
func (h *BillingHandler) Debt(c *gin.Context) {
	summary, err := h.billing.Debt(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Settle godoc
// @Summary Settle a student's debt inside a date range
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.SettleRequest true "Settlement range"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/settle [post]
func (h *BillingHandler) Settle(c *gin.Context) {
	var req service.SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	settledBy := ""
	if claims := claimsFromContext(c); claims != nil {
		settledBy = claims.UserID
	}

	result, err := h.billing.Settle(c.Request.Context(), c.Param("id"), req, settledBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
