package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comedorapp/comedor-api/internal/service"
	appErrors "github.com/comedorapp/comedor-api/pkg/errors"
	"github.com/comedorapp/comedor-api/pkg/response"
)

// ExtraHandler exposes extra charge endpoints.
type ExtraHandler struct {
	extras *service.ExtraService
}

// NewExtraHandler constructs ExtraHandler.
func NewExtraHandler(extras *service.ExtraService) *ExtraHandler {
	return &ExtraHandler{extras: extras}
}

// ListByStudent godoc
// @Summary List extra charges for a student
// @Tags Extras
// @Produce json
// @Param id path string true "Student ID"
// @Param since query string false "Only extras created on or after (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/extras [get]
func (h *ExtraHandler) ListByStudent(c *gin.Context) {
	extras, err := h.extras.ListByStudent(c.Request.Context(), c.Param("id"), queryTime(c, "since"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, extras, nil)
}

// Create godoc
// @Summary Register an extra charge
// @Tags Extras
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.CreateExtraRequest true "Extra payload"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/extras [post]
func (h *ExtraHandler) Create(c *gin.Context) {
	var req service.CreateExtraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	extra, err := h.extras.Create(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, extra)
}

// Delete godoc
// @Summary Delete an extra charge
// @Tags Extras
// @Produce json
// @Param id path string true "Extra ID"
// @Success 204
// @Router /extras/{id} [delete]
func (h *ExtraHandler) Delete(c *gin.Context) {
	if err := h.extras.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
