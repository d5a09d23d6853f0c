package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comedorapp/comedor-api/internal/service"
	appErrors "github.com/comedorapp/comedor-api/pkg/errors"
	"github.com/comedorapp/comedor-api/pkg/response"
)

// AttendanceHandler exposes attendance endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

func listRequestFromQuery(c *gin.Context) service.AttendanceListRequest {
	return service.AttendanceListRequest{
		StudentID: c.Query("studentId"),
		MealType:  c.Query("mealType"),
		Status:    c.Query("status"),
		DateFrom:  queryTime(c, "from"),
		DateTo:    queryTime(c, "to"),
		Unpaid:    c.Query("unpaid") == "true",
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "limit", 50),
		SortOrder: c.Query("order"),
	}
}

// List godoc
// @Summary List attendance records
// @Description Runs a subscription sync pass before listing.
// @Tags Attendance
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param mealType query string false "Filter by meal type"
// @Param status query string false "Filter by status"
// @Param from query string false "Range start (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "Range end"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	logs, pagination, err := h.attendance.List(c.Request.Context(), listRequestFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}

// StudentHistory godoc
// @Summary Attendance history for one student
// @Description Syncs the student's subscription window before listing.
// @Tags Attendance
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance [get]
func (h *AttendanceHandler) StudentHistory(c *gin.Context) {
	logs, pagination, err := h.attendance.StudentHistory(c.Request.Context(), c.Param("id"), listRequestFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}

// Mark godoc
// @Summary Mark attendance from the kiosk
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.MarkAttendanceRequest true "Attendance payload"
// @Success 201 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	log, err := h.attendance.Mark(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, log)
}

// ToggleAnnul godoc
// @Summary Toggle a record between annulled and verified
// @Tags Attendance
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id}/annul [patch]
func (h *AttendanceHandler) ToggleAnnul(c *gin.Context) {
	log, err := h.attendance.ToggleAnnul(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, log, nil)
}

// SetExtra godoc
// @Summary Set the extra portion flag on a lunch record
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body service.ExtraMarkRequest true "Extra flag payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id}/extra [patch]
func (h *AttendanceHandler) SetExtra(c *gin.Context) {
	var req service.ExtraMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	log, err := h.attendance.SetExtra(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, log, nil)
}

// Delete godoc
// @Summary Delete an attendance record
// @Tags Attendance
// @Produce json
// @Param id path string true "Record ID"
// @Success 204
// @Router /attendance/{id} [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	if err := h.attendance.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
