package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edubridge-api/internal/models"
	"github.com/noah-isme/edubridge-api/internal/service"
	appErrors "github.com/noah-isme/edubridge-api/pkg/errors"
	"github.com/noah-isme/edubridge-api/pkg/response"
)

// AttendanceHandler wires HTTP endpoints to the attendance service.
type AttendanceHandler struct {
	service *service.AttendanceService
}

// NewAttendanceHandler creates a new handler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

type issueCodeRequest struct {
	DurationSeconds int `json:"duration_seconds" binding:"required"`
}

// IssueCode godoc
// @Summary Issue an attendance code for the teacher's section
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body issueCodeRequest true "Code duration"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/code [post]
func (h *AttendanceHandler) IssueCode(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req issueCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid code payload"))
		return
	}

	code, err := h.service.IssueCode(c.Request.Context(), claims, req.DurationSeconds)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, code)
}

// Submit godoc
// @Summary Submit an attendance code
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.SubmitRequest true "Submission"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/submissions [post]
func (h *AttendanceHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}

	record, err := h.service.ValidateSubmission(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, record)
}

// ListRecords godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param code query string false "Filter by code value"
// @Param student_id query string false "Filter by student"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance/records [get]
func (h *AttendanceHandler) ListRecords(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := h.recordFilter(c, claims)
	records, pagination, err := h.service.ListRecords(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, pagination)
}

// Export godoc
// @Summary Export attendance records as CSV or PDF
// @Tags Attendance
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	format := c.DefaultQuery("format", "csv")
	out, filename, err := h.service.ExportRecords(c.Request.Context(), h.recordFilter(c, claims), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	contentType := "text/csv"
	if format == "pdf" {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, out)
}

func (h *AttendanceHandler) recordFilter(c *gin.Context, claims *models.JWTClaims) models.AttendanceFilter {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "100"))
	filter := models.AttendanceFilter{
		Code:     c.Query("code"),
		Page:     page,
		PageSize: pageSize,
	}
	// Teachers see their whole section; students only their own rows.
	if claims.Role.Elevated() {
		filter.Section = claims.Section
		filter.StudentID = c.Query("student_id")
	} else {
		filter.StudentID = claims.UserID
	}
	return filter
}
