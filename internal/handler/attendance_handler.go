package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/geo-attendance-api/internal/dto"
	"github.com/noah-isme/geo-attendance-api/internal/models"
	"github.com/noah-isme/geo-attendance-api/internal/service"
	appErrors "github.com/noah-isme/geo-attendance-api/pkg/errors"
	"github.com/noah-isme/geo-attendance-api/pkg/response"
)

type checkInService interface {
	CheckIn(ctx context.Context, req dto.CheckInRequest, studentID string, now time.Time) (*models.AttendanceRecord, error)
}

type attendanceService interface {
	ManualMark(ctx context.Context, req dto.ManualCheckInRequest, actor *models.JWTClaims, now time.Time) (*models.AttendanceRecord, error)
	ListBySession(ctx context.Context, sessionID string, actor *models.JWTClaims) (*models.Session, []models.SessionAttendance, error)
	History(ctx context.Context, studentID string) ([]models.AttendanceHistoryItem, error)
	Export(ctx context.Context, sessionID string, format dto.ExportFormat, actor *models.JWTClaims, now time.Time) (*service.ExportResult, error)
}

// AttendanceHandler serves check-ins and the attendance ledger.
type AttendanceHandler struct {
	checkIns   checkInService
	attendance attendanceService
	clock      Clock
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(checkIns checkInService, attendance attendanceService, clock Clock) *AttendanceHandler {
	return &AttendanceHandler{checkIns: checkIns, attendance: attendance, clock: clock}
}

// CheckIn godoc
// @Summary Check in to a session
// @Description Validates the scanned QR token, the attendance window and the student's location.
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CheckInRequest true "Check-in payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope "Rejected; ALREADY_CHECKED_IN carries the existing record in data"
// @Failure 404 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /check-in [post]
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-in payload"))
		return
	}

	record, err := h.checkIns.CheckIn(c.Request.Context(), req, claims.UserID, h.clock.now())
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrAlreadyCheckedIn.Code) && record != nil {
			response.ErrorWithData(c, err, record)
			return
		}
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// ManualCheckIn godoc
// @Summary Set a student's attendance by hand
// @Description present and late create or update the record; absent removes it.
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ManualCheckInRequest true "Manual mark"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /manual-check-in [post]
func (h *AttendanceHandler) ManualCheckIn(c *gin.Context) {
	var req dto.ManualCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid manual check-in payload"))
		return
	}
	record, err := h.attendance.ManualMark(c.Request.Context(), req, claimsFromContext(c), h.clock.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	if record == nil {
		response.JSON(c, http.StatusOK, nil, nil)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// ListBySession godoc
// @Summary List a session's attendance
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/attendances [get]
func (h *AttendanceHandler) ListBySession(c *gin.Context) {
	session, rows, err := h.attendance.ListBySession(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil, map[string]interface{}{"sessionId": session.ID, "total": len(rows)})
}

// Export godoc
// @Summary Export a session's attendance sheet
// @Tags Attendance
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /sessions/{id}/attendances/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	format := dto.ExportFormat(c.DefaultQuery("format", string(dto.ExportFormatCSV)))
	result, err := h.attendance.Export(c.Request.Context(), c.Param("id"), format, claimsFromContext(c), h.clock.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+result.Filename+"\"")
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// History godoc
// @Summary The caller's attendance history
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /attendance/history [get]
func (h *AttendanceHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.attendance.History(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
