package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/geo-attendance-api/internal/dto"
	"github.com/noah-isme/geo-attendance-api/internal/middleware"
	"github.com/noah-isme/geo-attendance-api/internal/models"
	appErrors "github.com/noah-isme/geo-attendance-api/pkg/errors"
	"github.com/noah-isme/geo-attendance-api/pkg/response"
)

type deviceService interface {
	Submit(ctx context.Context, req dto.SubmitDeviceRequest, now time.Time) (*models.DeviceRequest, error)
	Approve(ctx context.Context, requestID string, actor *models.JWTClaims, now time.Time) (*models.DeviceRequest, error)
	Reject(ctx context.Context, requestID string, req dto.RejectDeviceRequest, actor *models.JWTClaims, now time.Time) (*models.DeviceRequest, error)
	LatestStatus(ctx context.Context, studentID string) (*dto.DeviceRequestStatusResponse, error)
	List(ctx context.Context, query dto.DeviceRequestQuery) ([]models.DeviceRequestView, *models.Pagination, error)
	PendingCount(ctx context.Context) (int, bool, error)
}

// DeviceHandler serves the device change workflow.
type DeviceHandler struct {
	service deviceService
	clock   Clock
}

// NewDeviceHandler constructs the handler.
func NewDeviceHandler(svc deviceService, clock Clock) *DeviceHandler {
	return &DeviceHandler{service: svc, clock: clock}
}

// Submit godoc
// @Summary Request a device change
// @Description Submitted from the login screen after a DEVICE_MISMATCH rejection.
// @Tags Devices
// @Accept json
// @Produce json
// @Param payload body dto.SubmitDeviceRequest true "Device change request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /device/request [post]
func (h *DeviceHandler) Submit(c *gin.Context) {
	var req dto.SubmitDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid device request payload"))
		return
	}
	request, err := h.service.Submit(c.Request.Context(), req, h.clock.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Status godoc
// @Summary Latest device request status of a student
// @Tags Devices
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /device/request/status/{studentId} [get]
func (h *DeviceHandler) Status(c *gin.Context) {
	status, err := h.service.LatestStatus(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// List godoc
// @Summary List device change requests
// @Tags Devices
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved or rejected"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /device/requests [get]
func (h *DeviceHandler) List(c *gin.Context) {
	var query dto.DeviceRequestQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// PendingCount godoc
// @Summary Number of pending device requests
// @Tags Devices
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /device/requests/count [get]
func (h *DeviceHandler) PendingCount(c *gin.Context) {
	count, hit, err := h.service.PendingCount(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, dto.PendingCountResponse{Count: count}, nil, middleware.ExtractMeta(c))
}

// Approve godoc
// @Summary Approve a device change request
// @Tags Devices
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /device/requests/{id}/approve [put]
func (h *DeviceHandler) Approve(c *gin.Context) {
	request, err := h.service.Approve(c.Request.Context(), c.Param("id"), claimsFromContext(c), h.clock.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Reject godoc
// @Summary Reject a device change request
// @Tags Devices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body dto.RejectDeviceRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /device/requests/{id}/reject [put]
func (h *DeviceHandler) Reject(c *gin.Context) {
	var req dto.RejectDeviceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reject payload"))
			return
		}
	}
	request, err := h.service.Reject(c.Request.Context(), c.Param("id"), req, claimsFromContext(c), h.clock.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}
