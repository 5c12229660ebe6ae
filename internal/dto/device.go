package dto

import (
	"time"

	"github.com/noah-isme/geo-attendance-api/internal/models"
)

// SubmitDeviceRequest asks to re-bind a student's account to a new device.
type SubmitDeviceRequest struct {
	StudentID   string  `json:"studentId" validate:"required"`
	NewDeviceID string  `json:"newDeviceId" validate:"required,max=255"`
	OldDeviceID *string `json:"oldDeviceId" validate:"omitempty,max=255"`
}

// RejectDeviceRequest carries the optional rejection reason.
type RejectDeviceRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// DeviceRequestQuery mirrors supported listing filters.
type DeviceRequestQuery struct {
	Status   string `form:"status" validate:"omitempty,device_request_status"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}

// DeviceRequestStatusResponse is the public view of a student's latest request.
// It omits device identifiers since the endpoint is unauthenticated.
type DeviceRequestStatusResponse struct {
	Status       models.DeviceRequestStatus `json:"status"`
	RejectReason *string                    `json:"rejectReason,omitempty"`
	CreatedAt    time.Time                  `json:"createdAt"`
	ProcessedAt  *time.Time                 `json:"processedAt,omitempty"`
}

// PendingCountResponse backs the instructor badge.
type PendingCountResponse struct {
	Count int `json:"count"`
}
