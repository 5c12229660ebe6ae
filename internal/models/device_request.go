package models

import "time"

// DeviceRequestStatus is the state of a device change request.
type DeviceRequestStatus string

const (
	DeviceRequestPending  DeviceRequestStatus = "pending"
	DeviceRequestApproved DeviceRequestStatus = "approved"
	DeviceRequestRejected DeviceRequestStatus = "rejected"
)

// Valid returns true when the status is a supported value.
func (s DeviceRequestStatus) Valid() bool {
	switch s {
	case DeviceRequestPending, DeviceRequestApproved, DeviceRequestRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is allowed.
func (s DeviceRequestStatus) Terminal() bool {
	switch s {
	case DeviceRequestApproved, DeviceRequestRejected:
		return true
	case DeviceRequestPending:
		return false
	default:
		return false
	}
}

// DeviceRequest asks an instructor to re-bind a student's device.
type DeviceRequest struct {
	ID           string              `db:"id" json:"id"`
	StudentID    string              `db:"student_id" json:"studentId"`
	OldDeviceID  *string             `db:"old_device_id" json:"oldDeviceId,omitempty"`
	NewDeviceID  string              `db:"new_device_id" json:"newDeviceId"`
	Status       DeviceRequestStatus `db:"status" json:"status"`
	RejectReason *string             `db:"reject_reason" json:"rejectReason,omitempty"`
	ProcessedAt  *time.Time          `db:"processed_at" json:"processedAt,omitempty"`
	ProcessedBy  *string             `db:"processed_by" json:"processedBy,omitempty"`
	CreatedAt    time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updatedAt"`
}

// DeviceRequestView joins a request with the student it belongs to.
type DeviceRequestView struct {
	DeviceRequest
	StudentName  string  `db:"student_name" json:"studentName"`
	StudentEmail string  `db:"student_email" json:"studentEmail"`
	StudentCode  *string `db:"student_code" json:"studentCode,omitempty"`
}

// DeviceRequestFilter constrains listing queries.
type DeviceRequestFilter struct {
	Status   *DeviceRequestStatus
	Page     int
	PageSize int
}

// DeviceRequestDecision carries the instructor's input for approve or reject.
type DeviceRequestDecision struct {
	RequestID   string
	ProcessedBy string
	Reason      string
}
