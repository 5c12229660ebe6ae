package models

import "time"

// Audit actions recorded for state changing operations.
const (
	AuditActionLogin         = "LOGIN"
	AuditActionDeviceBound   = "DEVICE_BOUND"
	AuditActionSessionDelete = "SESSION_DELETE"
	AuditActionSessionClose  = "SESSION_CLOSE"
	AuditActionManualMark    = "ATTENDANCE_MANUAL_MARK"
	AuditActionDeviceApprove = "DEVICE_REQUEST_APPROVE"
	AuditActionDeviceReject  = "DEVICE_REQUEST_REJECT"
	AuditActionDeviceSubmit  = "DEVICE_REQUEST_SUBMIT"
	AuditActionExport        = "ATTENDANCE_EXPORT"
)

// Audit resources.
const (
	AuditResourceSession       = "attendance_session"
	AuditResourceAttendance    = "attendance_record"
	AuditResourceDeviceRequest = "device_request"
	AuditResourceUser          = "user"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"userId,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resourceId,omitempty"`
	OldValues  []byte    `db:"old_values" json:"oldValues,omitempty"`
	NewValues  []byte    `db:"new_values" json:"newValues,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ipAddress"`
	UserAgent  string    `db:"user_agent" json:"userAgent"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
