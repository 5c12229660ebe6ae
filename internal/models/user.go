package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleTeacher    UserRole = "TEACHER"
	RoleStudent    UserRole = "STUDENT"
)

// IsStaff reports whether the role may manage sessions and device requests.
func (r UserRole) IsStaff() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleTeacher:
		return true
	default:
		return false
	}
}

// IsAdmin reports whether the role bypasses session ownership checks.
func (r UserRole) IsAdmin() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// User represents an application user stored in the users table. DeviceID and
// PendingDeviceChange form the device binding of a student.
type User struct {
	ID                  string     `db:"id" json:"id"`
	Email               string     `db:"email" json:"email"`
	PasswordHash        string     `db:"password_hash" json:"-"`
	FullName            string     `db:"full_name" json:"fullName"`
	Role                UserRole   `db:"role" json:"role"`
	StudentCode         *string    `db:"student_code" json:"studentCode,omitempty"`
	DeviceID            *string    `db:"device_id" json:"deviceId,omitempty"`
	PendingDeviceChange bool       `db:"pending_device_change" json:"pendingDeviceChange"`
	Active              bool       `db:"active" json:"active"`
	LastLogin           *time.Time `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updatedAt"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
}
