package models

import "time"

// SessionStatus is the lifecycle state of an attendance session.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusOngoing   SessionStatus = "ongoing"
	SessionStatusClosed    SessionStatus = "closed"
)

// Valid returns true when the status is a supported value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusOngoing, SessionStatusClosed:
		return true
	default:
		return false
	}
}

// Geofence is the circular area a check-in must fall within.
type Geofence struct {
	Latitude     float64 `db:"latitude" json:"latitude"`
	Longitude    float64 `db:"longitude" json:"longitude"`
	RadiusMeters float64 `db:"radius_meters" json:"radiusMeters"`
}

// Session is one class meeting eligible for attendance.
type Session struct {
	ID                    string        `db:"id" json:"id"`
	Title                 *string       `db:"title" json:"title,omitempty"`
	CourseID              *string       `db:"course_id" json:"courseId,omitempty"`
	InstructorID          string        `db:"instructor_id" json:"instructorId"`
	StartTime             time.Time     `db:"start_time" json:"startTime"`
	EndTime               time.Time     `db:"end_time" json:"endTime"`
	AttendanceWindowStart time.Time     `db:"attendance_window_start" json:"attendanceWindowStart"`
	AttendanceWindowEnd   time.Time     `db:"attendance_window_end" json:"attendanceWindowEnd"`
	Geofence              `json:"geofence"`
	Token                 *string       `db:"token" json:"-"`
	TokenExpiresAt        *time.Time    `db:"token_expires_at" json:"tokenExpiresAt,omitempty"`
	Status                SessionStatus `db:"status" json:"status"`
	CreatedAt             time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt             time.Time     `db:"updated_at" json:"updatedAt"`
}

// QREnabled reports whether the session currently holds a token.
func (s *Session) QREnabled() bool {
	return s.Token != nil && s.TokenExpiresAt != nil
}

// OwnedBy reports whether the given user may manage the session.
func (s *Session) OwnedBy(userID string, role UserRole) bool {
	return role.IsAdmin() || s.InstructorID == userID
}

// SessionToken is returned when a token is rotated, for out of band distribution.
type SessionToken struct {
	Token     string    `json:"token"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionUpdate lists the whitelisted mutable fields of a session.
type SessionUpdate struct {
	Title                 *string
	CourseID              *string
	StartTime             *time.Time
	EndTime               *time.Time
	AttendanceWindowStart *time.Time
	AttendanceWindowEnd   *time.Time
	Latitude              *float64
	Longitude             *float64
	RadiusMeters          *float64
	Status                *SessionStatus
}

// Empty reports whether no field was supplied.
func (u SessionUpdate) Empty() bool {
	return u.Title == nil && u.CourseID == nil && u.StartTime == nil && u.EndTime == nil &&
		u.AttendanceWindowStart == nil && u.AttendanceWindowEnd == nil &&
		u.Latitude == nil && u.Longitude == nil && u.RadiusMeters == nil && u.Status == nil
}

// Apply merges the update into a copy of s.
func (u SessionUpdate) Apply(s Session) Session {
	if u.Title != nil {
		s.Title = u.Title
	}
	if u.CourseID != nil {
		s.CourseID = u.CourseID
	}
	if u.StartTime != nil {
		s.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		s.EndTime = *u.EndTime
	}
	if u.AttendanceWindowStart != nil {
		s.AttendanceWindowStart = *u.AttendanceWindowStart
	}
	if u.AttendanceWindowEnd != nil {
		s.AttendanceWindowEnd = *u.AttendanceWindowEnd
	}
	if u.Latitude != nil {
		s.Latitude = *u.Latitude
	}
	if u.Longitude != nil {
		s.Longitude = *u.Longitude
	}
	if u.RadiusMeters != nil {
		s.RadiusMeters = *u.RadiusMeters
	}
	if u.Status != nil {
		s.Status = *u.Status
	}
	return s
}
