package models

import "time"

// AttendanceStatus is the outcome stored on an attendance record.
type AttendanceStatus string

const (
	AttendanceStatusPresent     AttendanceStatus = "present"
	AttendanceStatusLate        AttendanceStatus = "late"
	AttendanceStatusOutsideArea AttendanceStatus = "outside_area"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusLate, AttendanceStatusOutsideArea:
		return true
	default:
		return false
	}
}

// ManualMarkStatus is the status an instructor may assign by hand. Absent
// removes the record instead of storing it.
type ManualMarkStatus string

const (
	ManualMarkPresent ManualMarkStatus = "present"
	ManualMarkLate    ManualMarkStatus = "late"
	ManualMarkAbsent  ManualMarkStatus = "absent"
)

// Valid returns true when the status is a supported value.
func (s ManualMarkStatus) Valid() bool {
	switch s {
	case ManualMarkPresent, ManualMarkLate, ManualMarkAbsent:
		return true
	default:
		return false
	}
}

// Location captures where a check-in was submitted from.
type Location struct {
	Latitude              float64  `db:"latitude" json:"latitude"`
	Longitude             float64  `db:"longitude" json:"longitude"`
	Accuracy              *float64 `db:"accuracy" json:"accuracy,omitempty"`
	DistanceToClassMeters float64  `db:"distance_to_class_meters" json:"distanceToClassMeters"`
}

// AttendanceRecord is one student's outcome for one session.
type AttendanceRecord struct {
	ID          string           `db:"id" json:"id"`
	SessionID   string           `db:"session_id" json:"sessionId"`
	StudentID   string           `db:"student_id" json:"studentId"`
	CheckInTime time.Time        `db:"check_in_time" json:"checkInTime"`
	Status      AttendanceStatus `db:"status" json:"status"`
	Location    `json:"location"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updatedAt"`
}

// SessionAttendance is a record joined with the student's identity.
type SessionAttendance struct {
	AttendanceRecord
	StudentName  string  `db:"student_name" json:"studentName"`
	StudentEmail string  `db:"student_email" json:"studentEmail"`
	StudentCode  *string `db:"student_code" json:"studentCode,omitempty"`
}

// AttendanceHistoryItem is a record joined with its session for a student's history.
type AttendanceHistoryItem struct {
	AttendanceRecord
	SessionTitle     *string   `db:"session_title" json:"sessionTitle,omitempty"`
	CourseID         *string   `db:"course_id" json:"courseId,omitempty"`
	SessionStartTime time.Time `db:"session_start_time" json:"sessionStartTime"`
	SessionEndTime   time.Time `db:"session_end_time" json:"sessionEndTime"`
}
