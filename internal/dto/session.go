package dto

// CreateSessionRequest opens a new attendance session. Times are RFC 3339 instants.
type CreateSessionRequest struct {
	Title                 *string  `json:"title" validate:"omitempty,max=200"`
	CourseID              *string  `json:"courseId" validate:"omitempty,max=100"`
	StartTime             string   `json:"startTime"`
	EndTime               string   `json:"endTime"`
	AttendanceWindowStart *string  `json:"attendanceWindowStart"`
	AttendanceWindowEnd   *string  `json:"attendanceWindowEnd"`
	Latitude              *float64 `json:"latitude" validate:"required,latitude"`
	Longitude             *float64 `json:"longitude" validate:"required,longitude"`
	Radius                *float64 `json:"radius" validate:"omitempty,gt=0"`
}

// UpdateSessionRequest carries the whitelisted mutable fields of a session.
type UpdateSessionRequest struct {
	Title                 *string  `json:"title" validate:"omitempty,max=200"`
	CourseID              *string  `json:"courseId" validate:"omitempty,max=100"`
	StartTime             *string  `json:"startTime"`
	EndTime               *string  `json:"endTime"`
	AttendanceWindowStart *string  `json:"attendanceWindowStart"`
	AttendanceWindowEnd   *string  `json:"attendanceWindowEnd"`
	Latitude              *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude             *float64 `json:"longitude" validate:"omitempty,longitude"`
	Radius                *float64 `json:"radius" validate:"omitempty,gt=0"`
	Status                *string  `json:"status" validate:"omitempty,session_status"`
}

// RotateTokenRequest optionally overrides the token lifetime.
type RotateTokenRequest struct {
	ExpiresInMinutes *int `json:"expiresInMinutes" validate:"omitempty,gt=0"`
}

// ExportFormat selects the attendance sheet renderer.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatXLSX ExportFormat = "xlsx"
)
