package dto

// CheckInRequest is submitted by a student after scanning the session QR code.
// Coordinates are pointers so that 0 is a valid value distinct from missing.
type CheckInRequest struct {
	SessionID string   `json:"sessionId"`
	Token     string   `json:"token"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  *float64 `json:"accuracy"`
}

// ManualCheckInRequest lets the session owner set a student's status directly.
type ManualCheckInRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	StudentID string `json:"studentId" validate:"required"`
	Status    string `json:"status" validate:"required,manual_status"`
}
