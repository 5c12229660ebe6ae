package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Geo Attendance API",
        "description": "QR and geofence based class attendance with device binding",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Login and device binding"},
        {"name": "Sessions", "description": "Attendance session lifecycle and QR tokens"},
        {"name": "Attendance", "description": "Check-in, manual marking and exports"},
        {"name": "Devices", "description": "Device change requests"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}],
                "responses": {
                    "200": {"description": "Access token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "INVALID_CREDENTIALS", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "DEVICE_MISMATCH or DEVICE_APPROVAL_PENDING", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Open attendance session",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/CreateSessionRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "VALIDATION_ERROR or INVALID_TIME_RANGE", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Get attendance session",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "NOT_FOUND"}}
            },
            "patch": {
                "tags": ["Sessions"],
                "summary": "Update attendance session",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "VALIDATION_ERROR"}, "403": {"description": "FORBIDDEN"}}
            },
            "delete": {
                "tags": ["Sessions"],
                "summary": "Delete session and its attendance records",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"204": {"description": "Deleted"}, "403": {"description": "FORBIDDEN"}, "404": {"description": "NOT_FOUND"}}
            }
        },
        "/sessions/{id}/qr": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Issue a fresh QR token",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "payload", "schema": {"type": "object", "properties": {"expiresInMinutes": {"type": "integer"}}}}
                ],
                "responses": {"200": {"description": "token, sessionId, expiresAt"}}
            }
        },
        "/sessions/{id}/close": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Close attendance session",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions/{id}/attendances": {
            "get": {
                "tags": ["Attendance"],
                "summary": "List a session's attendance",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions/{id}/attendances/export": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Export attendance sheet",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf", "xlsx"], "default": "csv"}
                ],
                "responses": {"200": {"description": "File"}}
            }
        },
        "/courses/{courseId}/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List sessions of a course",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "courseId", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/check-in": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Check in to a session",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/CheckInRequest"}}],
                "responses": {
                    "201": {"description": "Recorded"},
                    "400": {"description": "MISSING_FIELDS, QR_NOT_ENABLED, INVALID_QR_TOKEN, QR_TOKEN_EXPIRED, OUTSIDE_ATTENDANCE_WINDOW or ALREADY_CHECKED_IN"},
                    "404": {"description": "NOT_FOUND"},
                    "429": {"description": "TOO_MANY_REQUESTS"}
                }
            }
        },
        "/attendance/history": {
            "get": {
                "tags": ["Attendance"],
                "summary": "The caller's attendance history",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/manual-check-in": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Set a student's attendance by hand",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ManualCheckInRequest"}}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "FORBIDDEN"}}
            }
        },
        "/device/request": {
            "post": {
                "tags": ["Devices"],
                "summary": "Request a device change",
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/SubmitDeviceRequest"}}],
                "responses": {"201": {"description": "Pending"}, "400": {"description": "DEVICE_REQUEST_PENDING"}, "404": {"description": "STUDENT_NOT_FOUND"}}
            }
        },
        "/device/request/status/{studentId}": {
            "get": {
                "tags": ["Devices"],
                "summary": "Latest device request status",
                "parameters": [{"in": "path", "name": "studentId", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "DEVICE_REQUEST_NOT_FOUND"}}
            }
        },
        "/device/requests": {
            "get": {
                "tags": ["Devices"],
                "summary": "List device change requests",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "status", "type": "string", "enum": ["pending", "approved", "rejected"]},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "pageSize", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/device/requests/count": {
            "get": {
                "tags": ["Devices"],
                "summary": "Number of pending device requests",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/device/requests/{id}/approve": {
            "put": {
                "tags": ["Devices"],
                "summary": "Approve a device change request",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "Approved"}, "400": {"description": "REQUEST_ALREADY_PROCESSED"}}
            }
        },
        "/device/requests/{id}/reject": {
            "put": {
                "tags": ["Devices"],
                "summary": "Reject a device change request",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "payload", "schema": {"type": "object", "properties": {"reason": {"type": "string"}}}}
                ],
                "responses": {"200": {"description": "Rejected"}, "400": {"description": "REQUEST_ALREADY_PROCESSED"}}
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "deviceId": {"type": "string"}
            }
        },
        "CreateSessionRequest": {
            "type": "object",
            "required": ["startTime", "endTime", "latitude", "longitude"],
            "properties": {
                "title": {"type": "string"},
                "courseId": {"type": "string"},
                "startTime": {"type": "string", "format": "date-time"},
                "endTime": {"type": "string", "format": "date-time"},
                "attendanceWindowStart": {"type": "string", "format": "date-time"},
                "attendanceWindowEnd": {"type": "string", "format": "date-time"},
                "latitude": {"type": "number"},
                "longitude": {"type": "number"},
                "radius": {"type": "number"}
            }
        },
        "CheckInRequest": {
            "type": "object",
            "required": ["sessionId", "token", "latitude", "longitude"],
            "properties": {
                "sessionId": {"type": "string"},
                "token": {"type": "string"},
                "latitude": {"type": "number"},
                "longitude": {"type": "number"},
                "accuracy": {"type": "number"}
            }
        },
        "ManualCheckInRequest": {
            "type": "object",
            "required": ["sessionId", "studentId", "status"],
            "properties": {
                "sessionId": {"type": "string"},
                "studentId": {"type": "string"},
                "status": {"type": "string", "enum": ["present", "late", "absent"]}
            }
        },
        "SubmitDeviceRequest": {
            "type": "object",
            "required": ["studentId", "newDeviceId"],
            "properties": {
                "studentId": {"type": "string"},
                "newDeviceId": {"type": "string"},
                "oldDeviceId": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "pageSize": {"type": "integer"},
                "totalCount": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
