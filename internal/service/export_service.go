package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/geo-attendance-api/internal/dto"
	"github.com/noah-isme/geo-attendance-api/internal/models"
	appErrors "github.com/noah-isme/geo-attendance-api/pkg/errors"
	"github.com/noah-isme/geo-attendance-api/pkg/export"
)

var attendanceSheetHeaders = []string{"No", "Student", "Student Code", "Email", "Status", "Check-in Time", "Distance (m)"}

// ExportResult is a rendered document ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders attendance sheets.
type ExportService struct {
	renderers map[dto.ExportFormat]export.Renderer
	location  *time.Location
	logger    *zap.Logger
}

// NewExportService constructs an ExportService. A nil renderer map uses the
// CSV, PDF and XLSX exporters; times are printed in loc (UTC when nil).
func NewExportService(renderers map[dto.ExportFormat]export.Renderer, loc *time.Location, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if renderers == nil {
		renderers = map[dto.ExportFormat]export.Renderer{
			dto.ExportFormatCSV:  export.NewCSVExporter(),
			dto.ExportFormatPDF:  export.NewPDFExporter(),
			dto.ExportFormatXLSX: export.NewXLSXExporter(),
		}
	}
	return &ExportService{renderers: renderers, location: loc, logger: logger}
}

// SessionSheet renders the attendance of one session in the requested format.
func (s *ExportService) SessionSheet(session *models.Session, rows []models.SessionAttendance, format dto.ExportFormat, now time.Time) (*ExportResult, error) {
	if format == "" {
		format = dto.ExportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	payload, err := renderer.Render(s.sessionDataset(session, rows))
	if err != nil {
		s.logger.Error("render attendance sheet failed", zap.String("session_id", session.ID), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportResult{
		Filename:    buildFilename(session, renderer.Extension(), now),
		ContentType: renderer.ContentType(),
		Data:        payload,
	}, nil
}

func (s *ExportService) sessionDataset(session *models.Session, rows []models.SessionAttendance) export.Dataset {
	title := "Attendance " + session.StartTime.In(s.location).Format("2006-01-02 15:04")
	if session.Title != nil && *session.Title != "" {
		title = *session.Title + " - " + title
	}
	data := export.Dataset{Title: title, Headers: attendanceSheetHeaders}
	for i, row := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"No":            strconv.Itoa(i + 1),
			"Student":       row.StudentName,
			"Student Code":  deref(row.StudentCode),
			"Email":         row.StudentEmail,
			"Status":        string(row.Status),
			"Check-in Time": row.CheckInTime.In(s.location).Format("2006-01-02 15:04:05"),
			"Distance (m)":  strconv.FormatFloat(row.DistanceToClassMeters, 'f', 1, 64),
		})
	}
	return data
}

func buildFilename(session *models.Session, ext string, now time.Time) string {
	label := session.ID
	if session.Title != nil && *session.Title != "" {
		label = *session.Title
	}
	return fmt.Sprintf("attendance_%s_%s.%s", sanitizeFilename(label), now.UTC().Format("20060102_150405"), ext)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_", "\"", "")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
