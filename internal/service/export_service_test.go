package service

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/geo-attendance-api/internal/dto"
	"github.com/noah-isme/geo-attendance-api/internal/models"
	appErrors "github.com/noah-isme/geo-attendance-api/pkg/errors"
	"github.com/noah-isme/geo-attendance-api/pkg/export"
)

type failingRenderer struct{}

func (failingRenderer) Render(export.Dataset) ([]byte, error) { return nil, errors.New("disk full") }
func (failingRenderer) ContentType() string                   { return "text/plain" }
func (failingRenderer) Extension() string                     { return "txt" }

func exportRows() []models.SessionAttendance {
	checkIn := time.Date(2024, 5, 6, 10, 3, 0, 0, time.UTC)
	return []models.SessionAttendance{
		{
			AttendanceRecord: models.AttendanceRecord{StudentID: "stu-1", Status: models.AttendanceStatusPresent, CheckInTime: checkIn, Location: models.Location{DistanceToClassMeters: 4.26}},
			StudentName:      "Budi",
			StudentEmail:     "budi@example.com",
			StudentCode:      ptr("S-01"),
		},
		{
			AttendanceRecord: models.AttendanceRecord{StudentID: "stu-2", Status: models.AttendanceStatusLate, CheckInTime: checkIn.Add(10 * time.Minute)},
			StudentName:      "Citra",
			StudentEmail:     "citra@example.com",
		},
	}
}

func TestExportServiceSessionSheetXLSX(t *testing.T) {
	svc := NewExportService(nil, nil, nil)
	session := baseSession()
	session.Title = ptr("Algorithms: week 1")
	now := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)

	result, err := svc.SessionSheet(&session, exportRows(), dto.ExportFormatXLSX, now)
	require.NoError(t, err)
	assert.Equal(t, "attendance_Algorithms-_week_1_20240506_120000.xlsx", result.Filename)

	book, err := excelize.OpenReader(bytes.NewReader(result.Data))
	require.NoError(t, err)
	sheet := book.GetSheetName(0)
	status, err := book.GetCellValue(sheet, "E3")
	require.NoError(t, err)
	assert.Equal(t, "late", status)
	code, err := book.GetCellValue(sheet, "C2")
	require.NoError(t, err)
	assert.Equal(t, "S-01", code)
}

func TestExportServiceSessionSheetPDF(t *testing.T) {
	svc := NewExportService(nil, time.FixedZone("WIB", 7*3600), nil)
	session := baseSession()

	result, err := svc.SessionSheet(&session, exportRows(), dto.ExportFormatPDF, time.Now())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(result.Data), "%PDF"))
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(result.Filename, "attendance_s1_"))
}

func TestExportServiceCSVUsesConfiguredLocation(t *testing.T) {
	svc := NewExportService(nil, time.FixedZone("WIB", 7*3600), nil)
	session := baseSession()

	result, err := svc.SessionSheet(&session, exportRows(), "", time.Now())
	require.NoError(t, err)
	assert.Contains(t, string(result.Data), "1,Budi,S-01,budi@example.com,present,2024-05-06 17:03:00,4.3")
	assert.Contains(t, string(result.Data), "2,Citra,,citra@example.com,late,2024-05-06 17:13:00,0.0")
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(nil, nil, nil)
	session := baseSession()

	_, err := svc.SessionSheet(&session, nil, dto.ExportFormat("docx"), time.Now())
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestExportServiceRenderFailureIsInternal(t *testing.T) {
	svc := NewExportService(map[dto.ExportFormat]export.Renderer{dto.ExportFormatCSV: failingRenderer{}}, nil, nil)
	session := baseSession()

	_, err := svc.SessionSheet(&session, exportRows(), dto.ExportFormatCSV, time.Now())
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal.Code))
}
