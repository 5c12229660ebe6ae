package service

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/geo-attendance-api/internal/dto"
	"github.com/noah-isme/geo-attendance-api/internal/models"
	appErrors "github.com/noah-isme/geo-attendance-api/pkg/errors"
)

type userFinderStub struct {
	users map[string]models.User
}

func (s *userFinderStub) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

type listingLedger struct {
	*memLedger
	rows []models.SessionAttendance
}

func (l *listingLedger) ListBySession(context.Context, string) ([]models.SessionAttendance, error) {
	return l.rows, nil
}

func (l *listingLedger) ListByStudent(_ context.Context, studentID string) ([]models.AttendanceHistoryItem, error) {
	return []models.AttendanceHistoryItem{{AttendanceRecord: models.AttendanceRecord{StudentID: studentID}}}, nil
}

func newAttendanceServiceForTest(ledger *memLedger, audit auditLogger) *AttendanceService {
	sessions, _ := newSessionServiceForTest(newMemSessionStore(baseSession()), ledger, nil)
	users := &userFinderStub{users: map[string]models.User{
		"student-1": {ID: "student-1", Role: models.RoleStudent},
		"teacher-9": {ID: "teacher-9", Role: models.RoleTeacher},
	}}
	return NewAttendanceService(sessions, &listingLedger{memLedger: ledger}, users, nil, audit, nil, nil)
}

func TestManualMarkAbsentWithoutRecordIsNoop(t *testing.T) {
	audit := &auditStoreStub{}
	svc := newAttendanceServiceForTest(newMemLedger(), audit)

	record, err := svc.ManualMark(context.Background(), dto.ManualCheckInRequest{SessionID: "s1", StudentID: "student-1", Status: "absent"}, owner, time.Now())
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.Empty(t, audit.actions())
}

func TestManualMarkAbsentDeletesExisting(t *testing.T) {
	ledger := newMemLedger(models.AttendanceRecord{SessionID: "s1", StudentID: "student-1", Status: models.AttendanceStatusLate})
	audit := &auditStoreStub{}
	svc := newAttendanceServiceForTest(ledger, audit)

	record, err := svc.ManualMark(context.Background(), dto.ManualCheckInRequest{SessionID: "s1", StudentID: "student-1", Status: "absent"}, owner, time.Now())
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.Equal(t, 0, ledger.count())
	assert.Equal(t, []string{models.AuditActionManualMark}, audit.actions())
}

func TestManualMarkUpsertKeepsOriginalCheckInTime(t *testing.T) {
	original := time.Date(2024, 5, 6, 10, 3, 0, 0, time.UTC)
	ledger := newMemLedger(models.AttendanceRecord{
		ID: "r1", SessionID: "s1", StudentID: "student-1", CheckInTime: original,
		Status:   models.AttendanceStatusOutsideArea,
		Location: models.Location{Latitude: 1, Longitude: 2, DistanceToClassMeters: 500},
	})
	svc := newAttendanceServiceForTest(ledger, nil)

	record, err := svc.ManualMark(context.Background(), dto.ManualCheckInRequest{SessionID: "s1", StudentID: "student-1", Status: "present"}, owner, original.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
	assert.Equal(t, original, record.CheckInTime)
	assert.Equal(t, models.Location{}, record.Location)
}

func TestManualMarkCreatesRecordAtNow(t *testing.T) {
	now := time.Date(2024, 5, 6, 10, 30, 0, 0, time.UTC)
	svc := newAttendanceServiceForTest(newMemLedger(), nil)

	record, err := svc.ManualMark(context.Background(), dto.ManualCheckInRequest{SessionID: "s1", StudentID: "student-1", Status: "late"}, admin, now)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusLate, record.Status)
	assert.Equal(t, now, record.CheckInTime)
}

func TestManualMarkRejections(t *testing.T) {
	svc := newAttendanceServiceForTest(newMemLedger(), nil)
	tests := []struct {
		name  string
		req   dto.ManualCheckInRequest
		actor *models.JWTClaims
		code  string
	}{
		{"bad status", dto.ManualCheckInRequest{SessionID: "s1", StudentID: "student-1", Status: "outside_area"}, owner, appErrors.ErrValidation.Code},
		{"unknown session", dto.ManualCheckInRequest{SessionID: "nope", StudentID: "student-1", Status: "present"}, owner, appErrors.ErrNotFound.Code},
		{"not owner", dto.ManualCheckInRequest{SessionID: "s1", StudentID: "student-1", Status: "present"}, stranger, appErrors.ErrForbidden.Code},
		{"unknown student", dto.ManualCheckInRequest{SessionID: "s1", StudentID: "ghost", Status: "present"}, owner, appErrors.ErrStudentNotFound.Code},
		{"not a student", dto.ManualCheckInRequest{SessionID: "s1", StudentID: "teacher-9", Status: "present"}, owner, appErrors.ErrStudentNotFound.Code},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ManualMark(context.Background(), tc.req, tc.actor, time.Now())
			assert.True(t, appErrors.HasCode(err, tc.code), err.Error())
		})
	}
}

func TestAttendanceExportCSV(t *testing.T) {
	ledger := newMemLedger()
	svc := newAttendanceServiceForTest(ledger, nil)
	svc.ledger.(*listingLedger).rows = []models.SessionAttendance{{
		AttendanceRecord: models.AttendanceRecord{
			Status:      models.AttendanceStatusPresent,
			CheckInTime: time.Date(2024, 5, 6, 9, 58, 0, 0, time.UTC),
			Location:    models.Location{DistanceToClassMeters: 12.34},
		},
		StudentName:  "Ani",
		StudentEmail: "ani@example.com",
	}}

	result, err := svc.Export(context.Background(), "s1", dto.ExportFormatCSV, owner, time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "attendance_s1_20240506_120000.csv", result.Filename)
	assert.True(t, strings.HasPrefix(result.ContentType, "text/csv"))
	assert.True(t, bytes.Contains(result.Data, []byte("1,Ani,,ani@example.com,present,2024-05-06 09:58:00,12.3")))

	_, err = svc.Export(context.Background(), "s1", "docx", owner, time.Now())
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = svc.Export(context.Background(), "s1", dto.ExportFormatXLSX, stranger, time.Now())
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))
}

func TestAttendanceHistory(t *testing.T) {
	svc := newAttendanceServiceForTest(newMemLedger(), nil)
	items, err := svc.History(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = svc.History(context.Background(), "")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))
}
