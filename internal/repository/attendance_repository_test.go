package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/geo-attendance-api/internal/models"
)

var recordColumnNames = []string{"id", "session_id", "student_id", "check_in_time", "status", "latitude", "longitude", "accuracy", "distance_to_class_meters", "created_at", "updated_at"}

func newRecord() *models.AttendanceRecord {
	return &models.AttendanceRecord{
		SessionID:   "s1",
		StudentID:   "st1",
		CheckInTime: time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC),
		Status:      models.AttendanceStatusLate,
		Location:    models.Location{Latitude: -6.2, Longitude: 106.8, DistanceToClassMeters: 12.5},
	}
}

func TestAttendanceInsertStoresRecord(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (session_id, student_id) DO NOTHING RETURNING id")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r1"))

	record := newRecord()
	require.NoError(t, repo.Insert(context.Background(), record))
	assert.NotEmpty(t, record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceInsertConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance_records")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := repo.Insert(context.Background(), newRecord())
	require.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceInsertMissingSession(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance_records")).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "attendance_records_session_id_fkey"})

	err := repo.Insert(context.Background(), newRecord())
	require.ErrorIs(t, err, ErrReferenceNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceFindBySessionAndStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_records WHERE session_id = $1 AND student_id = $2")).
		WithArgs("s1", "st1").
		WillReturnRows(sqlmock.NewRows(recordColumnNames).AddRow("r1", "s1", "st1", now, "present", -6.2, 106.8, nil, 3.0, now, now))

	record, err := repo.FindBySessionAndStudent(context.Background(), "s1", "st1")
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
	assert.Nil(t, record.Accuracy)
	assert.Equal(t, 3.0, record.DistanceToClassMeters)

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_records WHERE session_id = $1 AND student_id = $2")).
		WithArgs("s1", "nobody").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.FindBySessionAndStudent(context.Background(), "s1", "nobody")
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceUpsertManualKeepsOriginalCheckInTime(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)
	original := time.Date(2026, 3, 2, 10, 3, 0, 0, time.UTC)
	now := original.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (session_id, student_id) DO UPDATE SET")).
		WillReturnRows(sqlmock.NewRows(recordColumnNames).AddRow("r1", "s1", "st1", original, "late", 0.0, 0.0, nil, 0.0, original, now))

	record := &models.AttendanceRecord{SessionID: "s1", StudentID: "st1", CheckInTime: now, Status: models.AttendanceStatusLate}
	stored, err := repo.UpsertManual(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, original, stored.CheckInTime)
	assert.Equal(t, models.AttendanceStatusLate, stored.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceDeletes(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance_records WHERE session_id = $1 AND student_id = $2")).
		WithArgs("s1", "st1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	existed, err := repo.DeleteForStudent(context.Background(), "s1", "st1")
	require.NoError(t, err)
	assert.False(t, existed)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance_records WHERE session_id = $1")).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	purged, err := repo.DeleteAllForSession(context.Background(), nil, "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, purged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceListBySession(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)
	now := time.Now().UTC()

	cols := append(append([]string{}, recordColumnNames...), "student_name", "student_email", "student_code")
	mock.ExpectQuery(regexp.QuoteMeta("JOIN users u ON u.id = ar.student_id")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("r1", "s1", "st1", now, "present", -6.2, 106.8, 5.0, 3.0, now, now, "Ani", "ani@example.com", "S-01"))

	rows, err := repo.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ani", rows[0].StudentName)
	require.NotNil(t, rows[0].Accuracy)
	assert.Equal(t, 5.0, *rows[0].Accuracy)
	assert.NoError(t, mock.ExpectationsWereMet())
}
