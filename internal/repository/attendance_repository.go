package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/geo-attendance-api/internal/models"
)

const recordColumns = `id, session_id, student_id, check_in_time, status, latitude, longitude, accuracy, distance_to_class_meters, created_at, updated_at`

// AttendanceRepository is the attendance ledger. It keeps at most one record
// per (session, student) pair through the uq_attendance_session_student constraint.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

func prepareRecord(record *models.AttendanceRecord) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
}

// Insert stores a new record. A concurrent or prior record for the same pair
// yields ErrConflict; the insert itself is the uniqueness check.
func (r *AttendanceRepository) Insert(ctx context.Context, record *models.AttendanceRecord) error {
	prepareRecord(record)
	const query = `INSERT INTO attendance_records
	(id, session_id, student_id, check_in_time, status, latitude, longitude, accuracy, distance_to_class_meters, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (session_id, student_id) DO NOTHING RETURNING id`
	var insertedID string
	err := r.db.QueryRowxContext(ctx, query,
		record.ID, record.SessionID, record.StudentID, record.CheckInTime, record.Status,
		record.Latitude, record.Longitude, record.Accuracy, record.DistanceToClassMeters,
		record.CreatedAt, record.UpdatedAt,
	).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConflict
		}
		return fmt.Errorf("insert attendance record: %w", translatePQ(err))
	}
	return nil
}

// FindBySessionAndStudent returns the record of a pair or sql.ErrNoRows.
func (r *AttendanceRepository) FindBySessionAndStudent(ctx context.Context, sessionID, studentID string) (*models.AttendanceRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE session_id = $1 AND student_id = $2`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, sessionID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance record: %w", err)
	}
	return &record, nil
}

// UpsertManual writes an instructor override. On update the original
// check_in_time and created_at are kept; status and location are replaced.
func (r *AttendanceRepository) UpsertManual(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	prepareRecord(record)
	query := `INSERT INTO attendance_records
	(id, session_id, student_id, check_in_time, status, latitude, longitude, accuracy, distance_to_class_meters, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (session_id, student_id) DO UPDATE SET
	status = EXCLUDED.status,
	latitude = EXCLUDED.latitude,
	longitude = EXCLUDED.longitude,
	accuracy = EXCLUDED.accuracy,
	distance_to_class_meters = EXCLUDED.distance_to_class_meters,
	updated_at = EXCLUDED.updated_at
	RETURNING ` + recordColumns
	var stored models.AttendanceRecord
	err := r.db.GetContext(ctx, &stored, query,
		record.ID, record.SessionID, record.StudentID, record.CheckInTime, record.Status,
		record.Latitude, record.Longitude, record.Accuracy, record.DistanceToClassMeters,
		record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert attendance record: %w", translatePQ(err))
	}
	return &stored, nil
}

// DeleteForStudent removes the record of a pair. It reports whether a row existed.
func (r *AttendanceRepository) DeleteForStudent(ctx context.Context, sessionID, studentID string) (bool, error) {
	const query = `DELETE FROM attendance_records WHERE session_id = $1 AND student_id = $2`
	result, err := r.db.ExecContext(ctx, query, sessionID, studentID)
	if err != nil {
		return false, fmt.Errorf("delete attendance record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete attendance record rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteAllForSession purges every record of a session and returns the count removed.
func (r *AttendanceRepository) DeleteAllForSession(ctx context.Context, exec sqlx.ExtContext, sessionID string) (int64, error) {
	const query = `DELETE FROM attendance_records WHERE session_id = $1`
	result, err := pick(r.db, exec).ExecContext(ctx, query, sessionID)
	if err != nil {
		return 0, fmt.Errorf("delete session attendance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete session attendance rows affected: %w", err)
	}
	return affected, nil
}

// ListBySession returns the records of a session joined with student identity.
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]models.SessionAttendance, error) {
	const query = `SELECT ar.id, ar.session_id, ar.student_id, ar.check_in_time, ar.status, ar.latitude, ar.longitude,
       ar.accuracy, ar.distance_to_class_meters, ar.created_at, ar.updated_at,
       u.full_name AS student_name, u.email AS student_email, u.student_code
	FROM attendance_records ar
	JOIN users u ON u.id = ar.student_id
	WHERE ar.session_id = $1
	ORDER BY ar.check_in_time DESC`
	rows := make([]models.SessionAttendance, 0)
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session attendance: %w", err)
	}
	return rows, nil
}

// ListByStudent returns a student's history joined with session details, newest first.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string) ([]models.AttendanceHistoryItem, error) {
	const query = `SELECT ar.id, ar.session_id, ar.student_id, ar.check_in_time, ar.status, ar.latitude, ar.longitude,
       ar.accuracy, ar.distance_to_class_meters, ar.created_at, ar.updated_at,
       s.title AS session_title, s.course_id, s.start_time AS session_start_time, s.end_time AS session_end_time
	FROM attendance_records ar
	JOIN attendance_sessions s ON s.id = ar.session_id
	WHERE ar.student_id = $1
	ORDER BY ar.check_in_time DESC`
	rows := make([]models.AttendanceHistoryItem, 0)
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list student attendance: %w", err)
	}
	return rows, nil
}
