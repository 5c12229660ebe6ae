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

const sessionColumns = `id, title, course_id, instructor_id, start_time, end_time, attendance_window_start, attendance_window_end,
       latitude, longitude, radius_meters, token, token_expires_at, status, created_at, updated_at`

// SessionRepository persists attendance sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Status == "" {
		session.Status = models.SessionStatusScheduled
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	const query = `INSERT INTO attendance_sessions
	(id, title, course_id, instructor_id, start_time, end_time, attendance_window_start, attendance_window_end,
	 latitude, longitude, radius_meters, token, token_expires_at, status, created_at, updated_at)
	VALUES (:id, :title, :course_id, :instructor_id, :start_time, :end_time, :attendance_window_start, :attendance_window_end,
	 :latitude, :longitude, :radius_meters, :token, :token_expires_at, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", translatePQ(err))
	}
	return nil
}

// FindByID returns a session by identifier.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM attendance_sessions WHERE id = $1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &session, nil
}

// ListByCourse returns the sessions of a course, newest first.
func (r *SessionRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM attendance_sessions WHERE course_id = $1 ORDER BY created_at DESC`
	sessions := make([]models.Session, 0)
	if err := r.db.SelectContext(ctx, &sessions, query, courseID); err != nil {
		return nil, fmt.Errorf("list sessions by course: %w", err)
	}
	return sessions, nil
}

// RotateToken replaces the token, marks the session ongoing and returns the stored row.
func (r *SessionRepository) RotateToken(ctx context.Context, id, token string, expiresAt, updatedAt time.Time) (*models.Session, error) {
	query := `UPDATE attendance_sessions
	SET token = $2, token_expires_at = $3, status = $4, updated_at = $5
	WHERE id = $1
	RETURNING ` + sessionColumns
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id, token, expiresAt, models.SessionStatusOngoing, updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("rotate session token: %w", err)
	}
	return &session, nil
}

// Update persists the whitelisted mutable fields of a session and returns the
// stored row. A nil status keeps the stored one, so a concurrent RotateToken is
// not overwritten.
func (r *SessionRepository) Update(ctx context.Context, session *models.Session, status *models.SessionStatus) (*models.Session, error) {
	query := `UPDATE attendance_sessions SET
	title = $2, course_id = $3, start_time = $4, end_time = $5,
	attendance_window_start = $6, attendance_window_end = $7,
	latitude = $8, longitude = $9, radius_meters = $10,
	status = COALESCE($11, status), updated_at = $12
	WHERE id = $1
	RETURNING ` + sessionColumns
	var newStatus *string
	if status != nil {
		value := string(*status)
		newStatus = &value
	}
	var stored models.Session
	err := r.db.GetContext(ctx, &stored, query,
		session.ID, session.Title, session.CourseID, session.StartTime, session.EndTime,
		session.AttendanceWindowStart, session.AttendanceWindowEnd,
		session.Latitude, session.Longitude, session.RadiusMeters,
		newStatus, time.Now().UTC(),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update session: %w", err)
	}
	return &stored, nil
}

// Close marks the session closed and invalidates its token.
func (r *SessionRepository) Close(ctx context.Context, id string, updatedAt time.Time) (*models.Session, error) {
	query := `UPDATE attendance_sessions
	SET status = $2, token = NULL, token_expires_at = NULL, updated_at = $3
	WHERE id = $1
	RETURNING ` + sessionColumns
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id, models.SessionStatusClosed, updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("close session: %w", err)
	}
	return &session, nil
}

// Delete removes the session row. Callers purge its records first in the same transaction.
func (r *SessionRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM attendance_sessions WHERE id = $1`
	result, err := pick(r.db, exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", translatePQ(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
