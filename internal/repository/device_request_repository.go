package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/geo-attendance-api/internal/models"
)

const deviceRequestColumns = `id, student_id, old_device_id, new_device_id, status, reject_reason, processed_at, processed_by, created_at, updated_at`

// DeviceRequestRepository persists device change requests.
type DeviceRequestRepository struct {
	db *sqlx.DB
}

// NewDeviceRequestRepository constructs the repository.
func NewDeviceRequestRepository(db *sqlx.DB) *DeviceRequestRepository {
	return &DeviceRequestRepository{db: db}
}

// Create inserts a pending request. ErrConflict means the student already has
// one pending, enforced by the uq_device_requests_pending partial index.
func (r *DeviceRequestRepository) Create(ctx context.Context, exec sqlx.ExtContext, request *models.DeviceRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	request.Status = models.DeviceRequestPending
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now

	const query = `INSERT INTO device_requests
	(id, student_id, old_device_id, new_device_id, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (student_id) WHERE status = 'pending' DO NOTHING
	RETURNING id`
	var insertedID string
	err := pick(r.db, exec).QueryRowxContext(ctx, query,
		request.ID, request.StudentID, request.OldDeviceID, request.NewDeviceID, request.Status,
		request.CreatedAt, request.UpdatedAt,
	).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConflict
		}
		return fmt.Errorf("create device request: %w", translatePQ(err))
	}
	return nil
}

// LockByID loads a request and holds a row lock until the transaction ends.
func (r *DeviceRequestRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.DeviceRequest, error) {
	query := `SELECT ` + deviceRequestColumns + ` FROM device_requests WHERE id = $1 FOR UPDATE`
	var request models.DeviceRequest
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &request, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock device request: %w", err)
	}
	return &request, nil
}

// FindLatestByStudent returns the most recent request of a student.
func (r *DeviceRequestRepository) FindLatestByStudent(ctx context.Context, studentID string) (*models.DeviceRequest, error) {
	query := `SELECT ` + deviceRequestColumns + ` FROM device_requests WHERE student_id = $1 ORDER BY created_at DESC LIMIT 1`
	var request models.DeviceRequest
	if err := r.db.GetContext(ctx, &request, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find latest device request: %w", err)
	}
	return &request, nil
}

// Resolve moves a pending request to a terminal state. sql.ErrNoRows means the
// request was no longer pending.
func (r *DeviceRequestRepository) Resolve(ctx context.Context, exec sqlx.ExtContext, request *models.DeviceRequest) (*models.DeviceRequest, error) {
	query := `UPDATE device_requests
	SET status = $2, reject_reason = $3, processed_at = $4, processed_by = $5, updated_at = $6
	WHERE id = $1 AND status = 'pending'
	RETURNING ` + deviceRequestColumns
	var stored models.DeviceRequest
	err := sqlx.GetContext(ctx, pick(r.db, exec), &stored, query,
		request.ID, request.Status, request.RejectReason, request.ProcessedAt, request.ProcessedBy, time.Now().UTC(),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve device request: %w", err)
	}
	return &stored, nil
}

// List returns requests joined with the student, newest first.
func (r *DeviceRequestRepository) List(ctx context.Context, filter models.DeviceRequestFilter) ([]models.DeviceRequestView, int, error) {
	baseQuery := `FROM device_requests dr JOIN users u ON u.id = dr.student_id`
	var conditions []string
	var args []interface{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("dr.status = $%d", len(args)))
	}
	if len(conditions) > 0 {
		baseQuery += " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT dr.id, dr.student_id, dr.old_device_id, dr.new_device_id, dr.status, dr.reject_reason,
       dr.processed_at, dr.processed_by, dr.created_at, dr.updated_at,
       u.full_name AS student_name, u.email AS student_email, u.student_code
	%s ORDER BY dr.created_at DESC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	requests := make([]models.DeviceRequestView, 0)
	if err := r.db.SelectContext(ctx, &requests, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list device requests: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count device requests: %w", err)
	}
	return requests, total, nil
}

// CountByStatus returns how many requests are in the given state.
func (r *DeviceRequestRepository) CountByStatus(ctx context.Context, status models.DeviceRequestStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM device_requests WHERE status = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, status); err != nil {
		return 0, fmt.Errorf("count device requests by status: %w", err)
	}
	return total, nil
}
