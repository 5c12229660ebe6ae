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

const userColumns = `id, email, password_hash, full_name, role, student_code, device_id, pending_device_change, active, last_login, created_at, updated_at`

// UserRepository provides database access to identities and their device binding.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// LockByID loads a user and holds a row lock until the transaction ends,
// serialising device binding writes per student.
func (r *UserRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	var user models.User
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock user: %w", err)
	}
	return &user, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, email, password_hash, full_name, role, student_code, device_id, pending_device_change, active, created_at, updated_at)
	VALUES (:id, :email, :password_hash, :full_name, :role, :student_code, :device_id, :pending_device_change, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", translatePQ(err))
	}
	return nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// BindDeviceIfUnset binds deviceID on first use. It reports false when a device
// was already bound, including one bound concurrently.
func (r *UserRepository) BindDeviceIfUnset(ctx context.Context, id, deviceID string, ts time.Time) (bool, error) {
	const query = `UPDATE users SET device_id = $2, updated_at = $3 WHERE id = $1 AND device_id IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, deviceID, ts)
	if err != nil {
		return false, fmt.Errorf("bind device: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("bind device rows affected: %w", err)
	}
	return affected == 1, nil
}

// SetPendingDeviceChange mirrors whether a pending request exists for the user.
func (r *UserRepository) SetPendingDeviceChange(ctx context.Context, exec sqlx.ExtContext, id string, pending bool, ts time.Time) error {
	const query = `UPDATE users SET pending_device_change = $2, updated_at = $3 WHERE id = $1`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, id, pending, ts); err != nil {
		return fmt.Errorf("set pending device change: %w", err)
	}
	return nil
}

// ApplyDeviceChange rebinds the user to deviceID and clears the pending flag.
func (r *UserRepository) ApplyDeviceChange(ctx context.Context, exec sqlx.ExtContext, id, deviceID string, ts time.Time) error {
	const query = `UPDATE users SET device_id = $2, pending_device_change = FALSE, updated_at = $3 WHERE id = $1`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, id, deviceID, ts); err != nil {
		return fmt.Errorf("apply device change: %w", err)
	}
	return nil
}
