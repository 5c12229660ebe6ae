package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/geo-attendance-api/internal/dto"
	"github.com/noah-isme/geo-attendance-api/internal/models"
	"github.com/noah-isme/geo-attendance-api/pkg/config"
	appErrors "github.com/noah-isme/geo-attendance-api/pkg/errors"
)

type sessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Session, error)
	RotateToken(ctx context.Context, id, token string, expiresAt, updatedAt time.Time) (*models.Session, error)
	Update(ctx context.Context, session *models.Session, status *models.SessionStatus) (*models.Session, error)
	Close(ctx context.Context, id string, updatedAt time.Time) (*models.Session, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

// sessionLedger is the slice of the attendance ledger that session deletion needs.
type sessionLedger interface {
	DeleteAllForSession(ctx context.Context, exec sqlx.ExtContext, sessionID string) (int64, error)
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error
}

// SessionService owns the session lifecycle: open, rotate, update, close, delete.
type SessionService struct {
	store     sessionStore
	ledger    sessionLedger
	tx        txRunner
	issuer    *TokenIssuer
	audit     auditLogger
	metrics   *MetricsService
	cfg       config.AttendanceConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService constructs the service.
func NewSessionService(store sessionStore, ledger sessionLedger, tx txRunner, issuer *TokenIssuer, audit auditLogger, metrics *MetricsService, cfg config.AttendanceConfig, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if issuer == nil {
		issuer = NewTokenIssuer(cfg)
	}
	if cfg.DefaultRadiusMeters <= 0 {
		cfg.DefaultRadiusMeters = 100
	}
	if cfg.DefaultWindowDuration <= 0 {
		cfg.DefaultWindowDuration = 15 * time.Minute
	}
	svc := &SessionService{store: store, ledger: ledger, tx: tx, issuer: issuer, audit: audit, metrics: metrics, cfg: cfg, validator: validate, logger: logger}
	_ = svc.validator.RegisterValidation("session_status", func(fl validator.FieldLevel) bool {
		return models.SessionStatus(fl.Field().String()).Valid()
	})
	return svc
}

// Create opens a new scheduled session owned by instructorID.
func (s *SessionService) Create(ctx context.Context, req dto.CreateSessionRequest, instructorID string, now time.Time) (*models.Session, error) {
	if req.StartTime == "" || req.EndTime == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startTime and endTime are required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	start, err := parseInstant("startTime", req.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseInstant("endTime", req.EndTime)
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, appErrors.ErrInvalidTimeWindow
	}

	windowStart := start
	if req.AttendanceWindowStart != nil && *req.AttendanceWindowStart != "" {
		if windowStart, err = parseInstant("attendanceWindowStart", *req.AttendanceWindowStart); err != nil {
			return nil, err
		}
	}
	windowEnd := start.Add(s.cfg.DefaultWindowDuration)
	if req.AttendanceWindowEnd != nil && *req.AttendanceWindowEnd != "" {
		if windowEnd, err = parseInstant("attendanceWindowEnd", *req.AttendanceWindowEnd); err != nil {
			return nil, err
		}
	}

	radius := s.cfg.DefaultRadiusMeters
	if req.Radius != nil {
		radius = *req.Radius
	}

	session := &models.Session{
		Title:                 req.Title,
		CourseID:              req.CourseID,
		InstructorID:          instructorID,
		StartTime:             start,
		EndTime:               end,
		AttendanceWindowStart: windowStart,
		AttendanceWindowEnd:   windowEnd,
		Geofence: models.Geofence{
			Latitude:     *req.Latitude,
			Longitude:    *req.Longitude,
			RadiusMeters: radius,
		},
		Status:    models.SessionStatusScheduled,
		CreatedAt: now.UTC().Truncate(time.Millisecond),
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	return session, nil
}

// Get returns a session by id.
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// ListByCourse returns the sessions of a course, newest first.
func (s *SessionService) ListByCourse(ctx context.Context, courseID string) ([]models.Session, error) {
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "courseId is required")
	}
	sessions, err := s.store.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// Owned loads a session and checks that actor may manage it.
func (s *SessionService) Owned(ctx context.Context, id string, actor *models.JWTClaims) (*models.Session, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.OwnedBy(actor.UserID, actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the session owner can manage this session")
	}
	return session, nil
}

// RotateToken issues a new QR token, invalidating any previous one, and marks
// the session ongoing.
func (s *SessionService) RotateToken(ctx context.Context, id string, req dto.RotateTokenRequest, actor *models.JWTClaims, now time.Time) (*models.SessionToken, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid token payload")
	}
	if _, err := s.Owned(ctx, id, actor); err != nil {
		return nil, err
	}
	token, expiresAt, err := s.issuer.Issue(now, s.issuer.ResolveTTL(req.ExpiresInMinutes))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate token")
	}
	session, err := s.store.RotateToken(ctx, id, token, expiresAt, now.UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rotate token")
	}
	s.metrics.RecordTokenRotation()
	return &models.SessionToken{Token: token, SessionID: session.ID, ExpiresAt: expiresAt}, nil
}

// Update applies whitelisted field changes. The merged start/end pair must
// still be ordered.
func (s *SessionService) Update(ctx context.Context, id string, req dto.UpdateSessionRequest, actor *models.JWTClaims) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	update, err := toSessionUpdate(req)
	if err != nil {
		return nil, err
	}
	if update.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no updatable fields supplied")
	}
	current, err := s.Owned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	merged := update.Apply(*current)
	if !merged.StartTime.Before(merged.EndTime) {
		return nil, appErrors.ErrInvalidTimeWindow
	}
	stored, err := s.store.Update(ctx, &merged, update.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	return stored, nil
}

// Close marks the session closed and clears its token.
func (s *SessionService) Close(ctx context.Context, id string, actor *models.JWTClaims, now time.Time) (*models.Session, error) {
	current, err := s.Owned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	session, err := s.store.Close(ctx, id, now.UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close session")
	}
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionSessionClose,
		Resource:   models.AuditResourceSession,
		ResourceID: &session.ID,
		OldValues:  marshalAudit(map[string]interface{}{"status": current.Status}),
		NewValues:  marshalAudit(map[string]interface{}{"status": session.Status}),
	})
	return session, nil
}

// Delete purges the session's attendance records and the session itself in one transaction.
func (s *SessionService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	session, err := s.Owned(ctx, id, actor)
	if err != nil {
		return err
	}
	var purged int64
	err = s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		n, err := s.ledger.DeleteAllForSession(ctx, exec, id)
		if err != nil {
			return err
		}
		purged = n
		return s.store.Delete(ctx, exec, id)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrSessionNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	s.logger.Info("session deleted", zap.String("session_id", id), zap.Int64("records_purged", purged))
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionSessionDelete,
		Resource:   models.AuditResourceSession,
		ResourceID: &session.ID,
		OldValues:  marshalAudit(session),
		NewValues:  marshalAudit(map[string]interface{}{"recordsPurged": purged}),
	})
	return nil
}

func toSessionUpdate(req dto.UpdateSessionRequest) (models.SessionUpdate, error) {
	update := models.SessionUpdate{
		Title:        req.Title,
		CourseID:     req.CourseID,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		RadiusMeters: req.Radius,
	}
	fields := []struct {
		name string
		raw  *string
		dst  **time.Time
	}{
		{"startTime", req.StartTime, &update.StartTime},
		{"endTime", req.EndTime, &update.EndTime},
		{"attendanceWindowStart", req.AttendanceWindowStart, &update.AttendanceWindowStart},
		{"attendanceWindowEnd", req.AttendanceWindowEnd, &update.AttendanceWindowEnd},
	}
	for _, f := range fields {
		if f.raw == nil {
			continue
		}
		t, err := parseInstant(f.name, *f.raw)
		if err != nil {
			return models.SessionUpdate{}, err
		}
		*f.dst = &t
	}
	if req.Status != nil {
		status := models.SessionStatus(*req.Status)
		update.Status = &status
	}
	return update, nil
}

// parseInstant accepts RFC 3339 timestamps and normalises them to UTC milliseconds.
func parseInstant(field, raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, appErrors.WithDetails(
			appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, field+" must be an RFC 3339 timestamp"),
			map[string]interface{}{"field": field},
		)
	}
	return t.UTC().Truncate(time.Millisecond), nil
}

func marshalAudit(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
