package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/geo-attendance-api/internal/dto"
	"github.com/noah-isme/geo-attendance-api/internal/models"
	"github.com/noah-isme/geo-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/geo-attendance-api/pkg/errors"
)

type attendanceLedger interface {
	UpsertManual(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	DeleteForStudent(ctx context.Context, sessionID, studentID string) (bool, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.SessionAttendance, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.AttendanceHistoryItem, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// sessionOwnership resolves a session the actor is allowed to manage.
type sessionOwnership interface {
	Owned(ctx context.Context, id string, actor *models.JWTClaims) (*models.Session, error)
}

// AttendanceService covers instructor overrides and attendance listings.
type AttendanceService struct {
	sessions  sessionOwnership
	ledger    attendanceLedger
	users     userFinder
	exporter  *ExportService
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the service.
func NewAttendanceService(sessions sessionOwnership, ledger attendanceLedger, users userFinder, exporter *ExportService, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if exporter == nil {
		exporter = NewExportService(nil, nil, logger)
	}
	svc := &AttendanceService{sessions: sessions, ledger: ledger, users: users, exporter: exporter, audit: audit, validator: validate, logger: logger}
	_ = svc.validator.RegisterValidation("manual_status", func(fl validator.FieldLevel) bool {
		return models.ManualMarkStatus(fl.Field().String()).Valid()
	})
	return svc
}

// ManualMark sets a student's outcome by hand. Present and late upsert a record
// without location data, keeping the original check-in time of an existing
// record. Absent removes any record and returns nil.
func (s *AttendanceService) ManualMark(ctx context.Context, req dto.ManualCheckInRequest, actor *models.JWTClaims, now time.Time) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid manual check-in payload")
	}
	session, err := s.sessions.Owned(ctx, req.SessionID, actor)
	if err != nil {
		return nil, err
	}
	if err := s.ensureStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}

	var (
		record *models.AttendanceRecord
		status = models.ManualMarkStatus(req.Status)
	)
	switch status {
	case models.ManualMarkAbsent:
		removed, err := s.ledger.DeleteForStudent(ctx, session.ID, req.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove attendance")
		}
		if !removed {
			return nil, nil
		}
	case models.ManualMarkPresent, models.ManualMarkLate:
		record, err = s.ledger.UpsertManual(ctx, &models.AttendanceRecord{
			SessionID:   session.ID,
			StudentID:   req.StudentID,
			CheckInTime: now.UTC().Truncate(time.Millisecond),
			Status:      models.AttendanceStatus(status),
		})
		if err != nil {
			if errors.Is(err, repository.ErrReferenceNotFound) {
				return nil, appErrors.ErrSessionNotFound
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be present, late or absent")
	}

	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionManualMark,
		Resource:   models.AuditResourceAttendance,
		ResourceID: &session.ID,
		NewValues:  marshalAudit(map[string]interface{}{"studentId": req.StudentID, "status": status}),
	})
	return record, nil
}

// ListBySession returns the records of a session the actor owns.
func (s *AttendanceService) ListBySession(ctx context.Context, sessionID string, actor *models.JWTClaims) (*models.Session, []models.SessionAttendance, error) {
	session, err := s.sessions.Owned(ctx, sessionID, actor)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.ledger.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return session, rows, nil
}

// History returns the student's own attendance, newest first.
func (s *AttendanceService) History(ctx context.Context, studentID string) ([]models.AttendanceHistoryItem, error) {
	if studentID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	items, err := s.ledger.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}
	return items, nil
}

// Export renders the attendance sheet of a session the actor owns.
func (s *AttendanceService) Export(ctx context.Context, sessionID string, format dto.ExportFormat, actor *models.JWTClaims, now time.Time) (*ExportResult, error) {
	session, rows, err := s.ListBySession(ctx, sessionID, actor)
	if err != nil {
		return nil, err
	}
	return s.exporter.SessionSheet(session, rows, format, now)
}

func (s *AttendanceService) ensureStudent(ctx context.Context, studentID string) error {
	if s.users == nil {
		return nil
	}
	user, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrStudentNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if user.Role != models.RoleStudent {
		return appErrors.ErrStudentNotFound
	}
	return nil
}
