package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/geo-attendance-api/internal/dto"
	"github.com/noah-isme/geo-attendance-api/internal/models"
	"github.com/noah-isme/geo-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/geo-attendance-api/pkg/errors"
)

const defaultRejectReason = "no reason provided"

type deviceRequestStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, request *models.DeviceRequest) error
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.DeviceRequest, error)
	FindLatestByStudent(ctx context.Context, studentID string) (*models.DeviceRequest, error)
	Resolve(ctx context.Context, exec sqlx.ExtContext, request *models.DeviceRequest) (*models.DeviceRequest, error)
	List(ctx context.Context, filter models.DeviceRequestFilter) ([]models.DeviceRequestView, int, error)
	CountByStatus(ctx context.Context, status models.DeviceRequestStatus) (int, error)
}

type deviceBindingStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.User, error)
	BindDeviceIfUnset(ctx context.Context, id, deviceID string, ts time.Time) (bool, error)
	SetPendingDeviceChange(ctx context.Context, exec sqlx.ExtContext, id string, pending bool, ts time.Time) error
	ApplyDeviceChange(ctx context.Context, exec sqlx.ExtContext, id, deviceID string, ts time.Time) error
}

// DeviceService runs the device change workflow: pending, then approved or
// rejected, with the student's pending flag kept in step with the request.
type DeviceService struct {
	requests  deviceRequestStore
	users     deviceBindingStore
	tx        txRunner
	cache     *CacheService
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDeviceService constructs the service.
func NewDeviceService(requests deviceRequestStore, users deviceBindingStore, tx txRunner, cache *CacheService, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *DeviceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &DeviceService{requests: requests, users: users, tx: tx, cache: cache, audit: audit, metrics: metrics, validator: validate, logger: logger}
	_ = svc.validator.RegisterValidation("device_request_status", func(fl validator.FieldLevel) bool {
		return models.DeviceRequestStatus(fl.Field().String()).Valid()
	})
	return svc
}

// Submit opens a change request for a student. The student row is locked for
// the duration so the pending flag and the request are written together.
func (s *DeviceService) Submit(ctx context.Context, req dto.SubmitDeviceRequest, now time.Time) (*models.DeviceRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid device request payload")
	}
	ts := now.UTC().Truncate(time.Millisecond)
	request := &models.DeviceRequest{
		StudentID:   req.StudentID,
		NewDeviceID: req.NewDeviceID,
		CreatedAt:   ts,
	}
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		student, err := s.users.LockByID(ctx, exec, req.StudentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrStudentNotFound
			}
			return err
		}
		if student.Role != models.RoleStudent {
			return appErrors.ErrStudentNotFound
		}
		request.OldDeviceID = student.DeviceID
		if req.OldDeviceID != nil && *req.OldDeviceID != "" {
			request.OldDeviceID = req.OldDeviceID
		}
		if err := s.requests.Create(ctx, exec, request); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return appErrors.ErrDeviceRequestPending
			}
			return err
		}
		return s.users.SetPendingDeviceChange(ctx, exec, student.ID, true, ts)
	})
	if err != nil {
		return nil, translateWorkflowError(err, "failed to submit device request")
	}

	s.afterTransition(ctx, "submit", &models.AuditLog{
		Action:     models.AuditActionDeviceSubmit,
		Resource:   models.AuditResourceDeviceRequest,
		ResourceID: &request.ID,
		NewValues:  marshalAudit(request),
	})
	return request, nil
}

// Approve rebinds the student to the requested device. Other students'
// bindings are untouched.
func (s *DeviceService) Approve(ctx context.Context, requestID string, actor *models.JWTClaims, now time.Time) (*models.DeviceRequest, error) {
	return s.resolve(ctx, models.DeviceRequestDecision{RequestID: requestID, ProcessedBy: actorID(actor)}, models.DeviceRequestApproved, now)
}

// Reject closes the request without changing the bound device.
func (s *DeviceService) Reject(ctx context.Context, requestID string, req dto.RejectDeviceRequest, actor *models.JWTClaims, now time.Time) (*models.DeviceRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reject payload")
	}
	reason := req.Reason
	if reason == "" {
		reason = defaultRejectReason
	}
	return s.resolve(ctx, models.DeviceRequestDecision{RequestID: requestID, ProcessedBy: actorID(actor), Reason: reason}, models.DeviceRequestRejected, now)
}

func (s *DeviceService) resolve(ctx context.Context, decision models.DeviceRequestDecision, target models.DeviceRequestStatus, now time.Time) (*models.DeviceRequest, error) {
	if decision.ProcessedBy == "" {
		return nil, appErrors.ErrUnauthorized
	}
	ts := now.UTC().Truncate(time.Millisecond)
	var resolved *models.DeviceRequest
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		request, err := s.requests.LockByID(ctx, exec, decision.RequestID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrDeviceRequestNotFound
			}
			return err
		}
		switch request.Status {
		case models.DeviceRequestPending:
		case models.DeviceRequestApproved, models.DeviceRequestRejected:
			return appErrors.ErrRequestAlreadyHandled
		default:
			return appErrors.Clone(appErrors.ErrInternal, "device request has unknown status")
		}

		request.Status = target
		request.ProcessedAt = &ts
		request.ProcessedBy = &decision.ProcessedBy
		if decision.Reason != "" {
			request.RejectReason = &decision.Reason
		}
		resolved, err = s.requests.Resolve(ctx, exec, request)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrRequestAlreadyHandled
			}
			return err
		}

		switch target {
		case models.DeviceRequestApproved:
			return s.users.ApplyDeviceChange(ctx, exec, resolved.StudentID, resolved.NewDeviceID, ts)
		case models.DeviceRequestRejected:
			return s.users.SetPendingDeviceChange(ctx, exec, resolved.StudentID, false, ts)
		case models.DeviceRequestPending:
			return appErrors.Clone(appErrors.ErrInternal, "cannot resolve a request to pending")
		default:
			return appErrors.Clone(appErrors.ErrInternal, "unknown target status")
		}
	})
	if err != nil {
		return nil, translateWorkflowError(err, "failed to process device request")
	}

	action, metric := models.AuditActionDeviceApprove, "approve"
	if target == models.DeviceRequestRejected {
		action, metric = models.AuditActionDeviceReject, "reject"
	}
	s.afterTransition(ctx, metric, &models.AuditLog{
		UserID:     &decision.ProcessedBy,
		Action:     action,
		Resource:   models.AuditResourceDeviceRequest,
		ResourceID: &resolved.ID,
		OldValues:  marshalAudit(map[string]interface{}{"status": models.DeviceRequestPending}),
		NewValues:  marshalAudit(resolved),
	})
	return resolved, nil
}

// LatestStatus returns the public view of a student's most recent request.
func (s *DeviceService) LatestStatus(ctx context.Context, studentID string) (*dto.DeviceRequestStatusResponse, error) {
	request, err := s.requests.FindLatestByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrDeviceRequestNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load device request")
	}
	return &dto.DeviceRequestStatusResponse{
		Status:       request.Status,
		RejectReason: request.RejectReason,
		CreatedAt:    request.CreatedAt,
		ProcessedAt:  request.ProcessedAt,
	}, nil
}

// List returns requests with student details, newest first.
func (s *DeviceService) List(ctx context.Context, query dto.DeviceRequestQuery) ([]models.DeviceRequestView, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid device request filter")
	}
	filter := models.DeviceRequestFilter{Page: query.Page, PageSize: query.PageSize}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	if query.Status != "" {
		status := models.DeviceRequestStatus(query.Status)
		filter.Status = &status
	}
	items, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list device requests")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// PendingCount returns the number of pending requests and whether it was
// served from cache.
func (s *DeviceService) PendingCount(ctx context.Context) (int, bool, error) {
	var cached int
	if hit, _ := s.cache.Get(ctx, cacheKeyPendingDeviceCount, &cached); hit {
		return cached, true, nil
	}
	count, err := s.requests.CountByStatus(ctx, models.DeviceRequestPending)
	if err != nil {
		return 0, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count device requests")
	}
	_ = s.cache.Set(ctx, cacheKeyPendingDeviceCount, count, 0)
	return count, false, nil
}

// CheckBinding enforces the one-device rule when a student authenticates.
// An unbound account is bound to deviceID on first use.
func (s *DeviceService) CheckBinding(ctx context.Context, user *models.User, deviceID string, now time.Time) error {
	if user == nil || user.Role != models.RoleStudent {
		return nil
	}
	if deviceID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "deviceId is required for students")
	}
	if user.DeviceID == nil {
		bound, err := s.users.BindDeviceIfUnset(ctx, user.ID, deviceID, now.UTC())
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bind device")
		}
		if bound {
			user.DeviceID = &deviceID
			emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
				UserID:     &user.ID,
				Action:     models.AuditActionDeviceBound,
				Resource:   models.AuditResourceUser,
				ResourceID: &user.ID,
				NewValues:  marshalAudit(map[string]string{"deviceId": deviceID}),
			})
			return nil
		}
		// Another login bound a device first; evaluate against what was stored.
		fresh, err := s.users.FindByID(ctx, user.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload user")
		}
		*user = *fresh
		if user.DeviceID == nil {
			return appErrors.Clone(appErrors.ErrInternal, "device binding did not persist")
		}
	}

	if *user.DeviceID == deviceID {
		return nil
	}
	if user.PendingDeviceChange {
		return appErrors.WithDetails(appErrors.ErrDeviceApprovalPending, map[string]interface{}{"studentId": user.ID})
	}
	return appErrors.WithDetails(appErrors.ErrDeviceMismatch, map[string]interface{}{
		"studentId":   user.ID,
		"studentName": user.FullName,
		"studentCode": deref(user.StudentCode),
		"oldDeviceId": *user.DeviceID,
		"newDeviceId": deviceID,
	})
}

func (s *DeviceService) afterTransition(ctx context.Context, action string, log *models.AuditLog) {
	_ = s.cache.Invalidate(ctx, cacheKeyPendingDeviceCount)
	s.metrics.RecordDeviceRequest(action)
	emitAudit(ctx, s.audit, s.logger, log)
}

// translateWorkflowError keeps typed errors raised inside a transaction and
// wraps everything else as internal.
func translateWorkflowError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func actorID(actor *models.JWTClaims) string {
	if actor == nil {
		return ""
	}
	return actor.UserID
}
