package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/geo-attendance-api/internal/dto"
	"github.com/noah-isme/geo-attendance-api/internal/models"
	"github.com/noah-isme/geo-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/geo-attendance-api/pkg/errors"
	"github.com/noah-isme/geo-attendance-api/pkg/geo"
)

type sessionReader interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

type checkInLedger interface {
	Insert(ctx context.Context, record *models.AttendanceRecord) error
	FindBySessionAndStudent(ctx context.Context, sessionID, studentID string) (*models.AttendanceRecord, error)
}

// CheckInService validates QR check-ins and records their outcome.
type CheckInService struct {
	sessions sessionReader
	ledger   checkInLedger
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewCheckInService constructs the service.
func NewCheckInService(sessions sessionReader, ledger checkInLedger, metrics *MetricsService, logger *zap.Logger) *CheckInService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckInService{sessions: sessions, ledger: ledger, metrics: metrics, logger: logger}
}

// CheckIn runs the validation chain against a single snapshot of the session.
// Checks run in a fixed order and the first failure wins: required fields,
// session lookup, token presence, token match, token expiry, attendance window,
// then duplicates. When the student already has a record for the session the
// existing record is returned together with ErrAlreadyCheckedIn.
func (s *CheckInService) CheckIn(ctx context.Context, req dto.CheckInRequest, studentID string, now time.Time) (record *models.AttendanceRecord, err error) {
	defer func() {
		outcome := "error"
		switch {
		case err == nil && record != nil:
			outcome = string(record.Status)
		case err != nil:
			outcome = appErrors.FromError(err).Code
		}
		s.metrics.RecordCheckIn(outcome)
	}()

	if studentID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if missing := missingCheckInFields(req); len(missing) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrMissingFields, map[string]interface{}{"fields": missing})
	}

	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	if !session.QREnabled() {
		return nil, appErrors.ErrQRNotEnabled
	}
	if subtle.ConstantTimeCompare([]byte(req.Token), []byte(*session.Token)) != 1 {
		return nil, appErrors.ErrInvalidQRToken
	}
	if now.After(*session.TokenExpiresAt) {
		return nil, appErrors.ErrQRTokenExpired
	}
	if now.Before(session.AttendanceWindowStart) || now.After(session.AttendanceWindowEnd) {
		return nil, appErrors.WithDetails(appErrors.ErrOutsideWindow, map[string]interface{}{
			"windowStart": session.AttendanceWindowStart,
			"windowEnd":   session.AttendanceWindowEnd,
		})
	}

	distance, within := geo.Within(session.Latitude, session.Longitude, session.RadiusMeters, *req.Latitude, *req.Longitude)

	existing, err := s.ledger.FindBySessionAndStudent(ctx, session.ID, studentID)
	switch {
	case err == nil:
		return existing, appErrors.ErrAlreadyCheckedIn
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	record = &models.AttendanceRecord{
		SessionID:   session.ID,
		StudentID:   studentID,
		CheckInTime: now.UTC().Truncate(time.Millisecond),
		Status:      ClassifyCheckIn(within, now, session.StartTime),
		Location: models.Location{
			Latitude:              *req.Latitude,
			Longitude:             *req.Longitude,
			Accuracy:              req.Accuracy,
			DistanceToClassMeters: distance,
		},
	}
	if err := s.ledger.Insert(ctx, record); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			// Lost the race against a concurrent check-in for the same pair.
			existing, findErr := s.ledger.FindBySessionAndStudent(ctx, session.ID, studentID)
			if findErr != nil {
				s.logger.Warn("load conflicting attendance failed", zap.String("session_id", session.ID), zap.Error(findErr))
				return nil, appErrors.ErrAlreadyCheckedIn
			}
			return existing, appErrors.ErrAlreadyCheckedIn
		case errors.Is(err, repository.ErrReferenceNotFound):
			return nil, appErrors.ErrSessionNotFound
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
		}
	}

	s.metrics.ObserveCheckInDistance(distance)
	s.logger.Debug("check-in recorded",
		zap.String("session_id", session.ID),
		zap.String("student_id", studentID),
		zap.String("status", string(record.Status)),
		zap.Float64("distance_m", distance),
	)
	return record, nil
}

// ClassifyCheckIn maps a validated check-in to its status. Being outside the
// geofence takes precedence over lateness.
func ClassifyCheckIn(withinGeofence bool, now, sessionStart time.Time) models.AttendanceStatus {
	switch {
	case !withinGeofence:
		return models.AttendanceStatusOutsideArea
	case now.After(sessionStart):
		return models.AttendanceStatusLate
	default:
		return models.AttendanceStatusPresent
	}
}

func missingCheckInFields(req dto.CheckInRequest) []string {
	var missing []string
	if req.SessionID == "" {
		missing = append(missing, "sessionId")
	}
	if req.Token == "" {
		missing = append(missing, "token")
	}
	if req.Latitude == nil {
		missing = append(missing, "latitude")
	}
	if req.Longitude == nil {
		missing = append(missing, "longitude")
	}
	return missing
}
