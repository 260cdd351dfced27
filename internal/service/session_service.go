package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/noah-isme/giaoly-api/internal/models"
	"github.com/noah-isme/giaoly-api/internal/repository"
	"github.com/noah-isme/giaoly-api/pkg/calendar"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
)

// Check-in outcome labels recorded in metrics.
const (
	CheckInOutcomeAccepted  = "accepted"
	CheckInOutcomeInvalid   = "invalid_code"
	CheckInOutcomeDuplicate = "duplicate"
)

const qrImageSize = 256

type sessionRepository interface {
	Start(ctx context.Context, session *models.AttendanceSession) (int64, error)
	End(ctx context.Context, id string, endedAt time.Time) (bool, error)
	EndStale(ctx context.Context, cutoff, endedAt time.Time) (int64, error)
	FindByID(ctx context.Context, id string) (*models.AttendanceSession, error)
	FindActiveByClass(ctx context.Context, classID string) (*models.AttendanceSession, error)
	FindActiveByClassAndCode(ctx context.Context, classID, code string) (*models.AttendanceSession, error)
	List(ctx context.Context, filter models.AttendanceSessionFilter) ([]models.AttendanceSession, int, error)
	CountActive(ctx context.Context) (int, error)
}

type checkInRecordRepository interface {
	Exists(ctx context.Context, studentID, classID string, date time.Time) (bool, error)
	InsertIfAbsent(ctx context.Context, record *models.AttendanceRecord) (bool, error)
}

type studentByUserLookup interface {
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
}

// StartSessionRequest opens a check-in window for a class.
type StartSessionRequest struct {
	ClassID string `json:"class_id" validate:"required"`
}

// CheckInRequest carries the code a student typed or scanned.
type CheckInRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// SessionServiceConfig tunes session behaviour.
type SessionServiceConfig struct {
	Location   *time.Location
	MaxAge     time.Duration
	CheckInURL string
}

// SessionService runs code-gated attendance sessions.
type SessionService struct {
	sessions  sessionRepository
	records   checkInRecordRepository
	students  studentByUserLookup
	classes   classAssignmentChecker
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SessionServiceConfig
	now       func() time.Time
	newCode   func() (string, error)
}

// SessionServiceParams groups constructor dependencies.
type SessionServiceParams struct {
	Sessions  sessionRepository
	Records   checkInRecordRepository
	Students  studentByUserLookup
	Classes   classAssignmentChecker
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    SessionServiceConfig
}

// NewSessionService constructs the session service.
func NewSessionService(params SessionServiceParams) *SessionService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := params.Config
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &SessionService{
		sessions:  params.Sessions,
		records:   params.Records,
		students:  params.Students,
		classes:   params.Classes,
		cache:     params.Cache,
		metrics:   params.Metrics,
		validator: newDomainValidator(params.Validator),
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		newCode:   GenerateCheckInCode,
	}
}

// GenerateCheckInCode draws a uniform six digit code in [100000, 999999].
// Codes are not unique across classes; a check-in resolves by class first.
func GenerateCheckInCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}

// SessionDate resolves the Sunday a session opened now belongs to.
func (s *SessionService) SessionDate() time.Time {
	return calendar.MostRecentSunday(s.now().In(s.cfg.Location))
}

// Start deactivates any active session of the class and opens a new one.
func (s *SessionService) Start(ctx context.Context, claims *models.JWTClaims, req StartSessionRequest) (*models.AttendanceSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid session payload")
	}
	if err := ensureClassAccess(ctx, s.classes, claims, req.ClassID); err != nil {
		return nil, err
	}

	var lastErr error
	// One retry covers a concurrent start that won the active slot first.
	for attempt := 0; attempt < 2; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate check-in code")
		}
		session := &models.AttendanceSession{
			ClassID:     req.ClassID,
			SessionDate: s.SessionDate(),
			Code:        code,
			Active:      true,
			CreatedBy:   claims.UserID,
		}
		superseded, err := s.sessions.Start(ctx, session)
		if err == nil {
			s.metrics.RecordSessionStarted()
			s.refreshOpenSessions(ctx)
			s.logger.Info("attendance session started",
				zap.String("session_id", session.ID),
				zap.String("class_id", session.ClassID),
				zap.Int64("superseded", superseded))
			return session, nil
		}
		lastErr = err
		if !repository.IsUniqueViolation(err) {
			break
		}
	}
	if repository.IsUniqueViolation(lastErr) {
		return nil, appErrors.Wrap(lastErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "another session was started for this class")
	}
	return nil, appErrors.Wrap(lastErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start session")
}

// End closes a session. Ending an inactive session is a no-op.
func (s *SessionService) End(ctx context.Context, claims *models.JWTClaims, id string) (*models.AttendanceSession, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ensureClassAccess(ctx, s.classes, claims, session.ClassID); err != nil {
		return nil, err
	}
	if !session.Active {
		return session, nil
	}
	endedAt := s.now().UTC()
	changed, err := s.sessions.End(ctx, id, endedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to end session")
	}
	if changed {
		session.Active = false
		session.EndedAt = &endedAt
		s.refreshOpenSessions(ctx)
	}
	return session, nil
}

// Get loads one session.
func (s *SessionService) Get(ctx context.Context, id string) (*models.AttendanceSession, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// List returns sessions matching the filter.
func (s *SessionService) List(ctx context.Context, claims *models.JWTClaims, filter models.AttendanceSessionFilter) ([]models.AttendanceSession, *models.Pagination, error) {
	if filter.ClassID != "" {
		if err := ensureClassAccess(ctx, s.classes, claims, filter.ClassID); err != nil {
			return nil, nil, err
		}
	} else if claims == nil || claims.Role != models.RoleAdmin {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "class_id is required")
	}
	items, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return items, newPagination(filter.Page, filter.PageSize, total), nil
}

// Active returns the class's open session, or nil when none is open.
func (s *SessionService) Active(ctx context.Context, claims *models.JWTClaims, classID string) (*models.AttendanceSession, error) {
	if err := ensureClassAccess(ctx, s.classes, claims, classID); err != nil {
		return nil, err
	}
	session, err := s.sessions.FindActiveByClass(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active session")
	}
	return session, nil
}

// QRCode renders the session's check-in code as a PNG for projection.
func (s *SessionService) QRCode(ctx context.Context, claims *models.JWTClaims, id string) ([]byte, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ensureClassAccess(ctx, s.classes, claims, session.ClassID); err != nil {
		return nil, err
	}
	if !session.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session has ended")
	}
	png, err := qrcode.Encode(s.qrContent(session.Code), qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render qr code")
	}
	return png, nil
}

func (s *SessionService) qrContent(code string) string {
	if s.cfg.CheckInURL == "" {
		return code
	}
	u, err := url.Parse(s.cfg.CheckInURL)
	if err != nil {
		return code
	}
	q := u.Query()
	q.Set("code", code)
	u.RawQuery = q.Encode()
	return u.String()
}

// CheckIn records a present mark for the calling student against the open
// session of their class whose code matches.
func (s *SessionService) CheckIn(ctx context.Context, claims *models.JWTClaims, req CheckInRequest) (*models.AttendanceRecord, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordCheckIn(CheckInOutcomeInvalid)
		return nil, appErrors.Clone(appErrors.ErrInvalidCheckInCode, "")
	}
	student, err := s.students.FindByUserID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no student linked to this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.ClassID == nil {
		s.metrics.RecordCheckIn(CheckInOutcomeInvalid)
		return nil, appErrors.Clone(appErrors.ErrInvalidCheckInCode, "")
	}
	classID := *student.ClassID

	session, err := s.sessions.FindActiveByClassAndCode(ctx, classID, req.Code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordCheckIn(CheckInOutcomeInvalid)
			return nil, appErrors.Clone(appErrors.ErrInvalidCheckInCode, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve session")
	}

	exists, err := s.records.Exists(ctx, student.ID, classID, session.SessionDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
	}
	if exists {
		s.metrics.RecordCheckIn(CheckInOutcomeDuplicate)
		return nil, appErrors.Clone(appErrors.ErrAlreadyCheckedIn, "")
	}

	record := &models.AttendanceRecord{
		StudentID:  student.ID,
		ClassID:    classID,
		Date:       session.SessionDate,
		Status:     models.AttendanceStatusPresent,
		RecordedBy: claims.UserID,
	}
	inserted, err := s.records.InsertIfAbsent(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	if !inserted {
		s.metrics.RecordCheckIn(CheckInOutcomeDuplicate)
		return nil, appErrors.Clone(appErrors.ErrAlreadyCheckedIn, "")
	}
	s.metrics.RecordCheckIn(CheckInOutcomeAccepted)
	s.cache.InvalidateClass(ctx, classID)
	return record, nil
}

// ReapStale ends sessions left open longer than the configured age.
func (s *SessionService) ReapStale(ctx context.Context) (int64, error) {
	if s.cfg.MaxAge <= 0 {
		return 0, nil
	}
	now := s.now().UTC()
	n, err := s.sessions.EndStale(ctx, now.Add(-s.cfg.MaxAge), now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.metrics.RecordSessionsReaped(n)
		s.logger.Info("stale attendance sessions ended", zap.Int64("count", n))
	}
	s.refreshOpenSessions(ctx)
	return n, nil
}

// refreshOpenSessions recounts open sessions for the gauge. Failures are logged only.
func (s *SessionService) refreshOpenSessions(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	open, err := s.sessions.CountActive(ctx)
	if err != nil {
		s.logger.Warn("count open sessions failed", zap.Error(err))
		return
	}
	s.metrics.SetOpenSessions(open)
}

// StartReaper schedules ReapStale on the cron spec. It returns nil when
// auto-closing is disabled; callers stop the returned scheduler on shutdown.
func (s *SessionService) StartReaper(spec string) (*cron.Cron, error) {
	if s.cfg.MaxAge <= 0 || spec == "" {
		return nil, nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.ReapStale(ctx); err != nil {
			s.logger.Warn("session reaper failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule session reaper: %w", err)
	}
	c.Start()
	return c, nil
}
