package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/giaoly-api/internal/models"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
	"github.com/noah-isme/giaoly-api/pkg/jobs"
	"github.com/noah-isme/giaoly-api/pkg/provisioning"
)

// ProvisionStudentJob is the queue job type for bulk student accounts.
const ProvisionStudentJob = "provision_student"

type accountProvisioner interface {
	CreateCatechistAccount(ctx context.Context, req provisioning.CatechistAccountRequest) (*provisioning.CatechistAccount, error)
	CreateStudentAccount(ctx context.Context, studentID string) (*provisioning.StudentAccount, error)
}

type accountCatechistStore interface {
	FindByID(ctx context.Context, id string) (*models.Catechist, error)
	LinkUser(ctx context.Context, id, userID string) error
}

type accountStudentStore interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	LinkUser(ctx context.Context, id, userID string) error
}

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

// CatechistAccountRequest provisions a login for a catechist.
type CatechistAccountRequest struct {
	CatechistID string `json:"catechist_id" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
}

// StudentAccountRequest provisions a login for one student.
type StudentAccountRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// BulkStudentAccountRequest provisions logins for many students.
type BulkStudentAccountRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,max=500,dive,required"`
}

type provisionPayload struct {
	BatchID   string
	StudentID string
}

// AccountServiceParams groups constructor dependencies.
type AccountServiceParams struct {
	Provisioner accountProvisioner
	Catechists  accountCatechistStore
	Students    accountStudentStore
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// AccountService creates logins through the hosted provisioning functions.
type AccountService struct {
	provisioner accountProvisioner
	catechists  accountCatechistStore
	students    accountStudentStore
	metrics     *MetricsService
	queue       jobEnqueuer
	batches     *BatchTracker
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAccountService constructs the account service.
func NewAccountService(params AccountServiceParams) *AccountService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		provisioner: params.Provisioner,
		catechists:  params.Catechists,
		students:    params.Students,
		metrics:     params.Metrics,
		batches:     NewBatchTracker(),
		validator:   newDomainValidator(params.Validator),
		logger:      logger,
	}
}

// AttachQueue wires the queue bulk requests are dispatched to.
func (s *AccountService) AttachQueue(q jobEnqueuer) {
	s.queue = q
}

// ProvisionCatechist creates a glv login and links it to the catechist.
func (s *AccountService) ProvisionCatechist(ctx context.Context, req CatechistAccountRequest) (*models.Catechist, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid account payload")
	}
	catechist, err := s.catechists.FindByID(ctx, req.CatechistID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "catechist not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load catechist")
	}
	if catechist.UserID != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "catechist already has an account")
	}
	account, err := s.provisioner.CreateCatechistAccount(ctx, provisioning.CatechistAccountRequest{
		Email:     req.Email,
		Password:  req.Password,
		FullName:  catechist.FullName,
		SaintName: deref(catechist.SaintName),
		Phone:     deref(catechist.Phone),
		Address:   deref(catechist.Address),
	})
	s.metrics.RecordProvisioning("catechist", err == nil)
	if err != nil {
		return nil, provisioningError(err)
	}
	if err := s.catechists.LinkUser(ctx, catechist.ID, account.UserID); err != nil {
		return nil, s.unlinked("catechist", catechist.ID, account.UserID, err)
	}
	catechist.UserID = &account.UserID
	return catechist, nil
}

// ProvisionStudent creates a student login and links it to the student.
func (s *AccountService) ProvisionStudent(ctx context.Context, studentID string) (*provisioning.StudentAccount, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.UserID != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an account")
	}
	account, err := s.provisioner.CreateStudentAccount(ctx, studentID)
	s.metrics.RecordProvisioning("student", err == nil)
	if err != nil {
		return nil, provisioningError(err)
	}
	if err := s.students.LinkUser(ctx, studentID, account.UserID); err != nil {
		return nil, s.unlinked("student", studentID, account.UserID, err)
	}
	return account, nil
}

// BulkProvisionStudents queues one job per distinct student and returns the batch to poll.
func (s *AccountService) BulkProvisionStudents(ctx context.Context, claims *models.JWTClaims, req BulkStudentAccountRequest) (*models.ProvisioningBatch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid bulk account payload")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "provisioning queue unavailable")
	}
	ids := uniqueStrings(req.StudentIDs)
	createdBy := ""
	if claims != nil {
		createdBy = claims.UserID
	}
	batch := s.batches.Create(len(ids), createdBy)
	for _, id := range ids {
		job := jobs.Job{
			ID:      fmt.Sprintf("%s:%s", batch.ID, id),
			Type:    ProvisionStudentJob,
			Payload: provisionPayload{BatchID: batch.ID, StudentID: id},
		}
		if err := s.queue.TryEnqueue(job); err != nil {
			s.batches.Fail(batch.ID, id, "not queued: "+err.Error())
		}
	}
	s.logger.Info("bulk student provisioning queued", zap.String("batch_id", batch.ID), zap.Int("total", len(ids)))
	current, _ := s.batches.Get(batch.ID)
	return current, nil
}

// Batch returns the progress of a bulk run.
func (s *AccountService) Batch(id string) (*models.ProvisioningBatch, error) {
	batch, ok := s.batches.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
	}
	return batch, nil
}

// HandleJob processes one queued student. Transient failures are returned
// for retry; everything else is marked permanent.
func (s *AccountService) HandleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(provisionPayload)
	if !ok {
		s.logger.Error("unexpected provisioning payload", zap.String("job_id", job.ID))
		return nil
	}
	_, err := s.ProvisionStudent(ctx, payload.StudentID)
	if err == nil {
		s.batches.Succeed(payload.BatchID)
		return nil
	}
	// Retrying would call the provisioning service again and create a second login.
	var orphan *unlinkedAccountError
	if errors.As(err, &orphan) {
		return jobs.Permanent(err)
	}
	if isTransient(err) {
		return err
	}
	return jobs.Permanent(err)
}

// HandleGiveUp records a job that will not be attempted again.
func (s *AccountService) HandleGiveUp(job jobs.Job, err error) {
	payload, ok := job.Payload.(provisionPayload)
	if !ok {
		return
	}
	s.logger.Warn("student account provisioning gave up",
		zap.String("batch_id", payload.BatchID),
		zap.String("student_id", payload.StudentID),
		zap.Error(err))
	s.batches.Fail(payload.BatchID, payload.StudentID, appErrors.FromError(err).Message)
}

// unlinkedAccountError means the login exists upstream but the local row
// does not point at it yet.
type unlinkedAccountError struct {
	UserID string
	err    error
}

func (e *unlinkedAccountError) Error() string {
	return fmt.Sprintf("account %s created but not linked: %v", e.UserID, e.err)
}

func (e *unlinkedAccountError) Unwrap() error { return e.err }

func (s *AccountService) unlinked(kind, ownerID, userID string, err error) error {
	s.logger.Error("provisioned account left unlinked",
		zap.String("kind", kind),
		zap.String("owner_id", ownerID),
		zap.String("user_id", userID),
		zap.Error(err))
	return appErrors.Wrap(&unlinkedAccountError{UserID: userID, err: err}, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status,
		fmt.Sprintf("account %s created but not linked", userID))
}

func provisioningError(err error) error {
	var perr *provisioning.Error
	if errors.As(err, &perr) {
		return appErrors.Wrap(err, appErrors.ErrProvisioning.Code, appErrors.ErrProvisioning.Status, perr.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrProvisioning.Code, appErrors.ErrProvisioning.Status, appErrors.ErrProvisioning.Message)
}

func isTransient(err error) bool {
	var perr *provisioning.Error
	if errors.As(err, &perr) {
		return perr.Temporary()
	}
	if errors.Is(err, provisioning.ErrNotConfigured) {
		return false
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr.Code == appErrors.ErrProvisioning.Code || appErr.Code == appErrors.ErrInternal.Code
	}
	return true
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// BatchTracker keeps bulk provisioning progress in memory. Batches do not
// survive a restart.
type BatchTracker struct {
	mu      sync.Mutex
	batches map[string]*models.ProvisioningBatch
	now     func() time.Time
}

// NewBatchTracker constructs an empty tracker.
func NewBatchTracker() *BatchTracker {
	return &BatchTracker{batches: make(map[string]*models.ProvisioningBatch), now: time.Now}
}

// Create registers a batch of total items.
func (t *BatchTracker) Create(total int, createdBy string) *models.ProvisioningBatch {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now().UTC()
	batch := &models.ProvisioningBatch{
		ID:        uuid.NewString(),
		Total:     total,
		Done:      total == 0,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.batches[batch.ID] = batch
	return cloneBatch(batch)
}

// Succeed counts one provisioned item.
func (t *BatchTracker) Succeed(id string) {
	t.update(id, func(b *models.ProvisioningBatch) { b.Succeeded++ })
}

// Fail counts one failed item with its reason.
func (t *BatchTracker) Fail(id, studentID, reason string) {
	t.update(id, func(b *models.ProvisioningBatch) {
		b.Failed++
		b.Failures = append(b.Failures, models.ProvisioningError{StudentID: studentID, Reason: reason})
	})
}

// Get returns a snapshot of the batch.
func (t *BatchTracker) Get(id string) (*models.ProvisioningBatch, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	batch, ok := t.batches[id]
	if !ok {
		return nil, false
	}
	return cloneBatch(batch), true
}

func (t *BatchTracker) update(id string, fn func(*models.ProvisioningBatch)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	batch, ok := t.batches[id]
	if !ok || batch.Done {
		return
	}
	fn(batch)
	batch.UpdatedAt = t.now().UTC()
	batch.Done = batch.Succeeded+batch.Failed >= batch.Total
}

func cloneBatch(b *models.ProvisioningBatch) *models.ProvisioningBatch {
	clone := *b
	clone.Failures = append([]models.ProvisioningError(nil), b.Failures...)
	return &clone
}
