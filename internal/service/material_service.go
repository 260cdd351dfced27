package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/giaoly-api/internal/models"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
	"github.com/noah-isme/giaoly-api/pkg/storage"
)

// MaterialsBucket is the bucket learning materials are stored in.
const MaterialsBucket = "learning-materials"

type materialStore interface {
	Create(ctx context.Context, item *models.LearningMaterial) error
	GetByID(ctx context.Context, id string) (*models.LearningMaterial, error)
	List(ctx context.Context, filter models.LearningMaterialFilter) ([]models.LearningMaterial, error)
	Delete(ctx context.Context, id string) error
}

type objectStorage interface {
	Put(bucket, key string, r io.Reader) (int64, error)
	Open(bucket, key string) (*os.File, error)
	Remove(bucket, key string) error
}

type materialSigner interface {
	Sign(grant storage.DownloadGrant) (string, storage.DownloadGrant, error)
	Verify(token, bucket string) (storage.DownloadGrant, error)
}

// MaterialUploadRequest carries the form fields of an upload.
type MaterialUploadRequest struct {
	Title       string `form:"title" validate:"required,max=200"`
	Description string `form:"description" validate:"omitempty,max=1000"`
	ClassID     string `form:"class_id" validate:"required"`
	WeekNumber  int    `form:"week_number" validate:"required,min=1,max=53"`
}

// MaterialUpload carries the uploaded file stream.
type MaterialUpload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// MaterialDownload bundles the open file with response metadata.
type MaterialDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
}

// MaterialLink is a signed, expiring download link.
type MaterialLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MaterialServiceConfig holds validation parameters.
type MaterialServiceConfig struct {
	Bucket       string
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// MaterialService manages learning material metadata and storage IO.
type MaterialService struct {
	repo      materialStore
	storage   objectStorage
	signer    materialSigner
	classes   classAssignmentChecker
	students  studentByUserLookup
	validator *validator.Validate
	logger    *zap.Logger
	cfg       MaterialServiceConfig
	mimeSet   map[string]struct{}
}

// NewMaterialService constructs the service with defaults.
func NewMaterialService(repo materialStore, store objectStorage, signer materialSigner, classes classAssignmentChecker, students studentByUserLookup, validate *validator.Validate, logger *zap.Logger, cfg MaterialServiceConfig) *MaterialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Bucket == "" {
		cfg.Bucket = MaterialsBucket
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 20 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf"}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &MaterialService{
		repo:      repo,
		storage:   store,
		signer:    signer,
		classes:   classes,
		students:  students,
		validator: newDomainValidator(validate),
		logger:    logger,
		cfg:       cfg,
		mimeSet:   mimeSet,
	}
}

// Upload stores the file in the bucket and records its metadata.
func (s *MaterialService) Upload(ctx context.Context, claims *models.JWTClaims, meta MaterialUploadRequest, upload MaterialUpload) (*models.LearningMaterial, error) {
	if err := s.validator.Struct(meta); err != nil {
		return nil, appErrors.Validation(err, "invalid material payload")
	}
	if err := ensureClassAccess(ctx, s.classes, claims, meta.ClassID); err != nil {
		return nil, err
	}
	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	mimeType, err := s.detectMime(upload)
	if err != nil {
		return nil, err
	}
	if _, allowed := s.mimeSet[mimeType]; !allowed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only PDF files are accepted")
	}

	key := storage.NewObjectKey(fmt.Sprintf("%s/week-%02d", meta.ClassID, meta.WeekNumber), mimeExtension(mimeType))
	written, err := s.storage.Put(s.cfg.Bucket, key, upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store material file")
	}
	item := &models.LearningMaterial{
		Title:       strings.TrimSpace(meta.Title),
		Description: optionalString(meta.Description),
		ClassID:     meta.ClassID,
		WeekNumber:  meta.WeekNumber,
		FilePath:    key,
		FileName:    filepath.Base(upload.Filename),
		MimeType:    mimeType,
		SizeBytes:   written,
		UploadedBy:  claims.UserID,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		_ = s.storage.Remove(s.cfg.Bucket, key)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save material")
	}
	s.logger.Info("learning material uploaded",
		zap.String("material_id", item.ID),
		zap.String("class_id", item.ClassID),
		zap.Int64("size_bytes", written))
	return item, nil
}

// List returns the materials visible to the caller. Students are always
// limited to their own class.
func (s *MaterialService) List(ctx context.Context, claims *models.JWTClaims, filter models.LearningMaterialFilter) ([]models.LearningMaterial, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleStudent:
		classID, err := s.studentClass(ctx, claims)
		if err != nil {
			return nil, err
		}
		filter.ClassID = classID
	default:
		if filter.ClassID == "" && claims.Role != models.RoleAdmin {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class_id is required")
		}
		if filter.ClassID != "" {
			if err := ensureClassAccess(ctx, s.classes, claims, filter.ClassID); err != nil {
				return nil, err
			}
		}
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list materials")
	}
	return items, nil
}

// Get returns material metadata enforcing class visibility.
func (s *MaterialService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.LearningMaterial, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureVisible(ctx, claims, item); err != nil {
		return nil, err
	}
	return item, nil
}

// DownloadLink signs a short-lived link for the material file.
func (s *MaterialService) DownloadLink(ctx context.Context, claims *models.JWTClaims, id string) (*MaterialLink, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	item, err := s.Get(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	token, grant, err := s.signer.Sign(storage.DownloadGrant{MaterialID: item.ID, Bucket: s.cfg.Bucket, Key: item.FilePath})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return &MaterialLink{URL: fmt.Sprintf("%s/materials/download/%s", base, token), ExpiresAt: grant.ExpiresAt}, nil
}

// Download validates a signed token and opens the file. The token is the credential.
func (s *MaterialService) Download(ctx context.Context, token string) (*MaterialDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	grant, err := s.signer.Verify(token, s.cfg.Bucket)
	if errors.Is(err, storage.ErrTokenExpired) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
	}
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download token")
	}
	item, err := s.load(ctx, grant.MaterialID)
	if err != nil {
		return nil, err
	}
	// A re-uploaded or moved file invalidates links issued for the old object.
	if item.FilePath != grant.Key {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.storage.Open(grant.Bucket, grant.Key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open material file")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read material metadata")
	}
	return &MaterialDownload{File: file, Filename: item.FileName, MimeType: item.MimeType, SizeBytes: info.Size()}, nil
}

// Delete removes the metadata row and then the stored object.
func (s *MaterialService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	item, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := ensureClassAccess(ctx, s.classes, claims, item.ClassID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete material")
	}
	if err := s.storage.Remove(s.cfg.Bucket, item.FilePath); err != nil {
		s.logger.Warn("material file removal failed", zap.String("key", item.FilePath), zap.Error(err))
	}
	return nil
}

func (s *MaterialService) load(ctx context.Context, id string) (*models.LearningMaterial, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load material")
	}
	return item, nil
}

func (s *MaterialService) ensureVisible(ctx context.Context, claims *models.JWTClaims, item *models.LearningMaterial) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleStudent {
		return ensureClassAccess(ctx, s.classes, claims, item.ClassID)
	}
	classID, err := s.studentClass(ctx, claims)
	if err != nil {
		return err
	}
	if classID != item.ClassID {
		return appErrors.Clone(appErrors.ErrForbidden, "material belongs to another class")
	}
	return nil
}

func (s *MaterialService) studentClass(ctx context.Context, claims *models.JWTClaims) (string, error) {
	student, err := s.students.FindByUserID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrForbidden, "no student linked to this account")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.ClassID == nil {
		return "", appErrors.Clone(appErrors.ErrForbidden, "student is not assigned to a class")
	}
	return *student.ClassID, nil
}

// detectMime sniffs the first 512 bytes; the client-declared type is not trusted.
func (s *MaterialService) detectMime(upload MaterialUpload) (string, error) {
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	mimeType := http.DetectContentType(header[:n])
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType)), nil
}

func mimeExtension(mime string) string {
	switch mime {
	case "application/pdf":
		return ".pdf"
	default:
		return ""
	}
}
