package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/edubridge-api/internal/models"
	appErrors "github.com/noah-isme/edubridge-api/pkg/errors"
	"github.com/noah-isme/edubridge-api/pkg/jobs"
	"github.com/noah-isme/edubridge-api/pkg/storage"
)

type noteRepository interface {
	Create(ctx context.Context, note *models.Note) error
	GetByID(ctx context.Context, id string) (*models.Note, error)
	List(ctx context.Context, filter models.NoteFilter) ([]models.Note, int, error)
	Delete(ctx context.Context, id string) error
}

// NoteServiceConfig bounds uploads and signed link lifetime.
type NoteServiceConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// NoteService manages shared study material: uploaded files on local
// storage, external drive links, and short-lived signed download URLs.
// Deleting a note enqueues the file removal so the request never waits on
// disk.
type NoteService struct {
	repo      noteRepository
	files     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	cleanup   *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
	config    NoteServiceConfig
}

// NewNoteService constructs the service. Call StartCleanup before serving.
func NewNoteService(repo noteRepository, files *storage.LocalStorage, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger, config NoteServiceConfig, queueCfg jobs.QueueConfig) *NoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.MaxFileSizeBytes <= 0 {
		config.MaxFileSizeBytes = 20 << 20
	}
	s := &NoteService{
		repo:      repo,
		files:     files,
		signer:    signer,
		validator: validate,
		logger:    logger,
		config:    config,
	}
	queueCfg.Logger = logger
	s.cleanup = jobs.NewQueue("note-cleanup", s.removeFile, queueCfg)
	return s
}

// StartCleanup launches the background file removal workers.
func (s *NoteService) StartCleanup(ctx context.Context) {
	s.cleanup.Start(ctx)
}

// StopCleanup drains and stops the removal workers.
func (s *NoteService) StopCleanup() {
	s.cleanup.Stop()
}

// UploadRequest describes a new note. Either a file or a drive URL must be
// supplied, not both.
type UploadRequest struct {
	Title       string `form:"title" validate:"required"`
	Subject     string `form:"subject" validate:"required"`
	Description string `form:"description"`
	DriveURL    string `form:"drive_url" validate:"omitempty,url"`
}

// Upload stores the note metadata and, when present, streams the file to
// local storage.
func (s *NoteService) Upload(ctx context.Context, uploader *models.JWTClaims, req UploadRequest, file *multipart.FileHeader) (*models.Note, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid note payload")
	}
	if file == nil && req.DriveURL == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "either a file or a drive link is required")
	}
	if file != nil && req.DriveURL != "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "provide a file or a drive link, not both")
	}

	note := &models.Note{
		Title:       strings.TrimSpace(req.Title),
		Subject:     strings.TrimSpace(req.Subject),
		Description: strings.TrimSpace(req.Description),
		UploadedBy:  uploader.UserID,
		Section:     uploader.Section,
	}

	if file != nil {
		if file.Size > s.config.MaxFileSizeBytes {
			return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum allowed size")
		}
		if err := s.checkMIME(file); err != nil {
			return nil, err
		}

		src, err := file.Open()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
		}
		defer src.Close()

		stored := uuid.NewString() + filepath.Ext(file.Filename)
		relPath, size, err := s.files.SaveStream(stored, io.LimitReader(src, s.config.MaxFileSizeBytes))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
		}
		name := filepath.Base(file.Filename)
		note.FilePath = &relPath
		note.FileName = &name
		note.FileSize = &size
	} else {
		drive := req.DriveURL
		note.DriveURL = &drive
	}

	if err := s.repo.Create(ctx, note); err != nil {
		if note.HasFile() {
			s.enqueueRemoval(*note.FilePath)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to store note")
	}

	s.logger.Info("note uploaded",
		zap.String("note_id", note.ID),
		zap.String("section", note.Section),
		zap.Bool("has_file", note.HasFile()),
	)
	return note, nil
}

// List returns the notes visible to the viewer. Students see their own
// section; teachers may query any section.
func (s *NoteService) List(ctx context.Context, viewer *models.JWTClaims, filter models.NoteFilter) ([]models.Note, *models.Pagination, error) {
	if !viewer.Role.Elevated() || filter.Section == "" {
		filter.Section = viewer.Section
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	notes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list notes")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return notes, pagination, nil
}

// SignedDownload returns a short-lived token for the note's file.
func (s *NoteService) SignedDownload(ctx context.Context, viewer *models.JWTClaims, noteID string) (string, time.Time, error) {
	note, err := s.loadVisible(ctx, viewer, noteID)
	if err != nil {
		return "", time.Time{}, err
	}
	if !note.HasFile() {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrValidation, "note has no stored file")
	}
	token, expiresAt, err := s.signer.Generate(note.ID, *note.FilePath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return token, expiresAt, nil
}

// OpenDownload validates a signed token and opens the underlying file.
func (s *NoteService) OpenDownload(ctx context.Context, token string) (*os.File, *models.Note, error) {
	noteID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download link")
	}

	note, err := s.repo.GetByID(ctx, noteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "note not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load note")
	}
	if !note.HasFile() || *note.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "download link no longer valid")
	}

	f, err := s.files.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return f, note, nil
}

// Delete removes a note. Only the uploader or a teacher may delete; the
// stored file is removed in the background.
func (s *NoteService) Delete(ctx context.Context, viewer *models.JWTClaims, noteID string) error {
	note, err := s.loadVisible(ctx, viewer, noteID)
	if err != nil {
		return err
	}
	if note.UploadedBy != viewer.UserID && !viewer.Role.Elevated() {
		return appErrors.Clone(appErrors.ErrForbidden, "only the uploader or a teacher may delete a note")
	}
	if err := s.repo.Delete(ctx, noteID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to delete note")
	}
	if note.HasFile() {
		s.enqueueRemoval(*note.FilePath)
	}
	return nil
}

func (s *NoteService) loadVisible(ctx context.Context, viewer *models.JWTClaims, noteID string) (*models.Note, error) {
	note, err := s.repo.GetByID(ctx, noteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "note not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load note")
	}
	if !viewer.Role.Elevated() && note.Section != viewer.Section {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "note belongs to another section")
	}
	return note, nil
}

func (s *NoteService) checkMIME(file *multipart.FileHeader) error {
	if len(s.config.AllowedMIMEs) == 0 {
		return nil
	}
	contentType := file.Header.Get("Content-Type")
	for _, allowed := range s.config.AllowedMIMEs {
		if strings.EqualFold(contentType, allowed) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported file type %q", contentType))
}

func (s *NoteService) enqueueRemoval(relPath string) {
	err := s.cleanup.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "remove-file",
		Payload: relPath,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue file removal", zap.String("path", relPath), zap.Error(err))
	}
}

func (s *NoteService) removeFile(_ context.Context, job jobs.Job) error {
	relPath, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	if err := s.files.Delete(relPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
