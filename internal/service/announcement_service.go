package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edubridge-api/internal/models"
	appErrors "github.com/noah-isme/edubridge-api/pkg/errors"
)

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id string) error
}

// AnnouncementService manages school-wide and section-scoped announcements.
// Teachers author them; the list query applies audience targeting per
// viewer.
type AnnouncementService struct {
	repo      announcementRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger

	now func() time.Time
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(repo announcementRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AnnouncementService{repo: repo, cache: cache, validator: validate, logger: logger, now: time.Now}
}

// AnnouncementRequest is the create/update payload.
type AnnouncementRequest struct {
	Title         string     `json:"title" validate:"required"`
	Content       string     `json:"content" validate:"required"`
	Audience      string     `json:"audience" validate:"required,oneof=ALL TEACHERS STUDENTS SECTION"`
	TargetSection string     `json:"target_section"`
	IsPinned      bool       `json:"is_pinned"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

// announcementPage is the cached shape of one listing page.
type announcementPage struct {
	Items []models.Announcement `json:"items"`
	Total int                   `json:"total"`
}

// List returns the announcements the viewer may see, pinned first by
// repository ordering. Pages are cached per viewer role and section;
// mutations invalidate the whole announcements namespace.
func (s *AnnouncementService) List(ctx context.Context, viewer *models.JWTClaims, page, pageSize int) ([]models.Announcement, *models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	cacheKey := fmt.Sprintf("announcements:%s:%s:%d:%d", viewer.Role, viewer.Section, page, pageSize)
	var cached announcementPage
	if s.cache.Get(ctx, cacheKey, &cached) {
		pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: cached.Total}
		return cached.Items, pagination, nil
	}

	filter := models.AnnouncementFilter{
		ViewerRole:    viewer.Role,
		ViewerSection: viewer.Section,
		Page:          page,
		PageSize:      pageSize,
	}

	announcements, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list announcements")
	}

	s.cache.Set(ctx, cacheKey, announcementPage{Items: announcements, Total: total}, 0)
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	return announcements, pagination, nil
}

// Create publishes a new announcement.
func (s *AnnouncementService) Create(ctx context.Context, author *models.JWTClaims, req AnnouncementRequest) (*models.Announcement, error) {
	announcement, err := s.build(author, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to create announcement")
	}
	s.cache.Invalidate(ctx, "announcements:*")
	s.logger.Info("announcement published",
		zap.String("announcement_id", announcement.ID),
		zap.String("audience", string(announcement.Audience)),
	)
	return announcement, nil
}

// Update replaces an announcement's content. Only the author may update.
func (s *AnnouncementService) Update(ctx context.Context, author *models.JWTClaims, id string, req AnnouncementRequest) (*models.Announcement, error) {
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.CreatedBy != author.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author may update an announcement")
	}

	updated, err := s.build(author, req)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.CreatedBy = existing.CreatedBy
	updated.PublishedAt = existing.PublishedAt

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to update announcement")
	}
	s.cache.Invalidate(ctx, "announcements:*")
	return updated, nil
}

// Delete removes an announcement. Only the author may delete.
func (s *AnnouncementService) Delete(ctx context.Context, author *models.JWTClaims, id string) error {
	existing, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if existing.CreatedBy != author.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the author may delete an announcement")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to delete announcement")
	}
	s.cache.Invalidate(ctx, "announcements:*")
	return nil
}

func (s *AnnouncementService) load(ctx context.Context, id string) (*models.Announcement, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load announcement")
	}
	return existing, nil
}

func (s *AnnouncementService) build(author *models.JWTClaims, req AnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	audience := models.AnnouncementAudience(req.Audience)
	announcement := &models.Announcement{
		Title:       strings.TrimSpace(req.Title),
		Content:     strings.TrimSpace(req.Content),
		Audience:    audience,
		IsPinned:    req.IsPinned,
		PublishedAt: s.now().UTC(),
		ExpiresAt:   req.ExpiresAt,
		CreatedBy:   author.UserID,
	}
	if audience == models.AnnouncementAudienceSection {
		section := req.TargetSection
		if section == "" {
			section = author.Section
		}
		if section == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "section-scoped announcements need a target section")
		}
		announcement.TargetSection = &section
	}
	return announcement, nil
}
