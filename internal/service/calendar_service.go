package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edubridge-api/internal/models"
	appErrors "github.com/noah-isme/edubridge-api/pkg/errors"
)

type calendarRepository interface {
	List(ctx context.Context, filter models.CalendarFilter) ([]models.CalendarEvent, int, error)
	GetByID(ctx context.Context, id string) (*models.CalendarEvent, error)
	Create(ctx context.Context, event *models.CalendarEvent) error
	Update(ctx context.Context, event *models.CalendarEvent) error
	Delete(ctx context.Context, id string) error
}

// CalendarService manages academic calendar events with the same audience
// targeting scheme as announcements.
type CalendarService struct {
	repo      calendarRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCalendarService constructs the service.
func NewCalendarService(repo calendarRepository, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CalendarService{repo: repo, validator: validate, logger: logger}
}

// CalendarEventRequest is the create/update payload.
type CalendarEventRequest struct {
	Title         string    `json:"title" validate:"required"`
	Description   string    `json:"description"`
	EventType     string    `json:"event_type" validate:"required,oneof=EXAM HOLIDAY MEETING ACTIVITY OTHER"`
	StartDate     time.Time `json:"start_date" validate:"required"`
	EndDate       time.Time `json:"end_date" validate:"required"`
	Audience      string    `json:"audience" validate:"required,oneof=ALL TEACHERS STUDENTS SECTION"`
	TargetSection string    `json:"target_section"`
	Location      string    `json:"location"`
}

// List returns events visible to the viewer, optionally windowed by date.
func (s *CalendarService) List(ctx context.Context, viewer *models.JWTClaims, filter models.CalendarFilter) ([]models.CalendarEvent, *models.Pagination, error) {
	filter.ViewerRole = viewer.Role
	filter.ViewerSection = viewer.Section
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}

	events, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list calendar events")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return events, pagination, nil
}

// Create adds an event to the calendar.
func (s *CalendarService) Create(ctx context.Context, author *models.JWTClaims, req CalendarEventRequest) (*models.CalendarEvent, error) {
	event, err := s.build(author, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to create calendar event")
	}
	s.logger.Info("calendar event created",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.EventType),
	)
	return event, nil
}

// Update replaces an event. Only the author may update.
func (s *CalendarService) Update(ctx context.Context, author *models.JWTClaims, id string, req CalendarEventRequest) (*models.CalendarEvent, error) {
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.CreatedBy != author.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author may update a calendar event")
	}

	updated, err := s.build(author, req)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.CreatedBy = existing.CreatedBy

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to update calendar event")
	}
	return updated, nil
}

// Delete removes an event. Only the author may delete.
func (s *CalendarService) Delete(ctx context.Context, author *models.JWTClaims, id string) error {
	existing, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if existing.CreatedBy != author.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the author may delete a calendar event")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to delete calendar event")
	}
	return nil
}

func (s *CalendarService) load(ctx context.Context, id string) (*models.CalendarEvent, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "calendar event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load calendar event")
	}
	return existing, nil
}

func (s *CalendarService) build(author *models.JWTClaims, req CalendarEventRequest) (*models.CalendarEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calendar payload")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}

	audience := models.AnnouncementAudience(req.Audience)
	event := &models.CalendarEvent{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		EventType:   req.EventType,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Audience:    audience,
		CreatedBy:   author.UserID,
	}
	if req.Location != "" {
		location := req.Location
		event.Location = &location
	}
	if audience == models.AnnouncementAudienceSection {
		section := req.TargetSection
		if section == "" {
			section = author.Section
		}
		if section == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "section-scoped events need a target section")
		}
		event.TargetSection = &section
	}
	return event, nil
}
