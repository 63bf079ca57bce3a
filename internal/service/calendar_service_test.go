package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edubridge-api/internal/models"
	appErrors "github.com/noah-isme/edubridge-api/pkg/errors"
)

type stubCalendarRepo struct {
	items map[string]*models.CalendarEvent
}

func (s *stubCalendarRepo) List(_ context.Context, filter models.CalendarFilter) ([]models.CalendarEvent, int, error) {
	var out []models.CalendarEvent
	for _, e := range s.items {
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (s *stubCalendarRepo) GetByID(_ context.Context, id string) (*models.CalendarEvent, error) {
	if e, ok := s.items[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubCalendarRepo) Create(_ context.Context, e *models.CalendarEvent) error {
	e.ID = "e-1"
	if s.items == nil {
		s.items = make(map[string]*models.CalendarEvent)
	}
	s.items[e.ID] = e
	return nil
}

func (s *stubCalendarRepo) Update(_ context.Context, e *models.CalendarEvent) error {
	s.items[e.ID] = e
	return nil
}

func (s *stubCalendarRepo) Delete(_ context.Context, id string) error {
	delete(s.items, id)
	return nil
}

func TestCalendarCreateValidatesDates(t *testing.T) {
	svc := NewCalendarService(&stubCalendarRepo{}, nil, nil)
	teacher := &models.JWTClaims{UserID: "t-1", Role: models.RoleTeacher, Section: "10A"}
	start := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

	_, err := svc.Create(context.Background(), teacher, CalendarEventRequest{
		Title: "Sports day", EventType: "ACTIVITY", Audience: "ALL",
		StartDate: start, EndDate: start.Add(-24 * time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	event, err := svc.Create(context.Background(), teacher, CalendarEventRequest{
		Title: "Sports day", EventType: "ACTIVITY", Audience: "ALL",
		StartDate: start, EndDate: start.Add(24 * time.Hour), Location: "Main ground",
	})
	require.NoError(t, err)
	require.NotNil(t, event.Location)
	assert.Equal(t, "Main ground", *event.Location)
}

func TestCalendarUpdateAuthorOnly(t *testing.T) {
	start := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	repo := &stubCalendarRepo{items: map[string]*models.CalendarEvent{
		"e-1": {ID: "e-1", Title: "Exam", EventType: "EXAM", CreatedBy: "t-1", StartDate: start, EndDate: start},
	}}
	svc := NewCalendarService(repo, nil, nil)

	_, err := svc.Update(context.Background(), &models.JWTClaims{UserID: "t-2"}, "e-1", CalendarEventRequest{
		Title: "Exam moved", EventType: "EXAM", Audience: "ALL", StartDate: start, EndDate: start,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
