package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edubridge-api/internal/models"
	appErrors "github.com/noah-isme/edubridge-api/pkg/errors"
)

type stubAnnouncementRepo struct {
	items     map[string]*models.Announcement
	deleted   []string
	listCalls int
}

func (s *stubAnnouncementRepo) List(_ context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	s.listCalls++
	var out []models.Announcement
	for _, a := range s.items {
		out = append(out, *a)
	}
	return out, len(out), nil
}

type stubCacheRepo struct {
	entries map[string][]byte
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := s.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if s.entries == nil {
		s.entries = make(map[string][]byte)
	}
	s.entries[key] = raw
	return nil
}

func (s *stubCacheRepo) Invalidate(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
	return nil
}

func (s *stubAnnouncementRepo) GetByID(_ context.Context, id string) (*models.Announcement, error) {
	if a, ok := s.items[id]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubAnnouncementRepo) Create(_ context.Context, a *models.Announcement) error {
	a.ID = "a-1"
	if s.items == nil {
		s.items = make(map[string]*models.Announcement)
	}
	s.items[a.ID] = a
	return nil
}

func (s *stubAnnouncementRepo) Update(_ context.Context, a *models.Announcement) error {
	s.items[a.ID] = a
	return nil
}

func (s *stubAnnouncementRepo) Delete(_ context.Context, id string) error {
	delete(s.items, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func TestAnnouncementCreateSectionScoped(t *testing.T) {
	repo := &stubAnnouncementRepo{}
	svc := NewAnnouncementService(repo, nil, nil, nil)
	teacher := &models.JWTClaims{UserID: "t-1", Role: models.RoleTeacher, Section: "10A"}

	a, err := svc.Create(context.Background(), teacher, AnnouncementRequest{
		Title: "Exam schedule", Content: "Unit test on Friday", Audience: "SECTION",
	})
	require.NoError(t, err)
	require.NotNil(t, a.TargetSection)
	assert.Equal(t, "10A", *a.TargetSection)
	assert.Equal(t, "t-1", a.CreatedBy)
}

func TestAnnouncementCreateRejectsBadAudience(t *testing.T) {
	svc := NewAnnouncementService(&stubAnnouncementRepo{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), &models.JWTClaims{UserID: "t-1", Section: "10A"}, AnnouncementRequest{
		Title: "x", Content: "y", Audience: "EVERYONE",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAnnouncementUpdateAuthorOnly(t *testing.T) {
	repo := &stubAnnouncementRepo{items: map[string]*models.Announcement{
		"a-1": {ID: "a-1", Title: "Old", Content: "Old", Audience: models.AnnouncementAudienceAll, CreatedBy: "t-1"},
	}}
	svc := NewAnnouncementService(repo, nil, nil, nil)

	_, err := svc.Update(context.Background(), &models.JWTClaims{UserID: "t-2"}, "a-1", AnnouncementRequest{
		Title: "New", Content: "New", Audience: "ALL",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	updated, err := svc.Update(context.Background(), &models.JWTClaims{UserID: "t-1"}, "a-1", AnnouncementRequest{
		Title: "New", Content: "New", Audience: "ALL",
	})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, "t-1", updated.CreatedBy)
}

func TestAnnouncementDeleteMissing(t *testing.T) {
	svc := NewAnnouncementService(&stubAnnouncementRepo{}, nil, nil, nil)

	err := svc.Delete(context.Background(), &models.JWTClaims{UserID: "t-1"}, "a-404")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAnnouncementListServedFromCacheUntilInvalidated(t *testing.T) {
	repo := &stubAnnouncementRepo{}
	cacheRepo := &stubCacheRepo{}
	svc := NewAnnouncementService(repo, NewCacheService(cacheRepo, nil, time.Minute, nil), nil, nil)
	teacher := &models.JWTClaims{UserID: "t-1", Role: models.RoleTeacher, Section: "10A"}

	_, err := svc.Create(context.Background(), teacher, AnnouncementRequest{
		Title: "Exam schedule", Content: "Unit test on Friday", Audience: "ALL",
	})
	require.NoError(t, err)

	first, _, err := svc.List(context.Background(), teacher, 1, 20)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, repo.listCalls)

	second, _, err := svc.List(context.Background(), teacher, 1, 20)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 1, repo.listCalls, "second page load should come from cache")

	_, err = svc.Create(context.Background(), teacher, AnnouncementRequest{
		Title: "Holiday", Content: "School closed Monday", Audience: "ALL",
	})
	require.NoError(t, err)

	_, _, err = svc.List(context.Background(), teacher, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls, "mutation should invalidate cached pages")
}
