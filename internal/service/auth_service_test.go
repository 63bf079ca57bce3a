package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/edubridge-api/internal/models"
	appErrors "github.com/noah-isme/edubridge-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail      *models.User
	userByID         *models.User
	findByEmailErr   error
	createErr        error
	createdUser      *models.User
	refreshTokens    map[string]*models.RefreshToken
	createRefreshErr error
	revoked          []string
}

func (m *mockAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if m.userByID != nil {
		return m.userByID, nil
	}
	if m.userByEmail != nil {
		return m.userByEmail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(_ context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = "u-new"
	m.createdUser = user
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	if stored, ok := m.refreshTokens[token]; ok {
		return stored, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(_ context.Context, id string, _ time.Time) error {
	m.revoked = append(m.revoked, id)
	for _, stored := range m.refreshTokens {
		if stored.ID == id {
			stored.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	for _, stored := range m.refreshTokens {
		if stored.UserID == userID {
			stored.Revoked = true
			m.revoked = append(m.revoked, stored.ID)
		}
	}
	return nil
}

func newAuthFixture(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "edubridge-test",
	})
}

func hashPassword(t *testing.T, raw string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestRegisterCreatesStudent(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthFixture(repo)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "Asha", Email: "Asha@School.Test", Password: "secret1",
		Role: "student", Section: "10A",
	})
	require.NoError(t, err)
	assert.Equal(t, "u-new", info.ID)
	assert.Equal(t, models.RoleStudent, info.Role)
	assert.Equal(t, "asha@school.test", repo.createdUser.Email)
	assert.NotEqual(t, "secret1", repo.createdUser.PasswordHash)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	svc := newAuthFixture(&mockAuthRepo{})

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "Asha", Email: "asha@school.test", Password: "secret1",
		Role: "principal", Section: "10A",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLoginSuccess(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{
		ID: "u-1", Email: "asha@school.test", Name: "Asha",
		Role: models.RoleStudent, Section: "10A",
		PasswordHash: hashPassword(t, "secret1"),
	}}
	svc := newAuthFixture(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "asha@school.test", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "u-1", resp.User.ID)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, "10A", claims.Section)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{
		ID: "u-1", Email: "asha@school.test",
		PasswordHash: hashPassword(t, "secret1"),
	}}
	svc := newAuthFixture(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "asha@school.test", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newAuthFixture(&mockAuthRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@school.test", Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestRefreshTokenRotates(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{
		ID: "u-1", Email: "asha@school.test", Role: models.RoleStudent, Section: "10A",
		PasswordHash: hashPassword(t, "secret1"),
	}}
	svc := newAuthFixture(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "asha@school.test", Password: "secret1"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.Len(t, repo.revoked, 1)

	// The used token is single-use.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRefreshTokenExpired(t *testing.T) {
	repo := &mockAuthRepo{
		userByID: &models.User{ID: "u-1"},
		refreshTokens: map[string]*models.RefreshToken{
			"stale": {ID: "rt-1", UserID: "u-1", Token: "stale", ExpiresAt: time.Now().UTC().Add(-time.Hour)},
		},
	}
	svc := newAuthFixture(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestLogoutRevokesOwnTokenOnly(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"tok": {ID: "rt-1", UserID: "u-1", Token: "tok", ExpiresAt: time.Now().UTC().Add(time.Hour)},
	}}
	svc := newAuthFixture(repo)

	err := svc.Logout(context.Background(), "tok", "u-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Logout(context.Background(), "tok", "u-1"))
	assert.True(t, repo.refreshTokens["tok"].Revoked)
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"laptop": {ID: "rt-1", UserID: "u-1", Token: "laptop", ExpiresAt: time.Now().UTC().Add(time.Hour)},
		"phone":  {ID: "rt-2", UserID: "u-1", Token: "phone", ExpiresAt: time.Now().UTC().Add(time.Hour)},
		"other":  {ID: "rt-3", UserID: "u-2", Token: "other", ExpiresAt: time.Now().UTC().Add(time.Hour)},
	}}
	svc := newAuthFixture(repo)

	require.NoError(t, svc.LogoutAll(context.Background(), "u-1"))

	for _, token := range []string{"laptop", "phone"} {
		_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: token})
		require.Error(t, err, token)
		assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
	}

	// Other users keep their sessions.
	assert.False(t, repo.refreshTokens["other"].Revoked)
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{
		ID: "u-1", Email: "asha@school.test",
		PasswordHash: hashPassword(t, "secret1"),
	}}
	svc := newAuthFixture(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "asha@school.test", Password: "secret1"})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "other-secret", AccessTokenExpiry: time.Minute})
	_, err = other.ValidateToken(login.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
