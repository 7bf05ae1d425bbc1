package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/ekskul-api/internal/models"
	"github.com/noah-isme/ekskul-api/internal/repository"
	appErrors "github.com/noah-isme/ekskul-api/pkg/errors"
)

type mockAuthRepo struct {
	users     map[string]*models.User
	createErr error
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	m := &mockAuthRepo{users: map[string]*models.User{}}
	for _, u := range users {
		m.users[u.Email] = u
	}
	return m
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if user.ID == "" {
		user.ID = "user-" + user.Email
	}
	m.users[user.Email] = user
	return nil
}

func newTestAuthService(repo authUserRepository, gate bool) *AuthService {
	return NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret:       "secret",
		AccessTokenExpiry:       time.Hour,
		Issuer:                  "test",
		GatePendingRegistration: gate,
		BcryptCost:              bcrypt.MinCost,
	})
}

func hashed(t *testing.T, password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestRegisterStudentIsApprovedWithToken(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo(), false)

	resp, err := svc.Register(context.Background(), models.RegisterRequest{Name: "Sam", Email: "Sam@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.RoleStudent, resp.User.Role)
	assert.Equal(t, models.RoleStatusApproved, resp.User.RoleStatus)
	assert.Equal(t, "sam@example.com", resp.User.Email)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestRegisterElevatedIsPendingButStillGetsToken(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo(), false)

	resp, err := svc.Register(context.Background(), models.RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1", Role: models.RoleCoordinator})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStatusPending, resp.User.RoleStatus)
	assert.NotEmpty(t, resp.Token)
}

func TestRegisterElevatedGatedWithholdsToken(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo(), true)

	resp, err := svc.Register(context.Background(), models.RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Empty(t, resp.Token)
	assert.NotEmpty(t, resp.Message)
}

func TestRegisterRejectsDuplicatesAndBadPayloads(t *testing.T) {
	existing := &models.User{ID: "u1", Email: "taken@example.com"}
	svc := newTestAuthService(newMockAuthRepo(existing), false)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Name: "T", Email: "taken@example.com", Password: "secret1"})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = svc.Register(context.Background(), models.RegisterRequest{Name: "T", Email: "t@example.com", Password: "123"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Register(context.Background(), models.RegisterRequest{Name: "T", Email: "t@example.com", Password: "secret1", Role: "superuser"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestRegisterRaceOnUniqueIndex(t *testing.T) {
	repo := newMockAuthRepo()
	repo.createErr = repository.ErrDuplicateEmail
	svc := newTestAuthService(repo, false)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Name: "T", Email: "t@example.com", Password: "secret1"})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestLoginSuccess(t *testing.T) {
	user := &models.User{ID: "u1", Name: "Sam", Email: "sam@example.com", PasswordHash: hashed(t, "secret1"), Role: models.RoleStudent, RoleStatus: models.RoleStatusApproved, Points: 40}
	svc := newTestAuthService(newMockAuthRepo(user), false)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "sam@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, 40, resp.User.Points)
}

func TestLoginInvalidCredentials(t *testing.T) {
	user := &models.User{ID: "u1", Email: "sam@example.com", PasswordHash: hashed(t, "secret1"), Role: models.RoleStudent, RoleStatus: models.RoleStatusApproved}
	svc := newTestAuthService(newMockAuthRepo(user), false)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "sam@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "secret1"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

// pending admins and rejected accounts are refused at login
func TestLoginGatesRoleStatus(t *testing.T) {
	pending := &models.User{ID: "p1", Email: "pending@example.com", PasswordHash: hashed(t, "secret1"), Role: models.RoleAdmin, RoleStatus: models.RoleStatusPending}
	rejected := &models.User{ID: "r1", Email: "rejected@example.com", PasswordHash: hashed(t, "secret1"), Role: models.RoleStudent, RoleStatus: models.RoleStatusRejected}
	svc := newTestAuthService(newMockAuthRepo(pending, rejected), false)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "pending@example.com", Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "rejected@example.com", Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestValidateTokenRejectsGarbageAndForeignSecret(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo(), false)
	_, err := svc.ValidateToken("not-a-token")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	other := NewAuthService(newMockAuthRepo(), nil, nil, AuthConfig{AccessTokenSecret: "other", BcryptCost: bcrypt.MinCost})
	resp, err := other.Register(context.Background(), models.RegisterRequest{Name: "X", Email: "x@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.Token)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestValidateTokenExpired(t *testing.T) {
	svc := NewAuthService(newMockAuthRepo(), nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: -time.Minute, BcryptCost: bcrypt.MinCost})
	// negative expiry falls back to the default, so craft an expired token directly
	svc.config.AccessTokenExpiry = -time.Minute
	token, err := svc.generateAccessToken(&models.User{ID: "u1", Role: models.RoleStudent})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestValidateTokenRejectsForeignIssuer(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo(), false)

	foreign := NewAuthService(newMockAuthRepo(), nil, nil, AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "some-other-service",
		BcryptCost:        bcrypt.MinCost,
	})
	token, err := foreign.generateAccessToken(&models.User{ID: "u1", Role: models.RoleStudent, RoleStatus: models.RoleStatusApproved})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	own, err := svc.generateAccessToken(&models.User{ID: "u1", Role: models.RoleStudent, RoleStatus: models.RoleStatusApproved})
	require.NoError(t, err)
	claims, err := svc.ValidateToken(own)
	require.NoError(t, err)
	assert.Equal(t, "test", claims.Issuer)
}
