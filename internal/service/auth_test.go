package service

import (
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backend/internal/models"
)

type fakeAuthRepo struct {
	users map[string]*models.User
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{users: make(map[string]*models.User)}
}

func (f *fakeAuthRepo) CreateUser(user *models.User) error {
	user.ID = int64(len(f.users) + 1)
	f.users[user.Username] = user
	return nil
}

func (f *fakeAuthRepo) GetUserByUsername(username string) (*models.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeAuthRepo) CountUsers() (int, error) {
	return len(f.users), nil
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := hashPassword("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, verifyPassword(hash, "correct horse battery staple"))
	assert.False(t, verifyPassword(hash, "wrong password"))
	assert.False(t, verifyPassword("not-a-hash", "anything"))
}

func TestRegisterClosesAfterFirstUser(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewAuthService(repo, "secret", time.Hour, zap.NewNop())

	_, err := svc.RegisterAdmin("admin", "longenoughpassword")
	require.NoError(t, err)

	_, err = svc.RegisterAdmin("intruder", "longenoughpassword")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestLoginIssuesValidToken(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewAuthService(repo, "secret", time.Hour, zap.NewNop())

	_, err := svc.RegisterAdmin("admin", "longenoughpassword")
	require.NoError(t, err)

	token, expiresAt, err := svc.Login("admin", "longenoughpassword")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims := &models.Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewAuthService(repo, "secret", time.Hour, zap.NewNop())

	_, err := svc.RegisterAdmin("admin", "longenoughpassword")
	require.NoError(t, err)

	_, _, err = svc.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login("nobody", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
