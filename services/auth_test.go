package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"autoreply-bot/models"
)

type fakeUsers struct {
	users     map[string]*models.User
	lastLogin []string
}

func (f *fakeUsers) UserByUsername(_ context.Context, username string) (*models.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) UpdateUserLastLogin(_ context.Context, username string) error {
	f.lastLogin = append(f.lastLogin, username)
	return nil
}

func newFakeUsers(t *testing.T) *fakeUsers {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return &fakeUsers{users: map[string]*models.User{
		"admin":    {Username: "admin", Role: models.RoleAdmin, PasswordHash: string(hash), IsActive: true},
		"disabled": {Username: "disabled", Role: models.RoleAgent, PasswordHash: string(hash), IsActive: false},
	}}
}

func TestAuthService_Login(t *testing.T) {
	users := newFakeUsers(t)
	auth := NewAuthService(users, "jwt-secret", time.Hour)

	token, user, err := auth.Login(context.Background(), "admin", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
	assert.Equal(t, []string{"admin"}, users.lastLogin)

	claims, err := ParseToken(token, []byte("jwt-secret"))
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, string(models.RoleAdmin), claims.Role)
}

func TestAuthService_LoginRejects(t *testing.T) {
	auth := NewAuthService(newFakeUsers(t), "jwt-secret", time.Hour)

	for name, creds := range map[string][2]string{
		"wrong password": {"admin", "nope"},
		"unknown user":   {"ghost", "s3cret"},
		"disabled user":  {"disabled", "s3cret"},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := auth.Login(context.Background(), creds[0], creds[1])
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestParseToken_RejectsBadTokens(t *testing.T) {
	auth := NewAuthService(newFakeUsers(t), "jwt-secret", time.Hour)
	token, err := auth.IssueToken(&models.User{Username: "admin", Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = ParseToken(token, []byte("other-secret"))
	assert.Error(t, err)

	expired := NewAuthService(nil, "jwt-secret", time.Hour)
	expired.ttl = -time.Minute
	old, err := expired.IssueToken(&models.User{Username: "admin"})
	require.NoError(t, err)
	_, err = ParseToken(old, []byte("jwt-secret"))
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Username: "admin"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(none, []byte("jwt-secret"))
	assert.Error(t, err)
}
