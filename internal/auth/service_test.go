package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchpulse/backend/internal/database"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.OpenForTests()
	require.NoError(t, err)
	return NewService(db, []byte("test-secret"))
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestService(t)

	resp, err := s.Register(RegisterRequest{
		Email:       "alice@example.com",
		Username:    "alice",
		Password:    "password123",
		DisplayName: "Alice",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.User.ID)
	assert.Equal(t, "attendee", resp.User.Role)

	login, err := s.Login(LoginRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)
}

func TestRegisterDuplicates(t *testing.T) {
	s := newTestService(t)

	req := RegisterRequest{
		Email:       "alice@example.com",
		Username:    "alice",
		Password:    "password123",
		DisplayName: "Alice",
	}
	_, err := s.Register(req)
	require.NoError(t, err)

	_, err = s.Register(req)
	assert.ErrorIs(t, err, ErrUserExists)

	req.Email = "other@example.com"
	_, err = s.Register(req)
	assert.ErrorIs(t, err, ErrUsernameExists, "username match is case-insensitive")
}

func TestLoginFailures(t *testing.T) {
	s := newTestService(t)

	_, err := s.Login(LoginRequest{Email: "ghost@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = s.Register(RegisterRequest{
		Email:       "alice@example.com",
		Username:    "alice",
		Password:    "password123",
		DisplayName: "Alice",
	})
	require.NoError(t, err)

	_, err = s.Login(LoginRequest{Email: "alice@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateToken(t *testing.T) {
	s := newTestService(t)

	resp, err := s.Register(RegisterRequest{
		Email:       "alice@example.com",
		Username:    "alice",
		Password:    "password123",
		DisplayName: "Alice",
	})
	require.NoError(t, err)

	user, err := s.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)

	_, err = s.ValidateToken("not.a.token")
	assert.Error(t, err)

	// A token signed with a different secret is rejected
	other := NewService(s.db, []byte("other-secret"))
	_, err = other.ValidateToken(resp.Token)
	assert.Error(t, err)
}
