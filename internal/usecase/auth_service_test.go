package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vitos/trade_calls/internal/domain"
)

func newTestAuth(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthService(AuthConfig{
		AdminUser:         "admin",
		AdminPasswordHash: string(hash),
		SessionTTL:        time.Hour,
	}, zap.NewNop())
}

func TestAuthService_AdminLogin(t *testing.T) {
	auth := newTestAuth(t)

	s, err := auth.AdminLogin("admin", "s3cret")
	require.NoError(t, err)
	assert.True(t, s.IsAdmin())
	assert.NotEmpty(t, s.Token)

	got, err := auth.Session(s.Token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, got.Role)

	_, err = auth.AdminLogin("admin", "wrong")
	assert.ErrorIs(t, err, domain.ErrBadLogin)
	_, err = auth.AdminLogin("root", "s3cret")
	assert.ErrorIs(t, err, domain.ErrBadLogin)
}

func TestAuthService_AdminLoginWithoutConfiguredCredentials(t *testing.T) {
	auth := NewAuthService(AuthConfig{}, zap.NewNop())
	_, err := auth.AdminLogin("", "")
	assert.ErrorIs(t, err, domain.ErrBadLogin)
}

func TestAuthService_ClientLogin(t *testing.T) {
	auth := newTestAuth(t)

	tests := []struct {
		name, fullName, mobile string
		ok                     bool
	}{
		{"valid", "Ravi Kumar", "9876543210", true},
		{"short mobile", "Ravi Kumar", "98765", false},
		{"letters in mobile", "Ravi Kumar", "98765abcde", false},
		{"missing name", "  ", "9876543210", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := auth.ClientLogin(tt.fullName, tt.mobile)
			if !tt.ok {
				assert.ErrorIs(t, err, domain.ErrBadLogin)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, RoleClient, s.Role)
			assert.Equal(t, "Ravi Kumar", s.Name)
			assert.False(t, s.IsAdmin())
		})
	}
}

func TestAuthService_SessionExpiryAndLogout(t *testing.T) {
	auth := newTestAuth(t)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	auth.timeNow = func() time.Time { return now }

	s, err := auth.ClientLogin("Asha", "9000000000")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = auth.Session(s.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	s2, err := auth.ClientLogin("Asha", "9000000000")
	require.NoError(t, err)
	auth.Logout(s2.Token)
	_, err = auth.Session(s2.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = auth.Session("")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthService_PruneExpired(t *testing.T) {
	auth := newTestAuth(t)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	auth.timeNow = func() time.Time { return now }

	_, _ = auth.ClientLogin("A", "9000000001")
	_, _ = auth.ClientLogin("B", "9000000002")
	now = now.Add(90 * time.Minute)
	_, _ = auth.ClientLogin("C", "9000000003")

	assert.Equal(t, 2, auth.PruneExpired())
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("pw")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("pw")))
}
