package usecase

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vitos/trade_calls/internal/domain"
)

type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleClient Role = "Client"
)

// Session is the capability handed out on sign-in.
type Session struct {
	Token     string
	Role      Role
	Name      string
	Mobile    string
	ExpiresAt time.Time
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

type AuthConfig struct {
	AdminUser         string
	AdminPasswordHash string // bcrypt
	SessionTTL        time.Duration
}

type AuthService struct {
	cfg    AuthConfig
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]Session
	timeNow  func() time.Time
}

func NewAuthService(cfg AuthConfig, logger *zap.Logger) *AuthService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	return &AuthService{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]Session),
		timeNow:  time.Now,
	}
}

// HashPassword produces the bcrypt hash stored in configuration.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// AdminLogin checks the configured admin credentials.
func (a *AuthService) AdminLogin(user, password string) (Session, error) {
	if a.cfg.AdminUser == "" || a.cfg.AdminPasswordHash == "" {
		a.logger.Warn("Admin login attempted but no admin credentials are configured")
		return Session{}, domain.ErrBadLogin
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.cfg.AdminUser)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(a.cfg.AdminPasswordHash), []byte(password))
	if !userOK || passErr != nil {
		a.logger.Warn("Admin login rejected", zap.String("user", user))
		return Session{}, domain.ErrBadLogin
	}
	return a.issue(Session{Role: RoleAdmin, Name: "Admin"}), nil
}

// ClientLogin signs a client in with a full name and a 10-digit mobile number.
func (a *AuthService) ClientLogin(fullName, mobile string) (Session, error) {
	fullName = strings.TrimSpace(fullName)
	mobile = strings.TrimSpace(mobile)
	if fullName == "" || !validMobile(mobile) {
		return Session{}, fmt.Errorf("enter a valid 10-digit mobile number and name: %w", domain.ErrBadLogin)
	}
	return a.issue(Session{Role: RoleClient, Name: fullName, Mobile: mobile}), nil
}

func validMobile(m string) bool {
	if len(m) != 10 {
		return false
	}
	for _, r := range m {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func (a *AuthService) issue(s Session) Session {
	s.Token = uuid.NewString()
	s.ExpiresAt = a.timeNow().Add(a.cfg.SessionTTL)

	a.mu.Lock()
	a.sessions[s.Token] = s
	a.mu.Unlock()

	a.logger.Info("Session issued", zap.String("role", string(s.Role)), zap.String("name", s.Name))
	return s
}

// Session resolves a token. Expired sessions are dropped.
func (a *AuthService) Session(token string) (Session, error) {
	if token == "" {
		return Session{}, domain.ErrUnauthorized
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sessions[token]
	if !ok {
		return Session{}, domain.ErrUnauthorized
	}
	if a.timeNow().After(s.ExpiresAt) {
		delete(a.sessions, token)
		return Session{}, domain.ErrUnauthorized
	}
	return s, nil
}

func (a *AuthService) Logout(token string) {
	a.mu.Lock()
	delete(a.sessions, token)
	a.mu.Unlock()
}

// PruneExpired drops expired sessions and returns how many were removed.
func (a *AuthService) PruneExpired() int {
	now := a.timeNow()
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for tok, s := range a.sessions {
		if now.After(s.ExpiresAt) {
			delete(a.sessions, tok)
			n++
		}
	}
	return n
}
