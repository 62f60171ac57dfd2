// Package session tracks the single signed-in user.
package session

import (
	"context"
	"crypto/subtle"
	"sync"

	"github.com/google/uuid"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/metrics"
)

// Users resolves a username to its stored record. *ledger.Store implements it.
type Users interface {
	FindUser(username string) (core.User, bool)
}

// Manager is either logged out or logged in as exactly one user.
type Manager struct {
	mu     sync.RWMutex
	users  Users
	logger *log.Logger

	user  core.User
	token string
}

func NewManager(users Users, logger *log.Logger) *Manager {
	return &Manager{
		users:  users,
		logger: logger.WithComponent(log.ComponentSession),
	}
}

// Login signs in when username and password both match a stored user
// exactly, and returns the token minted for this login. Any failure leaves
// the manager logged out.
func (m *Manager) Login(ctx context.Context, username, password string) (core.User, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users.FindUser(username)
	if !ok || subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		m.user, m.token = core.User{}, ""
		metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		m.logger.WarnContext(ctx, "Login rejected",
			log.FieldOperation, log.OpLogin,
			log.FieldUsername, username,
			log.FieldErrorType, log.ErrorTypeAuth)
		return core.User{}, "", core.ErrInvalidCredentials
	}

	m.user, m.token = u, uuid.NewString()
	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	m.logger.InfoContext(ctx, "User logged in",
		log.FieldOperation, log.OpLogin,
		log.FieldUsername, u.Username,
		"role", u.Role)
	return u, m.token, nil
}

func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != "" {
		m.logger.InfoContext(ctx, "User logged out",
			log.FieldOperation, log.OpLogout,
			log.FieldUsername, m.user.Username)
	}
	m.user, m.token = core.User{}, ""
}

// CurrentUser returns the signed-in user, if any.
func (m *Manager) CurrentUser() (core.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user, m.token != ""
}

func (m *Manager) IsAdmin() bool {
	u, ok := m.CurrentUser()
	return ok && u.IsAdmin()
}

// Authenticate returns the current user when token belongs to the active
// login.
func (m *Manager) Authenticate(token string) (core.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" || subtle.ConstantTimeCompare([]byte(m.token), []byte(token)) != 1 {
		return core.User{}, false
	}
	return m.user, true
}
