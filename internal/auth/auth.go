// Package auth provides username/password accounts and role grants for
// the demo CLI's login command (SPEC_FULL.md §11.8), adapted from
// lib/auth.go: the same user/role bookkeeping. It does not itself
// restrict access to any tree or database.
package auth

import (
	"errors"
	"log/slog"
	"sync"
)

// User holds one account's credentials and granted roles.
type User struct {
	Username string
	Password string
	Roles    []string
}

// Manager handles user accounts and coarse role grants. It has no notion
// of password hashing -- like its source, it is a demo-grade gate for the
// CLI, not a production auth system.
type Manager struct {
	mu    sync.Mutex
	users map[string]*User
	log   *slog.Logger
}

// NewManager builds an empty Manager. log may be nil (slog.Default()).
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{users: make(map[string]*User), log: log}
}

func (m *Manager) CreateUser(username, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[username]; exists {
		return errors.New("user already exists")
	}
	m.users[username] = &User{Username: username, Password: password}
	m.log.Info("user created", "username", username)
	return nil
}

func (m *Manager) AlterUser(username, newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[username]
	if !exists {
		return errors.New("user not found")
	}
	user.Password = newPassword
	return nil
}

func (m *Manager) DropUser(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[username]; !exists {
		return errors.New("user not found")
	}
	delete(m.users, username)
	m.log.Info("user dropped", "username", username)
	return nil
}

func (m *Manager) Grant(username, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[username]
	if !exists {
		return errors.New("user not found")
	}
	user.Roles = append(user.Roles, role)
	return nil
}

func (m *Manager) Revoke(username, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[username]
	if !exists {
		return errors.New("user not found")
	}
	for i, r := range user.Roles {
		if r == role {
			user.Roles = append(user.Roles[:i], user.Roles[i+1:]...)
			return nil
		}
	}
	return errors.New("role not found")
}

// Authenticate verifies credentials and reports the user's granted roles.
func (m *Manager) Authenticate(username, password string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[username]
	if !exists || user.Password != password {
		return nil, errors.New("invalid credentials")
	}
	m.log.Info("session started", "username", username)
	return append([]string(nil), user.Roles...), nil
}

// HasRole reports whether username currently holds role.
func (m *Manager) HasRole(username, role string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[username]
	if !exists {
		return false
	}
	for _, r := range user.Roles {
		if r == role {
			return true
		}
	}
	return false
}
