// Package clients tracks connected demo-protocol sessions, adapted from
// lib/clients.go: the same active-client bookkeeping, extended to record
// which authenticated user (if any) owns each connection.
package clients

import "sync"

// Manager tracks active client connections by ID.
type Manager struct {
	mu      sync.Mutex
	clients map[uint32]string // clientID -> authenticated username ("" if unauthenticated)
}

func NewManager() *Manager {
	return &Manager{clients: make(map[uint32]string)}
}

// Add registers a new client connection.
func (m *Manager) Add(clientID uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[clientID] = ""
}

// Remove drops a client connection.
func (m *Manager) Remove(clientID uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, clientID)
}

// SetUser records which user a connection authenticated as.
func (m *Manager) SetUser(clientID uint32, username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[clientID]; ok {
		m.clients[clientID] = username
	}
}

// User returns the username a connection authenticated as, if any.
func (m *Manager) User(clientID uint32) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.clients[clientID]
	return u, ok && u != ""
}

// Count returns the number of active client connections.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}
