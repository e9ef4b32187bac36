package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrAlreadyRegistered  = errors.New("connection already registered")
	ErrInvalidConnection  = errors.New("invalid connection ID")
	ErrInvalidIdentity    = errors.New("invalid external identity")
)

// Connection is one live network session and the external identity it was
// authenticated as.
type Connection struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Manager is the connection registry
type Manager struct {
	connections map[string]*Connection
	mu          sync.RWMutex
}

// NewManager creates an empty registry
func NewManager() *Manager {
	return &Manager{
		connections: make(map[string]*Connection),
	}
}

// NewConnectionID returns a fresh, unique connection identifier
func (m *Manager) NewConnectionID() string {
	return uuid.NewString()
}

// Register records that connection id belongs to userID
func (m *Manager) Register(id, userID string) (*Connection, error) {
	if id == "" {
		return nil, ErrInvalidConnection
	}
	if userID == "" {
		return nil, ErrInvalidIdentity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.connections[id]; exists {
		return nil, ErrAlreadyRegistered
	}

	conn := &Connection{
		ID:          id,
		UserID:      userID,
		ConnectedAt: time.Now(),
	}
	m.connections[id] = conn

	return conn, nil
}

// Unregister forgets connection id
func (m *Manager) Unregister(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.connections[id]; !exists {
		return ErrConnectionNotFound
	}
	delete(m.connections, id)
	return nil
}

// Get retrieves a connection by ID
func (m *Manager) Get(id string) (Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, exists := m.connections[id]
	if !exists {
		return Connection{}, ErrConnectionNotFound
	}
	return *conn, nil
}

// UserID returns the external identity behind connection id
func (m *Manager) UserID(id string) (string, bool) {
	conn, err := m.Get(id)
	if err != nil {
		return "", false
	}
	return conn.UserID, true
}

// List returns all live connections, oldest first
func (m *Manager) List() []Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Connection, 0, len(m.connections))
	for _, conn := range m.connections {
		result = append(result, *conn)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ConnectedAt.Equal(result[j].ConnectedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].ConnectedAt.Before(result[j].ConnectedAt)
	})

	return result
}

// Count returns the number of live connections
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}
