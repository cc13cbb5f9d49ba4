package storage

import (
	"context"
	"sync"

	"github.com/dmarquez/pcitrack/internal/model"
)

// MemoryDirectory is an in-memory user directory.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]model.User
}

// NewMemoryDirectory constructs a MemoryDirectory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{users: make(map[string]model.User)}
}

// Put inserts or replaces a user.
func (m *MemoryDirectory) Put(user model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

// FindActiveAdmins returns every active admin.
func (m *MemoryDirectory) FindActiveAdmins(context.Context) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.User
	for _, u := range m.users {
		if u.Role == model.RoleAdmin && u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

// FindByID returns a user by id.
func (m *MemoryDirectory) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &u, nil
}
