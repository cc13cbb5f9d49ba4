// Package storage contains in-memory implementations of the persistence
// collaborators. They back unit tests and local runs without Postgres, and
// enforce the same optimistic-concurrency rules as the SQL repositories.
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmarquez/pcitrack/internal/model"
)

// MemoryStore is a mutex-guarded document store with per-document version
// checks mirroring the Postgres repository.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*model.Document
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*model.Document)}
}

// Create inserts a document. Dates are validated and the status is expected
// to have been derived by the caller.
func (m *MemoryStore) Create(_ context.Context, doc *model.Document) error {
	if err := doc.CheckDates(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	doc.Version = 1
	m.docs[doc.ID] = clone(doc)
	return nil
}

// Get returns a deep copy so callers cannot mutate internal state.
func (m *MemoryStore) Get(_ context.Context, id string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return clone(doc), nil
}

// List returns every document ordered by expiration date ascending.
func (m *MemoryStore) List(_ context.Context) ([]*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(*model.Document) bool { return true }), nil
}

// FindExpiringWithin returns non-expired documents whose expiration date falls
// in [now, now+window], ordered by expiration date ascending.
func (m *MemoryStore) FindExpiringWithin(_ context.Context, now time.Time, window time.Duration) ([]*model.Document, error) {
	limit := now.Add(window)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(d *model.Document) bool {
		if d.Status == model.StatusExpired {
			return false
		}
		return !d.ExpirationDate.Before(now) && !d.ExpirationDate.After(limit)
	}), nil
}

// FindActive returns documents in a non-terminal status, ordered by
// expiration date ascending.
func (m *MemoryStore) FindActive(_ context.Context) ([]*model.Document, error) {
	active := make(map[model.Status]bool)
	for _, s := range model.ActiveStatuses {
		active[s] = true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(d *model.Document) bool { return active[d.Status] }), nil
}

// Claim bumps the document version if it still matches the expected one,
// serializing notification sends between concurrent jobs.
func (m *MemoryStore) Claim(_ context.Context, id string, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return model.ErrNotFound
	}
	if doc.Version != version {
		return model.ErrConflict
	}
	doc.Version++
	doc.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateStatus persists a derived status under a version check.
func (m *MemoryStore) UpdateStatus(_ context.Context, id string, version int64, status model.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return model.ErrNotFound
	}
	if doc.Version != version {
		return model.ErrConflict
	}
	doc.Status = status
	doc.Version++
	doc.UpdatedAt = time.Now().UTC()
	return nil
}

// Save replaces the document's mutable fields under a version check and
// re-stamps the version on the caller's copy. The notification history is
// owned by AppendNotifications and is preserved as stored.
func (m *MemoryStore) Save(_ context.Context, doc *model.Document) error {
	if err := doc.CheckDates(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.docs[doc.ID]
	if !ok {
		return model.ErrNotFound
	}
	if cur.Version != doc.Version {
		return model.ErrConflict
	}
	doc.Version++
	doc.UpdatedAt = time.Now().UTC()
	doc.Notifications = cur.Notifications
	m.docs[doc.ID] = clone(doc)
	return nil
}

// AppendNotifications appends attempt records to the audit log. The log is
// append-only; existing entries are never rewritten.
func (m *MemoryStore) AppendNotifications(_ context.Context, id string, records []model.NotificationRecord) error {
	if len(records) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return model.ErrNotFound
	}
	doc.Notifications = append(doc.Notifications, records...)
	doc.UpdatedAt = time.Now().UTC()
	return nil
}

// CountByStatus returns document counts keyed by status.
func (m *MemoryStore) CountByStatus(_ context.Context) (map[model.Status]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[model.Status]int)
	for _, doc := range m.docs {
		counts[doc.Status]++
	}
	return counts, nil
}

func (m *MemoryStore) collect(match func(*model.Document) bool) []*model.Document {
	var out []*model.Document
	for _, doc := range m.docs {
		if match(doc) {
			out = append(out, clone(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpirationDate.Before(out[j].ExpirationDate)
	})
	return out
}

func clone(doc *model.Document) *model.Document {
	cp := *doc
	if doc.Validation != nil {
		v := *doc.Validation
		if doc.Validation.ExtractedData != nil {
			v.ExtractedData = make(map[string]string, len(doc.Validation.ExtractedData))
			for k, val := range doc.Validation.ExtractedData {
				v.ExtractedData[k] = val
			}
		}
		cp.Validation = &v
	}
	if doc.Notifications != nil {
		cp.Notifications = append([]model.NotificationRecord(nil), doc.Notifications...)
	}
	if doc.AssignedTo != nil {
		id := *doc.AssignedTo
		cp.AssignedTo = &id
	}
	return &cp
}
