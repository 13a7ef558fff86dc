package db

import (
	"context"
	"sort"
	"sync"

	photo "github.com/ttsudarshan/portfolio/photo/v1"
)

// MockDB is an in-memory stand-in for DB used in tests and local runs
type MockDB struct {
	photos map[string]photo.Record
	mutex  sync.RWMutex

	// CreateErr, when set, is returned by CreatePhoto
	CreateErr error
}

// NewMock creates a new mock database
func NewMock() *MockDB {
	return &MockDB{
		photos: make(map[string]photo.Record),
	}
}

// Ping always succeeds
func (m *MockDB) Ping(ctx context.Context) error {
	return nil
}

// CreatePhoto stores a photo record in memory
func (m *MockDB) CreatePhoto(ctx context.Context, rec photo.Record) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.photos[rec.ID] = rec
	return nil
}

// GetPhoto retrieves a photo record from memory
func (m *MockDB) GetPhoto(ctx context.Context, id string) (photo.Record, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rec, ok := m.photos[id]
	if !ok {
		return photo.Record{}, ErrPhotoNotFound{ID: id}
	}
	return rec, nil
}

// DeletePhoto removes a photo record from memory
func (m *MockDB) DeletePhoto(ctx context.Context, id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.photos[id]; !ok {
		return ErrPhotoNotFound{ID: id}
	}
	delete(m.photos, id)
	return nil
}

// ListPhotos returns all photo records, newest first
func (m *MockDB) ListPhotos(ctx context.Context) ([]photo.Record, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	photos := make([]photo.Record, 0, len(m.photos))
	for _, rec := range m.photos {
		photos = append(photos, rec)
	}
	sort.Slice(photos, func(i, j int) bool {
		return photos[i].CreatedAt.After(photos[j].CreatedAt)
	})
	return photos, nil
}
