package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MockS3 is an in-memory stand-in for S3 used in tests and local runs
type MockS3 struct {
	objects map[string][]byte
	mimes   map[string]string
	mutex   sync.RWMutex

	// BaseURL is used by PublicURL when set
	BaseURL string
	// DeleteErr, when set, is returned by DeleteObject
	DeleteErr error
}

// NewMock creates a new mock S3 client
func NewMock() *MockS3 {
	return &MockS3{
		objects: make(map[string][]byte),
		mimes:   make(map[string]string),
	}
}

// UploadObject stores an object in memory
func (m *MockS3) UploadObject(ctx context.Context, key string, data io.Reader, contentType string) error {
	content, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.objects[key] = content
	m.mimes[key] = contentType
	return nil
}

// GetObject retrieves an object from memory
func (m *MockS3) GetObject(ctx context.Context, key string) (*s3.GetObjectOutput, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	content, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}

	contentType := m.mimes[key]
	length := int64(len(content))

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(content)),
		ContentType:   &contentType,
		ContentLength: &length,
	}, nil
}

// DeleteObject removes an object from memory
func (m *MockS3) DeleteObject(ctx context.Context, key string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.objects, key)
	delete(m.mimes, key)
	return nil
}

// PublicURL returns BaseURL joined with key, or ""
func (m *MockS3) PublicURL(key string) string {
	return joinPublicURL(strings.TrimSuffix(m.BaseURL, "/"), key)
}

// Has reports whether key is stored
func (m *MockS3) Has(key string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.objects[key]
	return ok
}

// Len returns the number of stored objects
func (m *MockS3) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.objects)
}
