package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresBucketAndRegion(t *testing.T) {
	_, err := New(context.Background(), Config{Endpoint: "http://127.0.0.1:1", Region: "us-east-1"})
	assert.ErrorContains(t, err, "bucket")

	_, err = New(context.Background(), Config{Endpoint: "http://127.0.0.1:1", Bucket: "guestbook"})
	assert.ErrorContains(t, err, "region")
}

// fakeBucketServer answers just enough of the S3 API for New and UploadObject.
type fakeBucketServer struct {
	mu       sync.Mutex
	exists   bool
	requests []string
	objects  map[string]string
}

func (f *fakeBucketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	switch {
	case r.Method == http.MethodHead && r.URL.Path == "/guestbook":
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut && r.URL.Path == "/guestbook":
		f.exists = true
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/guestbook/"):
		body, _ := io.ReadAll(r.Body)
		f.objects[strings.TrimPrefix(r.URL.Path, "/guestbook/")] = string(body)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func TestNew_CreatesMissingBucket(t *testing.T) {
	fake := &fakeBucketServer{objects: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	cfg := Config{
		Endpoint:  srv.URL,
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "guestbook",
		Region:    "us-east-1",
	}
	store, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, store.UploadObject(context.Background(), "a.jpg", strings.NewReader("jpeg"), "image/jpeg"))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []string{"HEAD /guestbook", "PUT /guestbook", "PUT /guestbook/a.jpg"}, fake.requests)
	assert.Equal(t, "jpeg", fake.objects["a.jpg"])
}
