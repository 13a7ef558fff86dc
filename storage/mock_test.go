package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockS3_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMock()

	require.NoError(t, m.UploadObject(ctx, "guestbook/a.jpg", strings.NewReader("jpeg"), "image/jpeg"))
	assert.True(t, m.Has("guestbook/a.jpg"))

	out, err := m.GetObject(ctx, "guestbook/a.jpg")
	require.NoError(t, err)
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(body))
	assert.Equal(t, "image/jpeg", *out.ContentType)
	assert.Equal(t, int64(4), *out.ContentLength)

	require.NoError(t, m.DeleteObject(ctx, "guestbook/a.jpg"))
	_, err = m.GetObject(ctx, "guestbook/a.jpg")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// deleting twice is fine, like S3
	assert.NoError(t, m.DeleteObject(ctx, "guestbook/a.jpg"))
	assert.Equal(t, 0, m.Len())
}

func TestPublicURL(t *testing.T) {
	m := NewMock()
	assert.Empty(t, m.PublicURL("guestbook/a.jpg"))

	m.BaseURL = "https://cdn.example.com/guestbook-bucket/"
	assert.Equal(t, "https://cdn.example.com/guestbook-bucket/guestbook/a.jpg", m.PublicURL("guestbook/a.jpg"))

	s := &S3{publicURL: "http://minio:9000/guestbook"}
	assert.Equal(t, "http://minio:9000/guestbook/x.jpg", s.PublicURL("/x.jpg"))
}
