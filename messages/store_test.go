package messages

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, max int) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "messages.json"), max)
	s.log = zerolog.Nop()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	s.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Minute)
	}
	return s
}

func TestAppend_Empty(t *testing.T) {
	s := newTestStore(t, 10)
	_, err := s.Append("   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = os.Stat(s.path)
	assert.True(t, os.IsNotExist(err))
}

func TestAppend_AndList(t *testing.T) {
	s := newTestStore(t, 10)

	m1, err := s.Append("  hello  ")
	require.NoError(t, err)
	assert.Equal(t, 1, m1.ID)
	assert.Equal(t, "hello", m1.Message)

	m2, err := s.Append("second")
	require.NoError(t, err)
	assert.Equal(t, 2, m2.ID)

	msgs := s.List()
	require.Len(t, msgs, 2)
	assert.Equal(t, "second", msgs[0].Message)
	assert.Equal(t, "hello", msgs[1].Message)

	// file is an indented JSON array
	data, err := os.ReadFile(s.path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[\n  {"))
	_, err = os.Stat(s.path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestAppend_KeepsMostRecent(t *testing.T) {
	s := newTestStore(t, 3)
	for _, text := range []string{"a", "b", "c", "d", "e"} {
		_, err := s.Append(text)
		require.NoError(t, err)
	}

	msgs := s.List()
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"e", "d", "c"}, []string{msgs[0].Message, msgs[1].Message, msgs[2].Message})
	assert.Equal(t, 5, msgs[0].ID)
}

func TestList_CorruptFileIsEmpty(t *testing.T) {
	s := newTestStore(t, 10)
	require.NoError(t, os.WriteFile(s.path, []byte("{not json"), 0o644))

	assert.Empty(t, s.List())

	m, err := s.Append("fresh")
	require.NoError(t, err)
	assert.Equal(t, 1, m.ID)
}

func TestList_ReadsLegacyTimestamps(t *testing.T) {
	s := newTestStore(t, 10)
	legacy := []Message{
		{ID: 1, Message: "older", Timestamp: "2024-05-01T10:00:00.123456"},
		{ID: 2, Message: "newer", Timestamp: "2024-05-02T10:00:00"},
	}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.path, data, 0o644))

	msgs := s.List()
	require.Len(t, msgs, 2)
	assert.Equal(t, "newer", msgs[0].Message)
	assert.Equal(t, 2024, msgs[1].Time().Year())
}

func TestRenderAdminPage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderAdminPage(&buf, []Message{
		{ID: 7, Message: "<script>alert(1)</script>", Timestamp: "2025-03-01T15:04:00Z"},
	}))

	out := buf.String()
	assert.Contains(t, out, "Total Messages: 1")
	assert.Contains(t, out, "Message #7")
	assert.Contains(t, out, "2025-03-01 03:04 PM")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.NotContains(t, out, "<script>alert")
}

func TestRenderAdminPage_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderAdminPage(&buf, nil))
	assert.Contains(t, buf.String(), "No messages yet")
	assert.Contains(t, buf.String(), "Total Messages: 0")
}
