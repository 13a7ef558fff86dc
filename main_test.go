package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ttsudarshan/portfolio/auth"
	"github.com/ttsudarshan/portfolio/config"
	"github.com/ttsudarshan/portfolio/db"
	"github.com/ttsudarshan/portfolio/events"
	"github.com/ttsudarshan/portfolio/http/middleware"
	"github.com/ttsudarshan/portfolio/shell"
	"github.com/ttsudarshan/portfolio/storage"
)

const testAdminKey = "open-sesame"

type testEnv struct {
	app     *App
	handler http.Handler
	photos  *db.MockDB
	blobs   *storage.MockS3
	sink    *events.MockSink
	stop    context.CancelFunc
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		MessagesFile:            filepath.Join(t.TempDir(), "messages.json"),
		MessagesMax:             1000,
		StreamOutboxCapacity:    10,
		StreamHeartbeatInterval: time.Second,
		GuestbookMaxUploadBytes: 1 << 20,
		GuestbookImageMaxSize:   100,
		GuestbookJPEGQuality:    70,
	}

	authService, err := auth.NewService(auth.Config{AdminKey: testAdminKey, JWTSecret: "secret", KeyRate: rate.Inf})
	require.NoError(t, err)
	t.Cleanup(authService.Close)

	root, err := shell.DefaultFS()
	require.NoError(t, err)
	sessions := shell.NewSessions(root, time.Hour)
	t.Cleanup(sessions.Close)

	streamsCtx, stop := context.WithCancel(context.Background())
	t.Cleanup(stop)

	env := &testEnv{
		photos: db.NewMock(),
		blobs:  storage.NewMock(),
		sink:   events.NewMockSink(),
		stop:   stop,
	}
	env.app, err = NewApp(cfg, env.photos, env.blobs, env.sink, authService, sessions, streamsCtx)
	require.NoError(t, err)
	env.handler = env.app.Router()
	return env
}

func (e *testEnv) do(t *testing.T, method, target string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func testImage(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.NRGBA{R: 255, G: uint8(x * 6), B: uint8(y * 12), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func (e *testEnv) upload(t *testing.T, name, visitor string) map[string]any {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/guestbook/upload", map[string]string{
		"image": testImage(t), "name": name, "visitor_id": visitor,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	out := decode(t, rr)
	require.Equal(t, true, out["success"])
	return out["photo"].(map[string]any)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","stream_clients":0}`, rr.Body.String())
}

func TestShellEndpoints(t *testing.T) {
	env := newTestEnv(t)

	session := decode(t, env.do(t, http.MethodGet, "/api/session", nil))
	id, _ := session["session_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, shell.Home+"$ ", session["prompt"])

	out := decode(t, env.do(t, http.MethodPost, "/api/execute", map[string]string{"command": "cd Projects", "session_id": id}))
	assert.Equal(t, "success", out["type"])
	assert.Equal(t, shell.Home+"/Projects$ ", out["prompt"])

	out = decode(t, env.do(t, http.MethodPost, "/api/autocomplete", map[string]string{"partial": "tu", "session_id": id}))
	assert.Equal(t, []any{"TuningSQL.md"}, out["completions"])

	out = decode(t, env.do(t, http.MethodPost, "/api/autocomplete", map[string]string{"partial": "zzz", "session_id": id}))
	assert.Equal(t, []any{}, out["completions"])

	out = decode(t, env.do(t, http.MethodPost, "/api/execute", map[string]string{"command": "pwd"}))
	assert.Equal(t, shell.Home, out["output"], "unknown sessions start at home")
}

func TestMessagesAndAdminPage(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/send-message", map[string]string{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"success":false,"error":"Message cannot be empty"}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/api/send-message", map[string]string{"message": "<b>hi</b> there"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true}`, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/admin/messages", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodGet, "/admin/messages?key="+testAdminKey, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "&lt;b&gt;hi&lt;/b&gt; there")
}

func TestAdminLoginLogout(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/admin/login", map[string]string{"key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/admin/login", map[string]string{"key": testAdminKey})
	require.Equal(t, http.StatusOK, rr.Code)
	token, _ := decode(t, rr)["token"].(string)
	require.NotEmpty(t, token)

	rr = env.do(t, http.MethodGet, "/admin/messages", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/admin/logout", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/admin/messages", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAdminLogin_ForwardedForSharesLimit(t *testing.T) {
	env := newTestEnv(t)
	strict, err := auth.NewService(auth.Config{AdminKey: testAdminKey, JWTSecret: "secret", KeyBurst: 1, KeyRate: rate.Limit(0.001)})
	require.NoError(t, err)
	t.Cleanup(strict.Close)
	env.app.Auth = strict
	env.handler = env.app.Router()

	codes := make([]int, 0, 3)
	for _, fwd := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		rr := env.do(t, http.MethodPost, "/api/admin/login", map[string]string{"key": "wrong"}, "X-Forwarded-For", fwd)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestGuestbookFlow(t *testing.T) {
	env := newTestEnv(t)

	p := env.upload(t, "  Ada  ", "visitor-1")
	id := p["id"].(string)
	assert.Equal(t, "Ada", p["visitor_name"])
	assert.Equal(t, "/api/guestbook/image/"+id, p["image_url"])

	list := decode(t, env.do(t, http.MethodGet, "/api/guestbook/photos", nil))
	require.Len(t, list["photos"], 1)

	rr := env.do(t, http.MethodGet, "/api/guestbook/image/"+id, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/jpeg", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Body.Bytes())

	rr = env.do(t, http.MethodDelete, "/api/guestbook/delete/"+id, map[string]string{"visitor_id": "someone-else"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, http.MethodDelete, "/api/guestbook/delete/"+id, map[string]string{"visitor_id": "visitor-1"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, env.blobs.Len())

	rr = env.do(t, http.MethodDelete, "/api/guestbook/delete/"+id, map[string]string{"visitor_id": "visitor-1"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/guestbook/image/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	sent := env.sink.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "new_photo", sent[0].Type)
	assert.Equal(t, "delete_photo", sent[1].Type)
}

func TestGuestbook_AdminDelete(t *testing.T) {
	env := newTestEnv(t)
	id := env.upload(t, "", "visitor-1")["id"].(string)

	rr := env.do(t, http.MethodDelete, "/api/guestbook/delete/"+id, nil, middleware.HeaderAdminKey, testAdminKey)
	assert.Equal(t, http.StatusOK, rr.Code)

	list := decode(t, env.do(t, http.MethodGet, "/api/guestbook/photos", nil))
	assert.Equal(t, []any{}, list["photos"])
}

func TestGuestbook_UploadRejects(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/guestbook/upload", map[string]string{"image": "data:text/plain;base64,aGk="})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"success":false,"error":"Invalid image"}`, rr.Body.String())

	env.app.Config.GuestbookMaxUploadBytes = 64
	rr = env.do(t, http.MethodPost, "/api/guestbook/upload", map[string]string{"image": testImage(t)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	assert.Empty(t, env.sink.Sent())
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/guestbook/upload", http.NoBody)
	req.Header.Set("Origin", "https://example.com")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

// readEvent reads one SSE frame and returns its event name and data.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if event != "" || data != "" {
				return event, data
			}
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestStream_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/guestbook/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	event, data := readEvent(t, r)
	assert.Equal(t, "connected", event)
	assert.JSONEq(t, `{"status":"connected"}`, data)
	assert.Equal(t, 1, env.app.Hub.Len())

	id := env.upload(t, "Grace", "v")["id"].(string)
	event, data = readEvent(t, r)
	assert.Equal(t, "new_photo", event)
	assert.Contains(t, data, `"visitor_name":"Grace"`)

	env.do(t, http.MethodDelete, "/api/guestbook/delete/"+id, map[string]string{"visitor_id": "v"})
	event, data = readEvent(t, r)
	assert.Equal(t, "delete_photo", event)
	assert.JSONEq(t, `{"id":"`+id+`"}`, data)

	// shutdown ends the session and removes it from the hub
	env.stop()
	_, err = io.Copy(io.Discard, resp.Body)
	assert.NoError(t, err)
	assert.Eventually(t, func() bool { return env.app.Hub.Len() == 0 }, time.Second, 10*time.Millisecond)
}
