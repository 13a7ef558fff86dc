package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/ttsudarshan/portfolio/auth"
	"github.com/ttsudarshan/portfolio/guestbook"
	"github.com/ttsudarshan/portfolio/http/middleware"
	"github.com/ttsudarshan/portfolio/messages"
	photo "github.com/ttsudarshan/portfolio/photo/v1"
	"github.com/ttsudarshan/portfolio/storage"
)

// Router returns the HTTP handler serving every route.
func (app *App) Router() http.Handler {
	router := mux.NewRouter()

	// Register routes
	router.HandleFunc("/healthz", app.healthzHandler).Methods("GET")

	router.HandleFunc("/api/session", app.sessionHandler).Methods("GET")
	router.HandleFunc("/api/execute", app.executeHandler).Methods("POST")
	router.HandleFunc("/api/autocomplete", app.autocompleteHandler).Methods("POST")

	router.HandleFunc("/api/send-message", app.sendMessageHandler).Methods("POST")
	router.Handle("/admin/messages", middleware.RequireAdmin(app.Auth, app.Proxies)(http.HandlerFunc(app.adminMessagesHandler))).Methods("GET")
	router.HandleFunc("/api/admin/login", app.loginHandler).Methods("POST")
	router.HandleFunc("/api/admin/logout", app.logoutHandler).Methods("POST")

	router.HandleFunc("/api/guestbook/upload", app.uploadHandler).Methods("POST")
	router.HandleFunc("/api/guestbook/photos", app.photosHandler).Methods("GET")
	router.HandleFunc("/api/guestbook/image/{id}", app.imageHandler).Methods("GET")
	router.Handle("/api/guestbook/delete/{id}", middleware.DetectAdmin(app.Auth, app.Proxies)(http.HandlerFunc(app.deleteHandler))).Methods("DELETE")
	router.Handle("/api/guestbook/stream", app.Stream).Methods("GET")

	// CORS wraps the router so preflight requests never reach method matching
	var handler http.Handler = router
	handler = middleware.CORS(middleware.DefaultCORS)(handler)
	handler = middleware.Logging(app.log)(handler)
	handler = middleware.Recovery(app.log)(handler)
	return handler
}

// healthzHandler handles the /healthz endpoint
func (app *App) healthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"stream_clients": app.Hub.Len(),
	})
}

type shellRequest struct {
	Command   string `json:"command"`
	Partial   string `json:"partial"`
	SessionID string `json:"session_id"`
}

// sessionHandler starts a new terminal session
func (app *App) sessionHandler(w http.ResponseWriter, r *http.Request) {
	id, sh := app.Shells.New()
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": id,
		"prompt":     sh.Prompt(),
	})
}

// executeHandler runs one command line in a terminal session
func (app *App) executeHandler(w http.ResponseWriter, r *http.Request) {
	var req shellRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, app.Shells.Get(req.SessionID).Execute(req.Command))
}

// autocompleteHandler completes a partial name in the session's directory
func (app *App) autocompleteHandler(w http.ResponseWriter, r *http.Request) {
	var req shellRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusOK, map[string][]string{"completions": {}})
		return
	}
	completions := app.Shells.Get(req.SessionID).Complete(req.Partial)
	if completions == nil {
		completions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"completions": completions})
}

// sendMessageHandler stores an anonymous message
func (app *App) sendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, err := app.Messages.Append(req.Message); err != nil {
		if errors.Is(err, messages.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, "Message cannot be empty")
			return
		}
		app.log.Error().Err(err).Msg("failed to store message")
		writeError(w, http.StatusInternalServerError, "Failed to store message")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// adminMessagesHandler renders every stored message
func (app *App) adminMessagesHandler(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := messages.RenderAdminPage(&buf, app.Messages.List()); err != nil {
		app.log.Error().Err(err).Msg("failed to render messages page")
		http.Error(w, "Failed to render messages", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// loginHandler exchanges the admin key for a token
func (app *App) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, expires, err := app.Auth.Login(app.Proxies.ClientIP(r), req.Key)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"token":      token,
			"expires_at": expires.UTC().Format(time.RFC3339),
		})
	case errors.Is(err, auth.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, "Admin access is disabled")
	case errors.Is(err, auth.ErrRateLimitExceeded):
		writeError(w, http.StatusTooManyRequests, "Too many attempts")
	default:
		writeError(w, http.StatusUnauthorized, "Invalid admin key")
	}
}

// logoutHandler revokes the bearer token of the request
func (app *App) logoutHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if _, err := app.Auth.ValidateToken(token); err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	app.Auth.RevokeToken(token)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// uploadHandler handles the /api/guestbook/upload endpoint
func (app *App) uploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.Config.GuestbookMaxUploadBytes)

	var req guestbook.UploadRequest
	if err := decodeJSON(r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Image is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rec, err := app.Guestbook.Upload(r.Context(), req)
	if err != nil {
		if errors.Is(err, guestbook.ErrInvalidImage) {
			writeError(w, http.StatusBadRequest, "Invalid image")
			return
		}
		app.log.Error().Err(err).Msg("failed to upload photo")
		writeError(w, http.StatusInternalServerError, "Failed to save photo")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "photo": rec})
}

// photosHandler lists every guestbook photo, newest first
func (app *App) photosHandler(w http.ResponseWriter, r *http.Request) {
	photos, err := app.Guestbook.List(r.Context())
	if err != nil {
		app.log.Error().Err(err).Msg("failed to list photos")
		writeError(w, http.StatusInternalServerError, "Failed to load photos")
		return
	}
	if photos == nil {
		photos = []photo.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"photos": photos})
}

// imageHandler handles the /api/guestbook/image/{id} endpoint
func (app *App) imageHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	img, err := app.Guestbook.Image(r.Context(), id)
	if err != nil {
		if errors.Is(err, guestbook.ErrNotFound) || errors.Is(err, storage.ErrObjectNotFound) {
			http.Error(w, "Photo not found", http.StatusNotFound)
			return
		}
		app.log.Error().Err(err).Str("photo_id", id).Msg("failed to get image")
		http.Error(w, "Failed to get photo", http.StatusInternalServerError)
		return
	}
	defer img.Body.Close()

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if img.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(img.ContentLength, 10))
	}

	// Stream the object to the response
	if _, err := io.Copy(w, img.Body); err != nil {
		app.log.Debug().Err(err).Str("photo_id", id).Msg("failed to stream image")
	}
}

// deleteHandler removes a photo owned by the caller, or any photo for admins
func (app *App) deleteHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		VisitorID string `json:"visitor_id"`
	}
	// The body is optional for admins
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := app.Guestbook.Delete(r.Context(), id, req.VisitorID, middleware.IsAdmin(r.Context()))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, guestbook.ErrNotFound):
		writeError(w, http.StatusNotFound, "Photo not found")
	case errors.Is(err, guestbook.ErrForbidden):
		writeError(w, http.StatusForbidden, "You can only delete your own photos")
	default:
		app.log.Error().Err(err).Str("photo_id", id).Msg("failed to delete photo")
		writeError(w, http.StatusInternalServerError, "Failed to delete photo")
	}
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", false
	}
	return header[len(prefix):], true
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
