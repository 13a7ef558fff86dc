package stream

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ttsudarshan/portfolio/hub"
	"github.com/ttsudarshan/portfolio/logger"
)

// Handler serves GET /api/guestbook/stream.
type Handler struct {
	hub       *hub.Hub
	heartbeat time.Duration
	shutdown  context.Context
	log       zerolog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHeartbeat sets the idle interval after which a heartbeat is written.
func WithHeartbeat(d time.Duration) HandlerOption {
	return func(h *Handler) {
		h.heartbeat = d
	}
}

// WithShutdown ends every session when ctx is canceled.
func WithShutdown(ctx context.Context) HandlerOption {
	return func(h *Handler) {
		h.shutdown = ctx
	}
}

// WithLogger sets the handler logger.
func WithLogger(l zerolog.Logger) HandlerOption {
	return func(h *Handler) {
		h.log = l
	}
}

// NewHandler creates a stream handler backed by h.
func NewHandler(h *hub.Hub, opts ...HandlerOption) *Handler {
	handler := &Handler{
		hub:       h,
		heartbeat: DefaultHeartbeat,
		shutdown:  context.Background(),
		log:       logger.Component("stream"),
	}
	for _, opt := range opts {
		opt(handler)
	}
	return handler
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	// Sessions are long-lived; the server WriteTimeout must not cut them off.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.log.Warn().Err(err).Msg("could not disable write deadline")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.shutdown, cancel)
	defer stop()

	log := h.log.With().Str("remote_addr", r.RemoteAddr).Logger()
	session := NewSession(h.hub, &responseTransport{w: w, rc: rc}, h.heartbeat, log)
	_ = session.Run(ctx)
}

type responseTransport struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func (t *responseTransport) Write(p []byte) (int, error) {
	return t.w.Write(p)
}

func (t *responseTransport) Flush() error {
	return t.rc.Flush()
}
