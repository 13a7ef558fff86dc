// Package stream serves guestbook events to browsers over Server-Sent Events.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/ttsudarshan/portfolio/hub"
)

// DefaultHeartbeat is how long a session waits for an event before writing a heartbeat.
const DefaultHeartbeat = 30 * time.Second

// Transport is the client connection a session writes frames to.
type Transport interface {
	io.Writer
	Flush() error
}

// Session owns one client connection and its outbox.
//
// It registers a fresh outbox, writes the connected frame, then alternates
// between forwarding queued frames and writing heartbeats until the context
// ends or a write fails. The outbox is unregistered on every exit path.
type Session struct {
	hub       *hub.Hub
	out       Transport
	heartbeat time.Duration
	log       zerolog.Logger
}

// NewSession creates a session writing to out. A non-positive heartbeat selects DefaultHeartbeat.
func NewSession(h *hub.Hub, out Transport, heartbeat time.Duration, log zerolog.Logger) *Session {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &Session{
		hub:       h,
		out:       out,
		heartbeat: heartbeat,
		log:       log,
	}
}

// Run streams until ctx is done or the transport fails, and returns the reason.
func (s *Session) Run(ctx context.Context) error {
	o := s.hub.NewOutbox()
	s.hub.Register(o)
	defer s.hub.Unregister(o)

	log := s.log.With().Uint64("outbox_id", o.ID()).Logger()
	log.Debug().Msg("stream session connected")

	if err := s.write(ConnectedFrame()); err != nil {
		log.Debug().Err(err).Msg("stream session closed")
		return err
	}

	for {
		msg, err := o.Dequeue(ctx, s.heartbeat)
		switch {
		case errors.Is(err, hub.ErrTimeout):
			msg = Heartbeat
		case err != nil:
			log.Debug().Err(err).Msg("stream session disconnected")
			return err
		}

		if err := s.write(msg); err != nil {
			log.Debug().Err(err).Msg("stream session closed")
			return err
		}
	}
}

func (s *Session) write(frame string) error {
	if _, err := io.WriteString(s.out, frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := s.out.Flush(); err != nil {
		return fmt.Errorf("failed to flush frame: %w", err)
	}
	return nil
}
