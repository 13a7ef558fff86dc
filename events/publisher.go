// Package events announces guestbook changes to connected stream sessions.
package events

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/ttsudarshan/portfolio/logger"
	photo "github.com/ttsudarshan/portfolio/photo/v1"
	"github.com/ttsudarshan/portfolio/stream"
)

// Event is a guestbook change that stream clients are told about.
type Event interface {
	// Type is the stream event name.
	Type() string
	// Payload is encoded as the frame data.
	Payload() any
}

// NewPhoto is announced after a photo record has been stored.
type NewPhoto struct {
	Photo photo.Record
}

func (NewPhoto) Type() string   { return stream.EventNewPhoto }
func (e NewPhoto) Payload() any { return e.Photo }

// DeletedPhoto is announced after a photo and its image have been removed.
type DeletedPhoto struct {
	ID string
}

func (DeletedPhoto) Type() string   { return stream.EventDeletePhoto }
func (e DeletedPhoto) Payload() any { return photo.Deleted{ID: e.ID} }

// Broadcaster fans a frame out to every connected session.
type Broadcaster interface {
	Broadcast(msg string) int
}

// Sink receives every published event after the local broadcast.
type Sink interface {
	Send(ctx context.Context, eventType string, data []byte) error
}

// Publisher turns events into stream frames and broadcasts them.
type Publisher struct {
	hub  Broadcaster
	sink Sink
	log  zerolog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithSink mirrors published events to s.
func WithSink(s Sink) Option {
	return func(p *Publisher) {
		p.sink = s
	}
}

// WithLogger sets the publisher logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Publisher) {
		p.log = l
	}
}

// NewPublisher creates a publisher broadcasting through b.
func NewPublisher(b Broadcaster, opts ...Option) *Publisher {
	p := &Publisher{
		hub: b,
		log: logger.Component("events"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishNewPhoto announces a stored photo.
func (p *Publisher) PublishNewPhoto(ctx context.Context, rec photo.Record) {
	p.Publish(ctx, NewPhoto{Photo: rec})
}

// PublishDeletedPhoto announces a removed photo.
func (p *Publisher) PublishDeletedPhoto(ctx context.Context, id string) {
	p.Publish(ctx, DeletedPhoto{ID: id})
}

// Publish broadcasts e to every connected session and then hands it to the sink.
// Failures are logged; the caller's mutation has already succeeded. The sink
// is not canceled with ctx, so a client hanging up after a committed upload
// or delete does not lose the mirrored event.
func (p *Publisher) Publish(ctx context.Context, e Event) {
	data, err := json.Marshal(e.Payload())
	if err != nil {
		p.log.Error().Err(err).Str("event", e.Type()).Msg("failed to encode event")
		return
	}

	delivered := p.hub.Broadcast(stream.FrameData(e.Type(), data))
	p.log.Info().Str("event", e.Type()).Int("delivered", delivered).Msg("event published")

	if p.sink == nil {
		return
	}
	if err := p.sink.Send(context.WithoutCancel(ctx), e.Type(), data); err != nil {
		p.log.Warn().Err(err).Str("event", e.Type()).Msg("failed to mirror event")
	}
}
