package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSSink mirrors guestbook events to a JetStream stream, one subject per event type.
type NATSSink struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	prefix string
}

// ConnectNATS connects to url and ensures a stream covering "<prefix>.*" exists.
func ConnectNATS(ctx context.Context, url, prefix string) (*NATSSink, error) {
	nc, err := nats.Connect(url, nats.Name("portfolio-guestbook"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cfg := &nats.StreamConfig{
		Name:      strings.ToUpper(prefix),
		Subjects:  []string{prefix + ".*"},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	}
	if _, err := js.AddStream(cfg, nats.Context(ctx)); err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		nc.Close()
		return nil, fmt.Errorf("failed to create or update stream: %w", err)
	}

	return &NATSSink{nc: nc, js: js, prefix: prefix}, nil
}

// Subject returns the subject an event type is published on.
func (s *NATSSink) Subject(eventType string) string {
	return s.prefix + "." + eventType
}

// Send publishes data on the subject for eventType.
func (s *NATSSink) Send(ctx context.Context, eventType string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.js.Publish(s.Subject(eventType), data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Close drains the connection.
func (s *NATSSink) Close() error {
	return s.nc.Drain()
}
