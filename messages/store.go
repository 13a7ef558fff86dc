// Package messages keeps the anonymous message log in a JSON file.
package messages

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ttsudarshan/portfolio/logger"
)

// DefaultMax is how many messages are kept before the oldest are discarded.
const DefaultMax = 1000

// ErrEmptyMessage is returned when the message has no text.
var ErrEmptyMessage = errors.New("message cannot be empty")

// timestamp layouts accepted when reading the file, newest format first
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// Message is one anonymous message.
type Message struct {
	ID        int    `json:"id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Time parses Timestamp. The zero time is returned when it cannot be parsed.
func (m Message) Time() time.Time {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, m.Timestamp); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Store appends to and reads from the message file.
type Store struct {
	mu   sync.Mutex
	path string
	max  int
	now  func() time.Time
	log  zerolog.Logger
}

// NewStore creates a store backed by path keeping at most max messages.
func NewStore(path string, max int) *Store {
	if max <= 0 {
		max = DefaultMax
	}
	return &Store{
		path: path,
		max:  max,
		now:  time.Now,
		log:  logger.Component("messages"),
	}
}

// Append records text and returns the stored message.
func (s *Store) Append(text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.loadLocked()

	nextID := 1
	for _, m := range msgs {
		if m.ID >= nextID {
			nextID = m.ID + 1
		}
	}

	msg := Message{
		ID:        nextID,
		Message:   text,
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
	}
	msgs = append(msgs, msg)
	if len(msgs) > s.max {
		msgs = msgs[len(msgs)-s.max:]
	}

	if err := s.saveLocked(msgs); err != nil {
		return Message{}, err
	}

	s.log.Info().Int("message_id", msg.ID).Int("total", len(msgs)).Msg("message received")
	return msg, nil
}

// List returns every stored message, newest first.
func (s *Store) List() []Message {
	s.mu.Lock()
	msgs := s.loadLocked()
	s.mu.Unlock()

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Time().After(msgs[j].Time())
	})
	return msgs
}

// loadLocked reads the file. A missing or unreadable file is an empty log.
func (s *Store) loadLocked() []Message {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Message{}
	}
	if err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("failed to read messages file")
		return []Message{}
	}

	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("messages file is corrupt, starting empty")
		return []Message{}
	}
	return msgs
}

func (s *Store) saveLocked(msgs []Message) error {
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create messages dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write messages temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace messages file: %w", err)
	}
	return nil
}
