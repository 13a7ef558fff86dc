package stream

import (
	"encoding/json"
	"fmt"
)

// Event types written on the guestbook stream.
const (
	EventConnected   = "connected"
	EventNewPhoto    = "new_photo"
	EventDeletePhoto = "delete_photo"
)

// Heartbeat is the comment frame written when the stream has been idle.
const Heartbeat = ": heartbeat\n\n"

var connectedFrame = mustFrame(EventConnected, map[string]string{"status": "connected"})

// Frame encodes payload as JSON and wraps it in a named event frame.
func Frame(eventType string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	return FrameData(eventType, data), nil
}

// FrameData wraps already encoded JSON in a named event frame.
func FrameData(eventType string, data []byte) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, data)
}

// ConnectedFrame returns the frame sent once when a session starts.
func ConnectedFrame() string {
	return connectedFrame
}

func mustFrame(eventType string, payload any) string {
	f, err := Frame(eventType, payload)
	if err != nil {
		panic(err)
	}
	return f
}
