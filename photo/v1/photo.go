package photo

import "time"

// Record is a guestbook photo as stored in the database and sent to clients.
type Record struct {
	ID          string    `json:"id"`
	VisitorName string    `json:"visitor_name"`
	VisitorID   string    `json:"visitor_id"`
	ImageURL    string    `json:"image_url"`
	Filename    string    `json:"filename"`
	CreatedAt   time.Time `json:"created_at"`
}

// Deleted is the payload announced when a photo is removed.
type Deleted struct {
	ID string `json:"id"`
}
