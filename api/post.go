package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// Post is the JSON representation of a blog post
type Post struct {
	ID          string     `json:"id"`
	LegacyID    string     `json:"_id,omitempty"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Author      string     `json:"author"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
	ImageURL    *string    `json:"imageUrl"`
	PublishDate *time.Time `json:"publishDate,omitempty"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	Excerpt     string     `json:"excerpt,omitempty"`
}

// PostProto is the JSON carried in the "post" form field of an update.
// An absent or null imageUrl keeps the current image; "" removes it.
type PostProto struct {
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Author      string     `json:"author"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
	ImageURL    *string    `json:"imageUrl"`
	PublishDate *Date      `json:"publishDate"`
	Version     int64      `json:"version"`
}

// Date accepts RFC3339 timestamps as well as the bare YYYY-MM-DD value of an HTML date input.
// An empty string decodes to the zero time.
type Date struct {
	time.Time
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02"}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid date %q: want RFC3339 or YYYY-MM-DD", s)
}

// Ptr returns nil for an absent or empty date
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

// CreatedResponse wraps a newly created post
type CreatedResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    Post   `json:"data"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is returned for every failed request. Fields lists missing inputs when known.
type ErrorResponse struct {
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}
