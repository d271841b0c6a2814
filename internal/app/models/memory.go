package models

import "time"

// Memory is a single photo-backed post inside a group. The image URL is
// immutable once set; memories are only ever created and deleted.
type Memory struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	ImageURL    string    `json:"imageUrl" db:"image_url"`
	GroupID     int64     `json:"groupId" db:"group_id"`
	CreatedBy   int64     `json:"createdBy" db:"created_by"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`

	// Related entities
	Author *Profile `json:"author,omitempty"`
}
