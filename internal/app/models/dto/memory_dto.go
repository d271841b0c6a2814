package dto

import "time"

// CreateMemoryRequest carries the text shared by every memory in one
// submission. Images arrive as multipart files alongside it.
type CreateMemoryRequest struct {
	Title       string `form:"title" binding:"required"`
	Description string `form:"description"`
}

// MemoryResponse represents a single photo post
type MemoryResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	GroupID     int64     `json:"groupId"`
	CreatedBy   int64     `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MemoryListResponse represents a group's memory feed, newest first
type MemoryListResponse struct {
	Memories []MemoryResponse `json:"memories"`
}
