package dto

import "time"

// ProfileResponse represents a user's public profile
type ProfileResponse struct {
	UserID    int64     `json:"userId"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Phone     *string   `json:"phone,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UpdateProfileRequest updates profile metadata
type UpdateProfileRequest struct {
	Name     string `json:"name" binding:"required"`
	Username string `json:"username" binding:"required"`
	Phone    string `json:"phone"`
}

// UsernameAvailabilityResponse reports whether a username is free
type UsernameAvailabilityResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}
