package models

import (
	"time"
)

// User defines the user model based on the 'users' table
type User struct {
	ID            int64      `json:"id" db:"id" example:"1"`                                                  // Unique identifier for the user
	Email         string     `json:"email" db:"email" example:"ana@example.com"`                              // User's email address
	Password      string     `json:"-" db:"password"`                                                         // User's hashed password (excluded from JSON)
	IsActive      bool       `json:"isActive" db:"is_active" example:"true"`                                  // Whether the user account is active
	EmailVerified bool       `json:"emailVerified" db:"email_verified" example:"true"`                        // Whether the user confirmed their email
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at" example:"2024-04-20T18:00:00Z"` // Timestamp of the last login (nullable)
	CreatedAt     time.Time  `json:"createdAt" db:"created_at" example:"2024-01-01T10:00:00Z"`                // Timestamp when the user was created
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at" example:"2024-01-02T15:30:00Z"`                // Timestamp when the user was last updated

	Profile *Profile `json:"profile,omitempty"` // Relation, no db tag
}

// Profile defines the public-facing profile written alongside a user account.
// The row is written best-effort at signup and may be absent.
type Profile struct {
	UserID    int64     `json:"userId" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Username  string    `json:"username" db:"username"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
