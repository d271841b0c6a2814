package models

import "time"

// MemberRole tags a membership row as owner or regular member.
type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleMember MemberRole = "member"
)

// Group represents a named collection of memories owned by its creator
type Group struct {
	ID             int64     `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Description    *string   `json:"description,omitempty" db:"description"`
	ImageURL       *string   `json:"imageUrl,omitempty" db:"image_url"`
	IsPrivate      bool      `json:"isPrivate" db:"is_private"`
	AllowAllPhotos bool      `json:"allowAllPhotos" db:"allow_all_photos"`
	CreatedBy      int64     `json:"createdBy" db:"created_by"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`

	// Related entities
	Owner       *User         `json:"owner,omitempty"`
	Members     []*Membership `json:"members,omitempty"`
	MemberCount int           `json:"memberCount,omitempty"`
}

// Membership represents a user belonging to a group.
// At most one row exists per (group, user) pair.
type Membership struct {
	ID       int64      `json:"id" db:"id"`
	GroupID  int64      `json:"groupId" db:"group_id"`
	UserID   int64      `json:"userId" db:"user_id"`
	Role     MemberRole `json:"role" db:"role"`
	JoinedAt time.Time  `json:"joinedAt" db:"joined_at"`

	// Related entities
	User *User `json:"user,omitempty"`
}
