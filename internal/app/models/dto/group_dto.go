package dto

import "time"

// --- Request DTOs ---

// CreateGroupRequest represents group creation data. The group row and its
// owner membership row are written in a single transaction.
type CreateGroupRequest struct {
	Name           string `json:"name" binding:"required"`
	Description    string `json:"description"`
	IsPrivate      bool   `json:"isPrivate"`
	AllowAllPhotos bool   `json:"allowAllPhotos"`
}

// UpdateGroupRequest represents group metadata update data
type UpdateGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// ExploreFilterRequest represents filter parameters for the public listing
type ExploreFilterRequest struct {
	Search *string `form:"search,omitempty"`
	Limit  int     `form:"limit,default=20" binding:"min=1,max=50"`
}

// --- Response DTOs ---

// GroupResponse represents basic group information
type GroupResponse struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description,omitempty"`
	ImageURL       *string   `json:"imageUrl,omitempty"`
	IsPrivate      bool      `json:"isPrivate"`
	AllowAllPhotos bool      `json:"allowAllPhotos"`
	CreatedBy      int64     `json:"createdBy"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ExploreGroupResponse decorates a public group with listing extras
type ExploreGroupResponse struct {
	GroupResponse
	MemberCount int    `json:"memberCount"`
	OwnerName   string `json:"ownerName"`
}

// MembershipResponse represents the viewer's relationship to a group:
// "owner", "member" or "none".
type MembershipResponse struct {
	Role     string     `json:"role"`
	JoinedAt *time.Time `json:"joinedAt,omitempty"`
}

// GroupDetailResponse extends GroupResponse with the viewer's membership
// and the member count.
type GroupDetailResponse struct {
	GroupResponse
	MemberCount int                `json:"memberCount"`
	Viewer      MembershipResponse `json:"viewer"`
}

// GroupMemberResponse represents one member of a group with the display
// data resolved from their profile
type GroupMemberResponse struct {
	UserID   int64     `json:"userId"`
	Name     string    `json:"name"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// GroupMemberListResponse represents a group's member list
type GroupMemberListResponse struct {
	Members []GroupMemberResponse `json:"members"`
}

// GroupListResponse represents a list of groups
type GroupListResponse struct {
	Groups []GroupResponse `json:"groups"`
}

// ExploreListResponse represents the public group listing
type ExploreListResponse struct {
	Groups []ExploreGroupResponse `json:"groups"`
}

// CreateGroupResponse carries the identifier of a freshly created group
type CreateGroupResponse struct {
	GroupID int64 `json:"groupId"`
}

// JoinGroupResponse reports a join, including the idempotent already-joined case
type JoinGroupResponse struct {
	GroupID       int64  `json:"groupId"`
	Role          string `json:"role"`
	AlreadyJoined bool   `json:"alreadyJoined"`
}
