package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/memoria-app/memoria/internal/app/models"
	"github.com/memoria-app/memoria/internal/app/models/dto"
	"github.com/memoria-app/memoria/internal/app/repositories"
	"github.com/memoria-app/memoria/internal/pkg/apperrors"
	"github.com/memoria-app/memoria/internal/pkg/cache"
	"github.com/memoria-app/memoria/internal/pkg/filestorage"
	"github.com/memoria-app/memoria/internal/pkg/realtime"
)

const (
	exploreCachePrefix = "groups:explore:"
	exploreCacheTTL    = 30 * time.Second
)

// EventPublisher pushes group change events to subscribed clients
type EventPublisher interface {
	Publish(eventType string, groupID, actorID int64)
}

// GroupService defines the interface for group operations
type GroupService interface {
	ListMine(ctx context.Context, userID int64) (*dto.GroupListResponse, error)
	Explore(ctx context.Context, filter *dto.ExploreFilterRequest) (*dto.ExploreListResponse, error)
	Create(ctx context.Context, userID int64, req *dto.CreateGroupRequest) (*dto.CreateGroupResponse, error)
	Get(ctx context.Context, groupID, viewerID int64) (*dto.GroupDetailResponse, error)
	Update(ctx context.Context, groupID, userID int64, req *dto.UpdateGroupRequest) (*dto.GroupResponse, error)
	UpdateCover(ctx context.Context, groupID, userID int64, fileHeader *multipart.FileHeader) (*dto.GroupResponse, error)
	Join(ctx context.Context, groupID, userID int64) (*dto.JoinGroupResponse, error)
	Leave(ctx context.Context, groupID, userID int64) error
	ListMembers(ctx context.Context, groupID, viewerID int64) (*dto.GroupMemberListResponse, error)
}

// groupServiceImpl implements GroupService
type groupServiceImpl struct {
	groupRepo      repositories.IGroupRepository
	membershipRepo repositories.IMembershipRepository
	profileRepo    repositories.IProfileRepository
	fileStorage    filestorage.FileStorage
	cache          *cache.Cache
	publisher      EventPublisher
	logger         zerolog.Logger
}

// NewGroupService creates a new GroupService. cache may be nil when Redis
// is disabled; publisher may be nil when no hub is running.
func NewGroupService(
	groupRepo repositories.IGroupRepository,
	membershipRepo repositories.IMembershipRepository,
	profileRepo repositories.IProfileRepository,
	fileStorage filestorage.FileStorage,
	exploreCache *cache.Cache,
	publisher EventPublisher,
	logger zerolog.Logger,
) GroupService {
	return &groupServiceImpl{
		groupRepo:      groupRepo,
		membershipRepo: membershipRepo,
		profileRepo:    profileRepo,
		fileStorage:    fileStorage,
		cache:          exploreCache,
		publisher:      publisher,
		logger:         logger,
	}
}

// ListMine retrieves every group the user created or joined, newest first
func (s *groupServiceImpl) ListMine(ctx context.Context, userID int64) (*dto.GroupListResponse, error) {
	groups, err := s.groupRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.GroupResponse, 0, len(groups))
	for _, group := range groups {
		responses = append(responses, toGroupResponse(group))
	}

	return &dto.GroupListResponse{Groups: responses}, nil
}

// Explore retrieves the public group directory with member counts and
// owner names. Unfiltered pages are served from Redis when available.
func (s *groupServiceImpl) Explore(ctx context.Context, filter *dto.ExploreFilterRequest) (*dto.ExploreListResponse, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	cacheable := s.cache != nil && (filter.Search == nil || *filter.Search == "")
	cacheKey := exploreCachePrefix + "limit=" + strconv.Itoa(limit)

	if cacheable {
		var cached dto.ExploreListResponse
		err := s.cache.GetJSON(ctx, cacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Msg("Explore cache read failed")
		}
	}

	groups, err := s.groupRepo.ListPublic(ctx, filter.Search, limit)
	if err != nil {
		return nil, err
	}

	groupIDs := make([]int64, 0, len(groups))
	ownerIDs := make([]int64, 0, len(groups))
	for _, group := range groups {
		groupIDs = append(groupIDs, group.ID)
		ownerIDs = append(ownerIDs, group.CreatedBy)
	}

	counts, err := s.membershipRepo.CountByGroupIDs(ctx, groupIDs)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load member counts for explore listing")
		counts = map[int64]int{}
	}

	owners, err := s.profileRepo.GetByUserIDs(ctx, ownerIDs)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load owner profiles for explore listing")
		owners = map[int64]*models.Profile{}
	}

	responses := make([]dto.ExploreGroupResponse, 0, len(groups))
	for _, group := range groups {
		ownerName := ""
		if owner, ok := owners[group.CreatedBy]; ok {
			ownerName = owner.Name
		}
		responses = append(responses, dto.ExploreGroupResponse{
			GroupResponse: toGroupResponse(group),
			MemberCount:   counts[group.ID],
			OwnerName:     ownerName,
		})
	}

	result := &dto.ExploreListResponse{Groups: responses}

	if cacheable {
		if err := s.cache.SetJSON(ctx, cacheKey, result, exploreCacheTTL); err != nil {
			s.logger.Warn().Err(err).Msg("Explore cache write failed")
		}
	}

	return result, nil
}

// Create inserts the group together with its owner membership
func (s *groupServiceImpl) Create(ctx context.Context, userID int64, req *dto.CreateGroupRequest) (*dto.CreateGroupResponse, error) {
	group := &models.Group{
		Name:           req.Name,
		IsPrivate:      req.IsPrivate,
		AllowAllPhotos: req.AllowAllPhotos,
		CreatedBy:      userID,
	}
	if req.Description != "" {
		group.Description = &req.Description
	}

	if err := s.groupRepo.CreateWithOwner(ctx, group); err != nil {
		return nil, err
	}

	s.invalidateExploreCache(ctx)
	s.publish(realtime.EventGroupCreated, group.ID, userID)

	s.logger.Info().
		Int64("groupID", group.ID).
		Int64("userID", userID).
		Msg("Group created")

	return &dto.CreateGroupResponse{GroupID: group.ID}, nil
}

// Get retrieves a group with the viewer's relationship to it. If the
// viewer created the group but has no membership row, the owner row is
// restored before answering.
func (s *groupServiceImpl) Get(ctx context.Context, groupID, viewerID int64) (*dto.GroupDetailResponse, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	membership, err := s.membershipRepo.GetByGroupAndUser(ctx, groupID, viewerID)
	if err != nil && !errors.Is(err, apperrors.ErrNotGroupMember) {
		return nil, err
	}

	if membership == nil && group.CreatedBy == viewerID {
		membership, err = s.restoreOwnerMembership(ctx, group, viewerID)
		if err != nil {
			return nil, err
		}
	}

	counts, err := s.membershipRepo.CountByGroupIDs(ctx, []int64{groupID})
	if err != nil {
		return nil, err
	}

	viewer := dto.MembershipResponse{Role: "none"}
	if membership != nil {
		viewer.Role = string(membership.Role)
		joinedAt := membership.JoinedAt
		viewer.JoinedAt = &joinedAt
	}

	return &dto.GroupDetailResponse{
		GroupResponse: toGroupResponse(group),
		MemberCount:   counts[groupID],
		Viewer:        viewer,
	}, nil
}

// Update modifies group metadata. Creator-only.
func (s *groupServiceImpl) Update(ctx context.Context, groupID, userID int64, req *dto.UpdateGroupRequest) (*dto.GroupResponse, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if group.CreatedBy != userID {
		return nil, apperrors.ErrNotGroupOwner
	}

	group.Name = req.Name
	if req.Description != "" {
		group.Description = &req.Description
	} else {
		group.Description = nil
	}

	if err := s.groupRepo.Update(ctx, group); err != nil {
		return nil, err
	}

	s.invalidateExploreCache(ctx)
	s.publish(realtime.EventGroupUpdated, groupID, userID)

	updated, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	response := toGroupResponse(updated)
	return &response, nil
}

// UpdateCover uploads a new cover image and persists its URL. Creator-only.
func (s *groupServiceImpl) UpdateCover(ctx context.Context, groupID, userID int64, fileHeader *multipart.FileHeader) (*dto.GroupResponse, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if group.CreatedBy != userID {
		return nil, apperrors.ErrNotGroupOwner
	}

	// The cover flow predates the atomic create path; repair memberships
	// created before it existed.
	if _, merr := s.membershipRepo.GetByGroupAndUser(ctx, groupID, userID); merr != nil {
		if !errors.Is(merr, apperrors.ErrNotGroupMember) {
			return nil, merr
		}
		if _, rerr := s.restoreOwnerMembership(ctx, group, userID); rerr != nil {
			return nil, rerr
		}
	}

	fileURL, err := s.fileStorage.Save(filestorage.BucketGroupCovers, strconv.FormatInt(groupID, 10), fileHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to store cover image: %w", err)
	}

	if err := s.groupRepo.UpdateCoverImage(ctx, groupID, fileURL); err != nil {
		// The row write failed; don't leave the uploaded file behind
		if derr := s.fileStorage.Delete(fileURL); derr != nil {
			s.logger.Warn().Err(derr).Str("fileURL", fileURL).Msg("Failed to clean up orphaned cover image")
		}
		return nil, err
	}

	if group.ImageURL != nil {
		if err := s.fileStorage.Delete(*group.ImageURL); err != nil {
			s.logger.Warn().Err(err).Str("fileURL", *group.ImageURL).Msg("Failed to delete previous cover image")
		}
	}

	s.invalidateExploreCache(ctx)
	s.publish(realtime.EventGroupUpdated, groupID, userID)

	updated, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	response := toGroupResponse(updated)
	return &response, nil
}

// Join adds the user as a member. Joining a group twice reports
// already-joined instead of failing, including under insert races.
func (s *groupServiceImpl) Join(ctx context.Context, groupID, userID int64) (*dto.JoinGroupResponse, error) {
	if _, err := s.groupRepo.GetByID(ctx, groupID); err != nil {
		return nil, err
	}

	existing, err := s.membershipRepo.GetByGroupAndUser(ctx, groupID, userID)
	if err == nil {
		return &dto.JoinGroupResponse{
			GroupID:       groupID,
			Role:          string(existing.Role),
			AlreadyJoined: true,
		}, nil
	}
	if !errors.Is(err, apperrors.ErrNotGroupMember) {
		return nil, err
	}

	membership := &models.Membership{
		GroupID: groupID,
		UserID:  userID,
		Role:    models.RoleMember,
	}
	if err := s.membershipRepo.Add(ctx, membership); err != nil {
		if errors.Is(err, apperrors.ErrResourceAlreadyExists) {
			// Lost a race against a concurrent join of the same pair
			return &dto.JoinGroupResponse{
				GroupID:       groupID,
				Role:          string(models.RoleMember),
				AlreadyJoined: true,
			}, nil
		}
		return nil, err
	}

	// Explore rows embed member counts, so membership changes stale them
	s.invalidateExploreCache(ctx)
	s.publish(realtime.EventMemberJoined, groupID, userID)

	s.logger.Info().
		Int64("groupID", groupID).
		Int64("userID", userID).
		Msg("User joined group")

	return &dto.JoinGroupResponse{
		GroupID: groupID,
		Role:    string(models.RoleMember),
	}, nil
}

// Leave removes the user's membership row. The group and its memories
// stay untouched.
func (s *groupServiceImpl) Leave(ctx context.Context, groupID, userID int64) error {
	if err := s.membershipRepo.Remove(ctx, groupID, userID); err != nil {
		return err
	}

	s.invalidateExploreCache(ctx)
	s.publish(realtime.EventMemberLeft, groupID, userID)

	s.logger.Info().
		Int64("groupID", groupID).
		Int64("userID", userID).
		Msg("User left group")

	return nil
}

// ListMembers retrieves a group's members, oldest first, with names
// resolved from profiles. Private groups show their roster to members only.
func (s *groupServiceImpl) ListMembers(ctx context.Context, groupID, viewerID int64) (*dto.GroupMemberListResponse, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if group.IsPrivate && group.CreatedBy != viewerID {
		isMember, err := s.membershipRepo.IsMember(ctx, groupID, viewerID)
		if err != nil {
			return nil, err
		}
		if !isMember {
			return nil, apperrors.ErrNotGroupMember
		}
	}

	memberships, err := s.membershipRepo.ListByGroupID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	userIDs := make([]int64, 0, len(memberships))
	for _, membership := range memberships {
		userIDs = append(userIDs, membership.UserID)
	}

	profiles, err := s.profileRepo.GetByUserIDs(ctx, userIDs)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load member profiles")
		profiles = map[int64]*models.Profile{}
	}

	members := make([]dto.GroupMemberResponse, 0, len(memberships))
	for _, membership := range memberships {
		member := dto.GroupMemberResponse{
			UserID:   membership.UserID,
			Role:     string(membership.Role),
			JoinedAt: membership.JoinedAt,
		}
		if profile, ok := profiles[membership.UserID]; ok {
			member.Name = profile.Name
			member.Username = profile.Username
		}
		members = append(members, member)
	}

	return &dto.GroupMemberListResponse{Members: members}, nil
}

// restoreOwnerMembership re-inserts the creator's owner row for groups
// whose membership was lost before the create path became transactional
func (s *groupServiceImpl) restoreOwnerMembership(ctx context.Context, group *models.Group, userID int64) (*models.Membership, error) {
	membership := &models.Membership{
		GroupID: group.ID,
		UserID:  userID,
		Role:    models.RoleOwner,
	}
	if err := s.membershipRepo.Add(ctx, membership); err != nil {
		if errors.Is(err, apperrors.ErrResourceAlreadyExists) {
			return s.membershipRepo.GetByGroupAndUser(ctx, group.ID, userID)
		}
		return nil, err
	}

	s.logger.Warn().
		Int64("groupID", group.ID).
		Int64("userID", userID).
		Msg("Restored missing owner membership")

	return membership, nil
}

func (s *groupServiceImpl) invalidateExploreCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPrefix(ctx, exploreCachePrefix); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to invalidate explore cache")
	}
}

func (s *groupServiceImpl) publish(eventType string, groupID, actorID int64) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(eventType, groupID, actorID)
}

func toGroupResponse(group *models.Group) dto.GroupResponse {
	return dto.GroupResponse{
		ID:             group.ID,
		Name:           group.Name,
		Description:    group.Description,
		ImageURL:       group.ImageURL,
		IsPrivate:      group.IsPrivate,
		AllowAllPhotos: group.AllowAllPhotos,
		CreatedBy:      group.CreatedBy,
		CreatedAt:      group.CreatedAt,
		UpdatedAt:      group.UpdatedAt,
	}
}
