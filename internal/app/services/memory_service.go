package services

import (
	"context"
	"mime/multipart"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/memoria-app/memoria/internal/app/models"
	"github.com/memoria-app/memoria/internal/app/models/dto"
	"github.com/memoria-app/memoria/internal/app/repositories"
	"github.com/memoria-app/memoria/internal/pkg/apperrors"
	"github.com/memoria-app/memoria/internal/pkg/filestorage"
)

const (
	memoryFeedLimit = 200

	// Title used when a photo is posted without any text
	quickMemoryTitle = "Nova memória"
)

// MemoryService defines the interface for memory feed operations
type MemoryService interface {
	List(ctx context.Context, groupID, viewerID int64) (*dto.MemoryListResponse, error)
	Create(ctx context.Context, groupID, userID int64, req *dto.CreateMemoryRequest, images []*multipart.FileHeader) (*dto.MemoryListResponse, error)
	QuickCreate(ctx context.Context, groupID, userID int64, image *multipart.FileHeader) (*dto.MemoryListResponse, error)
	Delete(ctx context.Context, memoryID, userID int64) error
}

// memoryServiceImpl implements MemoryService
type memoryServiceImpl struct {
	memoryRepo     repositories.IMemoryRepository
	groupRepo      repositories.IGroupRepository
	membershipRepo repositories.IMembershipRepository
	fileStorage    filestorage.FileStorage
	logger         zerolog.Logger
}

// NewMemoryService creates a new MemoryService
func NewMemoryService(
	memoryRepo repositories.IMemoryRepository,
	groupRepo repositories.IGroupRepository,
	membershipRepo repositories.IMembershipRepository,
	fileStorage filestorage.FileStorage,
	logger zerolog.Logger,
) MemoryService {
	return &memoryServiceImpl{
		memoryRepo:     memoryRepo,
		groupRepo:      groupRepo,
		membershipRepo: membershipRepo,
		fileStorage:    fileStorage,
		logger:         logger,
	}
}

// List retrieves a group's memory feed, newest first
func (s *memoryServiceImpl) List(ctx context.Context, groupID, viewerID int64) (*dto.MemoryListResponse, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if group.IsPrivate {
		if err := s.requireMembership(ctx, groupID, viewerID); err != nil {
			return nil, err
		}
	}

	memories, err := s.memoryRepo.ListByGroupID(ctx, groupID, memoryFeedLimit)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.MemoryResponse, 0, len(memories))
	for _, memory := range memories {
		responses = append(responses, toMemoryResponse(memory))
	}

	return &dto.MemoryListResponse{Memories: responses}, nil
}

// Create stores every uploaded image concurrently and inserts one memory
// row per image in a single batch, all sharing the submitted text.
// A submission without images is rejected before anything touches storage.
func (s *memoryServiceImpl) Create(ctx context.Context, groupID, userID int64, req *dto.CreateMemoryRequest, images []*multipart.FileHeader) (*dto.MemoryListResponse, error) {
	if len(images) == 0 {
		return nil, apperrors.ErrNoImages
	}

	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if err := s.requirePostPermission(ctx, group, userID); err != nil {
		return nil, err
	}

	fileURLs, err := s.storeImages(ctx, groupID, images)
	if err != nil {
		return nil, err
	}

	memories := make([]*models.Memory, 0, len(fileURLs))
	for _, fileURL := range fileURLs {
		memories = append(memories, &models.Memory{
			Title:       req.Title,
			Description: req.Description,
			ImageURL:    fileURL,
			GroupID:     groupID,
			CreatedBy:   userID,
		})
	}

	if err := s.memoryRepo.InsertBatch(ctx, memories); err != nil {
		// Stored files stay behind; log them so they can be swept later
		for _, fileURL := range fileURLs {
			s.logger.Warn().Str("fileURL", fileURL).Msg("Orphaned memory image after failed insert")
		}
		return nil, err
	}

	s.logger.Info().
		Int64("groupID", groupID).
		Int64("userID", userID).
		Int("imageCount", len(images)).
		Msg("Memories created")

	return s.List(ctx, groupID, userID)
}

// QuickCreate posts a single photo with a placeholder title
func (s *memoryServiceImpl) QuickCreate(ctx context.Context, groupID, userID int64, image *multipart.FileHeader) (*dto.MemoryListResponse, error) {
	if image == nil {
		return nil, apperrors.ErrNoImages
	}

	req := &dto.CreateMemoryRequest{Title: quickMemoryTitle}
	return s.Create(ctx, groupID, userID, req, []*multipart.FileHeader{image})
}

// Delete removes a memory. Only its creator may do so; the row is
// re-fetched so the check runs against current data.
func (s *memoryServiceImpl) Delete(ctx context.Context, memoryID, userID int64) error {
	memory, err := s.memoryRepo.GetByID(ctx, memoryID)
	if err != nil {
		return err
	}

	if memory.CreatedBy != userID {
		return apperrors.ErrPermissionDenied
	}

	if err := s.memoryRepo.Delete(ctx, memoryID); err != nil {
		return err
	}

	if err := s.fileStorage.Delete(memory.ImageURL); err != nil {
		s.logger.Warn().Err(err).Str("fileURL", memory.ImageURL).Msg("Failed to delete memory image file")
	}

	s.logger.Info().
		Int64("memoryID", memoryID).
		Int64("groupID", memory.GroupID).
		Int64("userID", userID).
		Msg("Memory deleted")

	return nil
}

// storeImages saves all images concurrently. The request context bounds
// every upload, so an aborted request stops the remaining work.
func (s *memoryServiceImpl) storeImages(ctx context.Context, groupID int64, images []*multipart.FileHeader) ([]string, error) {
	subPath := strconv.FormatInt(groupID, 10)
	fileURLs := make([]string, len(images))

	var mu sync.Mutex
	var stored []string

	g, gctx := errgroup.WithContext(ctx)
	for i, image := range images {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			fileURL, err := s.fileStorage.Save(filestorage.BucketMemoryImages, subPath, image)
			if err != nil {
				return err
			}

			fileURLs[i] = fileURL
			mu.Lock()
			stored = append(stored, fileURL)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Files written before the failure are an accepted leak
		for _, fileURL := range stored {
			s.logger.Warn().Str("fileURL", fileURL).Msg("Orphaned memory image after failed upload batch")
		}
		return nil, err
	}

	return fileURLs, nil
}

func (s *memoryServiceImpl) requireMembership(ctx context.Context, groupID, userID int64) error {
	isMember, err := s.membershipRepo.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return apperrors.ErrNotGroupMember
	}
	return nil
}

func (s *memoryServiceImpl) requirePostPermission(ctx context.Context, group *models.Group, userID int64) error {
	if group.IsPrivate {
		if err := s.requireMembership(ctx, group.ID, userID); err != nil {
			return err
		}
	}
	if !group.AllowAllPhotos && group.CreatedBy != userID {
		return apperrors.ErrPermissionDenied
	}
	return nil
}

func toMemoryResponse(memory *models.Memory) dto.MemoryResponse {
	return dto.MemoryResponse{
		ID:          memory.ID,
		Title:       memory.Title,
		Description: memory.Description,
		ImageURL:    memory.ImageURL,
		GroupID:     memory.GroupID,
		CreatedBy:   memory.CreatedBy,
		CreatedAt:   memory.CreatedAt,
	}
}
