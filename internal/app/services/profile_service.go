package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/memoria-app/memoria/internal/app/models"
	"github.com/memoria-app/memoria/internal/app/models/dto"
	"github.com/memoria-app/memoria/internal/app/repositories"
	"github.com/memoria-app/memoria/internal/pkg/apperrors"
	"github.com/memoria-app/memoria/internal/pkg/validation"
)

// ProfileService defines the interface for profile operations
type ProfileService interface {
	GetProfile(ctx context.Context, userID int64) (*dto.ProfileResponse, error)
	UpdateProfile(ctx context.Context, userID int64, req *dto.UpdateProfileRequest) (*dto.ProfileResponse, error)
	CheckUsername(ctx context.Context, username string) (*dto.UsernameAvailabilityResponse, error)
}

// profileServiceImpl implements ProfileService
type profileServiceImpl struct {
	profileRepo repositories.IProfileRepository
	logger      zerolog.Logger
}

// NewProfileService creates a new ProfileService
func NewProfileService(profileRepo repositories.IProfileRepository, logger zerolog.Logger) ProfileService {
	return &profileServiceImpl{
		profileRepo: profileRepo,
		logger:      logger,
	}
}

// GetProfile retrieves a user's profile
func (s *profileServiceImpl) GetProfile(ctx context.Context, userID int64) (*dto.ProfileResponse, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toProfileResponse(profile), nil
}

// UpdateProfile writes profile metadata. Because the write is an upsert,
// this also heals accounts whose profile row was lost during signup.
func (s *profileServiceImpl) UpdateProfile(ctx context.Context, userID int64, req *dto.UpdateProfileRequest) (*dto.ProfileResponse, error) {
	if !validation.ValidUsername(req.Username) {
		return nil, apperrors.NewBadRequestError("username must be 3-30 characters of lowercase letters, digits or underscores")
	}

	existing, err := s.profileRepo.GetByUserID(ctx, userID)
	if err == nil && existing.Username != req.Username {
		taken, terr := s.profileRepo.UsernameExists(ctx, req.Username)
		if terr != nil {
			return nil, terr
		}
		if taken {
			return nil, apperrors.ErrUsernameTaken
		}
	}

	profile := &models.Profile{
		UserID:   userID,
		Name:     req.Name,
		Username: req.Username,
	}
	if req.Phone != "" {
		profile.Phone = &req.Phone
	}

	if err := s.profileRepo.Upsert(ctx, profile); err != nil {
		return nil, err
	}

	updated, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("userID", userID).Msg("Profile updated")
	return toProfileResponse(updated), nil
}

// CheckUsername reports whether a username is still available
func (s *profileServiceImpl) CheckUsername(ctx context.Context, username string) (*dto.UsernameAvailabilityResponse, error) {
	if !validation.ValidUsername(username) {
		return &dto.UsernameAvailabilityResponse{Username: username, Available: false}, nil
	}

	taken, err := s.profileRepo.UsernameExists(ctx, username)
	if err != nil {
		return nil, err
	}

	return &dto.UsernameAvailabilityResponse{
		Username:  username,
		Available: !taken,
	}, nil
}

func toProfileResponse(profile *models.Profile) *dto.ProfileResponse {
	return &dto.ProfileResponse{
		UserID:    profile.UserID,
		Name:      profile.Name,
		Username:  profile.Username,
		Phone:     profile.Phone,
		UpdatedAt: profile.UpdatedAt,
	}
}
