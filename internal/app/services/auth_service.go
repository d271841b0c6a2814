package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/memoria-app/memoria/internal/app/models"
	"github.com/memoria-app/memoria/internal/app/models/dto"
	"github.com/memoria-app/memoria/internal/app/repositories"
	"github.com/memoria-app/memoria/internal/pkg/apperrors"
	"github.com/memoria-app/memoria/internal/pkg/auth"
	"github.com/memoria-app/memoria/internal/pkg/email"
	"github.com/memoria-app/memoria/internal/pkg/validation"
)

const verificationTokenTTL = 24 * time.Hour

// AuthService defines the interface for authentication operations
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, emailAddr string) error
}

// authServiceImpl implements AuthService
type authServiceImpl struct {
	userRepo         repositories.IUserRepository
	profileRepo      repositories.IProfileRepository
	tokenRepo        repositories.ITokenRepository
	verificationRepo repositories.IVerificationTokenRepository
	jwtService       *auth.JWTService
	emailService     email.EmailService
	logger           zerolog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	userRepo repositories.IUserRepository,
	profileRepo repositories.IProfileRepository,
	tokenRepo repositories.ITokenRepository,
	verificationRepo repositories.IVerificationTokenRepository,
	jwtService *auth.JWTService,
	emailService email.EmailService,
	logger zerolog.Logger,
) AuthService {
	return &authServiceImpl{
		userRepo:         userRepo,
		profileRepo:      profileRepo,
		tokenRepo:        tokenRepo,
		verificationRepo: verificationRepo,
		jwtService:       jwtService,
		emailService:     emailService,
		logger:           logger,
	}
}

// Register creates a new account and writes the profile best-effort.
// A profile failure never rolls the account back; the row is healed on
// the next profile update.
func (s *authServiceImpl) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	if !validation.ValidEmail(req.Email) {
		return nil, apperrors.ErrInvalidEmail
	}
	if !validation.ValidUsername(req.Username) {
		return nil, apperrors.NewBadRequestError("username must be 3-30 characters of lowercase letters, digits or underscores")
	}

	exists, err := s.userRepo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.ErrEmailAlreadyExists
	}

	taken, err := s.profileRepo.UsernameExists(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.ErrUsernameTaken
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		return nil, err
	}

	user := &models.User{
		Email:    req.Email,
		Password: hashedPassword,
		IsActive: true,
	}

	userID, err := s.userRepo.CreateUser(ctx, user)
	if err != nil {
		return nil, err
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
		// The account already exists; surface the problem in the logs
		// and let the user fix the profile later.
		s.logger.Warn().
			Err(err).
			Int64("userID", userID).
			Str("username", req.Username).
			Msg("Profile creation failed after signup")
	}

	if err := s.sendVerification(ctx, userID, req.Email, req.Name); err != nil {
		s.logger.Warn().
			Err(err).
			Int64("userID", userID).
			Msg("Failed to send verification email")
	}

	s.logger.Info().
		Int64("userID", userID).
		Str("email", req.Email).
		Msg("User registered")

	return &dto.RegisterResponse{
		UserID:  userID,
		Email:   req.Email,
		Message: "Cadastro realizado. Verifique seu email para confirmar a conta.",
	}, nil
}

// Login validates credentials and returns a token pair
func (s *authServiceImpl) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(user.Password, req.Password) {
		s.logger.Debug().Str("email", req.Email).Msg("Password mismatch on login")
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Int64("userID", user.ID).Msg("Failed to update last login time")
	}

	s.logger.Info().Int64("userID", user.ID).Msg("User logged in")
	return tokens, nil
}

// RefreshToken rotates the refresh token and issues a new access token
func (s *authServiceImpl) RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	userID, _, _, err := s.tokenRepo.GetTokenByValue(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}

	// Rotate: the presented token is spent regardless of what follows
	if err := s.tokenRepo.RevokeToken(ctx, refreshToken); err != nil {
		s.logger.Warn().Err(err).Int64("userID", userID).Msg("Failed to revoke used refresh token")
	}

	return s.issueTokens(ctx, user)
}

// Logout revokes the presented refresh token
func (s *authServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	if err := s.tokenRepo.RevokeToken(ctx, refreshToken); err != nil {
		if errors.Is(err, apperrors.ErrTokenNotFound) {
			// Already gone; logout is idempotent
			return nil
		}
		return err
	}
	return nil
}

// VerifyEmail consumes a verification token and activates the address
func (s *authServiceImpl) VerifyEmail(ctx context.Context, token string) error {
	userID, expiryDate, err := s.verificationRepo.GetTokenInfo(ctx, token)
	if err != nil {
		return err
	}

	if expiryDate.Before(time.Now()) {
		_ = s.verificationRepo.DeleteToken(ctx, token)
		return apperrors.ErrInvalidEmailToken
	}

	if err := s.userRepo.SetEmailVerified(ctx, userID); err != nil {
		return err
	}

	if err := s.verificationRepo.DeleteToken(ctx, token); err != nil {
		s.logger.Warn().Err(err).Int64("userID", userID).Msg("Failed to delete consumed verification token")
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err == nil {
		name := user.Email
		if profile, perr := s.profileRepo.GetByUserID(ctx, userID); perr == nil {
			name = profile.Name
		}
		if err := s.emailService.SendWelcomeEmail(user.Email, name); err != nil {
			s.logger.Warn().Err(err).Int64("userID", userID).Msg("Failed to send welcome email")
		}
	}

	s.logger.Info().Int64("userID", userID).Msg("Email verified")
	return nil
}

// ResendVerification invalidates older tokens and sends a fresh email
func (s *authServiceImpl) ResendVerification(ctx context.Context, emailAddr string) error {
	user, err := s.userRepo.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}

	if user.EmailVerified {
		return apperrors.ErrEmailAlreadyVerified
	}

	if err := s.verificationRepo.DeleteTokensByUserID(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Int64("userID", user.ID).Msg("Failed to delete stale verification tokens")
	}

	name := user.Email
	if profile, perr := s.profileRepo.GetByUserID(ctx, user.ID); perr == nil {
		name = profile.Name
	}

	return s.sendVerification(ctx, user.ID, user.Email, name)
}

func (s *authServiceImpl) sendVerification(ctx context.Context, userID int64, toEmail, toName string) error {
	token := uuid.New().String()
	if err := s.verificationRepo.CreateToken(ctx, userID, token, time.Now().Add(verificationTokenTTL)); err != nil {
		return err
	}
	return s.emailService.SendVerificationEmail(toEmail, toName, token)
}

func (s *authServiceImpl) issueTokens(ctx context.Context, user *models.User) (*dto.TokenResponse, error) {
	accessToken, refreshToken, expiresIn, refreshExpiresIn, err := s.jwtService.GenerateTokenPair(user)
	if err != nil {
		s.logger.Error().Err(err).Int64("userID", user.ID).Msg("Failed to generate token pair")
		return nil, err
	}

	if err := s.tokenRepo.CreateToken(ctx, refreshToken, user.ID, s.jwtService.GetRefreshTokenExpiry()); err != nil {
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:           accessToken,
		TokenType:             "Bearer",
		ExpiresIn:             int64(expiresIn),
		RefreshToken:          refreshToken,
		RefreshTokenExpiresIn: int64(refreshExpiresIn),
	}, nil
}
