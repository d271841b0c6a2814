package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/memoria-app/memoria/internal/app/models/dto"
	"github.com/memoria-app/memoria/internal/app/services"
	"github.com/memoria-app/memoria/internal/middleware"
)

// ProfileController handles profile related operations
type ProfileController struct {
	profileService services.ProfileService
}

// NewProfileController creates a new ProfileController
func NewProfileController(profileService services.ProfileService) *ProfileController {
	return &ProfileController{
		profileService: profileService,
	}
}

// GetMyProfile retrieves the authenticated user's profile
// @Summary Get own profile
// @Description Retrieves the profile of the authenticated user
// @Tags profiles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ProfileResponse} "Profile retrieved"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Profile not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /profile [get]
func (c *ProfileController) GetMyProfile(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	profile, err := c.profileService.GetProfile(ctx, userID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(profile))
}

// UpdateMyProfile updates the authenticated user's profile
// @Summary Update own profile
// @Description Updates name, username and phone. Also recreates the profile row if signup left it missing.
// @Tags profiles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdateProfileRequest true "Profile data"
// @Success 200 {object} dto.APIResponse{data=dto.ProfileResponse} "Profile updated"
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 409 {object} dto.ErrorResponse "Username already taken"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /profile [put]
func (c *ProfileController) UpdateMyProfile(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req dto.UpdateProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid request format")
		errorDetail = errorDetail.WithDetails(err.Error())
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	profile, err := c.profileService.UpdateProfile(ctx, userID, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(profile))
}

// CheckUsername reports whether a username is available
// @Summary Check username availability
// @Description Returns whether the given username is free to claim
// @Tags profiles
// @Accept json
// @Produce json
// @Param username query string true "Username to check"
// @Success 200 {object} dto.APIResponse{data=dto.UsernameAvailabilityResponse} "Availability checked"
// @Failure 400 {object} dto.ErrorResponse "Username missing"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /profile/username-check [get]
func (c *ProfileController) CheckUsername(ctx *gin.Context) {
	username := ctx.Query("username")
	if username == "" {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Username is required")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	response, err := c.profileService.CheckUsername(ctx, username)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(response))
}
