package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/memoria-app/memoria/internal/app/models/dto"
	"github.com/memoria-app/memoria/internal/app/services"
	"github.com/memoria-app/memoria/internal/middleware"
)

// MemoryController handles the photo feed operations
type MemoryController struct {
	memoryService services.MemoryService
}

// NewMemoryController creates a new MemoryController
func NewMemoryController(memoryService services.MemoryService) *MemoryController {
	return &MemoryController{
		memoryService: memoryService,
	}
}

// List retrieves a group's memory feed
// @Summary List group memories
// @Description Retrieves a group's memories newest first. Private groups require membership.
// @Tags memories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Group ID"
// @Success 200 {object} dto.APIResponse{data=dto.MemoryListResponse} "Memories retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid group ID"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Not a member of this private group"
// @Failure 404 {object} dto.ErrorResponse "Group not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /groups/{id}/memories [get]
func (c *MemoryController) List(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	groupID, ok := parseGroupID(ctx)
	if !ok {
		return
	}

	response, err := c.memoryService.List(ctx, groupID, userID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(response))
}

// Create posts one or more photos as memories
// @Summary Create memories
// @Description Uploads the images concurrently and inserts one memory row per image, all sharing the submitted title and description. Submissions without images are rejected before any upload.
// @Tags memories
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Group ID"
// @Param title formData string true "Title shared by all created memories"
// @Param description formData string false "Description shared by all created memories"
// @Param images formData file true "One or more images"
// @Success 201 {object} dto.APIResponse{data=dto.MemoryListResponse} "Memories created; refreshed feed returned"
// @Failure 400 {object} dto.ErrorResponse "No images or validation failed"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Posting not allowed in this group"
// @Failure 404 {object} dto.ErrorResponse "Group not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /groups/{id}/memories [post]
func (c *MemoryController) Create(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	groupID, ok := parseGroupID(ctx)
	if !ok {
		return
	}

	var req dto.CreateMemoryRequest
	if err := ctx.ShouldBind(&req); err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid request format")
		errorDetail = errorDetail.WithDetails(err.Error())
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid multipart form")
		errorDetail = errorDetail.WithDetails(err.Error())
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}
	images := form.File["images"]

	response, err := c.memoryService.Create(ctx, groupID, userID, &req, images)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(response))
}

// QuickCreate posts a single photo without text
// @Summary Quick-post a photo
// @Description Posts one image with a placeholder title and empty description
// @Tags memories
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Group ID"
// @Param image formData file true "Image"
// @Success 201 {object} dto.APIResponse{data=dto.MemoryListResponse} "Memory created; refreshed feed returned"
// @Failure 400 {object} dto.ErrorResponse "Image missing"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Posting not allowed in this group"
// @Failure 404 {object} dto.ErrorResponse "Group not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /groups/{id}/memories/quick [post]
func (c *MemoryController) QuickCreate(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	groupID, ok := parseGroupID(ctx)
	if !ok {
		return
	}

	fileHeader, err := ctx.FormFile("image")
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Image is required")
		errorDetail = errorDetail.WithDetails(err.Error())
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	response, err := c.memoryService.QuickCreate(ctx, groupID, userID, fileHeader)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(response))
}

// Delete removes a memory
// @Summary Delete a memory
// @Description Deletes a memory. Only its creator may do this.
// @Tags memories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Memory ID"
// @Success 200 {object} dto.APIResponse{data=dto.SuccessResponse} "Memory deleted"
// @Failure 400 {object} dto.ErrorResponse "Invalid memory ID"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Not the creator"
// @Failure 404 {object} dto.ErrorResponse "Memory not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /memories/{id} [delete]
func (c *MemoryController) Delete(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	memoryID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid memory ID")
		errorDetail = errorDetail.WithDetails("Memory ID must be a valid number")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	if err := c.memoryService.Delete(ctx, memoryID, userID); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.SuccessResponse{Message: "Memory deleted"}))
}
