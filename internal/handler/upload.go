package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/tonelift/api/internal/middleware"
	"github.com/tonelift/api/internal/service"
	"github.com/tonelift/api/pkg/response"
)

const maxUploadSize = 50 * 1024 * 1024 // 50MB

type UploadHandler struct {
	service   *service.UploadService
	validator *validator.Validate
}

func NewUploadHandler(svc *service.UploadService, v *validator.Validate) *UploadHandler {
	return &UploadHandler{
		service:   svc,
		validator: v,
	}
}

// Track handles POST /api/upload/track
// @Summary      Upload audio track
// @Description  Stage an audio file for enhancement; the returned fileUrl is accepted as inputFileUrl
// @Tags         Upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Audio file (WAV, MP3, M4A, AAC, FLAC, OGG; max 50MB)"
// @Success      201 {object} model.UploadTrackResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload/track [post]
func (h *UploadHandler) Track(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 50MB limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	contentType := file.Header.Get("Content-Type")
	validTypes := map[string]bool{
		"audio/wav":    true,
		"audio/x-wav":  true,
		"audio/wave":   true,
		"audio/mpeg":   true,
		"audio/mp3":    true,
		"audio/mp4":    true,
		"audio/x-m4a":  true,
		"audio/aac":    true,
		"audio/x-aac":  true,
		"audio/flac":   true,
		"audio/x-flac": true,
		"audio/ogg":    true,
	}

	if !validTypes[contentType] {
		return response.ValidationError(c, "Invalid file type. Supported: WAV, MP3, M4A, AAC, FLAC, OGG", map[string]interface{}{
			"contentType": contentType,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.UploadTrack(c.Context(), middleware.GetUserID(c), file.Filename, contentType, f, file.Size)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// DeleteTrack handles DELETE /api/upload/track/:trackId
// @Summary      Delete staged track
// @Description  Delete a previously uploaded track
// @Tags         Upload
// @Produce      json
// @Param        trackId path string true "Track ID"
// @Success      204 "No Content"
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload/track/{trackId} [delete]
func (h *UploadHandler) DeleteTrack(c *fiber.Ctx) error {
	trackID := c.Params("trackId")
	if trackID == "" {
		return response.ValidationError(c, "Track ID is required", nil)
	}

	if err := h.service.DeleteTrack(c.Context(), middleware.GetUserID(c), trackID); err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}
