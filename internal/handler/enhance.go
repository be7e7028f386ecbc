package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/tonelift/api/internal/middleware"
	"github.com/tonelift/api/internal/model"
	"github.com/tonelift/api/internal/service"
	"github.com/tonelift/api/internal/store"
	"github.com/tonelift/api/pkg/response"
)

type EnhanceHandler struct {
	service   *service.EnhanceService
	validator *validator.Validate
}

func NewEnhanceHandler(svc *service.EnhanceService, v *validator.Validate) *EnhanceHandler {
	return &EnhanceHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /api/enhance/start
// @Summary      Start enhancement
// @Description  Submit an audio enhancement job; processing is asynchronous
// @Tags         Enhance
// @Accept       json
// @Produce      json
// @Param        request body model.EnhanceRequest true "Enhancement request"
// @Success      202 {object} model.EnhanceStartResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/enhance/start [post]
func (h *EnhanceHandler) Start(c *fiber.Ctx) error {
	var req model.EnhanceRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	req.ApplyDefaults()
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Submit(c.Context(), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/enhance/status/:jobId
// @Summary      Get job status
// @Description  Get the current status, analysis and render plan of an enhancement job
// @Tags         Enhance
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.EnhanceStatusResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/enhance/status/{jobId} [get]
func (h *EnhanceHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetStatus(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Output handles GET /api/enhance/output/:jobId
// @Summary      Download enhanced audio
// @Description  Stream the rendered output of a completed job
// @Tags         Enhance
// @Produce      audio/wav
// @Param        jobId path string true "Job ID"
// @Success      200 {file} binary
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/enhance/output/{jobId} [get]
func (h *EnhanceHandler) Output(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.service.GetJob(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	if job.Status == model.JobStatusFailed {
		msg := "Job failed"
		if job.Error != nil {
			msg = *job.Error
		}
		return response.Error(c, fiber.StatusConflict, response.CodeJobFailed, msg, nil)
	}
	if job.Status != model.JobStatusDone {
		return response.NotFound(c, "Job has not completed")
	}

	if job.OutputPath != "" {
		return c.SendFile(job.OutputPath)
	}
	if job.EnhancedFileURL != "" {
		return c.Redirect(job.EnhancedFileURL, fiber.StatusFound)
	}
	return response.NotFound(c, "Output no longer available")
}

// Feedback handles POST /api/enhance/feedback/:jobId
// @Summary      Submit feedback
// @Description  Record the user's verdict on an enhancement result
// @Tags         Enhance
// @Accept       json
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Param        request body model.FeedbackRequest true "Feedback"
// @Success      200 {object} map[string]string
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/enhance/feedback/{jobId} [post]
func (h *EnhanceHandler) Feedback(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	var req model.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	h.service.RecordFeedback(c.Context(), jobID, &req, middleware.GetUserID(c))

	return response.OK(c, fiber.Map{"status": "recorded"})
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
