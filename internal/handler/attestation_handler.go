package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MAZGOURA/attestation-api/internal/middleware"
	"github.com/MAZGOURA/attestation-api/internal/models"
	"github.com/MAZGOURA/attestation-api/internal/service"
	appErrors "github.com/MAZGOURA/attestation-api/pkg/errors"
	"github.com/MAZGOURA/attestation-api/pkg/response"
)

// AttestationHandler exposes submission and administrative endpoints.
type AttestationHandler struct {
	submissions *service.SubmissionService
	decisions   *service.DecisionService
}

// NewAttestationHandler constructs AttestationHandler.
func NewAttestationHandler(submissions *service.SubmissionService, decisions *service.DecisionService) *AttestationHandler {
	return &AttestationHandler{submissions: submissions, decisions: decisions}
}

// Submit godoc
// @Summary Submit an attestation request
// @Tags Attestations
// @Accept json
// @Produce json
// @Param payload body service.SubmitAttestationRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /attestations [post]
func (h *AttestationHandler) Submit(c *gin.Context) {
	var req service.SubmitAttestationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.submissions.Submit(c.Request.Context(), req)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrNoRosterMatch) && result != nil && len(result.Suggestions) > 0 {
			response.ErrorWithDetails(c, err, map[string]interface{}{"suggestions": result.Suggestions})
			return
		}
		response.Error(c, err)
		return
	}
	response.CreatedWithWarnings(c, result.Request, result.Warnings)
}

// SubmitVerified godoc
// @Summary Submit a request with externally verified identity
// @Tags Attestations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.SubmitAttestationRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Router /attestations/verified [post]
func (h *AttestationHandler) SubmitVerified(c *gin.Context) {
	var req service.SubmitAttestationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.submissions.SubmitVerified(c.Request.Context(), req, middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.CreatedWithWarnings(c, result.Request, result.Warnings)
}

// List godoc
// @Summary List attestation requests
// @Tags Attestations
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param group query string false "Filter by group code"
// @Param year query int false "Filter by requested year"
// @Param cin query string false "Filter by CIN"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attestations [get]
func (h *AttestationHandler) List(c *gin.Context) {
	var filter models.AttestationFilter
	if status := strings.ToUpper(strings.TrimSpace(c.Query("status"))); status != "" {
		parsed := models.AttestationStatus(status)
		if !parsed.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status filter"))
			return
		}
		filter.Status = parsed
	}
	filter.GroupCode = strings.TrimSpace(c.Query("group"))
	filter.CIN = strings.TrimSpace(c.Query("cin"))
	if year, err := strconv.Atoi(c.Query("year")); err == nil {
		filter.Year = year
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	requests, pagination, err := h.decisions.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get request detail
// @Tags Attestations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /attestations/{id} [get]
func (h *AttestationHandler) Get(c *gin.Context) {
	request, err := h.decisions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Approve godoc
// @Summary Approve a pending request
// @Tags Attestations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attestations/{id}/approve [post]
func (h *AttestationHandler) Approve(c *gin.Context) {
	h.decide(c, models.AttestationStatusApproved)
}

// Reject godoc
// @Summary Reject a pending request
// @Tags Attestations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body service.DecideRequest false "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attestations/{id}/reject [post]
func (h *AttestationHandler) Reject(c *gin.Context) {
	h.decide(c, models.AttestationStatusRejected)
}

func (h *AttestationHandler) decide(c *gin.Context, target models.AttestationStatus) {
	var req service.DecideRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	updated, err := h.decisions.Decide(c.Request.Context(), c.Param("id"), target, req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// Print godoc
// @Summary Resolve the print snapshot for an approved request
// @Tags Attestations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attestations/{id}/print [post]
func (h *AttestationHandler) Print(c *gin.Context) {
	snapshot, err := h.decisions.Print(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// Delete godoc
// @Summary Delete a request
// @Tags Attestations
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 204
// @Router /attestations/{id} [delete]
func (h *AttestationHandler) Delete(c *gin.Context) {
	if err := h.decisions.Delete(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func actorID(c *gin.Context) string {
	if claims := middleware.CurrentUser(c); claims != nil {
		return claims.UserID
	}
	return ""
}
