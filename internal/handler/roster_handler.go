package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MAZGOURA/attestation-api/internal/service"
	appErrors "github.com/MAZGOURA/attestation-api/pkg/errors"
	"github.com/MAZGOURA/attestation-api/pkg/response"
)

// RosterHandler exposes the read-only enrollment roster.
type RosterHandler struct {
	roster *service.RosterService
}

// NewRosterHandler constructs RosterHandler.
func NewRosterHandler(roster *service.RosterService) *RosterHandler {
	return &RosterHandler{roster: roster}
}

// IdentityCheckRequest is the identity check payload.
type IdentityCheckRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name"`
	GroupCode string `json:"group_code" binding:"required"`
}

// CheckIdentity godoc
// @Summary Validate an identity against the enrollment roster
// @Tags Roster
// @Accept json
// @Produce json
// @Param payload body IdentityCheckRequest true "Identity payload"
// @Success 200 {object} response.Envelope
// @Router /identity/check [post]
func (h *RosterHandler) CheckIdentity(c *gin.Context) {
	var req IdentityCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.roster.CheckIdentity(c.Request.Context(), req.FirstName, req.LastName, req.GroupCode)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Groups godoc
// @Summary List known group codes
// @Tags Roster
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /roster/groups [get]
func (h *RosterHandler) Groups(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.roster.Groups(), nil)
}

// GroupEntries godoc
// @Summary List roster entries for a group
// @Tags Roster
// @Produce json
// @Param group path string true "Group code"
// @Success 200 {object} response.Envelope
// @Router /roster/groups/{group} [get]
func (h *RosterHandler) GroupEntries(c *gin.Context) {
	entries, err := h.roster.EntriesInGroup(c.Param("group"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
