package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MAZGOURA/attestation-api/internal/service"
	"github.com/MAZGOURA/attestation-api/pkg/response"
)

// CounterHandler exposes the document counter to administrators.
type CounterHandler struct {
	allocator *service.ReferenceAllocator
}

// NewCounterHandler constructs CounterHandler.
func NewCounterHandler(allocator *service.ReferenceAllocator) *CounterHandler {
	return &CounterHandler{allocator: allocator}
}

// Current godoc
// @Summary Read the document counter
// @Tags Counter
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /counter [get]
func (h *CounterHandler) Current(c *gin.Context) {
	counter, err := h.allocator.CurrentValue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counter, nil)
}

// Reset godoc
// @Summary Reset the document counter
// @Tags Counter
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /counter/reset [post]
func (h *CounterHandler) Reset(c *gin.Context) {
	if err := h.allocator.Reset(c.Request.Context(), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	counter, err := h.allocator.CurrentValue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counter, nil)
}
