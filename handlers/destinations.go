package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tripgenie/engine"
)

// DestinationsHandler serves autocomplete suggestions for the destination
// picker.
type DestinationsHandler struct {
	gateway engine.ProviderGateway
}

func NewDestinationsHandler(gateway engine.ProviderGateway) *DestinationsHandler {
	return &DestinationsHandler{gateway: gateway}
}

// RegisterRoutes registers the destinations route on the given group.
func (h *DestinationsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/destinations", h.Search)
}

// Search handles GET /api/destinations?q=. An empty query returns the
// curated defaults; a failed live search degrades to the same list.
func (h *DestinationsHandler) Search(c *gin.Context) {
	query := c.Query("q")
	suggestions := h.gateway.SearchDestinations(c.Request.Context(), query)
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}
