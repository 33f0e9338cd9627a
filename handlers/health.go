package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tripgenie/database"
)

// HealthHandler reports service and database status.
type HealthHandler struct {
	store *database.Store
}

func NewHealthHandler(store *database.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// RegisterRoutes registers the health route on the given group.
func (h *HealthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/health", h.Health)
}

// Health handles GET /api/health.
func (h *HealthHandler) Health(c *gin.Context) {
	dbStatus := "ok"
	if h.store == nil {
		dbStatus = "not initialized"
	} else if err := h.store.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  "TripGenie API",
		"database": dbStatus,
	})
}
