package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tripgenie/database"
	"tripgenie/engine"
	"tripgenie/events"
	"tripgenie/services"
)

const dateLayout = "2006-01-02"

// TravelerRequest accepts both the current array fields and the legacy
// singular ones; normalization into plain string slices happens here, at
// the boundary, before anything reaches the engine.
type TravelerRequest struct {
	Name          string   `json:"name"`
	Nationalities []string `json:"nationalities"`
	Residencies   []string `json:"residencies"`
	Nationality   string   `json:"nationality"`
	Residency     string   `json:"residency"`
	Age           int      `json:"age"`
}

func (t TravelerRequest) toTraveler() engine.Traveler {
	nationalities := t.Nationalities
	if len(nationalities) == 0 && t.Nationality != "" {
		nationalities = []string{t.Nationality}
	}
	residencies := t.Residencies
	if len(residencies) == 0 && t.Residency != "" {
		residencies = []string{t.Residency}
	}
	return engine.Traveler{
		Name:          t.Name,
		Nationalities: nationalities,
		Residencies:   residencies,
		Age:           t.Age,
	}
}

type EstimateRequest struct {
	Destinations []string          `json:"destinations" binding:"required,min=1,max=5"`
	Travelers    []TravelerRequest `json:"travelers"`
	StartDate    string            `json:"start_date" binding:"required"`
	EndDate      string            `json:"end_date" binding:"required"`
	Origin       string            `json:"origin"`
	// SessionID lets a client mark its searches so a re-submit cancels the
	// one still in flight. Optional; searches from different sessions never
	// affect each other.
	SessionID string `json:"session_id"`
}

type EstimateResponse struct {
	SearchID    string                     `json:"search_id"`
	Days        int                        `json:"days"`
	Results     []engine.DestinationResult `json:"results"`
	Insights    []string                   `json:"insights"`
	Itineraries map[string][]string        `json:"itineraries,omitempty"`
	Source      string                     `json:"source"` // "live" or "estimated"
}

// SearchStore is the slice of the database layer the estimate flow writes
// to.
type SearchStore interface {
	SaveSearch(ctx context.Context, sr *database.Search) error
	SaveEstimate(ctx context.Context, e *database.Estimate) error
}

// EstimateHandler runs the full comparison flow: aggregate, insights,
// optional AI rewrite, persistence, analytics event.
type EstimateHandler struct {
	aggregator *engine.Aggregator
	writer     *services.InsightWriter
	store      SearchStore
	producer   *events.Producer
	logger     *zap.Logger
}

func NewEstimateHandler(
	aggregator *engine.Aggregator,
	writer *services.InsightWriter,
	store SearchStore,
	producer *events.Producer,
	logger *zap.Logger,
) *EstimateHandler {
	return &EstimateHandler{
		aggregator: aggregator,
		writer:     writer,
		store:      store,
		producer:   producer,
		logger:     logger,
	}
}

// RegisterRoutes registers the estimate route on the given group.
func (h *EstimateHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/estimate", h.Estimate)
}

// Estimate handles POST /api/estimate.
func (h *EstimateHandler) Estimate(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start date format. Use YYYY-MM-DD"})
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end date format. Use YYYY-MM-DD"})
		return
	}

	travelers := make([]engine.Traveler, 0, len(req.Travelers))
	for _, t := range req.Travelers {
		travelers = append(travelers, t.toTraveler())
	}

	window := engine.TripWindow{Start: start, End: end}
	results, err := h.aggregator.Aggregate(c.Request.Context(), engine.AggregateRequest{
		Destinations: req.Destinations,
		Travelers:    travelers,
		Window:       window,
		Origin:       req.Origin,
		SessionKey:   req.SessionID,
	})
	if err != nil {
		if errors.Is(err, engine.ErrSuperseded) {
			c.JSON(http.StatusConflict, gin.H{"error": "Search superseded by a newer request"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	days := window.Days()
	insights := engine.GenerateInsights(results, days)
	insights, itineraries := h.writer.Rewrite(c.Request.Context(), results, days, insights)

	source := "estimated"
	for _, r := range results {
		if r.Source == "live" {
			source = "live"
			break
		}
	}

	searchID := uuid.New().String()
	h.persist(c, searchID, req, results, insights, itineraries)

	h.producer.PublishEstimateCompleted(events.EstimateCompletedEvent{
		SearchID:     searchID,
		Destinations: len(results),
		Travelers:    len(travelers),
		Days:         days,
		Cheapest:     results[0].Destination,
		CheapestCost: results[0].Total,
		Source:       source,
		OccurredAt:   time.Now().UTC(),
	})

	c.JSON(http.StatusOK, EstimateResponse{
		SearchID:    searchID,
		Days:        days,
		Results:     results,
		Insights:    insights,
		Itineraries: itineraries,
		Source:      source,
	})
}

// persist stores the search and its estimate. Storage failures are logged
// and swallowed: the computed results still go back to the user.
func (h *EstimateHandler) persist(c *gin.Context, searchID string, req EstimateRequest, results []engine.DestinationResult, insights []string, itineraries map[string][]string) {
	destinationsJSON, _ := json.Marshal(req.Destinations)
	travelersJSON, _ := json.Marshal(req.Travelers)

	if err := h.store.SaveSearch(c.Request.Context(), &database.Search{
		ID:               searchID,
		Origin:           req.Origin,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		DestinationsJSON: string(destinationsJSON),
		TravelersJSON:    string(travelersJSON),
	}); err != nil {
		h.logger.Warn("failed to save search", zap.String("search_id", searchID), zap.Error(err))
		return
	}

	resultsJSON, _ := json.Marshal(results)
	insightsJSON, _ := json.Marshal(insights)
	itinerariesJSON, _ := json.Marshal(itineraries)

	if err := h.store.SaveEstimate(c.Request.Context(), &database.Estimate{
		ID:              uuid.New().String(),
		SearchID:        searchID,
		ResultsJSON:     string(resultsJSON),
		InsightsJSON:    string(insightsJSON),
		ItinerariesJSON: string(itinerariesJSON),
	}); err != nil {
		h.logger.Warn("failed to save estimate", zap.String("search_id", searchID), zap.Error(err))
	}
}
