package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tripgenie/database"
	"tripgenie/engine"
	"tripgenie/services"
)

// EstimateStore is the slice of the database layer the report flow reads
// and updates.
type EstimateStore interface {
	GetSearch(ctx context.Context, id string) (*database.Search, error)
	GetEstimate(ctx context.Context, id string) (*database.Estimate, error)
	GetEstimateBySearchID(ctx context.Context, searchID string) (*database.Estimate, error)
	UpdateEstimatePDF(ctx context.Context, id string, pdfData []byte) error
}

// ReportHandler builds and serves the PDF comparison report for a stored
// search.
type ReportHandler struct {
	store  EstimateStore
	logger *zap.Logger
}

func NewReportHandler(store EstimateStore, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{store: store, logger: logger}
}

// RegisterRoutes registers the report routes on the given group.
func (h *ReportHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/report", h.Generate)
	r.GET("/download/:id", h.Download)
}

type GenerateReportRequest struct {
	SearchID string `json:"search_id" binding:"required"`
}

type GenerateReportResponse struct {
	ReportID string `json:"report_id"`
	PDFURL   string `json:"pdf_url"`
}

// Generate handles POST /api/report. It rebuilds the report from the
// stored estimate, so results match exactly what the user compared.
func (h *ReportHandler) Generate(c *gin.Context) {
	var req GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	search, err := h.store.GetSearch(c.Request.Context(), req.SearchID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Search not found"})
		return
	}

	estimate, err := h.store.GetEstimateBySearchID(c.Request.Context(), req.SearchID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Estimate not found for search"})
		return
	}

	var results []engine.DestinationResult
	if err := json.Unmarshal([]byte(estimate.ResultsJSON), &results); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse stored results"})
		return
	}

	var insights []string
	if estimate.InsightsJSON != "" {
		_ = json.Unmarshal([]byte(estimate.InsightsJSON), &insights)
	}
	var itineraries map[string][]string
	if estimate.ItinerariesJSON != "" {
		_ = json.Unmarshal([]byte(estimate.ItinerariesJSON), &itineraries)
	}

	days := tripDays(search.StartDate, search.EndDate)

	pdfBytes, err := services.BuildComparisonPDF(services.ReportData{
		Origin:      search.Origin,
		StartDate:   search.StartDate,
		EndDate:     search.EndDate,
		Days:        days,
		Results:     results,
		Insights:    insights,
		Itineraries: itineraries,
	})
	if err != nil {
		h.logger.Error("PDF generation failed", zap.String("search_id", req.SearchID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate PDF"})
		return
	}

	if err := h.store.UpdateEstimatePDF(c.Request.Context(), estimate.ID, pdfBytes); err != nil {
		h.logger.Error("failed to store PDF", zap.String("estimate_id", estimate.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save generated PDF"})
		return
	}

	h.logger.Info("comparison report generated",
		zap.String("estimate_id", estimate.ID),
		zap.Int("bytes", len(pdfBytes)))

	c.JSON(http.StatusOK, GenerateReportResponse{
		ReportID: estimate.ID,
		PDFURL:   "/api/download/" + estimate.ID,
	})
}

// Download handles GET /api/download/:id.
func (h *ReportHandler) Download(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing report ID"})
		return
	}

	estimate, err := h.store.GetEstimate(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}
	if len(estimate.PDFData) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "PDF has not been generated for this estimate"})
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", "attachment; filename=tripgenie-comparison.pdf")
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", estimate.PDFData)
}

func tripDays(startDate, endDate string) int {
	start, err1 := time.Parse(dateLayout, startDate)
	end, err2 := time.Parse(dateLayout, endDate)
	if err1 != nil || err2 != nil {
		return 1
	}
	return engine.TripWindow{Start: start, End: end}.Days()
}
