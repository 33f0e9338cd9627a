package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"tripgenie/engine"
)

// ReportData is everything the comparison report renders.
type ReportData struct {
	Origin      string
	StartDate   string
	EndDate     string
	Days        int
	Results     []engine.DestinationResult
	Insights    []string
	Itineraries map[string][]string
}

// BuildComparisonPDF renders the ranked destination comparison as a PDF and
// returns the raw bytes; the report is stored in Postgres, not on disk.
func BuildComparisonPDF(data ReportData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	// ── Header bar ───────────────────────────────────────────
	pdf.SetFillColor(13, 24, 37)
	pdf.Rect(0, 0, 210, 28, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(20, 8)
	pdf.CellFormat(100, 10, "Trips Genie", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(212, 168, 67)
	pdf.SetXY(20, 18)
	pdf.CellFormat(170, 6, "Destination Cost Comparison", "", 1, "L", false, 0, "")

	pdf.SetY(35)
	pdf.SetTextColor(0, 0, 0)

	// ── Disclaimer ───────────────────────────────────────────
	pdf.SetFillColor(255, 248, 225)
	pdf.SetDrawColor(212, 168, 67)
	pdf.SetTextColor(130, 90, 20)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetLineWidth(0.4)
	y := pdf.GetY()
	pdf.Rect(20, y, 170, 12, "FD")
	pdf.SetXY(23, y+2)
	pdf.MultiCell(164, 4,
		"All figures are estimates built from heuristic cost tables and free data feeds. Verify prices and visa requirements before booking.",
		"", "C", false)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.2)
	pdf.Ln(6)

	sectionHeader := func(title string) {
		pdf.SetFillColor(13, 24, 37)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(170, 8, "  "+title, "", 1, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)
	}

	// ── Trip summary ─────────────────────────────────────────
	sectionHeader("Trip")
	pdf.SetFont("Helvetica", "", 10)
	origin := data.Origin
	if origin == "" {
		origin = "not specified"
	}
	pdf.CellFormat(170, 6, fmt.Sprintf("Origin: %s", origin), "", 1, "L", false, 0, "")
	pdf.CellFormat(170, 6, fmt.Sprintf("Dates: %s to %s (%d days)", data.StartDate, data.EndDate, data.Days), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// ── Ranked comparison table ──────────────────────────────
	sectionHeader("Ranked Destinations")
	pdf.SetFont("Helvetica", "B", 9)
	headers := []struct {
		label string
		width float64
	}{
		{"Destination", 52}, {"Flight", 24}, {"Daily", 22}, {"Trip Daily", 26}, {"Visa", 20}, {"Total", 26},
	}
	for _, h := range headers {
		pdf.CellFormat(h.width, 7, h.label, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, r := range data.Results {
		pdf.CellFormat(52, 7, truncate(r.Destination, 30), "1", 0, "L", false, 0, "")
		pdf.CellFormat(24, 7, fmt.Sprintf("$%.0f", r.FlightCost), "1", 0, "R", false, 0, "")
		pdf.CellFormat(22, 7, fmt.Sprintf("$%.0f", r.Breakdown.DailyTotal()), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 7, fmt.Sprintf("$%.0f", r.TripDaily), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("$%.2f", r.VisaFee), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 7, fmt.Sprintf("$%.0f", r.Total), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	// ── Traveler breakdown for the cheapest pick ─────────────
	if len(data.Results) > 0 && len(data.Results[0].Travelers) > 0 {
		best := data.Results[0]
		sectionHeader(fmt.Sprintf("Traveler Breakdown - %s", truncate(best.Destination, 40)))
		pdf.SetFont("Helvetica", "", 9)
		for _, t := range best.Travelers {
			pdf.CellFormat(170, 6,
				fmt.Sprintf("%s: flight $%.0f, daily costs $%.0f, visa $%.2f - total $%.0f",
					t.Name, t.FlightCost, t.TripDaily, t.VisaFee, t.Total),
				"", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	// ── Insights ─────────────────────────────────────────────
	if len(data.Insights) > 0 {
		sectionHeader("Insights")
		pdf.SetFont("Helvetica", "", 9)
		for _, line := range data.Insights {
			pdf.MultiCell(170, 5, "- "+line, "", "L", false)
			pdf.Ln(1)
		}
		pdf.Ln(2)
	}

	// ── Itineraries (when the AI step provided them) ─────────
	for _, r := range data.Results {
		bullets := data.Itineraries[r.Destination]
		if len(bullets) == 0 {
			continue
		}
		sectionHeader(fmt.Sprintf("Itinerary - %s", truncate(r.Destination, 40)))
		pdf.SetFont("Helvetica", "", 9)
		for _, b := range bullets {
			pdf.MultiCell(170, 5, "- "+b, "", "L", false)
		}
		pdf.Ln(2)
	}

	// ── Footer ───────────────────────────────────────────────
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(170, 6, fmt.Sprintf("Generated %s", time.Now().UTC().Format("2006-01-02 15:04 UTC")), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
