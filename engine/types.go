package engine

import (
	"math"
	"strings"
	"time"
)

// CostBreakdown holds per-day USD amounts for one destination.
type CostBreakdown struct {
	Lodging   float64 `json:"lodging"`
	Food      float64 `json:"food"`
	Transport float64 `json:"transport"`
	Misc      float64 `json:"misc"`
}

// DailyTotal returns the combined per-day cost.
func (b CostBreakdown) DailyTotal() float64 {
	return b.Lodging + b.Food + b.Transport + b.Misc
}

// Traveler describes one person on the trip. Name and Age are display-only;
// nationalities and residencies drive the visa fee rules.
type Traveler struct {
	Name          string   `json:"name"`
	Nationalities []string `json:"nationalities"`
	Residencies   []string `json:"residencies"`
	Age           int      `json:"age"`
}

// TripWindow is the date range of the trip.
type TripWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the trip length in days, floored at 1 so same-day and
// inverted ranges still price a single day.
func (w TripWindow) Days() int {
	d := math.Round(w.End.Sub(w.Start).Hours() / 24)
	if d < 1 {
		return 1
	}
	return int(d)
}

// TravelerBreakdown is the per-traveler slice of a destination's cost.
// Each traveler books their own ticket, so flight cost is repeated here.
type TravelerBreakdown struct {
	Name       string  `json:"name"`
	FlightCost float64 `json:"flight_cost"`
	TripDaily  float64 `json:"trip_daily"`
	VisaFee    float64 `json:"visa_fee"`
	Total      float64 `json:"total"`
}

// DestinationResult is one row of the ranked comparison. Created fresh on
// every aggregation and never mutated afterwards.
type DestinationResult struct {
	Destination string              `json:"destination"`
	Country     string              `json:"country"`
	Breakdown   CostBreakdown       `json:"breakdown"`
	FlightCost  float64             `json:"flight_cost"`
	VisaFee     float64             `json:"visa_fee"`
	TripDaily   float64             `json:"trip_daily"`
	Total       float64             `json:"total"`
	Image       string              `json:"image,omitempty"`
	Travelers   []TravelerBreakdown `json:"travelers,omitempty"`
	Source      string              `json:"source"` // "live" or "estimated"
}

// ExtractCountry pulls the country out of a "City, Country" label. Labels
// without a comma are treated as already being the country.
func ExtractCountry(label string) string {
	parts := strings.Split(label, ",")
	return strings.TrimSpace(parts[len(parts)-1])
}
