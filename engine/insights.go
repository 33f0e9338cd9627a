package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// categoryThreshold is the materiality cutoff for calling out a per-category
// saving. Deltas under $50 are noise at the accuracy of the fallback tables.
const categoryThreshold = 50

// maxComparisons limits savings sentences to the first runners-up.
const maxComparisons = 2

// GenerateInsights derives deterministic comparative sentences from a ranked
// result list. It is the fallback (and the baseline) for the optional AI
// rewrite; when results exist it never returns an empty list.
func GenerateInsights(results []DestinationResult, days int) []string {
	if len(results) == 0 {
		return nil
	}

	if len(results) == 1 {
		return []string{singleDestinationInsight(results[0], days)}
	}

	sorted := make([]DestinationResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Total < sorted[j].Total })

	if allTied(sorted) {
		names := make([]string, 0, len(sorted))
		for _, r := range sorted {
			names = append(names, r.Destination)
		}
		return []string{fmt.Sprintf(
			"%s are equally good picks at %s each for your %d-day trip.",
			strings.Join(names, ", "), formatUSD(sorted[0].Total), days,
		)}
	}

	base := sorted[0]
	insights := make([]string, 0, maxComparisons)
	for _, other := range sorted[1:] {
		if len(insights) >= maxComparisons {
			break
		}
		insights = append(insights, savingsInsight(base, other, days))
	}
	return insights
}

func singleDestinationInsight(r DestinationResult, days int) string {
	visaNote := fmt.Sprintf("Visa fees %s", formatUSD(r.VisaFee))
	if r.VisaFee == 0 {
		visaNote = "no visa fee"
	}
	return fmt.Sprintf(
		"For %s, your estimated costs break down as: Flight %s, Lodging %s, Food %s, Transport %s, Misc %s, and %s. Total estimated trip cost: %s.",
		r.Destination,
		formatUSD(r.FlightCost),
		formatUSD(r.Breakdown.Lodging*float64(days)),
		formatUSD(r.Breakdown.Food*float64(days)),
		formatUSD(r.Breakdown.Transport*float64(days)),
		formatUSD(r.Breakdown.Misc*float64(days)),
		visaNote,
		formatUSD(r.Total),
	)
}

type categoryDelta struct {
	name  string
	delta float64
}

func savingsInsight(base, other DestinationResult, days int) string {
	savings := other.Total - base.Total

	deltas := []categoryDelta{
		{"Flights", other.FlightCost - base.FlightCost},
		{"Lodging", (other.Breakdown.Lodging - base.Breakdown.Lodging) * float64(days)},
		{"Food", (other.Breakdown.Food - base.Breakdown.Food) * float64(days)},
		{"Visa fees", other.VisaFee - base.VisaFee},
	}
	sort.SliceStable(deltas, func(i, j int) bool {
		return math.Abs(deltas[i].delta) > math.Abs(deltas[j].delta)
	})

	var material []string
	for _, d := range deltas {
		if len(material) >= 3 {
			break
		}
		if math.Abs(d.delta) >= categoryThreshold {
			material = append(material, fmt.Sprintf("%s (%s)", d.name, formatUSD(d.delta)))
		}
	}

	if len(material) == 0 {
		return fmt.Sprintf(
			"Choosing %s over %s saves you %s, spread thinly across categories.",
			base.Destination, other.Destination, formatUSD(savings),
		)
	}
	return fmt.Sprintf(
		"Choosing %s over %s saves you %s. The biggest differences come from %s.",
		base.Destination, other.Destination, formatUSD(savings), strings.Join(material, ", "),
	)
}

func allTied(sorted []DestinationResult) bool {
	for _, r := range sorted[1:] {
		if r.Total != sorted[0].Total {
			return false
		}
	}
	return true
}

func formatUSD(n float64) string {
	return fmt.Sprintf("$%.2f", n)
}
