package engine

import "strings"

// The three fallback tiers, USD per day. Used whenever the live cost
// provider has nothing for a destination.
var (
	tierExpensive = CostBreakdown{Lodging: 140, Food: 75, Transport: 35, Misc: 25}
	tierMid       = CostBreakdown{Lodging: 85, Food: 45, Transport: 22, Misc: 15}
	tierCheap     = CostBreakdown{Lodging: 45, Food: 25, Transport: 14, Misc: 10}
)

// City substrings checked before any country rule; a city match overrides
// the broader country tier (e.g. "Istanbul, Turkey" is mid even though an
// unknown Turkish town would fall through to the country table).
var (
	expensiveCities = []string{
		"new york", "tokyo", "singapore",
		"paris", "rome", "milan", "madrid", "barcelona",
		"london", "zurich", "geneva",
	}
	midCities   = []string{"istanbul", "bangkok", "kuala", "dubai"}
	cheapCities = []string{"delhi", "mumbai", "bangalore", "jakarta", "manila"}
)

var expensiveCountries = map[string]bool{
	"united states": true, "canada": true, "japan": true, "singapore": true,
	"france": true, "germany": true, "united kingdom": true, "italy": true,
	"switzerland": true, "australia": true,
}

var midCountries = map[string]bool{
	"turkey": true, "thailand": true, "malaysia": true, "china": true,
	"mexico": true, "brazil": true, "south africa": true, "poland": true,
	"portugal": true,
}

// ResolveCostTier maps a free-text destination label to a baseline daily
// cost breakdown. Pure and total: unknown destinations land on the cheap
// tier.
func ResolveCostTier(label string) CostBreakdown {
	city := strings.ToLower(label)
	country := strings.ToLower(ExtractCountry(label))

	for _, c := range expensiveCities {
		if strings.Contains(city, c) {
			return tierExpensive
		}
	}
	for _, c := range midCities {
		if strings.Contains(city, c) {
			return tierMid
		}
	}
	for _, c := range cheapCities {
		if strings.Contains(city, c) {
			return tierCheap
		}
	}

	if expensiveCountries[country] {
		return tierExpensive
	}
	if midCountries[country] {
		return tierMid
	}
	return tierCheap
}
