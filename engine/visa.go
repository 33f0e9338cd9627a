package engine

import "strings"

// Fixed visa fee estimates in USD.
const (
	schengenVisaFee = 105.62
	turkeyEVisaFee  = 50
	usVisaFee       = 160
)

var schengenCountries = map[string]bool{
	"france": true, "germany": true, "italy": true, "spain": true,
	"portugal": true, "netherlands": true, "belgium": true, "sweden": true,
	"norway": true, "finland": true, "switzerland": true, "austria": true,
	"greece": true, "denmark": true, "iceland": true, "czech republic": true,
	"poland": true, "hungary": true, "luxembourg": true, "malta": true,
}

var turkeyVisaFree = map[string]bool{
	"united states": true, "united kingdom": true, "germany": true,
	"france": true, "japan": true, "canada": true, "australia": true,
}

// VisaFeeForTraveler estimates the visa fee in USD for one traveler
// entering the given destination country. Rules are evaluated in order and
// the first match wins; anything unmatched is treated as visa-free. All
// comparisons are case-insensitive, and any single qualifying nationality
// or residency exempts the fee.
func VisaFeeForTraveler(destCountry string, t Traveler) float64 {
	dest := strings.ToLower(strings.TrimSpace(destCountry))

	nationalities := lowerAll(t.Nationalities)
	residencies := lowerAll(t.Residencies)

	for _, n := range nationalities {
		if n == dest {
			return 0
		}
	}

	if schengenCountries[dest] {
		if anyContains(residencies, "schengen") || anyContains(residencies, "eu pr") {
			return 0
		}
		for _, n := range nationalities {
			if schengenCountries[n] {
				return 0
			}
		}
		return schengenVisaFee
	}

	if dest == "turkey" || strings.Contains(dest, "turkey") {
		// A Schengen visa does not exempt entry to Turkey.
		for _, n := range nationalities {
			if turkeyVisaFree[n] {
				return 0
			}
		}
		return turkeyEVisaFee
	}

	if dest == "united states" || dest == "usa" ||
		dest == "united states of america" || strings.Contains(dest, "hawaii") {
		for _, n := range nationalities {
			if n == "united states" {
				return 0
			}
		}
		if anyContains(residencies, "green card") {
			return 0
		}
		return usVisaFee
	}

	// Japan and Canada are modeled as visa-free for everyone. The explicit
	// nationality check is kept so the rule reads the same as the others
	// should the default ever change.
	if dest == "japan" || dest == "canada" {
		for _, n := range nationalities {
			if n == "united states" || n == "canada" || n == "japan" {
				return 0
			}
		}
		return 0
	}

	return 0
}

// VisaFeeForParty sums each traveler's individually computed fee.
func VisaFeeForParty(destCountry string, travelers []Traveler) float64 {
	var sum float64
	for _, t := range travelers {
		sum += VisaFeeForTraveler(destCountry, t)
	}
	return sum
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}

func anyContains(list []string, marker string) bool {
	for _, s := range list {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
