package engine

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Fallback round-trip fares when no live price is available. A known origin
// is assumed to mean a mid-haul route.
const (
	fallbackFlightWithOrigin = 450
	fallbackFlightNoOrigin   = 500
)

// maxDestinations caps one comparison; extra selections are ignored.
const maxDestinations = 5

var (
	ErrNoDestinations = errors.New("no destinations selected")
	ErrNoDateWindow   = errors.New("start and end dates are required")

	// ErrSuperseded is returned when a newer aggregation with the same
	// session key was started while this one was still in flight; its
	// stale results must be discarded.
	ErrSuperseded = errors.New("aggregation superseded by a newer request")
)

// AggregateRequest is the input of one comparison run. SessionKey scopes
// supersession: a later call with the same non-empty key invalidates an
// in-flight one, so a user who re-submits never sees their stale results.
// Calls with different keys, or no key, run independently.
type AggregateRequest struct {
	Destinations []string
	Travelers    []Traveler
	Window       TripWindow
	Origin       string
	SessionKey   string
}

// Aggregator computes ranked per-destination cost estimates. Live provider
// data is preferred field-by-field, with the cost tier and visa rule tables
// as fallback. Safe for concurrent use.
type Aggregator struct {
	gateway ProviderGateway
	logger  *zap.Logger

	mu   sync.Mutex
	gens map[string]uint64
}

// NewAggregator wires an aggregator to its provider gateway.
func NewAggregator(gateway ProviderGateway, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{gateway: gateway, logger: logger, gens: make(map[string]uint64)}
}

// Aggregate estimates and ranks all requested destinations, cheapest first.
// Provider failures never abort the run: each destination degrades to
// heuristic values on its own. Only invalid input produces an error.
func (a *Aggregator) Aggregate(ctx context.Context, req AggregateRequest) ([]DestinationResult, error) {
	if len(req.Destinations) == 0 {
		return nil, ErrNoDestinations
	}
	if req.Window.Start.IsZero() || req.Window.End.IsZero() {
		return nil, ErrNoDateWindow
	}

	destinations := req.Destinations
	if len(destinations) > maxDestinations {
		destinations = destinations[:maxDestinations]
	}

	travelers := req.Travelers
	if len(travelers) == 0 {
		// The UI always submits at least one traveler row; an empty party
		// still prices the trip for a single unnamed traveler.
		travelers = []Traveler{{Name: "Traveler", Nationalities: []string{""}}}
	}

	var token uint64
	if req.SessionKey != "" {
		a.mu.Lock()
		a.gens[req.SessionKey]++
		token = a.gens[req.SessionKey]
		a.mu.Unlock()
	}
	days := req.Window.Days()

	results := make([]DestinationResult, len(destinations))
	var wg sync.WaitGroup
	for i, dest := range destinations {
		wg.Add(1)
		go func(i int, dest string) {
			defer wg.Done()
			results[i] = a.estimateDestination(ctx, dest, travelers, req.Window, req.Origin, days)
		}(i, dest)
	}
	wg.Wait()

	if req.SessionKey != "" && a.currentGen(req.SessionKey) != token {
		a.logger.Debug("discarding superseded aggregation",
			zap.String("session", req.SessionKey), zap.Uint64("token", token))
		return nil, ErrSuperseded
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Total < results[j].Total
	})
	return results, nil
}

func (a *Aggregator) currentGen(key string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gens[key]
}

// estimateDestination builds one DestinationResult, merging live data with
// fallback heuristics.
func (a *Aggregator) estimateDestination(ctx context.Context, dest string, travelers []Traveler, window TripWindow, origin string, days int) DestinationResult {
	country := ExtractCountry(dest)
	live := false

	breakdown := ResolveCostTier(dest)
	if lc := a.gateway.FetchLiveCost(ctx, dest); lc != nil {
		breakdown = mergeLiveCost(breakdown, lc)
		live = true
	} else {
		a.logger.Debug("live cost unavailable, using tier fallback", zap.String("destination", dest))
	}

	flightCost := float64(fallbackFlightNoOrigin)
	if origin != "" {
		flightCost = fallbackFlightWithOrigin
	}
	if price, ok := a.gateway.FetchLiveFlightPrice(ctx, origin, dest, window); ok && price > 0 {
		flightCost = price
		live = true
	} else {
		a.logger.Debug("live flight price unavailable, using fallback fare", zap.String("destination", dest))
	}

	tripDaily := breakdown.DailyTotal() * float64(days)

	var visaTotal float64
	travelerRows := make([]TravelerBreakdown, 0, len(travelers))
	for _, t := range travelers {
		fee := a.visaFeeFor(ctx, country, dest, t)
		visaTotal += fee

		name := t.Name
		if name == "" {
			name = "Traveler"
		}
		travelerRows = append(travelerRows, TravelerBreakdown{
			Name:       name,
			FlightCost: flightCost,
			TripDaily:  tripDaily,
			VisaFee:    fee,
			Total:      math.Round(flightCost + tripDaily + fee),
		})
	}

	source := "estimated"
	if live {
		source = "live"
	}

	return DestinationResult{
		Destination: dest,
		Country:     country,
		Breakdown:   breakdown,
		FlightCost:  flightCost,
		VisaFee:     visaTotal,
		TripDaily:   tripDaily,
		Total:       math.Round(flightCost + tripDaily + visaTotal),
		Image:       a.gateway.FetchDestinationImage(ctx, dest),
		Travelers:   travelerRows,
		Source:      source,
	}
}

// visaFeeFor prefers a live determination for the traveler's first
// nationality, falling back to the rule table.
func (a *Aggregator) visaFeeFor(ctx context.Context, country, dest string, t Traveler) float64 {
	if len(t.Nationalities) > 0 {
		if det := a.gateway.FetchLiveVisaDetermination(ctx, t.Nationalities[0], dest); det != nil {
			if !det.Required {
				return 0
			}
			if det.FeeUSD >= 0 {
				return det.FeeUSD
			}
		}
	}
	return VisaFeeForTraveler(country, t)
}

// mergeLiveCost overlays the live fields onto the tier fallback. The merge
// is per-field: a provider that only knows lodging still contributes it.
func mergeLiveCost(fallback CostBreakdown, live *LiveCost) CostBreakdown {
	out := fallback
	if live.Lodging != nil && *live.Lodging >= 0 {
		out.Lodging = *live.Lodging
	}
	if live.Food != nil && *live.Food >= 0 {
		out.Food = *live.Food
	}
	if live.Transport != nil && *live.Transport >= 0 {
		out.Transport = *live.Transport
	}
	if live.Misc != nil && *live.Misc >= 0 {
		out.Misc = *live.Misc
	}
	return out
}
