package engine

import "context"

// VisaDetermination is a live visa-policy answer for one
// nationality/destination pair.
type VisaDetermination struct {
	Required bool    `json:"required"`
	FeeUSD   float64 `json:"fee_usd"`
}

// DestinationSuggestion is an autocomplete entry for the destination picker.
type DestinationSuggestion struct {
	Label   string `json:"label"`
	Country string `json:"country"`
}

// LiveCost is a partial live cost breakdown. Nil fields were not supplied by
// the provider and fall back per-field to the cost tier.
type LiveCost struct {
	Lodging   *float64
	Food      *float64
	Transport *float64
	Misc      *float64
}

// ProviderGateway is the boundary to the live flight/cost/visa/image
// services. Implementations must bound each call with a timeout and degrade
// to nil (or zero with ok=false) instead of returning hard errors: the
// aggregator treats every miss as "use the heuristic fallback".
type ProviderGateway interface {
	// FetchLiveCost returns a possibly-partial daily cost breakdown, or nil
	// when the provider has nothing for the destination.
	FetchLiveCost(ctx context.Context, destination string) *LiveCost

	// FetchLiveFlightPrice returns a round-trip fare estimate in USD.
	// ok is false when no live price is available.
	FetchLiveFlightPrice(ctx context.Context, origin, destination string, window TripWindow) (price float64, ok bool)

	// FetchLiveVisaDetermination returns the live visa policy for a
	// nationality/destination pair, or nil on any failure.
	FetchLiveVisaDetermination(ctx context.Context, nationality, destination string) *VisaDetermination

	// FetchDestinationImage returns an illustrative image URL, or "" when
	// unavailable. Not cost-relevant.
	FetchDestinationImage(ctx context.Context, destination string) string

	// SearchDestinations returns autocomplete suggestions for a free-text
	// query. An empty slice is a valid degraded answer.
	SearchDestinations(ctx context.Context, query string) []DestinationSuggestion
}
