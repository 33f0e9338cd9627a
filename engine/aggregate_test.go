package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGateway is a configurable in-memory ProviderGateway. Unset hooks
// behave like a fully degraded provider.
type stubGateway struct {
	cost   func(dest string) *LiveCost
	flight func(origin, dest string) (float64, bool)
	visa   func(nationality, dest string) *VisaDetermination
	image  string
}

func (s *stubGateway) FetchLiveCost(_ context.Context, dest string) *LiveCost {
	if s.cost == nil {
		return nil
	}
	return s.cost(dest)
}

func (s *stubGateway) FetchLiveFlightPrice(_ context.Context, origin, dest string, _ TripWindow) (float64, bool) {
	if s.flight == nil {
		return 0, false
	}
	return s.flight(origin, dest)
}

func (s *stubGateway) FetchLiveVisaDetermination(_ context.Context, nationality, dest string) *VisaDetermination {
	if s.visa == nil {
		return nil
	}
	return s.visa(nationality, dest)
}

func (s *stubGateway) FetchDestinationImage(_ context.Context, _ string) string {
	return s.image
}

func (s *stubGateway) SearchDestinations(_ context.Context, _ string) []DestinationSuggestion {
	return nil
}

func fiveDayWindow() TripWindow {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return TripWindow{Start: start, End: start.AddDate(0, 0, 5)}
}

func TestAggregateOfflineFallback(t *testing.T) {
	agg := NewAggregator(&stubGateway{}, nil)

	results, err := agg.Aggregate(context.Background(), AggregateRequest{
		Destinations: []string{"Paris, France", "Tokyo, Japan"},
		Travelers:    []Traveler{{Name: "Asha", Nationalities: []string{"India"}}},
		Window:       fiveDayWindow(),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Both are expensive-tier cities; Tokyo wins because Japan charges no
	// visa fee while France takes the Schengen fee.
	tokyo, paris := results[0], results[1]
	assert.Equal(t, "Tokyo, Japan", tokyo.Destination)
	assert.Equal(t, "Paris, France", paris.Destination)

	assert.Equal(t, 500.0, tokyo.FlightCost)
	assert.Equal(t, 1375.0, tokyo.TripDaily)
	assert.Equal(t, 0.0, tokyo.VisaFee)
	assert.Equal(t, 1875.0, tokyo.Total)
	assert.Equal(t, "estimated", tokyo.Source)

	assert.InDelta(t, schengenVisaFee, paris.VisaFee, 0.001)
	assert.Equal(t, 1981.0, paris.Total)
	assert.Equal(t, "Japan", tokyo.Country)
	assert.Equal(t, "France", paris.Country)
}

func TestAggregateOriginLowersFallbackFare(t *testing.T) {
	agg := NewAggregator(&stubGateway{}, nil)

	results, err := agg.Aggregate(context.Background(), AggregateRequest{
		Destinations: []string{"Istanbul, Turkey"},
		Travelers:    []Traveler{{Nationalities: []string{"United States"}}},
		Window:       fiveDayWindow(),
		Origin:       "London, United Kingdom",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 450.0, results[0].FlightCost)
}

func TestAggregateLiveMerge(t *testing.T) {
	lodging := 200.0
	gw := &stubGateway{
		cost: func(dest string) *LiveCost {
			if dest == "Paris, France" {
				return &LiveCost{Lodging: &lodging}
			}
			return nil
		},
		flight: func(_, dest string) (float64, bool) {
			if dest == "Paris, France" {
				return 420, true
			}
			return 0, false
		},
	}
	agg := NewAggregator(gw, nil)

	results, err := agg.Aggregate(context.Background(), AggregateRequest{
		Destinations: []string{"Paris, France"},
		Travelers:    []Traveler{{Nationalities: []string{"India"}}},
		Window:       fiveDayWindow(),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	paris := results[0]
	// Only lodging came from the provider; the other fields keep the tier.
	assert.Equal(t, 200.0, paris.Breakdown.Lodging)
	assert.Equal(t, 75.0, paris.Breakdown.Food)
	assert.Equal(t, 420.0, paris.FlightCost)
	assert.Equal(t, 1675.0, paris.TripDaily)
	// 420 + 1675 + 105.62, rounded.
	assert.Equal(t, 2201.0, paris.Total)
	assert.Equal(t, "live", paris.Source)
}

func TestAggregateLiveVisaDeterminationWins(t *testing.T) {
	gw := &stubGateway{
		visa: func(nationality, _ string) *VisaDetermination {
			if nationality == "India" {
				return &VisaDetermination{Required: true, FeeUSD: 35}
			}
			return nil
		},
	}
	agg := NewAggregator(gw, nil)

	results, err := agg.Aggregate(context.Background(), AggregateRequest{
		Destinations: []string{"Paris, France"},
		Travelers: []Traveler{
			{Name: "A", Nationalities: []string{"India"}},
			{Name: "B", Nationalities: []string{"Brazil"}},
		},
		Window: fiveDayWindow(),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Traveler A gets the live fee, traveler B falls back to the rule table.
	assert.InDelta(t, 35+schengenVisaFee, results[0].VisaFee, 0.001)
	require.Len(t, results[0].Travelers, 2)
	assert.Equal(t, 35.0, results[0].Travelers[0].VisaFee)
	assert.InDelta(t, schengenVisaFee, results[0].Travelers[1].VisaFee, 0.001)
}

func TestAggregateValidation(t *testing.T) {
	agg := NewAggregator(&stubGateway{}, nil)

	_, err := agg.Aggregate(context.Background(), AggregateRequest{Window: fiveDayWindow()})
	assert.ErrorIs(t, err, ErrNoDestinations)

	_, err = agg.Aggregate(context.Background(), AggregateRequest{Destinations: []string{"Paris, France"}})
	assert.ErrorIs(t, err, ErrNoDateWindow)
}

func TestAggregateCapsDestinations(t *testing.T) {
	agg := NewAggregator(&stubGateway{}, nil)

	results, err := agg.Aggregate(context.Background(), AggregateRequest{
		Destinations: []string{"A", "B", "C", "D", "E", "F", "G"},
		Window:       fiveDayWindow(),
	})
	require.NoError(t, err)
	assert.Len(t, results, maxDestinations)
}

func TestAggregateDefaultsToSingleTraveler(t *testing.T) {
	agg := NewAggregator(&stubGateway{}, nil)

	results, err := agg.Aggregate(context.Background(), AggregateRequest{
		Destinations: []string{"Paris, France"},
		Window:       fiveDayWindow(),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].Travelers, 1)
	assert.Equal(t, "Traveler", results[0].Travelers[0].Name)
	assert.InDelta(t, schengenVisaFee, results[0].VisaFee, 0.001)
}

// blockingGateway parks the first FetchLiveCost call until released, so a
// second Aggregate can overlap it deterministically.
func blockingGateway() (gw *stubGateway, firstEntered, release chan struct{}) {
	var taken atomic.Bool
	firstEntered = make(chan struct{})
	release = make(chan struct{})
	gw = &stubGateway{
		cost: func(_ string) *LiveCost {
			if taken.CompareAndSwap(false, true) {
				close(firstEntered)
				<-release
			}
			return nil
		},
	}
	return gw, firstEntered, release
}

func TestAggregateSupersededWithinSession(t *testing.T) {
	gw, firstEntered, release := blockingGateway()
	agg := NewAggregator(gw, nil)
	req := AggregateRequest{
		Destinations: []string{"Paris, France"},
		Window:       fiveDayWindow(),
		SessionKey:   "session-a",
	}

	errc := make(chan error, 1)
	go func() {
		_, err := agg.Aggregate(context.Background(), req)
		errc <- err
	}()

	<-firstEntered
	_, err := agg.Aggregate(context.Background(), req)
	require.NoError(t, err)

	close(release)
	assert.ErrorIs(t, <-errc, ErrSuperseded)
}

func TestAggregateConcurrentSessionsDoNotSupersede(t *testing.T) {
	gw, firstEntered, release := blockingGateway()
	agg := NewAggregator(gw, nil)

	first := AggregateRequest{
		Destinations: []string{"Paris, France"},
		Window:       fiveDayWindow(),
		SessionKey:   "user-a",
	}
	second := AggregateRequest{
		Destinations: []string{"Tokyo, Japan"},
		Window:       fiveDayWindow(),
		SessionKey:   "user-b",
	}

	type outcome struct {
		results []DestinationResult
		err     error
	}
	firstDone := make(chan outcome, 1)
	go func() {
		results, err := agg.Aggregate(context.Background(), first)
		firstDone <- outcome{results, err}
	}()

	// Overlap a second user's search while the first is still in flight.
	<-firstEntered
	results, err := agg.Aggregate(context.Background(), second)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Tokyo, Japan", results[0].Destination)

	close(release)
	got := <-firstDone
	require.NoError(t, got.err)
	require.Len(t, got.results, 1)
	assert.Equal(t, "Paris, France", got.results[0].Destination)
}

func TestAggregateWithoutSessionKeyNeverSupersedes(t *testing.T) {
	gw, firstEntered, release := blockingGateway()
	agg := NewAggregator(gw, nil)
	req := AggregateRequest{
		Destinations: []string{"Paris, France"},
		Window:       fiveDayWindow(),
	}

	errc := make(chan error, 1)
	go func() {
		_, err := agg.Aggregate(context.Background(), req)
		errc <- err
	}()

	<-firstEntered
	_, err := agg.Aggregate(context.Background(), req)
	require.NoError(t, err)

	close(release)
	assert.NoError(t, <-errc)
}

func TestAggregateIdempotent(t *testing.T) {
	agg := NewAggregator(&stubGateway{}, nil)
	req := AggregateRequest{
		Destinations: []string{"Paris, France", "Delhi, India", "Istanbul, Turkey"},
		Travelers:    []Traveler{{Name: "Asha", Nationalities: []string{"India"}}},
		Window:       fiveDayWindow(),
	}

	first, err := agg.Aggregate(context.Background(), req)
	require.NoError(t, err)
	second, err := agg.Aggregate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAggregateDegradationIsolatedPerDestination(t *testing.T) {
	lodging := 210.0
	gw := &stubGateway{
		cost: func(dest string) *LiveCost {
			if dest == "Paris, France" {
				return &LiveCost{Lodging: &lodging}
			}
			return nil
		},
		flight: func(_, dest string) (float64, bool) {
			if dest == "Paris, France" {
				return 410, true
			}
			return 0, false
		},
	}
	agg := NewAggregator(gw, nil)
	travelers := []Traveler{{Nationalities: []string{"India"}}}

	both, err := agg.Aggregate(context.Background(), AggregateRequest{
		Destinations: []string{"Paris, France", "Atlantis"},
		Travelers:    travelers,
		Window:       fiveDayWindow(),
	})
	require.NoError(t, err)
	require.Len(t, both, 2)

	// The fully degraded destination still appears, on heuristic values.
	atlantis := both[0]
	assert.Equal(t, "Atlantis", atlantis.Destination)
	assert.Equal(t, "estimated", atlantis.Source)
	assert.Equal(t, 500.0, atlantis.FlightCost)
	assert.Equal(t, 970.0, atlantis.Total)

	// And the live destination is untouched by its neighbor's failures:
	// value-equal to a run without the degraded destination.
	solo, err := agg.Aggregate(context.Background(), AggregateRequest{
		Destinations: []string{"Paris, France"},
		Travelers:    travelers,
		Window:       fiveDayWindow(),
	})
	require.NoError(t, err)
	require.Len(t, solo, 1)
	assert.Equal(t, solo[0], both[1])
}

func TestTripWindowDays(t *testing.T) {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, TripWindow{Start: start, End: start}.Days())
	assert.Equal(t, 1, TripWindow{Start: start, End: start.AddDate(0, 0, -3)}.Days())
	assert.Equal(t, 3, TripWindow{Start: start, End: start.AddDate(0, 0, 3)}.Days())
	// Half-day remainders round to the nearest day.
	assert.Equal(t, 4, TripWindow{Start: start, End: start.Add(3*24*time.Hour + 13*time.Hour)}.Days())
}

func TestExtractCountry(t *testing.T) {
	assert.Equal(t, "France", ExtractCountry("Paris, France"))
	assert.Equal(t, "Turkey", ExtractCountry("Istanbul, Turkey"))
	assert.Equal(t, "Singapore", ExtractCountry("Singapore"))
	assert.Equal(t, "USA", ExtractCountry("New York, NY, USA"))
}
