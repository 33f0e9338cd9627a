package services

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"tripgenie/engine"
)

// providerTimeout bounds every outbound provider call. A slow provider
// degrades to a fallback value instead of stalling the whole comparison.
const providerTimeout = 2 * time.Second

// Curated suggestions served when the live city search has nothing.
var fallbackCities = []string{
	"Paris, France",
	"London, United Kingdom",
	"Rome, Italy",
	"Barcelona, Spain",
	"Amsterdam, Netherlands",
	"Berlin, Germany",
	"Lisbon, Portugal",
	"Istanbul, Turkey",
	"Dubai, United Arab Emirates",
	"Bangkok, Thailand",
	"Singapore",
	"Tokyo, Japan",
	"New York, USA",
	"Los Angeles, USA",
	"Toronto, Canada",
	"Sydney, Australia",
	"Hong Kong, China",
	"Seoul, South Korea",
	"Bali, Indonesia",
	"Cape Town, South Africa",
}

// GatewayConfig carries API keys and base URLs for the live providers.
// Every key is optional; a missing key means that capability degrades
// immediately to its fallback.
type GatewayConfig struct {
	AviationStackKey string
	TravelBuddyKey   string
	PexelsKey        string

	FlightBaseURL string
	CostBaseURL   string
	VisaBaseURL   string
	ImageBaseURL  string
	SearchBaseURL string
}

// GatewayConfigFromEnv reads provider settings from the environment.
func GatewayConfigFromEnv() GatewayConfig {
	return GatewayConfig{
		AviationStackKey: os.Getenv("AVIATIONSTACK_KEY"),
		TravelBuddyKey:   os.Getenv("TRAVEL_BUDDY_KEY"),
		PexelsKey:        os.Getenv("PEXELS_KEY"),
	}
}

// Gateway is the HTTP implementation of engine.ProviderGateway. Each lookup
// hits one external service, carries its own timeout, and resolves to a
// degraded value on any failure; errors never leave this type.
type Gateway struct {
	cfg        GatewayConfig
	httpClient *http.Client
	logger     *zap.Logger
}

var _ engine.ProviderGateway = (*Gateway)(nil)

// NewGateway builds a live provider gateway.
func NewGateway(cfg GatewayConfig, logger *zap.Logger) *Gateway {
	if cfg.FlightBaseURL == "" {
		cfg.FlightBaseURL = "http://api.aviationstack.com"
	}
	if cfg.CostBaseURL == "" {
		cfg.CostBaseURL = "https://api.teleport.org"
	}
	if cfg.VisaBaseURL == "" {
		cfg.VisaBaseURL = "https://travel-buddy.p.rapidapi.com"
	}
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = "https://api.pexels.com"
	}
	if cfg.SearchBaseURL == "" {
		cfg.SearchBaseURL = "https://api.teleport.org"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: providerTimeout},
		logger:     logger,
	}
}

// ─── Live cost ───────────────────────────────────────────────────────────────

type teleportDetailsResponse struct {
	Categories []struct {
		ID   string `json:"id"`
		Data []struct {
			ID    string  `json:"id"`
			Value float64 `json:"currency_dollar_value"`
		} `json:"data"`
	} `json:"categories"`
}

// FetchLiveCost queries the urban-area cost-of-living details and maps the
// line items it recognizes onto breakdown fields. The result can be partial:
// unrecognized items leave their field nil for the tier fallback.
func (g *Gateway) FetchLiveCost(ctx context.Context, destination string) *engine.LiveCost {
	slug := strings.ReplaceAll(strings.ToLower(cityPart(destination)), " ", "-")
	endpoint := fmt.Sprintf("%s/api/urban_areas/slug:%s/details/", g.cfg.CostBaseURL, url.PathEscape(slug))

	body, err := g.getJSON(ctx, endpoint, nil)
	if err != nil {
		g.logger.Warn("cost provider unavailable", zap.String("destination", destination), zap.Error(err))
		return nil
	}

	var resp teleportDetailsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		g.logger.Warn("cost provider returned malformed payload", zap.String("destination", destination), zap.Error(err))
		return nil
	}

	out := &engine.LiveCost{}
	found := false
	for _, cat := range resp.Categories {
		if cat.ID != "COST-OF-LIVING" {
			continue
		}
		for _, item := range cat.Data {
			id := strings.ToUpper(item.ID)
			v := item.Value
			if v <= 0 {
				continue
			}
			switch {
			case strings.Contains(id, "RENT") || strings.Contains(id, "APARTMENT"):
				// Monthly rent figure, scaled to a nightly rate.
				nightly := v / 30
				out.Lodging = &nightly
				found = true
			case strings.Contains(id, "RESTAURANT") || strings.Contains(id, "MEAL") || strings.Contains(id, "LUNCH"):
				daily := v * 2 // two meals out per day
				out.Food = &daily
				found = true
			case strings.Contains(id, "TRANSPORT") || strings.Contains(id, "TAXI") || strings.Contains(id, "PUBLIC"):
				out.Transport = &v
				found = true
			}
		}
	}
	if !found {
		return nil
	}
	return out
}

// ─── Live flight price ───────────────────────────────────────────────────────

type aviationFlightsResponse struct {
	Data []struct {
		FlightStatus string `json:"flight_status"`
	} `json:"data"`
}

// FetchLiveFlightPrice estimates a round-trip fare from the scheduled-flight
// feed. The feed has schedules, not fares, so the estimate is derived
// deterministically from the route with a surcharge for confirmed service.
func (g *Gateway) FetchLiveFlightPrice(ctx context.Context, origin, destination string, window engine.TripWindow) (float64, bool) {
	if g.cfg.AviationStackKey == "" {
		return 0, false
	}

	endpoint := fmt.Sprintf("%s/v1/flights?access_key=%s&dep_iata=%s&arr_iata=%s",
		g.cfg.FlightBaseURL,
		url.QueryEscape(g.cfg.AviationStackKey),
		url.QueryEscape(iataGuess(origin)),
		url.QueryEscape(iataGuess(destination)),
	)

	body, err := g.getJSON(ctx, endpoint, nil)
	if err != nil {
		g.logger.Warn("flight provider unavailable", zap.String("destination", destination), zap.Error(err))
		return 0, false
	}

	var resp aviationFlightsResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Data) == 0 {
		return 0, false
	}

	price := routeFareEstimate(origin, destination)
	if resp.Data[0].FlightStatus == "scheduled" {
		price += 100
	}
	return price, true
}

// routeFareEstimate maps a route onto a stable $300-700 fare band.
func routeFareEstimate(origin, destination string) float64 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(origin + "|" + destination)))
	return float64(300 + h.Sum32()%400)
}

// ─── Live visa determination ─────────────────────────────────────────────────

type travelBuddyResponse struct {
	Data struct {
		VisaFree     bool            `json:"visa_free"`
		VisaRequired bool            `json:"visa_required"`
		VisaFee      json.RawMessage `json:"visa_fee"`
	} `json:"data"`
}

// FetchLiveVisaDetermination asks the visa-policy service about one
// nationality/destination pair.
func (g *Gateway) FetchLiveVisaDetermination(ctx context.Context, nationality, destination string) *engine.VisaDetermination {
	if g.cfg.TravelBuddyKey == "" || nationality == "" {
		return nil
	}

	endpoint := fmt.Sprintf("%s/api/v1/visa-policy?nationality=%s&destination=%s",
		g.cfg.VisaBaseURL,
		url.QueryEscape(nationality),
		url.QueryEscape(destination),
	)
	headers := map[string]string{
		"x-rapidapi-key":  g.cfg.TravelBuddyKey,
		"x-rapidapi-host": "travel-buddy.p.rapidapi.com",
	}

	body, err := g.getJSON(ctx, endpoint, headers)
	if err != nil {
		g.logger.Warn("visa provider unavailable",
			zap.String("nationality", nationality),
			zap.String("destination", destination),
			zap.Error(err))
		return nil
	}

	var resp travelBuddyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		g.logger.Warn("visa provider returned malformed payload", zap.Error(err))
		return nil
	}

	switch {
	case resp.Data.VisaFree:
		return &engine.VisaDetermination{Required: false, FeeUSD: 0}
	case resp.Data.VisaRequired:
		fee := parseFee(resp.Data.VisaFee)
		if fee <= 0 {
			fee = 80 // service sometimes omits the fee for required visas
		}
		return &engine.VisaDetermination{Required: true, FeeUSD: fee}
	default:
		// Ambiguous answer: let the rule table decide.
		return nil
	}
}

// parseFee tolerates the fee arriving as a number or a quoted string.
func parseFee(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		fmt.Sscanf(s, "%f", &n)
	}
	return n
}

// ─── Images ──────────────────────────────────────────────────────────────────

type pexelsResponse struct {
	Photos []struct {
		Src struct {
			Medium string `json:"medium"`
		} `json:"src"`
	} `json:"photos"`
}

// FetchDestinationImage returns a representative photo URL, defaulting to a
// keyword-based Unsplash URL when the photo service has nothing.
func (g *Gateway) FetchDestinationImage(ctx context.Context, destination string) string {
	fallback := "https://source.unsplash.com/800x600/?" + url.QueryEscape(destination)
	if g.cfg.PexelsKey == "" {
		return fallback
	}

	endpoint := fmt.Sprintf("%s/v1/search?query=%s&per_page=1",
		g.cfg.ImageBaseURL, url.QueryEscape(destination))
	headers := map[string]string{"Authorization": g.cfg.PexelsKey}

	body, err := g.getJSON(ctx, endpoint, headers)
	if err != nil {
		return fallback
	}

	var resp pexelsResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Photos) == 0 {
		return fallback
	}
	return resp.Photos[0].Src.Medium
}

// ─── City search ─────────────────────────────────────────────────────────────

type teleportSearchResponse struct {
	Embedded struct {
		Results []struct {
			MatchingFullName string `json:"matching_full_name"`
		} `json:"city:search-results"`
	} `json:"_embedded"`
}

// SearchDestinations serves autocomplete. Live city search first, then the
// curated list filtered by the query.
func (g *Gateway) SearchDestinations(ctx context.Context, query string) []engine.DestinationSuggestion {
	if query != "" {
		endpoint := fmt.Sprintf("%s/api/cities/?search=%s&limit=10",
			g.cfg.SearchBaseURL, url.QueryEscape(query))
		if body, err := g.getJSON(ctx, endpoint, nil); err == nil {
			var resp teleportSearchResponse
			if err := json.Unmarshal(body, &resp); err == nil && len(resp.Embedded.Results) > 0 {
				out := make([]engine.DestinationSuggestion, 0, len(resp.Embedded.Results))
				for _, r := range resp.Embedded.Results {
					out = append(out, engine.DestinationSuggestion{
						Label:   r.MatchingFullName,
						Country: engine.ExtractCountry(r.MatchingFullName),
					})
				}
				return out
			}
		} else {
			g.logger.Debug("city search unavailable", zap.String("query", query), zap.Error(err))
		}
	}

	q := strings.ToLower(query)
	out := make([]engine.DestinationSuggestion, 0, len(fallbackCities))
	for _, c := range fallbackCities {
		if q == "" || strings.Contains(strings.ToLower(c), q) {
			out = append(out, engine.DestinationSuggestion{
				Label:   c,
				Country: engine.ExtractCountry(c),
			})
		}
	}
	return out
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// getJSON performs a bounded GET and returns the body for 2xx responses.
func (g *Gateway) getJSON(ctx context.Context, endpoint string, headers map[string]string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider error (%d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// cityPart returns the city segment of a "City, Country" label.
func cityPart(label string) string {
	parts := strings.Split(label, ",")
	return strings.TrimSpace(parts[0])
}

// iataGuess coerces a label into a three-letter code the flight feed
// accepts. Real codes pass through; city names are truncated, which at
// worst yields a miss and a fallback fare.
func iataGuess(label string) string {
	s := strings.ToUpper(strings.TrimSpace(cityPart(label)))
	s = strings.ReplaceAll(s, " ", "")
	if len(s) > 3 {
		s = s[:3]
	}
	return s
}
