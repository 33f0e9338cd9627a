package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tripgenie/database"
	"tripgenie/engine"
)

// offlineGateway is a fully degraded ProviderGateway: every estimate comes
// from the fallback tables.
type offlineGateway struct {
	suggestions []engine.DestinationSuggestion
}

func (offlineGateway) FetchLiveCost(context.Context, string) *engine.LiveCost { return nil }
func (offlineGateway) FetchLiveFlightPrice(context.Context, string, string, engine.TripWindow) (float64, bool) {
	return 0, false
}
func (offlineGateway) FetchLiveVisaDetermination(context.Context, string, string) *engine.VisaDetermination {
	return nil
}
func (offlineGateway) FetchDestinationImage(context.Context, string) string { return "" }
func (g offlineGateway) SearchDestinations(context.Context, string) []engine.DestinationSuggestion {
	return g.suggestions
}

// fakeSearchStore records saves and can be told to fail.
type fakeSearchStore struct {
	mu        sync.Mutex
	searches  []*database.Search
	estimates []*database.Estimate
	fail      bool
}

func (s *fakeSearchStore) SaveSearch(_ context.Context, sr *database.Search) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return assert.AnError
	}
	s.searches = append(s.searches, sr)
	return nil
}

func (s *fakeSearchStore) SaveEstimate(_ context.Context, e *database.Estimate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return assert.AnError
	}
	s.estimates = append(s.estimates, e)
	return nil
}

func newEstimateRouter(store SearchStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	agg := engine.NewAggregator(offlineGateway{}, nil)
	h := NewEstimateHandler(agg, nil, store, nil, zap.NewNop())
	h.RegisterRoutes(r.Group("/api"))
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validEstimateRequest() map[string]any {
	return map[string]any{
		"destinations": []string{"Paris, France", "Tokyo, Japan"},
		"travelers": []map[string]any{
			{"name": "Asha", "nationalities": []string{"India"}},
		},
		"start_date": "2026-09-01",
		"end_date":   "2026-09-06",
	}
}

func TestEstimateEndpoint(t *testing.T) {
	store := &fakeSearchStore{}
	r := newEstimateRouter(store)

	w := postJSON(t, r, "/api/estimate", validEstimateRequest())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp EstimateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.SearchID)
	assert.Equal(t, 5, resp.Days)
	assert.Equal(t, "estimated", resp.Source)
	require.Len(t, resp.Results, 2)
	// Tokyo ranks first: no visa fee for an Indian national.
	assert.Equal(t, "Tokyo, Japan", resp.Results[0].Destination)
	assert.Equal(t, 1875.0, resp.Results[0].Total)
	assert.NotEmpty(t, resp.Insights)

	// Both rows were persisted under the returned search ID.
	require.Len(t, store.searches, 1)
	require.Len(t, store.estimates, 1)
	assert.Equal(t, resp.SearchID, store.searches[0].ID)
	assert.Equal(t, resp.SearchID, store.estimates[0].SearchID)
}

func TestEstimateEndpointLegacyTravelerFields(t *testing.T) {
	r := newEstimateRouter(&fakeSearchStore{})

	body := validEstimateRequest()
	body["destinations"] = []string{"Paris, France"}
	body["travelers"] = []map[string]any{
		{"name": "Lee", "nationality": "India", "residency": "Schengen residence permit"},
	}
	w := postJSON(t, r, "/api/estimate", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp EstimateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	// The residency permit waives the Schengen fee.
	assert.Equal(t, 0.0, resp.Results[0].VisaFee)
}

func TestEstimateEndpointValidation(t *testing.T) {
	r := newEstimateRouter(&fakeSearchStore{})

	t.Run("missing destinations", func(t *testing.T) {
		body := validEstimateRequest()
		delete(body, "destinations")
		w := postJSON(t, r, "/api/estimate", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("too many destinations", func(t *testing.T) {
		body := validEstimateRequest()
		body["destinations"] = []string{"A", "B", "C", "D", "E", "F"}
		w := postJSON(t, r, "/api/estimate", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad date", func(t *testing.T) {
		body := validEstimateRequest()
		body["start_date"] = "01/09/2026"
		w := postJSON(t, r, "/api/estimate", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "YYYY-MM-DD")
	})

	t.Run("not json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/estimate", bytes.NewReader([]byte("nope")))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestEstimateEndpointWithSessionID(t *testing.T) {
	r := newEstimateRouter(&fakeSearchStore{})

	// Same session, sequential submits: the earlier one already finished, so
	// nothing is superseded and both succeed.
	body := validEstimateRequest()
	body["session_id"] = "session-1"
	for i := 0; i < 2; i++ {
		w := postJSON(t, r, "/api/estimate", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
}

func TestEstimateEndpointSurvivesStorageFailure(t *testing.T) {
	r := newEstimateRouter(&fakeSearchStore{fail: true})

	w := postJSON(t, r, "/api/estimate", validEstimateRequest())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp EstimateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Results, 2)
}

func TestTravelerRequestNormalization(t *testing.T) {
	legacy := TravelerRequest{Name: "A", Nationality: "India", Residency: "US Green Card"}
	got := legacy.toTraveler()
	assert.Equal(t, []string{"India"}, got.Nationalities)
	assert.Equal(t, []string{"US Green Card"}, got.Residencies)

	// Array fields win over the legacy singular ones.
	both := TravelerRequest{Nationalities: []string{"France", "India"}, Nationality: "Brazil"}
	assert.Equal(t, []string{"France", "India"}, both.toTraveler().Nationalities)
}
