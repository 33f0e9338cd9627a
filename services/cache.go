package services

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"tripgenie/engine"
)

// Cache TTLs per provider. Flight and visa answers go stale fastest;
// destination photos barely change.
const (
	flightCacheTTL = 12 * time.Hour
	costCacheTTL   = 24 * time.Hour
	visaCacheTTL   = 12 * time.Hour
	imageCacheTTL  = 7 * 24 * time.Hour
)

// cacheWriteTimeout bounds one background cache write.
const cacheWriteTimeout = 5 * time.Second

// CacheStore is the persistence surface the cached gateway needs. Reads
// degrade to a miss; writes may fail silently.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	PutCache(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

type cacheWrite struct {
	key     string
	payload []byte
	ttl     time.Duration
}

// CachedGateway decorates a ProviderGateway with a TTL cache. Cache reads
// are treated like any other provider call; writes are queued to a
// background worker and never block the response path.
type CachedGateway struct {
	inner  engine.ProviderGateway
	store  CacheStore
	logger *zap.Logger
	writes chan cacheWrite
	done   chan struct{}
}

var _ engine.ProviderGateway = (*CachedGateway)(nil)

// NewCachedGateway wraps inner with the given cache store and starts the
// write worker. Call Close to drain it.
func NewCachedGateway(inner engine.ProviderGateway, store CacheStore, logger *zap.Logger) *CachedGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &CachedGateway{
		inner:  inner,
		store:  store,
		logger: logger,
		writes: make(chan cacheWrite, 64),
		done:   make(chan struct{}),
	}
	go g.writeLoop()
	return g
}

// Close stops accepting writes and waits for the queue to drain.
func (g *CachedGateway) Close() {
	close(g.writes)
	<-g.done
}

func (g *CachedGateway) writeLoop() {
	defer close(g.done)
	for w := range g.writes {
		ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		if err := g.store.PutCache(ctx, w.key, w.payload, w.ttl); err != nil {
			g.logger.Warn("cache write failed", zap.String("key", w.key), zap.Error(err))
		}
		cancel()
	}
}

// enqueue hands a write to the background worker, dropping it if the queue
// is full. A dropped cache write only costs a future provider call.
func (g *CachedGateway) enqueue(key string, payload []byte, ttl time.Duration) {
	select {
	case g.writes <- cacheWrite{key: key, payload: payload, ttl: ttl}:
	default:
		g.logger.Warn("cache write queue full, dropping entry", zap.String("key", key))
	}
}

// ─── Gateway methods ─────────────────────────────────────────────────────────

type cachedCost struct {
	Lodging   *float64 `json:"lodging,omitempty"`
	Food      *float64 `json:"food,omitempty"`
	Transport *float64 `json:"transport,omitempty"`
	Misc      *float64 `json:"misc,omitempty"`
}

func (g *CachedGateway) FetchLiveCost(ctx context.Context, destination string) *engine.LiveCost {
	key := cacheKey("cost", destination)
	if payload, ok := g.store.GetCache(ctx, key); ok {
		var c cachedCost
		if err := json.Unmarshal(payload, &c); err == nil {
			return &engine.LiveCost{Lodging: c.Lodging, Food: c.Food, Transport: c.Transport, Misc: c.Misc}
		}
	}

	live := g.inner.FetchLiveCost(ctx, destination)
	if live != nil {
		if payload, err := json.Marshal(cachedCost{
			Lodging: live.Lodging, Food: live.Food, Transport: live.Transport, Misc: live.Misc,
		}); err == nil {
			g.enqueue(key, payload, costCacheTTL)
		}
	}
	return live
}

type cachedFlight struct {
	Price float64 `json:"price"`
}

func (g *CachedGateway) FetchLiveFlightPrice(ctx context.Context, origin, destination string, window engine.TripWindow) (float64, bool) {
	key := cacheKey("flight", origin, destination)
	if payload, ok := g.store.GetCache(ctx, key); ok {
		var f cachedFlight
		if err := json.Unmarshal(payload, &f); err == nil && f.Price > 0 {
			return f.Price, true
		}
	}

	price, ok := g.inner.FetchLiveFlightPrice(ctx, origin, destination, window)
	if ok {
		if payload, err := json.Marshal(cachedFlight{Price: price}); err == nil {
			g.enqueue(key, payload, flightCacheTTL)
		}
	}
	return price, ok
}

func (g *CachedGateway) FetchLiveVisaDetermination(ctx context.Context, nationality, destination string) *engine.VisaDetermination {
	key := cacheKey("visa", nationality, destination)
	if payload, ok := g.store.GetCache(ctx, key); ok {
		var det engine.VisaDetermination
		if err := json.Unmarshal(payload, &det); err == nil {
			return &det
		}
	}

	det := g.inner.FetchLiveVisaDetermination(ctx, nationality, destination)
	if det != nil {
		if payload, err := json.Marshal(det); err == nil {
			g.enqueue(key, payload, visaCacheTTL)
		}
	}
	return det
}

type cachedImage struct {
	URL string `json:"url"`
}

func (g *CachedGateway) FetchDestinationImage(ctx context.Context, destination string) string {
	key := cacheKey("img", destination)
	if payload, ok := g.store.GetCache(ctx, key); ok {
		var img cachedImage
		if err := json.Unmarshal(payload, &img); err == nil && img.URL != "" {
			return img.URL
		}
	}

	imgURL := g.inner.FetchDestinationImage(ctx, destination)
	if imgURL != "" {
		if payload, err := json.Marshal(cachedImage{URL: imgURL}); err == nil {
			g.enqueue(key, payload, imageCacheTTL)
		}
	}
	return imgURL
}

// SearchDestinations is not cached: suggestions are cheap and query-shaped.
func (g *CachedGateway) SearchDestinations(ctx context.Context, query string) []engine.DestinationSuggestion {
	return g.inner.SearchDestinations(ctx, query)
}

// ─── Key normalization ───────────────────────────────────────────────────────

var keyCleaner = regexp.MustCompile(`\s+`)

// cacheKey joins the parts into a lowercase, underscore-separated key.
func cacheKey(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		cleaned = append(cleaned, keyCleaner.ReplaceAllString(strings.ToLower(strings.TrimSpace(p)), "_"))
	}
	return strings.Join(cleaned, "_")
}
