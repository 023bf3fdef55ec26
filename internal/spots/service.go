// Package spots aggregates charging stations fetched from data.gouv.fr with
// the static local datasets, caches each category, and builds the response
// served by the API.
package spots

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aulemarouille/green-spots-back/internal/cache"
	"github.com/aulemarouille/green-spots-back/internal/model"
)

// Cache keys, one per spot category.
const (
	CacheKeyChargingStations = "charging_stations"
	CacheKeyStaticSpots      = "static_spots"
)

// DefaultTTL is how long each cached category stays fresh.
const DefaultTTL = 24 * time.Hour

// Region and source labels reported in every response.
const regionLabel = "Bretagne"

var sourceLabels = []string{"data.gouv.fr IRVE", "Static JSON data"}

// ErrorMessage is the error field of a degraded response.
const ErrorMessage = "Failed to retrieve spots data"

// StationFetcher retrieves charging stations from the remote API.
type StationFetcher interface {
	FetchChargingStations(ctx context.Context) []model.Spot
}

// StaticLoader loads the curated local datasets.
type StaticLoader interface {
	LoadSpots() []model.Spot
}

// Response is the aggregation result served to clients. It is always
// well-formed: on internal failure every collection is empty and Error is
// set, but the shape never changes.
type Response struct {
	RequestID   string                 `json:"request_id"`
	Spots       []model.Spot           `json:"spots"`
	TotalCount  int                    `json:"total_count"`
	Types       []model.SpotType       `json:"types"`
	TypeCounts  map[model.SpotType]int `json:"type_counts"`
	Region      string                 `json:"region"`
	Sources     []string               `json:"sources"`
	GeneratedAt time.Time              `json:"generated_at"`
	Error       string                 `json:"error,omitempty"`
}

// Service is the aggregation entry point. The cache store is injected so
// tests can observe and fake it.
type Service struct {
	fetcher StationFetcher
	loader  StaticLoader
	store   cache.Store
	ttl     time.Duration
	now     func() time.Time
}

// NewService creates a Service. A zero ttl means DefaultTTL.
func NewService(fetcher StationFetcher, loader StaticLoader, store cache.Store, ttl time.Duration) *Service {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Service{
		fetcher: fetcher,
		loader:  loader,
		store:   store,
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetAllSpots returns every known spot: cached charging stations unioned
// with cached static spots, plus a summary. Whatever goes wrong internally,
// the caller gets a well-formed response: unexpected failures degrade to an
// empty, error-flagged body.
func (s *Service) GetAllSpots(ctx context.Context) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("spot aggregation failed", zap.Any("panic", r))
			resp = s.errorResponse()
		}
	}()

	stations := s.category(CacheKeyChargingStations, func() []model.Spot {
		return s.fetcher.FetchChargingStations(ctx)
	})
	statics := s.category(CacheKeyStaticSpots, s.loader.LoadSpots)

	all := make([]model.Spot, 0, len(stations)+len(statics))
	all = append(all, stations...)
	all = append(all, statics...)

	return s.buildResponse(all)
}

// ClearCache evicts both category entries. Idempotent.
func (s *Service) ClearCache() {
	s.store.Delete(CacheKeyChargingStations)
	s.store.Delete(CacheKeyStaticSpots)
	zap.L().Info("spot cache cleared")
}

// category returns the cached spot list for key, or loads a fresh one and
// caches it. A cached entry of the wrong type is treated as a miss.
func (s *Service) category(key string, load func() []model.Spot) []model.Spot {
	if v, ok := s.store.Get(key); ok {
		if spots, ok := v.([]model.Spot); ok {
			zap.L().Debug("spot cache hit", zap.String("key", key), zap.Int("count", len(spots)))
			return spots
		}
		zap.L().Warn("discarding cache entry of unexpected type", zap.String("key", key))
	}

	spots := load()
	s.store.Set(key, spots, s.ttl)
	zap.L().Info("spot cache refreshed", zap.String("key", key), zap.Int("count", len(spots)))
	return spots
}

func (s *Service) buildResponse(all []model.Spot) Response {
	counts := make(map[model.SpotType]int)
	for _, spot := range all {
		counts[spot.Type]++
	}

	types := make([]model.SpotType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return Response{
		RequestID:   uuid.NewString(),
		Spots:       all,
		TotalCount:  len(all),
		Types:       types,
		TypeCounts:  counts,
		Region:      regionLabel,
		Sources:     sourceLabels,
		GeneratedAt: s.now().UTC(),
	}
}

func (s *Service) errorResponse() Response {
	return Response{
		RequestID:   uuid.NewString(),
		Spots:       []model.Spot{},
		Types:       []model.SpotType{},
		TypeCounts:  map[model.SpotType]int{},
		Region:      regionLabel,
		Sources:     []string{},
		GeneratedAt: s.now().UTC(),
		Error:       ErrorMessage,
	}
}
