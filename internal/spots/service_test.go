package spots

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulemarouille/green-spots-back/internal/cache"
	"github.com/aulemarouille/green-spots-back/internal/model"
	"github.com/aulemarouille/green-spots-back/internal/staticdata"
	"github.com/aulemarouille/green-spots-back/pkg/datagouv"
)

type fakeFetcher struct {
	spots []model.Spot
	calls int
	explode bool
}

func (f *fakeFetcher) FetchChargingStations(ctx context.Context) []model.Spot {
	f.calls++
	if f.explode {
		panic("fetcher exploded")
	}
	return f.spots
}

type fakeLoader struct {
	spots []model.Spot
	calls int
}

func (l *fakeLoader) LoadSpots() []model.Spot {
	l.calls++
	return l.spots
}

// recordingStore wraps the in-process store and records Set TTLs.
type recordingStore struct {
	cache.Store
	ttls map[string]time.Duration
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Store: cache.NewMemory(), ttls: map[string]time.Duration{}}
}

func (r *recordingStore) Set(key string, value any, ttl time.Duration) {
	r.ttls[key] = ttl
	r.Store.Set(key, value, ttl)
}

func station(name string, lat, lon float64) model.Spot {
	return model.Spot{
		Name: name, Type: model.SpotTypeChargingStation,
		Latitude: lat, Longitude: lon,
		Certifications: []string{}, Specialties: []string{},
	}
}

func producer(name string, lat, lon float64) model.Spot {
	return model.Spot{
		Name: name, Type: model.SpotTypeLocalProducer,
		Latitude: lat, Longitude: lon,
		Certifications: []string{}, Specialties: []string{},
	}
}

func TestGetAllSpotsMergesAndSummarizes(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{spots: []model.Spot{
		station("Borne A", 48.1, -1.7),
		station("Borne B", 47.7, -3.4),
	}}
	loader := &fakeLoader{spots: []model.Spot{producer("Ferme", 48.0, -2.0)}}

	svc := NewService(fetcher, loader, cache.NewMemory(), 0)
	resp := svc.GetAllSpots(context.Background())

	assert.Empty(t, resp.Error)
	assert.Equal(t, 3, resp.TotalCount)
	assert.Len(t, resp.Spots, 3)
	assert.Equal(t, []model.SpotType{model.SpotTypeChargingStation, model.SpotTypeLocalProducer}, resp.Types)
	assert.Equal(t, map[model.SpotType]int{
		model.SpotTypeChargingStation: 2,
		model.SpotTypeLocalProducer:   1,
	}, resp.TypeCounts)
	assert.Equal(t, "Bretagne", resp.Region)
	assert.Equal(t, []string{"data.gouv.fr IRVE", "Static JSON data"}, resp.Sources)
	assert.NotEmpty(t, resp.RequestID)
	assert.False(t, resp.GeneratedAt.IsZero())
}

func TestGetAllSpotsCachesPerCategory(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{spots: []model.Spot{station("Borne", 48.1, -1.7)}}
	loader := &fakeLoader{spots: []model.Spot{producer("Ferme", 48.0, -2.0)}}
	store := newRecordingStore()

	svc := NewService(fetcher, loader, store, 0)

	first := svc.GetAllSpots(context.Background())
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 1, loader.calls)
	assert.Equal(t, DefaultTTL, store.ttls[CacheKeyChargingStations])
	assert.Equal(t, DefaultTTL, store.ttls[CacheKeyStaticSpots])

	// Second call within TTL is served from cache.
	second := svc.GetAllSpots(context.Background())
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 1, loader.calls)
	assert.Equal(t, first.TotalCount, second.TotalCount)
	assert.Equal(t, first.Spots, second.Spots)
}

func TestClearCacheForcesRefetch(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	loader := &fakeLoader{}
	svc := NewService(fetcher, loader, cache.NewMemory(), 0)

	svc.GetAllSpots(context.Background())
	svc.ClearCache()
	svc.ClearCache() // idempotent
	svc.GetAllSpots(context.Background())

	assert.Equal(t, 2, fetcher.calls)
	assert.Equal(t, 2, loader.calls)
}

func TestGetAllSpotsDegradedOnPanic(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeFetcher{explode: true}, &fakeLoader{}, cache.NewMemory(), 0)
	resp := svc.GetAllSpots(context.Background())

	assert.Equal(t, ErrorMessage, resp.Error)
	assert.Empty(t, resp.Spots)
	assert.Zero(t, resp.TotalCount)
	assert.Empty(t, resp.Types)
	assert.Empty(t, resp.TypeCounts)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, "Bretagne", resp.Region)

	// The degraded body still serializes to complete JSON.
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"spots":[]`)
	assert.Contains(t, string(data), `"error":"Failed to retrieve spots data"`)
}

func TestGetAllSpotsDiscardsForeignCacheEntry(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{spots: []model.Spot{station("Borne", 48.1, -1.7)}}
	store := cache.NewMemory()
	store.Set(CacheKeyChargingStations, "not a spot list", time.Hour)

	svc := NewService(fetcher, &fakeLoader{}, store, 0)
	resp := svc.GetAllSpots(context.Background())

	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 1, resp.TotalCount)
}

// End-to-end through the real client, loader and mappers: two producer
// records (one invalid) plus three remote rows (one a duplicate location)
// aggregate to three spots.
func TestGetAllSpotsEndToEnd(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("adresse_station__contains") != ", 35" {
			_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{
			{
				"nom_station":        "Borne Rennes",
				"adresse_station":    "Place de la Mairie, 35000 Rennes",
				"coordonneesXY":      []any{-1.677793, 48.117266},
				"nbre_pdc":           2,
				"puissance_nominale": 50,
			},
			{
				"nom_station":        "Borne Vitré",
				"adresse_station":    "Rue de Paris, 35500 Vitré",
				"coordonneesXY":      []any{-1.212768, 48.124621},
				"nbre_pdc":           1,
				"puissance_nominale": 22,
			},
			{
				// Duplicate of Borne Rennes once rounded.
				"nom_station":        "Borne Rennes 2",
				"adresse_station":    "Place de la Mairie, 35000 Rennes",
				"coordonneesXY":      []any{-1.6777931, 48.1172661},
				"nbre_pdc":           4,
				"puissance_nominale": 150,
			},
		}})
	}))
	defer srv.Close()

	dir := t.TempDir()
	producers := `{
		"producers": [
			{"name": "Ferme de la Touche", "type": "local_producer",
			 "latitude": 48.087734, "longitude": -1.713379},
			{"name": "Ferme sans position", "type": "local_producer"}
		]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "local_producers.json"), []byte(producers), 0o644))

	client := datagouv.New(datagouv.Options{BaseURL: srv.URL, RateLimit: 1000})
	defer client.Close()

	svc := NewService(client, staticdata.NewLoader(dir), cache.NewMemory(), 0)
	resp := svc.GetAllSpots(context.Background())

	assert.Empty(t, resp.Error)
	assert.Equal(t, 3, resp.TotalCount)
	assert.Equal(t, []model.SpotType{model.SpotTypeChargingStation, model.SpotTypeLocalProducer}, resp.Types)
	assert.Equal(t, map[model.SpotType]int{
		model.SpotTypeChargingStation: 2,
		model.SpotTypeLocalProducer:   1,
	}, resp.TypeCounts)
}
