// Package staticdata loads the hand-curated spot datasets shipped with the
// service as JSON files.
package staticdata

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/aulemarouille/green-spots-back/internal/mapper"
	"github.com/aulemarouille/green-spots-back/internal/model"
)

// datasets lists each bundled file and the key holding its record array.
// Files load in this order so responses stay stable across cache refreshes.
var datasets = []struct {
	filename string
	key      string
}{
	{"organic_markets.json", "markets"},
	{"bio_shops.json", "shops"},
	{"local_producers.json", "producers"},
	{"eco_accommodations.json", "accommodations"},
}

// Loader reads the static datasets from a directory.
type Loader struct {
	dir string
}

// NewLoader creates a Loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// LoadSpots reads every dataset file, concatenates their raw records and
// maps them to validated Spots. A missing or unreadable file contributes
// zero records and never prevents the other files from loading.
func (l *Loader) LoadSpots() []model.Spot {
	var raws []model.RawSpot

	for _, ds := range datasets {
		records := l.loadFile(ds.filename, ds.key)
		raws = append(raws, records...)
	}

	return mapper.RecordsToSpots(raws)
}

func (l *Loader) loadFile(filename, key string) []model.RawSpot {
	path := filepath.Join(l.dir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			zap.L().Warn("static dataset not found", zap.String("file", filename))
		} else {
			zap.L().Error("failed to read static dataset",
				zap.String("file", filename),
				zap.Error(err),
			)
		}
		return nil
	}

	var doc map[string][]model.RawSpot
	if err := json.Unmarshal(data, &doc); err != nil {
		zap.L().Error("invalid JSON in static dataset",
			zap.String("file", filename),
			zap.Error(err),
		)
		return nil
	}

	return doc[key]
}
