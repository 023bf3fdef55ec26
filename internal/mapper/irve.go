// Package mapper turns raw heterogeneous records into validated canonical
// spots: one mapper for data.gouv.fr IRVE charging station rows, one for the
// static JSON datasets.
package mapper

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/aulemarouille/green-spots-back/internal/model"
)

// IRVE column names as served by the tabular API.
const (
	colAddress    = "adresse_station"
	colCoords     = "coordonneesXY"
	colConnectors = "nbre_pdc"
	colName       = "nom_station"
	colPower      = "puissance_nominale"
)

// StationToSpot maps one raw IRVE row to a Spot. It returns (nil, nil) when
// the row has no usable coordinates (missing, fewer than two elements, or
// non-numeric) so callers can skip it without treating it as a failure.
func StationToSpot(raw map[string]any) (*model.Spot, error) {
	coords, ok := raw[colCoords].([]any)
	if !ok || len(coords) < 2 {
		return nil, nil
	}

	// IRVE serves [longitude, latitude]. The order is part of the external
	// format contract.
	lon, okLon := floatValue(coords[0])
	lat, okLat := floatValue(coords[1])
	if !okLon || !okLat {
		return nil, nil
	}

	spot, err := model.NewSpot(model.RawSpot{
		"name":        raw[colName],
		"type":        string(model.SpotTypeChargingStation),
		"latitude":    lat,
		"longitude":   lon,
		"address":     raw[colAddress],
		"description": stationDescription(raw),
		"power":       raw[colPower],
		"source":      "data.gouv.fr IRVE",
	})
	if err != nil {
		return nil, err
	}
	return &spot, nil
}

// StationsToSpots maps a batch of raw IRVE rows, dropping invalid rows and
// deduplicating by rounded coordinate. The first row seen at a location
// wins; surviving rows keep their input order.
func StationsToSpots(raws []map[string]any) []model.Spot {
	spots := make([]model.Spot, 0, len(raws))
	seen := make(map[model.CoordinateKey]struct{}, len(raws))

	for _, raw := range raws {
		spot, err := StationToSpot(raw)
		if err != nil {
			zap.L().Warn("skipping invalid charging station", zap.Error(err))
			continue
		}
		if spot == nil {
			continue
		}
		key := spot.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		spots = append(spots, *spot)
	}

	return spots
}

func stationDescription(raw map[string]any) string {
	power := "N/A"
	if v, ok := raw[colPower]; ok && v != nil {
		if f, numeric := floatValue(v); numeric {
			power = strconv.FormatFloat(f, 'f', -1, 64)
		} else if s, isStr := v.(string); isStr && s != "" {
			power = s
		}
	}

	connectors := 1
	if v, ok := raw[colConnectors]; ok {
		if f, numeric := floatValue(v); numeric {
			connectors = int(f)
		}
	}

	return fmt.Sprintf("Station de recharge %skW - %d place(s)", power, connectors)
}

func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
