package model

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// SpotType classifies an eco spot. The set is closed: new categories require
// a new dataset and a code change.
type SpotType string

const (
	SpotTypeChargingStation  SpotType = "charging_station"
	SpotTypeOrganicMarket    SpotType = "organic_market"
	SpotTypeBioShop          SpotType = "bio_shop"
	SpotTypeLocalProducer    SpotType = "local_producer"
	SpotTypeEcoAccommodation SpotType = "eco_accommodation"
)

// Valid reports whether t is one of the known spot types.
func (t SpotType) Valid() bool {
	switch t {
	case SpotTypeChargingStation, SpotTypeOrganicMarket, SpotTypeBioShop,
		SpotTypeLocalProducer, SpotTypeEcoAccommodation:
		return true
	}
	return false
}

// Bretagne bounding box. Every spot served by this API lies inside it.
const (
	LatMin = 47.0
	LatMax = 48.9
	LonMin = -5.2
	LonMax = -1.0
)

// Placeholder values substituted for empty name/address fields.
const (
	DefaultName    = "Station de recharge"
	DefaultAddress = "Adresse non disponible"
)

// Spot is one canonical point of interest. Spots are immutable value
// objects: they are built by NewSpot, never mutated, and have no identity
// beyond their field values.
type Spot struct {
	Name           string   `json:"name"`
	Type           SpotType `json:"type"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Address        string   `json:"address"`
	Description    string   `json:"description,omitempty"`
	OpeningHours   string   `json:"opening_hours,omitempty"`
	Website        string   `json:"website,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	PriceRange     string   `json:"price_range,omitempty"`
	Power          string   `json:"power,omitempty"`
	Certifications []string `json:"certifications"`
	Specialties    []string `json:"specialties"`
	Source         string   `json:"source,omitempty"`
}

// CoordinateKey is the deduplication identity of a spot: its coordinates
// rounded to 6 decimal places (roughly 10cm of precision).
type CoordinateKey struct {
	Lat float64
	Lon float64
}

// Key returns the coordinate key of the spot.
func (s Spot) Key() CoordinateKey {
	return CoordinateKey{Lat: round6(s.Latitude), Lon: round6(s.Longitude)}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// RawSpot is an untyped record as decoded from JSON, keyed by Spot field
// names (camel-case aliases openingHours and priceRange are accepted).
type RawSpot map[string]any

// FieldError describes one invalid field of a raw record.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError aggregates every field violation found while building a
// Spot from one raw record.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return "invalid spot: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// NewSpot builds a validated Spot from a raw record. Coercion errors,
// geofence violations and enum violations accumulate: the returned
// *ValidationError names every bad field, not just the first. Defaulting
// (name/address placeholders, power unit suffix) is applied regardless of
// geofence outcome.
func NewSpot(raw RawSpot) (Spot, error) {
	verr := &ValidationError{}

	var s Spot
	s.Name = stringField(raw, "name", verr)
	s.Address = stringField(raw, "address", verr)
	s.Description = stringField(raw, "description", verr)
	s.OpeningHours = aliasedStringField(raw, "opening_hours", "openingHours", verr)
	s.Phone = stringField(raw, "phone", verr)
	s.PriceRange = aliasedStringField(raw, "price_range", "priceRange", verr)
	s.Source = stringField(raw, "source", verr)
	s.Certifications = stringSliceField(raw, "certifications", verr)
	s.Specialties = stringSliceField(raw, "specialties", verr)

	s.Type = SpotType(stringField(raw, "type", verr))
	if !s.Type.Valid() {
		verr.add("type", "unknown spot type %q", string(s.Type))
	}

	s.Latitude = boundedFloat(raw, "latitude", LatMin, LatMax, verr)
	s.Longitude = boundedFloat(raw, "longitude", LonMin, LonMax, verr)

	s.Website = stringField(raw, "website", verr)
	if s.Website != "" {
		if u, err := url.Parse(s.Website); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			verr.add("website", "not a valid http(s) URL: %q", s.Website)
		}
	}

	// Defaulting runs even when the geofence rejected the record, so the
	// error report reflects the record as it would have been stored.
	if s.Name == "" {
		s.Name = DefaultName
	}
	if s.Address == "" {
		s.Address = DefaultAddress
	}
	if _, ok := raw["power"]; ok {
		s.Power = NormalizePower(raw["power"])
	}

	if len(verr.Fields) > 0 {
		return Spot{}, verr
	}
	return s, nil
}

// NormalizePower renders a raw power value as a display string with a unit:
// nil or empty yields "N/A", anything else gets a "kW" suffix unless it
// already carries one.
func NormalizePower(v any) string {
	var str string
	switch p := v.(type) {
	case nil:
		str = ""
	case string:
		str = p
	case float64:
		str = strconv.FormatFloat(p, 'f', -1, 64)
	case int:
		str = strconv.Itoa(p)
	default:
		str = fmt.Sprint(p)
	}
	if str == "" {
		return "N/A"
	}
	if !strings.HasSuffix(str, "kW") {
		return str + "kW"
	}
	return str
}

func stringField(raw RawSpot, key string, verr *ValidationError) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		verr.add(key, "expected string, got %T", v)
		return ""
	}
	return s
}

func aliasedStringField(raw RawSpot, key, alias string, verr *ValidationError) string {
	if _, ok := raw[key]; ok {
		return stringField(raw, key, verr)
	}
	if _, ok := raw[alias]; ok {
		return stringField(raw, alias, verr)
	}
	return ""
}

func stringSliceField(raw RawSpot, key string, verr *ValidationError) []string {
	v, ok := raw[key]
	if !ok || v == nil {
		return []string{}
	}
	switch items := v.(type) {
	case []string:
		return items
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				verr.add(key, "expected string element, got %T", item)
				continue
			}
			out = append(out, s)
		}
		return out
	default:
		verr.add(key, "expected list of strings, got %T", v)
		return []string{}
	}
}

func boundedFloat(raw RawSpot, key string, min, max float64, verr *ValidationError) float64 {
	v, ok := raw[key]
	if !ok || v == nil {
		verr.add(key, "missing coordinate")
		return 0
	}

	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			verr.add(key, "not a number: %q", n)
			return 0
		}
		f = parsed
	default:
		verr.add(key, "expected number, got %T", v)
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		verr.add(key, "%g is not a finite coordinate", f)
		return 0
	}
	if f < min || f > max {
		verr.add(key, "%g is out of Bretagne bounds (%g - %g)", f, min, max)
	}
	return f
}
