package weather

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const geocodeMaxTokens = 100

// PromptCompleter runs a single-shot prompt against the model.
type PromptCompleter interface {
	Prompt(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// LocationPoint is a latitude/longitude pair. Field names match what the
// model is asked to return.
type LocationPoint struct {
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
}

// Geocoder asks the model for the geopoint of a free-form location.
type Geocoder struct {
	model PromptCompleter
}

func NewGeocoder(model PromptCompleter) *Geocoder {
	return &Geocoder{model: model}
}

func geocodePrompt(location string) string {
	return fmt.Sprintf("What is the geopoint for: %s. Return the result as a JSON object with Latitude and Longitude properties: {\"Latitude\": 0.0, \"Longitude\": 0.0}. Only return the JSON.", location)
}

// Locate asks the model once and parses its answer. Unusable output is a
// *ParseError; it is not retried.
func (g *Geocoder) Locate(ctx context.Context, location string) (LocationPoint, error) {
	out, err := g.model.Prompt(ctx, geocodePrompt(location), geocodeMaxTokens)
	if err != nil {
		return LocationPoint{}, fmt.Errorf("weather: geocode %q: %w", location, err)
	}
	return ParseLocationPoint(out)
}

// ParseLocationPoint extracts {"Latitude": n, "Longitude": n} from model
// output, tolerating surrounding quotes and a markdown code fence.
func ParseLocationPoint(raw string) (LocationPoint, error) {
	text := cleanModelJSON(raw)

	if !gjson.Valid(text) {
		return LocationPoint{}, &ParseError{Raw: raw, Reason: "not valid JSON"}
	}
	doc := gjson.Parse(text)
	if !doc.IsObject() {
		return LocationPoint{}, &ParseError{Raw: raw, Reason: "not a JSON object"}
	}

	lat := doc.Get("Latitude")
	lon := doc.Get("Longitude")
	if lat.Type != gjson.Number {
		return LocationPoint{}, &ParseError{Raw: raw, Reason: "missing numeric Latitude"}
	}
	if lon.Type != gjson.Number {
		return LocationPoint{}, &ParseError{Raw: raw, Reason: "missing numeric Longitude"}
	}

	return LocationPoint{Latitude: lat.Float(), Longitude: lon.Float()}, nil
}

func cleanModelJSON(s string) string {
	s = strings.Trim(strings.TrimSpace(s), "'")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.Trim(strings.TrimSpace(s), "'")
}
