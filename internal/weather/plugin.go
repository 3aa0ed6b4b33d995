package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/lk2023060901/agent-gateway/internal/agent/diagnostics"
	"github.com/lk2023060901/agent-gateway/internal/agent/tools"
	"github.com/lk2023060901/agent-gateway/internal/pkg/logger"
)

const (
	ToolGetLatLong = "get_lat_long"
	ToolGetWeather = "get_weather_for_latitude_longitude"
)

// Plugin exposes the geocoder and forecast client as model tools. Each
// successful call appends one step to the recorder carried in the context.
type Plugin struct {
	geocoder *Geocoder
	client   *Client
	logger   *logger.Logger
	now      func() time.Time
}

func NewPlugin(geocoder *Geocoder, client *Client, log *logger.Logger) *Plugin {
	if log == nil {
		log = logger.NewNop()
	}
	return &Plugin{
		geocoder: geocoder,
		client:   client,
		logger:   log.Named("weather"),
		now:      time.Now,
	}
}

// Tools returns both weather tools.
func (p *Plugin) Tools() []tools.Tool {
	return []tools.Tool{
		tools.FuncTool{
			Def: tools.Definition{
				Name:        ToolGetLatLong,
				Description: "Get a latitude and longitude GeoPoint for the provided city or postal code.",
				Parameters: tools.Object(map[string]tools.Property{
					"location": {Type: "string", Description: "A location string as a city and state or postal code"},
				}),
			},
			Fn: p.getLatLong,
		},
		tools.FuncTool{
			Def: tools.Definition{
				Name:        ToolGetWeather,
				Description: "get the weather for a latitude and longitude GeoPoint",
				Parameters: tools.Object(map[string]tools.Property{
					"latitude":  {Type: "string", Description: "The location GeoPoint latitude"},
					"longitude": {Type: "string", Description: "The location GeoPoint longitude"},
				}),
			},
			Fn: p.getWeather,
		},
	}
}

// Registry returns a registry holding only the weather tools.
func (p *Plugin) Registry() (*tools.Registry, error) {
	r := tools.NewRegistry()
	if err := r.Register(p.Tools()...); err != nil {
		return nil, err
	}
	return r, nil
}

func (p *Plugin) getLatLong(ctx context.Context, args json.RawMessage) (string, error) {
	location := gjson.GetBytes(args, "location").String()
	if location == "" {
		return "", fmt.Errorf("location is required")
	}

	start := p.now()
	point, err := p.geocoder.Locate(ctx, location)
	if err != nil {
		p.logger.WithContext(ctx).Warn("geocode failed", zap.String("location", location), zap.Error(err))
		return "", err
	}
	end := p.now()

	out, err := json.Marshal(point)
	if err != nil {
		return "", err
	}
	diagnostics.FromContext(ctx).Record(ToolGetLatLong, string(out), start, end)
	return string(out), nil
}

func (p *Plugin) getWeather(ctx context.Context, args json.RawMessage) (string, error) {
	// accept numbers as well as strings
	lat := gjson.GetBytes(args, "latitude")
	lon := gjson.GetBytes(args, "longitude")
	if !lat.Exists() || !lon.Exists() {
		return "", fmt.Errorf("latitude and longitude are required")
	}

	start := p.now()
	forecast, err := p.client.Forecast(ctx, lat.String(), lon.String())
	if err != nil {
		p.logger.WithContext(ctx).Warn("forecast failed",
			zap.String("latitude", lat.String()),
			zap.String("longitude", lon.String()),
			zap.Error(err),
		)
		return "", err
	}
	end := p.now()

	diagnostics.FromContext(ctx).Record(ToolGetWeather, forecast, start, end)
	return forecast, nil
}
