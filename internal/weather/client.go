// Package weather implements the weather tools: geocoding through the
// model and forecasts from the api.weather.gov service.
package weather

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL   = "https://api.weather.gov"
	DefaultUserAgent = "app"

	// maxBodySize bounds forecast and metadata bodies.
	maxBodySize = 4 << 20
	// maxErrorBody bounds how much of an error body ends up in the error.
	maxErrorBody = 512
)

// Config of the forecast client
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// NewHTTPClient creates an HTTP client with the given timeout
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Client fetches forecasts. No retry and no backoff.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewClient creates a forecast client. A nil httpClient gets one built from
// cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg.Timeout)
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      httpClient,
	}
}

// Forecast resolves the grid point for latitude,longitude and returns the
// raw forecast body.
func (c *Client) Forecast(ctx context.Context, latitude, longitude string) (string, error) {
	pointsURL := fmt.Sprintf("%s/points/%s,%s", c.baseURL,
		url.PathEscape(strings.TrimSpace(latitude)),
		url.PathEscape(strings.TrimSpace(longitude)))

	points, err := c.get(ctx, pointsURL)
	if err != nil {
		return "", err
	}

	forecastURL := gjson.GetBytes(points, "properties.forecast")
	if forecastURL.Type != gjson.String || forecastURL.String() == "" {
		return "", &TransportError{
			URL:        pointsURL,
			StatusCode: http.StatusOK,
			Err:        fmt.Errorf("response has no properties.forecast"),
		}
	}

	forecast, err := c.get(ctx, forecastURL.String())
	if err != nil {
		return "", err
	}
	return string(forecast), nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &TransportError{URL: target, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{URL: target, StatusCode: resp.StatusCode, Err: err}
	}
	return body, nil
}
