// Package weather proxies current conditions at the venue from open-meteo
// and caches them briefly.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	appLog "weddingapp/internal/log"
	"weddingapp/internal/metrics"
)

// Condition is the display label for a WMO weather code.
type Condition struct {
	Icon  string `json:"icon"`
	Label string `json:"label"`
}

var wmo = map[int]Condition{
	0:  {"☀️", "Clear"},
	1:  {"🌤️", "Mainly clear"},
	2:  {"⛅", "Partly cloudy"},
	3:  {"☁️", "Overcast"},
	45: {"🌫️", "Foggy"},
	48: {"🌫️", "Foggy"},
	51: {"🌦️", "Light drizzle"},
	53: {"🌦️", "Drizzle"},
	55: {"🌦️", "Dense drizzle"},
	56: {"🌦️", "Freezing drizzle"},
	57: {"🌦️", "Dense freezing drizzle"},
	61: {"🌧️", "Light rain"},
	63: {"🌧️", "Rain"},
	65: {"🌧️", "Heavy rain"},
	66: {"🌧️", "Light freezing rain"},
	67: {"🌧️", "Freezing rain"},
	71: {"❄️", "Light snow"},
	73: {"❄️", "Snow"},
	75: {"❄️", "Heavy snow"},
	77: {"❄️", "Snow grains"},
	80: {"🌧️", "Rain showers"},
	81: {"🌧️", "Rain showers"},
	82: {"🌧️", "Heavy rain showers"},
	85: {"❄️", "Snow showers"},
	86: {"❄️", "Heavy snow showers"},
	95: {"⛈️", "Thunderstorm"},
	96: {"⛈️", "Thunderstorm"},
	99: {"⛈️", "Thunderstorm"},
}

// Describe maps a WMO code to an icon and label.
func Describe(code int) Condition {
	if c, ok := wmo[code]; ok {
		return c
	}
	return Condition{Icon: "🌤️", Label: "—"}
}

// Current is the venue weather as served to the UI.
type Current struct {
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feels_like"`
	Humidity    float64   `json:"humidity"`
	Code        int       `json:"code"`
	Icon        string    `json:"icon"`
	Label       string    `json:"label"`
	ObservedAt  string    `json:"observed_at"`
	FetchedAt   time.Time `json:"fetched_at"`
}

type forecastResponse struct {
	Current *struct {
		Time                string  `json:"time"`
		Temperature2m       float64 `json:"temperature_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		RelativeHumidity2m  float64 `json:"relative_humidity_2m"`
		WeatherCode         int     `json:"weather_code"`
	} `json:"current"`
}

// Client fetches and caches the current weather for one location.
type Client struct {
	baseURL  string
	lat, lng float64
	ttl      time.Duration
	http     *http.Client

	mu      sync.RWMutex
	cached  Current
	cacheAt time.Time
	now     func() time.Time
}

func NewClient(baseURL string, lat, lng float64, ttl time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		lat:     lat,
		lng:     lng,
		ttl:     ttl,
		http:    httpClient,
		now:     time.Now,
	}
}

// Current returns cached conditions while they are younger than the TTL.
// When a refresh fails, a stale cached value is preferred over an error.
func (c *Client) Current(ctx context.Context) (Current, error) {
	now := c.now()
	c.mu.RLock()
	cached, at := c.cached, c.cacheAt
	c.mu.RUnlock()
	if !at.IsZero() && now.Sub(at) < c.ttl {
		metrics.WeatherFetches.WithLabelValues("cached").Inc()
		return cached, nil
	}

	cur, err := c.fetch(ctx)
	if err != nil {
		metrics.WeatherFetches.WithLabelValues("error").Inc()
		if !at.IsZero() {
			appLog.Error("weather refresh failed, serving stale", err, "age", now.Sub(at).Round(time.Second))
			return cached, nil
		}
		return Current{}, err
	}
	cur.FetchedAt = now

	c.mu.Lock()
	c.cached, c.cacheAt = cur, now
	c.mu.Unlock()
	metrics.WeatherFetches.WithLabelValues("fresh").Inc()
	return cur, nil
}

func (c *Client) fetch(ctx context.Context) (Current, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return Current{}, fmt.Errorf("weather: bad url: %w", err)
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(c.lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(c.lng, 'f', -1, 64))
	q.Set("current", "temperature_2m,weather_code,relative_humidity_2m,apparent_temperature")
	q.Set("timezone", "auto")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Current{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Current{}, fmt.Errorf("weather: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Current{}, fmt.Errorf("weather: unexpected status %s", resp.Status)
	}

	var fr forecastResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&fr); err != nil {
		return Current{}, fmt.Errorf("weather: decode: %w", err)
	}
	if fr.Current == nil {
		return Current{}, fmt.Errorf("weather: no current conditions")
	}

	cond := Describe(fr.Current.WeatherCode)
	return Current{
		Temperature: fr.Current.Temperature2m,
		FeelsLike:   fr.Current.ApparentTemperature,
		Humidity:    fr.Current.RelativeHumidity2m,
		Code:        fr.Current.WeatherCode,
		Icon:        cond.Icon,
		Label:       cond.Label,
		ObservedAt:  fr.Current.Time,
	}, nil
}
