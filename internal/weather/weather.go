// Package weather fetches current conditions from OpenWeatherMap.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/labkit/internal/cache"
	"github.com/ppiankov/labkit/internal/logging"
	"github.com/ppiankov/labkit/internal/model"
	"github.com/ppiankov/labkit/internal/util"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

	kelvinOffset = 273.15
	cacheNS      = "weather"
)

var (
	// ErrMissingCredential is returned when no OpenWeatherMap key is configured
	ErrMissingCredential = errors.New("missing OpenWeatherMap API key")

	// ErrEmptyLocation is returned for a blank location
	ErrEmptyLocation = errors.New("empty location")
)

// MissingFieldError reports a response lacking a required field
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "weather response missing field " + e.Field
}

// StatusError reports a non-2xx response
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("weather API returned HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("weather API returned HTTP %d", e.StatusCode)
}

// Config holds weather client configuration
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	CacheTTL   time.Duration
	HTTPProxy  string
	HTTPSProxy string
}

// ConfigFromModel converts model.Config to weather.Config
func ConfigFromModel(cfg *model.Config) Config {
	return Config{
		APIKey:     cfg.Weather.APIKey,
		BaseURL:    cfg.Weather.BaseURL,
		Timeout:    cfg.Weather.Timeout,
		CacheTTL:   cfg.Weather.CacheTTL,
		HTTPProxy:  cfg.LLM.HTTPProxy,
		HTTPSProxy: cfg.LLM.HTTPSProxy,
	}
}

// Client fetches weather reports, caching them per location
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	cache   cache.Cache
	ttl     time.Duration
	log     logging.Logger
}

// NewClient creates a weather client. c may be nil to disable caching.
func NewClient(cfg Config, c cache.Cache, log logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w (set OPENWEATHERMAP_API_KEY)", ErrMissingCredential)
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: base,
		http:    util.NewHTTPClient(timeout, cfg.HTTPProxy, cfg.HTTPSProxy),
		cache:   c,
		ttl:     cfg.CacheTTL,
		log:     logging.OrNoOp(log),
	}, nil
}

// CleanLocation keeps the part of location before the first comma
func CleanLocation(location string) string {
	if i := strings.Index(location, ","); i >= 0 {
		location = location[:i]
	}
	return strings.TrimSpace(location)
}

// Current returns the current weather for location
func (c *Client) Current(ctx context.Context, location string) (*model.WeatherReport, error) {
	city := CleanLocation(location)
	if city == "" {
		return nil, ErrEmptyLocation
	}

	key := cache.Key(cacheNS, city)
	if c.cache != nil {
		var cached model.WeatherReport
		if cache.GetJSON(c.cache, key, &cached) {
			c.log.Debug("weather cache hit for %s", city)
			return &cached, nil
		}
	}

	report, err := c.fetch(ctx, city)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := cache.SetJSON(c.cache, key, report, c.ttl); err != nil {
			c.log.Warn("weather cache write failed: %v", err)
		}
	}
	return report, nil
}

func (c *Client) fetch(ctx context.Context, city string) (*model.WeatherReport, error) {
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build weather request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// url.Error carries the full URL including the key
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("weather request for %s: %w", city, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read weather response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &apiErr)
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: apiErr.Message}
	}

	return decodeReport(body)
}

type owmResponse struct {
	Name *string `json:"name"`
	Main *struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		TempMin   *float64 `json:"temp_min"`
		TempMax   *float64 `json:"temp_max"`
		Humidity  *float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind *struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

func decodeReport(body []byte) (*model.WeatherReport, error) {
	var r owmResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}

	if r.Main == nil {
		return nil, &MissingFieldError{Field: "main"}
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"main.temp", r.Main.Temp},
		{"main.feels_like", r.Main.FeelsLike},
		{"main.temp_min", r.Main.TempMin},
		{"main.temp_max", r.Main.TempMax},
		{"main.humidity", r.Main.Humidity},
	} {
		if f.v == nil {
			return nil, &MissingFieldError{Field: f.name}
		}
	}
	if len(r.Weather) == 0 {
		return nil, &MissingFieldError{Field: "weather[0]"}
	}
	if r.Name == nil {
		return nil, &MissingFieldError{Field: "name"}
	}

	wind := 0.0
	if r.Wind != nil {
		wind = r.Wind.Speed
	}

	return &model.WeatherReport{
		Location:    *r.Name,
		Temperature: KelvinToCelsius(*r.Main.Temp),
		FeelsLike:   KelvinToCelsius(*r.Main.FeelsLike),
		TempMin:     KelvinToCelsius(*r.Main.TempMin),
		TempMax:     KelvinToCelsius(*r.Main.TempMax),
		Humidity:    round2(*r.Main.Humidity),
		Description: r.Weather[0].Description,
		MainWeather: r.Weather[0].Main,
		WindSpeed:   round2(wind),
	}, nil
}

// KelvinToCelsius converts and rounds to two decimals
func KelvinToCelsius(k float64) float64 {
	return round2(k - kelvinOffset)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
