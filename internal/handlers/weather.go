package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/crystaldolphin/murmur/internal/schema"
	"github.com/crystaldolphin/murmur/internal/shared/llmutils"
	"github.com/crystaldolphin/murmur/internal/tools"
)

// AskLocationMessage is the reply when no location could be filled.
const AskLocationMessage = "Which location would you like the weather for?"

// DefaultWeatherAPIBase is the weatherapi.com endpoint root.
const DefaultWeatherAPIBase = "https://api.weatherapi.com"

const maxWeatherBody = 1 << 20

// WeatherSource returns current conditions for a location as raw JSON.
type WeatherSource interface {
	Current(ctx context.Context, location string) (json.RawMessage, error)
}

// WeatherAPI queries weatherapi.com's current.json endpoint.
type WeatherAPI struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewWeatherAPI creates a client. baseURL defaults to DefaultWeatherAPIBase
// and client to one with a 10s timeout.
func NewWeatherAPI(baseURL, apiKey string, client *http.Client) *WeatherAPI {
	if baseURL == "" {
		baseURL = DefaultWeatherAPIBase
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WeatherAPI{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: client,
	}
}

func (w *WeatherAPI) Current(ctx context.Context, location string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/v1/current.json", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("q", location)
	q.Set("key", w.apiKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWeatherBody))
	if err != nil {
		return nil, fmt.Errorf("read weather response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("weather api: HTTP %d: %s", resp.StatusCode, llmutils.Truncate(string(body), 200))
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("weather api: response is not JSON")
	}
	return json.RawMessage(body), nil
}

// Weather fetches current conditions for the filled location and has sum
// answer the user's question from them.
func Weather(src WeatherSource, sum *Summarizer) tools.Handler {
	return func(ctx context.Context, input string, filled schema.FilledTool) (schema.Reply, error) {
		location := strings.TrimSpace(filled.String("location"))
		if location == "" {
			return schema.TextReply(AskLocationMessage), nil
		}

		data, err := src.Current(ctx, location)
		if err != nil {
			return schema.Reply{}, err
		}
		return sum.Summarize(ctx, string(data), input)
	}
}
