// Package geo provides the HTTP client for the external travel-time service.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roamline/trip-api/internal/core"
)

const defaultRequestTimeout = 10 * time.Second

// EstimatorOptions groups dependencies for Estimator.
type EstimatorOptions struct {
	BaseURL    string       // Required: base URL of the travel-time service
	APIKey     string       // Optional: bearer token for the upstream service
	HTTPClient *http.Client // Optional: defaults to a client with a 10s timeout
	Logger     *slog.Logger // Optional: structured logger
}

// Estimator asks an external routing service how long it takes to travel
// between two free-form locations. It implements core.TravelEstimator.
type Estimator struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewEstimator constructs a new Estimator.
func NewEstimator(opts EstimatorOptions) (*Estimator, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("BaseURL is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL scheme: %s", u.Scheme)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "geo_estimator")
	}

	return &Estimator{
		baseURL: base,
		apiKey:  opts.APIKey,
		client:  client,
		logger:  logger,
	}, nil
}

// MustNewEstimator constructs a new Estimator and panics on error.
func MustNewEstimator(opts EstimatorOptions) *Estimator {
	est, err := NewEstimator(opts)
	if err != nil {
		panic(err) //nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
	}
	return est
}

// estimateResponse is the upstream wire shape.
type estimateResponse struct {
	TravelMinutes float64 `json:"travelMinutes"`
	DistanceKm    float64 `json:"distanceKm"`
}

// EstimateTravel fetches a travel estimate between two locations.
func (e *Estimator) EstimateTravel(ctx context.Context, from, to string) (*core.TravelEstimate, error) {
	if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return nil, errors.New("both locations are required")
	}

	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	endpoint := e.baseURL + "/v1/estimate?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create estimate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("estimate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Small cap keeps upstream error pages out of the logs.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if e.logger != nil {
			e.logger.WarnContext(ctx, "travel-time service returned error",
				"status", resp.StatusCode,
				"body", string(body))
		}
		return nil, fmt.Errorf("travel-time service returned status %d", resp.StatusCode)
	}

	var payload estimateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode estimate response: %w", err)
	}
	if payload.TravelMinutes < 0 || payload.DistanceKm < 0 {
		return nil, fmt.Errorf("travel-time service returned negative estimate (%f min, %f km)",
			payload.TravelMinutes, payload.DistanceKm)
	}

	return &core.TravelEstimate{
		Minutes:    payload.TravelMinutes,
		DistanceKm: payload.DistanceKm,
	}, nil
}
