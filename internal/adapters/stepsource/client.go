// Package stepsource fetches canonical step records from an external catalog.
//
// Upstream catalogs disagree on field names, so the client extracts fields
// with configurable JMESPath expressions instead of a fixed wire struct.
package stepsource

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

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/roamline/trip-api/internal/core"
)

const defaultRequestTimeout = 10 * time.Second

// Default extraction expressions, matching the reference catalog schema.
const (
	DefaultNameExpr      = "name"
	DefaultStartTimeExpr = "schedule.start"
	DefaultEndTimeExpr   = "schedule.end"
)

// FieldExprs holds the JMESPath expressions used to pull canonical fields
// out of the upstream item document.
type FieldExprs struct {
	Name      string
	StartTime string
	EndTime   string
}

// ClientOptions groups dependencies for Client.
type ClientOptions struct {
	BaseURL    string       // Required: base URL of the catalog service
	APIKey     string       // Optional: bearer token for the catalog
	Exprs      FieldExprs   // Optional: field extraction expressions, defaults to the reference schema
	HTTPClient *http.Client // Optional: defaults to a client with a 10s timeout
	Logger     *slog.Logger // Optional: structured logger
}

// Client fetches canonical items over HTTP. It implements core.StepSource.
type Client struct {
	baseURL string
	apiKey  string
	exprs   FieldExprs
	client  *http.Client
	logger  *slog.Logger
}

// NewClient constructs a new Client. Extraction expressions are compiled
// eagerly so a bad configuration fails at startup, not mid-job.
func NewClient(opts ClientOptions) (*Client, error) {
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

	exprs := opts.Exprs
	if strings.TrimSpace(exprs.Name) == "" {
		exprs.Name = DefaultNameExpr
	}
	if strings.TrimSpace(exprs.StartTime) == "" {
		exprs.StartTime = DefaultStartTimeExpr
	}
	if strings.TrimSpace(exprs.EndTime) == "" {
		exprs.EndTime = DefaultEndTimeExpr
	}
	for _, expr := range []string{exprs.Name, exprs.StartTime, exprs.EndTime} {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("invalid field expression %q: %w", expr, err)
		}
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "step_source")
	}

	return &Client{
		baseURL: base,
		apiKey:  opts.APIKey,
		exprs:   exprs,
		client:  client,
		logger:  logger,
	}, nil
}

// MustNewClient constructs a new Client and panics on error.
func MustNewClient(opts ClientOptions) *Client {
	c, err := NewClient(opts)
	if err != nil {
		panic(err) //nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
	}
	return c
}

// FetchItem retrieves the canonical record for an external reference.
func (c *Client) FetchItem(ctx context.Context, externalRef string) (*core.CanonicalItem, error) {
	ref := strings.TrimSpace(externalRef)
	if ref == "" {
		return nil, errors.New("external reference is required")
	}

	endpoint := c.baseURL + "/v1/items/" + url.PathEscape(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("catalog has no item %q", ref)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if c.logger != nil {
			c.logger.WarnContext(ctx, "catalog returned error",
				"ref", ref,
				"status", resp.StatusCode,
				"body", string(body))
		}
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var doc any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}
	return c.extract(doc)
}

func (c *Client) extract(doc any) (*core.CanonicalItem, error) {
	name, err := c.stringField(c.exprs.Name, doc)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("expression %q yielded no name", c.exprs.Name)
	}

	start, err := c.timeField(c.exprs.StartTime, doc)
	if err != nil {
		return nil, err
	}
	end, err := c.timeField(c.exprs.EndTime, doc)
	if err != nil {
		return nil, err
	}

	return &core.CanonicalItem{
		Name:      name,
		StartTime: start,
		EndTime:   end,
	}, nil
}

func (c *Client) stringField(expr string, doc any) (string, error) {
	res, err := jmespath.Search(expr, doc)
	if err != nil {
		return "", fmt.Errorf("evaluate %q: %w", expr, err)
	}
	if res == nil {
		return "", nil
	}
	s, ok := res.(string)
	if !ok {
		return "", fmt.Errorf("expression %q yielded %T, want string", expr, res)
	}
	return strings.TrimSpace(s), nil
}

// timeField evaluates expr and parses the result as RFC 3339. A missing or
// null field is not an error: the catalog may legitimately carry no schedule.
func (c *Client) timeField(expr string, doc any) (*time.Time, error) {
	raw, err := c.stringField(expr, doc)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("expression %q yielded %q, want RFC 3339 timestamp: %w", expr, raw, err)
	}
	return &ts, nil
}
