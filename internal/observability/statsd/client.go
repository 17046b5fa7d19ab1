// Package statsd emits job and hub metrics over the StatsD UDP line protocol
// with DogStatsD-style tags.
package statsd

import (
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sink is the metric surface the rest of the service emits against.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// Config describes the StatsD endpoint and the tags applied to every metric.
type Config struct {
	Enabled    bool
	Address    string
	Prefix     string
	Logger     *slog.Logger
	GlobalTags map[string]string
}

const dialTimeout = 5 * time.Second

// Client sends metrics over a single UDP connection. A disabled client is
// valid and drops everything, so callers never branch on configuration.
// Safe for concurrent use.
type Client struct {
	prefix   string
	baseTags map[string]string
	logger   *slog.Logger

	mu      sync.Mutex
	conn    net.Conn
	enabled bool
}

var _ Sink = (*Client)(nil)

// NewClient dials the endpoint when enabled and an address is set; otherwise
// it returns a drop-everything client.
func NewClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := &Client{
		prefix:   trimDots(cfg.Prefix),
		baseTags: scrubTags(cfg.GlobalTags),
		logger:   logger,
	}

	address := strings.TrimSpace(cfg.Address)
	if !cfg.Enabled || address == "" {
		return client, nil
	}

	conn, err := net.DialTimeout("udp", address, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", address, err)
	}
	client.conn = conn
	client.enabled = true

	return client, nil
}

// Enabled reports whether metrics actually leave the process.
func (c *Client) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled && c.conn != nil
}

// Count increments a counter.
func (c *Client) Count(name string, value int64, tags map[string]string) {
	if c == nil {
		return
	}
	c.emit(name, strconv.FormatInt(value, 10)+"|c", tags)
}

// Gauge records the current value of a gauge.
func (c *Client) Gauge(name string, value float64, tags map[string]string) {
	if c == nil {
		return
	}
	c.emit(name, floatText(value)+"|g", tags)
}

// Timing records a duration in milliseconds.
func (c *Client) Timing(name string, value time.Duration, tags map[string]string) {
	if c == nil {
		return
	}
	ms := float64(value) / float64(time.Millisecond)
	c.emit(name, floatText(ms)+"|ms", tags)
}

// Close shuts the UDP connection down. The client drops metrics afterwards.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled = false
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) emit(name, payload string, tags map[string]string) {
	metric := c.qualify(name)
	if metric == "" {
		return
	}

	var line strings.Builder
	line.WriteString(metric)
	line.WriteByte(':')
	line.WriteString(payload)
	line.WriteString(tagSuffix(c.baseTags, tags))

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled || c.conn == nil {
		return
	}

	// Metrics are best effort; a lost datagram is not worth more than a
	// debug line.
	if _, err := c.conn.Write([]byte(line.String())); err != nil {
		c.logger.Debug("statsd write dropped", "error", err)
	}
}

func (c *Client) qualify(name string) string {
	cleaned := cleanName(name)
	if cleaned == "" {
		return ""
	}
	if c.prefix == "" {
		return cleaned
	}
	return c.prefix + "." + cleaned
}

func trimDots(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), ".")
}

// cleanName strips characters that would corrupt the line protocol: spaces
// and slashes become underscores, and the ':' and '|' delimiters are
// replaced outright.
func cleanName(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", ":", "_", "|", "_")
	n = replacer.Replace(n)
	for strings.Contains(n, "..") {
		n = strings.ReplaceAll(n, "..", ".")
	}
	return strings.Trim(n, ".")
}

// tagSuffix merges base and per-call tags into a sorted |#k:v,... suffix.
// Per-call tags win on key collisions.
func tagSuffix(base, extra map[string]string) string {
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		if key := strings.TrimSpace(k); key != "" {
			merged[key] = strings.TrimSpace(v)
		}
	}
	if len(merged) == 0 {
		return ""
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("|#")
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(merged[k])
	}
	return b.String()
}

// scrubTags copies the configured global tags, dropping blank keys and
// trimming whitespace, so every emit starts from a sane base.
func scrubTags(tags map[string]string) map[string]string {
	scrubbed := make(map[string]string, len(tags))
	for k, v := range tags {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		scrubbed[key] = strings.TrimSpace(v)
	}
	return scrubbed
}

func floatText(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
