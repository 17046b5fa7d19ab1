package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server (API plus the notification hub).
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeEngine runs the job engine.
	ServiceModeEngine ServiceMode = "engine"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeEngine}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeEngine:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, engine)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// EngineConfig contains job engine configuration.
type EngineConfig struct {
	// ItemTimeout bounds processing of a single batch item.
	ItemTimeout time.Duration `env:"ENGINE_ITEM_TIMEOUT" envDefault:"30s"`
}

// Sanitize applies guardrails to engine configuration values.
func (e *EngineConfig) Sanitize() {
	if e.ItemTimeout < time.Second {
		e.ItemTimeout = time.Second
	}
}

// HubConfig contains notification hub configuration.
type HubConfig struct {
	// HeartbeatTimeout is how long a connection may stay silent before the
	// janitor evicts it. Clients are expected to ping well inside this window.
	HeartbeatTimeout time.Duration `env:"HUB_HEARTBEAT_TIMEOUT" envDefault:"60s"`

	// SendBuffer is the per-connection outbound queue length. Slow consumers
	// drop events rather than block publishers.
	SendBuffer int `env:"HUB_SEND_BUFFER" envDefault:"16"`
}

// Sanitize applies guardrails to hub configuration values.
func (h *HubConfig) Sanitize() {
	if h.HeartbeatTimeout < 5*time.Second {
		h.HeartbeatTimeout = 5 * time.Second
	}
	if h.SendBuffer < 1 {
		h.SendBuffer = 1
	}
}

// GeoConfig contains configuration for the external travel-time service.
type GeoConfig struct {
	// BaseURL is the base URL of the travel-time service.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:9480"`

	// APIKey is an optional bearer token for the travel-time service.
	APIKey string `env:"API_KEY" envDefault:""`
}

// StepSourceConfig contains configuration for the external step catalog.
type StepSourceConfig struct {
	// BaseURL is the base URL of the catalog service.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:9481"`

	// APIKey is an optional bearer token for the catalog service.
	APIKey string `env:"API_KEY" envDefault:""`

	// NameExpr, StartTimeExpr, and EndTimeExpr are JMESPath expressions that
	// pull the canonical fields out of the catalog's item documents.
	NameExpr      string `env:"NAME_EXPR"       envDefault:""`
	StartTimeExpr string `env:"START_TIME_EXPR" envDefault:""`
	EndTimeExpr   string `env:"END_TIME_EXPR"   envDefault:""`
}
