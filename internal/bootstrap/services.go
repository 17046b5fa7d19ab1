package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/roamline/trip-api/config"
	"github.com/roamline/trip-api/internal/adapters/geo"
	redisadapter "github.com/roamline/trip-api/internal/adapters/redis"
	"github.com/roamline/trip-api/internal/adapters/stepsource"
	"github.com/roamline/trip-api/internal/core"
	"github.com/roamline/trip-api/internal/data"
	"github.com/roamline/trip-api/internal/domain/model"
	"github.com/roamline/trip-api/internal/hub"
	httpx "github.com/roamline/trip-api/internal/http"
	"github.com/roamline/trip-api/internal/observability/notify"
	"github.com/roamline/trip-api/internal/observability/notify/pagerduty"
	"github.com/roamline/trip-api/internal/observability/notify/slack"
	"github.com/roamline/trip-api/internal/observability/statsd"
	"github.com/roamline/trip-api/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs          *service.JobService
	Engine        *service.Engine
	Hub           *hub.Hub
	Sessions      core.SessionStore
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink    *statsd.Client
	MetricsConfig  config.ObservabilityMetricsConfig
	Notifier       notify.Sink
	NotifierConfig config.ObservabilityNotificationsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	CacheClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB       *sql.DB
	Redis    redis.UniversalClient
	JobRepo  *data.JobRepo
	TripRepo *data.TripRepo
	Cache    *data.RedisCacheRepo
	Sessions *redisadapter.SessionStore
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "tripapi",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:    metricsSink,
		MetricsConfig:  cfg.Metrics,
		Notifier:       buildFailureNotifier(obsLogger, cfg.Notifications),
		NotifierConfig: cfg.Notifications,
	}
}

// buildFailureNotifier assembles the fan-out of enabled notification sinks.
// A nil return disables failure notifications entirely.
//
//nolint:ireturn // callers only see the notify.Sink contract.
func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) notify.Sink {
	if !cfg.Enabled {
		return nil
	}

	var sinks notify.Fanout

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, client)
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, client)
		}
	}

	if len(sinks) == 0 {
		return nil
	}
	return sinks
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(deps *ServiceDeps, logger *slog.Logger) *serviceRepositories {
	repoCfg := data.RepoConfig{Logger: logger}

	cacheClient := deps.CacheClient
	if cacheClient == nil {
		cacheClient = deps.RedisClient
	}

	return &serviceRepositories{
		DB:       deps.DB,
		Redis:    deps.RedisClient,
		JobRepo:  data.NewJobRepo(deps.DB, repoCfg),
		TripRepo: data.NewTripRepo(deps.DB, repoCfg),
		Cache:    data.NewRedisCacheRepo(cacheClient),
		Sessions: redisadapter.NewSessionStore(deps.RedisClient),
	}
}

// upstreamAdapters groups clients for the external services jobs talk to.
type upstreamAdapters struct {
	Estimator core.TravelEstimator
	Source    core.StepSource
}

func buildUpstreams(repos *serviceRepositories, cfg *config.AppConfig, logger *slog.Logger) (upstreamAdapters, error) {
	rawEstimator, err := geo.NewEstimator(geo.EstimatorOptions{
		BaseURL: cfg.Geo.BaseURL,
		APIKey:  cfg.Geo.APIKey,
		Logger:  logger,
	})
	if err != nil {
		return upstreamAdapters{}, fmt.Errorf("build travel estimator: %w", err)
	}

	estimator, err := service.NewCachedEstimator(service.CachedEstimatorOptions{
		Upstream: rawEstimator,
		Cache:    repos.Cache,
		Logger:   logger,
		TTL:      cfg.Cache.EstimateTTL,
	})
	if err != nil {
		return upstreamAdapters{}, fmt.Errorf("build estimator cache: %w", err)
	}

	source, err := stepsource.NewClient(stepsource.ClientOptions{
		BaseURL: cfg.StepSource.BaseURL,
		APIKey:  cfg.StepSource.APIKey,
		Exprs: stepsource.FieldExprs{
			Name:      cfg.StepSource.NameExpr,
			StartTime: cfg.StepSource.StartTimeExpr,
			EndTime:   cfg.StepSource.EndTimeExpr,
		},
		Logger: logger,
	})
	if err != nil {
		return upstreamAdapters{}, fmt.Errorf("build step source: %w", err)
	}

	return upstreamAdapters{Estimator: estimator, Source: source}, nil
}

// newProcessorFactory returns the per-kind processor factory used by the
// engine. Every call builds a fresh processor; processors accumulate one
// job's results and must not be shared.
func newProcessorFactory(
	repos *serviceRepositories,
	upstreams upstreamAdapters,
	logger *slog.Logger,
) service.ProcessorFactory {
	return func(kind model.JobKind) (core.ItemProcessor, error) {
		switch kind {
		case model.JobKindTravelTime:
			return service.NewTravelTimeProcessor(service.TravelTimeProcessorOptions{
				Trips:     repos.TripRepo,
				Estimator: upstreams.Estimator,
				Logger:    logger,
			})
		case model.JobKindStepSync:
			return service.NewStepSyncProcessor(service.StepSyncProcessorOptions{
				Trips:  repos.TripRepo,
				Source: upstreams.Source,
				Logger: logger,
			})
		default:
			return nil, fmt.Errorf("no processor for job kind %q", kind)
		}
	}
}

func newNotificationHub(
	sessions core.SessionStore,
	observability ObservabilityContainer,
	cfg config.HubConfig,
	logger *slog.Logger,
) *hub.Hub {
	return hub.MustNewHub(hub.Options{
		Logger:  logger,
		Metrics: sinkOrNil(observability.MetricsSink),
		Identity: func(r *http.Request) (string, error) {
			return httpx.ResolveUser(r, sessions)
		},
		HeartbeatTimeout: cfg.HeartbeatTimeout,
		SendBuffer:       cfg.SendBuffer,
	})
}

// sinkOrNil avoids storing a typed-nil *statsd.Client in a Sink interface.
//
//nolint:ireturn // adapters hold the Sink contract, not the concrete client.
func sinkOrNil(client *statsd.Client) statsd.Sink {
	if client == nil {
		return nil
	}
	return client
}

// NewServices wires repositories, upstream adapters, and business services.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil {
		return ServiceContainer{}, errors.New("service deps are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := deps.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	observability := buildObservability(logger, appCfg.Observability)
	repos := buildRepositories(deps, logger)

	upstreams, err := buildUpstreams(repos, appCfg, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	notificationHub := newNotificationHub(repos.Sessions, observability, appCfg.Hub, logger)

	engine, err := service.NewEngine(service.EngineOptions{
		Jobs:        repos.JobRepo,
		Trips:       repos.TripRepo,
		Processors:  newProcessorFactory(repos, upstreams, logger),
		Publisher:   notificationHub,
		Logger:      logger,
		Metrics:     sinkOrNil(observability.MetricsSink),
		Notifier:    observability.Notifier,
		ItemTimeout: appCfg.Engine.ItemTimeout,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build engine: %w", err)
	}

	jobService := service.MustNewJobService(service.JobServiceOptions{
		Jobs:   repos.JobRepo,
		Trips:  repos.TripRepo,
		Logger: logger,
	})

	return ServiceContainer{
		Jobs:          jobService,
		Engine:        engine,
		Hub:           notificationHub,
		Sessions:      repos.Sessions,
		Observability: observability,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name,
					"error", errMsg,
				)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)

	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil || deps.cfg == nil {
		return nil
	}
	return []backgroundService{
		{
			mode:  config.ServiceModeEngine,
			name:  "job engine",
			start: deps.cfg.Services.Engine.Run,
		},
		{
			// The hub serves the HTTP websocket route, so its janitor runs
			// whenever the HTTP server does.
			mode:  config.ServiceModeHTTP,
			name:  "notification hub",
			start: deps.cfg.Services.Hub.Run,
		},
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	ctx := context.Background()
	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	// Start all enabled services
	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	// +1 so the hub janitor slot never blocks alongside the engine's.
	return count + 1
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	// Gracefully stop HTTP server if running
	if cfg.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	}

	// Wait for background services to finish
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
