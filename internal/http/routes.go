package httpx

import (
	"log/slog"
	"net/http"

	"github.com/roamline/trip-api/internal/core"
	"github.com/roamline/trip-api/internal/hub"
	"github.com/roamline/trip-api/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs     *service.JobService
	Engine   *service.Engine
	Hub      *hub.Hub
	Sessions core.SessionStore
	Logger   *slog.Logger
}

// NewRouter creates and configures the HTTP router. All /api routes except
// the health check require a session.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{Svc: services.Jobs, Engine: services.Engine}

	authed := func(h http.HandlerFunc) http.Handler {
		if services.Sessions == nil {
			return h
		}
		return RequireSession(services.Sessions, services.Logger)(h)
	}

	mux.Handle("POST /api/trips/{tripID}/jobs", authed(jobHandlers.CreateJob))
	mux.Handle("GET /api/trips/{tripID}/jobs", authed(jobHandlers.ListForTrip))
	mux.Handle("POST /api/jobs/{id}/start", authed(jobHandlers.StartJob))
	mux.Handle("GET /api/jobs/{id}", authed(jobHandlers.GetStatus))
	mux.Handle("GET /api/jobs/kinds/{kind}/stats", authed(jobHandlers.Stats))

	// The hub performs its own identity check during the websocket handshake.
	if services.Hub != nil {
		mux.Handle("GET /api/ws", services.Hub.Handler())
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	var handler http.Handler = mux
	if services.Logger != nil {
		handler = Logging(services.Logger)(handler)
		handler = Recover(services.Logger)(handler)
	}
	return handler
}
