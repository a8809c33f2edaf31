package httpserver

import (
	"net/http"

	"swapwatch/backend/services/monitoring-service/internal/http/handlers"
	"swapwatch/backend/services/monitoring-service/internal/http/middleware"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	Monitoring    *handlers.MonitoringHandlers
	Viewers       http.HandlerFunc
	HealthHandler http.HandlerFunc
}

// NewRouter wires HTTP routes with middleware.
func NewRouter(deps RouterDeps, authMiddleware func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", method(http.MethodGet, deps.HealthHandler))

	authenticated := func(handler http.HandlerFunc) http.Handler {
		return middleware.Chain(handler, authMiddleware)
	}

	mux.Handle("/api/battery-monitoring/stations", method(http.MethodGet, authenticated(deps.Monitoring.Stations)))
	mux.Handle("/api/battery-monitoring/select", method(http.MethodPost, authenticated(deps.Monitoring.Select)))
	mux.Handle("/api/battery-monitoring/refresh", method(http.MethodPost, authenticated(deps.Monitoring.Refresh)))
	mux.Handle("/api/battery-monitoring/states", method(http.MethodGet, authenticated(deps.Monitoring.States)))
	mux.Handle("/api/battery-monitoring/status", method(http.MethodGet, authenticated(deps.Monitoring.Status)))
	mux.Handle(handlers.BatteryPathPrefix, method(http.MethodGet, authenticated(deps.Monitoring.Battery)))
	if deps.Viewers != nil {
		mux.Handle("/api/battery-monitoring/ws", method(http.MethodGet, authenticated(deps.Viewers)))
	}

	return mux
}

func method(expected string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
