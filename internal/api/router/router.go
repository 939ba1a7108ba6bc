// Package router wires the API routes and applies the middleware chain
// (RequestID → AccessLog → Metrics → CORS → RateLimit → Timeout).
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/referentiel"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/middleware"
)

// Options carries the optional collaborators of the router. Nil members
// disable the matching route or middleware.
type Options struct {
	Health         *health.Checker
	Analytics      *analytics.Handler
	Metrics        *metrics.Metrics
	Limiter        *middleware.Limiter
	CORS           middleware.CORSConfig
	RequestTimeout time.Duration
}

// New builds the HTTP handler with all routes and middleware.
//
// Route table:
//
//	GET  /communes, /communes/{code}
//	GET  /communes_associees_deleguees, /communes_associees_deleguees/{code}
//	GET  /epcis, /epcis/{code}, /epcis/{code}/communes
//	GET  /departements, /departements/{code}, /departements/{code}/communes
//	GET  /regions, /regions/{code}, /regions/{code}/departements
//	GET  /pays, /pays/{code}
//	GET  /cache/stats, POST /cache/invalidate
//	GET  /stats
//	GET  /health/live, /health/ready
func New(h *handler.Handler, opts Options) http.Handler {
	mux := http.NewServeMux()

	for _, kind := range referentiel.Kinds {
		mux.HandleFunc("GET /"+string(kind), h.List(kind))
		mux.HandleFunc("GET /"+string(kind)+"/{code}", h.ByCode(kind))
	}
	mux.HandleFunc("GET /epcis/{code}/communes", h.Children(referentiel.EPCIs, referentiel.Communes, "codeEpci"))
	mux.HandleFunc("GET /departements/{code}/communes", h.Children(referentiel.Departements, referentiel.Communes, "codeDepartement"))
	mux.HandleFunc("GET /regions/{code}/departements", h.Children(referentiel.Regions, referentiel.Departements, "codeRegion"))

	mux.HandleFunc("GET /cache/stats", h.CacheStats)
	mux.HandleFunc("POST /cache/invalidate", h.CacheInvalidate)

	if opts.Analytics != nil {
		mux.HandleFunc("GET /stats", opts.Analytics.Stats)
	}
	if opts.Health != nil {
		mux.HandleFunc("GET /health/live", opts.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", opts.Health.ReadyHandler())
	}

	// applied inside-out
	var chain http.Handler = mux
	chain = middleware.Timeout(opts.RequestTimeout)(chain)
	if opts.Limiter != nil {
		chain = middleware.RateLimit(opts.Limiter, opts.Metrics)(chain)
	}
	if len(opts.CORS.AllowOrigins) > 0 {
		chain = middleware.CORS(opts.CORS)(chain)
	}
	if opts.Metrics != nil {
		chain = middleware.Metrics(opts.Metrics)(chain)
	}
	chain = middleware.AccessLog(chain)
	chain = middleware.RequestID(chain)

	return chain
}
