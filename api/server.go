/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind a proxy
  3. Logger:     Request logging through zap
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for a browser front end

ROUTE GROUPS:
  /api/files/*          Ingested source files
  /api/aliases/*        Alias table
  /api/rules/*          Alert rule sets
  /api/compliance/*     Compliance facts and RTW list
  /api/matches          Rule matches
  /api/expiry           Expiry horizons
  /api/diagnostics      Diagnostic trail
  /api/scenarios/*      Demo scenarios
  /healthz              Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/roster/serve.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/files", func(r chi.Router) {
			r.Get("/", h.ListFiles)
			r.Post("/", h.UploadFile)
			r.Get("/{id}", h.GetFile)
			r.Get("/{id}/rows", h.GetFileRows)
			r.Put("/{id}/locale", h.SetFileLocale)
			r.Delete("/{id}", h.DeleteFile)
		})

		r.Route("/aliases", func(r chi.Router) {
			r.Get("/", h.ListAliases)
			r.Put("/", h.ReplaceAliases)
			r.Post("/", h.SaveAlias)
			r.Delete("/{id}", h.DeleteAlias)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Post("/", h.CreateRules)
			r.Delete("/{id}", h.DeleteRule)
		})

		// needs-rtw is registered before {staff} so it is not read as an ID.
		r.Route("/compliance", func(r chi.Router) {
			r.Get("/", h.GetCompliance)
			r.Get("/needs-rtw", h.GetNeedsRTW)
			r.Get("/{staff}", h.GetStaffCompliance)
		})

		r.Get("/matches", h.GetMatches)
		r.Get("/expiry", h.GetExpiry)
		r.Get("/diagnostics", h.GetDiagnostics)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Roster Compliance Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Roster Compliance Engine API</h1>
<ul>
<li><a href="/api/files">/api/files</a> - Uploaded files</li>
<li><a href="/api/compliance">/api/compliance</a> - Compliance facts</li>
<li><a href="/api/compliance/needs-rtw">/api/compliance/needs-rtw</a> - RTW interviews owed</li>
<li><a href="/api/matches">/api/matches</a> - Rule matches</li>
<li><a href="/api/expiry">/api/expiry</a> - Expiry horizons</li>
<li><a href="/api/diagnostics">/api/diagnostics</a> - Diagnostics</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}

// requestLogger logs one line per request through zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("took", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
