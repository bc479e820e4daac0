package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"kitstock/assettag"
	"kitstock/automation"
	"kitstock/loader"
	"kitstock/tagtemplate"
)

// Server bundles what the HTTP API is built from. Rasterizer may be nil when
// PNG output is not available.
type Server struct {
	DB         *sqlx.DB
	Tags       *assettag.Service
	Rasterizer automation.PNGRasterizer
	PNGScale   float64
}

func SetupRoutes(s Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := s.DB.PingContext(r.Context()); err != nil {
			writeJSONError(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/companies", func(r chi.Router) {
			r.Get("/", ListCompaniesHandler(s.DB))
			r.Get("/{id}", GetCompanyHandler(s.DB))
			r.Put("/{id}", UpsertCompanyHandler(s.DB))
			r.Put("/{id}/asset-tag-meta", UpdateAssetTagMetaHandler(s.DB))
		})

		r.Route("/templates", func(r chi.Router) {
			if s.Rasterizer != nil {
				r.Post("/preview.png", automation.PreviewPNGHandler(s.Rasterizer, s.PNGScale))
			}
			tagtemplate.Routes(r, s.DB)
		})

		r.Route("/asset-tags", func(r chi.Router) {
			assettag.Routes(r, s.DB, s.Tags)
		})

		r.Post("/import/{entity}", loader.ImportEntitiesHandler(s.DB))

		r.Get("/config", GetConfigHandler())
		r.Post("/config", SaveConfigHandler())
	})

	return r
}

// requestLogger writes one line per request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			zap.L().Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
