// Package server provides the HTTP API and handlers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bryan-buckman/bulletin/internal/database"
	"github.com/bryan-buckman/bulletin/internal/news"
)

// Ingester runs one ingest.
type Ingester interface {
	Ingest(ctx context.Context) *news.BatchReport
}

// Options tune the server.
type Options struct {
	// IngestOnView runs an ingest before every article listing.
	IngestOnView bool
	// PageSize is the listing page size when the request sets none.
	PageSize int
	// IngestTimeout bounds ingests started by requests.
	IngestTimeout time.Duration
	// SiteURL is the public base URL used in the RSS feed.
	SiteURL string
}

// Server is the main HTTP server.
type Server struct {
	store    database.Store
	ingester Ingester
	logger   *zap.Logger
	validate *validator.Validate
	opts     Options
	router   chi.Router
}

// New creates a new server.
func New(store database.Store, ingester Ingester, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.IngestTimeout <= 0 {
		opts.IngestTimeout = 5 * time.Minute
	}
	s := &Server{
		store:    store,
		ingester: ingester,
		logger:   logger.Named("http"),
		validate: newValidator(),
		opts:     opts,
	}
	s.setupRoutes()
	return s
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/feed.xml", s.handleFeed)

	r.Route("/api", func(r chi.Router) {
		r.Get("/articles", s.handleListArticles)
		r.Get("/articles/slug/{slug}", s.handleArticleBySlug)
		r.Get("/articles/{articleID}", s.handleArticle)
		r.Post("/articles/{articleID}/comments", s.handleAddComment)
		r.Delete("/articles/{articleID}/comments/{commentID}", s.handleDeleteComment)
		r.Put("/comments/{commentID}", s.handleUpdateComment)
		r.Post("/feedback", s.handleAddFeedback)
		r.Get("/feedback", s.handleListFeedback)
		r.Post("/ingest", s.handleIngest)
	})

	s.router = r
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.logger.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeAndValidate reads a JSON body into dst and checks its validate tags.
// It writes the 400 response itself and reports whether dst is usable.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return false
	}
	if t, ok := dst.(interface{ trim() }); ok {
		t.trim()
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, err.Error())
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "validation failed",
			"fields": fields,
		})
		return false
	}
	return true
}

// internalError logs err and answers 500 with msg.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.Error(msg,
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	writeError(w, http.StatusInternalServerError, msg)
}
