// Package web is the thin HTTP front end: it parses query parameters,
// calls the engine and writes the plain-text table. All interesting
// behavior lives behind it.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/debtools/madison/internal/madison"
)

// Engine is the query interface the front end consumes.
type Engine interface {
	Query(ctx context.Context, name string, mode madison.Mode) (madison.Result, error)
}

type server struct {
	engine Engine
	logger *log.Logger
}

// NewHandler builds the HTTP routes:
//
//	GET /?package=<names>[&mode=binary]  plain-text madison table
//	GET /healthz                         liveness probe
//
// Multiple space-separated package names render one combined table.
func NewHandler(engine Engine, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	s := &server{engine: engine, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Get("/", s.handleQuery)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Millisecond),
			"id", middleware.GetReqID(r.Context()))
	})
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	names := strings.Fields(r.URL.Query().Get("package"))
	if len(names) == 0 {
		http.Error(w, "missing ?package= parameter", http.StatusBadRequest)
		return
	}
	mode := madison.ModeSource
	switch r.URL.Query().Get("mode") {
	case "", "source":
	case "binary":
		mode = madison.ModeBinary
	default:
		http.Error(w, "mode must be source or binary", http.StatusBadRequest)
		return
	}

	var rows []madison.Row
	for _, name := range names {
		result, err := s.engine.Query(r.Context(), name, mode)
		if err != nil {
			s.logger.Error("query failed", "package", name, "err", err)
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		if len(result.Missing) > 0 {
			s.logger.Warn("partial result", "package", name, "missing", strings.Join(result.Missing, ", "))
		}
		rows = append(rows, result.Rows...)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, madison.Format(rows))
}

// ListenAndServe runs the handler on addr until ctx is cancelled, then
// shuts down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	srv := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
