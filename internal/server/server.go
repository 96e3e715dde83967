package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Roma7-7-7/price-notifier/internal/dal"
	"github.com/Roma7-7-7/price-notifier/internal/service"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

type contextKey string

const requestIDKey contextKey = "request_id"

type (
	Pinger interface {
		Ping(ctx context.Context) error
	}

	Reports interface {
		Report(ctx context.Context) service.Report
	}

	Broadcaster interface {
		BroadcastNow(ctx context.Context) (service.DeliveryOutcome, error)
	}
)

// Server exposes the operational endpoints: health probes, an on-demand report and a manual broadcast trigger.
type Server struct {
	pinger      Pinger
	reports     Reports
	broadcaster Broadcaster

	log *slog.Logger
}

func New(pinger Pinger, reports Reports, broadcaster Broadcaster, log *slog.Logger) *Server {
	return &Server{
		pinger:      pinger,
		reports:     reports,
		broadcaster: broadcaster,
		log:         log.With("component", "server"),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestID)
	r.Use(s.recoverer)
	r.Use(s.accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/readyz", s.ready)
	r.Get("/report", s.report)
	r.Post("/broadcast", s.broadcast)

	return r
}

// Start serves until ctx is done and then shuts the listener down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoContext(ctx, "Starting HTTP server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.log.Info("Stopped HTTP server")
	return nil
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.Ping(r.Context()); err != nil {
		s.log.WarnContext(r.Context(), "store is not ready", "error", err)
		writeError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("READY"))
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	report := s.reports.Report(r.Context())

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if report.HasErrors() {
		w.Header().Set("X-Report-Degraded", "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report.Text()))
}

func (s *Server) broadcast(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.broadcaster.BroadcastNow(r.Context())
	if err != nil {
		s.log.ErrorContext(r.Context(), "manual broadcast failed", "error", err)
		if errors.Is(err, dal.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "persistence unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "broadcast failed")
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)
		ctx := context.WithValue(r.Context(), requestIDKey, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				rid, _ := r.Context().Value(requestIDKey).(string)
				s.log.Error("panic recovered", "error", rec, "requestID", rid)
				writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(sr, r)
		rid, _ := r.Context().Value(requestIDKey).(string)
		s.log.DebugContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sr.status,
			"requestID", rid,
			"duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
