package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/dimmerd/internal/actions"
	"github.com/dokzlo13/dimmerd/internal/dimmer"
	"github.com/dokzlo13/dimmerd/internal/hue"
	"github.com/dokzlo13/dimmerd/internal/resolve"
	"github.com/dokzlo13/dimmerd/internal/units"
)

// Invoker dispatches a named action; satisfied by *actions.Registry.
type Invoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (map[string]any, error)
}

// Server exposes the dimming actions over HTTP.
type Server struct {
	addr       string
	invoker    Invoker
	health     func(ctx context.Context) error
	httpServer *http.Server
}

// NewServer creates an API server. health is probed by /healthz; nil means
// always healthy.
func NewServer(host string, port int, invoker Invoker, health func(ctx context.Context) error) *Server {
	return &Server{
		addr:    fmt.Sprintf("%s:%d", host, port),
		invoker: invoker,
		health:  health,
	}
}

// Run starts the API server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	router := chi.NewRouter()
	router.Post("/api/v1/actions/{action}", s.handleAction)
	router.Get("/healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: router,
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")

	// An empty body is fine for field-less actions like stop.
	args := make(map[string]any)
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %v", err))
		return
	}

	result, err := s.invoker.Invoke(r.Context(), action, args)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, actions.ErrUnknownAction):
		return http.StatusNotFound
	case errors.Is(err, units.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, resolve.ErrTargetNotFound):
		return http.StatusNotFound
	case errors.Is(err, dimmer.ErrUnsupportedAttribute):
		return http.StatusUnprocessableEntity
	case errors.Is(err, hue.ErrUnauthorized):
		return http.StatusBadGateway
	case errors.Is(err, hue.ErrBridgeUnreachable):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
