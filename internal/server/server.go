// Package server exposes cube loading over HTTP.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/geoscape-io/stacube/internal/config"
)

// Run wires the router and serves until the context is cancelled.
func Run(ctx context.Context, cfg config.Config, l zerolog.Logger, metricsHandler http.Handler, factory SessionFactory) error {
	r := chi.NewRouter()
	r.Use(Recover(l))
	r.Use(Logging(l))
	r.Use(CORS())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if metricsHandler != nil {
		r.Get(cfg.MetricsPath, metricsHandler.ServeHTTP)
	}
	r.Post("/v1/load", HandleLoad(l, cfg, factory))

	httpLog := l.With().Str("component", "http").Logger()
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ErrorLog:          log.New(httpLog, "", 0),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info().Str("addr", cfg.Addr).Msg("http listen")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
