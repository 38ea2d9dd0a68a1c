package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/HMasataka/livecount/internal/logging"
	"github.com/HMasataka/livecount/pkg/errors"
	"github.com/HMasataka/livecount/pkg/transport/websocket"
)

// Handler returns the HTTP surface of the server: /ws and /healthz
func (s *Server) Handler() http.Handler {
	ws := websocket.NewServer(
		websocket.WithHub(s.hub),
		websocket.WithRouter(s),
		websocket.WithLogger(s.options.Logger),
		websocket.WithEventBus(s.eventBus),
		websocket.WithConnOptions(s.options.Conn),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)

	r.Get("/ws", ws.ServeHTTP)
	r.Get("/healthz", s.healthz)

	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Stats()); err != nil {
		s.logger.Warn("failed to write health response", "error", err)
	}
}

// HTTPOptions configures ListenAndServe
type HTTPOptions struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ListenAndServe serves handler until ctx is done, then shuts down gracefully.
func ListenAndServe(ctx context.Context, handler http.Handler, opts HTTPOptions, logger *logging.Logger) error {
	srv := &http.Server{
		Addr:         opts.Addr,
		Handler:      handler,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return errors.Wrap(err, errors.ErrorTypeTransport, "LISTEN_ERROR", "http server failed").WithDetails(opts.Addr)
	case <-ctx.Done():
	}

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTimeout, "SHUTDOWN_ERROR", "http server did not stop in time")
	}
	return nil
}
