package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/logsearch/common/httputil"
	"github.com/telhawk-systems/logsearch/common/logging"
	"github.com/telhawk-systems/logsearch/common/messaging"
	natsclient "github.com/telhawk-systems/logsearch/common/messaging/nats"
	"github.com/telhawk-systems/logsearch/common/requestid"
	"github.com/telhawk-systems/logsearch/logsearch/internal/metrics"
	searchnats "github.com/telhawk-systems/logsearch/logsearch/internal/nats"
	"github.com/telhawk-systems/logsearch/logsearch/internal/repository"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve search jobs from NATS and expose metrics and health",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Metrics.Addr = addr
			}
			return a.serve(cmd.Context(), migrate)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "override the metrics and health listen address")
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply saved search migrations on start when database_url is set")
	return cmd
}

func (a *app) serve(ctx context.Context, migrate bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.InfoContext(ctx, "Starting log search service",
		"addr", a.cfg.Metrics.Addr,
		"log_level", a.cfg.Logging.Level,
		"log_format", a.cfg.Logging.Format,
	)

	if a.cfg.DatabaseURL != "" && migrate {
		a.logger.InfoContext(ctx, "Running database migrations")
		if err := repository.Migrate(a.cfg.DatabaseURL); err != nil {
			return err
		}
	}

	d, err := a.open(ctx, true, a.cfg.DatabaseURL != "")
	if err != nil {
		return err
	}
	defer d.close()

	// NATS is optional: the service still exposes health and metrics without it
	var handler *searchnats.Handler
	if a.cfg.NATS.Enabled {
		natsClient, err := natsclient.NewClient(natsclient.Config{
			URL:           a.cfg.NATS.URL,
			Name:          "logsearch",
			MaxReconnects: a.cfg.NATS.MaxReconnects,
			ReconnectWait: a.cfg.NATS.ReconnectWaitDuration(),
			Timeout:       5 * time.Second,
			Logger:        a.logger,
		})
		if err != nil {
			a.logger.WarnContext(ctx, "Failed to connect to NATS (continuing without NATS)",
				"url", a.cfg.NATS.URL,
				logging.Error(err))
		} else {
			a.logger.InfoContext(ctx, "Connected to NATS", "url", a.cfg.NATS.URL)
			handler = searchnats.NewHandler(natsClient, d.svc, a.logger)
			if err := handler.Start(ctx); err != nil {
				a.logger.WarnContext(ctx, "Failed to start NATS handler", logging.Error(err))
				natsClient.Close()
				handler = nil
			}
		}
	} else {
		a.logger.InfoContext(ctx, "NATS messaging disabled")
	}

	var busClient messaging.Client
	if handler != nil {
		busClient = handler.Client()
	}

	srv := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           newRouter(busClient, a.cfg.NATS.Enabled, a.cfg.Metrics.Enabled, a.logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.InfoContext(ctx, "log search service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	if handler != nil {
		if err := handler.Stop(); err != nil {
			a.logger.Warn("NATS handler shutdown error", logging.Error(err))
		}
		if err := handler.Client().Drain(); err != nil {
			a.logger.Warn("NATS drain error", logging.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("graceful shutdown failed", logging.Error(err))
	}
	return nil
}

// healthResponse is the body of /healthz.
type healthResponse struct {
	Status string                  `json:"status"`
	NATS   *messaging.HealthStatus `json:"nats,omitempty"`
}

// newRouter serves /healthz and, when enabled, /metrics. Health degrades
// when NATS is enabled but not connected.
func newRouter(bus messaging.Client, natsEnabled, metricsEnabled bool, logger *logging.Logger) http.Handler {
	mux := http.NewServeMux()
	if metricsEnabled {
		mux.Handle("/metrics", metrics.Handler())
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		resp := healthResponse{Status: "ok"}
		code := http.StatusOK
		if natsEnabled {
			status := messaging.CheckClientHealth(bus)
			resp.NATS = &status
			if !status.Connected {
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		logger.DebugContext(r.Context(), "health check",
			logging.Method(r.Method),
			logging.Path(r.URL.Path),
			logging.Status(code))

		httputil.WriteJSON(w, code, resp)
	})
	return requestid.Middleware(mux)
}
