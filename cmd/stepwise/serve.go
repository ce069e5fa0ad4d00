package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/stepwise/internal/cli"
	httpAdapter "github.com/aretw0/stepwise/pkg/adapters/http"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [path]",
	Short: "Serve the agent over HTTP and WebSocket",
	Long: `Exposes the agent's sessions as a JSON API: turns, session administration,
a Server-Sent Events diff stream, a WebSocket turn channel and Prometheus metrics.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path := agentPath(cmd, args)
		logger := cli.NewLogger(cfg, false)

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, err := observability.NewMetrics(reg)
		if err != nil {
			return err
		}
		hooks := domain.ComposeHooks(metrics.Hooks(), observability.LogHooks(logger))

		o, err := cli.NewOracle(cfg)
		if err != nil {
			return err
		}
		agent, err := cli.OpenAgent(path, cfg, o, logger, hooks)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := cli.NewPersistence(ctx, cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler: httpAdapter.NewHandler(p.NewManager(agent, logger),
				httpAdapter.WithLogger(logger),
				httpAdapter.WithMetrics(reg),
				httpAdapter.WithMaxInputSize(cfg.MaxInputSize),
			),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("stepwise server listening", "address", srv.Addr, "agent", agent.Name(), "store", cfg.Store)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			return err
		case <-ctx.Done():
			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown did not complete: %w", err)
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (default from STEPWISE_HTTP_PORT or 8080)")
}
