package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/airfoil-studio/solverstream/internal/config"
	"github.com/airfoil-studio/solverstream/internal/logging"
	"github.com/airfoil-studio/solverstream/internal/solver"
)

var errInterrupted = errors.New("interrupted")

// env is shared by every subcommand once the root has loaded configuration.
type env struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "airfoil",
		Short:         "Stream airfoil simulations and optimizations from a remote CFD solver",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&e.configPath, "config", "airfoil.yaml", "path to the configuration file")
	root.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(newRunCmd(e), newWatchCmd(e), newSolverCmd(e))
	return root
}

func (e *env) load() error {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return err
	}
	if e.logLevel != "" {
		cfg.Log.Level = e.logLevel
	}
	logger, err := logging.New(cfg.Logging())
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.logger = logger
	return nil
}

// newClient builds the streaming client from configuration. metricsAddr,
// when set, serves the client's Prometheus metrics until ctx ends.
func (e *env) newClient(ctx context.Context, logger *zap.Logger, metricsAddr string) (*solver.Manager, *solver.Guard, error) {
	completion, err := e.cfg.CompletionPolicy()
	if err != nil {
		return nil, nil, err
	}

	var metrics *solver.Metrics
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = solver.NewMetrics(reg)
		serveMetrics(ctx, metricsAddr, reg, logger)
	}

	negotiator := solver.NewHTTPNegotiator(e.cfg.Solver.BaseURL, e.cfg.Solver.Timeout, logger)
	mgr := solver.NewManager(negotiator, solver.Options{
		WSBase:         e.cfg.WSBase(),
		ReconnectDelay: e.cfg.Stream.ReconnectDelay,
		HistoryLimit:   e.cfg.Stream.HistoryLimit,
		Completion:     completion,
		Metrics:        metrics,
		Logger:         logger,
	})
	return mgr, solver.NewGuard(mgr, logger), nil
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
