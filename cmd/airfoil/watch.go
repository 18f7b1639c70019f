package main

import (
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/airfoil-studio/solverstream/internal/logging"
	"github.com/airfoil-studio/solverstream/internal/tui/app"
)

func newWatchCmd(e *env) *cobra.Command {
	var (
		flags   paramFlags
		logFile string
		style   string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream a session into the terminal dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := flags.params(cmd, e.cfg.Solver.UserID)
			if err != nil {
				return err
			}

			// Anything written to the terminal would tear the dashboard.
			logger := zap.NewNop()
			if logFile != "" {
				lc := e.cfg.Logging()
				lc.OutputPaths = []string{logFile}
				if logger, err = logging.New(lc); err != nil {
					return err
				}
				defer func() { _ = logger.Sync() }()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mgr, guard, err := e.newClient(ctx, logger, flags.metricsAddr)
			if err != nil {
				return err
			}
			defer mgr.Shutdown()
			defer guard.Cancel()

			model := app.New(mgr, guard, params).WithSummaryStyle(style)
			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			if ctx.Err() != nil {
				return errInterrupted
			}
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file while the dashboard runs")
	cmd.Flags().StringVar(&style, "summary-style", "dark", "glamour style for the completion report")
	return cmd
}
