package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/airfoil-studio/solverstream/internal/solver"
	"github.com/airfoil-studio/solverstream/internal/tui/views/summary"
)

func newRunCmd(e *env) *cobra.Command {
	var (
		flags paramFlags
		width int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one session headless and print progress",
		Long: `Run negotiates a session, streams it to completion and prints one line
per iteration followed by a summary. Unclean disconnects are retried with a
new session; a rejected negotiation ends the command with an error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := flags.params(cmd, e.cfg.Solver.UserID)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mgr, guard, err := e.newClient(ctx, e.logger, flags.metricsAddr)
			if err != nil {
				return err
			}
			defer mgr.Shutdown()

			r := &runner{src: mgr, guard: guard, out: cmd.OutOrStdout(), width: width, logger: e.logger}
			return r.run(ctx, params)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&width, "width", 80, "summary wrap width")
	return cmd
}

// runner follows one run from submission to a terminal state.
type runner struct {
	src interface {
		Snapshot() solver.Snapshot
		Updates() <-chan struct{}
	}
	guard interface {
		Submit(p solver.Params) (bool, error)
		Cancel()
	}
	out    io.Writer
	width  int
	logger *zap.Logger

	session  string
	lastIter int
	retrying bool
}

func (r *runner) run(ctx context.Context, p solver.Params) error {
	updates := r.src.Updates()
	if _, err := r.guard.Submit(p); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			r.guard.Cancel()
			return errInterrupted
		case <-updates:
		}

		snap := r.src.Snapshot()
		done, err := r.report(snap)
		if done || err != nil {
			return err
		}
	}
}

// report prints what changed since the last snapshot and says whether the
// run has reached a terminal state.
func (r *runner) report(snap solver.Snapshot) (bool, error) {
	if snap.SessionID != "" && snap.SessionID != r.session {
		r.session = snap.SessionID
		r.lastIter = 0
		fmt.Fprintf(r.out, "session %s (%s)\n", snap.SessionID, snap.Mode)
	}
	for _, it := range snap.History {
		if it.Iteration <= r.lastIter {
			continue
		}
		r.lastIter = it.Iteration
		fmt.Fprintln(r.out, formatIteration(it))
	}

	switch snap.State {
	case solver.StateCompleted:
		out, err := summary.Render(snap, r.width, "notty")
		if err != nil {
			r.logger.Warn("render summary", zap.Error(err))
			out = summary.Markdown(snap)
		}
		fmt.Fprint(r.out, out)
		return true, nil
	case solver.StateClosed:
		return true, errors.New("stream closed before the run completed")
	case solver.StateErrored:
		if !snap.Retrying {
			return true, fmt.Errorf("run failed: %s", snap.Error)
		}
		if !r.retrying {
			fmt.Fprintf(r.out, "%s; reconnecting\n", snap.Error)
		}
	}
	r.retrying = snap.State == solver.StateErrored
	return false, nil
}

func formatIteration(it solver.IterationMetrics) string {
	total := "?"
	if it.TotalIterations > 0 {
		total = fmt.Sprint(it.TotalIterations)
	}
	return fmt.Sprintf("iter %3d/%s  CL %.4f  CD %.5f  L/D %7.2f  loss %.4g",
		it.Iteration, total, it.CL, it.CD, it.CLCD, it.Loss)
}
