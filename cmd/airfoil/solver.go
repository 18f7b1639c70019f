package main

import (
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/airfoil-studio/solverstream/internal/mocksolver"
)

func newSolverCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solver",
		Short: "Serve the mock solver for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := e.cfg.Mock
			fs := cmd.Flags()
			if fs.Changed("host") {
				m.Host, _ = fs.GetString("host")
			}
			if fs.Changed("port") {
				m.Port, _ = fs.GetInt("port")
			}
			if fs.Changed("drop-after") {
				m.DropAfter, _ = fs.GetInt("drop-after")
			}
			if fs.Changed("warnings") {
				m.Warnings, _ = fs.GetBool("warnings")
			}
			if fs.Changed("reject-status") {
				m.RejectStatus, _ = fs.GetInt("reject-status")
			}
			if fs.Changed("frame-interval") {
				m.FrameInterval, _ = fs.GetDuration("frame-interval")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := mocksolver.New(mocksolver.Options{
				FrameInterval: m.FrameInterval,
				DropAfter:     m.DropAfter,
				Warnings:      m.Warnings,
				RejectStatus:  m.RejectStatus,
				Logger:        e.logger,
			})
			return srv.ListenAndServe(ctx, net.JoinHostPort(m.Host, strconv.Itoa(m.Port)))
		},
	}
	fs := cmd.Flags()
	fs.String("host", "", "listen host (mock.host)")
	fs.Int("port", 0, "listen port (mock.port)")
	fs.Int("drop-after", 0, "drop every stream after this many frames")
	fs.Bool("warnings", false, "emit warning frames")
	fs.Int("reject-status", 0, "fail every negotiation with this HTTP status")
	fs.Duration("frame-interval", 0, "delay between frames (mock.frame_interval)")
	return cmd
}
