// Package mocksolver is an in-process stand-in for the remote airfoil
// solver. It negotiates sessions over HTTP and streams synthetic iteration
// frames over WebSocket, with knobs for rejected negotiations, dropped
// connections and warning frames.
package mocksolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/airfoil-studio/solverstream/internal/solver"
)

const (
	defaultFrameInterval = 200 * time.Millisecond
	defaultMaxFrames     = 500
	warningEvery         = 10
)

// Options configures a Server.
type Options struct {
	FrameInterval time.Duration
	// DropAfter, when positive, kills every stream without a closing
	// handshake after that many iteration frames.
	DropAfter int
	// Warnings emits a warning frame every few iterations.
	Warnings bool
	// RejectStatus, when set, fails every negotiation with that status.
	RejectStatus int
	MaxFrames    int
	Logger       *zap.Logger
}

type Server struct {
	opts     Options
	sessions *sessionTable
	upgrader websocket.Upgrader
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *serverMetrics

	mu     sync.Mutex
	active int
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

func New(opts Options) *Server {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = defaultFrameInterval
	}
	if opts.MaxFrames <= 0 {
		opts.MaxFrames = defaultMaxFrames
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	return &Server{
		opts:     opts,
		sessions: newSessionTable(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:   logger.Named("mocksolver"),
		registry: reg,
		metrics:  newServerMetrics(reg),
		done:     make(chan struct{}),
	}
}

// Handler returns the solver's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", s.handleNegotiate(solver.ModeSimulation))
	mux.HandleFunc("POST /optimize/sessions", s.handleNegotiate(solver.ModeOptimization))
	mux.HandleFunc("GET /ws/{id}", s.handleStream(solver.ModeSimulation))
	mux.HandleFunc("GET /optimize/ws/{id}", s.handleStream(solver.ModeOptimization))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// Close ends every open stream with a closing handshake and waits for them.
func (s *Server) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("mock solver listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type validationIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func (s *Server) handleNegotiate(mode solver.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.RejectStatus != 0 {
			s.metrics.negotiations.WithLabelValues(string(mode), "rejected").Inc()
			writeJSON(w, s.opts.RejectStatus, map[string]any{"detail": "solver unavailable"})
			return
		}

		var req sessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.metrics.negotiations.WithLabelValues(string(mode), "invalid").Inc()
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "invalid JSON body: " + err.Error()})
			return
		}
		if issues := validate(req); len(issues) > 0 {
			s.metrics.negotiations.WithLabelValues(string(mode), "invalid").Inc()
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": issues})
			return
		}

		sess := &Session{
			ID:        uuid.NewString(),
			Mode:      mode,
			Request:   req,
			Frames:    frameCount(mode, req, s.opts.MaxFrames),
			CreatedAt: time.Now(),
		}
		s.sessions.add(sess)
		s.metrics.negotiations.WithLabelValues(string(mode), "ok").Inc()
		s.logger.Info("session created",
			zap.String("session_id", sess.ID),
			zap.String("mode", string(mode)),
			zap.Int("frames", sess.Frames))

		writeJSON(w, http.StatusOK, map[string]any{
			"session_id": sess.ID,
			"config":     req,
		})
	}
}

func validate(req sessionRequest) []validationIssue {
	var issues []validationIssue
	if len(req.CSTUpper) == 0 {
		issues = append(issues, validationIssue{Loc: []string{"body", "cst_upper"}, Msg: "cst_upper: field required", Type: "missing"})
	}
	if len(req.CSTLower) == 0 {
		issues = append(issues, validationIssue{Loc: []string{"body", "cst_lower"}, Msg: "cst_lower: field required", Type: "missing"})
	}
	if req.Fidelity != "" && !solver.Fidelity(req.Fidelity).Valid() {
		issues = append(issues, validationIssue{Loc: []string{"body", "fidelity"}, Msg: fmt.Sprintf("fidelity: unknown tier %q", req.Fidelity), Type: "enum"})
	}
	return issues
}

func (s *Server) handleStream(mode solver.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.get(r.PathValue("id"))
		if !ok || sess.Mode != mode {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		if !s.enter() {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		defer s.wg.Done()

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("ws upgrade error", zap.Error(err))
			return
		}
		s.sessions.attach(sess.ID)
		sess.Streams++

		s.streamOpened()
		defer s.streamClosed()
		s.logger.Info("stream opened", zap.String("session_id", sess.ID), zap.String("remote", r.RemoteAddr))

		s.play(sess, newClient(conn, s.logger))
		s.logger.Info("stream closed", zap.String("session_id", sess.ID))
	}
}

type iterationMsg struct {
	Type  solver.FrameType        `json:"type"`
	Meta  solver.IterationMetrics `json:"meta"`
	Shape solver.Geometry         `json:"shape"`
}

type completeMsg struct {
	Type         solver.FrameType    `json:"type"`
	Meta         solver.FinalMetrics `json:"meta"`
	Shape        solver.Geometry     `json:"shape"`
	InitialShape solver.Geometry     `json:"initial_shape"`
}

type warningMsg struct {
	Type      solver.FrameType `json:"type"`
	Message   string           `json:"message"`
	Iteration int              `json:"iteration"`
}

// play streams one session. Optimization runs end with a complete frame,
// simulation runs with the closing handshake alone.
func (s *Server) play(sess *Session, c *client) {
	traj := newTrajectory(sess)
	ticker := time.NewTicker(s.opts.FrameInterval)
	defer ticker.Stop()

	for !traj.done() {
		select {
		case <-c.gone:
			c.finish(endAbort)
			return
		case <-s.done:
			c.finish(endClean)
			return
		case <-ticker.C:
		}

		if s.opts.DropAfter > 0 && traj.step >= s.opts.DropAfter {
			s.logger.Info("dropping stream", zap.String("session_id", sess.ID), zap.Int("after", traj.step))
			c.finish(endDrop)
			return
		}

		meta, shape := traj.advance()
		if !c.push(iterationMsg{Type: solver.FrameIteration, Meta: meta, Shape: shape}) {
			c.finish(endAbort)
			return
		}
		s.metrics.frames.WithLabelValues(string(solver.FrameIteration)).Inc()

		if s.opts.Warnings && meta.Iteration%warningEvery == 0 {
			c.push(warningMsg{
				Type:      solver.FrameWarning,
				Message:   fmt.Sprintf("residual plateau at iteration %d", meta.Iteration),
				Iteration: meta.Iteration,
			})
			s.metrics.frames.WithLabelValues(string(solver.FrameWarning)).Inc()
		}
	}

	if sess.Mode == solver.ModeOptimization {
		c.push(completeMsg{
			Type:         solver.FrameComplete,
			Meta:         traj.final(),
			Shape:        traj.currentShape(),
			InitialShape: traj.initialShape(),
		})
		s.metrics.frames.WithLabelValues(string(solver.FrameComplete)).Inc()
	}
	c.finish(endClean)
}

// enter registers a stream handler unless the server is closing.
func (s *Server) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) streamOpened() {
	s.mu.Lock()
	s.active++
	s.mu.Unlock()
	s.metrics.streams.Inc()
}

func (s *Server) streamClosed() {
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	s.metrics.streams.Dec()
}

// ActiveStreams returns the number of open streams.
func (s *Server) ActiveStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Sessions returns the number of negotiated sessions.
func (s *Server) Sessions() int {
	return s.sessions.count()
}

type health struct {
	Status        string  `json:"status"`
	Sessions      int     `json:"sessions"`
	ActiveStreams int     `json:"active_streams"`
	CPUs          int     `json:"cpus,omitempty"`
	MemoryUsedPct float64 `json:"memory_used_percent,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := health{
		Status:        "ok",
		Sessions:      s.Sessions(),
		ActiveStreams: s.ActiveStreams(),
	}
	if n, err := cpu.CountsWithContext(r.Context(), true); err == nil {
		h.CPUs = n
	}
	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		h.MemoryUsedPct = vm.UsedPercent
	}
	writeJSON(w, http.StatusOK, h)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
