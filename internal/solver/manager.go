package solver

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultReconnectDelay is the fixed wait before reconnecting after an
// unclean close.
const DefaultReconnectDelay = 3 * time.Second

// ErrShutdown is returned by Manager methods after Shutdown.
var ErrShutdown = errors.New("solver: manager shut down")

// CompletionPolicy decides whether a clean close counts as completion.
type CompletionPolicy int

const (
	// CompletionByMode uses CompleteOnCleanClose for simulation sessions and
	// CompleteOnFrame for optimization sessions.
	CompletionByMode CompletionPolicy = iota
	// CompleteOnFrame completes only on an explicit complete frame.
	CompleteOnFrame
	// CompleteOnCleanClose also treats any clean close as completion.
	CompleteOnCleanClose
)

func (p CompletionPolicy) resolve(mode Mode) CompletionPolicy {
	if p != CompletionByMode {
		return p
	}
	if mode == ModeSimulation {
		return CompleteOnCleanClose
	}
	return CompleteOnFrame
}

// CloseReason records why the Manager closed a socket itself. The close
// handler consults it so that an intentional close never reconnects.
type CloseReason int

const (
	ReasonNone CloseReason = iota
	ReasonCancelled
	ReasonReconfigured
	ReasonCompleted
	ReasonShutdown
)

var closeReasonText = map[CloseReason]string{
	ReasonCancelled:    "Simulation cancelled by user",
	ReasonReconfigured: "Configuration changed",
	ReasonCompleted:    "Run complete",
	ReasonShutdown:     "Client shutting down",
}

func (r CloseReason) String() string {
	if s, ok := closeReasonText[r]; ok {
		return s
	}
	return "none"
}

// Options configures a Manager.
type Options struct {
	// WSBase is the WebSocket base URL, e.g. "ws://127.0.0.1:8000".
	WSBase         string
	ReconnectDelay time.Duration
	HistoryLimit   int
	Completion     CompletionPolicy
	Dialer         Dialer
	Metrics        *Metrics
	Logger         *zap.Logger
}

type connection struct {
	ws        Conn
	sessionID string
	reason    CloseReason
}

// Loop events.
type (
	startCmd struct {
		req *Request
		ack chan struct{}
	}
	cancelCmd   struct{ ack chan struct{} }
	shutdownCmd struct{ ack chan struct{} }

	attemptResult struct {
		attempt uint64
		handle  *Handle
		conn    Conn
		negErr  error
		dialErr error
	}
	messageEvt struct {
		conn *connection
		data []byte
	}
	closedEvt struct {
		conn  *connection
		clean bool
		err   error
	}
	reconnectEvt struct{ timer uint64 }
)

// Manager owns the solver WebSocket and drives the connection state machine.
// All state changes happen on one event-loop goroutine; callers interact
// through Start, Cancel and Shutdown and observe state through Snapshot.
type Manager struct {
	negotiator Negotiator
	dialer     Dialer
	opts       Options
	store      *Store
	dispatcher *Dispatcher
	metrics    *Metrics
	logger     *zap.Logger

	events       chan any
	stopping     chan struct{}
	done         chan struct{}
	postMu       sync.RWMutex
	stopped      bool
	baseCtx      context.Context
	baseCancel   context.CancelFunc
	shutdownOnce sync.Once

	// Owned by the event loop.
	req           *Request
	conn          *connection
	seq           uint64
	attemptID     uint64
	attemptCancel context.CancelFunc
	timer         *time.Timer
	timerID       uint64
}

// NewManager creates a Manager and starts its event loop.
func NewManager(negotiator Negotiator, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = WebSocketDialer{}
	}
	opts.WSBase = strings.TrimRight(opts.WSBase, "/")

	store := NewStore(opts.HistoryLimit)
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		negotiator: negotiator,
		dialer:     opts.Dialer,
		opts:       opts,
		store:      store,
		dispatcher: NewDispatcher(store, opts.Metrics, opts.Logger),
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		events:     make(chan any, 64),
		stopping:   make(chan struct{}),
		done:       make(chan struct{}),
		baseCtx:    ctx,
		baseCancel: cancel,
	}
	go m.loop()
	return m
}

// Start tears down any live session and begins a new one for req. It returns
// once the previous socket (if any) has been closed and the new negotiation
// has been launched.
func (m *Manager) Start(req *Request) error {
	ack := make(chan struct{})
	return m.send(startCmd{req: req, ack: ack}, ack)
}

// Cancel closes the live session without reconnecting. It is a no-op when
// nothing is live and safe to call repeatedly.
func (m *Manager) Cancel() {
	ack := make(chan struct{})
	_ = m.send(cancelCmd{ack: ack}, ack)
}

// Shutdown cancels any session and stops the event loop. Pending reconnects
// are discarded. Safe to call more than once.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		ack := make(chan struct{})
		_ = m.send(shutdownCmd{ack: ack}, ack)
		<-m.done
	})
}

// Snapshot returns a copy of the published state.
func (m *Manager) Snapshot() Snapshot {
	return m.store.Snapshot()
}

// Updates delivers a coalesced notification after each state change.
func (m *Manager) Updates() <-chan struct{} {
	return m.store.Updates()
}

// Done is closed once the Manager has shut down.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) send(ev any, ack chan struct{}) error {
	select {
	case m.events <- ev:
	case <-m.done:
		return ErrShutdown
	}
	select {
	case <-ack:
		return nil
	case <-m.done:
		return ErrShutdown
	}
}

// post delivers an event from a helper goroutine. After shutdown the event is
// dropped and any socket it carries is closed.
func (m *Manager) post(ev any) {
	m.postMu.RLock()
	defer m.postMu.RUnlock()
	if m.stopped {
		discard(ev)
		return
	}
	select {
	case m.events <- ev:
	case <-m.stopping:
		discard(ev)
	}
}

// stop runs when the loop exits. Once stopped is set no poster can enqueue,
// so draining the buffer catches every socket still in flight.
func (m *Manager) stop() {
	close(m.stopping)
	m.postMu.Lock()
	m.stopped = true
	m.postMu.Unlock()
	for {
		select {
		case ev := <-m.events:
			discard(ev)
		default:
			close(m.done)
			return
		}
	}
}

func discard(ev any) {
	if r, ok := ev.(attemptResult); ok && r.conn != nil {
		r.conn.Close()
	}
}

func (m *Manager) loop() {
	defer m.stop()
	for ev := range m.events {
		switch ev := ev.(type) {
		case startCmd:
			m.handleStart(ev.req)
			close(ev.ack)
		case cancelCmd:
			m.handleCancel()
			close(ev.ack)
		case shutdownCmd:
			if m.teardown(ReasonShutdown) {
				m.store.setClosed()
			}
			m.req = nil
			m.baseCancel()
			m.metrics.connected(false)
			close(ev.ack)
			return
		case attemptResult:
			m.handleAttempt(ev)
		case messageEvt:
			m.handleMessage(ev)
		case closedEvt:
			m.handleClosed(ev)
		case reconnectEvt:
			m.handleReconnect(ev)
		}
	}
}

func (m *Manager) handleStart(req *Request) {
	if m.teardown(ReasonReconfigured) {
		m.logger.Info("configuration changed, replacing session")
	}
	m.req = req
	m.begin()
}

func (m *Manager) handleCancel() {
	if !m.teardown(ReasonCancelled) {
		m.logger.Debug("cancel with no live session")
		return
	}
	m.req = nil
	m.store.setClosed()
	m.metrics.connected(false)
	m.logger.Info("session cancelled")
}

// begin starts a Connecting cycle for m.req: publish the reset state, then
// negotiate and dial off the loop.
func (m *Manager) begin() {
	req := m.req
	m.store.beginSession(req.Mode)

	m.seq++
	id := m.seq
	ctx, cancel := context.WithCancel(m.baseCtx)
	m.attemptID = id
	m.attemptCancel = cancel

	m.logger.Info("negotiating session",
		zap.String("mode", string(req.Mode)),
		zap.String("fidelity", string(req.Fidelity)))
	go m.connect(ctx, id, req)
}

func (m *Manager) connect(ctx context.Context, id uint64, req *Request) {
	handle, err := m.negotiator.Negotiate(ctx, req)
	if err != nil {
		m.post(attemptResult{attempt: id, negErr: err})
		return
	}
	url := m.opts.WSBase + StreamPath(req.Mode, handle.SessionID)
	conn, err := m.dialer.Dial(ctx, url)
	if err == nil && ctx.Err() != nil {
		conn.Close()
		conn, err = nil, ctx.Err()
	}
	m.post(attemptResult{attempt: id, handle: handle, conn: conn, dialErr: err})
}

func (m *Manager) handleAttempt(r attemptResult) {
	if r.attempt != m.attemptID {
		// Superseded or cancelled while in flight.
		if r.conn != nil {
			r.conn.Close()
		}
		return
	}
	m.attemptCancel()
	m.attemptCancel = nil
	m.attemptID = 0
	mode := m.req.Mode

	if r.negErr != nil {
		m.metrics.negotiation(mode, "error")
		m.logger.Error("session negotiation failed", zap.Error(r.negErr))
		m.store.setErrored(r.negErr, false)
		return
	}
	m.metrics.negotiation(mode, "ok")
	m.store.setSession(r.handle.SessionID)

	if r.dialErr != nil {
		cerr := &ConnectionError{Err: r.dialErr}
		m.logger.Warn("stream dial failed",
			zap.String("session_id", r.handle.SessionID),
			zap.Error(cerr))
		m.store.setErrored(cerr, true)
		m.scheduleReconnect()
		return
	}

	c := &connection{ws: r.conn, sessionID: r.handle.SessionID}
	m.conn = c
	m.store.setOpen()
	m.metrics.connected(true)
	m.logger.Info("stream open", zap.String("session_id", c.sessionID))
	go m.read(c)
}

func (m *Manager) read(c *connection) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			m.post(closedEvt{conn: c, clean: isCleanClose(err), err: err})
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		m.post(messageEvt{conn: c, data: data})
	}
}

func (m *Manager) handleMessage(ev messageEvt) {
	if ev.conn != m.conn || ev.conn.reason != ReasonNone {
		return
	}
	if !m.dispatcher.Dispatch(ev.data) {
		return
	}
	m.store.setCompleted()
	m.metrics.connected(false)
	m.closeConn(ev.conn, ReasonCompleted)
	m.conn = nil
	m.req = nil
}

func (m *Manager) handleClosed(ev closedEvt) {
	c := ev.conn
	if c.reason != ReasonNone {
		m.logger.Debug("expected close", zap.String("reason", c.reason.String()))
		return
	}
	if c != m.conn {
		return
	}
	m.conn = nil
	m.metrics.connected(false)
	c.ws.Close()

	if ev.clean {
		if m.opts.Completion.resolve(m.req.Mode) == CompleteOnCleanClose {
			m.store.setCompleted()
			m.logger.Info("stream closed cleanly, treating as complete", zap.String("session_id", c.sessionID))
		} else {
			m.store.setClosed()
			m.logger.Info("stream closed cleanly", zap.String("session_id", c.sessionID))
		}
		m.req = nil
		return
	}

	cerr := &ConnectionError{Err: ev.err}
	m.logger.Warn("stream dropped", zap.String("session_id", c.sessionID), zap.Error(cerr))
	m.store.setErrored(cerr, true)
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	m.seq++
	id := m.seq
	m.timerID = id
	m.timer = time.AfterFunc(m.opts.ReconnectDelay, func() {
		m.post(reconnectEvt{timer: id})
	})
	m.metrics.reconnect()
	m.logger.Info("reconnect scheduled", zap.Duration("delay", m.opts.ReconnectDelay))
}

func (m *Manager) handleReconnect(ev reconnectEvt) {
	if ev.timer != m.timerID || m.req == nil {
		return
	}
	m.timer = nil
	m.timerID = 0
	m.logger.Info("reconnecting")
	m.begin()
}

// teardown stops whatever is live (reconnect timer, in-flight negotiation,
// open socket) and reports whether anything was.
func (m *Manager) teardown(reason CloseReason) bool {
	live := false
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
		m.timerID = 0
		live = true
	}
	if m.attemptCancel != nil {
		m.attemptCancel()
		m.attemptCancel = nil
		m.attemptID = 0
		live = true
	}
	if m.conn != nil {
		m.closeConn(m.conn, reason)
		m.conn = nil
		live = true
	}
	return live
}

// closeConn marks c with reason before closing it, so the close event it
// produces is recognised as expected.
func (m *Manager) closeConn(c *connection, reason CloseReason) {
	c.reason = reason
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason.String())
	if err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout)); err != nil {
		m.logger.Debug("close frame not sent", zap.Error(err))
	}
	c.ws.Close()
}

// publicMessage is the user-facing text for err. Transport details stay in
// the logs.
func publicMessage(err error) string {
	var ne *NegotiationError
	if errors.As(err, &ne) {
		return ne.Message
	}
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return genericConnectionError
	}
	return err.Error()
}
