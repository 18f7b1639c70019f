package solver

import (
	"encoding/json"
	"sync"
)

// ConnectionState is the Manager's position in the connection lifecycle.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateOpen
	StateCompleted
	StateClosed
	StateErrored
)

var stateNames = map[ConnectionState]string{
	StateIdle:       "idle",
	StateConnecting: "connecting",
	StateOpen:       "open",
	StateCompleted:  "completed",
	StateClosed:     "closed",
	StateErrored:    "errored",
}

func (s ConnectionState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s ConnectionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Snapshot is a read-only copy of everything the streaming client publishes.
type Snapshot struct {
	State      ConnectionState
	Mode       Mode
	SessionID  string
	Connected  bool
	IsComplete bool
	Error      string
	// Cause is the typed error behind Error: *NegotiationError,
	// *ProtocolError or *ConnectionError.
	Cause error
	// Retrying is set while an Errored session waits for its reconnect.
	Retrying bool

	Metrics  *IterationMetrics
	Geometry *Geometry
	Result   *CompleteFrame
	History  []IterationMetrics

	// Sessions counts sessions started by this Manager, reconnects included.
	Sessions int
}

// Store holds published state. The Manager's event loop is its only writer;
// readers get deep copies.
type Store struct {
	mu       sync.RWMutex
	state    ConnectionState
	mode     Mode
	session  string
	conn     bool
	complete bool
	err      string
	cause    error
	retrying bool
	metrics  *IterationMetrics
	geometry *Geometry
	result   *CompleteFrame
	history  *History
	sessions int

	updates chan struct{}
}

// NewStore creates an idle store whose history keeps at most historyLimit
// entries (0 = unbounded).
func NewStore(historyLimit int) *Store {
	return &Store{
		history: NewHistory(historyLimit),
		updates: make(chan struct{}, 1),
	}
}

// Updates delivers a coalesced notification after every change.
func (s *Store) Updates() <-chan struct{} {
	return s.updates
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		State:      s.state,
		Mode:       s.mode,
		SessionID:  s.session,
		Connected:  s.conn,
		IsComplete: s.complete,
		Error:      s.err,
		Cause:      s.cause,
		Retrying:   s.retrying,
		History:    s.history.Slice(),
		Sessions:   s.sessions,
	}
	if s.metrics != nil {
		m := *s.metrics
		snap.Metrics = &m
	}
	if s.geometry != nil {
		g := s.geometry.clone()
		snap.Geometry = &g
	}
	if s.result != nil {
		r := CompleteFrame{
			Meta:         s.result.Meta,
			Shape:        s.result.Shape.clone(),
			InitialShape: s.result.InitialShape.clone(),
		}
		snap.Result = &r
	}
	return snap
}

func (s *Store) update(fn func(s *Store)) {
	s.mu.Lock()
	fn(s)
	s.mu.Unlock()
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// beginSession resets per-session state for a new Connecting cycle.
func (s *Store) beginSession(mode Mode) {
	s.update(func(s *Store) {
		s.state = StateConnecting
		s.mode = mode
		s.session = ""
		s.conn = false
		s.complete = false
		s.err = ""
		s.cause = nil
		s.retrying = false
		s.metrics = nil
		s.geometry = nil
		s.result = nil
		s.history.Reset()
		s.sessions++
	})
}

func (s *Store) setSession(id string) {
	s.update(func(s *Store) { s.session = id })
}

func (s *Store) setOpen() {
	s.update(func(s *Store) {
		s.state = StateOpen
		s.conn = true
		s.err = ""
		s.cause = nil
	})
}

func (s *Store) setErrored(cause error, retrying bool) {
	s.update(func(s *Store) {
		s.state = StateErrored
		s.conn = false
		s.err = publicMessage(cause)
		s.cause = cause
		s.retrying = retrying
	})
}

func (s *Store) setClosed() {
	s.update(func(s *Store) {
		s.state = StateClosed
		s.conn = false
		s.retrying = false
	})
}

func (s *Store) setCompleted() {
	s.update(func(s *Store) {
		s.state = StateCompleted
		s.complete = true
		s.conn = false
	})
}

func (s *Store) recordIteration(f *IterationFrame) {
	s.update(func(s *Store) {
		m := f.Meta
		g := f.Shape.clone()
		s.metrics = &m
		s.geometry = &g
		s.history.Append(m)
	})
}

func (s *Store) recordComplete(f *CompleteFrame) {
	s.update(func(s *Store) {
		s.result = &CompleteFrame{
			Meta:         f.Meta,
			Shape:        f.Shape.clone(),
			InitialShape: f.InitialShape.clone(),
		}
	})
}
