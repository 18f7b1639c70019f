package solver

import (
	"sync"

	"go.uber.org/zap"
)

// Starter is the part of Manager the Guard drives.
type Starter interface {
	Start(req *Request) error
	Cancel()
}

// Guard is the entry point for configuration changes. It starts a new session
// only when the canonical fingerprint of the submitted configuration differs
// from the one that started the tracked session.
type Guard struct {
	starter Starter
	logger  *zap.Logger

	mu   sync.Mutex
	last string
}

// NewGuard creates a guard in front of starter.
func NewGuard(starter Starter, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{starter: starter, logger: logger}
}

// Submit normalizes p and starts a session if it changed. Configuration
// errors are returned before anything is started.
func (g *Guard) Submit(p Params) (started bool, err error) {
	req, err := Normalize(p)
	if err != nil {
		return false, err
	}
	return g.SubmitRequest(req)
}

// SubmitRequest is Submit for an already canonical request.
func (g *Guard) SubmitRequest(req *Request) (started bool, err error) {
	fp, err := Fingerprint(req)
	if err != nil {
		return false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if fp == g.last {
		g.logger.Debug("configuration unchanged", zap.String("fingerprint", fp[:12]))
		return false, nil
	}
	if err := g.starter.Start(req); err != nil {
		return false, err
	}
	g.last = fp
	g.logger.Info("session started for new configuration", zap.String("fingerprint", fp[:12]))
	return true, nil
}

// Cancel cancels the live session. The tracked fingerprint is kept, so
// resubmitting the same configuration stays a no-op; use a new run id or
// Forget to run it again.
func (g *Guard) Cancel() {
	g.starter.Cancel()
}

// Forget clears the tracked fingerprint so the next submission always starts
// a session.
func (g *Guard) Forget() {
	g.mu.Lock()
	g.last = ""
	g.mu.Unlock()
}

// Fingerprint returns the fingerprint of the tracked configuration.
func (g *Guard) Fingerprint() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}
