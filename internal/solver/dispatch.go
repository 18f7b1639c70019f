package solver

import (
	"go.uber.org/zap"
)

// Dispatcher applies decoded frames to published state.
type Dispatcher struct {
	store   *Store
	metrics *Metrics
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher writing into store. metrics may be nil.
func NewDispatcher(store *Store, metrics *Metrics, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{store: store, metrics: metrics, logger: logger}
}

// Dispatch handles one text message and reports whether it was a complete
// frame. Malformed messages are logged and dropped without touching state.
func (d *Dispatcher) Dispatch(data []byte) (completed bool) {
	frame, err := DecodeFrame(data)
	if err != nil {
		d.metrics.frame("invalid")
		d.logger.Warn("dropping malformed frame", zap.Error(err), zap.Int("bytes", len(data)))
		return false
	}

	switch f := frame.(type) {
	case *IterationFrame:
		d.metrics.frame(string(FrameIteration))
		d.store.recordIteration(f)
		d.logger.Debug("iteration",
			zap.Int("iteration", f.Meta.Iteration),
			zap.Int("total", f.Meta.TotalIterations),
			zap.Float64("cl_cd", f.Meta.CLCD))
		return false

	case *CompleteFrame:
		d.metrics.frame(string(FrameComplete))
		d.store.recordComplete(f)
		d.logger.Info("run complete",
			zap.Int("total_iterations", f.Meta.TotalIterations),
			zap.Float64("final_cl_cd", f.Meta.FinalCLCD))
		return true

	case *WarningFrame:
		d.metrics.frame(string(FrameWarning))
		d.logger.Warn("solver warning",
			zap.String("message", f.Message),
			zap.Int("iteration", f.Iteration))
		return false
	}

	d.metrics.frame("unknown")
	d.logger.Debug("ignoring frame of unknown type")
	return false
}
