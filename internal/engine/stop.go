package engine

import (
	"context"
	"sync"
	"sync/atomic"
)

// StopSignal is a cooperative stop flag. It may be set once from any
// goroutine; the run polls it between steps and never aborts a chain that
// already started.
type StopSignal struct {
	stopped atomic.Bool
	once    sync.Once
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewStopSignal returns an unset signal.
func NewStopSignal() *StopSignal {
	ctx, cancel := context.WithCancel(context.Background())
	return &StopSignal{ctx: ctx, cancel: cancel}
}

// Stop sets the flag. Later calls are no-ops.
func (s *StopSignal) Stop() {
	s.once.Do(func() {
		s.stopped.Store(true)
		s.cancel()
	})
}

// Stopped reports whether Stop was called.
func (s *StopSignal) Stopped() bool { return s.stopped.Load() }

// Context is cancelled on Stop. Only interruptible pauses use it.
func (s *StopSignal) Context() context.Context { return s.ctx }
