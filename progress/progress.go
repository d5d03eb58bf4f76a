// Package progress provides the progress notification and cooperative cancellation
// channel polled by long running algorithms.
package progress

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

// Callback receives progress notifications and tells whether the caller
// asked to stop. Implementations must not block.
type Callback interface {
	// Report is called with the fraction of the work done, in [0, 1].
	Report(fraction float64)

	// Cancelled reports whether the process should stop as soon as possible.
	Cancelled() bool
}

// ReportFunc adapts a function to receive progress fractions.
type ReportFunc func(fraction float64)

type contextCallback struct {
	ctx    context.Context
	report ReportFunc
}

// NewContextCallback returns a Callback that is cancelled when ctx is done and
// forwards fractions to report, which may be nil.
func NewContextCallback(ctx context.Context, report ReportFunc) Callback {
	return &contextCallback{ctx: ctx, report: report}
}

func (cb *contextCallback) Report(fraction float64) {
	if cb.report != nil {
		cb.report(fraction)
	}
}

func (cb *contextCallback) Cancelled() bool {
	return cb.ctx.Err() != nil
}

// Recorder is a Callback that keeps the last reported fraction and can be
// cancelled manually. It is mostly useful in tests.
type Recorder struct {
	mu        sync.Mutex
	fractions []float64
	cancelled atomic.Bool
}

// Report records the fraction.
func (r *Recorder) Report(fraction float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fractions = append(r.fractions, fraction)
}

// Cancel requests cancellation.
func (r *Recorder) Cancel() {
	r.cancelled.Store(true)
}

// Cancelled reports whether Cancel was called.
func (r *Recorder) Cancelled() bool {
	return r.cancelled.Load()
}

// Fractions returns a copy of every reported fraction, in order.
func (r *Recorder) Fractions() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, len(r.fractions))
	copy(out, r.fractions)
	return out
}

// Last returns the last reported fraction, or 0.
func (r *Recorder) Last() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.fractions) == 0 {
		return 0
	}
	return r.fractions[len(r.fractions)-1]
}

type noop struct{}

func (noop) Report(float64)  {}
func (noop) Cancelled() bool { return false }

// OrNoop returns cb, or a callback that ignores everything when cb is nil.
func OrNoop(cb Callback) Callback {
	if cb == nil {
		return noop{}
	}
	return cb
}
