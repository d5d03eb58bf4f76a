package progress

import (
	"go.uber.org/atomic"
)

// Normalized counts steps of a process of known size and forwards a fraction to a
// Callback every time the completed share crosses a new percent. It is safe for
// concurrent use by cell workers.
type Normalized struct {
	cb          Callback
	total       uint64
	steps       atomic.Uint64
	lastPercent atomic.Uint64
}

// NewNormalized returns a counter for totalSteps steps reporting to cb, which may be nil.
func NewNormalized(cb Callback, totalSteps int) *Normalized {
	total := uint64(1)
	if totalSteps > 0 {
		total = uint64(totalSteps)
	}
	return &Normalized{cb: OrNoop(cb), total: total}
}

// OneStep records one step. It returns false if cancellation was requested.
func (np *Normalized) OneStep() bool {
	return np.Steps(1)
}

// Steps records n steps. It returns false if cancellation was requested.
func (np *Normalized) Steps(n int) bool {
	if n > 0 {
		done := np.steps.Add(uint64(n))
		if done > np.total {
			done = np.total
		}
		percent := done * 100 / np.total
		for {
			last := np.lastPercent.Load()
			if percent <= last {
				break
			}
			if np.lastPercent.CompareAndSwap(last, percent) {
				np.cb.Report(float64(percent) / 100)
				break
			}
		}
	}
	return !np.cb.Cancelled()
}

// Done returns the number of recorded steps.
func (np *Normalized) Done() int {
	return int(np.steps.Load())
}

// Cancelled reports whether cancellation was requested.
func (np *Normalized) Cancelled() bool {
	return np.cb.Cancelled()
}
