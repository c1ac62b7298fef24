package poller

import "math/rand"

const (
	progressStart = 10.0
	progressCeil  = 95.0
	progressDone  = 100.0

	stepMin = 0.5
	stepMax = 2.5
)

// ProgressEstimator synthesizes a progress percentage for vendors that do
// not report one. The first observation yields 10; every later one adds a
// uniform amount in [0.5, 2.5] and never exceeds 95 before the task is
// terminal. An explicit vendor percentage overrides the synthesized value.
type ProgressEstimator struct {
	value   float64
	started bool
	rand    func() float64
}

func NewProgressEstimator(randFn func() float64) *ProgressEstimator {
	if randFn == nil {
		randFn = rand.Float64
	}
	return &ProgressEstimator{rand: randFn}
}

// Observe returns the progress to display for a non-terminal poll. When the
// vendor reports a percentage it is used as-is; otherwise the synthesized
// value advances.
func (e *ProgressEstimator) Observe(reported *int) float64 {
	if reported != nil {
		e.started = true
		e.value = float64(*reported)
		return e.value
	}
	if !e.started {
		e.started = true
		e.value = progressStart
		return e.value
	}
	e.value += stepMin + e.rand()*(stepMax-stepMin)
	if e.value > progressCeil {
		e.value = progressCeil
	}
	return e.value
}

// Complete snaps the progress to 100 regardless of the last observed value.
func (e *ProgressEstimator) Complete() float64 {
	e.started = true
	e.value = progressDone
	return e.value
}

// Value reports the last progress without advancing it.
func (e *ProgressEstimator) Value() float64 {
	return e.value
}
