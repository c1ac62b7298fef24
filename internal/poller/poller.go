package poller

import (
	"context"
	"time"

	"server/internal/generation"
	"server/internal/infra"
)

// State is the lifecycle of one polling session.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateTimedOut   State = "timed_out"
)

// Config is the per-kind polling budget.
type Config struct {
	Kind        generation.Kind
	Interval    time.Duration
	MaxAttempts int
}

// ConfigFor returns the polling budget for a media kind: videos are polled
// every 5s up to 60 times, images every 2s up to 120 times.
func ConfigFor(kind generation.Kind) Config {
	if kind == generation.KindVideo {
		return Config{Kind: kind, Interval: 5 * time.Second, MaxAttempts: 60}
	}
	return Config{Kind: generation.KindImage, Interval: 2 * time.Second, MaxAttempts: 120}
}

// Observation is one status read of a submitted task.
type Observation struct {
	Status   generation.Status
	Progress *int
	Results  []string
	Error    string
	Message  string
}

// SubmitFunc creates the task and returns its id.
type SubmitFunc func(ctx context.Context) (string, error)

// FetchFunc reads the current task state. A returned error is treated as
// transient and consumes one attempt.
type FetchFunc func(ctx context.Context, taskID string) (Observation, error)

// Session is the mutable state of one generation watched to completion. It
// is owned by a single caller; the Poller mutates it between updates.
type Session struct {
	Kind           generation.Kind
	TaskID         string
	State          State
	Attempt        int
	Progress       float64
	Results        []string
	FailureMessage string
}

// Poller drives a task from submission to a terminal state. The sleep and
// random functions are injectable so tests run without wall-clock time.
type Poller struct {
	fetch  FetchFunc
	logger infra.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	rand   func() float64
}

func New(fetch FetchFunc, logger infra.Logger) *Poller {
	return &Poller{
		fetch:  fetch,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Run submits the task and polls it until it succeeds, fails, or the
// attempt budget is spent. onUpdate, when set, is invoked after every state
// change with the current session. The returned error is non-nil only for
// submission failures and context cancellation; Failed and TimedOut are
// ordinary outcomes reported through the session state.
func (p *Poller) Run(ctx context.Context, cfg Config, submit SubmitFunc, onUpdate func(*Session)) (*Session, error) {
	s := &Session{Kind: cfg.Kind, State: StateIdle}
	notify := func() {
		if onUpdate != nil {
			onUpdate(s)
		}
	}

	s.State = StateSubmitting
	notify()
	taskID, err := submit(ctx)
	if err != nil {
		s.State = StateFailed
		s.FailureMessage = err.Error()
		notify()
		return s, err
	}
	s.TaskID = taskID
	s.State = StatePolling
	p.logger.Info().
		Str("task_id", taskID).
		Str("kind", string(cfg.Kind)).
		Msg("poller: task submitted")

	est := NewProgressEstimator(p.rand)
	for s.Attempt = 1; s.Attempt <= cfg.MaxAttempts; s.Attempt++ {
		obs, err := p.fetch(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return s, ctx.Err()
			}
			p.logger.Warn().Err(err).
				Str("task_id", taskID).
				Int("attempt", s.Attempt).
				Msg("poller: status fetch failed, retrying")
			if err := p.sleep(ctx, cfg.Interval); err != nil {
				return s, err
			}
			continue
		}

		switch obs.Status {
		case generation.StatusCompleted:
			s.State = StateSucceeded
			s.Progress = est.Complete()
			s.Results = obs.Results
			notify()
			return s, nil
		case generation.StatusFailed:
			s.State = StateFailed
			s.Progress = est.Value()
			s.FailureMessage = generation.FailureMessage(obs.Error, obs.Message, "generation failed")
			notify()
			return s, nil
		}
		if !obs.Status.Known() {
			// Unrecognized statuses are transient: keep polling within
			// the same attempt budget.
			p.logger.Warn().
				Str("task_id", taskID).
				Str("status", string(obs.Status)).
				Int("attempt", s.Attempt).
				Msg("poller: unrecognized task status")
		}
		s.Progress = est.Observe(obs.Progress)
		notify()

		if s.Attempt == cfg.MaxAttempts {
			break
		}
		if err := p.sleep(ctx, cfg.Interval); err != nil {
			return s, err
		}
	}

	s.State = StateTimedOut
	s.FailureMessage = "generation timed out"
	notify()
	p.logger.Warn().
		Str("task_id", taskID).
		Int("attempts", cfg.MaxAttempts).
		Msg("poller: attempt budget exhausted")
	return s, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WithSleep overrides the inter-poll wait. Intended for tests.
func (p *Poller) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Poller {
	p.sleep = fn
	return p
}

// WithRand overrides the progress-step randomness. Intended for tests.
func (p *Poller) WithRand(fn func() float64) *Poller {
	p.rand = fn
	return p
}
