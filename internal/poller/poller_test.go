package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/generation"
)

func instantSleep(ctx context.Context, d time.Duration) error { return nil }

func submitOK(ctx context.Context) (string, error) { return "task-1", nil }

func newTestPoller(fetch FetchFunc) *Poller {
	return New(fetch, zerolog.Nop()).
		WithSleep(instantSleep).
		WithRand(func() float64 { return 0.5 })
}

func TestRunTimesOutAfterBudget(t *testing.T) {
	fetches := 0
	p := newTestPoller(func(ctx context.Context, taskID string) (Observation, error) {
		fetches++
		return Observation{Status: generation.StatusProcessing}, nil
	})

	s, err := p.Run(context.Background(), ConfigFor(generation.KindVideo), submitOK, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State != StateTimedOut {
		t.Fatalf("state = %q, want %q", s.State, StateTimedOut)
	}
	if fetches != 60 {
		t.Fatalf("fetches = %d, want exactly 60", fetches)
	}
	if s.FailureMessage == "" {
		t.Fatal("timed-out session must carry a failure message")
	}
}

func TestRunSynthesizedProgressMonotoneThenSnaps(t *testing.T) {
	polls := 0
	p := newTestPoller(func(ctx context.Context, taskID string) (Observation, error) {
		polls++
		if polls == 4 {
			return Observation{Status: generation.StatusCompleted, Results: []string{"https://cdn.example.com/out.mp4"}}, nil
		}
		return Observation{Status: generation.StatusProcessing}, nil
	})

	var seen []float64
	s, err := p.Run(context.Background(), ConfigFor(generation.KindVideo), submitOK, func(s *Session) {
		if s.State == StatePolling || s.State == StateSucceeded {
			seen = append(seen, s.Progress)
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State != StateSucceeded {
		t.Fatalf("state = %q, want %q", s.State, StateSucceeded)
	}
	if len(seen) != 4 {
		t.Fatalf("recorded %d progress values, want 4", len(seen))
	}
	if seen[0] != 10 {
		t.Fatalf("first synthesized progress = %v, want 10", seen[0])
	}
	for i := 1; i < 3; i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("progress not strictly increasing: %v", seen)
		}
		if seen[i] > 95 {
			t.Fatalf("pre-terminal progress %v exceeds 95", seen[i])
		}
	}
	if seen[3] != 100 {
		t.Fatalf("terminal progress = %v, want 100", seen[3])
	}
	if len(s.Results) != 1 {
		t.Fatalf("results = %v, want one url", s.Results)
	}
}

func TestRunSynthesizedProgressCapsAt95(t *testing.T) {
	p := New(func(ctx context.Context, taskID string) (Observation, error) {
		return Observation{Status: generation.StatusProcessing}, nil
	}, zerolog.Nop()).
		WithSleep(instantSleep).
		WithRand(func() float64 { return 1.0 })

	maxSeen := 0.0
	s, _ := p.Run(context.Background(), ConfigFor(generation.KindVideo), submitOK, func(s *Session) {
		if s.State == StatePolling && s.Progress > maxSeen {
			maxSeen = s.Progress
		}
	})
	if s.State != StateTimedOut {
		t.Fatalf("state = %q, want %q", s.State, StateTimedOut)
	}
	if maxSeen != 95 {
		t.Fatalf("max pre-terminal progress = %v, want 95", maxSeen)
	}
}

func TestRunUsesExplicitVendorProgress(t *testing.T) {
	polls := 0
	p := newTestPoller(func(ctx context.Context, taskID string) (Observation, error) {
		polls++
		if polls == 2 {
			return Observation{Status: generation.StatusCompleted}, nil
		}
		pct := 42
		return Observation{Status: generation.StatusProcessing, Progress: &pct}, nil
	})

	var first float64
	p.Run(context.Background(), ConfigFor(generation.KindImage), submitOK, func(s *Session) {
		if s.State == StatePolling && first == 0 {
			first = s.Progress
		}
	})
	if first != 42 {
		t.Fatalf("displayed progress = %v, want the vendor-reported 42", first)
	}
}

func TestRunUnknownStatusIsTransient(t *testing.T) {
	polls := 0
	p := newTestPoller(func(ctx context.Context, taskID string) (Observation, error) {
		polls++
		switch polls {
		case 1:
			return Observation{Status: generation.NormalizeStatus("Queued_Remote")}, nil
		default:
			return Observation{Status: generation.StatusCompleted}, nil
		}
	})

	s, err := p.Run(context.Background(), ConfigFor(generation.KindImage), submitOK, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State != StateSucceeded {
		t.Fatalf("state = %q, want %q (unknown status must not abort)", s.State, StateSucceeded)
	}
	if polls != 2 {
		t.Fatalf("polls = %d, want 2", polls)
	}
}

func TestRunTransportErrorsConsumeAttempts(t *testing.T) {
	polls := 0
	p := newTestPoller(func(ctx context.Context, taskID string) (Observation, error) {
		polls++
		if polls <= 2 {
			return Observation{}, errors.New("connection reset")
		}
		return Observation{Status: generation.StatusCompleted}, nil
	})

	s, err := p.Run(context.Background(), Config{Kind: generation.KindVideo, Interval: time.Millisecond, MaxAttempts: 3}, submitOK, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State != StateSucceeded {
		t.Fatalf("state = %q, want %q", s.State, StateSucceeded)
	}

	polls = 0
	p = newTestPoller(func(ctx context.Context, taskID string) (Observation, error) {
		polls++
		return Observation{}, errors.New("connection reset")
	})
	s, err = p.Run(context.Background(), Config{Kind: generation.KindVideo, Interval: time.Millisecond, MaxAttempts: 3}, submitOK, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State != StateTimedOut {
		t.Fatalf("state = %q, want %q (errors must not extend the budget)", s.State, StateTimedOut)
	}
	if polls != 3 {
		t.Fatalf("polls = %d, want 3", polls)
	}
}

func TestRunFailedTaskReportsVendorError(t *testing.T) {
	cases := []struct {
		name string
		obs  Observation
		want string
	}{
		{"vendor error field", Observation{Status: generation.StatusFailed, Error: "content policy violation", Message: "task failed"}, "content policy violation"},
		{"message fallback", Observation{Status: generation.StatusFailed, Message: "task failed"}, "task failed"},
		{"default fallback", Observation{Status: generation.StatusFailed}, "generation failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPoller(func(ctx context.Context, taskID string) (Observation, error) {
				return tc.obs, nil
			})
			s, err := p.Run(context.Background(), ConfigFor(generation.KindVideo), submitOK, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.State != StateFailed {
				t.Fatalf("state = %q, want %q", s.State, StateFailed)
			}
			if s.FailureMessage != tc.want {
				t.Fatalf("failure message = %q, want %q", s.FailureMessage, tc.want)
			}
		})
	}
}

func TestRunSubmitFailure(t *testing.T) {
	p := newTestPoller(func(ctx context.Context, taskID string) (Observation, error) {
		t.Fatal("fetch must not run when submission fails")
		return Observation{}, nil
	})
	s, err := p.Run(context.Background(), ConfigFor(generation.KindImage), func(ctx context.Context) (string, error) {
		return "", errors.New("insufficient credits")
	}, nil)
	if err == nil {
		t.Fatal("expected submission error")
	}
	if s.State != StateFailed {
		t.Fatalf("state = %q, want %q", s.State, StateFailed)
	}
}

func TestConfigFor(t *testing.T) {
	video := ConfigFor(generation.KindVideo)
	if video.Interval != 5*time.Second || video.MaxAttempts != 60 {
		t.Fatalf("video budget = %v x %d, want 5s x 60", video.Interval, video.MaxAttempts)
	}
	image := ConfigFor(generation.KindImage)
	if image.Interval != 2*time.Second || image.MaxAttempts != 120 {
		t.Fatalf("image budget = %v x %d, want 2s x 120", image.Interval, image.MaxAttempts)
	}
}
