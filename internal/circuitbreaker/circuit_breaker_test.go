package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

var errUpstream = errors.New("upstream failure")

// fakeClock lets tests move the breaker past its open timeout without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(t *testing.T, config Config) (*CircuitBreaker, *fakeClock) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := New(config, logger)
	cb.now = clock.Now
	return cb, clock
}

func fail() error    { return errUpstream }
func succeed() error { return nil }

func TestStateTransitions(t *testing.T) {
	config := Config{Name: "api", MaxFailures: 3, Timeout: time.Second, MaxRequests: 1}

	tests := []struct {
		name        string
		scenario    func(t *testing.T, cb *CircuitBreaker, clock *fakeClock)
		expectedEnd State
	}{
		{
			name: "stays_closed_below_max_failures",
			scenario: func(t *testing.T, cb *CircuitBreaker, clock *fakeClock) {
				cb.Execute(fail)
				cb.Execute(fail)
			},
			expectedEnd: StateClosed,
		},
		{
			name: "success_resets_failure_count",
			scenario: func(t *testing.T, cb *CircuitBreaker, clock *fakeClock) {
				cb.Execute(fail)
				cb.Execute(fail)
				cb.Execute(succeed)
				cb.Execute(fail)
				cb.Execute(fail)
			},
			expectedEnd: StateClosed,
		},
		{
			name: "closed_to_open_after_max_failures",
			scenario: func(t *testing.T, cb *CircuitBreaker, clock *fakeClock) {
				for i := 0; i < 3; i++ {
					if err := cb.Execute(fail); !errors.Is(err, errUpstream) {
						t.Fatalf("attempt %d: expected upstream error, got %v", i, err)
					}
				}
			},
			expectedEnd: StateOpen,
		},
		{
			name: "open_rejects_before_timeout",
			scenario: func(t *testing.T, cb *CircuitBreaker, clock *fakeClock) {
				for i := 0; i < 3; i++ {
					cb.Execute(fail)
				}
				clock.Advance(500 * time.Millisecond)

				called := false
				err := cb.Execute(func() error {
					called = true
					return nil
				})
				if !errors.Is(err, ErrOpen) {
					t.Errorf("expected ErrOpen, got %v", err)
				}
				if called {
					t.Error("function must not run while open")
				}
			},
			expectedEnd: StateOpen,
		},
		{
			name: "half_open_to_closed_on_success",
			scenario: func(t *testing.T, cb *CircuitBreaker, clock *fakeClock) {
				for i := 0; i < 3; i++ {
					cb.Execute(fail)
				}
				clock.Advance(2 * time.Second)
				if err := cb.Execute(succeed); err != nil {
					t.Errorf("expected probe to succeed, got %v", err)
				}
			},
			expectedEnd: StateClosed,
		},
		{
			name: "half_open_to_open_on_failure",
			scenario: func(t *testing.T, cb *CircuitBreaker, clock *fakeClock) {
				for i := 0; i < 3; i++ {
					cb.Execute(fail)
				}
				clock.Advance(2 * time.Second)
				cb.Execute(fail)
			},
			expectedEnd: StateOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clock := newTestBreaker(t, config)
			tt.scenario(t, cb, clock)
			if got := cb.State(); got != tt.expectedEnd {
				t.Errorf("expected %s, got %s", tt.expectedEnd, got)
			}
		})
	}
}

func TestHalfOpenLimitsProbes(t *testing.T) {
	cb, clock := newTestBreaker(t, Config{Name: "api", MaxFailures: 1, Timeout: time.Second, MaxRequests: 1})

	cb.Execute(fail)
	clock.Advance(2 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := cb.Execute(succeed); !errors.Is(err, ErrOpen) {
		t.Errorf("second probe should be rejected, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("probe failed: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed after successful probe, got %s", cb.State())
	}
}

func TestMetricsAreConsistent(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{Name: "api", MaxFailures: 2, Timeout: time.Minute, MaxRequests: 1})

	cb.Execute(succeed)
	cb.Execute(fail)
	cb.Execute(fail)
	cb.Execute(succeed)

	m := cb.Metrics()
	if m.TotalRequests != 3 {
		t.Errorf("total_requests = %d, want 3", m.TotalRequests)
	}
	if m.TotalSuccesses != 1 || m.TotalFailures != 2 {
		t.Errorf("successes/failures = %d/%d, want 1/2", m.TotalSuccesses, m.TotalFailures)
	}
	if m.TotalRejected != 1 {
		t.Errorf("total_rejected = %d, want 1", m.TotalRejected)
	}
	if m.State != "open" || m.StateChanges != 1 {
		t.Errorf("state = %s after %d changes, want open after 1", m.State, m.StateChanges)
	}
	if m.LastFailure == "" {
		t.Error("last_failure should be set")
	}
}

func TestConcurrentExecute(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{Name: "api", MaxFailures: 1000, Timeout: time.Minute, MaxRequests: 1})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if (i+j)%3 == 0 {
					cb.Execute(fail)
				} else {
					cb.Execute(succeed)
				}
			}
		}(i)
	}
	wg.Wait()

	m := cb.Metrics()
	if m.TotalRequests != 500 {
		t.Errorf("total_requests = %d, want 500", m.TotalRequests)
	}
	if m.TotalRequests != m.TotalFailures+m.TotalSuccesses {
		t.Errorf("inconsistent metrics: %+v", m)
	}
}

func TestStateChangeCallback(t *testing.T) {
	changes := make(chan [2]State, 4)
	cb, _ := newTestBreaker(t, Config{
		Name:        "api",
		MaxFailures: 1,
		Timeout:     time.Minute,
		MaxRequests: 1,
		OnStateChange: func(name string, from, to State) {
			changes <- [2]State{from, to}
		},
	})

	cb.Execute(fail)

	select {
	case change := <-changes:
		if change[0] != StateClosed || change[1] != StateOpen {
			t.Errorf("unexpected transition %s -> %s", change[0], change[1])
		}
	case <-time.After(time.Second):
		t.Fatal("state change callback was not invoked")
	}
}

func TestCallbackPanicIsRecovered(t *testing.T) {
	called := make(chan struct{})
	cb, _ := newTestBreaker(t, Config{
		Name:        "api",
		MaxFailures: 1,
		Timeout:     time.Minute,
		MaxRequests: 1,
		OnStateChange: func(string, State, State) {
			close(called)
			panic("boom")
		},
	})

	cb.Execute(fail)

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("callback was not invoked")
	}
	if cb.State() != StateOpen {
		t.Errorf("expected open, got %s", cb.State())
	}
}

func TestReset(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{Name: "api", MaxFailures: 1, Timeout: time.Minute, MaxRequests: 1})

	cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("expected closed after reset, got %s", cb.State())
	}
	if err := cb.Execute(succeed); err != nil {
		t.Errorf("expected success after reset, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	if StateHalfOpen.String() != "half-open" || State(42).String() != "unknown" {
		t.Error("unexpected state names")
	}
}
