package resilience

import (
	"errors"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreakerLifecycle(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	b := NewBreaker("redis", BreakerConfig{FailureThreshold: 2, Cooldown: time.Second})
	b.now = clk.now
	fail := errors.New("refused")
	calls := 0
	failing := func() error { calls++; return fail }
	ok := func() error { calls++; return nil }

	for i := 0; i < 2; i++ {
		if err := b.Do(failing); !errors.Is(err, fail) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %s, want open", b.State())
	}
	if err := b.Do(ok); !errors.Is(err, ErrOpen) {
		t.Errorf("open breaker err = %v", err)
	}
	if calls != 2 {
		t.Errorf("open breaker called the dependency, calls = %d", calls)
	}

	clk.advance(time.Second)
	if err := b.Do(failing); !errors.Is(err, fail) {
		t.Fatalf("probe err = %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("failed probe should re-open, state = %s", b.State())
	}

	clk.advance(time.Second)
	if err := b.Do(ok); err != nil {
		t.Fatalf("probe err = %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("state = %s, want closed", b.State())
	}
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := NewBreaker("redis", BreakerConfig{FailureThreshold: 2})
	fail := func() error { return errors.New("x") }
	_ = b.Do(fail)
	_ = b.Do(func() error { return nil })
	_ = b.Do(fail)
	if b.State() != StateClosed {
		t.Errorf("non-consecutive failures tripped the breaker")
	}
}
