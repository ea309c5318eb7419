package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	block  bool
	slept  []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept = append(c.slept, d)
	if c.block {
		return make(chan time.Time)
	}
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func near(got, want time.Duration) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff < time.Millisecond
}

var t0 = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func TestReserve_MinInterval(t *testing.T) {
	clk := &fakeClock{now: t0}
	l := New(DefaultConfig(), clk)

	if w, err := l.Reserve(t0); err != nil || w != 0 {
		t.Fatalf("first Reserve = %v, %v; want 0, nil", w, err)
	}
	w, err := l.Reserve(t0)
	if err != nil {
		t.Fatalf("second Reserve: %v", err)
	}
	if !near(w, DefaultMinInterval) {
		t.Errorf("got wait %v want %v", w, DefaultMinInterval)
	}
}

func TestReserve_SpacedCallsDoNotWait(t *testing.T) {
	clk := &fakeClock{now: t0}
	l := New(DefaultConfig(), clk)
	now := t0
	for i := 0; i < 30; i++ {
		w, err := l.Reserve(now)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if w > time.Millisecond {
			t.Fatalf("call %d: got wait %v want 0", i, w)
		}
		now = now.Add(5 * time.Second)
	}
}

func TestReserve_MinuteBucket(t *testing.T) {
	clk := &fakeClock{now: t0}
	l := New(Config{MinInterval: time.Nanosecond, PerMinute: 2, PerDay: 100}, clk)
	l.Reserve(t0)
	l.Reserve(t0)
	w, err := l.Reserve(t0)
	if err != nil {
		t.Fatal(err)
	}
	if !near(w, 30*time.Second) {
		t.Errorf("got wait %v want 30s", w)
	}
}

func TestReserve_DailyQuota(t *testing.T) {
	clk := &fakeClock{now: t0}
	l := New(Config{MinInterval: time.Nanosecond, PerMinute: 100, PerDay: 2}, clk)
	l.Reserve(t0)
	l.Reserve(t0)
	_, err := l.Reserve(t0)
	if !errors.Is(err, ErrDailyQuotaExceeded) {
		t.Fatalf("got %v want ErrDailyQuotaExceeded", err)
	}
	if code, _ := apperr.ExternalCode(err); code != apperr.CodeDailyQuotaExceeded {
		t.Errorf("got code %q", code)
	}
	st := l.Status()
	if st.RequestsToday != 2 || st.Remaining != 0 || st.PercentUsed != 100 {
		t.Errorf("status = %+v", st)
	}

	next := t0.Add(24 * time.Hour)
	clk.advance(24 * time.Hour)
	if _, err := l.Reserve(next); err != nil {
		t.Fatalf("after rollover: %v", err)
	}
	if st := l.Status(); st.RequestsToday != 1 {
		t.Errorf("got %d requests today want 1", st.RequestsToday)
	}
}

func TestResetDaily(t *testing.T) {
	clk := &fakeClock{now: t0}
	l := New(Config{MinInterval: time.Second, PerMinute: 10, PerDay: 1}, clk)
	l.Reserve(t0)
	if _, err := l.Reserve(t0); err == nil {
		t.Fatal("expected daily quota error")
	}
	l.ResetDaily()
	w, err := l.Reserve(t0)
	if err != nil || w != 0 {
		t.Fatalf("after reset got %v, %v", w, err)
	}
}

func TestWait_SleepsOnClock(t *testing.T) {
	clk := &fakeClock{now: t0}
	l := New(DefaultConfig(), clk)
	ctx := context.Background()
	if err := l.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if err := l.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if len(clk.slept) != 1 || !near(clk.slept[0], DefaultMinInterval) {
		t.Errorf("slept = %v", clk.slept)
	}
}

func TestWait_CancelReleasesReservation(t *testing.T) {
	clk := &fakeClock{now: t0, block: true}
	l := New(DefaultConfig(), clk)
	l.Reserve(t0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v want context.Canceled", err)
	}
	if st := l.Status(); st.RequestsToday != 1 {
		t.Errorf("got %d requests today want 1", st.RequestsToday)
	}
}
