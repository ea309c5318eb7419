// Package ratelimit spaces and counts calls to the document-extraction API.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
	"golang.org/x/time/rate"
)

const (
	DefaultMinInterval = 4500 * time.Millisecond
	DefaultPerMinute   = 15
	DefaultPerDay      = 1500
)

// ErrDailyQuotaExceeded is returned once the daily budget is spent. It does not clear until the
// next day or ResetDaily.
var ErrDailyQuotaExceeded = &apperr.ExternalServiceError{Service: "ratelimit", Code: apperr.CodeDailyQuotaExceeded}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

type Config struct {
	MinInterval time.Duration
	PerMinute   int
	PerDay      int
}

func DefaultConfig() Config {
	return Config{MinInterval: DefaultMinInterval, PerMinute: DefaultPerMinute, PerDay: DefaultPerDay}
}

// Status is the daily usage snapshot.
type Status struct {
	RequestsToday int     `json:"requests_today"`
	DailyLimit    int     `json:"daily_limit"`
	Remaining     int     `json:"remaining"`
	PercentUsed   float64 `json:"percent_used"`
}

// Limiter combines a minimum spacing between calls, a per-minute bucket and a daily counter.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	clock   Clock
	spacing *rate.Limiter
	minute  *rate.Limiter
	day     string
	today   int
}

func New(cfg Config, clock Clock) *Limiter {
	def := DefaultConfig()
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = def.MinInterval
	}
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = def.PerMinute
	}
	if cfg.PerDay <= 0 {
		cfg.PerDay = def.PerDay
	}
	if clock == nil {
		clock = SystemClock
	}
	l := &Limiter{cfg: cfg, clock: clock}
	l.resetBuckets()
	l.day = dayOf(clock.Now())
	return l
}

func (l *Limiter) resetBuckets() {
	l.spacing = rate.NewLimiter(rate.Every(l.cfg.MinInterval), 1)
	l.minute = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.cfg.PerMinute)), l.cfg.PerMinute)
}

func dayOf(t time.Time) string { return t.Format("2006-01-02") }

func (l *Limiter) rollover(now time.Time) {
	if d := dayOf(now); d != l.day {
		l.day = d
		l.today = 0
	}
}

type reservation struct {
	wait   time.Duration
	cancel func()
}

func (l *Limiter) reserve(now time.Time) (reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover(now)
	if l.today >= l.cfg.PerDay {
		return reservation{}, ErrDailyQuotaExceeded
	}
	rs := l.spacing.ReserveN(now, 1)
	rm := l.minute.ReserveN(now, 1)
	wait := rs.DelayFrom(now)
	if d := rm.DelayFrom(now); d > wait {
		wait = d
	}
	l.today++
	return reservation{
		wait: wait,
		cancel: func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			t := l.clock.Now()
			rs.CancelAt(t)
			rm.CancelAt(t)
			if l.today > 0 {
				l.today--
			}
		},
	}, nil
}

// Reserve books a call at now and returns how long the caller must wait before issuing it.
func (l *Limiter) Reserve(now time.Time) (time.Duration, error) {
	r, err := l.reserve(now)
	return r.wait, err
}

// Wait blocks until a call may be issued. A cancelled context releases the reservation.
func (l *Limiter) Wait(ctx context.Context) error {
	r, err := l.reserve(l.clock.Now())
	if err != nil {
		return err
	}
	if r.wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		r.cancel()
		return ctx.Err()
	case <-l.clock.After(r.wait):
		return nil
	}
}

// ResetDaily clears the daily counter and both buckets.
func (l *Limiter) ResetDaily() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.today = 0
	l.day = dayOf(l.clock.Now())
	l.resetBuckets()
}

func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover(l.clock.Now())
	remaining := l.cfg.PerDay - l.today
	if remaining < 0 {
		remaining = 0
	}
	pct := float64(l.today) / float64(l.cfg.PerDay) * 100
	return Status{
		RequestsToday: l.today,
		DailyLimit:    l.cfg.PerDay,
		Remaining:     remaining,
		PercentUsed:   math.Round(pct*10) / 10,
	}
}
