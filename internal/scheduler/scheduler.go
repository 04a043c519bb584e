package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Result tells the dispatcher what to do with a timer after its handler ran.
type Result uint8

const (
	// Done removes the timer from the schedule.
	Done Result = iota
	// Reschedule reinserts the timer at WakeTime+Interval.
	Reschedule
)

const (
	defaultTick          = 5 * time.Millisecond
	defaultLatencyBudget = 50 * time.Millisecond
)

// Timer is a scheduled event.
type Timer struct {
	Name     string
	Interval time.Duration
	WakeTime time.Time
	Handler  func(*Timer) Result

	next *Timer
}

// Config holds scheduler settings.
type Config struct {
	// Tick is how often the dispatch loop looks for due timers.
	Tick time.Duration

	// LatencyBudget is the longest a due timer may wait for the token
	// before the run is counted as late.
	LatencyBudget time.Duration
}

// Stats holds operational statistics.
type Stats struct {
	Timers     int
	Dispatches uint64
	Yields     uint64
	LateRuns   uint64
	MaxLatency time.Duration
	Holding    bool
}

// Logger interface for optional logging.
type Logger interface {
	Warn(msg string, keysAndValues ...any)
}

// Scheduler owns the execution token and the timer list.
//
// Thread Safety: all methods are safe for concurrent use. Handlers and Exec
// bodies never run concurrently with each other.
type Scheduler struct {
	cfg Config

	token chan struct{}
	held  atomic.Bool

	timerMu sync.Mutex
	timers  *Timer
	count   int

	now func() time.Time

	logger   Logger
	loggerMu sync.RWMutex

	dispatches atomic.Uint64
	yields     atomic.Uint64
	lateRuns   atomic.Uint64
	maxLatency atomic.Int64
}

// New creates a scheduler. The token starts free.
func New(cfg Config) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = defaultTick
	}
	if cfg.LatencyBudget <= 0 {
		cfg.LatencyBudget = defaultLatencyBudget
	}
	s := &Scheduler{
		cfg:   cfg,
		token: make(chan struct{}, 1),
		now:   time.Now,
	}
	s.token <- struct{}{}
	return s
}

// SetLogger sets a logger for late-run warnings.
func (s *Scheduler) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *Scheduler) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// acquire takes the token, giving up when ctx is done.
func (s *Scheduler) acquire(ctx context.Context) error {
	select {
	case <-s.token:
		s.held.Store(true)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for scheduler: %w", ctx.Err())
	}
}

func (s *Scheduler) release() {
	s.held.Store(false)
	s.token <- struct{}{}
}

// Exec runs fn while holding the token. fn may call Yield.
func (s *Scheduler) Exec(ctx context.Context, fn func()) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	fn()
	return nil
}

// Yield lets every task already waiting for the token run, then resumes.
//
// Yield must only be called by the token holder: from inside an Exec body or
// a timer handler. The holder is not tracked per goroutine, so a call from
// any other goroutine while the token is held would steal the token. When
// nobody holds the token, Yield only yields the goroutine.
func (s *Scheduler) Yield() {
	s.yields.Add(1)
	if !s.held.Load() {
		runtime.Gosched()
		return
	}
	s.release()
	runtime.Gosched()
	<-s.token
	s.held.Store(true)
}

// AddTimer inserts t in wake-time order. A zero WakeTime means "now".
func (s *Scheduler) AddTimer(t *Timer) {
	if t.WakeTime.IsZero() {
		t.WakeTime = s.now()
	}
	s.timerMu.Lock()
	s.insertTimer(t)
	s.count++
	s.timerMu.Unlock()
}

// Every schedules fn at a fixed interval until the scheduler stops.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) *Timer {
	t := &Timer{
		Name:     name,
		Interval: interval,
		Handler: func(*Timer) Result {
			fn()
			return Reschedule
		},
	}
	s.AddTimer(t)
	return t
}

// insertTimer inserts t in sorted order by WakeTime. Caller holds timerMu.
func (s *Scheduler) insertTimer(t *Timer) {
	if s.timers == nil || t.WakeTime.Before(s.timers.WakeTime) {
		t.next = s.timers
		s.timers = t
		return
	}

	current := s.timers
	for current.next != nil && !t.WakeTime.Before(current.next.WakeTime) {
		current = current.next
	}

	t.next = current.next
	current.next = t
}

// popDue removes and returns the first timer due at now, or nil.
func (s *Scheduler) popDue(now time.Time) *Timer {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.timers == nil || s.timers.WakeTime.After(now) {
		return nil
	}
	t := s.timers
	s.timers = t.next
	t.next = nil
	s.count--
	return t
}

// hasDue reports whether any timer is due at now.
func (s *Scheduler) hasDue(now time.Time) bool {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	return s.timers != nil && !s.timers.WakeTime.After(now)
}

// Run dispatches timers until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Dispatch(ctx); err != nil {
				return
			}
		}
	}
}

// Dispatch takes the token and runs every timer due now.
func (s *Scheduler) Dispatch(ctx context.Context) error {
	if !s.hasDue(s.now()) {
		return nil
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	now := s.now()
	for {
		t := s.popDue(now)
		if t == nil {
			return nil
		}
		s.recordLatency(t, now.Sub(t.WakeTime))
		s.dispatches.Add(1)

		if t.Handler(t) != Reschedule {
			continue
		}
		t.WakeTime = t.WakeTime.Add(t.Interval)
		if !t.WakeTime.After(now) {
			// Fell behind; skip the missed periods instead of bursting.
			t.WakeTime = now.Add(t.Interval)
		}
		s.timerMu.Lock()
		s.insertTimer(t)
		s.count++
		s.timerMu.Unlock()
	}
}

func (s *Scheduler) recordLatency(t *Timer, latency time.Duration) {
	for {
		prev := s.maxLatency.Load()
		if int64(latency) <= prev || s.maxLatency.CompareAndSwap(prev, int64(latency)) {
			break
		}
	}
	if latency > s.cfg.LatencyBudget {
		s.lateRuns.Add(1)
		if logger := s.getLogger(); logger != nil {
			logger.Warn("timer ran late", "timer", t.Name, "latency", latency, "budget", s.cfg.LatencyBudget)
		}
	}
}

// Stats returns a snapshot of scheduler statistics.
func (s *Scheduler) Stats() Stats {
	s.timerMu.Lock()
	count := s.count
	s.timerMu.Unlock()

	return Stats{
		Timers:     count,
		Dispatches: s.dispatches.Load(),
		Yields:     s.yields.Load(),
		LateRuns:   s.lateRuns.Load(),
		MaxLatency: time.Duration(s.maxLatency.Load()),
		Holding:    s.held.Load(),
	}
}
