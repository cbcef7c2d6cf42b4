package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the breaker's position.
type State uint8

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return fmt.Sprintf("State(%d)", s)
}

// ErrOpen is returned while the breaker is failing fast.
var ErrOpen = errors.New("circuit breaker open")

// Breaker stops calling an operation that keeps failing and tries it again
// after ResetTimeout.
type Breaker struct {
	cfg  Config
	now  func() time.Time
	hook func(from, to State)

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	trips     int
	openedAt  time.Time
}

// New returns a closed breaker.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), now: time.Now}
}

// WithHook registers fn to run on every state change. fn runs with the breaker
// unlocked but may observe a newer state than to.
func (b *Breaker) WithHook(fn func(from, to State)) *Breaker {
	b.hook = fn
	return b
}

// Execute runs fn unless the breaker is open. Failures count toward opening it;
// cancellation of ctx does not.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	switch {
	case err == nil:
		b.success()
	case errors.Is(err, context.Canceled), ctx.Err() != nil:
	default:
		b.failure()
	}
	return err
}

// State returns the current state without moving an expired open breaker to half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	if b.state != Open {
		b.mu.Unlock()
		return nil
	}
	if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
		b.mu.Unlock()
		return ErrOpen
	}
	from := b.setLocked(HalfOpen)
	b.mu.Unlock()
	b.changed(from, HalfOpen)
	return nil
}

func (b *Breaker) success() {
	b.mu.Lock()
	b.failures = 0
	if b.state != HalfOpen {
		b.mu.Unlock()
		return
	}
	b.successes++
	if b.successes < b.cfg.HalfOpenSuccesses {
		b.mu.Unlock()
		return
	}
	from := b.setLocked(Closed)
	b.mu.Unlock()
	b.changed(from, Closed)
}

func (b *Breaker) failure() {
	b.mu.Lock()
	b.failures++
	if b.state == Open || (b.state == Closed && b.failures < b.cfg.Threshold) {
		b.mu.Unlock()
		return
	}
	from := b.setLocked(Open)
	b.mu.Unlock()
	b.changed(from, Open)
}

func (b *Breaker) setLocked(to State) State {
	from := b.state
	b.state = to
	b.successes = 0
	switch to {
	case Open:
		b.trips++
		b.openedAt = b.now()
	case Closed:
		b.failures = 0
	}
	return from
}

func (b *Breaker) changed(from, to State) {
	log := slog.With("breaker", b.cfg.Name, "from", from.String())
	if to == Open {
		log.Warn("circuit breaker opened", "retry_after", b.cfg.ResetTimeout)
	} else {
		log.Info("circuit breaker "+to.String())
	}
	if b.hook != nil {
		b.hook(from, to)
	}
}

// Stats is a point-in-time view of the breaker for the status API.
type Stats struct {
	Name     string     `json:"name"`
	State    string     `json:"state"`
	Failures int        `json:"failures"`
	Trips    int        `json:"trips"`
	RetryAt  *time.Time `json:"retry_at,omitempty"`
}

// Stats reports the breaker's state, its consecutive failures, how often it has
// opened and, while open, when it will next let a call through.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Stats{Name: b.cfg.Name, State: b.state.String(), Failures: b.failures, Trips: b.trips}
	if b.state == Open {
		at := b.openedAt.Add(b.cfg.ResetTimeout)
		s.RetryAt = &at
	}
	return s
}
