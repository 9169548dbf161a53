// Package renewal retries WSAA authentication in the background after a failed startup
// login, until a ticket is obtained or the scheduler is stopped.
package renewal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blendpos/go-afip-client/afip"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "afip.renewal")

type State int32

const (
	Idle State = iota
	Waiting
	Succeeded
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Waiting:
		return "waiting"
	case Succeeded:
		return "succeeded"
	}
	return "unknown"
}

// Provider is the part of *afip.TokenProvider the scheduler drives.
type Provider interface {
	IsValid() bool
	Authenticate(ctx context.Context, force bool) (afip.Ticket, error)
}

// Backoff returns the delay before attempt (0 based): one minute, two minutes, then
// five minutes for every later attempt.
func Backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return time.Minute
	case 1:
		return 2 * time.Minute
	default:
		return 5 * time.Minute
	}
}

// WaitFunc blocks for d or until ctx is done, returning ctx.Err() in the latter case.
type WaitFunc func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Scheduler struct {
	provider Provider
	wait     WaitFunc
	backoff  func(int) time.Duration

	state    atomic.Int32
	attempts atomic.Int32

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

type Option func(*Scheduler)

// WithWait replaces the timer used between attempts.
func WithWait(w WaitFunc) Option {
	return func(s *Scheduler) { s.wait = w }
}

func WithBackoff(b func(attempt int) time.Duration) Option {
	return func(s *Scheduler) { s.backoff = b }
}

func NewScheduler(p Provider, opts ...Option) *Scheduler {
	s := &Scheduler{
		provider: p,
		wait:     sleep,
		backoff:  Backoff,
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Scheduler) State() State { return State(s.state.Load()) }

// Attempts returns how many authentications the loop has tried so far.
func (s *Scheduler) Attempts() int { return int(s.attempts.Load()) }

// Done is closed when the loop exits, either after success or after Stop.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// Start launches the loop. Only the first call has an effect.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

// Stop cancels the loop and waits for it to exit. Safe to call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started, cancel := s.started, s.cancel
	s.mu.Unlock()
	if !started {
		return
	}
	cancel()
	<-s.done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	for attempt := 0; ; attempt++ {
		s.state.Store(int32(Waiting))
		delay := s.backoff(attempt)
		logger.Infof("Retrying WSAA authentication in %s", delay)

		if err := s.wait(ctx, delay); err != nil {
			logger.Debug("Renewal loop cancelled")
			return
		}

		if s.provider.IsValid() {
			logger.Info("Access ticket already valid, stopping renewal")
			s.state.Store(int32(Succeeded))
			return
		}

		s.attempts.Add(1)
		_, err := s.provider.Authenticate(ctx, true)
		switch {
		case err == nil:
			logger.Info("Background authentication succeeded")
			s.state.Store(int32(Succeeded))
			return
		case ctx.Err() != nil:
			return
		case errors.Is(err, afip.ErrAlreadyAuthenticated):
			logger.Infof("WSAA still holds a previous ticket, waiting: %v", err)
		default:
			logger.Warnf("Background authentication failed: %v", err)
		}
	}
}
