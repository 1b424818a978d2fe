// Package sweep runs the expiry sweep on a fixed interval in the
// background.
package sweep

import (
	"context"
	gosync "sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/newsroom-planning/internal/service"
)

// State represents the current state of the sweeper.
type State int

const (
	Idle State = iota
	Running
	Failed
)

// Status holds the sweeper's last observed state.
type Status struct {
	State     State
	LastSweep time.Time
	LastError error
}

// sweepTimeout is the maximum time allowed for a single sweep run.
const sweepTimeout = 5 * time.Minute

// defaultInterval is used when no interval is configured.
const defaultInterval = time.Hour

// Result is delivered after each sweep run.
type Result struct {
	Counts service.ExpiredCounts
	Error  error
}

// Sweeper periodically flags expired events and planning items.
type Sweeper struct {
	svc      *service.Service
	log      *logrus.Logger
	interval time.Duration

	resultCh  chan Result
	triggerCh chan struct{}
	stopCh    chan struct{}

	mu      gosync.Mutex
	status  Status
	running bool
}

// New creates a Sweeper over the given service. A non-positive interval
// falls back to one hour.
func New(svc *service.Service, interval time.Duration, log *logrus.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sweeper{
		svc:       svc,
		log:       log,
		interval:  interval,
		resultCh:  make(chan Result, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the background loop. Calling Start twice is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.loop()
}

// Stop halts the background loop.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
}

// Trigger requests an immediate sweep without waiting for the ticker.
func (s *Sweeper) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
		// A sweep is already pending.
	}
}

// Results exposes the result channel for observers.
func (s *Sweeper) Results() <-chan Result {
	return s.resultCh
}

// GetStatus returns the sweeper's current status.
func (s *Sweeper) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Sweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run once immediately on start.
	s.sweep()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		case <-s.triggerCh:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	s.setState(Running, nil)

	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	counts, err := s.svc.FlagExpired(ctx)
	if err != nil {
		s.log.WithError(err).Error("expiry sweep failed")
		s.setState(Failed, err)
		// Partial counts from the phase that succeeded still count.
		s.send(Result{Counts: counts, Error: err})
		return
	}

	if counts.Events > 0 || counts.Planning > 0 {
		s.log.WithFields(logrus.Fields{
			"events":   counts.Events,
			"planning": counts.Planning,
		}).Info("expiry sweep flagged items")
	}

	s.setState(Idle, nil)
	s.send(Result{Counts: counts})
}

func (s *Sweeper) setState(state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.State = state
	s.status.LastError = err
	if state == Idle && err == nil {
		s.status.LastSweep = time.Now()
	}
}

// send delivers a result without blocking the sweep loop.
func (s *Sweeper) send(r Result) {
	select {
	case s.resultCh <- r:
	default:
	}
}
