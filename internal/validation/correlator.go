package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/finbank/backend/internal/infrastructure/broker"
	"github.com/finbank/backend/internal/infrastructure/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Common errors
var (
	ErrTimeout          = errors.New("validation call timed out")
	ErrCorrelatorClosed = errors.New("correlator is closed")
)

// sweepInterval is how often the background sweeper scans for waiters
// whose deadline passed without the owning call removing them.
const defaultSweepInterval = 30 * time.Second

// waiterGrace pads a waiter's sweep deadline past the call timeout so
// the sweeper only collects waiters genuinely leaked by a dead caller.
const waiterGrace = 5 * time.Second

// Correlator converts publish/subscribe messaging into bounded
// request/response calls. Each call publishes a Request tagged with a
// fresh correlation id and registers an in-memory waiter for that id; a
// single shared dispatcher per process consumes the reply subject and
// wakes the matching waiter.
//
// Waiters are process-affine: only the process that issued a request can
// be woken by its reply. They are never persisted or shared; correlation
// state does not survive a restart.
//
// Per request the state machine is ISSUED then MATCHED or TIMED_OUT,
// terminal either way. There are no retries at this layer; a caller that
// wants to retry re-issues with a fresh correlation id.
type Correlator struct {
	bus            broker.Bus
	requestSubject string
	replySubject   string
	clock          clock.Clock
	logger         *zap.Logger

	mu      sync.Mutex
	waiters map[string]*waiter
	closed  bool

	replySub  broker.Subscription
	sweepStop chan struct{}
	sweepDone chan struct{}
}

// waiter is the in-memory placeholder for one suspended call. The
// channel is buffered so the dispatcher never blocks on a caller that
// has already given up.
type waiter struct {
	ch       chan *Response
	deadline time.Time
}

// CorrelatorOption customizes a Correlator.
type CorrelatorOption func(*correlatorOptions)

type correlatorOptions struct {
	clock         clock.Clock
	logger        *zap.Logger
	sweepInterval time.Duration
}

// WithClock injects the time source.
func WithClock(clk clock.Clock) CorrelatorOption {
	return func(o *correlatorOptions) { o.clock = clk }
}

// WithLogger injects the logger.
func WithLogger(logger *zap.Logger) CorrelatorOption {
	return func(o *correlatorOptions) { o.logger = logger }
}

// WithSweepInterval overrides how often leaked waiters are collected.
func WithSweepInterval(d time.Duration) CorrelatorOption {
	return func(o *correlatorOptions) { o.sweepInterval = d }
}

// NewCorrelator subscribes the reply dispatcher and starts the sweeper.
// The caller owns the returned Correlator and must Close it.
func NewCorrelator(bus broker.Bus, requestSubject, replySubject string, opts ...CorrelatorOption) (*Correlator, error) {
	o := correlatorOptions{
		clock:         clock.System{},
		logger:        zap.NewNop(),
		sweepInterval: defaultSweepInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Correlator{
		bus:            bus,
		requestSubject: requestSubject,
		replySubject:   replySubject,
		clock:          o.clock,
		logger:         o.logger.With(zap.String("reply_subject", replySubject)),
		waiters:        make(map[string]*waiter),
		sweepStop:      make(chan struct{}),
		sweepDone:      make(chan struct{}),
	}

	sub, err := bus.Subscribe(replySubject, c.dispatch)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe reply dispatcher: %w", err)
	}
	c.replySub = sub

	go c.sweep(o.sweepInterval)

	return c, nil
}

// Call publishes a validation request for subjectRef and suspends the
// caller until the matching reply arrives or the timeout elapses. Other
// concurrent calls are unaffected; each has its own waiter keyed by its
// own correlation id.
//
// A publish failure fails the call immediately with no waiter left
// behind. A timeout returns ErrTimeout; a reply for that id arriving
// later is dropped by the dispatcher.
func (c *Correlator) Call(ctx context.Context, subjectRef string, timeout time.Duration) (*Response, error) {
	requestID := uuid.New().String()

	payload, err := json.Marshal(Request{
		RequestID:  requestID,
		SubjectRef: subjectRef,
		IssuedAt:   c.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode validation request: %w", err)
	}

	w := &waiter{
		ch:       make(chan *Response, 1),
		deadline: c.clock.Now().Add(timeout + waiterGrace),
	}

	// Register before publishing so a fast reply cannot race past the
	// dispatcher; an immediate publish failure removes the waiter again,
	// leaving no trace.
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCorrelatorClosed
	}
	c.waiters[requestID] = w
	c.mu.Unlock()

	if err := c.bus.Publish(c.requestSubject, payload); err != nil {
		c.remove(requestID)
		return nil, fmt.Errorf("failed to publish validation request: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-w.ch:
		return resp, nil
	case <-timer.C:
		c.remove(requestID)
		return nil, ErrTimeout
	case <-ctx.Done():
		c.remove(requestID)
		return nil, ctx.Err()
	}
}

// Pending returns the number of registered waiters.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Close unsubscribes the dispatcher, stops the sweeper, and fails any
// in-flight calls.
func (c *Correlator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.waiters = make(map[string]*waiter)
	c.mu.Unlock()

	close(c.sweepStop)
	<-c.sweepDone

	if c.replySub != nil {
		return c.replySub.Unsubscribe()
	}
	return nil
}

// dispatch is the shared reply listener. It looks up the correlation id,
// removes the waiter, and wakes it. Unmatched, duplicate, or late
// replies are logged and dropped, never consumed twice and never allowed
// to crash the listener.
func (c *Correlator) dispatch(msg broker.Message) {
	var resp Response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		c.logger.Warn("dropping undecodable validation reply", zap.Error(err))
		return
	}
	if resp.RequestID == "" {
		c.logger.Warn("dropping validation reply without correlation id")
		return
	}

	c.mu.Lock()
	w, ok := c.waiters[resp.RequestID]
	if ok {
		delete(c.waiters, resp.RequestID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("dropping unmatched validation reply",
			zap.String("request_id", resp.RequestID))
		return
	}

	// Buffered channel: the send never blocks even if the caller raced
	// into timeout between removal and here.
	w.ch <- &resp
}

// remove deletes the waiter for id, if still registered.
func (c *Correlator) remove(id string) {
	c.mu.Lock()
	delete(c.waiters, id)
	c.mu.Unlock()
}

// sweep periodically collects waiters whose deadline has passed. The
// owning call normally removes its own waiter; the sweeper is the
// backstop against unbounded growth when a caller goroutine dies without
// cleaning up.
func (c *Correlator) sweep(interval time.Duration) {
	defer close(c.sweepDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.sweepStop:
			return
		case <-ticker.C:
			now := c.clock.Now()
			c.mu.Lock()
			for id, w := range c.waiters {
				if now.After(w.deadline) {
					delete(c.waiters, id)
					c.logger.Warn("swept abandoned validation waiter",
						zap.String("request_id", id))
				}
			}
			c.mu.Unlock()
		}
	}
}
