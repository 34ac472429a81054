package transport

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultDrainTimeout bounds how long shutdown waits for in-flight messages.
const DefaultDrainTimeout = 30 * time.Second

// DrainConfig configures how a transport drains in-flight messages when
// it shuts down.
type DrainConfig struct {
	// Timeout bounds the wait for in-flight messages. Default: 30s.
	Timeout time.Duration

	// Delay keeps accepting messages for a while after shutdown starts, so
	// load balancers can take the instance out of rotation first.
	Delay time.Duration

	// OnDrainStart runs once new messages start being refused.
	OnDrainStart func()

	// OnDrained runs when draining ends, with the number of messages still
	// in flight and the error Drain returns.
	OnDrained func(remaining int64, err error)
}

// Drainer counts messages being handled and lets shutdown wait for them.
// Once draining starts, Enter refuses new messages.
type Drainer struct {
	cfg DrainConfig

	mu       sync.Mutex
	draining bool
	inFlight int64
	idle     chan struct{}
	idleSet  bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewDrainer creates a drainer.
func NewDrainer(cfg DrainConfig) *Drainer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDrainTimeout
	}
	return &Drainer{
		cfg:  cfg,
		idle: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Enter registers a message. It returns false while draining, in which
// case the caller must refuse the message and not call Leave.
func (d *Drainer) Enter() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draining {
		return false
	}
	d.inFlight++
	return true
}

// Leave marks a message entered with Enter as finished.
func (d *Drainer) Leave() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inFlight--
	d.signalIdle()
}

func (d *Drainer) signalIdle() {
	if d.draining && d.inFlight == 0 && !d.idleSet {
		d.idleSet = true
		close(d.idle)
	}
}

// Draining reports whether new messages are being refused.
func (d *Drainer) Draining() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draining
}

// InFlight returns the number of messages being handled.
func (d *Drainer) InFlight() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}

// Drain stops admitting messages and waits until the in-flight ones finish,
// the timeout elapses or ctx is canceled.
func (d *Drainer) Drain(ctx context.Context) error {
	if d.cfg.Delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.cfg.Delay):
		}
	}

	d.mu.Lock()
	started := !d.draining
	d.draining = true
	d.signalIdle()
	d.mu.Unlock()

	if started && d.cfg.OnDrainStart != nil {
		d.cfg.OnDrainStart()
	}

	waitCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	var err error
	select {
	case <-d.idle:
	case <-waitCtx.Done():
		err = fmt.Errorf("%d messages still in flight: %w", d.InFlight(), waitCtx.Err())
	}

	d.doneOnce.Do(func() { close(d.done) })
	if d.cfg.OnDrained != nil {
		d.cfg.OnDrained(d.InFlight(), err)
	}
	return err
}

// Done is closed once draining has finished.
func (d *Drainer) Done() <-chan struct{} {
	return d.done
}

// WithShutdownTimeout bounds how long the HTTP transport waits for
// in-flight requests on shutdown.
func WithShutdownTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.drain.Timeout = d
	}
}

// WithShutdownDrainDelay sets how long the HTTP transport keeps accepting
// requests after shutdown begins.
func WithShutdownDrainDelay(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.drain.Delay = d
	}
}

// WithDrainHooks sets callbacks run when the HTTP transport starts and
// finishes draining.
func WithDrainHooks(onStart func(), onDrained func(remaining int64, err error)) HTTPOption {
	return func(h *HTTP) {
		h.drain.OnDrainStart = onStart
		h.drain.OnDrained = onDrained
	}
}

// WithWebSocketDrainTimeout bounds how long the WebSocket transport waits
// for in-flight messages on shutdown.
func WithWebSocketDrainTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) {
		ws.drain.Timeout = d
	}
}
