// Package dispatcher fans simulation events out to the registered sinks. Sinks
// run inline on the frame loop or on their own buffered goroutine.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Commands emitted by the frame driver.
const (
	CommandFrame  = "frame"
	CommandDesync = "desync"
	CommandEnd    = "end"
)

// ErrClosed is returned when dispatching to a buffered handler after Close.
var ErrClosed = errors.New("dispatcher closed")

// Event is one notification from the running simulation. Payload is owned by the
// receiver once dispatched.
type Event struct {
	Command   string
	Frame     uint32
	Payload   any
	Timestamp time.Time
}

// HandlerFunc processes an event. Buffered handlers return "queued" to the
// caller; their own result is discarded.
type HandlerFunc func(Event) (any, error)

// Logger is satisfied by logging.DispatcherLogger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures one registration.
type Option func(*handlerConfig)

type handlerConfig struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered runs the handler on its own goroutine behind a queue of size events.
func Buffered(size int) Option {
	return func(c *handlerConfig) { c.bufferSize = size }
}

// Blocking makes Dispatch wait for room in a full queue instead of dropping the
// event. Frame sinks use it so no frame is lost.
func Blocking() Option {
	return func(c *handlerConfig) { c.blocking = true }
}

// Logged logs every event at debug level and failures at error level.
func Logged() Option {
	return func(c *handlerConfig) { c.logged = true }
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	logger  Logger
	metrics *metrics

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	queues   map[string]chan Event
	closed   bool

	// pending counts queued events not yet handled, workers the queue goroutines
	pending sync.WaitGroup
	workers sync.WaitGroup
}

// New creates a Dispatcher. Metrics go to the global OTel meter.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
		queues:   make(map[string]chan Event),
	}

	m, err := newMetrics(d.queueLengths)
	if err != nil {
		return nil, err
	}
	d.metrics = m
	return d, nil
}

func (d *Dispatcher) queueLengths(observe func(command string, n int)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for cmd, q := range d.queues {
		observe(cmd, len(q))
	}
}

// Register sets the handler of command, replacing any earlier one.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	var cfg handlerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.bufferSize > 0 {
		h = d.queued(command, cfg.bufferSize, cfg.blocking, h)
	}
	if cfg.logged {
		h = d.logged(command, h)
	}

	d.mu.Lock()
	d.handlers[command] = h
	d.mu.Unlock()
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[e.Command]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[command]
	return ok
}

func (d *Dispatcher) queued(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	q := make(chan Event, size)
	attrs := metric.WithAttributes(commandAttr(command))

	d.mu.Lock()
	d.queues[command] = q
	d.mu.Unlock()

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for e := range q {
			if _, err := h(e); err != nil {
				d.metrics.failed.Add(context.Background(), 1, attrs)
				d.logger.Error("buffered handler failed", "command", command, "frame", e.Frame, "error", err)
			}
			d.metrics.handled.Add(context.Background(), 1, attrs)
			d.pending.Done()
		}
	}()

	return func(e Event) (any, error) {
		// the read lock keeps Close from closing q under a pending send
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, ErrClosed
		}

		d.pending.Add(1)
		if blocking {
			q <- e
			return "queued", nil
		}
		select {
		case q <- e:
			return "queued", nil
		default:
			d.pending.Done()
			d.metrics.dropped.Add(context.Background(), 1, attrs)
			return nil, fmt.Errorf("queue full: %s", command)
		}
	}
}

// Drain waits until every queued event has been handled. Dispatch must not be
// called concurrently with Drain.
func (d *Dispatcher) Drain() {
	d.pending.Wait()
}

// Close drains the buffered handlers and stops their goroutines. Further
// dispatches to buffered handlers fail with ErrClosed.
func (d *Dispatcher) Close() {
	d.Drain()

	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, q := range d.queues {
			close(q)
		}
	}
	d.mu.Unlock()

	d.workers.Wait()
}

func (d *Dispatcher) logged(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "frame", e.Frame)

		result, err := h(e)
		if err != nil {
			d.logger.Error("event failed", "command", command, "frame", e.Frame, "duration", time.Since(start), "error", err)
			return result, err
		}
		d.logger.Debug("event complete", "command", command, "frame", e.Frame, "duration", time.Since(start))
		return result, nil
	}
}
