// Package debugreport ships best-effort diagnostic events off the hot path.
//
// Report never blocks and never fails the caller. Events sharing a key are
// gated to one per window, the queue is bounded, and sink errors are dropped
// after a debug log line.
package debugreport

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"wellness-gatekeeper/internal/clock"
)

const (
	defaultWindow    = 1500 * time.Millisecond
	defaultQueueSize = 64
	sendTimeout      = 2 * time.Second
	maxTrackedKeys   = 4096
)

type Event struct {
	ID      string            `json:"id"`
	Key     string            `json:"key"`
	Kind    string            `json:"kind"`
	UserID  string            `json:"user_id,omitempty"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	At      time.Time         `json:"at"`
}

type Sink interface {
	Send(ctx context.Context, ev Event) error
}

type Reporter struct {
	sink   Sink
	clock  clock.Clock
	window time.Duration
	logger *zap.Logger

	mu     sync.Mutex
	gates  map[string]*rate.Limiter
	closed bool

	queue chan Event
	wg    sync.WaitGroup
}

type Options struct {
	Clock     clock.Clock
	Window    time.Duration
	QueueSize int
	Logger    *zap.Logger
}

func NewReporter(sink Sink, opts Options) *Reporter {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Window <= 0 {
		opts.Window = defaultWindow
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := &Reporter{
		sink:   sink,
		clock:  opts.Clock,
		window: opts.Window,
		logger: opts.Logger,
		gates:  make(map[string]*rate.Limiter),
		queue:  make(chan Event, opts.QueueSize),
	}
	r.wg.Add(1)
	go r.drain()
	return r
}

// Report enqueues ev unless an event with the same key was accepted within
// the window. It reports whether the event was accepted.
func (r *Reporter) Report(ev Event) bool {
	if r == nil {
		return false
	}

	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}

	key := ev.Key
	if key == "" {
		key = ev.Kind + "|" + ev.Message
	}
	gate, ok := r.gates[key]
	if !ok {
		if len(r.gates) >= maxTrackedKeys {
			r.gates = make(map[string]*rate.Limiter)
		}
		gate = rate.NewLimiter(rate.Every(r.window), 1)
		r.gates[key] = gate
	}
	if !gate.AllowN(now, 1) {
		return false
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = now
	}

	select {
	case r.queue <- ev:
		return true
	default:
		r.logger.Debug("debug report dropped, queue full", zap.String("kind", ev.Kind))
		return false
	}
}

// Close stops accepting events and waits for queued ones to be sent.
func (r *Reporter) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Reporter) drain() {
	defer r.wg.Done()
	for ev := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := r.sink.Send(ctx, ev); err != nil {
			r.logger.Debug("debug report failed", zap.String("kind", ev.Kind), zap.Error(err))
		}
		cancel()
	}
}

// LogSink writes events to a zap logger.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Send(_ context.Context, ev Event) error {
	fields := []zap.Field{
		zap.String("event_id", ev.ID),
		zap.String("kind", ev.Kind),
		zap.String("user_id", ev.UserID),
		zap.Time("at", ev.At),
	}
	for k, v := range ev.Fields {
		fields = append(fields, zap.String(k, v))
	}
	s.Logger.Info(ev.Message, fields...)
	return nil
}
