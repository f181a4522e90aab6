package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventType string

const (
	EventMatchCreated  EventType = "match.created"
	EventMessagePosted EventType = "message.posted"
)

type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

type Sink interface {
	Publish(ctx context.Context, event Event) error
}

type Config struct {
	Buffer         int
	PublishTimeout time.Duration
}

// Dispatcher decouples writes from outbound delivery: Enqueue never blocks
// and a full buffer drops the event.
type Dispatcher struct {
	sink   Sink
	log    *zap.Logger
	cfg    Config
	events chan Event
	now    func() time.Time

	onDrop func()

	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool
	done      chan struct{}
	stopped   chan struct{}
}

func NewDispatcher(sink Sink, log *zap.Logger, cfg Config) *Dispatcher {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		sink:    sink,
		log:     log,
		cfg:     cfg,
		events:  make(chan Event, cfg.Buffer),
		now:     time.Now,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// OnDrop registers a callback invoked for each dropped event.
func (d *Dispatcher) OnDrop(fn func()) {
	if d == nil {
		return
	}
	d.onDrop = fn
}

func (d *Dispatcher) Enqueue(eventType EventType, payload map[string]any) {
	if d == nil {
		return
	}
	event := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: d.now().UTC(),
		Payload:    payload,
	}
	select {
	case d.events <- event:
	default:
		d.log.Warn("outbound event dropped", zap.String("type", string(eventType)))
		if d.onDrop != nil {
			d.onDrop()
		}
	}
}

// Start runs the delivery worker until ctx is cancelled or Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	if d == nil {
		return
	}
	d.startOnce.Do(func() {
		d.started.Store(true)
		go d.run(ctx)
	})
}

// Close stops the worker and, when it is running, waits until the buffered
// events have been delivered.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.done)
	})
	if d.started.Load() {
		<-d.stopped
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			d.drain()
			return
		case event := <-d.events:
			d.deliver(ctx, event)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.events:
			d.deliver(context.Background(), event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	if d.sink == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
	defer cancel()
	if err := d.sink.Publish(pubCtx, event); err != nil {
		d.log.Warn("publish outbound event failed",
			zap.String("id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}
