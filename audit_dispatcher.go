package caseAuth

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher hands login and session events to the configured sink.
// Delivery is inline unless AuditConfig.Async is set, in which case a single
// worker drains a bounded queue.
type auditDispatcher struct {
	sink  AuditSink
	queue *auditQueue
}

// auditQueue is the async half of the dispatcher. The events channel is
// closed exactly once, under mu, after which the worker delivers whatever is
// left and signals drained.
type auditQueue struct {
	events     chan AuditEvent
	dropIfFull bool

	mu      sync.RWMutex
	closed  bool
	drained chan struct{}
	dropped atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{sink: sink}
	if cfg.Async {
		d.queue = &auditQueue{
			events:     make(chan AuditEvent, max(cfg.BufferSize, 1)),
			dropIfFull: cfg.DropIfFull,
			drained:    make(chan struct{}),
		}
		go d.deliverQueued()
	}
	return d
}

func (d *auditDispatcher) deliverQueued() {
	defer close(d.queue.drained)

	for event := range d.queue.events {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit records event. With a queue, a full buffer either drops the event or
// waits for room until ctx is done, depending on AuditConfig.DropIfFull.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if d.queue == nil {
		d.sink.Emit(ctx, event)
		return
	}
	d.queue.push(ctx, event)
}

func (q *auditQueue) push(ctx context.Context, event AuditEvent) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return
	}

	if q.dropIfFull {
		select {
		case q.events <- event:
		default:
			q.dropped.Add(1)
		}
		return
	}

	select {
	case q.events <- event:
	case <-ctx.Done():
	}
}

// Close stops accepting events and waits until queued ones reach the sink.
// Later calls return immediately.
func (d *auditDispatcher) Close() {
	if d == nil || d.queue == nil {
		return
	}

	q := d.queue
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.events)
	}
	q.mu.Unlock()

	<-q.drained
}

// Dropped is the number of events discarded because the queue was full.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil || d.queue == nil {
		return 0
	}
	return d.queue.dropped.Load()
}
