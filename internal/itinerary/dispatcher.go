package itinerary

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// EventSink accepts storage events for asynchronous processing
type EventSink interface {
	Dispatch(event StorageEvent)
}

// EventProcessor handles one storage event to completion
type EventProcessor interface {
	Process(ctx context.Context, event StorageEvent) (*ExtractionResult, error)
}

// Dispatcher runs storage events through a processor in the background.
// At most `concurrency` documents are processed at once; others wait for a slot.
type Dispatcher struct {
	processor EventProcessor
	sem       *semaphore.Weighted
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a Dispatcher
func NewDispatcher(processor EventProcessor, concurrency int) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		processor: processor,
		sem:       semaphore.NewWeighted(int64(concurrency)),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Dispatch schedules an event and returns immediately. Processing errors are logged only.
// Events arriving after Close are dropped.
func (d *Dispatcher) Dispatch(event StorageEvent) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		slog.Warn("Dropped storage event after shutdown", "object", event.ObjectPath)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()
	go func() {
		defer d.wg.Done()

		if err := d.sem.Acquire(d.ctx, 1); err != nil {
			slog.Warn("Dropped storage event on shutdown", "object", event.ObjectPath)
			return
		}
		defer d.sem.Release(1)

		// errors are logged by the processor; a started document runs to completion
		_, _ = d.processor.Process(context.WithoutCancel(d.ctx), event)
	}()
}

// Close waits for in-flight events to finish. Events still waiting for a slot are dropped.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}
