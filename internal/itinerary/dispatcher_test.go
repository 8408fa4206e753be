package itinerary

import (
	"context"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// blockingProcessor records events and holds each one until released
type blockingProcessor struct {
	mu      sync.Mutex
	seen    []StorageEvent
	active  atomic.Int32
	peak    atomic.Int32
	release chan struct{}
}

func (p *blockingProcessor) Process(ctx context.Context, event StorageEvent) (*ExtractionResult, error) {
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	p.mu.Lock()
	p.seen = append(p.seen, event)
	p.mu.Unlock()

	<-p.release
	return &ExtractionResult{File: event.ObjectPath}, ctx.Err()
}

func (p *blockingProcessor) Seen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

var _ = Describe("Dispatcher", func() {
	var (
		processor  *blockingProcessor
		dispatcher *Dispatcher
	)

	BeforeEach(func() {
		processor = &blockingProcessor{release: make(chan struct{})}
		dispatcher = NewDispatcher(processor, 2)
	})

	It("should limit how many documents run at once", func() {
		for _, name := range []string{"a.png", "b.png", "c.png", "d.png"} {
			dispatcher.Dispatch(StorageEvent{ObjectPath: name, ContentType: "image/png"})
		}

		Eventually(processor.Seen).Should(Equal(2))
		Consistently(processor.Seen).Should(Equal(2))

		close(processor.release)
		Eventually(processor.Seen).Should(Equal(4))
		dispatcher.Close()
		Expect(processor.peak.Load()).To(BeNumerically("<=", 2))
	})

	It("should let started documents finish on close", func() {
		dispatcher.Dispatch(StorageEvent{ObjectPath: "a.png", ContentType: "image/png"})
		Eventually(processor.Seen).Should(Equal(1))

		closed := make(chan struct{})
		go func() {
			dispatcher.Close()
			close(closed)
		}()
		Consistently(closed).ShouldNot(BeClosed())

		close(processor.release)
		Eventually(closed).Should(BeClosed())
	})

	It("should drop events dispatched after close", func() {
		close(processor.release)
		dispatcher.Close()

		dispatcher.Dispatch(StorageEvent{ObjectPath: "late.png", ContentType: "image/png"})
		Consistently(processor.Seen).Should(Equal(0))
	})

	It("should tolerate dispatches racing with close", func() {
		close(processor.release)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				dispatcher.Dispatch(StorageEvent{ObjectPath: "race.png", ContentType: "image/png"})
			}()
		}
		dispatcher.Close()
		wg.Wait()
		Expect(processor.Seen()).To(BeNumerically("<=", 20))
	})
})
