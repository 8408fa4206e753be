package correlation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zombor/itinerary-scanner/internal/itinerary"
)

// State is a step of one upload's lifecycle as seen by the uploader
type State string

const (
	StateIdle      State = "idle"
	StateUploading State = "uploading"
	StateWaiting   State = "waiting"
	StateMatched   State = "matched"
	StateRendered  State = "rendered"
	StateTimedOut  State = "timed_out"
	StateFailed    State = "failed"
)

// ErrTimedOut is returned when no extraction result arrives before the timeout
var ErrTimedOut = errors.New("timed out waiting for extraction result")

// Transition is a state change, with the matched result once there is one
type Transition struct {
	From   State
	To     State
	File   string
	Result *itinerary.ExtractionResult
	Err    error
}

// Observer is notified of every transition
type Observer func(Transition)

// Uploader stores a document and returns the file name its result will carry
type Uploader interface {
	Upload(ctx context.Context, doc itinerary.UploadedDocument) (*itinerary.UploadReceipt, error)
}

// ResultFinder lists the newest extraction results
type ResultFinder interface {
	RecentResults(ctx context.Context, limit int) ([]*itinerary.ExtractionResult, error)
}

// Config tunes the polling loop
type Config struct {
	// Interval between result queries
	Interval time.Duration

	// Window is how many of the newest results each query looks at
	Window int

	// DisplayDelay is how long the raw text is shown before the records are rendered
	DisplayDelay time.Duration

	// Timeout gives up waiting after this long. Zero waits until the context ends.
	Timeout time.Duration
}

// DefaultConfig returns the standard polling settings
func DefaultConfig() Config {
	return Config{
		Interval:     2 * time.Second,
		Window:       5,
		DisplayDelay: 1500 * time.Millisecond,
	}
}

// Poller uploads a document, waits for its extraction result and materializes the
// records into a trip
type Poller struct {
	uploader  Uploader
	finder    ResultFinder
	writer    itinerary.TripWriter
	config    Config
	observers []Observer

	mu      sync.Mutex
	state   State
	reports []itinerary.MaterializeReport
	wg      sync.WaitGroup
}

// NewPoller creates a Poller. writer may be nil to skip materialization.
func NewPoller(uploader Uploader, finder ResultFinder, writer itinerary.TripWriter, config Config) *Poller {
	defaults := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.DisplayDelay < 0 {
		config.DisplayDelay = 0
	}

	return &Poller{
		uploader: uploader,
		finder:   finder,
		writer:   writer,
		config:   config,
		state:    StateIdle,
	}
}

// Observe registers an observer. It must be called before Run.
func (p *Poller) Observe(observer Observer) {
	p.observers = append(p.observers, observer)
}

// State returns the current state
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) transition(to State, t Transition) {
	p.mu.Lock()
	t.From, t.To = p.state, to
	p.state = to
	p.mu.Unlock()

	slog.Debug("Poller transition", "from", t.From, "to", t.To, "file", t.File)
	for _, o := range p.observers {
		o(t)
	}
}

// Run uploads doc and blocks until its extraction result is rendered, the timeout
// passes or ctx ends. Records are materialized into tripID in the background; an
// empty tripID only renders them.
func (p *Poller) Run(ctx context.Context, doc itinerary.UploadedDocument, tripID string) (*itinerary.ExtractionResult, error) {
	p.transition(StateUploading, Transition{File: doc.FileName})
	receipt, err := p.uploader.Upload(ctx, doc)
	if err != nil {
		err = fmt.Errorf("uploading %s: %w", doc.FileName, err)
		p.transition(StateFailed, Transition{File: doc.FileName, Err: err})
		return nil, err
	}

	file := receipt.File
	p.transition(StateWaiting, Transition{File: file})

	result, err := p.await(ctx, file)
	if err != nil {
		if errors.Is(err, ErrTimedOut) {
			p.transition(StateTimedOut, Transition{File: file, Err: err})
		}
		return nil, err
	}
	p.transition(StateMatched, Transition{File: file, Result: result})

	if p.config.DisplayDelay > 0 {
		delay := time.NewTimer(p.config.DisplayDelay)
		defer delay.Stop()
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-delay.C:
		}
	}
	p.transition(StateRendered, Transition{File: file, Result: result})

	if tripID != "" && p.writer != nil {
		p.materialize(context.WithoutCancel(ctx), tripID, result)
	}
	return result, nil
}

// await polls until a result for file shows up in the recent window
func (p *Poller) await(ctx context.Context, file string) (*itinerary.ExtractionResult, error) {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	var timeout <-chan time.Time
	if p.config.Timeout > 0 {
		timer := time.NewTimer(p.config.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, fmt.Errorf("%w: %s after %s", ErrTimedOut, file, p.config.Timeout)
		case <-ticker.C:
		}

		results, err := p.finder.RecentResults(ctx, p.config.Window)
		if err != nil {
			slog.Warn("Failed to query extraction results", "file", file, "error", err)
			continue
		}
		if match := itinerary.NewestMatch(results, file); match != nil {
			return match, nil
		}
	}
}

// materialize writes the records in the background
func (p *Poller) materialize(ctx context.Context, tripID string, result *itinerary.ExtractionResult) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		report := itinerary.NewMaterializer(p.writer).Materialize(ctx, tripID, result.File, result.Parsed)
		if len(report.Failures) > 0 {
			slog.Warn("Some records were not added to the trip", "trip_id", tripID, "file", result.File, "failures", len(report.Failures))
		}

		p.mu.Lock()
		p.reports = append(p.reports, report)
		p.mu.Unlock()
	}()
}

// Wait blocks until background materializations finish and returns their reports
func (p *Poller) Wait() []itinerary.MaterializeReport {
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]itinerary.MaterializeReport(nil), p.reports...)
}
