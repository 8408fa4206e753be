package itinerary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/zombor/itinerary-scanner/internal/scanning"
)

// ErrSkipped is returned for events the pipeline does not handle
var ErrSkipped = errors.New("event skipped")

// Pipeline turns a stored document image into an ExtractionResult
type Pipeline struct {
	storage     Storage
	recognizer  scanning.TextRecognizer
	requester   *scanning.Requester
	results     ResultStore
	metrics     *Metrics
	idGenerator IDGenerator
	timeSource  TimeSource
	tempDir     string
}

// NewPipeline creates a Pipeline. Temporary image copies go to the OS temp directory.
func NewPipeline(storage Storage, recognizer scanning.TextRecognizer, completer scanning.Completer, results ResultStore, metrics *Metrics) *Pipeline {
	return &Pipeline{
		storage:     storage,
		recognizer:  recognizer,
		requester:   scanning.NewRequester(completer),
		results:     results,
		metrics:     metrics,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
		tempDir:     os.TempDir(),
	}
}

// WithTempDir sets the directory used for transient image copies
func (p *Pipeline) WithTempDir(dir string) *Pipeline {
	p.tempDir = dir
	return p
}

// WithClock replaces the ID generator and time source, for tests
func (p *Pipeline) WithClock(idGen IDGenerator, timeSrc TimeSource) *Pipeline {
	p.idGenerator = idGen
	p.timeSource = timeSrc
	return p
}

// Process runs one storage event through text recognition, structured extraction,
// decoding and classification, then writes the result. Every failure is local to the
// document: it is logged and returned, and nothing is written.
func (p *Pipeline) Process(ctx context.Context, event StorageEvent) (*ExtractionResult, error) {
	started := time.Now()
	fileName := path.Base(event.ObjectPath)
	logger := slog.With("bucket", event.Bucket, "object", event.ObjectPath)

	if !strings.HasPrefix(event.ContentType, "image/") {
		logger.Info("Skipped non-image file", "content_type", event.ContentType)
		p.metrics.observe(OutcomeSkipped, started, 0)
		return nil, fmt.Errorf("%w: content type %q", ErrSkipped, event.ContentType)
	}
	if bucket := p.storage.Bucket(); event.Bucket != "" && event.Bucket != bucket {
		logger.Info("Skipped object from another bucket", "expected_bucket", bucket)
		p.metrics.observe(OutcomeSkipped, started, 0)
		return nil, fmt.Errorf("%w: unknown bucket %q", ErrSkipped, event.Bucket)
	}

	imagePath, cleanup, err := p.download(event.ObjectPath)
	if err != nil {
		logger.Error("Failed to download image", "error", err)
		p.metrics.observe(OutcomeReadFailed, started, 0)
		return nil, err
	}
	defer cleanup()

	rawText, err := p.recognizer.RecognizeText(ctx, imagePath, event.ContentType)
	if err != nil {
		if errors.Is(err, scanning.ErrNoText) {
			logger.Warn("No text detected")
			p.metrics.observe(OutcomeNoText, started, 0)
		} else {
			logger.Error("Failed to recognize text", "error", err)
			p.metrics.observe(OutcomeReadFailed, started, 0)
		}
		return nil, fmt.Errorf("recognizing text: %w", err)
	}
	logger.Debug("Extracted text", "length", len(rawText))

	reply, err := p.requester.Request(ctx, rawText)
	if err != nil {
		logger.Error("Inference call failed", "error", err)
		p.metrics.observe(OutcomeInferenceFailed, started, 0)
		return nil, err
	}

	records, err := scanning.DecodeActivities(reply)
	if err != nil {
		logger.Error("Failed to parse model reply as JSON", "error", err, "reply", reply)
		p.metrics.observe(OutcomeDecodeFailed, started, 0)
		return nil, fmt.Errorf("decoding model reply: %w", err)
	}
	records = scanning.ClassifyAll(records)

	result := &ExtractionResult{
		ID:           p.idGenerator.Generate(),
		File:         fileName,
		OriginalText: rawText,
		Parsed:       records,
		Timestamp:    p.timeSource.Now(),
	}
	if err := p.results.SaveResult(result); err != nil {
		logger.Error("Failed to save extraction result", "error", err)
		p.metrics.observe(OutcomeStoreFailed, started, 0)
		return nil, fmt.Errorf("saving extraction result: %w", err)
	}

	logger.Info("Saved parsed data", "file", fileName, "records", len(records))
	p.metrics.observe(OutcomeExtracted, started, len(records))
	return result, nil
}

// download copies an object into a temporary file. The returned cleanup removes it.
func (p *Pipeline) download(objectPath string) (string, func(), error) {
	data, err := p.storage.Get(objectPath)
	if err != nil {
		return "", nil, fmt.Errorf("reading object: %w", err)
	}

	f, err := os.CreateTemp(p.tempDir, "itinerary-*"+path.Ext(objectPath))
	if err != nil {
		return "", nil, fmt.Errorf("creating temp file: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(f.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to remove temp file", "path", f.Name(), "error", err)
		}
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("closing temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}
