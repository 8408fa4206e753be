package itinerary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/itinerary-scanner/internal/scanning"
)

// ErrInvalidInput is returned when a request is missing required data
var ErrInvalidInput = errors.New("invalid input")

// IDGenerator generates unique IDs
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now().UTC()
}

// UploadReceipt tells the uploader which file name to correlate on
type UploadReceipt struct {
	File        string `json:"file"`
	ContentType string `json:"content_type"`
}

// Service handles uploads, extraction results and trips
type Service struct {
	db           DB
	storage      Storage
	events       EventSink
	idGenerator  IDGenerator
	timeSource   TimeSource
	rasterizePDF bool
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, storage Storage, events EventSink) *Service {
	return NewServiceWithDeps(db, storage, events, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, events EventSink, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		events:      events,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// WithPDFRasterizing makes uploads of PDFs store their first page as a PNG image
func (s *Service) WithPDFRasterizing(enabled bool) *Service {
	s.rasterizePDF = enabled
	return s
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, " ")
	base = strings.ReplaceAll(strings.TrimSpace(base), " ", "-")

	// Truncate to reasonable length (50 chars for base, plus extension)
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "document"
	}
	return base + ext
}

// Upload stores a document and announces it to the extraction side. The returned file
// name is unique, so it can be used to find the extraction result later.
func (s *Service) Upload(doc UploadedDocument) (*UploadReceipt, error) {
	if len(doc.Data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidInput)
	}

	data, contentType, name := doc.Data, doc.ContentType, doc.FileName
	if s.rasterizePDF && contentType == "application/pdf" {
		pngData, err := scanning.RasterizePDF(data)
		if err != nil {
			return nil, fmt.Errorf("rasterizing PDF: %w", err)
		}
		data, contentType = pngData, "image/png"
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".png"
	}

	objectPath := fmt.Sprintf("%s_%s", s.idGenerator.Generate(), sanitizeFilename(name))
	if _, err := s.storage.Save(objectPath, data); err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}

	s.events.Dispatch(StorageEvent{
		Bucket:      s.storage.Bucket(),
		ObjectPath:  objectPath,
		ContentType: contentType,
	})
	slog.Info("Document uploaded", "file", objectPath, "content_type", contentType, "size", len(data))

	return &UploadReceipt{File: objectPath, ContentType: contentType}, nil
}

// RecentResults returns up to limit extraction results, newest first
func (s *Service) RecentResults(limit int) ([]*ExtractionResult, error) {
	results, err := s.db.RecentResults(limit)
	if err != nil {
		return nil, fmt.Errorf("listing extraction results: %w", err)
	}
	return results, nil
}

// FindResult returns the newest extraction result for file within the latest window results
func (s *Service) FindResult(file string, window int) (*ExtractionResult, error) {
	return s.db.FindResult(file, window)
}

// CreateTrip creates a trip owned by owner
func (s *Service) CreateTrip(owner string, trip *Trip) (*Trip, error) {
	if strings.TrimSpace(trip.Name) == "" {
		return nil, fmt.Errorf("%w: trip name is required", ErrInvalidInput)
	}
	trip.ID = s.idGenerator.Generate()
	trip.CreatedBy = owner
	trip.CreatedAt = s.timeSource.Now()

	if err := s.db.SaveTrip(trip); err != nil {
		return nil, fmt.Errorf("saving trip: %w", err)
	}
	return trip, nil
}

// ListTrips returns the trips of owner
func (s *Service) ListTrips(owner string) ([]*Trip, error) {
	trips, err := s.db.ListTrips(owner)
	if err != nil {
		return nil, fmt.Errorf("listing trips: %w", err)
	}
	return trips, nil
}

// GetTrip returns a trip if owner created it
func (s *Service) GetTrip(owner string, id string) (*Trip, error) {
	trip, err := s.db.GetTrip(id)
	if err != nil {
		return nil, fmt.Errorf("getting trip: %w", err)
	}
	if trip.CreatedBy != owner {
		return nil, fmt.Errorf("getting trip: %w: %s", ErrTripNotFound, id)
	}
	return trip, nil
}

// DeleteTrip removes a trip with all its activities and expenses
func (s *Service) DeleteTrip(owner string, id string) error {
	if _, err := s.GetTrip(owner, id); err != nil {
		return err
	}
	if err := s.db.DeleteTrip(id); err != nil {
		return fmt.Errorf("deleting trip: %w", err)
	}
	return nil
}

// AddActivity adds an activity to a trip of owner
func (s *Service) AddActivity(owner string, tripID string, activity *TripActivity) (*TripActivity, error) {
	if strings.TrimSpace(activity.Name) == "" {
		return nil, fmt.Errorf("%w: activity name is required", ErrInvalidInput)
	}
	if _, err := s.GetTrip(owner, tripID); err != nil {
		return nil, err
	}

	activity.ID = s.idGenerator.Generate()
	activity.TripID = tripID
	activity.CreatedBy = owner
	activity.CreatedAt = s.timeSource.Now()
	if err := s.db.AddActivity(activity); err != nil {
		return nil, fmt.Errorf("saving activity: %w", err)
	}
	return activity, nil
}

// ListActivities returns the activities of a trip of owner
func (s *Service) ListActivities(owner string, tripID string) ([]*TripActivity, error) {
	if _, err := s.GetTrip(owner, tripID); err != nil {
		return nil, err
	}
	activities, err := s.db.ListActivities(tripID)
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}
	return activities, nil
}

// AddExpense adds an expense to a trip of owner
func (s *Service) AddExpense(owner string, tripID string, expense *TripExpense) (*TripExpense, error) {
	if strings.TrimSpace(expense.Name) == "" {
		return nil, fmt.Errorf("%w: expense name is required", ErrInvalidInput)
	}
	if _, err := s.GetTrip(owner, tripID); err != nil {
		return nil, err
	}
	if expense.Category == "" {
		expense.Category = scanning.CategoryOther
	}

	expense.ID = s.idGenerator.Generate()
	expense.TripID = tripID
	expense.CreatedBy = owner
	expense.CreatedAt = s.timeSource.Now()
	if err := s.db.AddExpense(expense); err != nil {
		return nil, fmt.Errorf("saving expense: %w", err)
	}
	return expense, nil
}

// ListExpenses returns the expenses of a trip of owner
func (s *Service) ListExpenses(owner string, tripID string) ([]*TripExpense, error) {
	if _, err := s.GetTrip(owner, tripID); err != nil {
		return nil, err
	}
	expenses, err := s.db.ListExpenses(tripID)
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	return expenses, nil
}

// ownerWriter writes trip entries on behalf of one owner
type ownerWriter struct {
	service *Service
	owner   string
}

func (w ownerWriter) CreateActivity(ctx context.Context, tripID string, activity *TripActivity) error {
	_, err := w.service.AddActivity(w.owner, tripID, activity)
	return err
}

func (w ownerWriter) CreateExpense(ctx context.Context, tripID string, expense *TripExpense) error {
	_, err := w.service.AddExpense(w.owner, tripID, expense)
	return err
}

// Writer returns a TripWriter acting as owner
func (s *Service) Writer(owner string) TripWriter {
	return ownerWriter{service: s, owner: owner}
}

// MaterializeResult finds the extraction result for file and materializes it into a trip
func (s *Service) MaterializeResult(ctx context.Context, owner string, tripID string, file string, window int) (*ExtractionResult, MaterializeReport, error) {
	if _, err := s.GetTrip(owner, tripID); err != nil {
		return nil, MaterializeReport{}, err
	}
	result, err := s.db.FindResult(file, window)
	if err != nil {
		return nil, MaterializeReport{}, err
	}

	report := NewMaterializer(s.Writer(owner)).Materialize(ctx, tripID, result.File, result.Parsed)
	return result, report, nil
}
