package itinerary

import (
	"time"

	"github.com/zombor/itinerary-scanner/internal/scanning"
)

// StorageEvent announces that an object was written to document storage
type StorageEvent struct {
	Bucket      string `json:"bucket"`
	ObjectPath  string `json:"object_path"`
	ContentType string `json:"content_type"`
}

// UploadedDocument is a document received from a traveler
type UploadedDocument struct {
	FileName    string
	Data        []byte
	ContentType string
}

// ExtractionResult pairs the recognized text of one document with its decoded activities
type ExtractionResult struct {
	ID           string                    `json:"id"`
	File         string                    `json:"file"`
	OriginalText string                    `json:"originalText"`
	Parsed       []scanning.ActivityRecord `json:"parsed"`
	Timestamp    time.Time                 `json:"timestamp"`
}

// Trip groups the activities and expenses of one journey
type Trip struct {
	ID        string    `json:"id"`
	Name      string    `json:"tripName"`
	StartDate string    `json:"startDate,omitempty"`
	EndDate   string    `json:"endDate,omitempty"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"created_at"`
}

// TripActivity is an itinerary entry of a trip
type TripActivity struct {
	ID        string    `json:"id"`
	TripID    string    `json:"trip_id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	Date      string    `json:"date,omitempty"`
	Time      string    `json:"time,omitempty"`
	Location  string    `json:"location,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Source    string    `json:"source,omitempty"` // file name of the document it was extracted from
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TripExpense is money spent on a trip
type TripExpense struct {
	ID        string    `json:"id"`
	TripID    string    `json:"trip_id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Amount    float64   `json:"amount"`
	Source    string    `json:"source,omitempty"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
