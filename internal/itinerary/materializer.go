package itinerary

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/zombor/itinerary-scanner/internal/scanning"
)

const untitledActivity = "Untitled activity"

// TripWriter creates entries in a trip's activity and expense collections
type TripWriter interface {
	CreateActivity(ctx context.Context, tripID string, activity *TripActivity) error
	CreateExpense(ctx context.Context, tripID string, expense *TripExpense) error
}

// MaterializeReport summarizes one materialization run
type MaterializeReport struct {
	Activities int     `json:"activities"`
	Expenses   int     `json:"expenses"`
	Failures   []error `json:"-"`
}

// Materializer converts decoded activity records into trip activities and expenses
type Materializer struct {
	writer TripWriter
}

// NewMaterializer creates a Materializer writing through writer
func NewMaterializer(writer TripWriter) *Materializer {
	return &Materializer{writer: writer}
}

// Materialize creates one activity per record and one expense per priced record, in
// record order. Writes are independent: a failed activity does not stop its expense
// or the following records.
func (m *Materializer) Materialize(ctx context.Context, tripID string, source string, records []scanning.ActivityRecord) MaterializeReport {
	var report MaterializeReport

	for i, record := range records {
		logger := slog.With("trip_id", tripID, "source", source, "record", i, "title", record.Title)

		activity := ActivityFromRecord(record, source)
		if err := m.writer.CreateActivity(ctx, tripID, activity); err != nil {
			logger.Error("Failed to create activity", "error", err)
			report.Failures = append(report.Failures, fmt.Errorf("record %d activity: %w", i, err))
		} else {
			report.Activities++
		}

		expense := ExpenseFromRecord(record, source)
		if expense == nil {
			continue
		}
		if err := m.writer.CreateExpense(ctx, tripID, expense); err != nil {
			logger.Error("Failed to create expense", "error", err)
			report.Failures = append(report.Failures, fmt.Errorf("record %d expense: %w", i, err))
		} else {
			report.Expenses++
		}
	}

	return report
}

// ActivityFromRecord maps a record onto a trip activity. A check-in/check-out pair is
// kept as a single time string.
func ActivityFromRecord(record scanning.ActivityRecord, source string) *TripActivity {
	return &TripActivity{
		Name:     recordName(record),
		Category: record.Category,
		Date:     record.Date,
		Time:     record.Time.String(),
		Location: record.Location.Display(),
		Notes:    record.Notes,
		Source:   source,
	}
}

// ExpenseFromRecord maps a priced record onto a trip expense, or returns nil without a price
func ExpenseFromRecord(record scanning.ActivityRecord, source string) *TripExpense {
	if strings.TrimSpace(record.Price) == "" {
		return nil
	}
	category := record.Category
	if category == "" {
		category = scanning.CategoryOther
	}
	return &TripExpense{
		Name:     recordName(record),
		Category: category,
		Amount:   ParsePrice(record.Price),
		Source:   source,
	}
}

// recordName is the record title, or the category when the model left the title out
func recordName(record scanning.ActivityRecord) string {
	if name := strings.TrimSpace(record.Title); name != "" {
		return name
	}
	if category := strings.TrimSpace(record.Category); category != "" {
		return category
	}
	return untitledActivity
}

// ParsePrice keeps only digits and dots and parses the rest as a number, 0 when that fails
func ParsePrice(price string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, price)

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return amount
}
