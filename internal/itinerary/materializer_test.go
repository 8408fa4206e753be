package itinerary

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/itinerary-scanner/internal/scanning"
)

// recordingWriter is a TripWriter that keeps what it was asked to create
type recordingWriter struct {
	activities  []*TripActivity
	expenses    []*TripExpense
	activityErr error
	expenseErr  error
}

func (w *recordingWriter) CreateActivity(ctx context.Context, tripID string, activity *TripActivity) error {
	if w.activityErr != nil {
		return w.activityErr
	}
	activity.TripID = tripID
	w.activities = append(w.activities, activity)
	return nil
}

func (w *recordingWriter) CreateExpense(ctx context.Context, tripID string, expense *TripExpense) error {
	if w.expenseErr != nil {
		return w.expenseErr
	}
	expense.TripID = tripID
	w.expenses = append(w.expenses, expense)
	return nil
}

var _ = Describe("Materializer", func() {
	var (
		writer  *recordingWriter
		records []scanning.ActivityRecord
		report  MaterializeReport
	)

	decode := func(reply string) []scanning.ActivityRecord {
		decoded, err := scanning.DecodeActivities(reply)
		Expect(err).NotTo(HaveOccurred())
		return scanning.ClassifyAll(decoded)
	}

	BeforeEach(func() {
		writer = &recordingWriter{}
	})

	JustBeforeEach(func() {
		report = NewMaterializer(writer).Materialize(context.Background(), "trip-1", "abc_ticket.png", records)
	})

	When("a bus ticket is materialized", func() {
		BeforeEach(func() {
			records = decode(`[{"activityTitle":"Bus Ride with FlixBus","activityType":"Bus","date":"2024-05-19","time":"21:00","location":"Vienna Erdberg","price":"EUR 31.99"}]`)
		})

		It("should create one activity", func() {
			Expect(writer.activities).To(HaveLen(1))
			activity := writer.activities[0]
			Expect(activity.TripID).To(Equal("trip-1"))
			Expect(activity.Name).To(Equal("Bus Ride with FlixBus"))
			Expect(activity.Date).To(Equal("2024-05-19"))
			Expect(activity.Time).To(Equal("21:00"))
			Expect(activity.Location).To(Equal("Vienna Erdberg"))
			Expect(activity.Source).To(Equal("abc_ticket.png"))
		})

		It("should create one expense", func() {
			Expect(writer.expenses).To(HaveLen(1))
			expense := writer.expenses[0]
			Expect(expense.Name).To(Equal("Bus Ride with FlixBus"))
			Expect(expense.Category).To(Equal(scanning.CategoryBus))
			Expect(expense.Amount).To(Equal(31.99))
		})

		It("should report the counts", func() {
			Expect(report.Activities).To(Equal(1))
			Expect(report.Expenses).To(Equal(1))
			Expect(report.Failures).To(BeEmpty())
		})
	})

	When("a check-in is materialized", func() {
		BeforeEach(func() {
			records = decode(`[{"activityTitle":"Check-in","time":{"check_in":"15:00","check_out":"11:00"},"location":{"location":"Hotel California"}}]`)
		})

		It("should be classified as accommodation", func() {
			Expect(records[0].Category).To(Equal(scanning.CategoryAccommodation))
			Expect(writer.activities[0].Category).To(Equal(scanning.CategoryAccommodation))
		})

		It("should carry the time pair as one value", func() {
			Expect(writer.activities[0].Time).To(MatchJSON(`{"check_in":"15:00","check_out":"11:00"}`))
		})

		It("should use the place as location", func() {
			Expect(writer.activities[0].Location).To(Equal("Hotel California"))
		})

		It("should not create an expense", func() {
			Expect(writer.expenses).To(BeEmpty())
			Expect(report.Expenses).To(Equal(0))
		})
	})

	When("a route is materialized", func() {
		BeforeEach(func() {
			records = decode(`[{"activityTitle":"Train to Florence","location":{"from":"Roma Termini","to":"Firenze SMN"},"price":"Free"}]`)
		})

		It("should use the departure as location", func() {
			Expect(writer.activities[0].Location).To(Equal("Roma Termini"))
		})

		It("should create a zero expense for an unparseable price", func() {
			Expect(writer.expenses).To(HaveLen(1))
			Expect(writer.expenses[0].Amount).To(Equal(0.0))
			Expect(writer.expenses[0].Category).To(Equal(scanning.CategoryTransport))
		})
	})

	When("several records are materialized", func() {
		BeforeEach(func() {
			records = []scanning.ActivityRecord{
				{Title: "First", Price: "10"},
				{Title: "Second"},
				{Title: "Third", Price: "30"},
			}
		})

		It("should keep record order", func() {
			Expect(writer.activities).To(HaveLen(3))
			Expect(writer.activities[0].Name).To(Equal("First"))
			Expect(writer.activities[2].Name).To(Equal("Third"))
			Expect(writer.expenses[1].Amount).To(Equal(30.0))
		})

		It("should default the expense category to Other", func() {
			Expect(writer.expenses[0].Category).To(Equal(scanning.CategoryOther))
		})
	})

	When("activity writes fail", func() {
		BeforeEach(func() {
			writer.activityErr = errors.New("permission denied")
			records = []scanning.ActivityRecord{
				{Title: "First", Price: "10"},
				{Title: "Second", Price: "20"},
			}
		})

		It("should still create every expense", func() {
			Expect(writer.expenses).To(HaveLen(2))
			Expect(report.Expenses).To(Equal(2))
		})

		It("should report each failure", func() {
			Expect(report.Activities).To(Equal(0))
			Expect(report.Failures).To(HaveLen(2))
			Expect(report.Failures[0]).To(MatchError(ContainSubstring("permission denied")))
		})
	})

	When("expense writes fail", func() {
		BeforeEach(func() {
			writer.expenseErr = errors.New("quota exceeded")
			records = []scanning.ActivityRecord{{Title: "First", Price: "10"}, {Title: "Second"}}
		})

		It("should keep the activities", func() {
			Expect(writer.activities).To(HaveLen(2))
			Expect(report.Failures).To(HaveLen(1))
		})
	})

	When("a priced record has no title", func() {
		BeforeEach(func() {
			records = decode(`[{"activityType":"Museum","date":"2024-05-20","price":"EUR 12"},{"price":"5"}]`)
		})

		It("should name the activity after its category", func() {
			Expect(writer.activities).To(HaveLen(2))
			Expect(writer.activities[0].Name).To(Equal("Museum"))
			Expect(writer.activities[0].Date).To(Equal("2024-05-20"))
		})

		It("should still create the expense", func() {
			Expect(writer.expenses).To(HaveLen(2))
			Expect(writer.expenses[0].Name).To(Equal("Museum"))
			Expect(writer.expenses[0].Amount).To(Equal(12.0))
			Expect(report.Failures).To(BeEmpty())
		})

		It("should fall back to a generic name without a category", func() {
			records[1].Category = ""
			report = NewMaterializer(writer).Materialize(context.Background(), "trip-1", "abc_ticket.png", records[1:])
			Expect(writer.activities[2].Name).To(Equal("Untitled activity"))
			Expect(writer.expenses[2].Name).To(Equal("Untitled activity"))
		})
	})

	When("there are no records", func() {
		BeforeEach(func() {
			records = []scanning.ActivityRecord{}
		})

		It("should create nothing", func() {
			Expect(report).To(Equal(MaterializeReport{}))
		})
	})
})

var _ = Describe("ParsePrice", func() {
	DescribeTable("parsing prices",
		func(input string, expected float64) {
			Expect(ParsePrice(input)).To(Equal(expected))
		},
		Entry("clean number", "42.99", 42.99),
		Entry("currency prefix", "EUR 42.99", 42.99),
		Entry("currency symbol", "$120.50", 120.5),
		Entry("thousands separator", "1,250.00", 1250.0),
		Entry("words", "Free", 0.0),
		Entry("empty", "", 0.0),
		Entry("two dots", "1.2.3", 0.0),
	)

	It("should be idempotent on clean numbers", func() {
		Expect(ParsePrice("42.99")).To(Equal(ParsePrice("EUR 42.99")))
	})
})
