package itinerary

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/itinerary-scanner/internal/scanning"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
		base   time.Time
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	saveResult := func(file string, offset time.Duration) *ExtractionResult {
		result := &ExtractionResult{
			ID:           file + offset.String(),
			File:         file,
			OriginalText: "text of " + file,
			Parsed: []scanning.ActivityRecord{
				{Title: "Colosseum", Time: scanning.TimePair("15:00", "11:00")},
			},
			Timestamp: base.Add(offset),
		}
		Expect(db.SaveResult(result)).To(Succeed())
		return result
	}

	Describe("RecentResults", func() {
		When("no results exist", func() {
			It("should return an empty list", func() {
				results, err := db.RecentResults(5)
				Expect(err).NotTo(HaveOccurred())
				Expect(results).NotTo(BeNil())
				Expect(results).To(BeEmpty())
			})
		})

		When("results exist", func() {
			BeforeEach(func() {
				saveResult("a.png", 0)
				saveResult("b.png", time.Second)
				saveResult("c.png", 2*time.Second)
			})

			It("should return the newest first", func() {
				results, err := db.RecentResults(0)
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(HaveLen(3))
				Expect(results[0].File).To(Equal("c.png"))
				Expect(results[2].File).To(Equal("a.png"))
			})

			It("should honor the limit", func() {
				results, err := db.RecentResults(2)
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(HaveLen(2))
				Expect(results[1].File).To(Equal("b.png"))
			})

			It("should keep the shape of decoded values", func() {
				results, err := db.RecentResults(1)
				Expect(err).NotTo(HaveOccurred())
				Expect(results[0].Parsed[0].Time.IsPair()).To(BeTrue())
				Expect(results[0].Parsed[0].Time.CheckIn).To(Equal("15:00"))
			})
		})
	})

	Describe("FindResult", func() {
		When("the file has several results", func() {
			var newest *ExtractionResult

			BeforeEach(func() {
				newest = saveResult("a.png", 10*time.Second)
				saveResult("a.png", 0)
				saveResult("b.png", time.Second)
			})

			It("should return the one with the latest timestamp", func() {
				result, err := db.FindResult("a.png", 5)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.ID).To(Equal(newest.ID))
			})
		})

		When("the result is outside the window", func() {
			BeforeEach(func() {
				saveResult("a.png", 0)
				for i := 1; i <= 5; i++ {
					saveResult("other.png", time.Duration(i)*time.Second)
				}
			})

			It("should return ErrResultNotFound", func() {
				_, err := db.FindResult("a.png", 5)
				Expect(err).To(MatchError(ErrResultNotFound))
			})

			It("should find it with a wider window", func() {
				result, err := db.FindResult("a.png", 6)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.File).To(Equal("a.png"))
			})
		})
	})

	Describe("Trips", func() {
		var trip *Trip

		BeforeEach(func() {
			trip = &Trip{ID: "trip-1", Name: "Rome", CreatedBy: "alice", CreatedAt: base}
			Expect(db.SaveTrip(trip)).To(Succeed())
		})

		It("should get a saved trip", func() {
			saved, err := db.GetTrip("trip-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Name).To(Equal("Rome"))
			Expect(saved.CreatedAt).To(BeTemporally("==", base))
		})

		It("should return ErrTripNotFound for unknown trips", func() {
			_, err := db.GetTrip("missing")
			Expect(err).To(MatchError(ErrTripNotFound))
		})

		It("should list trips by owner", func() {
			Expect(db.SaveTrip(&Trip{ID: "trip-2", Name: "Paris", CreatedBy: "bob"})).To(Succeed())

			trips, err := db.ListTrips("alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(trips).To(HaveLen(1))
			Expect(trips[0].ID).To(Equal("trip-1"))

			all, err := db.ListTrips("")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
		})

		It("should keep activities and expenses in insertion order", func() {
			Expect(db.AddActivity(&TripActivity{ID: "a1", TripID: "trip-1", Name: "Flight"})).To(Succeed())
			Expect(db.AddActivity(&TripActivity{ID: "a2", TripID: "trip-1", Name: "Hotel"})).To(Succeed())
			Expect(db.AddExpense(&TripExpense{ID: "e1", TripID: "trip-1", Name: "Flight", Amount: 120.5})).To(Succeed())

			activities, err := db.ListActivities("trip-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(activities).To(HaveLen(2))
			Expect(activities[0].Name).To(Equal("Flight"))
			Expect(activities[1].Name).To(Equal("Hotel"))

			expenses, err := db.ListExpenses("trip-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(expenses).To(HaveLen(1))
			Expect(expenses[0].Amount).To(Equal(120.5))
		})

		It("should keep children when the trip is saved again", func() {
			Expect(db.AddActivity(&TripActivity{ID: "a1", TripID: "trip-1", Name: "Flight"})).To(Succeed())
			trip.Name = "Rome and Naples"
			Expect(db.SaveTrip(trip)).To(Succeed())

			activities, err := db.ListActivities("trip-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(activities).To(HaveLen(1))
		})

		It("should reject children of unknown trips", func() {
			err := db.AddActivity(&TripActivity{ID: "a1", TripID: "missing", Name: "Flight"})
			Expect(err).To(MatchError(ErrTripNotFound))

			_, err = db.ListExpenses("missing")
			Expect(err).To(MatchError(ErrTripNotFound))
		})

		Describe("DeleteTrip", func() {
			It("should remove the trip and its children", func() {
				Expect(db.AddExpense(&TripExpense{ID: "e1", TripID: "trip-1", Name: "Flight"})).To(Succeed())
				Expect(db.DeleteTrip("trip-1")).To(Succeed())

				_, err := db.GetTrip("trip-1")
				Expect(err).To(MatchError(ErrTripNotFound))
				_, err = db.ListExpenses("trip-1")
				Expect(err).To(MatchError(ErrTripNotFound))
			})

			It("should return ErrTripNotFound for unknown trips", func() {
				Expect(db.DeleteTrip("missing")).To(MatchError(ErrTripNotFound))
			})
		})
	})

	Describe("reopening", func() {
		It("should keep data across restarts", func() {
			saveResult("a.png", 0)
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())

			results, err := db.RecentResults(5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
		})
	})
})
