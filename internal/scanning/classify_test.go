package scanning

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Classify", func() {
	DescribeTable("picks the first matching rule",
		func(title string, time TimeValue, expected string) {
			Expect(Classify(ActivityRecord{Title: title, Time: time})).To(Equal(expected))
		},
		Entry("bus keyword", "Bus Ride with FlixBus", TimeText("21:00"), CategoryTransport),
		Entry("flight keyword, any case", "FLIGHT LH1234", TimeText("06:10"), CategoryTransport),
		Entry("plane keyword", "Plane to Lisbon", TimeText(""), CategoryTransport),
		Entry("train beats hotel", "Train to Hotel Adlon", TimeText("09:00"), CategoryTransport),
		Entry("car matches as a substring", "Rental car pickup", TimeText("10:00"), CategoryTransport),
		Entry("transport keyword beats pair time", "Sleeper train", TimePair("22:00", "07:00"), CategoryTransport),
		Entry("hotel keyword", "Hilton Hotel Rome", TimeText("15:00"), CategoryAccommodation),
		Entry("hostel keyword", "Meininger Hostel", TimeText(""), CategoryAccommodation),
		Entry("bnb keyword", "Cosy BnB in Trastevere", TimeText(""), CategoryAccommodation),
		Entry("pair time without keyword", "Check-in", TimePair("15:00", "11:00"), CategoryAccommodation),
		Entry("accommodation beats restaurant", "Hotel restaurant", TimeText("19:00"), CategoryAccommodation),
		Entry("restaurant keyword", "Restaurant Da Enzo", TimeText("19:00"), CategoryRestaurant),
		Entry("dinner contains inn", "Dinner at Trastevere", TimeText("19:00"), CategoryAccommodation),
		Entry("lunch keyword", "Lunch with the group", TimeText("12:30"), CategoryRestaurant),
		Entry("bar keyword", "Rooftop Bar", TimeText("21:00"), CategoryRestaurant),
		Entry("no keyword", "Colosseum Tour", TimeText("10:00"), CategoryActivity),
		Entry("empty title", "", TimeText(""), CategoryActivity),
	)

	It("is deterministic", func() {
		record := ActivityRecord{Title: "Vatican Museums", Time: TimePair("09:00", "12:00")}
		first := Classify(record)
		for i := 0; i < 10; i++ {
			Expect(Classify(record)).To(Equal(first))
		}
	})
})

var _ = Describe("ClassifyAll", func() {
	It("fills only missing categories", func() {
		records := ClassifyAll([]ActivityRecord{
			{Title: "Bus to Prague", Category: CategoryBus},
			{Title: "Bus to Prague"},
			{Title: "Museum pass", Category: ""},
		})
		Expect(records[0].Category).To(Equal(CategoryBus))
		Expect(records[1].Category).To(Equal(CategoryTransport))
		Expect(records[2].Category).To(Equal(CategoryActivity))
	})

	It("always leaves a non-empty category", func() {
		records := ClassifyAll([]ActivityRecord{{}, {Title: "x"}, {Time: TimePair("", "")}})
		for _, r := range records {
			Expect(r.Category).NotTo(BeEmpty())
		}
	})
})
