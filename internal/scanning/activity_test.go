package scanning

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ActivityRecord", func() {
	Describe("TimeValue", func() {
		It("renders a pair as a JSON object", func() {
			Expect(TimePair("15:00", "11:00").String()).To(Equal(`{"check_in":"15:00","check_out":"11:00"}`))
		})

		It("treats any object as a pair", func() {
			var t TimeValue
			Expect(json.Unmarshal([]byte(`{"start":"09:00"}`), &t)).To(Succeed())
			Expect(t.IsPair()).To(BeTrue())
			Expect(t.CheckIn).To(BeEmpty())
		})

		It("keeps numbers as text", func() {
			var t TimeValue
			Expect(json.Unmarshal([]byte(`2100`), &t)).To(Succeed())
			Expect(t.IsPair()).To(BeFalse())
			Expect(t.String()).To(Equal("2100"))
		})

		It("decodes null as an empty plain value", func() {
			var t TimeValue
			Expect(json.Unmarshal([]byte(`null`), &t)).To(Succeed())
			Expect(t.IsPair()).To(BeFalse())
			Expect(t.String()).To(BeEmpty())
		})
	})

	Describe("LocationValue", func() {
		DescribeTable("Display",
			func(input string, expected string) {
				var l LocationValue
				Expect(json.Unmarshal([]byte(input), &l)).To(Succeed())
				Expect(l.Display()).To(Equal(expected))
			},
			Entry("bare string", `"Vienna Erdberg"`, "Vienna Erdberg"),
			Entry("place object", `{"location":"Louvre"}`, "Louvre"),
			Entry("route object falls back to origin", `{"from":"Munich","to":"Berlin"}`, "Munich"),
			Entry("place wins over origin", `{"location":"Gare de Lyon","from":"Paris"}`, "Gare de Lyon"),
			Entry("empty object", `{}`, ""),
			Entry("null", `null`, ""),
		)

		It("recognizes routes", func() {
			var l LocationValue
			Expect(json.Unmarshal([]byte(`{"from":"Munich","to":"Berlin"}`), &l)).To(Succeed())
			Expect(l.IsRoute()).To(BeTrue())
			Expect(l.To).To(Equal("Berlin"))
			Expect(LocationTextValue("Munich to Berlin").IsRoute()).To(BeFalse())
		})
	})

	It("re-encodes records in the shape they were decoded from", func() {
		input := `[{"activityTitle":"Hotel","activityType":"Accommodation","time":{"check_in":"15:00","check_out":"11:00"},"location":{"location":"Hilton"}},` +
			`{"activityTitle":"Train","time":"09:00","location":{"from":"Munich","to":"Berlin"}}]`
		records, err := DecodeActivities(input)
		Expect(err).NotTo(HaveOccurred())

		encoded, err := json.Marshal(records)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(encoded)).To(MatchJSON(`[
			{"activityTitle":"Hotel","activityType":"Accommodation","time":{"check_in":"15:00","check_out":"11:00"},"location":{"location":"Hilton"}},
			{"activityTitle":"Train","time":"09:00","location":{"from":"Munich","to":"Berlin"}}
		]`))
	})
})
