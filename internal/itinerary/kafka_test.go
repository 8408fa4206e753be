package itinerary

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DecodeObjectNotification", func() {
	It("should turn created objects into storage events", func() {
		events, err := DecodeObjectNotification([]byte(`{
			"EventName": "s3:ObjectCreated:Put",
			"Key": "uploads/abc_rome+ticket.png",
			"Records": [{
				"eventName": "s3:ObjectCreated:Put",
				"s3": {
					"bucket": {"name": "uploads"},
					"object": {"key": "abc_rome+ticket%281%29.png", "contentType": "image/png"}
				}
			}]
		}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(ConsistOf(StorageEvent{
			Bucket:      "uploads",
			ObjectPath:  "abc_rome ticket(1).png",
			ContentType: "image/png",
		}))
	})

	It("should ignore other event types", func() {
		events, err := DecodeObjectNotification([]byte(`{
			"Records": [{
				"eventName": "s3:ObjectRemoved:Delete",
				"s3": {"bucket": {"name": "uploads"}, "object": {"key": "a.png"}}
			}]
		}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(BeEmpty())
	})

	It("should fall back to the top level event name", func() {
		events, err := DecodeObjectNotification([]byte(`{
			"EventName": "s3:ObjectCreated:Put",
			"Records": [{"s3": {"bucket": {"name": "uploads"}, "object": {"key": "a.png", "contentType": "image/png"}}}]
		}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))
	})

	It("should reject malformed messages", func() {
		_, err := DecodeObjectNotification([]byte(`not json`))
		Expect(err).To(MatchError(ContainSubstring("decoding notification")))
	})

	It("should reject undecodable keys", func() {
		_, err := DecodeObjectNotification([]byte(`{
			"Records": [{"eventName": "s3:ObjectCreated:Put", "s3": {"object": {"key": "bad%zzkey"}}}]
		}`))
		Expect(err).To(MatchError(ContainSubstring("decoding object key")))
	})
})
