package scanning

import "strings"

var (
	transportKeywords     = []string{"bus", "train", "flight", "plane", "car"}
	accommodationKeywords = []string{"hostel", "hotel", "bnb", "apartment", "inn"}
	restaurantKeywords    = []string{"restaurant", "bar", "dinner", "lunch"}
)

// Classify infers a category for a record from its title and time shape.
// Rules are checked in order and the first match wins; it never returns an empty string.
func Classify(record ActivityRecord) string {
	title := strings.ToLower(record.Title)

	switch {
	case containsAny(title, transportKeywords):
		return CategoryTransport
	case containsAny(title, accommodationKeywords) || record.Time.IsPair():
		return CategoryAccommodation
	case containsAny(title, restaurantKeywords):
		return CategoryRestaurant
	default:
		return CategoryActivity
	}
}

// ClassifyAll fills in the category of every record that lacks one
func ClassifyAll(records []ActivityRecord) []ActivityRecord {
	for i := range records {
		if records[i].Category == "" {
			records[i].Category = Classify(records[i])
		}
	}
	return records
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
