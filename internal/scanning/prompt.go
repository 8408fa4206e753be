package scanning

import (
	"context"
	"fmt"
	"strings"
)

// itineraryPrompt is the instruction contract shared by all completers
const itineraryPrompt = `You are an intelligent itinerary assistant.
You will be given raw OCR text extracted from a booking-related document such as a flight ticket, hotel booking, museum pass, bus/train reservation, or event confirmation.

Extract one or more structured activity objects in JSON format, using these fields:
- activityTitle: the activity type plus a specific detail if known (e.g. "Tour with Alternative Berlin Tours", "Entry to Louvre Museum")
- activityType: one of: %s
- date: the most relevant date (check-in, departure, or event date)
- time:
   - for transport or events: "HH:MM" or "HH:MM - HH:MM"
   - for Accommodation: { "check_in": "...", "check_out": "..." }
- location:
   - for transport (Flight, Train, Bus): { "from": "...", "to": "..." }
   - for all other types: { "location": "..." }
- price: optional (e.g. "EUR 42.99", "$56", "Free")
- notes: optional extra details (confirmation codes, booking numbers, etc.)

Rules:
- Never include "from/to" phrasing in the activityTitle
- Only use "from"/"to" for transport types (Flight, Bus, Train)
- For all other types, use "location"
- Always return a valid JSON array, even for a single activity
- Do not include any text before or after the JSON array

Example:
[
  {
    "activityTitle": "Bus Ride with FlixBus",
    "activityType": "Bus",
    "date": "2024-05-19",
    "time": "21:00",
    "location": { "from": "Vienna Erdberg", "to": "Budapest Nepliget" },
    "price": "EUR 31.99",
    "notes": "Confirmation: 83475623"
  }
]`

// Instructions returns the system instructions sent with every extraction request
func Instructions() string {
	quoted := make([]string, len(Categories))
	for i, c := range Categories {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return fmt.Sprintf(itineraryPrompt, strings.Join(quoted, ", "))
}

// UserText wraps the OCR text so the model can tell it apart from instructions
func UserText(rawText string) string {
	return "OCR TEXT:\n\"\"\"\n" + rawText + "\n\"\"\""
}

// Requester asks a language model to structure OCR text into activities
type Requester struct {
	completer Completer
}

// NewRequester creates a Requester backed by the given completer
func NewRequester(completer Completer) *Requester {
	return &Requester{completer: completer}
}

// Request sends the raw text with the instruction contract and returns the model's reply
func (r *Requester) Request(ctx context.Context, rawText string) (string, error) {
	reply, err := r.completer.Complete(ctx, Instructions(), UserText(rawText))
	if err != nil {
		return "", fmt.Errorf("requesting structured extraction: %w", err)
	}
	return reply, nil
}
