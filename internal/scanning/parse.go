package scanning

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedReply is returned when a model reply does not contain a JSON array of activities
var ErrMalformedReply = errors.New("malformed model reply")

// DecodeActivities parses a model reply as a JSON array of activity records.
// Markdown code fences and chatter around the array are ignored. The order of the
// array is preserved.
func DecodeActivities(reply string) ([]ActivityRecord, error) {
	text := stripCodeFence(reply)

	// Find the JSON array boundaries - first [ and last ]
	startIdx := strings.Index(text, "[")
	if startIdx == -1 {
		return nil, fmt.Errorf("%w: no JSON array found", ErrMalformedReply)
	}
	endIdx := strings.LastIndex(text, "]")
	if endIdx < startIdx {
		return nil, fmt.Errorf("%w: unterminated JSON array", ErrMalformedReply)
	}

	// An object wrapping the array is not what we asked for
	if strings.HasPrefix(strings.TrimSpace(text), "{") {
		return nil, fmt.Errorf("%w: reply is not a JSON array", ErrMalformedReply)
	}

	var records []ActivityRecord
	if err := json.Unmarshal([]byte(text[startIdx:endIdx+1]), &records); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling json: %v", ErrMalformedReply, err)
	}
	if records == nil {
		records = []ActivityRecord{}
	}

	for i := range records {
		records[i].Title = strings.TrimSpace(records[i].Title)
		records[i].Category = strings.TrimSpace(records[i].Category)
	}
	return records, nil
}

// stripCodeFence removes a surrounding ```json ... ``` block if present
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
