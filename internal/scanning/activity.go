package scanning

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Categories the model is allowed to assign
const (
	CategoryFlight        = "Flight"
	CategoryTrain         = "Train"
	CategoryBus           = "Bus"
	CategoryAccommodation = "Accommodation"
	CategoryTour          = "Tour"
	CategoryMuseum        = "Museum"
	CategoryRestaurant    = "Restaurant"
	CategoryOther         = "Other"
)

// Buckets only the classifier produces
const (
	CategoryTransport = "Transport"
	CategoryActivity  = "Activity"
)

// Categories lists the closed enumeration offered to the model, in prompt order
var Categories = []string{
	CategoryFlight,
	CategoryTrain,
	CategoryBus,
	CategoryAccommodation,
	CategoryTour,
	CategoryMuseum,
	CategoryRestaurant,
	CategoryOther,
}

// ActivityRecord is one itinerary item decoded from a model reply
type ActivityRecord struct {
	Title    string        `json:"activityTitle"`
	Category string        `json:"activityType,omitempty"`
	Date     string        `json:"date,omitempty"`
	Time     TimeValue     `json:"time"`
	Location LocationValue `json:"location"`
	Price    string        `json:"price,omitempty"`
	Notes    string        `json:"notes,omitempty"`
}

// activityWire accepts the field names the model tends to use, including aliases
type activityWire struct {
	ActivityTitle json.RawMessage `json:"activityTitle"`
	Title         json.RawMessage `json:"title"`
	ActivityType  json.RawMessage `json:"activityType"`
	Category      json.RawMessage `json:"category"`
	Date          json.RawMessage `json:"date"`
	Time          TimeValue       `json:"time"`
	Location      LocationValue   `json:"location"`
	Price         json.RawMessage `json:"price"`
	Notes         json.RawMessage `json:"notes"`
}

// UnmarshalJSON decodes a record, tolerating aliases and numbers where text is expected
func (a *ActivityRecord) UnmarshalJSON(data []byte) error {
	var w activityWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	title := flexString(w.ActivityTitle)
	if title == "" {
		title = flexString(w.Title)
	}
	category := flexString(w.ActivityType)
	if category == "" {
		category = flexString(w.Category)
	}

	*a = ActivityRecord{
		Title:    title,
		Category: category,
		Date:     flexString(w.Date),
		Time:     w.Time,
		Location: w.Location,
		Price:    flexString(w.Price),
		Notes:    flexString(w.Notes),
	}
	return nil
}

// flexString reads a JSON scalar as text. Strings are unquoted, null is empty and anything
// else is kept as its literal JSON.
func flexString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// TimeValue is either a single time string or a check-in/check-out pair
type TimeValue struct {
	Text     string
	CheckIn  string
	CheckOut string
	pair     bool
}

type timePair struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
}

// TimeText builds a plain time value
func TimeText(s string) TimeValue {
	return TimeValue{Text: s}
}

// TimePair builds a check-in/check-out time value
func TimePair(checkIn, checkOut string) TimeValue {
	return TimeValue{CheckIn: checkIn, CheckOut: checkOut, pair: true}
}

// IsPair reports whether the value was an object rather than a string
func (t TimeValue) IsPair() bool {
	return t.pair
}

// String renders the value for display. Pairs are rendered as their JSON object.
func (t TimeValue) String() string {
	if !t.pair {
		return t.Text
	}
	b, err := json.Marshal(timePair{CheckIn: t.CheckIn, CheckOut: t.CheckOut})
	if err != nil {
		return ""
	}
	return string(b)
}

// UnmarshalJSON accepts a string, an object or any other scalar
func (t *TimeValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*t = TimeValue{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '{':
		var p timePair
		if err := json.Unmarshal(data, &p); err != nil {
			// any object counts as a pair even if its fields are not strings
			var generic map[string]any
			if gerr := json.Unmarshal(data, &generic); gerr != nil {
				return fmt.Errorf("decoding time object: %w", err)
			}
			p = timePair{
				CheckIn:  fmt.Sprint(valueOrEmpty(generic["check_in"])),
				CheckOut: fmt.Sprint(valueOrEmpty(generic["check_out"])),
			}
		}
		*t = TimePair(p.CheckIn, p.CheckOut)
	default:
		t.Text = flexString(data)
	}
	return nil
}

// MarshalJSON writes the value back in the shape it was read
func (t TimeValue) MarshalJSON() ([]byte, error) {
	if t.pair {
		return json.Marshal(timePair{CheckIn: t.CheckIn, CheckOut: t.CheckOut})
	}
	if t.Text == "" {
		return []byte("null"), nil
	}
	return json.Marshal(t.Text)
}

func valueOrEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}

// LocationShape identifies which form a LocationValue was decoded from
type LocationShape int

const (
	LocationNone LocationShape = iota
	LocationText
	LocationObject
)

// LocationValue is either a bare string, a {location} object or a {from, to} object
type LocationValue struct {
	Text  string
	Place string
	From  string
	To    string
	shape LocationShape
}

type locationObject struct {
	Location string `json:"location,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}

// LocationTextValue builds a bare string location
func LocationTextValue(s string) LocationValue {
	return LocationValue{Text: s, shape: LocationText}
}

// LocationPlace builds a {location} object
func LocationPlace(place string) LocationValue {
	return LocationValue{Place: place, shape: LocationObject}
}

// LocationRoute builds a {from, to} object
func LocationRoute(from, to string) LocationValue {
	return LocationValue{From: from, To: to, shape: LocationObject}
}

// Shape returns the decoded form
func (l LocationValue) Shape() LocationShape {
	return l.shape
}

// IsRoute reports whether the location carries an origin or destination
func (l LocationValue) IsRoute() bool {
	return l.shape == LocationObject && (l.From != "" || l.To != "")
}

// Display picks a single location string: the place, then the origin, then the bare string
func (l LocationValue) Display() string {
	if l.shape == LocationObject {
		if l.Place != "" {
			return l.Place
		}
		return l.From
	}
	return l.Text
}

// UnmarshalJSON accepts a string or an object with location/from/to keys
func (l *LocationValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*l = LocationValue{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] != '{' {
		*l = LocationTextValue(flexString(data))
		return nil
	}

	var generic map[string]json.RawMessage
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("decoding location object: %w", err)
	}
	*l = LocationValue{
		Place: flexString(generic["location"]),
		From:  flexString(generic["from"]),
		To:    flexString(generic["to"]),
		shape: LocationObject,
	}
	return nil
}

// MarshalJSON writes the value back in the shape it was read
func (l LocationValue) MarshalJSON() ([]byte, error) {
	switch l.shape {
	case LocationText:
		return json.Marshal(l.Text)
	case LocationObject:
		return json.Marshal(locationObject{Location: l.Place, From: l.From, To: l.To})
	default:
		return []byte("null"), nil
	}
}
