// Package rank turns a completed research payload into a deterministic
// comparison table and a ranked recommendation list. Aggregation is a
// pure function of the payload: re-running it over stored results always
// reproduces the same ordering.
package rank

import (
	"encoding/json"

	"github.com/voyagent/voyagent/errors"
)

// Payload is the raw results document produced by a completed job
type Payload struct {
	Destinations []Destination `json:"destinations"`
}

// Destination is one researched destination with its facet bundle.
// A destination that failed research carries an error instead of data.
type Destination struct {
	Name         string   `json:"name"`
	Status       string   `json:"status,omitempty"`
	Error        string   `json:"error,omitempty"`
	OverallScore *float64 `json:"overall_score,omitempty"`
	Data         Facets   `json:"data,omitempty"`
}

// Errored reports whether research for this destination failed
func (d Destination) Errored() bool {
	switch d.Status {
	case "error", "failed":
		return true
	}
	return d.Error != ""
}

// Facets is the per-destination research bundle. Every facet is
// optional; scoring treats a missing facet as contributing nothing.
type Facets struct {
	Weather       *Weather       `json:"weather,omitempty"`
	Visa          *Visa          `json:"visa,omitempty"`
	Affordability *Affordability `json:"affordability,omitempty"`
	Attractions   []Attraction   `json:"attractions,omitempty"`
	Events        []Event        `json:"events,omitempty"`
	Flights       []Flight       `json:"flights,omitempty"`
	Hotels        []Hotel        `json:"hotels,omitempty"`
}

// Weather holds forecast conditions for the travel window
type Weather struct {
	TemperatureC float64 `json:"temperature_c"`
	Condition    string  `json:"condition,omitempty"`
}

// Visa holds entry requirements for the traveler's passport
type Visa struct {
	VisaRequired   bool `json:"visa_required"`
	EvisaAvailable bool `json:"evisa_available,omitempty"`
	VisaOnArrival  bool `json:"visa_on_arrival,omitempty"`
}

// Affordability holds the cost estimate against the traveler's budget
type Affordability struct {
	BudgetFit          string          `json:"budget_fit,omitempty"` // within_budget, slightly_over, over_budget
	EstimatedTotalCost json.RawMessage `json:"estimated_total_cost,omitempty"`
}

// Attraction is one point of interest
type Attraction struct {
	Name        string `json:"name"`
	KidFriendly bool   `json:"kid_friendly,omitempty"`
}

// Event is one event during the travel window
type Event struct {
	Name string `json:"name"`
	Date string `json:"date,omitempty"`
}

// Flight is one flight option from the origin
type Flight struct {
	Price float64 `json:"price"`
}

// Hotel is one accommodation option
type Hotel struct {
	PricePerNight float64 `json:"price_per_night"`
}

// ParsePayload decodes a raw results document. Both the full object
// form and a bare destination array are accepted; the live channel
// sometimes delivers the latter.
func ParsePayload(raw json.RawMessage) (*Payload, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty results payload")
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Destinations != nil {
		return &payload, nil
	}

	var dests []Destination
	if err := json.Unmarshal(raw, &dests); err != nil {
		return nil, errors.Wrap(err, "results payload is neither a results object nor a destination list")
	}
	return &Payload{Destinations: dests}, nil
}
