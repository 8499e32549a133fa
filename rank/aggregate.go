package rank

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/voyagent/voyagent/research"
)

// DefaultTopN is how many recommendations Aggregate produces when the
// caller does not ask for a specific count.
const DefaultTopN = 5

// ComparisonRow is one destination in the comparison table
type ComparisonRow struct {
	Name             string   `json:"name"`
	OverallScore     float64  `json:"overall_score"`
	TemperatureC     *float64 `json:"temperature_c,omitempty"`
	VisaRequired     *bool    `json:"visa_required,omitempty"`
	AttractionsCount int      `json:"attractions_count"`
	BudgetFit        string   `json:"budget_fit,omitempty"`
	EventsCount      int      `json:"events_count"`
}

// DestinationError records a destination whose research failed. These
// are excluded from scoring and ranking but kept for display.
type DestinationError struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Highlights are the headline facts pulled from a destination's facets
type Highlights struct {
	TopAttractions []string `json:"top_attractions,omitempty"`
	TopEvents      []string `json:"top_events,omitempty"`
	FlightFrom     *float64 `json:"flight_from,omitempty"`
	HotelFrom      *float64 `json:"hotel_from,omitempty"`
}

// Recommendation is one ranked entry with its supporting reasons
type Recommendation struct {
	Rank          int             `json:"rank"`
	Destination   string          `json:"destination"`
	Score         float64         `json:"score"`
	Reasons       []string        `json:"reasons"`
	Highlights    Highlights      `json:"highlights"`
	EstimatedCost json.RawMessage `json:"estimated_cost,omitempty"`
}

// Report is the full aggregation output for a completed job
type Report struct {
	Comparison      []ComparisonRow    `json:"comparison"`
	Errors          []DestinationError `json:"errors,omitempty"`
	Recommendations []Recommendation   `json:"recommendations"`
}

// Aggregate builds the comparison table and top-N recommendations from
// a raw results payload. Ordering is overall score descending with ties
// broken by name ascending (byte-wise compare, locale-independent), so
// the output is fully determined by the payload.
func Aggregate(raw json.RawMessage, prefs research.Preferences, topN int) (*Report, error) {
	payload, err := ParsePayload(raw)
	if err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = DefaultTopN
	}

	type scored struct {
		dest  Destination
		score float64
	}

	report := &Report{}
	var ranked []scored
	for _, d := range payload.Destinations {
		if d.Errored() {
			report.Errors = append(report.Errors, DestinationError{
				Name:  d.Name,
				Error: errorText(d),
			})
			continue
		}
		ranked = append(ranked, scored{dest: d, score: Score(d)})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].dest.Name < ranked[j].dest.Name
	})

	for _, s := range ranked {
		report.Comparison = append(report.Comparison, comparisonRow(s.dest, s.score))
	}

	for i, s := range ranked {
		if i >= topN {
			break
		}
		report.Recommendations = append(report.Recommendations, Recommendation{
			Rank:          i + 1,
			Destination:   s.dest.Name,
			Score:         s.score,
			Reasons:       reasons(s.dest, s.score, prefs),
			Highlights:    highlights(s.dest.Data),
			EstimatedCost: estimatedCost(s.dest.Data),
		})
	}

	return report, nil
}

func errorText(d Destination) string {
	if d.Error != "" {
		return d.Error
	}
	return "research failed"
}

func comparisonRow(d Destination, score float64) ComparisonRow {
	row := ComparisonRow{
		Name:             d.Name,
		OverallScore:     score,
		AttractionsCount: len(d.Data.Attractions),
		EventsCount:      len(d.Data.Events),
	}
	if d.Data.Weather != nil {
		t := d.Data.Weather.TemperatureC
		row.TemperatureC = &t
	}
	if d.Data.Visa != nil {
		v := d.Data.Visa.VisaRequired
		row.VisaRequired = &v
	}
	if d.Data.Affordability != nil {
		row.BudgetFit = d.Data.Affordability.BudgetFit
	}
	return row
}

// reasons derives human-readable justifications from rule thresholds
// over the destination's facets and the traveler's questionnaire.
func reasons(d Destination, score float64, prefs research.Preferences) []string {
	var out []string
	data := d.Data

	if score > 80 {
		out = append(out, "Excellent overall match for your preferences")
	}
	if data.Visa != nil && !data.Visa.VisaRequired {
		out = append(out, "No visa required")
	}
	if data.Weather != nil {
		t := data.Weather.TemperatureC
		if t >= 20 && t <= 30 {
			out = append(out, fmt.Sprintf("Great weather (%.0f°C)", t))
		}
	}
	if data.Affordability != nil && data.Affordability.BudgetFit == "within_budget" {
		out = append(out, "Fits your budget")
	}
	if n := len(data.Events); n > 0 {
		out = append(out, fmt.Sprintf("%d events during your stay", n))
	}

	if prefs.TravelingWith == "family" && prefs.HasKids {
		kidFriendly := 0
		for _, a := range data.Attractions {
			if a.KidFriendly {
				kidFriendly++
			}
		}
		if kidFriendly > 0 {
			out = append(out, fmt.Sprintf("%d kid-friendly attractions found", kidFriendly))
		}
	}
	if restrictions := activeConstraints(prefs.DietaryRestriction); len(restrictions) > 0 {
		out = append(out, fmt.Sprintf("Accommodates %s dietary needs", strings.Join(restrictions, ", ")))
	}
	switch prefs.PacePreference {
	case "relaxed":
		out = append(out, "Ideal for a relaxed, unhurried pace")
	case "busy":
		out = append(out, "Packed with activities to keep you busy")
	}

	return out
}

// activeConstraints filters out empty and "none" entries
func activeConstraints(values []string) []string {
	var out []string
	for _, v := range values {
		if v == "" || strings.EqualFold(v, "none") {
			continue
		}
		out = append(out, v)
	}
	return out
}

func highlights(data Facets) Highlights {
	var h Highlights

	for i, a := range data.Attractions {
		if i >= 3 {
			break
		}
		h.TopAttractions = append(h.TopAttractions, a.Name)
	}
	for i, e := range data.Events {
		if i >= 2 {
			break
		}
		h.TopEvents = append(h.TopEvents, e.Name)
	}
	if len(data.Flights) > 0 {
		cheapest := data.Flights[0].Price
		for _, f := range data.Flights[1:] {
			if f.Price < cheapest {
				cheapest = f.Price
			}
		}
		h.FlightFrom = &cheapest
	}
	if len(data.Hotels) > 0 {
		cheapest := data.Hotels[0].PricePerNight
		for _, hotel := range data.Hotels[1:] {
			if hotel.PricePerNight < cheapest {
				cheapest = hotel.PricePerNight
			}
		}
		h.HotelFrom = &cheapest
	}

	return h
}

func estimatedCost(data Facets) json.RawMessage {
	if data.Affordability == nil {
		return nil
	}
	return data.Affordability.EstimatedTotalCost
}
