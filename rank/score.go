package rank

// Scoring is additive over facets on top of a neutral base, capped at
// 100. A destination that already carries an overall_score keeps it;
// Score only fills the gap for payloads that omit one.
const (
	baseScore = 50.0
	maxScore  = 100.0

	idealTempLow  = 18.0
	idealTempHigh = 28.0
	okTempLow     = 10.0
	okTempHigh    = 35.0

	cheapFlightPrice    = 300.0
	moderateFlightPrice = 600.0
)

// Score returns the destination's overall score in [0, 100]
func Score(d Destination) float64 {
	if d.OverallScore != nil {
		s := *d.OverallScore
		if s < 0 {
			return 0
		}
		if s > maxScore {
			return maxScore
		}
		return s
	}

	score := baseScore
	score += weatherPoints(d.Data.Weather)
	score += visaPoints(d.Data.Visa)
	score += attractionPoints(d.Data.Attractions)
	score += affordabilityPoints(d.Data.Affordability)
	score += eventPoints(d.Data.Events)
	score += flightPoints(d.Data.Flights)

	if score > maxScore {
		return maxScore
	}
	return score
}

// weatherPoints awards up to 20 for temperatures in the ideal band
func weatherPoints(w *Weather) float64 {
	if w == nil {
		return 0
	}
	switch {
	case w.TemperatureC >= idealTempLow && w.TemperatureC <= idealTempHigh:
		return 20
	case w.TemperatureC >= okTempLow && w.TemperatureC <= okTempHigh:
		return 10
	default:
		return 0
	}
}

// visaPoints awards up to 15, favoring visa-free entry
func visaPoints(v *Visa) float64 {
	if v == nil {
		return 0
	}
	switch {
	case !v.VisaRequired:
		return 15
	case v.EvisaAvailable:
		return 10
	case v.VisaOnArrival:
		return 8
	default:
		return 0
	}
}

// attractionPoints awards 2 per attraction up to 20
func attractionPoints(attractions []Attraction) float64 {
	points := float64(len(attractions)) * 2
	if points > 20 {
		return 20
	}
	return points
}

// affordabilityPoints awards up to 15 for fitting the budget
func affordabilityPoints(a *Affordability) float64 {
	if a == nil {
		return 0
	}
	switch a.BudgetFit {
	case "within_budget":
		return 15
	case "slightly_over":
		return 8
	default:
		return 0
	}
}

// eventPoints awards 2 per event up to 10
func eventPoints(events []Event) float64 {
	points := float64(len(events)) * 2
	if points > 10 {
		return 10
	}
	return points
}

// flightPoints awards up to 10 based on the cheapest fare found
func flightPoints(flights []Flight) float64 {
	if len(flights) == 0 {
		return 0
	}
	cheapest := flights[0].Price
	for _, f := range flights[1:] {
		if f.Price < cheapest {
			cheapest = f.Price
		}
	}
	switch {
	case cheapest < cheapFlightPrice:
		return 10
	case cheapest < moderateFlightPrice:
		return 5
	default:
		return 0
	}
}
