// Package research implements the long-running travel research job
// coordinator: job submission, live progress tracking over a WebSocket
// channel with reconnect and fallback polling, and in-memory job state.
package research

import (
	"encoding/json"
	"time"

	"github.com/voyagent/voyagent/errors"
)

const dateFormat = "2006-01-02"

// Status represents the current state of a research job
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal returns true for states with no outgoing transitions
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsValidStatus returns true if the status string is a valid Status
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Job is the tracked state of one research job. It is owned by the
// coordinator's event loop; external readers only ever see copies.
type Job struct {
	ID                 string          `json:"job_id"`
	Status             Status          `json:"status"`
	ProgressPercentage int             `json:"progress_percentage"`
	CurrentStep        string          `json:"current_step"`
	CreatedAt          time.Time       `json:"created_at"`
	StartedAt          *time.Time      `json:"started_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	DestinationsCount  int             `json:"destinations_count"`
	ResultsAvailable   bool            `json:"results_available"`
	Error              string          `json:"error,omitempty"`
	Results            json.RawMessage `json:"-"`
}

// Clone returns a copy safe to hand to external readers. The raw results
// payload is shared read-only; everything else is value-copied.
func (j Job) Clone() Job {
	c := j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

// Preferences is the immutable questionnaire input for one job submission.
// Field names follow the backend's wire format.
type Preferences struct {
	Origin             string   `json:"origin"`
	Destinations       []string `json:"destinations,omitempty"`
	TravelStart        string   `json:"travel_start,omitempty"` // YYYY-MM-DD
	TravelEnd          string   `json:"travel_end,omitempty"`   // YYYY-MM-DD
	BudgetLevel        string   `json:"budget_level,omitempty"` // low, moderate, high, luxury
	BudgetAmount       float64  `json:"budget_amount,omitempty"`
	Interests          []string `json:"interests,omitempty"`
	TravelingWith      string   `json:"traveling_with,omitempty"` // solo, couple, family, group
	PassportCountry    string   `json:"passport_country,omitempty"`
	VisaPreference     string   `json:"visa_preference,omitempty"`    // visa_free, visa_on_arrival, evisa_ok
	WeatherPreference  string   `json:"weather_preference,omitempty"` // hot, warm, mild, cold, snow
	MaxFlightDuration  int      `json:"max_flight_duration,omitempty"`
	HasKids            bool     `json:"has_kids,omitempty"`
	KidsAges           []string `json:"kids_ages,omitempty"`
	DietaryRestriction []string `json:"dietary_restrictions,omitempty"`
	AccessibilityNeeds []string `json:"accessibility_needs,omitempty"`
	PacePreference     string   `json:"pace_preference,omitempty"` // relaxed, moderate, busy
	TripType           string   `json:"trip_type,omitempty"`
	Notes              string   `json:"notes,omitempty"`
}

// Validate checks the required preference fields. It runs synchronously
// before any network call; a failure here never enters the job lifecycle.
func (p Preferences) Validate() error {
	if p.Origin == "" {
		return errors.NewValidationError("origin is required")
	}
	if p.TravelStart == "" || p.TravelEnd == "" {
		return errors.NewValidationError("travel_start and travel_end are required")
	}

	start, err := time.Parse(dateFormat, p.TravelStart)
	if err != nil {
		return errors.NewValidationError("travel_start %q is not a valid YYYY-MM-DD date", p.TravelStart)
	}
	end, err := time.Parse(dateFormat, p.TravelEnd)
	if err != nil {
		return errors.NewValidationError("travel_end %q is not a valid YYYY-MM-DD date", p.TravelEnd)
	}
	if end.Before(start) {
		return errors.NewValidationError("travel_end %s is before travel_start %s", p.TravelEnd, p.TravelStart)
	}

	return nil
}
