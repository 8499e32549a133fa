package research

import (
	"encoding/json"

	"github.com/voyagent/voyagent/errors"
)

// Live-channel protocol message types.
//
// The backend pushes JSON frames with a "type" discriminator over a
// WebSocket scoped to one job id. The reducer matches exhaustively on
// these; an unrecognized type is an explicit protocol-error case, not a
// crash.
type MsgType string

const (
	// MsgStarted signals the backend began executing the job.
	MsgStarted MsgType = "started"

	// MsgProgress carries a percentage and the current step label.
	MsgProgress MsgType = "progress"

	// MsgStep reports a named sub-step finishing or starting. Log-only;
	// it never moves the percentage.
	MsgStep MsgType = "step"

	// MsgCompleted is terminal success. May carry the full results
	// payload inline, or just a summary (results fetched over REST).
	MsgCompleted MsgType = "completed"

	// MsgFailed is terminal failure reported by the backend.
	MsgFailed MsgType = "failed"

	// MsgError reports a non-fatal backend error unless flagged fatal.
	MsgError MsgType = "error"

	// MsgConnected is the backend's greeting frame after the channel
	// opens. Log-only.
	MsgConnected MsgType = "connected"

	// MsgPong answers a client ping. Ignored by the reducer.
	MsgPong MsgType = "pong"

	// msgMalformed is synthesized by the connection manager for frames
	// that failed to parse, so the activity log still records them.
	msgMalformed MsgType = "malformed"
)

// Msg is the envelope for all live-channel messages.
type Msg struct {
	Type  MsgType `json:"type"`
	JobID string  `json:"job_id,omitempty"`

	// Progress
	Percentage int    `json:"percentage,omitempty"`
	Step       string `json:"step,omitempty"`
	Message    string `json:"message,omitempty"`

	// Step
	Name       string `json:"name,omitempty"`
	StepStatus string `json:"status,omitempty"`

	// Completed
	Results        json.RawMessage `json:"results,omitempty"`
	ResultsSummary json.RawMessage `json:"results_summary,omitempty"`

	// Failed / Error
	Error string `json:"error,omitempty"`
	Fatal bool   `json:"fatal,omitempty"`

	// Pong correlation
	Timestamp float64 `json:"timestamp,omitempty"`
}

// resultsSummary is the partial shape of the completed frame's summary.
type resultsSummary struct {
	DestinationsCount int `json:"destinations_count"`
}

// ParseMsg decodes one raw frame. A frame that is not a JSON object with
// a "type" field is a protocol error; the caller logs it and drops it.
func ParseMsg(data []byte) (Msg, error) {
	var msg Msg
	if err := json.Unmarshal(data, &msg); err != nil {
		return Msg{}, errors.Wrap(errors.ErrProtocol, err.Error())
	}
	if msg.Type == "" {
		return Msg{}, errors.Wrap(errors.ErrProtocol, "frame missing type discriminator")
	}
	return msg, nil
}

// hasResults reports whether the message carries a usable inline results
// payload (present and not JSON null).
func (m Msg) hasResults() bool {
	return len(m.Results) > 0 && string(m.Results) != "null"
}
