package research

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reduce applies one protocol message to a job and returns the new job
// state plus the log entries the message produced. It is a pure function
// of its inputs; the coordinator's event loop is the only caller, which
// keeps all state mutation on a single goroutine.
//
// Invariants enforced here:
//   - terminal states are absorbing: post-terminal messages append an
//     ignored_post_terminal entry and change nothing else
//   - progress_percentage never decreases and stays within [0, 100]
//   - completed implies progress 100 and a completed_at timestamp
//   - unknown message types are logged as protocol errors, never fatal
func Reduce(job Job, msg Msg, now time.Time) (Job, []Entry) {
	if job.Status.Terminal() {
		if msg.Type == MsgPong {
			return job, nil
		}
		return job, []Entry{{
			Timestamp: now,
			Kind:      EntryIgnoredPostTerminal,
			Message:   fmt.Sprintf("ignored %q message after terminal state %s", msg.Type, job.Status),
		}}
	}

	switch msg.Type {
	case MsgStarted:
		entry := Entry{Timestamp: now, Kind: EntryStarted, Message: "research started"}
		if job.Status == StatusPending {
			job.Status = StatusInProgress
			job.StartedAt = &now
		}
		return job, []Entry{entry}

	case MsgProgress:
		// A pending job that reports progress has implicitly started.
		if job.Status == StatusPending {
			job.Status = StatusInProgress
			job.StartedAt = &now
		}
		reported := msg.Percentage
		clamped := reported
		if clamped < 0 {
			clamped = 0
		}
		if clamped > 100 {
			clamped = 100
		}
		// Regressions are clamped to the stored value but still logged
		// as reported, so the log shows what the backend actually sent.
		if clamped > job.ProgressPercentage {
			job.ProgressPercentage = clamped
		}
		if msg.Step != "" {
			job.CurrentStep = msg.Step
		}
		text := msg.Message
		if text == "" {
			text = msg.Step
		}
		return job, []Entry{{
			Timestamp:  now,
			Kind:       EntryProgress,
			Message:    text,
			Percentage: &reported,
		}}

	case MsgStep:
		text := msg.Name
		if msg.StepStatus != "" {
			text = fmt.Sprintf("%s: %s", msg.Name, msg.StepStatus)
		}
		return job, []Entry{{Timestamp: now, Kind: EntryStep, Message: text}}

	case MsgCompleted:
		job.Status = StatusCompleted
		job.ProgressPercentage = 100
		job.CompletedAt = &now
		if job.StartedAt == nil {
			job.StartedAt = &now
		}
		if msg.hasResults() {
			job.Results = msg.Results
			job.ResultsAvailable = true
		}
		if len(msg.ResultsSummary) > 0 {
			var summary resultsSummary
			if err := json.Unmarshal(msg.ResultsSummary, &summary); err == nil {
				job.DestinationsCount = summary.DestinationsCount
			}
		}
		return job, []Entry{{Timestamp: now, Kind: EntryCompleted, Message: "research completed"}}

	case MsgFailed:
		job.Status = StatusFailed
		job.Error = failureText(msg)
		job.CompletedAt = &now
		return job, []Entry{{Timestamp: now, Kind: EntryFailed, Message: job.Error}}

	case MsgError:
		// Backend errors are advisory unless explicitly flagged fatal;
		// the job keeps running on a transient upstream hiccup.
		if msg.Fatal {
			job.Status = StatusFailed
			job.Error = failureText(msg)
			job.CompletedAt = &now
			return job, []Entry{{Timestamp: now, Kind: EntryFailed, Message: job.Error}}
		}
		return job, []Entry{{Timestamp: now, Kind: EntryError, Message: failureText(msg)}}

	case MsgConnected:
		return job, []Entry{{Timestamp: now, Kind: EntryConnected, Message: "live channel established"}}

	case MsgPong:
		return job, nil

	case msgMalformed:
		return job, []Entry{{
			Timestamp: now,
			Kind:      EntryProtocolError,
			Message:   msg.Message,
		}}

	default:
		return job, []Entry{{
			Timestamp: now,
			Kind:      EntryProtocolError,
			Message:   fmt.Sprintf("unknown message type %q", msg.Type),
		}}
	}
}

func failureText(msg Msg) string {
	if msg.Error != "" {
		return msg.Error
	}
	if msg.Message != "" {
		return msg.Message
	}
	return "research failed"
}
