package research

import (
	"encoding/json"
	"testing"
	"time"
)

var reduceTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func pendingJob() Job {
	return Job{ID: "J1", Status: StatusPending, CreatedAt: reduceTime}
}

func TestReduce_StartedMovesPendingToInProgress(t *testing.T) {
	job, entries := Reduce(pendingJob(), Msg{Type: MsgStarted}, reduceTime)

	if job.Status != StatusInProgress {
		t.Fatalf("expected in_progress, got %s", job.Status)
	}
	if job.StartedAt == nil || !job.StartedAt.Equal(reduceTime) {
		t.Fatalf("expected started_at %v, got %v", reduceTime, job.StartedAt)
	}
	if len(entries) != 1 || entries[0].Kind != EntryStarted {
		t.Fatalf("expected one started entry, got %+v", entries)
	}
}

func TestReduce_DuplicateStartedIsIdempotent(t *testing.T) {
	job, _ := Reduce(pendingJob(), Msg{Type: MsgStarted}, reduceTime)
	startedAt := *job.StartedAt

	later := reduceTime.Add(time.Minute)
	job, entries := Reduce(job, Msg{Type: MsgStarted}, later)

	if job.Status != StatusInProgress {
		t.Fatalf("expected in_progress, got %s", job.Status)
	}
	if !job.StartedAt.Equal(startedAt) {
		t.Fatalf("duplicate started must not move started_at: %v != %v", job.StartedAt, startedAt)
	}
	if len(entries) != 1 {
		t.Fatalf("duplicate started should still log, got %+v", entries)
	}
}

func TestReduce_MonotonicProgress(t *testing.T) {
	// Any order of percentages, including duplicates and regressions,
	// must land on the clamped maximum.
	sequences := []struct {
		name        string
		percentages []int
		want        int
	}{
		{"in order", []int{10, 25, 60}, 60},
		{"regression", []int{25, 10}, 25},
		{"duplicates", []int{40, 40, 40}, 40},
		{"over range", []int{150}, 100},
		{"under range", []int{-5, 30}, 30},
	}

	for _, tc := range sequences {
		t.Run(tc.name, func(t *testing.T) {
			job := pendingJob()
			for _, p := range tc.percentages {
				job, _ = Reduce(job, Msg{Type: MsgProgress, Percentage: p, Step: "weather"}, reduceTime)
			}
			if job.ProgressPercentage != tc.want {
				t.Fatalf("expected progress %d, got %d", tc.want, job.ProgressPercentage)
			}
		})
	}
}

func TestReduce_ProgressRegressionStillLogged(t *testing.T) {
	job, _ := Reduce(pendingJob(), Msg{Type: MsgProgress, Percentage: 25, Step: "weather"}, reduceTime)
	job, entries := Reduce(job, Msg{Type: MsgProgress, Percentage: 10, Step: "weather"}, reduceTime)

	if job.ProgressPercentage != 25 {
		t.Fatalf("expected clamped progress 25, got %d", job.ProgressPercentage)
	}
	if len(entries) != 1 || entries[0].Percentage == nil || *entries[0].Percentage != 10 {
		t.Fatalf("log must carry the reported percentage, got %+v", entries)
	}
}

func TestReduce_ProgressOnPendingImplicitlyStarts(t *testing.T) {
	job, _ := Reduce(pendingJob(), Msg{Type: MsgProgress, Percentage: 5}, reduceTime)

	if job.Status != StatusInProgress {
		t.Fatalf("expected in_progress, got %s", job.Status)
	}
	if job.StartedAt == nil {
		t.Fatal("expected started_at to be set")
	}
}

func TestReduce_StepIsLogOnly(t *testing.T) {
	job, _ := Reduce(pendingJob(), Msg{Type: MsgProgress, Percentage: 30}, reduceTime)
	before := job

	job, entries := Reduce(job, Msg{Type: MsgStep, Name: "visa", StepStatus: "done"}, reduceTime)

	if job.ProgressPercentage != before.ProgressPercentage || job.Status != before.Status {
		t.Fatalf("step must not alter state: %+v", job)
	}
	if len(entries) != 1 || entries[0].Kind != EntryStep {
		t.Fatalf("expected one step entry, got %+v", entries)
	}
}

func TestReduce_CompletedWithInlineResults(t *testing.T) {
	results := json.RawMessage(`[{"name":"Paris"}]`)
	job, _ := Reduce(pendingJob(), Msg{Type: MsgStarted}, reduceTime)
	job, entries := Reduce(job, Msg{
		Type:           MsgCompleted,
		Results:        results,
		ResultsSummary: json.RawMessage(`{"destinations_count":1}`),
	}, reduceTime)

	if job.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", job.Status)
	}
	if job.ProgressPercentage != 100 {
		t.Fatalf("completed must force progress 100, got %d", job.ProgressPercentage)
	}
	if job.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}
	if !job.ResultsAvailable || string(job.Results) != string(results) {
		t.Fatalf("expected inline results recorded, got available=%v results=%s", job.ResultsAvailable, job.Results)
	}
	if job.DestinationsCount != 1 {
		t.Fatalf("expected destinations_count 1, got %d", job.DestinationsCount)
	}
	if len(entries) != 1 || entries[0].Kind != EntryCompleted {
		t.Fatalf("expected one completed entry, got %+v", entries)
	}
}

func TestReduce_CompletedWithoutResultsLeavesAvailabilityFalse(t *testing.T) {
	job, _ := Reduce(pendingJob(), Msg{Type: MsgCompleted}, reduceTime)

	if job.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", job.Status)
	}
	if job.ResultsAvailable {
		t.Fatal("results_available requires a non-null payload")
	}
	if job.StartedAt == nil {
		t.Fatal("degenerate completion should still record started_at")
	}
}

func TestReduce_FailedIsTerminal(t *testing.T) {
	job, entries := Reduce(pendingJob(), Msg{Type: MsgFailed, Error: "upstream exploded"}, reduceTime)

	if job.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.Error != "upstream exploded" {
		t.Fatalf("expected server error recorded, got %q", job.Error)
	}
	if job.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}
	if len(entries) != 1 || entries[0].Kind != EntryFailed {
		t.Fatalf("expected one failed entry, got %+v", entries)
	}
}

func TestReduce_ErrorIsAdvisoryUnlessFatal(t *testing.T) {
	job, _ := Reduce(pendingJob(), Msg{Type: MsgStarted}, reduceTime)

	job, entries := Reduce(job, Msg{Type: MsgError, Error: "weather provider timeout"}, reduceTime)
	if job.Status != StatusInProgress {
		t.Fatalf("non-fatal error must not fail the job, got %s", job.Status)
	}
	if len(entries) != 1 || entries[0].Kind != EntryError {
		t.Fatalf("expected one error entry, got %+v", entries)
	}

	job, _ = Reduce(job, Msg{Type: MsgError, Error: "backend gone", Fatal: true}, reduceTime)
	if job.Status != StatusFailed {
		t.Fatalf("fatal error must fail the job, got %s", job.Status)
	}
}

func TestReduce_UnknownTypeIsProtocolError(t *testing.T) {
	before := pendingJob()
	job, entries := Reduce(before, Msg{Type: "telemetry"}, reduceTime)

	if job.Status != before.Status || job.ProgressPercentage != before.ProgressPercentage {
		t.Fatalf("unknown message must not alter state: %+v", job)
	}
	if len(entries) != 1 || entries[0].Kind != EntryProtocolError {
		t.Fatalf("expected one protocol_error entry, got %+v", entries)
	}
}

func TestReduce_TerminalStateIsAbsorbing(t *testing.T) {
	job, _ := Reduce(pendingJob(), Msg{Type: MsgCompleted, Results: json.RawMessage(`[]`)}, reduceTime)
	terminal := job

	messages := []Msg{
		{Type: MsgStarted},
		{Type: MsgProgress, Percentage: 10},
		{Type: MsgFailed, Error: "late failure"},
		{Type: MsgError, Error: "late error", Fatal: true},
		{Type: "telemetry"},
	}

	for _, msg := range messages {
		var entries []Entry
		job, entries = Reduce(job, msg, reduceTime.Add(time.Hour))

		if job.Status != terminal.Status {
			t.Fatalf("message %q changed terminal status to %s", msg.Type, job.Status)
		}
		if job.ProgressPercentage != terminal.ProgressPercentage {
			t.Fatalf("message %q changed progress", msg.Type)
		}
		if !job.CompletedAt.Equal(*terminal.CompletedAt) {
			t.Fatalf("message %q changed completed_at", msg.Type)
		}
		if len(entries) != 1 || entries[0].Kind != EntryIgnoredPostTerminal {
			t.Fatalf("message %q should append exactly one ignored_post_terminal entry, got %+v", msg.Type, entries)
		}
	}
}

func TestReduce_PongIsSilent(t *testing.T) {
	job, entries := Reduce(pendingJob(), Msg{Type: MsgPong, Timestamp: 123}, reduceTime)

	if job.Status != StatusPending {
		t.Fatalf("pong must not alter state, got %s", job.Status)
	}
	if len(entries) != 0 {
		t.Fatalf("pong should not log, got %+v", entries)
	}
}
