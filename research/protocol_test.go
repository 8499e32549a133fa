package research

import (
	"testing"

	"github.com/voyagent/voyagent/errors"
)

func TestParseMsg(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		wantType MsgType
		wantErr  bool
	}{
		{
			name:     "progress frame",
			frame:    `{"type":"progress","job_id":"J1","percentage":25,"step":"weather"}`,
			wantType: MsgProgress,
		},
		{
			name:     "completed with results",
			frame:    `{"type":"completed","results":[{"name":"Paris"}]}`,
			wantType: MsgCompleted,
		},
		{
			name:     "unknown type parses, reducer decides",
			frame:    `{"type":"telemetry"}`,
			wantType: "telemetry",
		},
		{
			name:    "not json",
			frame:   `{{{`,
			wantErr: true,
		},
		{
			name:    "missing discriminator",
			frame:   `{"percentage":25}`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := ParseMsg([]byte(tc.frame))
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected parse error")
				}
				if !errors.Is(err, errors.ErrProtocol) {
					t.Fatalf("parse failures must wrap ErrProtocol, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msg.Type != tc.wantType {
				t.Fatalf("expected type %q, got %q", tc.wantType, msg.Type)
			}
		})
	}
}

func TestMsgHasResults(t *testing.T) {
	if (Msg{}).hasResults() {
		t.Fatal("missing payload should not count as results")
	}
	if (Msg{Results: []byte("null")}).hasResults() {
		t.Fatal("JSON null should not count as results")
	}
	if !(Msg{Results: []byte("[]")}).hasResults() {
		t.Fatal("empty list is still a recorded payload")
	}
}
