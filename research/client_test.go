package research

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voyagent/voyagent/errors"
)

func validPrefs() Preferences {
	return Preferences{
		Origin:      "London",
		TravelStart: "2025-06-01",
		TravelEnd:   "2025-06-10",
		Interests:   []string{"culture"},
	}
}

func TestClient_Start(t *testing.T) {
	var gotPath, gotRequestID string
	var gotBody Preferences

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRequestID = r.Header.Get("X-Request-ID")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{"job_id": "J1", "status": "pending"})
	}))
	defer srv.Close()

	client := NewClientWithHTTP(srv.URL, srv.Client())
	job, err := client.Start(context.Background(), validPrefs())
	require.NoError(t, err)

	require.Equal(t, "/research/start", gotPath)
	require.NotEmpty(t, gotRequestID, "every request carries a correlation id")
	require.Equal(t, "London", gotBody.Origin)

	require.Equal(t, "J1", job.ID)
	require.Equal(t, StatusPending, job.Status)
	require.False(t, job.CreatedAt.IsZero())
}

func TestClient_StartValidatesBeforeNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := NewClientWithHTTP(srv.URL, srv.Client())

	tests := []struct {
		name  string
		prefs Preferences
	}{
		{"missing origin", Preferences{TravelStart: "2025-06-01", TravelEnd: "2025-06-10"}},
		{"missing dates", Preferences{Origin: "London"}},
		{"bad date format", Preferences{Origin: "London", TravelStart: "June 1", TravelEnd: "2025-06-10"}},
		{"inverted range", Preferences{Origin: "London", TravelStart: "2025-06-10", TravelEnd: "2025-06-01"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.Start(context.Background(), tc.prefs)
			require.Error(t, err)
			require.True(t, errors.IsValidation(err), "expected validation error, got %v", err)
		})
	}
	require.False(t, called, "validation failures must not reach the network")
}

func TestClient_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/research/status/J1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"job_id":              "J1",
			"status":              "in_progress",
			"progress_percentage": 40,
			"current_step":        "attractions",
			"created_at":          "2025-06-01T12:00:00Z",
			"results_available":   false,
		})
	}))
	defer srv.Close()

	client := NewClientWithHTTP(srv.URL, srv.Client())
	job, err := client.Status(context.Background(), "J1")
	require.NoError(t, err)

	require.Equal(t, StatusInProgress, job.Status)
	require.Equal(t, 40, job.ProgressPercentage)
	require.Equal(t, "attractions", job.CurrentStep)
}

func TestClient_StatusRejectsUnknownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"job_id": "J1", "status": "meditating"})
	}))
	defer srv.Close()

	client := NewClientWithHTTP(srv.URL, srv.Client())
	_, err := client.Status(context.Background(), "J1")
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrProtocol))
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		body      string
		check     func(error) bool
		checkName string
	}{
		{"not found", http.StatusNotFound, `{"detail":"job not found"}`, errors.IsNotFound, "IsNotFound"},
		{"validation rejected", http.StatusUnprocessableEntity, `{"detail":"origin required"}`, errors.IsValidation, "IsValidation"},
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, errors.IsBackend, "IsBackend"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.code)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := NewClientWithHTTP(srv.URL, srv.Client())
			_, err := client.Status(context.Background(), "J1")
			require.Error(t, err)
			require.True(t, tc.check(err), "expected %s for status %d, got %v", tc.checkName, tc.code, err)
		})
	}
}

func TestClient_ResultsNullIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	}))
	defer srv.Close()

	client := NewClientWithHTTP(srv.URL, srv.Client())
	_, err := client.Results(context.Background(), "J1")
	require.Error(t, err)
	require.True(t, errors.IsNotFound(err))
}

func TestClient_CancelJob(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClientWithHTTP(srv.URL, srv.Client())
	require.NoError(t, client.CancelJob(context.Background(), "J1"))
	require.Equal(t, http.MethodDelete, gotMethod)
	require.Equal(t, "/research/jobs/J1", gotPath)
}
