package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/attune/pkg/models"
)

func TestGetWorkerPort(t *testing.T) {
	t.Setenv("ATTUNE_WORKER_PORT", "")
	assert.Equal(t, DefaultWorkerPort, GetWorkerPort())

	t.Setenv("ATTUNE_WORKER_PORT", "12345")
	assert.Equal(t, 12345, GetWorkerPort())

	t.Setenv("ATTUNE_WORKER_PORT", "invalid")
	assert.Equal(t, DefaultWorkerPort, GetWorkerPort())
}

func TestIsRunning_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url)
	assert.False(t, c.IsRunning(context.Background()))
	assert.Equal(t, "", c.Version(context.Background()))
}

func TestVersion(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		expected string
	}{
		{
			name: "returns version from server",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"version":"1.2.3"}`))
			},
			expected: "1.2.3",
		},
		{
			name: "returns empty on 404",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			expected: "",
		},
		{
			name: "returns empty on invalid JSON",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			assert.Equal(t, tt.expected, New(srv.URL).Version(context.Background()))
		})
	}
}

func TestSessionCalls(t *testing.T) {
	var gotBodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBodies = append(gotBodies, r.Method+" "+r.URL.Path+" "+string(data))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/session/start", "/api/bio", "/api/state":
			_, _ = w.Write([]byte(`{"active":true,"view":"dashboard","phase":"fetching","loading":true,"bio":{"heartRate":75,"stressLevel":"Low","activity":"Yoga"}}`))
		case "/api/session/stop":
			_, _ = w.Write([]byte(`{"archived":true,"record":{"id":"r1","activity":"Yoga"}}`))
		case "/api/history":
			_, _ = w.Write([]byte(`[{"id":"r1","activity":"Yoga"}]`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	ctx := context.Background()

	st, err := c.Start(ctx, "Yoga")
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, models.ViewDashboard, st.View)
	assert.Equal(t, "Yoga", st.Bio.Activity)

	_, err = c.UpdateBio(ctx, 101, models.StressHigh)
	require.NoError(t, err)

	_, err = c.State(ctx)
	require.NoError(t, err)

	rec, err := c.Stop(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "r1", rec.ID)

	history, err := c.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)

	assert.Equal(t, []string{
		`POST /api/session/start {"activity":"Yoga"}`,
		`PUT /api/bio {"heartRate":101,"stressLevel":"High"}`,
		`GET /api/state `,
		`POST /api/session/stop `,
		`GET /api/history `,
	}, gotBodies)
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"session already active"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Start(context.Background(), "Run")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "worker returned 409: session already active", apiErr.Error())
}
