package genai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/attune/pkg/models"
)

const validRecommendation = `{
  "music": {"description": "Soft rain", "keywords": ["rain", "calm"], "soundscapeKey": "rain"},
  "insight": {"title": "Breathe", "description": "Slow your exhale.", "type": "tip"}
}`

func candidateBody(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{
				"finishReason": "STOP",
				"content":      map[string]any{"parts": []any{map[string]any{"text": text}}},
			},
		},
	})
	return string(b)
}

// ClientSuite is a test suite for the HTTP recommendation client.
type ClientSuite struct {
	suite.Suite
	server  *httptest.Server
	handler http.HandlerFunc
	lastReq *http.Request
	lastRaw []byte
}

func (s *ClientSuite) SetupTest() {
	s.handler = nil
	s.lastReq = nil
	s.lastRaw = nil
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.lastReq = r
		s.lastRaw, _ = io.ReadAll(r.Body)
		s.handler(w, r)
	}))
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) newClient() *Client {
	c, err := NewClient(Config{BaseURL: s.server.URL, Model: "test-model", APIKey: "k"})
	s.Require().NoError(err)
	return c
}

func (s *ClientSuite) recommend(c *Client) (models.Recommendation, error) {
	bio := models.BioSnapshot{HeartRate: 75, StressLevel: models.StressLow, Activity: "Just relaxing"}
	return c.Recommend(context.Background(), bio, "en", models.Preferences{models.PrefGenre: "ambient"})
}

// TestRecommend_Success tests a well-formed response.
func (s *ClientSuite) TestRecommend_Success() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(candidateBody(validRecommendation)))
	}

	rec, err := s.recommend(s.newClient())
	s.Require().NoError(err)
	s.Equal("Breathe", rec.Insight.Title)
	s.Equal(models.InsightTip, rec.Insight.Type)
	s.Equal(models.SoundscapeKey("rain"), rec.Music.SoundscapeKey)

	s.Equal(http.MethodPost, s.lastReq.Method)
	s.Equal("/v1beta/models/test-model:generateContent", s.lastReq.URL.Path)
	s.Equal("k", s.lastReq.Header.Get("x-goog-api-key"))
	s.Contains(string(s.lastRaw), "application/json")
	s.Contains(string(s.lastRaw), "heart_rate_bpm")
}

// TestRecommend_FailureKinds tests error classification.
func (s *ClientSuite) TestRecommend_FailureKinds() {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind FetchKind
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":{"code":500,"message":"boom","status":"INTERNAL"}}`))
			},
			wantKind: UpstreamError,
		},
		{
			name: "quota exceeded",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte("slow down"))
			},
			wantKind: UpstreamError,
		},
		{
			name: "blocked prompt",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
			},
			wantKind: UpstreamError,
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
			wantKind: InvalidResponseShape,
		},
		{
			name: "no candidates",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"candidates":[]}`))
			},
			wantKind: InvalidResponseShape,
		},
		{
			name: "model text not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(candidateBody("Sure! Here is a song.")))
			},
			wantKind: InvalidResponseShape,
		},
		{
			name: "unknown soundscape",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(candidateBody(strings.Replace(validRecommendation, `"rain"`+"}", `"jackhammer"}`, 1))))
			},
			wantKind: InvalidResponseShape,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.handler = tt.handler
			_, err := s.recommend(s.newClient())
			s.Require().Error(err)

			var fe *FetchError
			s.Require().True(errors.As(err, &fe), "error should be *FetchError: %v", err)
			s.Equal(tt.wantKind, fe.Kind)
			s.Equal(tt.wantKind, KindOf(err))
		})
	}
}

// TestRecommend_NetworkUnavailable tests a closed server.
func (s *ClientSuite) TestRecommend_NetworkUnavailable() {
	c := s.newClient()
	s.server.Close()

	_, err := s.recommend(c)
	s.Equal(NetworkUnavailable, KindOf(err))
}

// TestRecommend_Timeout tests that deadline expiry maps to NetworkUnavailable.
func (s *ClientSuite) TestRecommend_Timeout() {
	release := make(chan struct{})
	defer close(release)
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	bio := models.Baseline("x")
	_, err := s.newClient().Recommend(ctx, bio, "en", nil)
	s.Equal(NetworkUnavailable, KindOf(err))
	s.True(errors.Is(err, context.DeadlineExceeded))
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://x", Model: "m"})
	assert.Error(t, err)

	_, err = NewClient(Config{BaseURL: "http://x", APIKey: "k"})
	assert.Error(t, err)

	_, err = NewClient(Config{Model: "m", APIKey: "k"})
	assert.Error(t, err)

	c, err := NewClient(Config{BaseURL: "http://x/", Model: "m", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "http://x/v1beta/models/m:generateContent", c.endpoint)
}

func TestFetchErrorMessage(t *testing.T) {
	err := upstreamErr(503, errors.New("unavailable"))
	assert.Equal(t, "upstream_error (status 503): unavailable", err.Error())

	err = networkErr(errors.New("dial"))
	assert.Equal(t, "network_unavailable: dial", err.Error())

	assert.Equal(t, UpstreamError, KindOf(errors.New("plain")))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{name: "short", in: "quota", maxLen: 10, want: "quota"},
		{name: "ascii", in: "abcdef", maxLen: 3, want: "abc... (truncated)"},
		{name: "thai mid rune", in: "สวัสดี", maxLen: 4, want: "ส... (truncated)"},
		{name: "thai on boundary", in: "สวัสดี", maxLen: 6, want: "สว... (truncated)"},
		{name: "first rune too long", in: "ส", maxLen: 2, want: "... (truncated)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.maxLen)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
