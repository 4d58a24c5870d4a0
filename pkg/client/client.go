// Package client is a small HTTP client for the attune worker API.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/thebtf/attune/pkg/models"
)

// DefaultWorkerPort matches the worker's default listen port.
const DefaultWorkerPort = 37790

// GetWorkerPort returns the port from ATTUNE_WORKER_PORT or the default.
func GetWorkerPort() int {
	if v := os.Getenv("ATTUNE_WORKER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			return p
		}
	}
	return DefaultWorkerPort
}

// State mirrors the worker's state response.
type State struct {
	Recommendation models.Recommendation `json:"recommendation"`
	Bio            models.BioSnapshot    `json:"bio"`
	Error          string                `json:"error,omitempty"`
	Phase          string                `json:"phase"`
	View           models.View           `json:"view"`
	Loading        bool                  `json:"loading"`
	Active         bool                  `json:"active"`
}

// APIError is a non-2xx worker response.
type APIError struct {
	Message string
	Status  int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("worker returned %d", e.Status)
	}
	return fmt.Sprintf("worker returned %d: %s", e.Status, e.Message)
}

// Client talks to one worker.
type Client struct {
	http    *http.Client
	baseURL string
}

// New creates a Client for baseURL, e.g. "http://127.0.0.1:37790".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// NewLocal creates a Client for the worker on localhost.
func NewLocal() *Client {
	return New(fmt.Sprintf("http://127.0.0.1:%d", GetWorkerPort()))
}

// IsRunning reports whether the worker answers its health check.
func (c *Client) IsRunning(ctx context.Context) bool {
	var out map[string]any
	return c.do(ctx, http.MethodGet, "/api/health", nil, &out) == nil
}

// Version returns the worker's version, or "" when unreachable.
func (c *Client) Version(ctx context.Context) string {
	var out map[string]string
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &out); err != nil {
		return ""
	}
	return out["version"]
}

// State returns the current loop state.
func (c *Client) State(ctx context.Context) (*State, error) {
	var st State
	if err := c.do(ctx, http.MethodGet, "/api/state", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Start begins a session.
func (c *Client) Start(ctx context.Context, activity string) (*State, error) {
	var st State
	if err := c.do(ctx, http.MethodPost, "/api/session/start", map[string]string{"activity": activity}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Stop ends the session and returns the archived record, if any.
func (c *Client) Stop(ctx context.Context) (*models.SessionRecord, error) {
	var out struct {
		Record *models.SessionRecord `json:"record"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/session/stop", nil, &out); err != nil {
		return nil, err
	}
	return out.Record, nil
}

// UpdateBio pushes a reading for the current activity.
func (c *Client) UpdateBio(ctx context.Context, heartRate int, stress models.StressLevel) (*State, error) {
	body := map[string]any{"heartRate": heartRate, "stressLevel": stress}
	var st State
	if err := c.do(ctx, http.MethodPut, "/api/bio", body, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// History returns archived sessions, most recent first.
func (c *Client) History(ctx context.Context) ([]models.SessionRecord, error) {
	var out []models.SessionRecord
	if err := c.do(ctx, http.MethodGet, "/api/history", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
