package genai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/attune/internal/soundscape"
	"github.com/thebtf/attune/pkg/models"
)

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 1 << 20

// Config configures the HTTP recommendation client.
type Config struct {
	HTTPClient       *http.Client
	Catalog          *soundscape.Registry
	BaseURL          string
	Model            string
	APIKey           string
	NotesTokenBudget int
	Temperature      float64
}

// Client calls the generative-language generateContent endpoint.
type Client struct {
	httpClient  *http.Client
	catalog     *soundscape.Registry
	endpoint    string
	apiKey      string
	model       string
	notesBudget int
	temperature float64
}

// NewClient creates a recommendation client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("genai: API key not configured")
	}
	if cfg.Model == "" {
		return nil, errors.New("genai: model not configured")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.New("genai: base URL not configured")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("genai: invalid base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = soundscape.Default()
	}
	temp := cfg.Temperature
	if temp <= 0 {
		temp = 0.8
	}

	return &Client{
		httpClient:  httpClient,
		catalog:     catalog,
		endpoint:    fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, url.PathEscape(cfg.Model)),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		notesBudget: cfg.NotesTokenBudget,
		temperature: temp,
	}, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	Temperature      float64 `json:"temperature"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Error *struct {
		Message string `json:"message"`
		Status  string `json:"status"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	Candidates []struct {
		FinishReason string  `json:"finishReason"`
		Content      content `json:"content"`
	} `json:"candidates"`
}

// Recommend asks the service for a recommendation matching bio.
// Failures are always *FetchError.
func (c *Client) Recommend(ctx context.Context, bio models.BioSnapshot, locale string, prefs models.Preferences) (models.Recommendation, error) {
	prompt := BuildRecommendationPrompt(PromptRequest{
		Bio:              bio,
		Locale:           locale,
		Preferences:      prefs,
		Catalog:          c.catalog,
		NotesTokenBudget: c.notesBudget,
	})

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			Temperature:      c.temperature,
		},
	})
	if err != nil {
		return models.Recommendation{}, upstreamErr(0, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.Recommendation{}, upstreamErr(0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	log.Debug().
		Str("model", c.model).
		Int("promptTokens", CountTokens(prompt)).
		Int("heartRate", bio.HeartRate).
		Str("stress", string(bio.StressLevel)).
		Msg("Requesting recommendation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Recommendation{}, networkErr(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return models.Recommendation{}, networkErr(fmt.Errorf("read response: %w", err))
	}

	var parsed generateResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return models.Recommendation{}, upstreamErr(resp.StatusCode, errors.New(truncate(msg, 300)))
	}
	if decodeErr != nil {
		return models.Recommendation{}, shapeErr("decode response: %w", decodeErr)
	}
	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return models.Recommendation{}, upstreamErr(resp.StatusCode, fmt.Errorf("prompt blocked: %s", parsed.PromptFeedback.BlockReason))
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return models.Recommendation{}, shapeErr("response has no candidates")
	}

	var text strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return ParseRecommendation(text.String(), c.catalog)
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "... (truncated)"
}
