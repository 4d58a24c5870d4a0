package genai

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/thebtf/attune/internal/soundscape"
	"github.com/thebtf/attune/pkg/models"
)

// ParseRecommendation decodes model output into a Recommendation and checks its shape.
// Code fences around the JSON are tolerated.
func ParseRecommendation(text string, catalog *soundscape.Registry) (models.Recommendation, error) {
	text = stripCodeFence(text)
	if text == "" {
		return models.Recommendation{}, shapeErr("empty model output")
	}

	var rec models.Recommendation
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		return models.Recommendation{}, shapeErr("decode recommendation: %w", err)
	}
	if err := validateRecommendation(&rec, catalog); err != nil {
		return models.Recommendation{}, err
	}
	return rec, nil
}

func validateRecommendation(rec *models.Recommendation, catalog *soundscape.Registry) error {
	rec.Insight.Title = strings.TrimSpace(rec.Insight.Title)
	rec.Insight.Description = strings.TrimSpace(rec.Insight.Description)
	if rec.Insight.Title == "" || rec.Insight.Description == "" {
		return shapeErr("insight title and description are required")
	}
	if !rec.Insight.Type.Valid() {
		return shapeErr("unknown insight type %q", rec.Insight.Type)
	}
	if rec.Music.SoundscapeKey == "" {
		return shapeErr("music.soundscapeKey is required")
	}
	if catalog != nil && !catalog.Has(rec.Music.SoundscapeKey) {
		return shapeErr("unknown soundscape key %q", rec.Music.SoundscapeKey)
	}
	if rec.Music.Keywords == nil {
		rec.Music.Keywords = []string{}
	}
	return nil
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
