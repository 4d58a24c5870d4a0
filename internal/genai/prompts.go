package genai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/thebtf/attune/internal/privacy"
	"github.com/thebtf/attune/internal/soundscape"
	"github.com/thebtf/attune/pkg/models"
)

// languageNames maps locale codes to the language name used in prompts.
var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"de": "German",
	"fr": "French",
	"th": "Thai",
}

// PromptRequest contains data for building a recommendation prompt.
type PromptRequest struct {
	Bio         models.BioSnapshot
	Preferences models.Preferences
	Catalog     *soundscape.Registry
	Locale      string
	// NotesTokenBudget caps the free-text preference notes. Zero means no cap.
	NotesTokenBudget int
}

// BuildRecommendationPrompt builds the prompt asking for one music + insight pair.
func BuildRecommendationPrompt(req PromptRequest) string {
	lang, ok := languageNames[req.Locale]
	if !ok {
		lang = "English"
	}

	var sb strings.Builder
	sb.WriteString("You are a calm wellness companion. Recommend one soundscape and one short insight for the user's current state.\n\n")

	sb.WriteString("<bio_data>\n")
	sb.WriteString(fmt.Sprintf("  <heart_rate_bpm>%d</heart_rate_bpm>\n", req.Bio.HeartRate))
	sb.WriteString(fmt.Sprintf("  <stress_level>%s</stress_level>\n", req.Bio.StressLevel))
	if activity := privacy.Clean(req.Bio.Activity); activity != "" {
		sb.WriteString(fmt.Sprintf("  <activity>%s</activity>\n", activity))
	}
	sb.WriteString("</bio_data>\n\n")

	if prefs := renderPreferences(req.Preferences, req.NotesTokenBudget); prefs != "" {
		sb.WriteString("<preferences>\n")
		sb.WriteString(prefs)
		sb.WriteString("</preferences>\n\n")
	}

	if req.Catalog != nil {
		sb.WriteString("Choose soundscapeKey from exactly one of these keys:\n")
		sb.WriteString(req.Catalog.PromptList())
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("Write all human-readable text in %s.\n", lang))
	sb.WriteString(`Respond with JSON only, in this shape:
{
  "music": {"description": "...", "keywords": ["..."], "soundscapeKey": "..."},
  "insight": {"title": "...", "description": "...", "type": "tip|warning|praise|info"}
}
Use "warning" only when heart rate or stress is clearly elevated. Keep the insight description under 40 words.`)

	return sb.String()
}

// renderPreferences writes preference keys in sorted order.
// Notes are cleaned and trimmed to the token budget.
func renderPreferences(prefs models.Preferences, notesBudget int) string {
	if len(prefs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		var value string
		switch v := prefs[k].(type) {
		case string:
			value = privacy.Clean(v)
		case nil:
			continue
		default:
			value = privacy.Clean(fmt.Sprint(v))
		}
		if k == models.PrefNotes && notesBudget > 0 {
			value = TruncateTokens(value, notesBudget)
		}
		if value == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("  <pref name=%q>%s</pref>\n", k, value))
	}
	return sb.String()
}
