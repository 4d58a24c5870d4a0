package models

// SoundscapeKey identifies a soundscape known to the catalog.
type SoundscapeKey string

// InsightType classifies the tone of an insight.
type InsightType string

const (
	InsightTip     InsightType = "tip"
	InsightWarning InsightType = "warning"
	InsightPraise  InsightType = "praise"
	InsightInfo    InsightType = "info"
)

// InsightTypes lists the accepted insight types.
var InsightTypes = []InsightType{InsightTip, InsightWarning, InsightPraise, InsightInfo}

// Valid reports whether t is a known insight type.
func (t InsightType) Valid() bool {
	for _, known := range InsightTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Music describes the recommended soundscape.
type Music struct {
	Description   string        `json:"description"`
	SoundscapeKey SoundscapeKey `json:"soundscapeKey"`
	Keywords      []string      `json:"keywords"`
}

// Insight is a short piece of advice tied to the current reading.
type Insight struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Type        InsightType `json:"type"`
}

// Recommendation is the generated music + insight pair.
// Values are treated as immutable once produced.
type Recommendation struct {
	Music   Music   `json:"music"`
	Insight Insight `json:"insight"`
}

// EmptyRecommendation returns the placeholder shown before any fetch succeeds.
func EmptyRecommendation() Recommendation {
	return Recommendation{
		Music:   Music{Keywords: []string{}},
		Insight: Insight{Type: InsightInfo},
	}
}

// IsPlaceholder is true when the insight carries no content.
func (r Recommendation) IsPlaceholder() bool {
	return r.Insight.Title == "" && r.Insight.Description == ""
}

// Clone returns a copy that shares no slices with r.
func (r Recommendation) Clone() Recommendation {
	out := r
	out.Music.Keywords = append([]string(nil), r.Music.Keywords...)
	if out.Music.Keywords == nil {
		out.Music.Keywords = []string{}
	}
	return out
}
