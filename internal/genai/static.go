package genai

import (
	"context"
	"fmt"

	"github.com/thebtf/attune/internal/soundscape"
	"github.com/thebtf/attune/pkg/models"
)

// Static produces recommendations from the catalog without calling out.
// It is used when no API key is configured.
type Static struct {
	catalog *soundscape.Registry
}

// NewStatic creates an offline recommender over catalog.
func NewStatic(catalog *soundscape.Registry) *Static {
	if catalog == nil {
		catalog = soundscape.Default()
	}
	return &Static{catalog: catalog}
}

// Recommend picks a soundscape suited to the stress level and a rule-based insight.
func (s *Static) Recommend(ctx context.Context, bio models.BioSnapshot, locale string, prefs models.Preferences) (models.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return models.Recommendation{}, networkErr(err)
	}

	candidates := s.catalog.ForStress(bio.StressLevel)
	pick := candidates[abs(bio.HeartRate)%len(candidates)]

	return models.Recommendation{
		Music: models.Music{
			Description:   pick.Description,
			Keywords:      append([]string{}, pick.Keywords...),
			SoundscapeKey: pick.Key,
		},
		Insight: staticInsight(bio),
	}, nil
}

func staticInsight(bio models.BioSnapshot) models.Insight {
	switch {
	case bio.HeartRate >= 110 || bio.StressLevel == models.StressHigh:
		return models.Insight{
			Title:       "Time to slow down",
			Description: fmt.Sprintf("Your heart rate is %d bpm. Try four slow breaths, exhaling longer than you inhale.", bio.HeartRate),
			Type:        models.InsightWarning,
		}
	case bio.StressLevel == models.StressMedium:
		return models.Insight{
			Title:       "Find a steady rhythm",
			Description: "A short pause with relaxed shoulders can bring stress down a notch.",
			Type:        models.InsightTip,
		}
	default:
		return models.Insight{
			Title:       "Nicely balanced",
			Description: fmt.Sprintf("%d bpm and low stress. Keep doing what you are doing.", bio.HeartRate),
			Type:        models.InsightPraise,
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
