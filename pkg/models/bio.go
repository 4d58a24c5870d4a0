// Package models contains domain models for attune.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// StressLevel is the coarse self-reported stress bucket.
type StressLevel string

const (
	StressLow    StressLevel = "Low"
	StressMedium StressLevel = "Medium"
	StressHigh   StressLevel = "High"
)

// BaselineHeartRate is the resting heart rate a new session starts from.
const BaselineHeartRate = 75

// ErrInvalidBioData is returned when a snapshot fails validation.
var ErrInvalidBioData = errors.New("invalid bio data")

// ParseStressLevel parses a stress level case-insensitively.
func ParseStressLevel(s string) (StressLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return StressLow, nil
	case "medium":
		return StressMedium, nil
	case "high":
		return StressHigh, nil
	}
	return "", fmt.Errorf("%w: unknown stress level %q", ErrInvalidBioData, s)
}

// Valid reports whether the level is one of the known buckets.
func (l StressLevel) Valid() bool {
	switch l {
	case StressLow, StressMedium, StressHigh:
		return true
	}
	return false
}

// BioSnapshot is the current simulated biometric reading.
// It is replaced wholesale on every update.
type BioSnapshot struct {
	Activity    string      `json:"activity"`
	StressLevel StressLevel `json:"stressLevel"`
	HeartRate   int         `json:"heartRate"`
}

// Baseline returns the resting snapshot for the given activity label.
func Baseline(activity string) BioSnapshot {
	return BioSnapshot{
		HeartRate:   BaselineHeartRate,
		StressLevel: StressLow,
		Activity:    activity,
	}
}

// Validate checks heart rate and stress level.
func (b BioSnapshot) Validate() error {
	if b.HeartRate <= 0 {
		return fmt.Errorf("%w: heart rate must be positive, got %d", ErrInvalidBioData, b.HeartRate)
	}
	if !b.StressLevel.Valid() {
		return fmt.Errorf("%w: unknown stress level %q", ErrInvalidBioData, b.StressLevel)
	}
	return nil
}
