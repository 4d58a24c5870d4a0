package models

import (
	"time"

	"github.com/google/uuid"
)

// View names the screen the client should render.
type View string

const (
	ViewPreSession View = "pre-session"
	ViewDashboard  View = "dashboard"
)

// SessionRecord is an archived session. Records are never mutated after creation.
type SessionRecord struct {
	ID             string         `json:"id"`
	Timestamp      string         `json:"timestamp"`
	Activity       string         `json:"activity"`
	BioData        BioSnapshot    `json:"bioData"`
	Recommendation Recommendation `json:"recommendation"`
}

// NewSessionRecord builds a record stamped with now.
// The ID is a UUIDv7 so records sort by creation time.
func NewSessionRecord(bio BioSnapshot, rec Recommendation, now time.Time) *SessionRecord {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &SessionRecord{
		ID:             id.String(),
		Timestamp:      now.UTC().Format(time.RFC3339Nano),
		Activity:       bio.Activity,
		BioData:        bio,
		Recommendation: rec.Clone(),
	}
}
