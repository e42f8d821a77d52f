package domain

import (
	"time"

	"github.com/airenas/transcript-workbench/internal/api"
)

// Session is the persisted part of a UI session
type Session struct {
	ID                  string         `json:"id"`
	CurrentTranscriptID string         `json:"currentTranscriptId,omitempty"`
	Sentences           []api.Sentence `json:"sentences,omitempty"`
	Updated             time.Time      `json:"updated"`
}
