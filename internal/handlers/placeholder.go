package handlers

import (
	"context"
	"strings"

	"github.com/airenas/go-app/pkg/goapp"
)

// DefaultPlaceholders are written by the API instead of a transcript
// when an engine fails
var DefaultPlaceholders = []string{
	"[Corti transcription failed]",
	"[Transcription in progress or failed]",
	"N/A",
}

// PlaceholderFilter drops failed engine placeholders so they are not sent for improvement
type PlaceholderFilter struct {
	placeholders map[string]bool
}

// NewPlaceholderFilter creates the filter, DefaultPlaceholders are used if none provided
func NewPlaceholderFilter(placeholders ...string) *PlaceholderFilter {
	if len(placeholders) == 0 {
		placeholders = DefaultPlaceholders
	}
	res := &PlaceholderFilter{placeholders: make(map[string]bool, len(placeholders))}
	for _, p := range placeholders {
		res.placeholders[strings.ToLower(strings.TrimSpace(p))] = true
	}
	goapp.Log.Info().Strs("placeholders", placeholders).Msg("Placeholder filter")
	return res
}

func (sp *PlaceholderFilter) Process(ctx context.Context, text string) (string, error) {
	if sp.placeholders[strings.ToLower(strings.TrimSpace(text))] {
		return "", nil
	}
	return text, nil
}
