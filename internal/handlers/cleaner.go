package handlers

import (
	"context"
	"regexp"
	"strings"

	"github.com/airenas/go-app/pkg/goapp"
)

// Cleaner normalizes whitespace of a transcript
type Cleaner struct {
	spaces *regexp.Regexp
}

// NewCleaner creates a text cleaner
func NewCleaner() *Cleaner {
	res := Cleaner{spaces: regexp.MustCompile(`\s+`)}
	goapp.Log.Info().Msg("Cleaner")
	return &res
}

func (sp *Cleaner) Process(ctx context.Context, text string) (string, error) {
	text = strings.ReplaceAll(text, "_", " ")
	text = sp.spaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text), nil
}
