package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// zone-less timestamps written by the API, read as UTC
var naiveLayouts = []string{"2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"}

// Time is a timestamp that accepts RFC3339 and zone-less ISO values
type Time struct {
	time.Time
}

// NewTime wraps t
func NewTime(t time.Time) Time {
	return Time{Time: t}
}

func (t *Time) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("wrong time %s: %w", string(b), err)
	}
	res, err := ParseTime(s)
	if err != nil {
		return err
	}
	t.Time = res
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// ParseTime parses RFC3339 or a zone-less timestamp, an empty string is the zero time
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if res, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return res, nil
	}
	for _, l := range naiveLayouts {
		if res, err := time.ParseInLocation(l, s, time.UTC); err == nil {
			return res, nil
		}
	}
	return time.Time{}, fmt.Errorf("wrong time '%s'", s)
}
