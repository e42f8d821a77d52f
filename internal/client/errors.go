package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrBadID is returned for a transcript id that is not a UUID
var ErrBadID = errors.New("wrong transcript id")

// HTTPError is returned for a non 2xx API response
type HTTPError struct {
	Code int
	URL  string
	Msg  string
}

func (e *HTTPError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %d %s: %s", e.URL, e.Code, http.StatusText(e.Code), e.Msg)
	}
	return fmt.Sprintf("%s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// AppError is an application level {"error": ...} payload of a 2xx response
type AppError struct {
	Msg string
}

func (e *AppError) Error() string {
	return e.Msg
}

// IsNotFound checks if err is a 404 API response
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Code == http.StatusNotFound
}

// errorMessage extracts a message from an error body,
// {"detail": "..."} and {"error": "..."} forms are known
func errorMessage(body []byte) string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return strings.TrimSpace(string(body))
	}
	for _, k := range []string{"detail", "error", "message"} {
		raw, ok := m[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return string(raw)
	}
	return strings.TrimSpace(string(body))
}
