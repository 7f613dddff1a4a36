package http

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"
)

const (
	// maxFormBytes bounds every form body the server accepts.
	maxFormBytes = 64 << 10
	// maxPromptRunes bounds a single chat prompt.
	maxPromptRunes = 4000
)

var (
	ErrInvalidForm  = errors.New("invalid form submission")
	ErrFieldTooLong = errors.New("field too long")
)

// formValue parses a size-limited form body and returns field, sanitized.
func formValue(w http.ResponseWriter, r *http.Request, field string, maxRunes int) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return "", ErrInvalidForm
	}
	v := sanitizeInput(r.PostForm.Get(field))
	if maxRunes > 0 && utf8.RuneCountInString(v) > maxRunes {
		return "", ErrFieldTooLong
	}
	return v, nil
}

// queryFlag reports whether a query parameter is set to a truthy value.
func queryFlag(r *http.Request, name string) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(name))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// sanitizeInput removes control characters other than tab and newlines and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
