package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims whitespace", "  hello  ", "hello"},
		{"drops control characters", "he\x00llo\x07", "hello"},
		{"keeps newlines and tabs", "a\tb\nc", "a\tb\nc"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeInput(tt.in))
		})
	}
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestFormValue(t *testing.T) {
	t.Run("returns sanitized field", func(t *testing.T) {
		v, err := formValue(httptest.NewRecorder(), postForm(url.Values{"prompt": {"  how much did I spend?\x00 "}}), "prompt", 100)
		require.NoError(t, err)
		assert.Equal(t, "how much did I spend?", v)
	})

	t.Run("rejects overlong field", func(t *testing.T) {
		_, err := formValue(httptest.NewRecorder(), postForm(url.Values{"prompt": {strings.Repeat("é", 11)}}), "prompt", 10)
		assert.ErrorIs(t, err, ErrFieldTooLong)
	})

	t.Run("rejects oversized body", func(t *testing.T) {
		body := url.Values{"prompt": {strings.Repeat("a", maxFormBytes+1)}}
		_, err := formValue(httptest.NewRecorder(), postForm(body), "prompt", 0)
		assert.ErrorIs(t, err, ErrInvalidForm)
	})

	t.Run("missing field is empty", func(t *testing.T) {
		v, err := formValue(httptest.NewRecorder(), postForm(url.Values{}), "prompt", 10)
		require.NoError(t, err)
		assert.Empty(t, v)
	})
}

func TestQueryFlag(t *testing.T) {
	for query, want := range map[string]bool{
		"/chat?context=1":     true,
		"/chat?context=true":  true,
		"/chat?context=0":     false,
		"/chat?context=":      false,
		"/chat":               false,
		"/chat?context=%20on": true,
	} {
		req := httptest.NewRequest(http.MethodGet, query, nil)
		assert.Equal(t, want, queryFlag(req, "context"), query)
	}
}
