// Package health implements the offline self-check run by `life-assistant healthcheck`.
// It inspects configuration only and never touches the network.
package health

import (
	"encoding/json"
	"io"
	"runtime"

	"lifeassistant/internal/config"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Report is printed as JSON by the healthcheck command.
type Report struct {
	Status      string   `json:"status"`
	MissingVars []string `json:"missing_vars,omitempty"`
	Error       string   `json:"error,omitempty"`
	GoVersion   string   `json:"go_version,omitempty"`
}

// Check reports unhealthy when any required variable is unset or the
// configuration is otherwise invalid.
func Check(cfg *config.Config) Report {
	if missing := cfg.MissingVars(); len(missing) > 0 {
		return Report{Status: StatusUnhealthy, MissingVars: missing}
	}
	if err := cfg.Validate(); err != nil {
		return Report{Status: StatusUnhealthy, Error: err.Error()}
	}
	return Report{Status: StatusHealthy, GoVersion: runtime.Version()}
}

func (r Report) Healthy() bool { return r.Status == StatusHealthy }

// ExitCode is 0 for a healthy report and 1 otherwise.
func (r Report) ExitCode() int {
	if r.Healthy() {
		return 0
	}
	return 1
}

// Write encodes r as a single JSON line.
func (r Report) Write(w io.Writer) error {
	return json.NewEncoder(w).Encode(r)
}
