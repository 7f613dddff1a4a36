package http

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"

	"lifeassistant/internal/core"
	"lifeassistant/internal/log"
)

var templateFuncs = template.FuncMap{
	"money": core.FormatCurrency,
	"whole": core.FormatWhole,
	"percent": func(f float64) int {
		return int(f*100 + 0.5)
	},
}

// render executes the named page into a buffer so a template failure never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template render failed",
			append(log.NewFields().WithOperation(log.OpRender).WithError(err).ToSlice(), "template", name)...)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) renderRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, s.securityDetector.ExtractClientIP(r)).ToSlice()...)
	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

func redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}
