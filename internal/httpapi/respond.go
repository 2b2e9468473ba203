package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/miikkis-gh/glassfile/internal/webui"
)

// envelope is the uniform API response shape.
type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
	Error   any  `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data, Error: nil})
}

// writeError answers API callers with a JSON envelope and browsers with
// a redirect (401) or the HTML error view.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if isAPIRequest(r) {
		writeJSON(w, status, envelope{Success: false, Data: nil, Error: msg})
		return
	}
	if status == http.StatusUnauthorized {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	w.Header().Set("content-type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := webui.Render(w, "error.html", webui.ErrorData{Code: status, Message: msg}); err != nil {
		s.Logger.Error("render error view failed", "err", err)
	}
}

// isAPIRequest separates JSON clients from browser navigations.
func isAPIRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
