// Package httpapi exposes the file gateway over HTTP: browser views,
// the JSON file API, unauthenticated downloads, and the health probe.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/miikkis-gh/glassfile/internal/auth"
	"github.com/miikkis-gh/glassfile/internal/config"
	"github.com/miikkis-gh/glassfile/internal/store"
	"github.com/miikkis-gh/glassfile/internal/webui"
)

const sessionCookie = "gf_session"

// Server holds the immutable wiring for the HTTP surface.
type Server struct {
	Cfg    config.Config
	Store  *store.Store
	Gate   *auth.Gate
	Logger *slog.Logger

	loginLimiter *fixedWindowLimiter
}

// Handler builds the full middleware-wrapped route tree.
func (s *Server) Handler() http.Handler {
	if s.loginLimiter == nil {
		s.loginLimiter = newFixedWindowLimiter(s.Cfg.Security.LoginAttemptsPerMinute, time.Minute)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/files", s.withAuth(auth.ModeEither, s.handleList))
	mux.HandleFunc("/api/files/", s.withAuth(auth.ModeEither, s.handleFileByName))
	mux.HandleFunc("/api/upload", s.withAuth(auth.ModeEither, s.handleUpload))
	mux.HandleFunc("/files/", s.handleDownload)

	var h http.Handler = withSecurityHeaders(mux)
	h = s.withRequestLog(h)
	h = s.withRecover(h)
	return h
}

// withAuth runs the gate before a handler, mapping denials to responses.
func (s *Server) withAuth(mode auth.Mode, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Gate.Authorize(mode, s.gateRequest(r)); err != nil {
			s.deny(w, r, err)
			return
		}
		next(w, r)
	}
}

func (s *Server) gateRequest(r *http.Request) auth.Request {
	tok, _ := readSessionCookie(r)
	return auth.Request{
		RemoteIP: clientIP(r),
		APIKey:   r.Header.Get("X-API-Key"),
		Token:    tok,
		Now:      time.Now(),
	}
}

// deny translates a gate denial into the right status and body for the
// request kind: JSON envelope for API callers, redirect or error view
// for browsers.
func (s *Server) deny(w http.ResponseWriter, r *http.Request, err error) {
	switch err {
	case auth.ErrForbidden:
		s.writeError(w, r, http.StatusForbidden, "Forbidden")
	case auth.ErrInvalidAPIKey:
		s.writeError(w, r, http.StatusUnauthorized, "Invalid API key")
	case auth.ErrSessionExpired:
		clearSessionCookie(w)
		s.writeError(w, r, http.StatusUnauthorized, "Session expired")
	default:
		s.writeError(w, r, http.StatusUnauthorized, "Authentication required")
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, r, http.StatusNotFound, "Not found")
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if err := s.Gate.Authorize(auth.ModeSession, s.gateRequest(r)); err != nil {
		s.deny(w, r, err)
		return
	}
	w.Header().Set("content-type", "text/html; charset=utf-8")
	if err := webui.Render(w, "index.html", nil); err != nil {
		s.Logger.Error("render index failed", "err", err)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tok, _ := readSessionCookie(r)
		if s.Gate.Authenticated(tok, time.Now()) {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		w.Header().Set("content-type", "text/html; charset=utf-8")
		if err := webui.Render(w, "login.html", nil); err != nil {
			s.Logger.Error("render login failed", "err", err)
		}
	case http.MethodPost:
		s.handleLoginSubmit(w, r)
	default:
		s.writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if ok, retry := s.loginLimiter.Allow(ip); !ok {
		w.Header().Set("Retry-After", retryAfterSeconds(retry))
		s.writeError(w, r, http.StatusTooManyRequests, "Too many login attempts")
		return
	}

	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		s.writeError(w, r, http.StatusBadRequest, "Content-Type must be application/json")
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	prev, _ := readSessionCookie(r)
	token, err := s.Gate.Login(prev, req.Password, ip, time.Now())
	if err != nil {
		s.writeError(w, r, http.StatusUnauthorized, "Invalid password")
		return
	}

	setSessionCookie(w, token, s.sessionMaxAge(), r.TLS != nil)
	s.writeData(w, http.StatusOK, map[string]string{"message": "Login successful"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if tok, ok := readSessionCookie(r); ok {
		s.Gate.Logout(tok)
	}
	clearSessionCookie(w)
	s.Logger.Info("logout", "remote_ip", clientIP(r))
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"storage_dir":      s.Store.Root(),
		"storage_writable": s.Store.Writable(),
	})
}

func (s *Server) sessionMaxAge() int {
	return s.Cfg.Security.SessionLifetimeSeconds
}

// clientIP extracts the remote IP without a port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func setSessionCookie(w http.ResponseWriter, token string, maxAge int, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func readSessionCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy",
			"default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'; object-src 'none'; frame-ancestors 'none'")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000")
		}
		next.ServeHTTP(w, r)
	})
}
