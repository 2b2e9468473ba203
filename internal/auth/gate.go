package auth

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/miikkis-gh/glassfile/internal/session"
)

// Mode selects which credentials a route accepts.
type Mode int

const (
	// ModeSession requires an authenticated, unexpired session.
	ModeSession Mode = iota
	// ModeAPIKey requires a valid X-API-Key header.
	ModeAPIKey
	// ModeEither accepts a valid API key, falling back to the session.
	ModeEither
)

// Denial reasons, surfaced by the HTTP layer as typed failures.
var (
	ErrForbidden          = errors.New("forbidden")
	ErrAuthRequired       = errors.New("authentication required")
	ErrInvalidAPIKey      = errors.New("invalid api key")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidCredentials = errors.New("invalid password")
)

// Request carries the credentials extracted from one inbound request.
type Request struct {
	RemoteIP string
	APIKey   string
	Token    string
	Now      time.Time
}

// Gate decides ALLOW/DENY for each request. Policy is immutable after
// construction; only the session store is mutated.
type Gate struct {
	passwordHash string
	apiKeys      []string
	ipWhitelist  map[string]struct{}
	lifetime     time.Duration
	sessions     session.Store
	logger       *slog.Logger
}

// Policy is the immutable credential configuration for a Gate.
type Policy struct {
	AdminPasswordHash string
	APIKeys           []string
	IPWhitelist       []string
	SessionLifetime   time.Duration
}

func NewGate(p Policy, sessions session.Store, logger *slog.Logger) *Gate {
	g := &Gate{
		passwordHash: p.AdminPasswordHash,
		apiKeys:      p.APIKeys,
		lifetime:     p.SessionLifetime,
		sessions:     sessions,
		logger:       logger,
	}
	if len(p.IPWhitelist) > 0 {
		g.ipWhitelist = make(map[string]struct{}, len(p.IPWhitelist))
		for _, ip := range p.IPWhitelist {
			g.ipWhitelist[ip] = struct{}{}
		}
	}
	return g
}

// Authorize applies the checks in order: IP whitelist, API key (when the
// mode accepts one), then session with sliding-window expiry. A valid
// API key bypasses session checks entirely. On success the session's
// last activity is refreshed.
func (g *Gate) Authorize(mode Mode, req Request) error {
	if g.ipWhitelist != nil {
		if _, ok := g.ipWhitelist[req.RemoteIP]; !ok {
			g.logger.Warn("ip whitelist rejection", "remote_ip", req.RemoteIP)
			return ErrForbidden
		}
	}

	if mode == ModeAPIKey || mode == ModeEither {
		if req.APIKey != "" {
			if g.matchAPIKey(req.APIKey) {
				return nil
			}
			g.logger.Warn("invalid api key attempt", "remote_ip", req.RemoteIP)
			return ErrInvalidAPIKey
		}
		if mode == ModeAPIKey {
			return ErrAuthRequired
		}
	}

	if req.Token == "" {
		return ErrAuthRequired
	}
	sess, ok := g.sessions.Get(req.Token)
	if !ok || !sess.Authenticated {
		return ErrAuthRequired
	}
	if req.Now.Sub(sess.LastActivity) > g.lifetime {
		g.sessions.Delete(req.Token)
		return ErrSessionExpired
	}
	sess.LastActivity = req.Now
	g.sessions.Put(req.Token, sess)
	return nil
}

// matchAPIKey compares the presented key against every configured key
// in constant time, so timing does not reveal key prefixes or which
// key matched.
func (g *Gate) matchAPIKey(key string) bool {
	match := false
	for _, k := range g.apiKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(k)) == 1 {
			match = true
		}
	}
	return match
}

// Login verifies the admin password and, on success, discards any prior
// session state before issuing a fresh token. Reissuing the token on
// every successful login prevents session fixation.
func (g *Gate) Login(prevToken, password, remoteIP string, now time.Time) (string, error) {
	ok, err := VerifyPassword(password, g.passwordHash)
	if err != nil {
		g.logger.Error("password hash unusable", "err", err)
		return "", ErrInvalidCredentials
	}
	if !ok {
		g.logger.Warn("failed login attempt", "remote_ip", remoteIP)
		return "", ErrInvalidCredentials
	}

	if prevToken != "" {
		g.sessions.Delete(prevToken)
	}
	token, err := NewToken(32)
	if err != nil {
		return "", err
	}
	g.sessions.Put(token, session.Session{Authenticated: true, LastActivity: now})
	g.logger.Info("successful login", "remote_ip", remoteIP)
	return token, nil
}

// Logout clears the session behind a token.
func (g *Gate) Logout(token string) {
	if token != "" {
		g.sessions.Delete(token)
	}
}

// Authenticated reports whether a token maps to a live session without
// refreshing its activity, for redirect decisions on the login page.
func (g *Gate) Authenticated(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	sess, ok := g.sessions.Get(token)
	if !ok || !sess.Authenticated {
		return false
	}
	return now.Sub(sess.LastActivity) <= g.lifetime
}
