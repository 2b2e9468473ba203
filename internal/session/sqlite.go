package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	token         TEXT PRIMARY KEY,
	authenticated INTEGER NOT NULL,
	last_activity INTEGER NOT NULL
);`

// SQLite persists sessions across restarts. A single write connection
// in WAL mode is plenty for session traffic.
type SQLite struct {
	sql      *sql.DB
	lifetime time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
}

func OpenSQLite(ctx context.Context, path string, lifetime time.Duration, logger *slog.Logger) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("session db path is required")
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", path)
	s, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(1)
	s.SetMaxIdleConns(1)
	s.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.PingContext(pingCtx); err != nil {
		_ = s.Close()
		return nil, err
	}
	if _, err := s.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		_ = s.Close()
		return nil, err
	}
	if _, err := s.ExecContext(ctx, sessionsSchema); err != nil {
		_ = s.Close()
		return nil, err
	}

	st := &SQLite{sql: s, lifetime: lifetime, logger: logger, stopCh: make(chan struct{})}
	st.pruneExpired(time.Now())
	go st.janitorLoop()
	return st, nil
}

func (s *SQLite) Get(token string) (Session, bool) {
	var authed int
	var last int64
	err := s.sql.QueryRow(
		`SELECT authenticated, last_activity FROM sessions WHERE token=?`, token,
	).Scan(&authed, &last)
	if err == sql.ErrNoRows {
		return Session{}, false
	}
	if err != nil {
		s.logger.Error("session get failed", "err", err)
		return Session{}, false
	}
	return Session{Authenticated: authed == 1, LastActivity: time.Unix(last, 0)}, true
}

func (s *SQLite) Put(token string, sess Session) {
	if token == "" {
		return
	}
	authed := 0
	if sess.Authenticated {
		authed = 1
	}
	_, err := s.sql.Exec(`
INSERT INTO sessions(token, authenticated, last_activity) VALUES(?, ?, ?)
ON CONFLICT(token) DO UPDATE SET authenticated=excluded.authenticated, last_activity=excluded.last_activity
`, token, authed, sess.LastActivity.Unix())
	if err != nil {
		s.logger.Error("session put failed", "err", err)
	}
}

func (s *SQLite) Delete(token string) {
	if _, err := s.sql.Exec(`DELETE FROM sessions WHERE token=?`, token); err != nil {
		s.logger.Error("session delete failed", "err", err)
	}
}

func (s *SQLite) janitorLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.pruneExpired(time.Now())
		case <-s.stopCh:
			return
		}
	}
}

func (s *SQLite) pruneExpired(now time.Time) {
	cutoff := now.Add(-s.lifetime).Unix()
	if _, err := s.sql.Exec(`DELETE FROM sessions WHERE last_activity <= ?`, cutoff); err != nil {
		s.logger.Error("session prune failed", "err", err)
	}
}

func (s *SQLite) Close() error {
	close(s.stopCh)
	return s.sql.Close()
}
