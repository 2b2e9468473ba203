// Package session holds per-client authentication state with
// activity-based expiry. The gateway only needs get/set/clear of a
// small record keyed by an opaque token; storage can be in-process
// (default) or sqlite-backed so sessions survive restarts.
package session

import "time"

// Session is the server-side state behind one session cookie.
type Session struct {
	Authenticated bool
	LastActivity  time.Time
}

// Store abstracts session storage. Concurrent Put calls for the same
// token are last-writer-wins; LastActivity is a heartbeat, not a
// consistency point.
type Store interface {
	Get(token string) (Session, bool)
	Put(token string, s Session)
	Delete(token string)
}
