package session

import (
	"sync"
	"time"
)

// Memory is the default in-process Store. A background janitor prunes
// sessions idle for longer than the configured lifetime so the map
// cannot grow without bound under abandoned cookies.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]Session
	lifetime time.Duration
	stopCh   chan struct{}
}

func NewMemory(lifetime time.Duration) *Memory {
	m := &Memory{
		sessions: make(map[string]Session),
		lifetime: lifetime,
		stopCh:   make(chan struct{}),
	}
	go m.janitorLoop()
	return m
}

func (m *Memory) Get(token string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	return s, ok
}

func (m *Memory) Put(token string, s Session) {
	if token == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = s
}

func (m *Memory) Delete(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

func (m *Memory) janitorLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.prune(time.Now())
		case <-m.stopCh:
			return
		}
	}
}

func (m *Memory) prune(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tok, s := range m.sessions {
		if now.Sub(s.LastActivity) > m.lifetime {
			delete(m.sessions, tok)
		}
	}
}

func (m *Memory) Stop() {
	close(m.stopCh)
}
