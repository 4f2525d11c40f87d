package authsdk

import (
	"context"
	"sync"
)

// Session is the pair a client holds between calls.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// complete reports whether both halves are present. A session missing either
// one is no session at all.
func (s *Session) complete() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// Store persists the current session. Get returns nil when there is none;
// Set(ctx, nil) clears it.
type Store interface {
	Get(ctx context.Context) (*Session, error)
	Set(ctx context.Context, s *Session) error
}

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	session *Session
}

func (m *MemoryStore) Get(context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	s := *m.session
	return &s, nil
}

func (m *MemoryStore) Set(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == nil {
		m.session = nil
		return nil
	}
	cp := *s
	m.session = &cp
	return nil
}
