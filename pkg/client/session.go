package client

import (
	"sync"
	"time"
)

// Session holds the bearer token for one signed-in user. It is created once
// and injected into a Client; Login and Logout are its only mutators.
type Session struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// NewSession returns an empty, signed-out session.
func NewSession() *Session {
	return &Session{}
}

// Login stores token until expiresAt. A zero expiresAt never expires.
func (s *Session) Login(token string, expiresAt time.Time) {
	s.mu.Lock()
	s.token = token
	s.expiresAt = expiresAt
	s.mu.Unlock()
}

// Logout clears the token.
func (s *Session) Logout() {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}

// Token returns the current token, or "" when signed out or expired.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.expiresAt.IsZero() && !time.Now().Before(s.expiresAt) {
		return ""
	}
	return s.token
}

// Active reports whether a usable token is held.
func (s *Session) Active() bool {
	return s.Token() != ""
}
