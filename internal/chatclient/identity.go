package chatclient

import (
	"context"
	"strings"
	"sync"
)

// Identity supplies the sign-in token for the session cookie.
type Identity interface {
	Open(ctx context.Context) error
	Token(ctx context.Context) (string, error)
	SignOut(ctx context.Context) error
	Close() error
}

// StaticIdentity hands out a fixed token until it is signed out.
type StaticIdentity struct {
	mu     sync.Mutex
	token  string
	closed bool
}

func NewStaticIdentity(token string) *StaticIdentity {
	return &StaticIdentity{token: strings.TrimSpace(token)}
}

func (s *StaticIdentity) Open(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = false
	return nil
}

func (s *StaticIdentity) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.token == "" {
		return "", ErrNotSignedIn
	}
	return s.token, nil
}

// SetToken replaces the token, for example after the user pasted a new one.
func (s *StaticIdentity) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = strings.TrimSpace(token)
}

func (s *StaticIdentity) SignOut(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

func (s *StaticIdentity) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
