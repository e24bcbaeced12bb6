package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/diogo/streamchat/internal/auth"
)

// tokenSkew re-signs a token this long before it expires
const tokenSkew = 30 * time.Second

// TokenSigner issues tokens bound to a session id
type TokenSigner interface {
	Sign(sessionID string) (auth.Token, error)
}

// Session is the authenticated identity of one client run. It is created by
// Client.Init and discarded by Client.Close.
type Session struct {
	id     string
	signer TokenSigner
	now    func() time.Time

	mu    sync.Mutex
	token auth.Token
}

func newSession(signer TokenSigner, now func() time.Time) *Session {
	return &Session{
		id:     uuid.NewString(),
		signer: signer,
		now:    now,
	}
}

// ID returns the session id sent in the X-Session-ID header
func (s *Session) ID() string {
	return s.id
}

// Token returns a valid bearer token, signing a new one when the current
// token has expired or is about to.
func (s *Session) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.token.Expired(s.now(), tokenSkew) {
		return s.token.Value, nil
	}

	tok, err := s.signer.Sign(s.id)
	if err != nil {
		return "", err
	}
	s.token = tok
	return tok.Value, nil
}

// ExpiresAt returns the expiry of the current token
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token.ExpiresAt
}
