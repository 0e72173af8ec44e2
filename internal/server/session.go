package server

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// AvatarState is the avatar's current animation mode.
type AvatarState string

const (
	StateIdle      AvatarState = "idle"
	StateListening AvatarState = "listening"
	StateThinking  AvatarState = "thinking"
	StateSpeaking  AvatarState = "speaking"
)

// IsValid reports whether s is a recognised avatar state.
func (s AvatarState) IsValid() bool {
	switch s {
	case StateIdle, StateListening, StateThinking, StateSpeaking:
		return true
	}
	return false
}

// ErrSessionNotFound is returned when a token does not resolve to a live
// session, either because it was tampered with or the session ended.
var ErrSessionNotFound = errors.New("server: session not found")

// Session is the per-browser conversation state. All mutation goes through
// [SessionManager] methods so concurrent requests stay consistent.
type Session struct {
	ID        string
	Username  string
	UserID    int64
	CreatedAt time.Time

	AvatarState     AvatarState
	VoiceEnabled    bool
	Fullscreen      bool
	SpeechRecording bool
}

// SessionManager issues HMAC-signed session tokens and tracks live sessions
// in memory. Session state is ephemeral; the durable user record lives in
// the memory store.
type SessionManager struct {
	secret []byte

	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionManager creates a manager signing tokens with secret. An empty
// secret gets a random one, which invalidates tokens across restarts.
func NewSessionManager(secret string) *SessionManager {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}
	return &SessionManager{
		secret:   key,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Start creates a session for username and returns it with a signed token
// for the session cookie. Voice starts enabled and the avatar idle.
func (m *SessionManager) Start(username string, userID int64) (Session, string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return Session{}, "", fmt.Errorf("server: generate session id: %w", err)
	}
	id := base64.RawURLEncoding.EncodeToString(raw)

	s := &Session{
		ID:           id,
		Username:     username,
		UserID:       userID,
		CreatedAt:    m.now(),
		AvatarState:  StateIdle,
		VoiceEnabled: true,
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	return *s, m.sign(id), nil
}

// Get resolves a signed token to its session. The signature is verified
// before the lookup, so a forged token never reaches the session map.
func (m *SessionManager) Get(token string) (Session, error) {
	id, ok := m.verify(token)
	if !ok {
		return Session{}, ErrSessionNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return *s, nil
}

// End removes the session for token. Ending an unknown session is a no-op;
// the client's goal state is reached either way.
func (m *SessionManager) End(token string) {
	id, ok := m.verify(token)
	if !ok {
		return
	}
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// SetAvatarState updates the avatar state for the session behind token.
func (m *SessionManager) SetAvatarState(token string, state AvatarState) (Session, error) {
	if !state.IsValid() {
		return Session{}, fmt.Errorf("server: invalid avatar state %q", state)
	}
	return m.update(token, func(s *Session) { s.AvatarState = state })
}

// ToggleVoice flips voice output for the session behind token.
func (m *SessionManager) ToggleVoice(token string) (Session, error) {
	return m.update(token, func(s *Session) { s.VoiceEnabled = !s.VoiceEnabled })
}

// ToggleFullscreen flips fullscreen mode for the session behind token.
func (m *SessionManager) ToggleFullscreen(token string) (Session, error) {
	return m.update(token, func(s *Session) { s.Fullscreen = !s.Fullscreen })
}

// SetSpeechRecording marks whether the browser is capturing speech input.
func (m *SessionManager) SetSpeechRecording(token string, recording bool) (Session, error) {
	return m.update(token, func(s *Session) { s.SpeechRecording = recording })
}

func (m *SessionManager) update(token string, fn func(*Session)) (Session, error) {
	id, ok := m.verify(token)
	if !ok {
		return Session{}, ErrSessionNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	fn(s)
	return *s, nil
}

// sign produces "id.sig" with an HMAC-SHA256 signature over id.
func (m *SessionManager) sign(id string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(id))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return id + "." + sig
}

// verify checks the token signature and returns the embedded session ID.
func (m *SessionManager) verify(token string) (string, bool) {
	id, sig, ok := strings.Cut(token, ".")
	if !ok || id == "" {
		return "", false
	}

	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(id))
	want := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return "", false
	}
	return id, true
}
