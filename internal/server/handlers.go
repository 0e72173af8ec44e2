package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/nipun-marak/realtime-avatar-chat/internal/voice"
)

// sessionCookie carries the signed session token between requests.
const sessionCookie = "avatar_session"

type startRequest struct {
	Username string `json:"username"`
}

type sessionResponse struct {
	SessionID       string      `json:"session_id"`
	Username        string      `json:"username"`
	AvatarState     AvatarState `json:"avatar_state"`
	VoiceEnabled    bool        `json:"voice_enabled"`
	Fullscreen      bool        `json:"fullscreen"`
	SpeechRecording bool        `json:"speech_recording"`
	Greeting        string      `json:"greeting,omitempty"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type transcriptRequest struct {
	Transcript string `json:"transcript"`
}

type chatResponse struct {
	Response    string      `json:"response"`
	AvatarState AvatarState `json:"avatar_state"`

	// Speech is set when voice is enabled: base64 audio, the viseme
	// timeline, and the estimated clip duration.
	Speech *voice.Speech `json:"speech,omitempty"`
}

type stateRequest struct {
	State AvatarState `json:"state"`
}

// handleSessionStart creates a session for the posted username, sets the
// session cookie, and returns the companion's greeting.
func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, errors.New("username is required"))
		return
	}

	ctx := r.Context()
	user, err := s.users.GetOrCreate(ctx, req.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	sess, token, err := s.sessions.Start(user.Username, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.metrics.ActiveSessions.Add(ctx, 1)

	greeting, err := s.companion.Greet(ctx, user.Username)
	if err != nil {
		s.log.Warn("greeting failed", "user", user.Username, "error", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	resp := sessionView(sess)
	resp.Greeting = greeting
	writeJSON(w, http.StatusOK, resp)
}

// handleSessionStatus returns the current session state.
func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionView(sess))
}

// handleSessionEnd tears the session down and expires the cookie.
func (s *Server) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := s.sessions.Get(c.Value); err == nil {
			s.metrics.ActiveSessions.Add(r.Context(), -1)
		}
		s.sessions.End(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

// handleChat runs one typed exchange through the companion.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	var req chatRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.exchange(w, r, sess, token, req.Message, "chat")
}

// handleSpeechTranscript feeds a browser speech-recognition transcript
// through the same exchange path as typed chat.
func (s *Server) handleSpeechTranscript(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	var req transcriptRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.exchange(w, r, sess, token, req.Transcript, "speech")
}

// exchange is the shared chat pipeline: thinking state, companion reply,
// optional speech synthesis, final avatar state, hub events.
func (s *Server) exchange(w http.ResponseWriter, r *http.Request, sess Session, token, message, kind string) {
	ctx := r.Context()

	if strings.HasPrefix(strings.TrimSpace(message), "/") {
		kind = "command"
	}

	s.setState(token, sess.ID, StateThinking)

	user, err := s.users.GetOrCreate(ctx, sess.Username)
	if err != nil {
		s.setState(token, sess.ID, StateIdle)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	start := time.Now()
	reply, err := s.companion.Respond(ctx, user, message)
	s.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.setState(token, sess.ID, StateIdle)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.metrics.RecordExchange(ctx, kind)

	resp := chatResponse{Response: reply, AvatarState: StateIdle}

	if sess.VoiceEnabled && s.synth != nil {
		ttsStart := time.Now()
		speech, err := s.synth.Speak(ctx, reply)
		s.metrics.TTSDuration.Record(ctx, time.Since(ttsStart).Seconds())
		if err != nil {
			// The reply still reaches the user as text.
			s.log.Warn("speech synthesis failed", "user", sess.Username, "error", err)
			s.metrics.RecordProviderError(ctx, "tts", "synthesize")
		} else {
			resp.Speech = speech
			resp.AvatarState = StateSpeaking
			s.hub.Publish(Event{Type: "audio_play", SessionID: sess.ID, Payload: speech})
		}
	}

	s.setState(token, sess.ID, resp.AvatarState)
	s.hub.Publish(Event{Type: "chat", SessionID: sess.ID, Payload: map[string]string{
		"message":  message,
		"response": reply,
	}})
	writeJSON(w, http.StatusOK, resp)
}

// handleAvatarState serves GET (current state) and POST (set state).
func (s *Server) handleAvatarStateGet(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]AvatarState{"avatar_state": sess.AvatarState})
}

func (s *Server) handleAvatarStateSet(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	var req stateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	updated, err := s.sessions.SetAvatarState(token, req.State)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.hub.Publish(Event{Type: "avatar_state", SessionID: sess.ID, Payload: updated.AvatarState})
	writeJSON(w, http.StatusOK, map[string]AvatarState{"avatar_state": updated.AvatarState})
}

// handleToggleVoice flips voice output for the session.
func (s *Server) handleToggleVoice(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	updated, err := s.sessions.ToggleVoice(token)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.hub.Publish(Event{Type: "voice_toggled", SessionID: sess.ID, Payload: updated.VoiceEnabled})
	writeJSON(w, http.StatusOK, map[string]bool{"voice_enabled": updated.VoiceEnabled})
}

// handleToggleFullscreen flips fullscreen mode for the session.
func (s *Server) handleToggleFullscreen(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	updated, err := s.sessions.ToggleFullscreen(token)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.hub.Publish(Event{Type: "fullscreen", SessionID: sess.ID, Payload: updated.Fullscreen})
	writeJSON(w, http.StatusOK, map[string]bool{"fullscreen": updated.Fullscreen})
}

// handleAudioPlay marks the avatar speaking while the browser plays a clip.
func (s *Server) handleAudioPlay(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	updated := s.setState(token, sess.ID, StateSpeaking)
	writeJSON(w, http.StatusOK, map[string]AvatarState{"avatar_state": updated})
}

// handleAudioStop returns the avatar to idle when playback finishes.
func (s *Server) handleAudioStop(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	s.hub.Publish(Event{Type: "audio_stop", SessionID: sess.ID})
	updated := s.setState(token, sess.ID, StateIdle)
	writeJSON(w, http.StatusOK, map[string]AvatarState{"avatar_state": updated})
}

// handleSpeechStart marks the browser as capturing speech input.
func (s *Server) handleSpeechStart(w http.ResponseWriter, r *http.Request) {
	s.speechRecording(w, r, true, StateListening)
}

// handleSpeechStop ends speech capture.
func (s *Server) handleSpeechStop(w http.ResponseWriter, r *http.Request) {
	s.speechRecording(w, r, false, StateIdle)
}

func (s *Server) speechRecording(w http.ResponseWriter, r *http.Request, recording bool, state AvatarState) {
	sess, token, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	updated, err := s.sessions.SetSpeechRecording(token, recording)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.setState(token, sess.ID, state)
	s.hub.Publish(Event{Type: "speech_recording", SessionID: sess.ID, Payload: recording})
	writeJSON(w, http.StatusOK, map[string]bool{"speech_recording": updated.SpeechRecording})
}

// handleWebsocket upgrades to a websocket and streams session events.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	if err := s.hub.Subscribe(r.Context(), w, r, sess.ID); err != nil {
		s.log.Debug("websocket closed", "session", sess.ID, "error", err)
	}
}

// setState updates the avatar state and publishes the change. Errors are
// swallowed: the session may have ended mid-exchange.
func (s *Server) setState(token, sessionID string, state AvatarState) AvatarState {
	updated, err := s.sessions.SetAvatarState(token, state)
	if err != nil {
		return state
	}
	s.hub.Publish(Event{Type: "avatar_state", SessionID: sessionID, Payload: updated.AvatarState})
	return updated.AvatarState
}

// requireSession resolves the session cookie, writing a 401 when absent or
// invalid.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) (Session, string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errors.New("session cookie is required"))
		return Session{}, "", false
	}
	sess, err := s.sessions.Get(c.Value)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return Session{}, "", false
	}
	return sess, c.Value, true
}

func sessionView(sess Session) sessionResponse {
	return sessionResponse{
		SessionID:       sess.ID,
		Username:        sess.Username,
		AvatarState:     sess.AvatarState,
		VoiceEnabled:    sess.VoiceEnabled,
		Fullscreen:      sess.Fullscreen,
		SpeechRecording: sess.SpeechRecording,
	}
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
