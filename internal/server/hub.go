package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Event is one server-push message delivered to websocket subscribers. The
// browser uses these to keep the avatar, audio player, and task panel in
// sync without polling.
type Event struct {
	// Type names the event: "avatar_state", "chat", "audio_play",
	// "audio_stop", "speech_recording", "voice_toggled", "fullscreen".
	Type string `json:"type"`

	// SessionID scopes the event to one browser session.
	SessionID string `json:"session_id"`

	// Payload is the event body; its shape depends on Type.
	Payload any `json:"payload,omitempty"`
}

// subscriber is one connected websocket client. Slow clients get their
// buffer dropped and the connection closed rather than blocking publishers.
type subscriber struct {
	sessionID string
	events    chan Event
	closeSlow func()
}

// Hub fans events out to websocket subscribers. Events are scoped per
// session: a subscriber only receives events for the session it
// authenticated as. Safe for concurrent use.
type Hub struct {
	log *slog.Logger

	// writeTimeout bounds a single event write to one client.
	writeTimeout time.Duration

	// eventBuffer is the per-subscriber queue length before the client is
	// considered too slow and disconnected.
	eventBuffer int

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:          log,
		writeTimeout: 5 * time.Second,
		eventBuffer:  16,
		subscribers:  make(map[*subscriber]struct{}),
	}
}

// Publish queues ev for every subscriber of ev.SessionID. Subscribers whose
// buffers are full are disconnected; a stuck browser must not stall the
// chat pipeline.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subscribers {
		if s.sessionID != ev.SessionID {
			continue
		}
		select {
		case s.events <- ev:
		default:
			go s.closeSlow()
		}
	}
}

// Subscribe upgrades the request to a websocket and streams events for
// sessionID until the client disconnects or ctx is cancelled.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request, sessionID string) error {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	s := &subscriber{
		sessionID: sessionID,
		events:    make(chan Event, h.eventBuffer),
		closeSlow: func() {
			conn.Close(websocket.StatusPolicyViolation, "subscriber too slow to keep up")
		},
	}
	h.add(s)
	defer h.remove(s)

	// Drain reads so pings are answered and closure is detected.
	readCtx := conn.CloseRead(ctx)

	for {
		select {
		case <-readCtx.Done():
			return readCtx.Err()
		case ev := <-s.events:
			if err := h.write(readCtx, conn, ev); err != nil {
				return err
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	h.subscribers[s] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, s)
	h.mu.Unlock()
}
