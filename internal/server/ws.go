package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// feedMessage is one push frame on the session WebSocket feed.
type feedMessage struct {
	Type             string `json:"type"`
	Message          string `json:"message,omitempty"`
	RemainingSeconds int    `json:"remaining_seconds,omitempty"`
	CountdownSeconds *int   `json:"countdown_seconds,omitempty"`
	DisplaySeconds   int    `json:"display_seconds,omitempty"`
	Outcome          string `json:"outcome,omitempty"`
	Cause            string `json:"cause,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The quiz page and the gateway share an origin in deployment; the
	// access-code check upstream is the real authentication.
	CheckOrigin: func(*http.Request) bool { return true },
}

// hub fans feed messages out to every connected subscriber of one session.
type hub struct {
	mu     sync.Mutex
	subs   map[chan feedMessage]bool
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[chan feedMessage]bool)}
}

func (h *hub) subscribe() chan feedMessage {
	ch := make(chan feedMessage, 16)
	h.mu.Lock()
	if h.closed {
		close(ch)
	} else {
		h.subs[ch] = true
	}
	h.mu.Unlock()
	return ch
}

func (h *hub) unsubscribe(ch chan feedMessage) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// broadcast delivers without blocking; a subscriber that cannot keep up
// drops frames rather than stalling enforcement callbacks.
func (h *hub) broadcast(msg feedMessage) {
	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
		}
	}
	h.mu.Unlock()
}

func (h *hub) close() {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		for ch := range h.subs {
			delete(h.subs, ch)
			close(ch)
		}
	}
	h.mu.Unlock()
}

// getFeed upgrades to WebSocket and streams enforcement state: a ticking
// remaining-time frame once per second plus warning, countdown, and
// terminal frames as they happen.
func (s *Server) getFeed(c echo.Context) error {
	h, ok := s.lookup(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown session")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	events := h.hub.subscribe()
	defer h.hub.unsubscribe(events)

	// Reader loop only to observe close frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return nil
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			if err := conn.WriteJSON(msg); err != nil {
				return nil
			}
			if msg.Type == "terminal" {
				// Flush the terminal frame, then let the client close.
				continue
			}
		case <-ticker.C:
			snap := h.sess.Snapshot()
			msg := feedMessage{
				Type:             "tick",
				RemainingSeconds: snap.RemainingSeconds,
				CountdownSeconds: snap.CountdownSeconds,
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Str("session", h.sess.ID()).Msg("feed write failed")
				return nil
			}
		}
	}
}
