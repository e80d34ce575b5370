package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dshills/simscript/internal/event"
	"github.com/dshills/simscript/internal/loop"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Message is a single frame on the event stream.
type Message struct {
	Type  string         `json:"type"`
	Kind  string         `json:"kind,omitempty"`
	Seq   uint64         `json:"seq,omitempty"`
	Kinds []string       `json:"kinds,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// Summarize converts ev to the fields sent to stream clients. Frame pixels
// are reduced to their size.
func Summarize(ev event.Event) map[string]any {
	switch e := ev.(type) {
	case event.FrameProduced:
		return map[string]any{"width": e.Width, "height": e.Height, "bytes": len(e.Pixels)}
	case event.MemoryWatchHit:
		return map[string]any{"is_write": e.IsWrite, "address": hex(e.Address), "value": e.Value}
	case event.CodeWatchHit:
		return map[string]any{"address": hex(e.Address)}
	case event.InterruptRaised:
		return map[string]any{"cause_mask": hex(e.CauseMask)}
	case event.InterruptCleared:
		return map[string]any{"cause_mask": hex(e.CauseMask)}
	default:
		return nil
	}
}

func hex(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}

// parseKinds reads a comma separated kind list. Empty means every kind.
func parseKinds(raw string) ([]event.Kind, error) {
	if strings.TrimSpace(raw) == "" {
		return event.Kinds(), nil
	}
	var kinds []event.Kind
	seen := make(map[event.Kind]bool)
	for _, name := range strings.Split(raw, ",") {
		k, err := event.ParseKind(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// client is one stream subscriber.
type client struct {
	conn *websocket.Conn
	send chan Message
	ids  []event.ListenerID
	log  zerolog.Logger
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	kinds, err := parseKinds(r.URL.Query().Get("kind"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.loop == nil || s.hub == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "no simulation")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan Message, s.buffer),
		log:  s.log.With().Str("remote", r.RemoteAddr).Logger(),
	}

	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	// Queued first so it precedes any event.
	c.send <- Message{Type: "subscribed", Kinds: names}

	if err := s.subscribe(r.Context(), c, kinds); err != nil {
		c.log.Warn().Err(err).Msg("subscribe failed")
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "simulation unavailable")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		conn.Close()
		return
	}
	if s.metrics != nil {
		s.metrics.StreamConnected()
	}
	c.log.Debug().Int("kinds", len(kinds)).Msg("stream opened")

	done := make(chan struct{})
	go s.writePump(c, done)
	s.readPump(c)
	close(done)

	s.unsubscribe(c)
	if s.metrics != nil {
		s.metrics.StreamDisconnected()
	}
	c.log.Debug().Msg("stream closed")
}

// subscribe registers one hub listener per kind on the loop goroutine.
func (s *Server) subscribe(ctx context.Context, c *client, kinds []event.Kind) error {
	return s.loop.Do(ctx, func() error {
		for _, kind := range kinds {
			id, err := s.hub.Register(kind, s.forward(c))
			if err != nil {
				for _, prev := range c.ids {
					s.hub.Unregister(prev)
				}
				c.ids = nil
				return err
			}
			c.ids = append(c.ids, id)
		}
		return nil
	})
}

// forward returns the listener handing events to c. It never blocks the
// loop goroutine.
func (s *Server) forward(c *client) event.Listener {
	return func(ev event.Event) error {
		kind := ev.Kind()
		msg := Message{
			Type: "event",
			Kind: kind.String(),
			Seq:  s.hub.Emissions(kind),
			Data: Summarize(ev),
		}
		select {
		case c.send <- msg:
		default:
			if s.metrics != nil {
				s.metrics.StreamDropped(kind)
			}
		}
		return nil
	}
}

// unsubscribe removes c's listeners without waiting for the loop.
func (s *Server) unsubscribe(c *client) {
	ids := c.ids
	remove := func() {
		for _, id := range ids {
			s.hub.Unregister(id)
		}
	}
	err := s.loop.Submit(remove)
	switch {
	case err == nil:
	case errors.Is(err, loop.ErrQueueFull):
		go func() {
			if err := s.loop.Do(context.Background(), func() error {
				remove()
				return nil
			}); err != nil && !errors.Is(err, loop.ErrLoopClosed) {
				c.log.Warn().Err(err).Msg("unsubscribe failed")
			}
		}()
	case errors.Is(err, loop.ErrLoopClosed):
	default:
		c.log.Warn().Err(err).Msg("unsubscribe failed")
	}
}

// readPump consumes control frames until the client goes away.
func (s *Server) readPump(c *client) {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("read failed")
			}
			return
		}
	}
}

// writePump owns all writes to the connection.
func (s *Server) writePump(c *client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			data, err := json.Marshal(msg)
			if err != nil {
				c.log.Error().Err(err).Msg("marshal failed")
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
