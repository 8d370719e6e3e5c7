package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"supernode/core/events"
)

const (
	wsWriteTimeout = 10 * time.Second
)

type eventUpdatePayload struct {
	Sequence   uint64            `json:"sequence"`
	Cursor     string            `json:"cursor"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// ServeEvents upgrades the request to a websocket and streams ledger events,
// starting after the optional cursor query parameter. An optional pool
// parameter restricts the stream to one pool.
func (s *Server) ServeEvents(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.stream == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
	pool := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("pool")))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, cursor, pool); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			s.logger.Debug("event stream ended", "error", err)
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, cursor, pool string) error {
	updates, cancel, backlog, err := s.stream.Subscribe(ctx, cursor)
	if err != nil {
		_ = conn.Close(websocket.StatusPolicyViolation, err.Error())
		return nil
	}
	defer cancel()

	for _, update := range backlog {
		if err := writeEventUpdate(ctx, conn, update, pool); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeEventUpdate(ctx, conn, update, pool); err != nil {
				return err
			}
		}
	}
}

func writeEventUpdate(ctx context.Context, conn *websocket.Conn, update events.Update, pool string) error {
	if update.Event == nil {
		return nil
	}
	if pool != "" && strings.ToLower(update.Event.Attr("pool")) != pool {
		return nil
	}
	data, err := json.Marshal(eventUpdatePayload{
		Sequence:   update.Sequence,
		Cursor:     update.Cursor,
		Type:       update.Event.Type,
		Attributes: update.Event.Attributes,
	})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
