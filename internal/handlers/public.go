package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/linkdeck/linkdeck/internal/domain"
	"github.com/linkdeck/linkdeck/internal/hub"
	"github.com/linkdeck/linkdeck/internal/live"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to the peer with this period. Must be less than the read
	// deadline applied on each pong.
	pingPeriod = 54 * time.Second

	pongWait = 60 * time.Second
)

// PublicHandler serves the read side of a profile page: the current snapshot
// and a live update socket.
type PublicHandler struct {
	manager  *live.Manager
	hub      *hub.Hub
	upgrader websocket.Upgrader
}

// NewPublicHandler creates a new PublicHandler.
func NewPublicHandler(manager *live.Manager, h *hub.Hub) *PublicHandler {
	return &PublicHandler{
		manager: manager,
		hub:     h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// GetProfile handles GET /:username. It returns the profile's current
// snapshot as JSON.
func (h *PublicHandler) GetProfile(c echo.Context) error {
	ctx := c.Request().Context()
	username := c.Param("username")

	agg, err := h.manager.Acquire(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{Code: "not_found", Message: "Profile not found."})
		}
		slog.Error("Failed to activate profile view", "username", username, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not load profile."})
	}
	defer h.manager.Release(username)

	return c.JSON(http.StatusOK, NewSnapshotResponse(agg.Snapshot()))
}

// ServeWS handles GET /:username/ws. It upgrades to a WebSocket, sends the
// current snapshot, and then streams a fresh snapshot after every change.
// The profile's aggregate stays live for as long as the socket is open.
func (h *PublicHandler) ServeWS(c echo.Context) error {
	ctx := c.Request().Context()
	username := c.Param("username")

	agg, err := h.manager.Acquire(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{Code: "not_found", Message: "Profile not found."})
		}
		slog.Error("Failed to activate profile view", "username", username, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not load profile."})
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.manager.Release(username)
		slog.Error("WebSocket upgrade failed", "username", username, "error", err)
		return nil
	}

	subscriber := &hub.Subscriber{Username: username, Send: make(chan []byte, 16)}
	h.hub.Register <- subscriber

	// Wake the write pump once so the client gets the state it joined on.
	subscriber.Send <- nil

	go h.writePump(conn, subscriber, agg)
	go h.readPump(conn, subscriber, username)
	return nil
}

// writePump serializes a fresh snapshot whenever a notice wakes it and keeps
// the connection alive with pings. The notice content does not matter; it is
// only a signal that the aggregate changed, and bursts collapse into however
// many snapshots the socket can keep up with.
func (h *PublicHandler) writePump(conn *websocket.Conn, subscriber *hub.Subscriber, agg *live.Aggregate) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case _, ok := <-subscriber.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(NewSnapshotResponse(agg.Snapshot()))
			if err != nil {
				slog.Error("Failed to encode snapshot for socket", "username", subscriber.Username, "error", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and tears the view down when the socket
// closes.
func (h *PublicHandler) readPump(conn *websocket.Conn, subscriber *hub.Subscriber, username string) {
	defer func() {
		h.hub.Unregister <- subscriber
		h.manager.Release(username)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
