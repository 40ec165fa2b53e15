package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
	"github.com/gorilla/websocket"
)

const (
	feedInfo    = "info"
	feedMatches = "matches"
	feedError   = "error"
	feedStale   = "stale"

	feedPingEvery    = 30 * time.Second
	feedReadDeadline = 60 * time.Second
	feedWriteTimeout = 10 * time.Second
	feedQueryTimeout = 10 * time.Second
)

// FeedEvent is a server-sent event on the live match feed.
type FeedEvent struct {
	Type string `json:"type"` // "info" | "matches" | "error" | "stale"
	Data any    `json:"data,omitempty"`
}

// feedRequest is what a client sends to (re)query its matches. Missing
// filters fall back to the saved ones, then the defaults. Fields omitted from
// explicit filters take the defaults.
type feedRequest struct {
	Type    string          `json:"type"` // "filters"
	Tags    []string        `json:"tags,omitempty"`
	Filters json.RawMessage `json:"filters,omitempty"`
	Sort    string          `json:"sort,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	userID string
	conn   *websocket.Conn
	send   chan FeedEvent
}

// trySend drops the event when the client's buffer is full.
func (c *Client) trySend(evt FeedEvent) bool {
	select {
	case c.send <- evt:
		return true
	default:
		return false
	}
}

// Hub manages WebSocket client connections
type Hub struct {
	clientsByUser map[string]map[*Client]bool
	mu            sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		clientsByUser: make(map[string]map[*Client]bool),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clientsByUser[c.userID] == nil {
		h.clientsByUser[c.userID] = make(map[*Client]bool)
	}
	h.clientsByUser[c.userID][c] = true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if peers, ok := h.clientsByUser[c.userID]; ok {
		delete(peers, c)
		if len(peers) == 0 {
			delete(h.clientsByUser, c.userID)
		}
	}
}

// broadcast tells every connected client. Full buffers drop the event.
func (h *Hub) broadcast(evt FeedEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, peers := range h.clientsByUser {
		for c := range peers {
			c.trySend(evt)
		}
	}
}

func (h *Hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, peers := range h.clientsByUser {
		n += len(peers)
	}
	return n
}

func newUpgrader(origins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Non-browser clients send no Origin.
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		},
	}
}

// GET /ws/matches
func wsMatchesHandler(app *App, origins []string) http.HandlerFunc {
	upgrader := newUpgrader(origins)

	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromRequest(r, app.jwtSecret)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			app.log.Warn("ws_upgrade_failed", slog.String("user_id", userID), slog.String("err", err.Error()))
			return
		}

		client := &Client{
			userID: userID,
			conn:   conn,
			send:   make(chan FeedEvent, 16),
		}
		app.hub.register(client)
		app.metrics.feedClients.Inc()

		client.send <- FeedEvent{Type: feedInfo, Data: "connected"}

		done := make(chan struct{})
		go func() {
			clientWriter(client, done)
		}()
		app.clientReader(r.Context(), client)
		close(done)

		app.hub.unregister(client)
		app.metrics.feedClients.Dec()
	}
}

func (a *App) clientReader(ctx context.Context, c *Client) {
	defer c.conn.Close()

	c.conn.SetReadLimit(1 << 16)
	_ = c.conn.SetReadDeadline(time.Now().Add(feedReadDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(feedReadDeadline))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req feedRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			c.trySend(FeedEvent{Type: feedError, Data: "invalid message format"})
			continue
		}

		switch req.Type {
		case "filters":
			c.trySend(a.feedQuery(ctx, c.userID, req))
		default:
			c.trySend(FeedEvent{Type: feedError, Data: "unknown message type"})
		}
	}
}

// feedQuery answers one feed request with a matches or error event.
func (a *App) feedQuery(ctx context.Context, userID string, req feedRequest) FeedEvent {
	ctx, cancel := context.WithTimeout(ctx, feedQueryTimeout)
	defer cancel()

	var f match.Filters
	if len(req.Filters) > 0 && string(req.Filters) != "null" {
		f = a.defaults
		if err := json.Unmarshal(req.Filters, &f); err != nil {
			return FeedEvent{Type: feedError, Data: "invalid_filters"}
		}
		if err := f.Validate(); err != nil {
			return FeedEvent{Type: feedError, Data: "invalid_filters"}
		}
	} else {
		var err error
		if f, err = a.resolveFilters(ctx, userID, url.Values{}); err != nil {
			a.log.Warn("saved_filters_unavailable", slog.String("user_id", userID), slog.String("err", err.Error()))
		}
	}

	results, err := a.findMatchesFor(ctx, userID, req.Tags, f)
	switch {
	case err == nil:
	case errors.Is(err, match.ErrProfileNotFound):
		return FeedEvent{Type: feedError, Data: "profile_not_found"}
	case errors.Is(err, match.ErrStoreUnavailable):
		a.metrics.observeMatch("store_unavailable", 0)
		return FeedEvent{Type: feedError, Data: "store_unavailable"}
	default:
		a.log.Error("feed_match_failed", slog.String("user_id", userID), slog.String("err", err.Error()))
		return FeedEvent{Type: feedError, Data: "match_error"}
	}

	if req.Sort == "distance" {
		match.SortByDistance(results)
	}
	a.metrics.observeMatch("ok", len(results))
	return FeedEvent{Type: feedMatches, Data: results}
}

func clientWriter(c *Client, done <-chan struct{}) {
	ticker := time.NewTicker(feedPingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case evt := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			// ping to keep the connection alive
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
