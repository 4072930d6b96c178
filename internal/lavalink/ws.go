package lavalink

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hxnx/wormbot/internal/music"
)

type wsConn = *websocket.Conn

const (
	wsDialTimeout      = 10 * time.Second
	wsReconnectBackoff = 5 * time.Second
	wsMaxBackoff       = 60 * time.Second
)

func logf(format string, args ...any) {
	log.Printf("lavalink: "+format, args...)
}

func (c *Client) wsURL() string {
	scheme := "ws"
	if c.cfg.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/v4/websocket", scheme, c.cfg.Host, c.cfg.Port)
}

// Open dials the node's event websocket and starts the read loop. The
// loop reconnects on its own until Close is called. SetUserID must have
// been called first.
func (c *Client) Open() error {
	c.mu.RLock()
	userID := c.userID
	c.mu.RUnlock()
	if userID == "" {
		return fmt.Errorf("%w: user id not set", music.ErrConnection)
	}

	conn, err := c.dial(userID)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	go c.readLoop(userID)
	return nil
}

func (c *Client) dial(userID string) (wsConn, error) {
	header := http.Header{}
	header.Set("Authorization", c.cfg.Password)
	header.Set("User-Id", userID)
	header.Set("Client-Name", "wormbot/1.0")

	dialer := websocket.Dialer{HandshakeTimeout: wsDialTimeout}
	conn, _, err := dialer.Dial(c.wsURL(), header)
	if err != nil {
		return nil, fmt.Errorf("%w: websocket dial: %v", music.ErrConnection, err)
	}
	return conn, nil
}

// Close tears down the websocket and stops the reconnect loop.
func (c *Client) Close() {
	c.once.Do(func() { close(c.closed) })

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
}

func (c *Client) readLoop(userID string) {
	backoff := wsReconnectBackoff

	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn != nil {
			err := c.readMessages(conn)
			select {
			case <-c.closed:
				return
			default:
			}
			logf("websocket closed: %v, reconnecting", err)
			c.markAllDisconnected()
		}

		select {
		case <-c.closed:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dial(userID)
		if err != nil {
			logf("reconnect failed: %v", err)
			backoff *= 2
			if backoff > wsMaxBackoff {
				backoff = wsMaxBackoff
			}
			c.connMu.Lock()
			c.conn = nil
			c.connMu.Unlock()
			continue
		}

		backoff = wsReconnectBackoff
		c.connMu.Lock()
		c.conn = conn
		c.connMu.Unlock()
	}
}

func (c *Client) readMessages(conn wsConn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logf("unreadable message: %v", err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg wsMessage) {
	switch msg.Op {
	case "ready":
		c.mu.Lock()
		c.sessionID = msg.SessionID
		c.mu.Unlock()
		logf("node ready, session %s (resumed=%t)", msg.SessionID, msg.Resumed)
	case "playerUpdate":
		if msg.State == nil {
			return
		}
		c.mu.Lock()
		if p := c.players[msg.GuildID]; p != nil {
			p.connected = msg.State.Connected
		}
		c.mu.Unlock()
	case "event":
		c.handleEvent(msg)
	case "stats":
		// Ignored; the bot has no use for node load figures.
	}
}

func (c *Client) handleEvent(msg wsMessage) {
	switch msg.Type {
	case "TrackEndEvent":
		if c.trackEnd != nil {
			go c.trackEnd(msg.GuildID, endReason(msg.Reason))
		}
	case "TrackExceptionEvent":
		logf("track exception in guild %s", msg.GuildID)
	case "TrackStuckEvent":
		logf("track stuck in guild %s", msg.GuildID)
	case "WebSocketClosedEvent":
		c.mu.Lock()
		if p := c.players[msg.GuildID]; p != nil {
			p.connected = false
		}
		c.mu.Unlock()
	}
}

func (c *Client) markAllDisconnected() {
	c.mu.Lock()
	c.sessionID = ""
	for _, p := range c.players {
		p.connected = false
	}
	c.mu.Unlock()
}
