package signaling

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jhon1466/PeerDrop/internal/dns"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var (
	ErrNotConnected = errors.New("not connected to signaling server")
	ErrClientClosed = errors.New("signaling client closed")
)

// Client manages the WebSocket connection to the signaling server.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	resolver  *dns.Resolver
	incoming  chan *Message
	outgoing  chan *Message
	done      chan struct{}
	closeOnce sync.Once

	// lost is closed when either pump exits.
	lost     chan struct{}
	lostOnce sync.Once
	log      zerolog.Logger
}

// NewClient creates a new signaling client
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		resolver:  dns.NewResolver(),
		incoming:  make(chan *Message, 16),
		outgoing:  make(chan *Message, 16),
		done:      make(chan struct{}),
		lost:      make(chan struct{}),
		log:       log.With().Str("component", "signaling").Logger(),
	}
}

// Connect establishes the WebSocket connection and starts the pumps.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	dialer := &websocket.Dialer{
		NetDialContext:   c.resolver.DialContext,
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   maxMessageSize,
		WriteBufferSize:  maxMessageSize,
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", u.Host, err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.log.Debug().Str("url", u.String()).Msg("connected")

	go c.readPump()
	go c.writePump()

	return nil
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.markLost()
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn().Err(err).Msg("connection lost")
			}
			return
		}

		c.log.Debug().Str("type", msg.Type).Msg("received")

		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.markLost()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.log.Warn().Err(err).Str("type", message.Type).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) markLost() {
	c.lostOnce.Do(func() { close(c.lost) })
}

// SendMessage queues a message for the server. It fails once the connection
// has dropped instead of filling the queue.
func (c *Client) SendMessage(msg *Message) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	select {
	case <-c.lost:
		return ErrDisconnected
	default:
	}
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.lost:
		return ErrDisconnected
	case <-c.done:
		return ErrClientClosed
	}
}

// Send builds and queues a message in one step.
func (c *Client) Send(msgType, roomID string, payload any) error {
	msg, err := NewMessage(msgType, roomID, payload)
	if err != nil {
		return err
	}
	return c.SendMessage(msg)
}

// Incoming returns the channel for receiving messages. It is closed when the
// connection drops.
func (c *Client) Incoming() <-chan *Message {
	return c.incoming
}

// Close closes the WebSocket connection and cleans up resources.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn == nil {
			close(c.incoming)
		}
	})
}
