package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/dialogs/internal/logging"
)

// ErrClientClosed is returned when sending on a closed connection.
var ErrClientClosed = errors.New("hub: client closed")

// defaultWriteTimeout bounds each frame write so a viewer that stops
// reading cannot stall the emit path.
const defaultWriteTimeout = 10 * time.Second

// Client represents one connected WebSocket viewer.
type Client struct {
	ConnID       string
	Socket       *websocket.Conn
	ConnectedAt  time.Time
	WriteTimeout time.Duration

	mu     sync.Mutex
	closed bool
	log    *logging.Logger
}

// NewClient wraps a newly upgraded WebSocket connection.
func NewClient(conn *websocket.Conn, log *logging.Logger) *Client {
	return &Client{
		ConnID:       uuid.New().String(),
		Socket:       conn,
		ConnectedAt:  time.Now(),
		WriteTimeout: defaultWriteTimeout,
		log:          log,
	}
}

// Send sends a frame to the client under the write deadline. Thread-safe.
func (c *Client) Send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.Socket.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
	return c.Socket.WriteJSON(frame)
}

// SendEvent sends a named event with payload.
func (c *Client) SendEvent(event string, payload any, seq int64) error {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// ReadFrame reads the next frame from the WebSocket.
func (c *Client) ReadFrame() (Frame, error) {
	_, msg, err := c.Socket.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Close closes the WebSocket connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.Socket.Close()
}
