// ABOUTME: WebSocket client for the remote control endpoint
// ABOUTME: Sends one command at a time and waits for the matching reply
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mictroll/mictroll-go/internal/discovery"
)

// Client is a remote control connection
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Dial connects to the control endpoint at addr (host:port)
func Dial(ctx context.Context, addr string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: discovery.ControlPath}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	c := &Client{conn: conn}

	// the server greets every connection with its status
	if _, err := c.receive(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read greeting: %w", err)
	}
	return c, nil
}

// Do sends a command and returns the status that answers it, skipping
// periodic pushes. A command the server rejects yields an *ErrorReply.
func (c *Client) Do(ctx context.Context, msgType string, payload interface{}) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return Status{}, err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return Status{}, fmt.Errorf("failed to marshal %s: %w", msgType, err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return Status{}, fmt.Errorf("failed to send %s: %w", msgType, err)
	}

	var replyErr *ErrorReply
	for {
		reply, err := c.receive(ctx)
		if err != nil {
			return Status{}, err
		}

		switch reply.Type {
		case TypeError:
			var er ErrorReply
			if err := reply.Decode(&er); err != nil {
				return Status{}, err
			}
			if er.Command != msgType {
				continue
			}
			replyErr = &er
			if er.Kind == KindBadRequest {
				return Status{}, replyErr
			}
		case TypeStatus:
			var st Status
			if err := reply.Decode(&st); err != nil {
				return Status{}, err
			}
			if st.Command != msgType {
				continue
			}
			if replyErr != nil {
				return st, replyErr
			}
			return st, nil
		}
	}
}

func (c *Client) receive(ctx context.Context) (Message, error) {
	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	c.conn.SetReadDeadline(deadline)

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return Message{}, fmt.Errorf("read failed: %w", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("invalid reply: %w", err)
	}
	return msg, nil
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
