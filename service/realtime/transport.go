package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/itiky/synclist/model"
	"github.com/itiky/synclist/session"
)

// SocketPath is the realtime endpoint path relative to the API origin.
const SocketPath = "/socket"

// ErrClosed is returned by Conn operations after Close.
var ErrClosed = errors.New("connection closed")

type (
	// Transport opens realtime channel connections.
	Transport interface {
		Connect(ctx context.Context) (Conn, error)
	}

	// Conn is a bidirectional realtime channel connection.
	Conn interface {
		// Emit sends an event
		Emit(event string, data interface{}) error
		// Receive blocks until the next event arrives or the connection fails / closes.
	// Malformed frames are skipped
		Receive() (model.Envelope, error)
		Close() error
	}

	// WebsocketTransport implements Transport over a websocket on the API origin.
	WebsocketTransport struct {
		url          string
		session      *session.Session
		dialer       *websocket.Dialer
		writeTimeout time.Duration
	}

	// websocketConn implements Conn.
	websocketConn struct {
		// Serializes writes
		sync.Mutex
		conn         *websocket.Conn
		writeTimeout time.Duration
		closeOnce    sync.Once
		closeErr     error
	}
)

// Connect implements Transport interface.
func (t *WebsocketTransport) Connect(ctx context.Context) (Conn, error) {
	header := http.Header{}
	if t.session != nil {
		if token, ok := t.session.Token(); ok {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	conn, res, err := t.dialer.DialContext(ctx, t.url, header)
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("dial (%s): %d: %w", t.url, res.StatusCode, err)
		}
		return nil, fmt.Errorf("dial (%s): %w", t.url, err)
	}

	return &websocketConn{conn: conn, writeTimeout: t.writeTimeout}, nil
}

// String implements the stringer interface.
func (t *WebsocketTransport) String() string {
	return fmt.Sprintf("WebsocketTransport (%s)", t.url)
}

// Emit implements Conn interface.
func (c *websocketConn) Emit(event string, data interface{}) error {
	e, err := model.NewEnvelope(event, data)
	if err != nil {
		return err
	}

	c.Lock()
	defer c.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return fmt.Errorf("%s: set deadline: %w", event, err)
	}
	if err := c.conn.WriteJSON(e); err != nil {
		return fmt.Errorf("%s: write: %w", event, err)
	}

	return nil
}

// Receive implements Conn interface.
func (c *websocketConn) Receive() (model.Envelope, error) {
	for {
		mt, p, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return model.Envelope{}, ErrClosed
			}
			return model.Envelope{}, fmt.Errorf("read: %w", err)
		}
		if mt != websocket.TextMessage {
			continue
		}

		e := model.Envelope{}
		if err := json.Unmarshal(p, &e); err != nil {
			log.Printf("realtime: skipping malformed frame (%d bytes): %v", len(p), err)
			continue
		}

		return e, nil
	}
}

// Close implements Conn interface.
func (c *websocketConn) Close() error {
	c.closeOnce.Do(func() {
		c.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
		c.Unlock()

		c.closeErr = c.conn.Close()
	})

	return c.closeErr
}

// SocketUrl builds the realtime endpoint url from the API origin (http -> ws, https -> wss).
func SocketUrl(apiUrl *url.URL) (string, error) {
	u := *apiUrl
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%s: unsupported scheme: %s", "apiUrl", u.Scheme)
	}

	return u.JoinPath(SocketPath).String(), nil
}

// NewWebsocketTransport creates a new WebsocketTransport object.
// Session is optional: the credential is attached to the handshake if present.
func NewWebsocketTransport(apiUrl *url.URL, sess *session.Session, handshakeTimeout time.Duration) (*WebsocketTransport, error) {
	if apiUrl == nil {
		return nil, fmt.Errorf("%s: nil", "apiUrl")
	}
	if handshakeTimeout <= 0 {
		return nil, fmt.Errorf("%s: must be GT 0", "handshakeTimeout")
	}

	socketUrl, err := SocketUrl(apiUrl)
	if err != nil {
		return nil, err
	}

	return &WebsocketTransport{
		url:     socketUrl,
		session: sess,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		writeTimeout: handshakeTimeout,
	}, nil
}
