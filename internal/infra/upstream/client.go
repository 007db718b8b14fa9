package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultEndpoint is the upstream event stream
const DefaultEndpoint = "wss://ws2.onlyfans.com/ws2/"

const (
	handshakeTimeout = 15 * time.Second
	writeTimeout     = 10 * time.Second
	maxFrameSize     = 4 << 20
)

// Stream is one live upstream connection.
// ReadText must only be called from a single goroutine. WriteText is safe for concurrent use.
type Stream interface {
	WriteText(ctx context.Context, data []byte) error
	ReadText() ([]byte, error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// Dialer opens upstream streams
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Stream, error)
}

// WSDialer dials the upstream over WebSocket
type WSDialer struct {
	dialer *websocket.Dialer
	header http.Header
}

// NewWSDialer creates a new WebSocket dialer
func NewWSDialer() *WSDialer {
	return &WSDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		header: http.Header{},
	}
}

// Dial connects to endpoint
func (d *WSDialer) Dial(ctx context.Context, endpoint string) (Stream, error) {
	conn, resp, err := d.dialer.DialContext(ctx, endpoint, d.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", endpoint, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	conn.SetReadLimit(maxFrameSize)
	return &wsStream{conn: conn}, nil
}

// wsStream wraps a gorilla connection. gorilla allows one concurrent
// writer, so data frames go through writeMu. WriteControl and Close are
// safe alongside any other call.
type wsStream struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (s *wsStream) WriteText(ctx context.Context, data []byte) error {
	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsStream) ReadText() ([]byte, error) {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType == websocket.TextMessage || msgType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (s *wsStream) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// Close sends a close frame on a best-effort basis and closes the socket,
// unblocking any pending read or write. Safe to call more than once.
func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			fmt.Printf("[Upstream] Close frame not sent: %v\n", err)
		}
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// IsClosed reports whether err means the peer or we closed the stream
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	var ce *websocket.CloseError
	return errors.As(err, &ce)
}
