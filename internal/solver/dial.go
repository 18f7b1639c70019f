package solver

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	closeWriteTimeout = 2 * time.Second
	handshakeTimeout  = 15 * time.Second
)

// Conn is the subset of *websocket.Conn the Manager uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Dialer opens stream sockets.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocketDialer dials with gorilla/websocket.
type WebSocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

// Dial opens a WebSocket to url.
func (d WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		}
	}
	conn, _, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// StreamPath returns the WebSocket path for a session.
func StreamPath(mode Mode, sessionID string) string {
	if mode == ModeOptimization {
		return "/optimize/ws/" + url.PathEscape(sessionID)
	}
	return "/ws/" + url.PathEscape(sessionID)
}

// WSBaseFromHTTP converts http://host:port/prefix to ws://host:port/prefix.
func WSBaseFromHTTP(httpBase string) string {
	u, err := url.Parse(strings.TrimRight(httpBase, "/"))
	if err != nil || u.Host == "" {
		return "ws://127.0.0.1:8000"
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}

// isCleanClose reports whether err ended the read loop after a completed
// closing handshake. Abnormal closure (1006) is what gorilla reports for a
// dropped connection, so it counts as unclean.
func isCleanClose(err error) bool {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code != websocket.CloseAbnormalClosure && ce.Code != websocket.CloseTLSHandshake
}
