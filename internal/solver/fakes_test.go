package solver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// recorder keeps an ordered log of negotiation and socket events shared by
// the fakes below.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

type fakeNegotiator struct {
	rec *recorder

	mu    sync.Mutex
	calls int
	ids   []string // session ids handed out in order; generated when exhausted
	err   error
	reqs  []*Request
}

func (n *fakeNegotiator) Negotiate(ctx context.Context, req *Request) (*Handle, error) {
	n.mu.Lock()
	n.calls++
	call := n.calls
	n.reqs = append(n.reqs, req)
	err := n.err
	id := fmt.Sprintf("session-%d", call)
	if len(n.ids) >= call {
		id = n.ids[call-1]
	}
	n.mu.Unlock()

	n.rec.add("negotiate:%d", call)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return &Handle{SessionID: id}, nil
}

func (n *fakeNegotiator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

type fakeDialer struct {
	rec *recorder

	mu    sync.Mutex
	conns []*fakeConn
	urls  []string
	fail  int // number of upcoming dials to fail

	// When gate is set, Dial reports on entered and then blocks until gate
	// is closed, ignoring ctx like a handshake that already completed.
	gate    chan struct{}
	entered chan struct{}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	if d.gate != nil {
		d.entered <- struct{}{}
		<-d.gate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.fail > 0 {
		d.fail--
		d.rec.add("dial-failed:%s", url)
		return nil, errors.New("connection refused")
	}
	c := newFakeConn(d.rec, url)
	d.conns = append(d.conns, c)
	d.rec.add("dial:%s", url)
	return c, nil
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// fakeConn feeds ReadMessage from a channel and records close frames.
type fakeConn struct {
	rec *recorder
	url string

	in        chan []byte
	end       chan error
	closed    chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	closeFrames []string
}

func newFakeConn(rec *recorder, url string) *fakeConn {
	return &fakeConn{
		rec:    rec,
		url:    url,
		in:     make(chan []byte, 16),
		end:    make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.in:
		return websocket.TextMessage, data, nil
	case err := <-c.end:
		return 0, nil, err
	case <-c.closed:
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	if messageType == websocket.CloseMessage {
		c.mu.Lock()
		c.closeFrames = append(c.closeFrames, string(data[2:]))
		c.mu.Unlock()
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		c.rec.add("close:%s", c.url)
		close(c.closed)
	})
	return nil
}

func (c *fakeConn) send(frame string) { c.in <- []byte(frame) }

// drop ends the stream without a closing handshake.
func (c *fakeConn) drop() { c.end <- io.ErrUnexpectedEOF }

// closeClean ends the stream with a completed closing handshake.
func (c *fakeConn) closeClean() {
	c.end <- &websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "done"}
}

func (c *fakeConn) sentCloseFrames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.closeFrames))
	copy(out, c.closeFrames)
	return out
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
