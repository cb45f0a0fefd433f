package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sanxfxteam/NitroGen/pkg/protocol"
)

var (
	ErrTransportClosed  = errors.New("nitrogen transport: transport is closed")
	ErrAwaitingReply    = errors.New("nitrogen transport: send while a reply is outstanding")
	ErrNoPendingRequest = errors.New("nitrogen transport: recv without a pending request")
	ErrDesynced         = errors.New("nitrogen transport: stream desynchronized by a partial reply")
)

// reqState tracks which half of the request-reply cycle the transport is in.
type reqState int

const (
	stateIdle       reqState = iota // ready to send
	stateAwaitReply                 // request sent, reply outstanding
)

// ReqTransport is a strict request-reply channel over a single TCP
// connection. The alternation contract is enforced by the transport itself:
// sending twice without an intervening receive, or receiving without a prior
// send, fails with an invalid-use error rather than corrupting the
// request/reply correlation.
//
// When a Recv deadline elapses the exchange is abandoned: the transport
// returns to the idle state and the next Send first drains any late reply
// that has since arrived on the stream. If a timeout strikes in the middle
// of a frame the stream has no recoverable boundary left and the transport
// reports ErrDesynced from then on.
type ReqTransport struct {
	conn net.Conn
	fr   *frameReader

	mu     sync.Mutex
	state  reqState
	stale  int // abandoned exchanges whose replies may still arrive
	dirty  bool
	closed bool
}

// frameReader counts bytes consumed from the buffered stream so a timed-out
// read can tell a clean frame boundary from a partially consumed frame.
type frameReader struct {
	r io.Reader
	n int64
}

func (f *frameReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	f.n += int64(n)
	return n, err
}

// DialReq connects to a model server endpoint at addr ("host:port").
func DialReq(addr string) (*ReqTransport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("nitrogen transport: dial %s: %w", addr, err)
	}
	return NewReqTransport(conn), nil
}

// NewReqTransport wraps an established connection in the request-reply
// discipline. Ownership of conn passes to the transport.
func NewReqTransport(conn net.Conn) *ReqTransport {
	return &ReqTransport{
		conn: conn,
		fr:   &frameReader{r: bufio.NewReader(conn)},
	}
}

// Send transmits one framed request payload.
func (t *ReqTransport) Send(ctx context.Context, payload []byte) error {
	t.mu.Lock()
	if err := t.usable(); err != nil {
		t.mu.Unlock()
		return err
	}
	if t.state != stateIdle {
		t.mu.Unlock()
		return ErrAwaitingReply
	}
	stale := t.stale
	t.mu.Unlock()

	if stale > 0 {
		t.drainStale()
		t.mu.Lock()
		if t.dirty {
			t.mu.Unlock()
			return ErrDesynced
		}
		t.mu.Unlock()
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("nitrogen transport: set write deadline: %w", err)
		}
	} else {
		if err := t.conn.SetWriteDeadline(time.Time{}); err != nil {
			return fmt.Errorf("nitrogen transport: clear write deadline: %w", err)
		}
	}

	if err := protocol.WriteFrame(t.conn, payload); err != nil {
		return err
	}

	t.mu.Lock()
	t.state = stateAwaitReply
	t.mu.Unlock()
	return nil
}

// Recv blocks until the reply frame for the outstanding request arrives or
// the context deadline elapses. On timeout the exchange is abandoned and the
// transport is ready for the next Send.
func (t *ReqTransport) Recv(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	if err := t.usable(); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	if t.state != stateAwaitReply {
		t.mu.Unlock()
		return nil, ErrNoPendingRequest
	}
	t.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("nitrogen transport: set read deadline: %w", err)
		}
	} else {
		if err := t.conn.SetReadDeadline(time.Time{}); err != nil {
			return nil, fmt.Errorf("nitrogen transport: clear read deadline: %w", err)
		}
	}

	// When ctx is cancelled before the deadline, set an expired read
	// deadline so the blocked read unblocks promptly. The goroutine exits
	// cleanly when the read finishes normally.
	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = t.conn.SetReadDeadline(time.Now())
		case <-readDone:
		}
	}()

	start := t.fr.n
	payload, err := protocol.ReadFrame(t.fr)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		if isTimeout(err) || ctx.Err() != nil {
			if t.fr.n > start {
				// The reply started arriving but the deadline cut it off
				// mid-frame; there is no frame boundary to resynchronize on.
				t.dirty = true
				return nil, err
			}
			// Abandon the exchange. The reply, if it ever arrives, is stale
			// and will be drained before the next send.
			t.state = stateIdle
			t.stale++
		}
		return nil, err
	}
	t.state = stateIdle
	return payload, nil
}

// drainGrace bounds how long a send waits to collect each stale reply that
// already reached the socket. Replies that take longer are simply left to a
// later drain.
const drainGrace = 20 * time.Millisecond

// drainStale discards replies to abandoned exchanges that have already
// arrived on the stream. It waits at most drainGrace per frame; replies
// still in flight are left for the next drain.
func (t *ReqTransport) drainStale() {
	_ = t.conn.SetReadDeadline(time.Now().Add(drainGrace))
	for {
		t.mu.Lock()
		if t.stale == 0 {
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()

		start := t.fr.n
		if _, err := protocol.ReadFrame(t.fr); err != nil {
			if isTimeout(err) && t.fr.n > start {
				t.mu.Lock()
				t.dirty = true
				t.mu.Unlock()
			}
			return
		}

		t.mu.Lock()
		t.stale--
		t.mu.Unlock()
	}
}

// usable is called with t.mu held.
func (t *ReqTransport) usable() error {
	if t.closed {
		return ErrTransportClosed
	}
	if t.dirty {
		return ErrDesynced
	}
	return nil
}

// Close shuts down the transport. Safe to call more than once.
func (t *ReqTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

// RemoteAddr returns the address of the model server endpoint.
func (t *ReqTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// isTimeout reports whether err is a network timeout (an elapsed read or
// write deadline).
func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
