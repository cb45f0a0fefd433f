package client

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sanxfxteam/NitroGen/pkg/protocol"
	"github.com/sanxfxteam/NitroGen/pkg/server"
)

// startStub runs the in-repo stub model server on an ephemeral port.
func startStub(t *testing.T) (host string, port int, handler *server.StaticHandler) {
	t.Helper()
	handler = server.NewStaticHandler()
	srv := server.New(handler, server.WithLogger(zerolog.Nop()))
	addr, err := srv.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go srv.Serve()
	t.Cleanup(srv.Stop)
	return "127.0.0.1", addr.(*net.TCPAddr).Port, handler
}

// startRawServer runs fn for the first accepted connection, for scripting
// replies the stub server would never produce.
func startRawServer(t *testing.T, fn func(conn net.Conn, br *bufio.Reader)) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn, bufio.NewReader(conn))
	}()
	return "127.0.0.1", ln.Addr().(*net.TCPAddr).Port
}

// replyWith writes one canned response for every request read.
func replyWith(resp *protocol.Response) func(conn net.Conn, br *bufio.Reader) {
	return func(conn net.Conn, br *bufio.Reader) {
		for {
			if _, err := protocol.ReadFrame(br); err != nil {
				return
			}
			raw, err := protocol.EncodeResponse(resp)
			if err != nil {
				return
			}
			if err := protocol.WriteFrame(conn, raw); err != nil {
				return
			}
		}
	}
}

// toInt64 normalizes the integer types msgpack may decode into an untyped
// map value.
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func TestEndToEndSession(t *testing.T) {
	host, port, handler := startStub(t)

	c, err := Dial(host, port, WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	// info: the stub reports a fresh session.
	info, err := c.Info()
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	length, ok := toInt64(info["episode_length"])
	if !ok || length != 0 {
		t.Errorf("info[episode_length] = %v, want 0", info["episode_length"])
	}

	// predict: a black 64x64 frame yields one neutral action.
	pred, err := c.Predict(protocol.NewImage(64, 64))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(pred) != 1 {
		t.Fatalf("len(pred) = %d, want 1", len(pred))
	}
	a := pred[0]
	if a.JLeft != [2]float64{0, 0} || a.JRight != [2]float64{0, 0} {
		t.Errorf("sticks = %v/%v, want centered", a.JLeft, a.JRight)
	}
	if len(a.Buttons) != 2 || a.Buttons[0] != 0 || a.Buttons[1] != 0 {
		t.Errorf("buttons = %v, want [0 0]", a.Buttons)
	}

	// reset succeeds, returns no payload, and leaves the connection open.
	if err := c.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := handler.Resets(); got != 1 {
		t.Errorf("server acknowledged %d resets, want 1", got)
	}
	if _, err := c.Info(); err != nil {
		t.Errorf("Info after reset: %v", err)
	}

	// close, then verify operations fail fast instead of blocking.
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	start := time.Now()
	_, err = c.Predict(protocol.NewImage(64, 64))
	if !errors.Is(err, ErrClientClosed) {
		t.Errorf("Predict after close: got %v, want ErrClientClosed", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Predict after close blocked for %v", elapsed)
	}

	// Close is idempotent.
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestServerErrorMessage(t *testing.T) {
	host, port := startRawServer(t, replyWith(&protocol.Response{
		Status:  protocol.StatusError,
		Message: "bad frame",
	}))

	c, err := Dial(host, port, WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	_, err = c.Predict(protocol.NewImage(8, 8))
	var srvErr *ServerError
	if !errors.As(err, &srvErr) {
		t.Fatalf("got %v, want *ServerError", err)
	}
	if srvErr.Message != "bad frame" {
		t.Errorf("Message = %q, want %q", srvErr.Message, "bad frame")
	}
}

func TestServerErrorDefaultMessage(t *testing.T) {
	host, port := startRawServer(t, replyWith(&protocol.Response{
		Status: protocol.StatusError,
	}))

	c, err := Dial(host, port, WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	err = c.Reset()
	var srvErr *ServerError
	if !errors.As(err, &srvErr) {
		t.Fatalf("got %v, want *ServerError", err)
	}
	if srvErr.Message != "Unknown error" {
		t.Errorf("Message = %q, want %q", srvErr.Message, "Unknown error")
	}
}

func TestTimeout(t *testing.T) {
	host, port := startRawServer(t, func(conn net.Conn, br *bufio.Reader) {
		// Read requests, never answer.
		for {
			if _, err := protocol.ReadFrame(br); err != nil {
				return
			}
		}
	})

	const bound = 150 * time.Millisecond
	c, err := Dial(host, port, WithTimeout(bound), WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	_, err = c.Info()
	var toErr *TimeoutError
	if !errors.As(err, &toErr) {
		t.Fatalf("got %v, want *TimeoutError", err)
	}
	if toErr.Timeout != bound {
		t.Errorf("reported bound = %v, want %v", toErr.Timeout, bound)
	}

	// The connection stays usable: the next call runs a fresh exchange and
	// times out the same way instead of tripping an invalid-use error.
	_, err = c.Info()
	if !errors.As(err, &toErr) {
		t.Errorf("second call after timeout: got %v, want *TimeoutError", err)
	}
}

func TestMalformedResponse(t *testing.T) {
	host, port := startRawServer(t, func(conn net.Conn, br *bufio.Reader) {
		if _, err := protocol.ReadFrame(br); err != nil {
			return
		}
		// A frame whose payload is not a msgpack envelope.
		protocol.WriteFrame(conn, []byte{0xc1, 0xff, 0x00})
	})

	c, err := Dial(host, port, WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	_, err = c.Info()
	var malErr *MalformedResponseError
	if !errors.As(err, &malErr) {
		t.Fatalf("got %v, want *MalformedResponseError", err)
	}
}

func TestDialFailure(t *testing.T) {
	// Grab a port that nothing is listening on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, err = Dial("127.0.0.1", port, WithLogger(zerolog.Nop()))
	var setupErr *ConnectionSetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("got %v, want *ConnectionSetupError", err)
	}
	wantAddr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	if setupErr.Addr != wantAddr {
		t.Errorf("Addr = %q, want %q", setupErr.Addr, wantAddr)
	}
}

// rejectTransport fails the test if the client ever touches the wire.
type rejectTransport struct {
	t *testing.T
}

func (r *rejectTransport) Send(context.Context, []byte) error {
	r.t.Error("Send called for a request that should fail locally")
	return nil
}

func (r *rejectTransport) Recv(context.Context) ([]byte, error) {
	r.t.Error("Recv called for a request that should fail locally")
	return nil, nil
}

func (r *rejectTransport) Close() error { return nil }

func TestPredictShapeChecks(t *testing.T) {
	c, err := Dial(DefaultHost, DefaultPort,
		WithTransport(&rejectTransport{t}),
		WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if _, err := c.Predict(nil); err == nil {
		t.Error("Predict(nil): want error, got nil")
	}
	bad := &protocol.Image{Height: 4, Width: 4, Data: make([]byte, 5)}
	if _, err := c.Predict(bad); err == nil {
		t.Error("Predict with short buffer: want error, got nil")
	}
}
