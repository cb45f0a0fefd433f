// Package client implements the NitroGen inference session client: a thin,
// synchronous access layer that ships a captured game frame to the model
// server and returns the predicted controller actions, plus the session
// control calls (reset, info).
//
// A Client owns exactly one request-reply channel. Every operation is one
// atomic round trip — build the envelope, send it, block for the reply
// bounded by the configured timeout, validate the status — and every failure
// propagates to the caller as a typed error; nothing is retried. Operations
// are serialized by an internal guard because the underlying transport
// forbids overlapping exchanges.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sanxfxteam/NitroGen/pkg/protocol"
	"github.com/sanxfxteam/NitroGen/pkg/transport"
)

// Connection defaults, matching the model server's stock configuration.
const (
	DefaultHost    = "localhost"
	DefaultPort    = 5555
	DefaultTimeout = 30 * time.Second
)

// Option configures a Client during construction. There is no runtime
// reconfiguration; the connection keeps its settings for its whole life.
type Option func(*Client)

// WithTimeout sets the receive-wait bound for every round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithTransport overrides the transport used by the Client. This is useful
// for testing or when a custom channel is needed.
func WithTransport(tr transport.Transport) Option {
	return func(c *Client) {
		c.tr = tr
	}
}

// WithLogger replaces the logger used for the lifecycle notices.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// Client is an inference session client bound to one model server endpoint.
// It has exactly two states, open and closed, with a single one-way
// transition triggered by Close. The zero value is not usable; construct
// with Dial.
type Client struct {
	addr    string
	timeout time.Duration
	tr      transport.Transport
	log     zerolog.Logger

	mu     sync.Mutex // serializes operations and guards closed
	closed bool
}

// Dial opens a connection to the model server at host:port. Close must be
// called to release the channel, typically via defer.
func Dial(host string, port int, opts ...Option) (*Client, error) {
	c := &Client{
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		timeout: DefaultTimeout,
		log:     zerolog.New(os.Stderr).With().Timestamp().Str("component", "nitrogen-client").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tr == nil {
		tr, err := transport.DialReq(c.addr)
		if err != nil {
			return nil, &ConnectionSetupError{Addr: c.addr, Err: err}
		}
		c.tr = tr
	}
	c.log.Info().Str("addr", c.addr).Dur("timeout", c.timeout).Msg("connected to model server")
	return c, nil
}

// Predict sends one H×W×3 RGB frame and returns the predicted action
// sequence. Only the frame's shape is checked locally; its content is the
// server's concern and a frame the model rejects surfaces as a ServerError.
func (c *Client) Predict(img *protocol.Image) ([]protocol.Action, error) {
	if img == nil {
		return nil, fmt.Errorf("nitrogen: predict requires an image")
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	resp, err := c.exchange(&protocol.Request{Type: protocol.TypePredict, Image: img})
	if err != nil {
		return nil, err
	}
	return resp.Pred, nil
}

// Reset clears the server-side session state (for example the model's
// accumulated temporal context). The client has no visibility into what is
// cleared; success means only that the server acknowledged.
func (c *Client) Reset() error {
	if _, err := c.exchange(&protocol.Request{Type: protocol.TypeReset}); err != nil {
		return err
	}
	c.log.Info().Msg("session reset")
	return nil
}

// Info returns the server's description of the session state. The mapping
// is defined entirely by the server.
func (c *Client) Info() (map[string]interface{}, error) {
	resp, err := c.exchange(&protocol.Request{Type: protocol.TypeInfo})
	if err != nil {
		return nil, err
	}
	return resp.Info, nil
}

// Close releases the channel. Safe to call more than once; operations after
// Close fail fast with ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.tr.Close()
	c.log.Info().Msg("connection closed")
	return err
}

// Addr returns the endpoint this client was dialed against.
func (c *Client) Addr() string { return c.addr }

// Timeout returns the configured receive-wait bound.
func (c *Client) Timeout() time.Duration { return c.timeout }

// exchange performs one atomic request/response round trip. The mutex makes
// overlapping calls from multiple goroutines queue up instead of violating
// the transport's send/receive alternation.
func (c *Client) exchange(req *protocol.Request) (*protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}

	raw, err := protocol.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.tr.Send(ctx, raw); err != nil {
		return nil, fmt.Errorf("nitrogen: send %s request: %w", req.Type, err)
	}

	reply, err := c.tr.Recv(ctx)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{Timeout: c.timeout}
		}
		return nil, fmt.Errorf("nitrogen: receive %s reply: %w", req.Type, err)
	}

	resp, err := protocol.DecodeResponse(reply)
	if err != nil {
		return nil, &MalformedResponseError{Err: err}
	}
	if resp.Status != protocol.StatusOK {
		msg := resp.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return nil, &ServerError{Message: msg}
	}
	return resp, nil
}

// isTimeout reports whether err is an elapsed receive bound, either as a
// network deadline or as context expiry.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
