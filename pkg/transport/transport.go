// Package transport provides the message-level channel between the NitroGen
// client and the model server. The concrete implementation frames envelope
// payloads over a single TCP connection and enforces the strict send/receive
// alternation the request-reply protocol requires.
package transport

import "context"

// Transport is the abstract request-reply channel used by the NitroGen
// client. Each Send transmits one complete serialized envelope and each Recv
// blocks until the matching reply frame arrives. Implementations enforce
// strict alternation: a second Send before the reply to the first has been
// received (or abandoned) is an invalid-use error, as is a Recv with no
// request outstanding.
type Transport interface {
	// Send transmits a single serialized request envelope. The context may
	// carry a deadline or cancellation.
	Send(ctx context.Context, payload []byte) error

	// Recv blocks until the reply frame for the outstanding request arrives.
	// The context may carry a deadline or cancellation; when the deadline
	// elapses the outstanding exchange is abandoned and the transport is
	// usable for the next Send.
	Recv(ctx context.Context) (payload []byte, err error)

	// Close shuts down the transport, releasing the connection. It is safe
	// to call Close more than once; blocked operations return an error.
	Close() error
}
