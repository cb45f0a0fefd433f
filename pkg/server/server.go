package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sanxfxteam/NitroGen/pkg/protocol"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger replaces the server's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// Server accepts model-client connections and answers framed envelope
// requests. Each connection is served sequentially — one request, one
// response — which is exactly the alternation the protocol demands, so a
// well-behaved client never has more than one frame in flight.
type Server struct {
	handler Handler
	log     zerolog.Logger

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}
	done  chan struct{}
	wg    sync.WaitGroup
}

// New creates a Server dispatching to handler.
func New(handler Handler, opts ...Option) *Server {
	s := &Server{
		handler: handler,
		log:     zerolog.New(os.Stderr).With().Timestamp().Str("component", "nitrogen-server").Logger(),
		conns:   make(map[net.Conn]struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds to addr and returns the bound address, which is useful when
// addr requests an ephemeral port.
func (s *Server) Listen(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("nitrogen server: listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return ln.Addr(), nil
}

// Serve accepts connections until Stop is called. Listen must have been
// called first.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return fmt.Errorf("nitrogen server: Serve called before Listen")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.done
		cancel()
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("model server listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil // graceful shutdown
			default:
				return fmt.Errorf("nitrogen server: accept: %w", err)
			}
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// ListenAndServe binds to addr and serves until Stop.
func (s *Server) ListenAndServe(addr string) error {
	if _, err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve()
}

// Stop closes the listener and every open connection, then waits for the
// per-connection loops to drain. Safe to call more than once.
func (s *Server) Stop() {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		return // already stopped
	default:
		close(s.done)
	}
	if s.ln != nil {
		s.ln.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info().Msg("model server stopped")
}

// serveConn answers requests on one connection until it drops.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	peer := conn.RemoteAddr().String()
	s.log.Debug().Str("peer", peer).Msg("client connected")

	br := bufio.NewReader(conn)
	for {
		raw, err := protocol.ReadFrame(br)
		if err != nil {
			s.log.Debug().Str("peer", peer).Msg("client disconnected")
			return
		}

		resp := s.handle(ctx, raw)
		payload, err := protocol.EncodeResponse(resp)
		if err != nil {
			s.log.Error().Err(err).Str("peer", peer).Msg("encode response")
			return
		}
		if err := protocol.WriteFrame(conn, payload); err != nil {
			s.log.Debug().Str("peer", peer).Err(err).Msg("write response")
			return
		}
	}
}

// handle dispatches one decoded request to the handler and maps the outcome
// onto a response envelope. Protocol-level problems (undecodable bytes,
// unknown type, missing image) become status=error responses, never dropped
// connections.
func (s *Server) handle(ctx context.Context, raw []byte) *protocol.Response {
	req, err := protocol.DecodeRequest(raw)
	if err != nil {
		return errorResponse(fmt.Sprintf("decode request: %v", err))
	}

	switch req.Type {
	case protocol.TypePredict:
		if req.Image == nil {
			return errorResponse("predict request missing image")
		}
		if err := req.Image.Validate(); err != nil {
			return errorResponse(err.Error())
		}
		pred, err := s.handler.Predict(ctx, req.Image)
		if err != nil {
			return errorResponse(err.Error())
		}
		return &protocol.Response{Status: protocol.StatusOK, Pred: pred}

	case protocol.TypeReset:
		if err := s.handler.Reset(ctx); err != nil {
			return errorResponse(err.Error())
		}
		return &protocol.Response{Status: protocol.StatusOK}

	case protocol.TypeInfo:
		info, err := s.handler.Info(ctx)
		if err != nil {
			return errorResponse(err.Error())
		}
		return &protocol.Response{Status: protocol.StatusOK, Info: info}

	default:
		return errorResponse(fmt.Sprintf("unknown request type %q", req.Type))
	}
}

func errorResponse(msg string) *protocol.Response {
	return &protocol.Response{Status: protocol.StatusError, Message: msg}
}
