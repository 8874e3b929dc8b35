// Package server binds the protocol core to a TCP line transport: one
// JSON frame per line, the first line being the session token. Frame
// syntax aside, everything transport-specific stays in this package.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"privchat/chat"
	"privchat/contract"
	"privchat/domain"
	priverr "privchat/errors"
	"privchat/sink"
	"privchat/wire"
)

type Config struct {
	Addr                 string
	ConnectionBufferSize int
	AuthTimeout          time.Duration
	WriteTimeout         time.Duration
	MaxFrameBytes        int
}

// Server accepts connections and runs one session per connection. It
// is a supervised worker: Run blocks until the context is canceled.
type Server struct {
	log           *slog.Logger
	cfg           Config
	authenticator contract.Authenticator
	bus           contract.GroupBus
	validator     *chat.Validator
	dispatcher    *chat.Dispatcher
	presence      *chat.Presence
}

func New(log *slog.Logger, cfg Config, authenticator contract.Authenticator,
	bus contract.GroupBus, validator *chat.Validator, dispatcher *chat.Dispatcher,
	presence *chat.Presence) *Server {
	return &Server{
		log:           log,
		cfg:           cfg,
		authenticator: authenticator,
		bus:           bus,
		validator:     validator,
		dispatcher:    dispatcher,
		presence:      presence,
	}
}

func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	defer listener.Close()
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	s.log.Info("Chat server listening", "addr", listener.Addr().String())

	var wg sync.WaitGroup
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			s.log.Warn("Accept failed", "error", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

// handleConnection owns one connection end to end: token handshake,
// session connect, writer loop, receive loop, cleanup. Closing the
// connection cancels only this receive loop; a dispatch already in
// flight for the last frame runs to completion.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	remote := conn.RemoteAddr().String()
	s.log.Debug(fmt.Sprintf("New connection from %s", remote))

	w := &frameWriter{conn: conn, timeout: s.cfg.WriteTimeout}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), s.cfg.MaxFrameBytes)

	user, err := s.authenticate(ctx, conn, scanner)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Info(fmt.Sprintf("Rejecting connection from %s", remote), "error", err)
	}

	connSink := sink.NewConnectionSink(s.log, s.cfg.ConnectionBufferSize)
	session := chat.NewSession(s.log, s.bus, s.validator, s.dispatcher, s.presence, connSink)

	if err := session.Connect(ctx, user); err != nil {
		if errors.Is(err, priverr.ErrUnauthenticated) {
			// Auth rejection: distinguished close code, no group
			// membership, no further processing.
			if frame, encErr := wire.EncodeClose(wire.CloseUnauthenticated); encErr == nil {
				_ = w.Write(frame)
			}
		} else {
			s.log.Error(fmt.Sprintf("Connecting session for %s failed", remote), "error", err)
		}
		return
	}
	// Cleanup must run even when the server is shutting down, so the
	// disconnect fan-out uses a context that survives cancellation.
	defer session.Disconnect(context.WithoutCancel(ctx))

	writerCtx, cancelWriter := context.WithCancel(ctx)
	defer cancelWriter()
	go s.writeLoop(writerCtx, session, connSink, w)

	s.receiveLoop(ctx, session, scanner, w, remote)
}

// authenticate reads the token line under the handshake deadline. A
// nil user (with or without error) means rejection.
func (s *Server) authenticate(ctx context.Context, conn net.Conn, scanner *bufio.Scanner) (*domain.User, error) {
	if err := conn.SetReadDeadline(time.Now().Add(s.cfg.AuthTimeout)); err != nil {
		return nil, err
	}
	defer conn.SetReadDeadline(time.Time{})

	if !scanner.Scan() {
		return nil, fmt.Errorf("reading token line: %w", scanner.Err())
	}
	return s.authenticator.Authenticate(ctx, scanner.Text())
}

func (s *Server) receiveLoop(ctx context.Context, session *chat.Session, scanner *bufio.Scanner, w *frameWriter, remote string) {
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp, err := session.HandleFrame(ctx, line)
		if err != nil {
			// Store or bus fault: connection-level failure, drop the link.
			s.log.Error(fmt.Sprintf("Connection %s failed while handling frame", remote), "error", err)
			return
		}
		if resp != nil {
			if err := w.Write(resp); err != nil {
				return
			}
		}
	}
	s.log.Debug(fmt.Sprintf("Connection %s closed", remote))
}

// writeLoop drains the connection sink, translating bus events into
// frames. Suppressed events (our own echoes) produce nil frames.
func (s *Server) writeLoop(ctx context.Context, session *chat.Session, connSink *sink.ConnectionSink, w *frameWriter) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-connSink.Events:
			frame, err := session.TranslateEvent(evt)
			if err != nil {
				s.log.Error("Failed to encode outbound event", "error", err)
				continue
			}
			if frame == nil {
				continue
			}
			if err := w.Write(frame); err != nil {
				return
			}
		}
	}
}

// frameWriter serializes writes from the receive loop (error frames)
// and the writer loop (bus events) onto one connection.
type frameWriter struct {
	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration
}

func (w *frameWriter) Write(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
		return err
	}
	if _, err := w.conn.Write(frame); err != nil {
		return err
	}
	_, err := w.conn.Write([]byte{'\n'})
	return err
}
