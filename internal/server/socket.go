package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"hope/internal/config"
	"hope/internal/pianobar"
)

const DefaultSocketPath = config.DefaultSocketPath

// maxAcceptDelay caps the backoff after a failed Accept.
const maxAcceptDelay = time.Second

// SocketServer receives one encoded event per connection on a Unix socket.
// Connections are served one after another in accept order; a peer that
// never closes its write side blocks the ones behind it until Stop.
type SocketServer struct {
	socketPath string
	consumer   Consumer
	logger     logrus.Ext1FieldLogger

	mu       sync.Mutex
	listener net.Listener
	conn     net.Conn // connection being served, closed by Stop
	stopped  bool
}

// NewSocketServer creates a new Unix socket server.
func NewSocketServer(socketPath string, consumer Consumer, logger logrus.Ext1FieldLogger) *SocketServer {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return &SocketServer{
		socketPath: socketPath,
		consumer:   consumer,
		logger:     logger.WithField("component", "socket"),
	}
}

// Start binds the socket. Whatever exists at the path beforehand is left
// over from an earlier run and is removed.
func (s *SocketServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("socket server already started on %s", s.socketPath)
	}

	if _, err := os.Lstat(s.socketPath); err == nil {
		s.logger.Tracef("Removing pre-existing Unix socket at %s", s.socketPath)
		if err := os.Remove(s.socketPath); err != nil {
			return &TransportError{Op: "remove", Path: s.socketPath, Err: err}
		}
	}

	s.logger.Debugf("Listening on %s", s.socketPath)
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return &TransportError{Op: "listen", Path: s.socketPath, Err: err}
	}
	// Stop owns the file; the listener must not unlink it a second time.
	if ul, ok := ln.(*net.UnixListener); ok {
		ul.SetUnlinkOnClose(false)
	}

	s.listener = ln
	s.stopped = false
	return nil
}

// Serve runs the accept loop until ctx is cancelled or Stop is called, in
// which case it returns nil. Failures on a single connection, and failed
// accepts, are logged and the loop moves on.
func (s *SocketServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return fmt.Errorf("socket server not started")
	}

	stop := context.AfterFunc(ctx, s.Stop)
	defer stop()

	var delay time.Duration
	for {
		s.logger.Debug("Waiting for new client connection")
		conn, err := ln.Accept()
		if err != nil {
			if s.isStopped() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(2*delay, maxAcceptDelay)
			}
			s.logger.WithError(&TransportError{Op: "accept", Path: s.socketPath, Err: err}).
				Warnf("Accept failed, retrying in %s", delay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		delay = 0

		if !s.track(conn) {
			conn.Close()
			return nil
		}

		log := s.logger.WithField("conn_id", uuid.NewString())
		if cred, err := peerCredentials(conn); err == nil {
			log = log.WithFields(logrus.Fields{"peer_pid": cred.PID, "peer_uid": cred.UID})
		}
		log.Trace("Received new client connection")

		err = s.handleConnection(ctx, conn, log)
		s.untrack()
		if err != nil {
			if s.isStopped() {
				log.WithError(err).Debug("Closed client connection on shutdown")
				return nil
			}
			log.WithError(err).Warn("Dropped client connection")
		}
	}
}

// track records conn as the connection being served. It reports false when
// the server has already been stopped.
func (s *SocketServer) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.conn = conn
	return true
}

func (s *SocketServer) untrack() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = nil
}

// handleConnection reads the peer's message to EOF, decodes it and hands
// the event to the consumer.
func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn, log logrus.Ext1FieldLogger) error {
	defer conn.Close()

	data, err := io.ReadAll(conn)
	if err != nil {
		return &TransportError{Op: "read", Path: s.socketPath, Err: err}
	}
	log.Tracef("Read %d bytes", len(data))

	ev, err := pianobar.DecodeEvent(data)
	if err != nil {
		return err
	}

	if err := s.consumer.Consume(ctx, ev); err != nil {
		log.WithError(err).WithField("eventcmd", ev.EventCmd).Error("Consumer failed")
	}
	return nil
}

// Stop closes the listener and any connection being served, then removes
// the socket file. It is safe to call more than once and from another
// goroutine than Serve.
func (s *SocketServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.listener == nil {
		return
	}
	s.stopped = true
	s.listener.Close()
	if s.conn != nil {
		s.conn.Close()
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.WithError(err).Warn("Failed to remove socket file")
	}
	s.logger.Debug("Socket server stopped")
}

func (s *SocketServer) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// SocketPath returns the socket path.
func (s *SocketServer) SocketPath() string {
	return s.socketPath
}

// Addr returns the bound address, or nil before Start.
func (s *SocketServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
