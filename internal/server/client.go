package server

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"

	"hope/internal/pianobar"
)

// Client delivers events to a SocketServer. Each Send uses a fresh
// connection and carries exactly one event; nothing is read back.
type Client struct {
	socketPath string
	logger     logrus.Ext1FieldLogger
}

// NewClient creates a client for the socket at socketPath.
func NewClient(socketPath string, logger logrus.Ext1FieldLogger) *Client {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return &Client{
		socketPath: socketPath,
		logger:     logger.WithField("component", "client"),
	}
}

// Send encodes ev, writes it and half-closes the connection so the server
// sees EOF. Failures are returned as *TransportError and are not retried.
func (c *Client) Send(ctx context.Context, ev pianobar.Event) error {
	data, err := ev.Encode()
	if err != nil {
		return &TransportError{Op: "encode", Path: c.socketPath, Err: err}
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return &TransportError{Op: "dial", Path: c.socketPath, Err: err}
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetWriteDeadline(deadline); err != nil {
			return &TransportError{Op: "write", Path: c.socketPath, Err: err}
		}
	}

	c.logger.Tracef("Sending %d bytes for %s eventcmd", len(data), ev.EventCmd)
	if _, err := conn.Write(data); err != nil {
		return &TransportError{Op: "write", Path: c.socketPath, Err: err}
	}

	if uc, ok := conn.(*net.UnixConn); ok {
		if err := uc.CloseWrite(); err != nil {
			return &TransportError{Op: "close", Path: c.socketPath, Err: err}
		}
	}
	c.logger.Debugf("Sent %s eventcmd to %s", ev.EventCmd, c.socketPath)
	return nil
}

// SocketPath returns the socket path.
func (c *Client) SocketPath() string {
	return c.socketPath
}
