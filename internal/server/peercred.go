package server

import "errors"

var errPeerCredUnsupported = errors.New("peer credentials not supported on this platform")

// peerCred identifies the process on the other end of a Unix socket.
type peerCred struct {
	PID int32
	UID uint32
}
