//go:build !linux

package server

import "net"

func peerCredentials(net.Conn) (peerCred, error) {
	return peerCred{}, errPeerCredUnsupported
}
