//go:build !windows

package daemon

import (
	"context"
	"net"
	"os"
)

// ListenSocket binds the project socket, replacing one left behind by a
// server that did not clean up.
func ListenSocket(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return net.Listen("unix", path)
}

// DialSocket connects to the project socket.
func DialSocket(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", path)
}
