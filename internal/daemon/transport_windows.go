//go:build windows

package daemon

import (
	"context"
	"net"

	"github.com/Microsoft/go-winio"
)

// ListenSocket creates the project's named pipe. A pipe disappears with the
// process that owns it, so there is nothing stale to remove.
func ListenSocket(path string) (net.Listener, error) {
	return winio.ListenPipe(path, &winio.PipeConfig{InputBufferSize: 64 << 10, OutputBufferSize: 64 << 10})
}

// DialSocket connects to the project's named pipe.
func DialSocket(ctx context.Context, path string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, path)
}
