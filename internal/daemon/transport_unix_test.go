//go:build !windows

package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListenSocketReplacesStaleSocket(t *testing.T) {
	sock := filepath.Join(shortTempDir(t, "s"), "x.sock")
	require.NoError(t, os.WriteFile(sock, nil, 0o600))

	ln, err := ListenSocket(sock)
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			_ = c.Close()
		}
		accepted <- err
	}()

	nc, err := DialSocket(context.Background(), sock)
	require.NoError(t, err)
	_ = nc.Close()
	require.NoError(t, <-accepted)
}
