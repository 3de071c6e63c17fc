package daemon

import (
	"fmt"
	"os"
	"syscall"
)

// Process exit codes of the server command. ExitFailure covers any other
// startup or serving error.
const (
	ExitOK                = 0
	ExitInvalidArgs       = 1
	ExitProjectDirMissing = 2
	ExitLockHeld          = 3
	ExitFailure           = 4
	ExitKilledByClient    = 5
	exitSignalBase        = 128
)

// Shutdown is why Serve returned.
type Shutdown int

const (
	ShutdownNone Shutdown = iota
	ShutdownStop
	ShutdownKill
	ShutdownContext
)

func (s Shutdown) String() string {
	switch s {
	case ShutdownStop:
		return "stop"
	case ShutdownKill:
		return "kill"
	case ShutdownContext:
		return "context"
	default:
		return "none"
	}
}

// signalCause cancels the server context when the process receives a
// termination signal.
type signalCause struct {
	sig os.Signal
}

func (c signalCause) Error() string {
	return fmt.Sprintf("received signal %s", c.sig)
}

// SignalExitCode is 128 plus the signal number.
func SignalExitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return exitSignalBase + int(s)
	}
	return exitSignalBase
}

// DescribeExit explains a server exit code.
func DescribeExit(code int) string {
	switch code {
	case ExitOK:
		return "server exited normally"
	case ExitInvalidArgs:
		return "server was started with invalid arguments"
	case ExitProjectDirMissing:
		return "project directory does not exist"
	case ExitLockHeld:
		return "another server is already running"
	case ExitFailure:
		return "server failed, see its log file"
	case ExitKilledByClient:
		return "server was killed by a client"
	}
	if code > exitSignalBase {
		return fmt.Sprintf("server was terminated by %s", syscall.Signal(code-exitSignalBase))
	}
	return fmt.Sprintf("server exited with code %d", code)
}
