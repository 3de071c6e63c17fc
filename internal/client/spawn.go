package client

import (
	"context"
	"os"
	"os/exec"
	"sync"
)

// Spawner starts a detached server for a project root.
type Spawner interface {
	Spawn(ctx context.Context, root string) (Process, error)
}

// Process is a spawned server. Done is closed when it exits; ExitCode is
// valid afterwards.
type Process interface {
	Done() <-chan struct{}
	ExitCode() int
}

// ExecSpawner runs `<Executable> server <root>` in its own session so it
// outlives the client.
type ExecSpawner struct {
	// Executable defaults to the running binary.
	Executable string
	// Args default to "server <root>".
	Args func(root string) []string
	Env  []string
}

func (s ExecSpawner) Spawn(_ context.Context, root string) (Process, error) {
	exe := s.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return nil, err
		}
	}
	args := []string{"server", root}
	if s.Args != nil {
		args = s.Args(root)
	}
	// The command must not be bound to the caller's context: cancelling the
	// connect attempt must not kill the server.
	cmd := exec.Command(exe, args...)
	cmd.Dir = root
	cmd.Env = append(os.Environ(), s.Env...)
	cmd.SysProcAttr = detachedAttr()
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &execProcess{done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		p.mu.Lock()
		p.code = exitStatus(cmd.ProcessState)
		p.mu.Unlock()
		close(p.done)
	}()
	return p, nil
}

type execProcess struct {
	done chan struct{}
	mu   sync.Mutex
	code int
}

func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code
}
