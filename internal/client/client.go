package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"dwmm/internal/core/config"
	"dwmm/internal/core/errors"
	"dwmm/internal/core/indexer"
	"dwmm/internal/daemon"
	"dwmm/internal/shared/util"
)

const maxMessageSize = 64 << 20

var errClosed = errors.New(errors.CodeConnect, "client closed")

// Options configure a Client. Spawner defaults to re-running the current
// executable as `server <root>`.
type Options struct {
	ProjectRoot string
	Config      *config.Config
	Spawner     Spawner
	Logger      *slog.Logger
}

// Client talks to the server of one project, starting it when needed.
// Requests may be issued concurrently; they share one connection.
type Client struct {
	root    string
	cfg     *config.Config
	files   config.TempFiles
	spawner Spawner
	logger  *slog.Logger

	seq atomic.Int64

	mu      sync.Mutex
	conn    *connection
	attempt *connectAttempt

	progress util.Listeners[indexer.Progress]
	ready    util.Listeners[struct{}]
	errs     util.Listeners[error]
}

// ServerError is the error field of a failed response.
type ServerError struct {
	Seq     int64
	Message string
}

func (e *ServerError) Error() string { return e.Message }

func New(opts Options) (*Client, error) {
	if opts.ProjectRoot == "" {
		return nil, errors.New(errors.CodeValidationError, "project root is required")
	}
	root, err := filepath.Abs(opts.ProjectRoot)
	if err != nil {
		return nil, err
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	spawner := opts.Spawner
	if spawner == nil {
		spawner = ExecSpawner{}
	}
	return &Client{
		root:    root,
		cfg:     cfg,
		files:   config.TempFilesFor(cfg.Daemon.TempDir, root),
		spawner: spawner,
		logger:  logger.With("project", root),
	}, nil
}

func (c *Client) ProjectRoot() string     { return c.root }
func (c *Client) Files() config.TempFiles { return c.files }

// OnProgress registers fn for progress pushes and returns its remover.
func (c *Client) OnProgress(fn func(indexer.Progress)) func() { return c.progress.Add(fn) }

func (c *Client) OnReady(fn func()) func() {
	return c.ready.Add(func(struct{}) { fn() })
}

// OnError registers fn for errors the server pushes, such as files it could
// not index.
func (c *Client) OnError(fn func(error)) func() { return c.errs.Add(fn) }

// Connect attaches to the project server. With startServer it spawns one
// when none is listening and retries until it accepts or the connect timeout
// passes.
func (c *Client) Connect(ctx context.Context, startServer bool) error {
	_, err := c.connection(ctx, startServer)
	return err
}

// Suggest returns suggestions for every undefined identifier in code, or in
// the file on disk when code is nil.
func (c *Client) Suggest(ctx context.Context, file string, code *string) (daemon.SuggestResult, error) {
	resp, err := c.request(ctx, daemon.Request{Suggest: &daemon.SuggestRequest{File: file, Code: code}})
	if err != nil {
		return nil, err
	}
	return resp.Suggest, nil
}

func (c *Client) Wheres(ctx context.Context, identifier, file string) (daemon.SuggestResult, error) {
	resp, err := c.request(ctx, daemon.Request{Wheres: &daemon.WheresRequest{Identifier: identifier, File: file}})
	if err != nil {
		return nil, err
	}
	return resp.Wheres, nil
}

// WaitUntilReady blocks until the server has finished indexing.
func (c *Client) WaitUntilReady(ctx context.Context) error {
	_, err := c.request(ctx, daemon.Request{WaitUntilReady: &struct{}{}})
	return err
}

// StopServer asks a running server to finish in-flight requests and exit. It
// does not start a server.
func (c *Client) StopServer(ctx context.Context) error {
	return c.control(ctx, daemon.Request{Stop: true})
}

// KillServer asks a running server to exit immediately.
func (c *Client) KillServer(ctx context.Context) error {
	return c.control(ctx, daemon.Request{Kill: true})
}

// Close drops the connection, failing pending requests. The server keeps
// running.
func (c *Client) Close() error {
	c.mu.Lock()
	cn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if cn != nil {
		cn.fail(errClosed)
	}
	return nil
}

// control sends stop or kill and waits for the server to hang up.
func (c *Client) control(ctx context.Context, req daemon.Request) error {
	cn, err := c.connection(ctx, false)
	if err != nil {
		return err
	}
	if err := cn.write(req); err != nil {
		c.drop(cn, err)
		return errors.Wrap(err, errors.CodeConnect, "send "+req.Kind())
	}
	select {
	case <-cn.closed:
	case <-ctx.Done():
		c.drop(cn, ctx.Err())
		return ctx.Err()
	}
	c.drop(cn, errClosed)
	return nil
}

func (c *Client) request(ctx context.Context, req daemon.Request) (daemon.Response, error) {
	cn, err := c.connection(ctx, true)
	if err != nil {
		return daemon.Response{}, err
	}
	req.Seq = c.seq.Add(1) - 1
	ch, err := cn.register(req.Seq)
	if err != nil {
		return daemon.Response{}, err
	}
	if err := cn.write(req); err != nil {
		werr := errors.AddContext(errors.Wrap(err, errors.CodeConnect, "send request"), errors.CtxSeq, req.Seq)
		c.drop(cn, werr)
		return daemon.Response{}, werr
	}
	select {
	case res := <-ch:
		if res.err != nil {
			return daemon.Response{}, res.err
		}
		if res.resp.Error != "" {
			return daemon.Response{}, &ServerError{Seq: req.Seq, Message: res.resp.Error}
		}
		return res.resp, nil
	case <-ctx.Done():
		cn.unregister(req.Seq)
		return daemon.Response{}, ctx.Err()
	}
}

type connectAttempt struct {
	done chan struct{}
	conn *connection
	err  error
}

// connection returns the live connection, joining an in-flight connect so
// concurrent callers never spawn more than one server.
func (c *Client) connection(ctx context.Context, startServer bool) (*connection, error) {
	c.mu.Lock()
	if c.conn != nil {
		cn := c.conn
		c.mu.Unlock()
		return cn, nil
	}
	a := c.attempt
	if a == nil && !startServer {
		c.mu.Unlock()
		nc, err := c.dial(ctx)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeConnect, "no server running"), errors.CtxPath, c.files.Sock)
		}
		return c.adopt(nc), nil
	}
	if a == nil {
		a = &connectAttempt{done: make(chan struct{})}
		c.attempt = a
		go c.runAttempt(a)
	}
	c.mu.Unlock()

	select {
	case <-a.done:
		return a.conn, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) runAttempt(a *connectAttempt) {
	nc, err := c.connect()
	var cn *connection
	if err == nil {
		cn = c.adopt(nc)
	}
	c.mu.Lock()
	c.attempt = nil
	c.mu.Unlock()
	a.conn, a.err = cn, err
	close(a.done)
}

// connect dials the socket, and otherwise spawns a server and polls until it
// accepts, it exits, or the connect timeout passes.
func (c *Client) connect() (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Daemon.ConnectTimeout)
	defer cancel()

	if nc, err := c.dial(ctx); err == nil {
		return nc, nil
	}
	c.logger.Info("starting server", "socket", c.files.Sock)
	proc, err := c.spawner.Spawn(ctx, c.root)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeConnect, "start server"), errors.CtxProject, c.root)
	}

	exited := proc.Done()
	ticker := time.NewTicker(c.cfg.Daemon.ConnectInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			err := errors.Wrap(ctx.Err(), errors.CodeConnect, "timed out waiting for server")
			return nil, errors.AddContext(err, errors.CtxPath, c.files.Sock)
		case <-exited:
			code := proc.ExitCode()
			if code != daemon.ExitLockHeld {
				err := errors.New(errors.CodeStartupFailure, daemon.DescribeExit(code))
				return nil, errors.AddContext(err, errors.CtxExitCode, code)
			}
			// Another client's server holds the lock; wait for its socket.
			c.logger.Debug("spawned server found the lock held")
			exited = nil
		case <-ticker.C:
		}
		if nc, err := c.dial(ctx); err == nil {
			return nc, nil
		}
	}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	return daemon.DialSocket(ctx, c.files.Sock)
}

// adopt makes nc the client's connection and starts reading from it.
func (c *Client) adopt(nc net.Conn) *connection {
	cn := newConnection(nc)
	c.mu.Lock()
	if c.conn != nil {
		existing := c.conn
		c.mu.Unlock()
		_ = nc.Close()
		return existing
	}
	c.conn = cn
	c.mu.Unlock()
	c.logger.Debug("connected to server", "socket", c.files.Sock)
	go c.readLoop(cn)
	return cn
}

// drop fails cn and forgets it so the next request reconnects.
func (c *Client) drop(cn *connection, err error) {
	c.mu.Lock()
	if c.conn == cn {
		c.conn = nil
	}
	c.mu.Unlock()
	cn.fail(err)
}

func (c *Client) readLoop(cn *connection) {
	sc := bufio.NewScanner(cn.nc)
	sc.Buffer(make([]byte, 64*1024), maxMessageSize)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var resp daemon.Response
		if err := json.Unmarshal(line, &resp); err != nil {
			c.logger.Warn("ignoring malformed message", "error", errors.Wrap(err, errors.CodeProtocol, "decode response"))
			continue
		}
		if resp.Seq != nil {
			if !cn.resolve(*resp.Seq, resp) {
				err := errors.AddContext(errors.New(errors.CodeProtocol, "response for unknown request"), errors.CtxSeq, *resp.Seq)
				c.logger.Warn("ignoring response", "error", err)
			}
			continue
		}
		if resp.Progress != nil {
			c.progress.Emit(*resp.Progress)
		}
		if resp.Ready {
			c.ready.Emit(struct{}{})
		}
		if resp.Error != "" {
			c.errs.Emit(stderrors.New(resp.Error))
		}
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	c.drop(cn, errors.Wrap(err, errors.CodeConnect, "connection to server lost"))
}

type result struct {
	resp daemon.Response
	err  error
}

type connection struct {
	nc net.Conn

	writeMu sync.Mutex
	enc     *json.Encoder

	mu      sync.Mutex
	pending map[int64]chan result
	err     error
	closed  chan struct{}
}

func newConnection(nc net.Conn) *connection {
	return &connection{
		nc:      nc,
		enc:     json.NewEncoder(nc),
		pending: make(map[int64]chan result),
		closed:  make(chan struct{}),
	}
}

func (cn *connection) write(req daemon.Request) error {
	cn.writeMu.Lock()
	defer cn.writeMu.Unlock()
	return cn.enc.Encode(req)
}

func (cn *connection) register(seq int64) (chan result, error) {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if cn.err != nil {
		return nil, cn.err
	}
	ch := make(chan result, 1)
	cn.pending[seq] = ch
	return ch, nil
}

func (cn *connection) unregister(seq int64) {
	cn.mu.Lock()
	delete(cn.pending, seq)
	cn.mu.Unlock()
}

func (cn *connection) resolve(seq int64, resp daemon.Response) bool {
	cn.mu.Lock()
	ch, ok := cn.pending[seq]
	delete(cn.pending, seq)
	cn.mu.Unlock()
	if ok {
		ch <- result{resp: resp}
	}
	return ok
}

// fail closes the socket and rejects every pending request with err. Only
// the first call has an effect.
func (cn *connection) fail(err error) {
	cn.mu.Lock()
	if cn.err != nil {
		cn.mu.Unlock()
		return
	}
	cn.err = err
	pending := cn.pending
	cn.pending = nil
	cn.mu.Unlock()

	close(cn.closed)
	_ = cn.nc.Close()
	for _, ch := range pending {
		ch <- result{err: err}
	}
}
