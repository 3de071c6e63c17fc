package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"dwmm/internal/core/config"
	"dwmm/internal/core/errors"
	"dwmm/internal/core/indexer"
	"dwmm/internal/core/ports"
	"dwmm/internal/core/watcher"
	"dwmm/internal/data/cache"
	"dwmm/internal/engine/index"
	"dwmm/internal/engine/parser"
	"dwmm/internal/engine/resolver"
	"dwmm/internal/shared/observability"
	"dwmm/internal/shared/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	maxMessageSize  = 64 << 20
	limiterTTL      = 10 * time.Minute
	gracefulTimeout = 5 * time.Second
)

// Options configure a Server. Parser, Natives and Plugins default to the
// tree-sitter parser, the node helper with the bundled fallback, and the
// node and risor configuration loaders.
type Options struct {
	ProjectRoot string
	Config      *config.Config
	Parser      ports.CodeParser
	Natives     ports.NativesLoader
	Plugins     ports.PreferredImportsLoader
	Logger      *slog.Logger
}

// Server owns one project's index and watcher and serves them over a local
// socket.
type Server struct {
	id     string
	root   string
	cfg    *config.Config
	files  config.TempFiles
	logger *slog.Logger

	parser    ports.CodeParser
	resolver  *resolver.Resolver
	index     *index.Index
	indexer   *indexer.Indexer
	suggester *Suggester
	limiters  *util.LimiterRegistry

	mu       sync.Mutex
	conns    map[string]*conn
	listener net.Listener
	watcher  *watcher.Watcher
	cache    *cache.Writer

	shutdown chan Shutdown
}

func New(opts Options) (*Server, error) {
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
	id := uuid.NewString()
	logger = logger.With("server", id, "project", root)

	p := opts.Parser
	if p == nil {
		p = parser.New()
	}
	natives := opts.Natives
	if natives == nil {
		natives = indexer.FallbackNatives{
			Primary:   &indexer.NodeNatives{Binary: cfg.Daemon.NodeBinary, Timeout: cfg.Daemon.NativesTimeout},
			Secondary: indexer.StaticNatives{},
		}
	}
	plugins := opts.Plugins
	if plugins == nil {
		plugins = indexer.Plugins{
			&indexer.NodePlugin{Binary: cfg.Daemon.NodeBinary, Timeout: cfg.Daemon.PluginTimeout, ProjectRoot: root},
			&indexer.RisorPlugin{Timeout: cfg.Daemon.PluginTimeout, ProjectRoot: root},
		}
	}

	res := resolver.New(nil, cfg.Cache.ResolveEntries)
	ix := index.New(index.Options{
		ProjectRoot:  root,
		Resolver:     res,
		IsConfigFile: cfg.Watch.IsConfigFile,
		Logger:       logger,
	})

	s := &Server{
		id:       id,
		root:     root,
		cfg:      cfg,
		files:    config.TempFilesFor(cfg.Daemon.TempDir, root),
		logger:   logger,
		parser:   p,
		resolver: res,
		index:    ix,
		conns:    make(map[string]*conn),
		shutdown: make(chan Shutdown, 1),
	}
	s.indexer = indexer.New(indexer.Options{
		Index:            ix,
		Parser:           p,
		Resolver:         res,
		Natives:          natives,
		Plugins:          plugins,
		IsConfigFile:     cfg.Watch.IsConfigFile,
		IsSourceFile:     cfg.Watch.IsSourceFile,
		ProgressInterval: cfg.Watch.ProgressInterval,
		Logger:           logger,
	})
	s.suggester = &Suggester{Index: ix, Parser: p, Logger: logger}
	if cfg.Daemon.RequestsPerSecond > 0 {
		s.limiters = util.NewLimiterRegistry(cfg.Daemon.RequestsPerSecond, cfg.Daemon.RequestBurst, limiterTTL)
	}
	return s, nil
}

func (s *Server) Files() config.TempFiles   { return s.files }
func (s *Server) Indexer() *indexer.Indexer { return s.indexer }

// Serve takes the lock, listens on the project socket and serves until a
// client asks to stop or kill the server or ctx is done. Temp files are
// removed before it returns.
func (s *Server) Serve(ctx context.Context) (Shutdown, error) {
	if err := s.files.EnsureDir(); err != nil {
		return ShutdownNone, err
	}
	lock, err := AcquireLock(s.files.Lock, s.cfg.Daemon.LockStale)
	if err != nil {
		return ShutdownNone, err
	}
	defer s.cleanup(lock)

	if err := WritePids(s.files.Pids, os.Getpid()); err != nil {
		return ShutdownNone, err
	}
	ln, err := s.listen()
	if err != nil {
		return ShutdownNone, err
	}
	s.logger.Info("listening", "socket", s.files.Sock)

	if err := s.openCache(); err != nil {
		s.logger.Warn("declaration cache disabled", "error", err)
	}

	w, err := watcher.New(s.root, s.cfg.Watch, s.indexer.HandleEvents)
	if err != nil {
		_ = ln.Close()
		return ShutdownNone, err
	}
	s.mu.Lock()
	s.listener = ln
	s.watcher = w
	s.mu.Unlock()

	unsubscribe := s.subscribe()
	defer unsubscribe()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	reason := ShutdownContext
	g.Go(func() error {
		select {
		case reason = <-s.shutdown:
		case <-gctx.Done():
		}
		cancel()
		s.closeConnections(reason)
		return nil
	})
	g.Go(func() error { return s.acceptLoop(gctx, ln) })
	g.Go(func() error { return s.refreshLock(gctx, lock) })
	g.Go(func() error {
		s.indexer.LoadNatives(gctx)
		if err := w.Start(gctx); err != nil && gctx.Err() == nil {
			return fmt.Errorf("watch project: %w", err)
		}
		return nil
	})
	if s.cfg.Observability.Enabled {
		g.Go(func() error { return s.serveObservability(gctx) })
	}

	err = g.Wait()
	_ = w.Close()
	s.indexer.Close()
	s.logger.Info("server stopped", "reason", reason.String())
	return reason, err
}

func (s *Server) listen() (net.Listener, error) {
	ln, err := ListenSocket(s.files.Sock)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "listen on socket"), errors.CtxPath, s.files.Sock)
	}
	return ln, nil
}

func (s *Server) openCache() error {
	if !s.cfg.Cache.Enabled {
		return nil
	}
	path := s.cfg.Cache.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.files.Dir, config.ProjectKey(s.root)+"."+path)
	}
	store, err := cache.Open(path)
	if err != nil {
		return err
	}
	writer := cache.NewWriter(store, cache.WriterOptions{Logger: s.logger})
	s.mu.Lock()
	s.cache = writer
	s.mu.Unlock()
	s.indexer.SetCache(writer)
	return nil
}

func (s *Server) cleanup(lock *Lock) {
	s.mu.Lock()
	store := s.cache
	s.mu.Unlock()
	if store != nil {
		if err := store.Close(); err != nil {
			s.logger.Warn("failed to close declaration cache", "error", err)
		}
	}
	if s.limiters != nil {
		s.limiters.Close()
	}
	s.logger.Info("removing temp files", "lock", s.files.Lock, "sock", s.files.Sock, "pids", s.files.Pids)
	if err := lock.Release(); err != nil {
		s.logger.Error("failed to release lock", "error", err)
	}
	if err := s.files.Cleanup(); err != nil {
		s.logger.Error("failed to remove temp files", "error", err)
	}
}

func (s *Server) refreshLock(ctx context.Context, lock *Lock) error {
	ticker := time.NewTicker(s.cfg.Daemon.LockRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := lock.Refresh(); err != nil {
				s.logger.Error("failed to refresh lock", "error", err)
			}
		}
	}
}

func (s *Server) serveObservability(ctx context.Context) error {
	obs := observability.NewServer(s.cfg.Observability.MetricsAddr, s)
	addr, err := obs.Start(ctx)
	if err != nil {
		s.logger.Warn("observability server disabled", "error", err)
		return nil
	}
	s.logger.Info("observability server listening", "addr", addr)
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), gracefulTimeout)
	defer cancel()
	return obs.Stop(stopCtx)
}

// subscribe forwards indexer events to every connected client.
func (s *Server) subscribe() func() {
	removeProgress := s.indexer.OnProgress(func(p indexer.Progress) {
		s.broadcast(Response{Progress: &p})
	})
	removeReady := s.indexer.OnReady(func() {
		s.logger.Info("ready", "files", s.indexer.Progress().Total)
		s.broadcast(Response{Ready: true})
	})
	removeError := s.indexer.OnError(func(err error) {
		s.broadcast(Response{Error: err.Error()})
	})
	return func() {
		removeProgress()
		removeReady()
		removeError()
	}
}

func (s *Server) broadcast(resp Response) {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		if err := c.send(resp); err != nil {
			s.logger.Debug("failed to push event", "conn", c.id, "error", err)
		}
	}
}

// Check reports readiness for the /health endpoint.
func (s *Server) Check(ctx context.Context) observability.HealthStatus {
	progress := s.indexer.Progress()
	status := "starting"
	if s.indexer.IsReady() {
		status = "up"
	}
	s.mu.Lock()
	clients := len(s.conns)
	s.mu.Unlock()
	return observability.HealthStatus{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Components: map[string]string{
			"indexer": fmt.Sprintf("%d/%d", progress.Completed, progress.Total),
			"clients": fmt.Sprintf("%d", clients),
			"server":  s.id,
		},
	}
}

// requestShutdown records the first stop or kill request.
func (s *Server) requestShutdown(reason Shutdown) {
	select {
	case s.shutdown <- reason:
	default:
	}
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		c := newConn(nc)
		if s.limiters != nil {
			c.limiter = s.limiters.Get(c.id)
		}
		s.mu.Lock()
		s.conns[c.id] = c
		observability.ConnectedClients.Set(float64(len(s.conns)))
		s.mu.Unlock()
		go s.serveConn(ctx, c)
	}
}

func (s *Server) removeConn(c *conn) {
	s.mu.Lock()
	delete(s.conns, c.id)
	observability.ConnectedClients.Set(float64(len(s.conns)))
	s.mu.Unlock()
	if s.limiters != nil {
		s.limiters.Remove(c.id)
	}
}

// closeConnections ends every connection. A stop lets in-flight requests
// answer first; a kill does not.
func (s *Server) closeConnections(reason Shutdown) {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.markClosing()
	}

	if reason == ShutdownStop {
		deadline := time.After(gracefulTimeout)
		for _, c := range conns {
			done := make(chan struct{})
			go func() {
				c.drain()
				close(done)
			}()
			select {
			case <-done:
			case <-deadline:
			}
		}
	}
	for _, c := range conns {
		_ = c.nc.Close()
	}
}

func (s *Server) serveConn(ctx context.Context, c *conn) {
	defer s.removeConn(c)
	defer c.nc.Close()
	logger := s.logger.With("conn", c.id)
	logger.Debug("client connected")

	sc := bufio.NewScanner(c.nc)
	sc.Buffer(make([]byte, 64*1024), maxMessageSize)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			logger.Warn("ignoring malformed message", "error", errors.Wrap(err, errors.CodeProtocol, "decode request"))
			continue
		}
		logger.Debug("got message from client", "request", req.Kind(), "seq", req.Seq)

		switch {
		case req.Kill:
			logger.Info("got kill request")
			s.requestShutdown(ShutdownKill)
			return
		case req.Stop:
			logger.Info("got stop request")
			s.requestShutdown(ShutdownStop)
			continue
		}

		if c.limiter != nil && !c.limiter.Allow(1) {
			observability.RateLimitedTotal.Inc()
			resp := reply(req.Seq)
			resp.Error = "rate limit exceeded"
			_ = c.send(resp)
			continue
		}

		if !c.begin() {
			resp := reply(req.Seq)
			resp.Error = "server is shutting down"
			_ = c.send(resp)
			continue
		}
		go func(req Request) {
			defer c.inflight.Done()
			if err := c.send(s.handle(ctx, req)); err != nil {
				logger.Debug("failed to send response", "seq", req.Seq, "error", err)
			}
		}(req)
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		logger.Debug("connection closed", "error", err)
	}
}

func (s *Server) handle(ctx context.Context, req Request) Response {
	kind := req.Kind()
	start := time.Now()
	ctx, span := observability.Tracer.Start(ctx, "daemon.request")
	span.SetAttributes(attribute.String("request", kind), attribute.Int64("seq", req.Seq))
	defer span.End()

	resp := reply(req.Seq)
	var err error
	switch {
	case req.WaitUntilReady != nil:
		err = s.indexer.WaitUntilReady(ctx)
	case req.Suggest != nil:
		resp.Suggest, err = s.handleSuggest(ctx, req.Suggest)
	case req.Wheres != nil:
		if err = s.indexer.WaitUntilReady(ctx); err == nil {
			resp.Wheres = s.suggester.Wheres(ctx, req.Wheres.Identifier, s.absolute(req.Wheres.File))
		}
	default:
		err = errors.New(errors.CodeProtocol, "unknown request")
	}

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		s.logger.Error("request failed", "request", kind, "seq", req.Seq, "error", err)
		resp = reply(req.Seq)
		resp.Error = err.Error()
	}
	observability.RequestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	observability.RequestsTotal.WithLabelValues(kind, status).Inc()
	return resp
}

func (s *Server) handleSuggest(ctx context.Context, req *SuggestRequest) (SuggestResult, error) {
	if req.File == "" {
		return nil, errors.New(errors.CodeValidationError, "suggest requires a file")
	}
	file := s.absolute(req.File)
	var code []byte
	if req.Code != nil {
		code = []byte(*req.Code)
	} else {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read file"), errors.CtxPath, file)
		}
		code = data
	}
	if err := s.indexer.WaitUntilReady(ctx); err != nil {
		return nil, err
	}
	return s.suggester.Suggest(ctx, file, code)
}

func (s *Server) absolute(file string) string {
	if file == "" {
		return filepath.Join(s.root, "index.js")
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(s.root, file)
}

type conn struct {
	id       string
	nc       net.Conn
	limiter  *util.Limiter
	inflight sync.WaitGroup

	stateMu sync.Mutex
	closing bool

	mu  sync.Mutex
	w   *bufio.Writer
	enc *json.Encoder
}

func newConn(nc net.Conn) *conn {
	w := bufio.NewWriter(nc)
	return &conn{id: uuid.NewString(), nc: nc, w: w, enc: json.NewEncoder(w)}
}

// begin registers an in-flight request unless the connection is closing.
func (c *conn) begin() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.closing {
		return false
	}
	c.inflight.Add(1)
	return true
}

func (c *conn) markClosing() {
	c.stateMu.Lock()
	c.closing = true
	c.stateMu.Unlock()
}

// drain waits for in-flight requests. Call markClosing first so no new
// request can start while waiting.
func (c *conn) drain() {
	c.inflight.Wait()
}

func (c *conn) send(resp Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enc.Encode(resp); err != nil {
		return err
	}
	return c.w.Flush()
}
