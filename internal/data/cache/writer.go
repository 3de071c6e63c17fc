package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"dwmm/internal/core/ports"
	"dwmm/internal/engine/parser"
	"dwmm/internal/shared/observability"
)

const (
	defaultBatchSize     = 64
	defaultFlushInterval = 100 * time.Millisecond
	defaultCapacity      = 4096
)

type WriterOptions struct {
	BatchSize     int
	FlushInterval time.Duration
	Capacity      int
	Logger        *slog.Logger
}

// Writer is a write-behind DeclarationCache. Reads go straight to the store;
// puts and deletes are queued and applied in batches on one goroutine, so
// indexing never waits on sqlite. A read issued before its write is applied
// is a miss.
type Writer struct {
	store     *Store
	queue     *WriteQueue
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
	done      chan struct{}
}

var _ ports.DeclarationCache = (*Writer)(nil)

func NewWriter(store *Store, opts WriterOptions) *Writer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	if opts.Capacity <= 0 {
		opts.Capacity = defaultCapacity
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	w := &Writer{
		store:     store,
		queue:     NewWriteQueue(opts.Capacity),
		batchSize: opts.BatchSize,
		interval:  opts.FlushInterval,
		logger:    opts.Logger,
		done:      make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Writer) Get(ctx context.Context, path, hash string) ([]parser.Declaration, bool, error) {
	return w.store.Get(ctx, path, hash)
}

// Put queues a write. A dropped put only costs a later re-parse.
func (w *Writer) Put(_ context.Context, path, hash string, decls []parser.Declaration) error {
	if w.queue.Enqueue(WriteRequest{Op: OpPut, Path: path, Hash: hash, Decls: decls}) == EnqueueDropped {
		observability.CacheDroppedWritesTotal.Inc()
		w.logger.Debug("cache write dropped", "path", path)
	}
	observability.CacheQueueDepth.Set(float64(w.queue.Len()))
	return nil
}

// Delete queues a delete, applying it directly when the queue is full so a
// stale entry cannot survive.
func (w *Writer) Delete(ctx context.Context, path string) error {
	if w.queue.Enqueue(WriteRequest{Op: OpDelete, Path: path}) == EnqueueDropped {
		return w.store.Delete(ctx, path)
	}
	observability.CacheQueueDepth.Set(float64(w.queue.Len()))
	return nil
}

// Close applies every queued write and closes the store.
func (w *Writer) Close() error {
	_ = w.queue.Close()
	<-w.done
	return w.store.Close()
}

func (w *Writer) run() {
	defer close(w.done)
	ctx := context.Background()
	for {
		batch, err := w.queue.DequeueBatch(ctx, w.batchSize, w.interval)
		if len(batch) > 0 {
			w.apply(ctx, batch)
		}
		observability.CacheQueueDepth.Set(float64(w.queue.Len()))
		if errors.Is(err, io.EOF) {
			return
		}
	}
}

func (w *Writer) apply(ctx context.Context, batch []WriteRequest) {
	started := time.Now()
	if err := w.store.Apply(ctx, batch); err != nil {
		observability.CacheWriteBatchesTotal.WithLabelValues("error").Inc()
		w.logger.Warn("cache write batch failed", "size", len(batch), "error", err)
		return
	}
	observability.CacheWriteBatchesTotal.WithLabelValues("ok").Inc()
	w.logger.Debug("cache write batch applied", "size", len(batch), "duration", time.Since(started))
}
