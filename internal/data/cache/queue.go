package cache

import (
	"context"
	"io"
	"sync"
	"time"

	"dwmm/internal/engine/parser"
)

type Operation int

const (
	OpPut Operation = iota
	OpDelete
)

func (o Operation) String() string {
	if o == OpDelete {
		return "delete"
	}
	return "put"
}

// WriteRequest is one pending cache mutation.
type WriteRequest struct {
	Op    Operation
	Path  string
	Hash  string
	Decls []parser.Declaration
}

type EnqueueResult string

const (
	EnqueueAccepted EnqueueResult = "accepted"
	EnqueueDropped  EnqueueResult = "dropped"
)

// WriteQueue is a bounded in-memory queue of cache writes. Enqueue never
// blocks; a full or closed queue drops the request.
type WriteQueue struct {
	ch     chan WriteRequest
	mu     sync.RWMutex
	closed bool
}

func NewWriteQueue(capacity int) *WriteQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &WriteQueue{ch: make(chan WriteRequest, capacity)}
}

func (q *WriteQueue) Enqueue(req WriteRequest) EnqueueResult {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return EnqueueDropped
	}
	select {
	case q.ch <- req:
		return EnqueueAccepted
	default:
		return EnqueueDropped
	}
}

// DequeueBatch waits up to wait for a first request and then takes whatever
// else is queued, up to maxItems. It returns io.EOF once the queue is closed
// and drained.
func (q *WriteQueue) DequeueBatch(ctx context.Context, maxItems int, wait time.Duration) ([]WriteRequest, error) {
	if maxItems <= 0 {
		maxItems = 1
	}
	batch := make([]WriteRequest, 0, maxItems)

	var timer <-chan time.Time
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		timer = t.C
	}

	select {
	case req, ok := <-q.ch:
		if !ok {
			return nil, io.EOF
		}
		batch = append(batch, req)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer:
		return nil, nil
	}

	for len(batch) < maxItems {
		select {
		case req, ok := <-q.ch:
			if !ok {
				return batch, io.EOF
			}
			batch = append(batch, req)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

func (q *WriteQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ch)
	return nil
}

func (q *WriteQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.ch)
}
