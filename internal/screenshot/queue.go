package screenshot

import (
	"context"
	"sync"
)

// capturer is the single-capture operation the queue dispatches to
type capturer interface {
	Capture(ctx context.Context, opts *Options) (*Result, error)
}

// QueuedScreenshotter bounds concurrent captures to one worker per browser and
// rejects requests once its buffer is full
type QueuedScreenshotter struct {
	base    capturer
	closer  func() error
	queue   chan *queueRequest
	workers sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type queueRequest struct {
	ctx    context.Context
	opts   *Options
	result chan *captureResult
}

type captureResult struct {
	result *Result
	err    error
}

// NewQueuedScreenshotter wraps base with poolSize workers, one per browser
func NewQueuedScreenshotter(base *Screenshotter, poolSize, queueSize int) *QueuedScreenshotter {
	return newQueue(base, base.Close, poolSize, queueSize)
}

func newQueue(base capturer, closer func() error, workers, queueSize int) *QueuedScreenshotter {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	qs := &QueuedScreenshotter{
		base:   base,
		closer: closer,
		queue:  make(chan *queueRequest, queueSize),
	}

	for i := 0; i < workers; i++ {
		qs.workers.Add(1)
		go qs.worker()
	}

	return qs
}

// CaptureQueued enqueues the request and waits for its result or ctx
func (qs *QueuedScreenshotter) CaptureQueued(ctx context.Context, opts *Options) (*Result, error) {
	req := &queueRequest{
		ctx:    ctx,
		opts:   opts,
		result: make(chan *captureResult, 1),
	}

	qs.mu.RLock()
	if qs.closed {
		qs.mu.RUnlock()
		return failedResult(opts.URL, ErrClosed), ErrClosed
	}
	select {
	case qs.queue <- req:
		qs.mu.RUnlock()
	case <-ctx.Done():
		qs.mu.RUnlock()
		return failedResult(opts.URL, ctx.Err()), ctx.Err()
	default:
		qs.mu.RUnlock()
		return failedResult(opts.URL, ErrQueueFull), ErrQueueFull
	}

	select {
	case res := <-req.result:
		return res.result, res.err
	case <-ctx.Done():
		return failedResult(opts.URL, ErrQueueTimeout), ErrQueueTimeout
	}
}

func (qs *QueuedScreenshotter) worker() {
	defer qs.workers.Done()

	for req := range qs.queue {
		if err := req.ctx.Err(); err != nil {
			req.result <- &captureResult{result: failedResult(req.opts.URL, err), err: err}
			continue
		}

		result, err := qs.base.Capture(req.ctx, req.opts)
		req.result <- &captureResult{result: result, err: err}
	}
}

// QueueStats returns current queue depth and capacity
func (qs *QueuedScreenshotter) QueueStats() (queued, capacity int) {
	return len(qs.queue), cap(qs.queue)
}

// Close drains the queue, waits for workers and shuts the browsers down
func (qs *QueuedScreenshotter) Close() error {
	qs.mu.Lock()
	if qs.closed {
		qs.mu.Unlock()
		return nil
	}
	qs.closed = true
	close(qs.queue)
	qs.mu.Unlock()

	qs.workers.Wait()

	if qs.closer != nil {
		return qs.closer()
	}
	return nil
}
