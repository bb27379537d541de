package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned when an operation is submitted to a closed queue.
var ErrQueueClosed = errors.New("lock: queue closed")

const defaultQueueBuffer = 32

// Op is a control-plane operation. It receives a context that is canceled
// once the queue starts shutting down.
type Op interface {
	Apply(ctx context.Context) error
}

// Func adapts a function into an Op.
type Func func(ctx context.Context) error

func (f Func) Apply(ctx context.Context) error { return f(ctx) }

type request struct {
	op  Op
	res chan error
}

// Queue serializes operations onto a single goroutine. Operations still
// buffered when the queue is closed are drained before Close returns.
type Queue struct {
	ch     chan request
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
}

// NewQueue creates a queue with a fixed buffer. A non-positive buffer
// selects a default of 32.
func NewQueue(buffer int) *Queue {
	if buffer <= 0 {
		buffer = defaultQueueBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		ch:     make(chan request, buffer),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start begins the worker goroutine. Safe to call multiple times.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		go q.run()
	})
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.ctx.Done():
			for {
				select {
				case r := <-q.ch:
					q.apply(r)
				default:
					return
				}
			}
		case r := <-q.ch:
			q.apply(r)
		}
	}
}

func (q *Queue) apply(r request) {
	if r.op == nil {
		if r.res != nil {
			r.res <- nil
		}
		return
	}
	err := r.op.Apply(q.ctx)
	if r.res != nil {
		r.res <- err
	}
}

// Enqueue adds op to the queue without waiting for it to run.
func (q *Queue) Enqueue(op Op) error {
	return q.submit(context.Background(), request{op: op})
}

// Do enqueues op and waits for its result.
func (q *Queue) Do(ctx context.Context, op Op) error {
	r := request{op: op, res: make(chan error, 1)}
	if err := q.submit(ctx, r); err != nil {
		return err
	}
	select {
	case err := <-r.res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		select {
		case err := <-r.res:
			return err
		default:
			return ErrQueueClosed
		}
	}
}

func (q *Queue) submit(ctx context.Context, r request) error {
	if q == nil || q.ch == nil {
		return errors.New("lock: queue not initialized")
	}
	if q.ctx.Err() != nil {
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.ch <- r:
		return nil
	case <-q.ctx.Done():
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting operations, drains the buffer and waits for the
// worker to exit. Closing a queue that was never started still runs the
// buffered operations.
func (q *Queue) Close() {
	if q == nil {
		return
	}
	q.closeOnce.Do(q.cancel)
	q.Start()
	<-q.done
}
