package index

import (
	"context"

	"github.com/pkg/errors"
)

// queueCapacity bounds the worker's request queue, providing
// backpressure on the front-end when the single mutation thread falls
// behind.
const queueCapacity = 65535

// ErrWorkerGone is returned by Do when the worker's queue is closed or
// the reply channel is never fulfilled.
var ErrWorkerGone = errors.New("index: worker is gone")

// PublishOp requests that rec and archive be published.
type PublishOp struct {
	Record  Record
	Archive []byte
}

// YankOp requests that (Name, Vers) have its yanked flag set to Desired.
type YankOp struct {
	Name, Vers string
	Desired    bool
}

// AddOwnerOp requests that Ident be recorded as an owner of Name in the
// index's advisory owners file.
type AddOwnerOp struct {
	Name, Ident string
}

// DelOwnerOp requests that Ident be removed from Name's advisory owners
// file.
type DelOwnerOp struct {
	Name, Ident string
}

// Operation is one of PublishOp, YankOp, AddOwnerOp, or DelOwnerOp.
type Operation any

// Response carries the result of executing an Operation. Err is nil on
// success; for Yank it may be ErrCrateNotFound, for Publish a wrapped
// write/serialization failure.
type Response struct {
	Err error
}

type job struct {
	op    Operation
	reply chan Response
}

// Worker is the single-threaded serializer for all git-index and
// artifact-store mutations. The embedded go-git repository handle is
// not safe to drive from multiple goroutines because go-git (like the
// version-control library it's modeled on) mutates shared on-disk and
// in-process state as it manipulates the repository; Worker confines
// all such access to the one goroutine started by Run.
type Worker struct {
	writer *Writer
	store  ArtifactStore
	queue  chan job
	done   chan struct{}
}

// NewWorker constructs a worker around writer and store. Call Run to
// start its goroutine.
func NewWorker(writer *Writer, store ArtifactStore) *Worker {
	return &Worker{
		writer: writer,
		store:  store,
		queue:  make(chan job, queueCapacity),
		done:   make(chan struct{}),
	}
}

// Run executes the single-threaded consume loop until ctx is canceled.
// It must be run in its own goroutine and must never be called
// concurrently with itself.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-w.queue:
			if !ok {
				return
			}
			j.reply <- Response{Err: w.execute(j.op)}
		}
	}
}

func (w *Worker) execute(op Operation) error {
	switch o := op.(type) {
	case PublishOp:
		return w.writer.Publish(o.Record, o.Archive, w.store)
	case YankOp:
		return w.writer.Yank(o.Name, o.Vers, o.Desired)
	case AddOwnerOp:
		return w.writer.AddOwner(o.Name, o.Ident)
	case DelOwnerOp:
		return w.writer.DelOwner(o.Name, o.Ident)
	default:
		return errors.Errorf("index: unknown operation type %T", op)
	}
}

// Do enqueues op and awaits the worker's reply -- the request bridge
// between the async HTTP front-end and the single mutation thread.
// Enqueue suspends on backpressure if the queue is full; Do then
// suspends until the worker replies. Canceling ctx before the reply
// arrives does not cancel the operation itself, which runs to
// completion on the worker regardless; it only stops Do from waiting on
// it further.
func (w *Worker) Do(ctx context.Context, op Operation) (Response, error) {
	reply := make(chan Response, 1)
	select {
	case w.queue <- job{op: op, reply: reply}:
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-w.done:
		return Response{}, ErrWorkerGone
	}
	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-w.done:
		return Response{}, ErrWorkerGone
	}
}

// Close signals the worker to stop accepting new operations once
// drained. It does not wait for Run to return.
func (w *Worker) Close() {
	close(w.queue)
}
