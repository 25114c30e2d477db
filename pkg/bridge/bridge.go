// Package bridge adapts the asynchronous backend interface to the blocking
// call-and-wait contract the FUSE handlers need.
//
// A Bridge owns exactly one worker goroutine. Every bridged call hands a task
// to that worker and parks the calling goroutine until the task completes, so
// at most one backend operation is in flight at any instant and callers are
// served strictly in submission order. The bridge adds no retries and no
// caching of its own; backend errors pass through unchanged.
package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/marmos91/bucketfs/pkg/backend"
)

// ErrBridgeClosed is returned by calls submitted after Close.
var ErrBridgeClosed = errors.New("bridge is closed")

// Bridge serializes backend calls onto a single owned worker goroutine.
type Bridge struct {
	backend backend.Backend

	// tasks is unbuffered: a submitter blocks until the worker accepts its
	// task, which is what makes queueing order observable.
	tasks chan func(context.Context)

	// quit is closed by Close to stop accepting new work.
	quit chan struct{}

	// done is closed when the worker goroutine exits.
	done chan struct{}

	closeOnce sync.Once
}

// New creates a bridge around the given backend and starts its worker.
// The caller must Close the bridge when the filesystem is torn down.
func New(b backend.Backend) *Bridge {
	br := &Bridge{
		backend: b,
		tasks:   make(chan func(context.Context)),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go br.worker()
	return br
}

// worker runs submitted tasks one at a time until Close.
//
// Tasks run under the bridge's own background context: callers cannot cancel
// a backend operation once submitted, and the bridge enforces no deadline.
func (br *Bridge) worker() {
	defer close(br.done)
	ctx := context.Background()
	for {
		select {
		case <-br.quit:
			return
		case task := <-br.tasks:
			task(ctx)
		}
	}
}

// submit hands a task to the worker and blocks until it has run.
func (br *Bridge) submit(run func(context.Context)) error {
	completed := make(chan struct{})
	select {
	case <-br.quit:
		return ErrBridgeClosed
	case br.tasks <- func(ctx context.Context) {
		run(ctx)
		close(completed)
	}:
		<-completed
		return nil
	}
}

// List performs a blocking backend listing of the bucket.
func (br *Bridge) List(bucket string) ([]backend.Object, error) {
	var objects []backend.Object
	var err error
	if serr := br.submit(func(ctx context.Context) {
		objects, err = br.backend.List(ctx, bucket)
	}); serr != nil {
		return nil, serr
	}
	return objects, err
}

// Fetch performs a blocking backend download of the object addressed by key.
func (br *Bridge) Fetch(bucket, key string) ([]byte, error) {
	var data []byte
	var err error
	if serr := br.submit(func(ctx context.Context) {
		data, err = br.backend.Fetch(ctx, bucket, key)
	}); serr != nil {
		return nil, serr
	}
	return data, err
}

// Close stops the bridge. It is idempotent and waits for any in-flight
// operation to finish before returning. Calls submitted after Close fail
// with ErrBridgeClosed.
func (br *Bridge) Close() {
	br.closeOnce.Do(func() {
		close(br.quit)
	})
	<-br.done
}
