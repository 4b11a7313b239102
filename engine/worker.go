package engine

import (
	iface "YoloDetServer/interface"
	"YoloDetServer/logger"
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

var errWorkerStopped = errors.New("inference worker stopped")

type job struct {
	ctx    context.Context
	input  []float32
	result chan jobResult
}

type jobResult struct {
	output []float32
	err    error
}

// worker runs every inference of one detector on a single goroutine locked to
// its OS thread, for runtimes that keep thread-local state.
type worker struct {
	backend iface.Inferencer
	jobs    chan job
	done    chan struct{}
	stop    sync.Once
	exited  chan struct{}
}

func newWorker(backend iface.Inferencer) *worker {
	w := &worker{
		backend: backend,
		jobs:    make(chan job),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *worker) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.exited)
	for {
		select {
		case <-w.done:
			return
		case j := <-w.jobs:
			out, err := w.safeRun(j.ctx, j.input)
			j.result <- jobResult{output: out, err: err}
		}
	}
}

func (w *worker) safeRun(ctx context.Context, input []float32) (out []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log().Error("inference worker panic recovered", zap.Any("panic", r))
			err = fmt.Errorf("inference panicked: %v", r)
		}
	}()
	return w.backend.Run(ctx, input)
}

// run hands input to the worker and waits for the result. Once submitted the
// call waits for completion even if ctx is cancelled, so the caller never
// releases the busy flag while inference is still running.
func (w *worker) run(ctx context.Context, input []float32) ([]float32, error) {
	j := job{ctx: ctx, input: input, result: make(chan jobResult, 1)}
	select {
	case w.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.done:
		return nil, errWorkerStopped
	}
	r := <-j.result
	return r.output, r.err
}

func (w *worker) close() {
	w.stop.Do(func() { close(w.done) })
	<-w.exited
}
