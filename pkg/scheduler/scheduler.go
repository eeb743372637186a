package scheduler

import (
	"context"
	"sync"
)

// Task is a unit of work executed on a pool worker.
type Task func(ctx context.Context) (any, error)

// Result carries a task's outcome through its Future.
type Result struct {
	Data any
	Err  error
}

type taskRequest struct {
	fn  Task
	c   chan Result
	ctx context.Context
}

type worker struct {
	done chan any
}

func (w worker) work(r taskRequest) {
	v, err := r.fn(r.ctx)
	r.c <- Result{Data: v, Err: err}
	w.done <- struct{}{}
}

type queue[T any] []T

func (q *queue[T]) len() int { return len(*q) }

func (q *queue[T]) pop() T {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[0 : n-1]
	return x
}

func (q *queue[T]) push(t T) {
	*q = append(*q, t)
}

// Future resolves once its task finished. Poll never blocks; the task
// keeps running whether or not anyone polls, which is what the runner
// relies on for its fire-and-forget agent launch.
type Future struct {
	resolved bool
	value    Result
	cancel   context.CancelFunc
	lock     sync.Mutex
}

func newFuture(input chan Result, cancel context.CancelFunc) *Future {
	f := &Future{cancel: cancel}

	go func() {
		v := <-input
		f.lock.Lock()
		defer f.lock.Unlock()

		f.value = v
		f.resolved = true
		f.cancel()
	}()

	return f
}

func (f *Future) Poll() (value Result, isResolved bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.resolved {
		return f.value, true
	}
	return Result{}, false
}

func (f *Future) Stop() {
	f.cancel()
}

// Scheduler dispatches tasks to a fixed pool of workers. Submitted work
// queues up when all workers are busy.
type Scheduler struct {
	workers    *queue[worker]
	taskQueue  *queue[taskRequest]
	close      chan any
	done       chan any
	work       chan taskRequest
	mainCtx    context.Context
	mainCancel context.CancelFunc
}

func NewScheduler(nbWorkers int) *Scheduler {
	done := make(chan any)
	wq := &queue[worker]{}
	for range nbWorkers {
		wq.push(worker{done: done})
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		workers:    wq,
		taskQueue:  &queue[taskRequest]{},
		close:      make(chan any),
		done:       done,
		work:       make(chan taskRequest),
		mainCtx:    ctx,
		mainCancel: cancel,
	}
	go s.run()
	return s
}

// AddTask submits fn to the pool and returns its Future. The task's
// context is cancelled when the Future is stopped or the scheduler
// closes.
func (s *Scheduler) AddTask(fn Task) *Future {
	c := make(chan Result, 1)
	ctx, cancel := context.WithCancel(s.mainCtx)
	s.work <- taskRequest{fn, c, ctx}
	return newFuture(c, cancel)
}

func (s *Scheduler) Close() {
	s.mainCancel()
	s.close <- struct{}{}
}

func (s *Scheduler) run() {
	for {
		select {
		case w := <-s.work:
			s.taskQueue.push(w)
			if s.workers.len() == 0 {
				continue
			}
			s.dispatch(s.taskQueue.pop())
		case <-s.done:
			s.workers.push(worker{done: s.done})

			if s.taskQueue.len() == 0 {
				continue
			}
			s.dispatch(s.taskQueue.pop())
		case <-s.close:
			return
		}
	}
}

func (s *Scheduler) dispatch(r taskRequest) {
	worker := s.workers.pop()
	go worker.work(r)
}
