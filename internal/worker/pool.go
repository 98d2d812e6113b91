// Package worker runs claim renders and checks concurrently and rate limits participants.
package worker

import (
	"context"
	"sort"
	"sync"
)

// Task is a unit of work producing a value
type Task[T any] func(ctx context.Context) (T, error)

// Outcome is the result of one task; Index is the task's submission order
type Outcome[T any] struct {
	Index int
	Value T
	Err   error
}

type queuedTask[T any] struct {
	index int
	task  Task[T]
}

// Pool manages a pool of workers that execute tasks concurrently
type Pool[T any] struct {
	workers    int
	queue      chan queuedTask[T]
	results    chan Outcome[T]
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once

	mu        sync.Mutex
	submitted int

	collected chan []Outcome[T]
}

// NewPool creates a pool whose tasks run under ctx
func NewPool[T any](ctx context.Context, workers int) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool[T]{
		workers:    workers,
		queue:      make(chan queuedTask[T], workers*2),
		results:    make(chan Outcome[T], workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
		collected:  make(chan []Outcome[T], 1),
	}
}

// Start starts the worker goroutines and the result collector
func (p *Pool[T]) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	go p.collect()
}

// collect drains results as they arrive so workers never block on a full channel
func (p *Pool[T]) collect() {
	var outcomes []Outcome[T]
	for o := range p.results {
		outcomes = append(outcomes, o)
	}

	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].Index < outcomes[j].Index
	})

	p.collected <- outcomes
}

func (p *Pool[T]) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case qt, ok := <-p.queue:
			if !ok {
				return
			}
			value, err := qt.task(p.ctx)
			select {
			case p.results <- Outcome[T]{Index: qt.index, Value: value, Err: err}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a task. It returns false once the pool has been shut down.
func (p *Pool[T]) Submit(task Task[T]) bool {
	if p.ctx.Err() != nil {
		return false
	}

	p.mu.Lock()
	idx := p.submitted
	p.submitted++
	p.mu.Unlock()

	select {
	case <-p.ctx.Done():
		return false
	case p.queue <- queuedTask[T]{index: idx, task: task}:
		return true
	}
}

// Wait closes the queue, waits for all tasks and returns outcomes in submission order
func (p *Pool[T]) Wait() []Outcome[T] {
	close(p.queue)
	p.wg.Wait()
	p.closeResults()

	outcomes := <-p.collected
	p.cancelFunc()

	return outcomes
}

// Shutdown stops the pool without waiting for queued tasks and returns the
// outcomes collected so far
func (p *Pool[T]) Shutdown() []Outcome[T] {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()

	return <-p.collected
}

func (p *Pool[T]) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}

// Run executes tasks with the given concurrency and returns their outcomes in order
func Run[T any](ctx context.Context, workers int, tasks []Task[T]) []Outcome[T] {
	pool := NewPool[T](ctx, workers)
	pool.Start()

	for _, t := range tasks {
		if !pool.Submit(t) {
			break
		}
	}

	return pool.Wait()
}
