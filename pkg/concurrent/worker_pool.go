package concurrent

import (
	"sync"
)

type JobFunc[T any, G any] func(job T) G

// indexed carries the submission index of a job through the pool.
type indexed[T any] struct {
	idx  int
	item T
}

// WorkerPool runs jobs on a fixed number of goroutines. results come back tagged
// with the order the jobs were added in.
type WorkerPool[T any, G any] struct {
	numWorkers int
	jobQueue   chan indexed[T]
	results    chan indexed[G]
	wg         sync.WaitGroup
	added      int
}

func NewWorkerPool[T any, G any](numWorkers, jobQueueSize int) *WorkerPool[T, G] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &WorkerPool[T, G]{
		numWorkers: numWorkers,
		jobQueue:   make(chan indexed[T], jobQueueSize),
		results:    make(chan indexed[G], jobQueueSize),
	}
}

func (wp *WorkerPool[T, G]) worker(jobFunc JobFunc[T, G]) {
	defer wp.wg.Done()
	for job := range wp.jobQueue {
		wp.results <- indexed[G]{idx: job.idx, item: jobFunc(job.item)}
	}
}

func (wp *WorkerPool[T, G]) Start(jobFunc JobFunc[T, G]) {
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(jobFunc)
	}
}

func (wp *WorkerPool[T, G]) Wait() {
	wp.wg.Wait()
	close(wp.results)
}

// AddJob queues job. it blocks once the queue is full and no worker has started.
func (wp *WorkerPool[T, G]) AddJob(job T) {
	wp.jobQueue <- indexed[T]{idx: wp.added, item: job}
	wp.added++
}

func (wp *WorkerPool[T, G]) Close() {
	close(wp.jobQueue)
}

// CollectResults drains the pool and returns the results in job order. call it after Wait.
func (wp *WorkerPool[T, G]) CollectResults() []G {
	out := make([]G, wp.added)
	for res := range wp.results {
		out[res.idx] = res.item
	}
	return out
}

// Map runs fn over jobs on numWorkers goroutines and returns the results in job order.
func Map[T any, G any](numWorkers int, jobs []T, fn JobFunc[T, G]) []G {
	wp := NewWorkerPool[T, G](numWorkers, len(jobs))
	for _, job := range jobs {
		wp.AddJob(job)
	}
	wp.Close()
	wp.Start(fn)
	wp.Wait()
	return wp.CollectResults()
}
