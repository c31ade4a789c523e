package worker

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
)

// Task is a function that represents a background job
type Task func(ctx context.Context) error

const queueCapacity = 1000

// WorkerPool runs fire-and-forget jobs (sync-engine notifications, snapshot
// flushes) off the request path. Failures are logged, never retried here:
// every submitted task's effect is re-derivable from the stores.
type WorkerPool struct {
	taskQueue chan Task
	wg        sync.WaitGroup
	isClosing atomic.Bool
}

func NewWorkerPool(size int) *WorkerPool {
	wp := &WorkerPool{
		taskQueue: make(chan Task, queueCapacity),
	}

	for range size {
		wp.wg.Add(1)
		go wp.startWorker()
	}

	return wp
}

func (wp *WorkerPool) startWorker() {
	defer wp.wg.Done()
	for task := range wp.taskQueue {
		if err := task(context.Background()); err != nil {
			log.Printf("Worker task failed: %v", err)
		}
	}
}

func (wp *WorkerPool) Submit(t Task) {
	if wp.isClosing.Load() {
		log.Println("Warning: task submitted during shutdown, dropping.")
		return
	}
	select {
	case wp.taskQueue <- t:
	default:
		log.Println("Task queue full, dropping task!")
	}
}

// Shutdown closes the queue and waits for workers to finish
func (wp *WorkerPool) Shutdown() {
	wp.isClosing.Store(true)
	close(wp.taskQueue)
	wp.wg.Wait()
}
