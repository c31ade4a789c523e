package canvas

import (
	"collaborative-canvas-backend/internal/sync"
	"collaborative-canvas-backend/internal/worker"
	"collaborative-canvas-backend/redis"
	"context"
	"log"
	"time"
)

// Flusher periodically persists the live collaborative state of active
// canvases. It is the only background owner of canvas data: the sync engine
// marks canvases active, each tick drains that set, pulls the engine's
// binary state and stores it as the durable snapshot.
type Flusher struct {
	service    Service
	syncClient sync.Client
	cache      *redis.Cache
	pool       *worker.WorkerPool
	interval   time.Duration
	stop       chan struct{}
	done       chan struct{}
}

func NewFlusher(service Service, syncClient sync.Client, cache *redis.Cache, pool *worker.WorkerPool, interval time.Duration) *Flusher {
	return &Flusher{
		service:    service,
		syncClient: syncClient,
		cache:      cache,
		pool:       pool,
		interval:   interval,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the flush loop until Stop is called.
func (f *Flusher) Start() {
	go func() {
		defer close(f.done)
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				f.flushActive()
			case <-f.stop:
				// one final pass so in-flight activity isn't lost on shutdown
				f.flushActive()
				return
			}
		}
	}()
}

// Stop halts the loop after a final flush and waits for it to finish.
func (f *Flusher) Stop() {
	close(f.stop)
	<-f.done
}

func (f *Flusher) flushActive() {
	ctx, cancel := context.WithTimeout(context.Background(), f.interval)
	defer cancel()

	for _, canvasID := range f.cache.DrainActive(ctx) {
		id := canvasID
		f.pool.Submit(func(taskCtx context.Context) error {
			taskCtx, cancel := context.WithTimeout(taskCtx, 5*time.Second)
			defer cancel()

			state, err := f.syncClient.FetchCanvasState(taskCtx, id)
			if err != nil {
				// the canvas stays dirty in the engine; the next activity
				// ping re-queues it
				return err
			}
			if len(state) == 0 {
				return nil
			}
			if err := f.service.SaveSnapshot(taskCtx, id, state); err != nil {
				return err
			}
			log.Printf("flushed snapshot for canvas %s (%d bytes)", id, len(state))
			return nil
		})
	}
}
