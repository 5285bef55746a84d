package utils

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

type WorkerFunction = func(t *tomb.Tomb, task any) error

// WorkerPool maintains a fixed set of goroutines draining a shared task
// channel. Tasks are opaque; the work function owns interpretation.
type WorkerPool struct {
	n     int            // number of workers
	tasks chan any       // pending tasks
	work  WorkerFunction // do work method
}

func NewWorkerPool(size int) WorkerPool {
	return WorkerPool{
		tasks: make(chan any, taskChanSize),
		n:     size,
	}
}

// Setup spawns the pool's workers under the tomb and blocks until the tomb
// dies. A task that returns an error is logged and its worker keeps
// running.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	log.Info().Int("workers", pool.n).Msg("adding workers")
	pool.work = work
	for i := 0; i < pool.n; i++ {
		t.Go(func() error {
			return pool.worker(t)
		})
	}
	<-t.Dying()
}

// AddTask queues a task for the next free worker.
func (pool *WorkerPool) AddTask(task any) {
	pool.tasks <- task
}

// Workers wait on tasks in the task channel and action them.
func (pool *WorkerPool) worker(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-pool.tasks:
			if err := pool.work(t, task); err != nil {
				log.Error().Err(err).Msg("worker task failed")
			}
		}
	}
}
