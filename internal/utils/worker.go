package utils

import (
	"errors"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	TASK_CHAN_SIZE = 100
)

var ErrPoolClosed = errors.New("worker pool is shutting down")

type WorkerFunction = func(t *tomb.Tomb, task any) error
type WorkerPool struct {
	n     int             // number of workers
	tasks chan any        // task connection pool
	dying <-chan struct{} // closed once the owning tomb dies
}

func NewWorkerPool(size uint) *WorkerPool {
	if size == 0 {
		size = 1
	}
	return &WorkerPool{
		n:     int(size),
		tasks: make(chan any, TASK_CHAN_SIZE),
	}
}

// Setup starts the workers under t. Every worker runs until t starts dying or
// work returns an error, which kills the tomb.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	pool.dying = t.Dying()
	for id := 0; id < pool.n; id++ {
		t.Go(func() error {
			return pool.worker(t, id, work)
		})
	}
}

// AddTask queues a task, blocking while the queue is full. It gives up once the
// pool is shutting down.
func (pool *WorkerPool) AddTask(task any) error {
	select {
	case <-pool.dying:
		return ErrPoolClosed
	case pool.tasks <- task:
		return nil
	}
}

func (pool *WorkerPool) Size() int { return pool.n }

// Workers wait on tasks in the task connection pool and action them.
func (pool *WorkerPool) worker(t *tomb.Tomb, id int, work WorkerFunction) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-pool.tasks:
			if err := work(t, task); err != nil {
				log.Error().Err(err).Int("id", id).Msg("worker exiting")
				return err
			}
		}
	}
}
