package systems

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-gpu/engine/core"
)

var ErrNoWorkers = errors.New("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")
var ErrJobSystemStopped = errors.New("job system stopped")

/**
 * @brief Pool of simulation-side workers for work that must stay off the
 * core thread, such as decoding mesh files.
 */
type JobSystem struct {
	numWorkers int
	jobQueue   chan func()
	quit       chan struct{}
	wg         sync.WaitGroup
	// Submitters that passed the closed check and may still be sending.
	senders sync.WaitGroup

	mutex    sync.RWMutex
	isClosed bool
}

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}
	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan func(), channelSize),
		quit:       make(chan struct{}),
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				job()
			}
		}()
	}
}

/**
 * @brief Runs the queued jobs to completion and stops the workers.
 * Submissions blocked on a full queue, including ones made from inside a
 * job, fail with ErrJobSystemStopped.
 */
func (js *JobSystem) Shutdown() error {
	js.mutex.Lock()
	if js.isClosed {
		js.mutex.Unlock()
		return nil
	}
	js.isClosed = true
	close(js.quit)
	js.mutex.Unlock()

	js.senders.Wait()
	close(js.jobQueue)
	js.wg.Wait()
	return nil
}

func (js *JobSystem) submit(job func()) error {
	js.mutex.RLock()
	if js.isClosed {
		js.mutex.RUnlock()
		return ErrJobSystemStopped
	}
	js.senders.Add(1)
	js.mutex.RUnlock()
	defer js.senders.Done()

	select {
	case js.jobQueue <- job:
		return nil
	case <-js.quit:
		return ErrJobSystemStopped
	}
}

/**
 * @brief Runs fn on a worker. The returned op completes with its result;
 * a panic in fn fails the op instead of killing the worker.
 */
func RunJob[T any](js *JobSystem, fn func() (T, error)) *core.AsyncOp[T] {
	var zero T
	op, complete := core.NewPendingOp[T]()
	err := js.submit(func() {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("job panicked: %v: %w", r, core.ErrCommandPanicked)
				core.LogError("%s", err)
				complete(zero, err)
			}
		}()
		v, err := fn()
		if err != nil {
			core.LogError("%s", err)
		}
		complete(v, err)
	})
	if err != nil {
		return core.CompletedOp(zero, err)
	}
	return op
}
