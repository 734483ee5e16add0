package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/interfaces"
)

// pollInterval is the loop's safety net for jobs enqueued without a Kick
// (stuck-job resets, writes from another process).
const pollInterval = 15 * time.Second

// LocalExecutor runs jobs in-process through a single consumer. Exactly
// one job executes its side effects at a time; everything else waits in
// the store's queue.
type LocalExecutor struct {
	store  interfaces.JobStorage
	runner *Runner
	logger arbor.ILogger

	kick    chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewLocalExecutor creates the in-process executor.
func NewLocalExecutor(store interfaces.JobStorage, runner *Runner, logger arbor.ILogger) *LocalExecutor {
	return &LocalExecutor{
		store:  store,
		runner: runner,
		logger: logger,
		kick:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
}

// Kick signals that a job may be claimable. Coalesces; never blocks.
func (e *LocalExecutor) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Start launches the consumer loop.
func (e *LocalExecutor) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return errors.New("executor already started")
	}
	e.started = true

	e.wg.Add(1)
	go e.loop()

	e.logger.Info().Msg("Local job executor started")
	return nil
}

// Stop shuts the consumer down, waiting for an in-flight job to finish.
func (e *LocalExecutor) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	e.mu.Unlock()

	close(e.stop)
	e.wg.Wait()
	e.logger.Info().Msg("Local job executor stopped")
}

func (e *LocalExecutor) loop() {
	defer e.wg.Done()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	// Pick up anything left queued from a previous run
	e.drain()

	for {
		select {
		case <-e.stop:
			return
		case <-e.kick:
			e.drain()
		case <-ticker.C:
			e.drain()
		}
	}
}

// drain claims and executes jobs until the queue is empty.
func (e *LocalExecutor) drain() {
	ctx := context.Background()
	for {
		select {
		case <-e.stop:
			return
		default:
		}

		job, err := e.store.ClaimNextJob(ctx)
		if err != nil {
			if !errors.Is(err, interfaces.ErrNoQueuedJobs) {
				e.logger.Error().Err(err).Msg("Failed to claim job")
			}
			return
		}

		e.runner.Execute(ctx, job)
	}
}

// RemoteExecutor is the delegating strategy: jobs stay queued until the
// external polling agent claims them over HTTP. Kick is a no-op.
type RemoteExecutor struct {
	logger arbor.ILogger
}

// NewRemoteExecutor creates the remote-delegating executor.
func NewRemoteExecutor(logger arbor.ILogger) *RemoteExecutor {
	return &RemoteExecutor{logger: logger}
}

func (e *RemoteExecutor) Kick() {}

func (e *RemoteExecutor) Start() error {
	e.logger.Info().Msg("Remote execution mode: jobs will be claimed by the polling agent")
	return nil
}

func (e *RemoteExecutor) Stop() {}
