package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/OrFisher/real-time-speech-processor/internal/observability"
	"github.com/OrFisher/real-time-speech-processor/internal/queue"
)

// Pool runs N concurrent consumers against the job queue. Jobs from the
// same session may complete out of order when N > 1; downstream
// consumers are expected to tolerate that.
type Pool struct {
	queue queue.Queue
	exec  *Executor
	size  int
}

func NewPool(q queue.Queue, exec *Executor, size int) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{queue: q, exec: exec, size: size}
}

// Run blocks until ctx is cancelled and all workers have drained.
func (p *Pool) Run(ctx context.Context) {
	logger := observability.ComponentLogger("worker_pool")
	logger.Info().Int("workers", p.size).Msg("worker pool starting")

	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			err := p.queue.Consume(ctx, p.exec.Process)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Int("worker", worker).Msg("consumer stopped")
			}
		}(i)
	}
	wg.Wait()
	logger.Info().Msg("worker pool stopped")
}
