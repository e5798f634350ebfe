package workflow

import (
	"context"
	"time"
)

// Scheduler invokes the same workflow request on a fixed interval.
// Periodic runs are ordinary workflow runs; the trigger source is the
// only difference.
type Scheduler struct {
	orch     *Orchestrator
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler creates a scheduler for the orchestrator.
func NewScheduler(orch *Orchestrator, interval time.Duration) *Scheduler {
	return &Scheduler{
		orch:     orch,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins periodic execution and returns the result stream.
// The stream closes when ctx is cancelled or Stop is called. A slow
// consumer delays the next trigger rather than dropping results.
func (s *Scheduler) Start(ctx context.Context, req Request) <-chan *Result {
	results := make(chan *Result)

	go func() {
		defer close(results)
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
			}

			res, err := s.orch.Execute(ctx, req.Persona, req.Query, req.Context)
			if err != nil {
				res = &Result{
					Persona:    req.Persona,
					Status:     StatusFailed,
					ErrKind:    KindConfiguration,
					ErrMessage: err.Error(),
				}
			}

			select {
			case results <- res:
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}
	}()

	return results
}

// Stop halts the scheduler and waits for the result stream to close.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}
