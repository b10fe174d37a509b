// Package tasks executes document generation, extraction and
// reconciliation asynchronously, decoupled from the request/response
// cycle. Jobs run with at-least-once semantics and must tolerate
// duplicate execution.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy bounds how a failing job is retried: a fixed backoff
// between attempts, up to MaxAttempts in total.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: time.Minute}
}

type Runner struct {
	policy RetryPolicy
	log    zerolog.Logger

	wg   sync.WaitGroup
	quit chan struct{}
	once sync.Once
}

func NewRunner(policy RetryPolicy, log zerolog.Logger) *Runner {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Runner{
		policy: policy,
		log:    log,
		quit:   make(chan struct{}),
	}
}

// Submit schedules job to run in the background. The job is retried on
// error per the runner's policy; after exhaustion it is logged and
// dropped, leaving the domain status fields to tell the story. Jobs
// receive a context that is cancelled when the runner closes.
func (r *Runner) Submit(name string, job func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-r.quit:
				cancel()
			case <-ctx.Done():
			}
		}()

		for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
			err := job(ctx)
			if err == nil {
				if attempt > 1 {
					r.log.Info().Str("task", name).Int("attempt", attempt).Msg("task succeeded after retry")
				}
				return
			}

			if attempt == r.policy.MaxAttempts {
				r.log.Error().Err(err).Str("task", name).Int("attempts", attempt).
					Msg("task failed, retries exhausted, leaving for manual follow-up")
				return
			}

			r.log.Warn().Err(err).Str("task", name).Int("attempt", attempt).
				Dur("backoff", r.policy.Backoff).Msg("task failed, will retry")

			select {
			case <-time.After(r.policy.Backoff):
			case <-r.quit:
				r.log.Warn().Str("task", name).Msg("runner closing, abandoning retry")
				return
			}
		}
	}()
}

// Close stops scheduling retries and waits for in-flight jobs.
func (r *Runner) Close() {
	r.once.Do(func() { close(r.quit) })
	r.wg.Wait()
}
