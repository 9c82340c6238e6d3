// Package worker runs the periodic background jobs.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// JobFunc does one run of a job and reports how many items it handled.
type JobFunc func(ctx context.Context) (int, error)

type Job struct {
	Name     string
	Interval time.Duration
	Run      JobFunc
}

// Runner runs every job on its own ticker until the context is cancelled.
// A failing run is logged and the job keeps its schedule.
type Runner struct {
	jobs    []Job
	timeout time.Duration
	log     zerolog.Logger
}

func NewRunner(timeout time.Duration, log zerolog.Logger, jobs ...Job) *Runner {
	return &Runner{jobs: jobs, timeout: timeout, log: log}
}

// Run blocks until ctx is done and all jobs have returned.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range r.jobs {
		if j.Interval <= 0 || j.Run == nil {
			r.log.Warn().Str("job", j.Name).Msg("job disabled")
			continue
		}
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			r.loop(ctx, j)
		}(j)
	}
	wg.Wait()
}

func (r *Runner) loop(ctx context.Context, j Job) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	r.log.Info().Str("job", j.Name).Dur("interval", j.Interval).Msg("job scheduled")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.once(ctx, j)
		}
	}
}

func (r *Runner) once(ctx context.Context, j Job) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Str("job", j.Name).Interface("panic", p).Msg("job panicked")
		}
	}()

	start := time.Now()
	n, err := j.Run(ctx)
	ev := r.log.Debug()
	if err != nil {
		ev = r.log.Error().Err(err)
	} else if n > 0 {
		ev = r.log.Info()
	}
	ev.Str("job", j.Name).Int("processed", n).Dur("took", time.Since(start)).Msg("job run")
}
