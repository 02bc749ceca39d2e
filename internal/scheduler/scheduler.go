// Package scheduler runs a fixed set of named jobs, each on its own
// interval, in isolation from each other and from request handlers:
// one ticker goroutine per job, context cancellation, and a
// sync.WaitGroup for graceful shutdown.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/ditto-upload/internal/logger"
)

// Job is one periodically-run unit of work. Run receives the shared
// application context and returns an error, which the Scheduler logs
// without affecting the job's next tick or any other job.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler spawns one independent timer per registered job.
type Scheduler struct {
	mu   sync.Mutex
	jobs []Job

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Register adds a job. Registering after Start has no effect on already
// running jobs; call Register before Start.
func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

// Start spawns one goroutine per registered job, each on its own ticker.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.mu.Lock()
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	for _, job := range jobs {
		s.wg.Add(1)
		go s.runJob(ctx, job)
	}
}

// Stop cancels every job's context and blocks until each has returned
// from its current run.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, job)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	start := time.Now()
	err := job.Run(ctx)
	if err != nil {
		logger.Error("scheduled job failed", "job", job.Name, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	logger.Debug("scheduled job completed", "job", job.Name, "duration_ms", time.Since(start).Milliseconds())
}
