package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Job represents a scheduled job
type Job struct {
	Name     string
	Interval time.Duration
	Fn       func(ctx context.Context) error

	running *atomic.Bool
}

// Scheduler manages scheduled jobs
type Scheduler struct {
	jobs   []Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewScheduler creates a scheduler whose jobs stop when parent is done or Stop is called.
func NewScheduler(parent context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{
		jobs:   make([]Job, 0),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob adds a job to the scheduler
func (s *Scheduler) AddJob(name string, interval time.Duration, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = append(s.jobs, Job{
		Name:     name,
		Interval: interval,
		Fn:       fn,
		running:  &atomic.Bool{},
	})
	slog.Info("Cron job registered", "name", name, "interval", interval)
}

// Start begins running all scheduled jobs
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runJob(job)
	}

	slog.Info("Cron scheduler started", "job_count", len(s.jobs))
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	slog.Info("Stopping cron scheduler...")
	s.cancel()
	s.wg.Wait()
	slog.Info("Cron scheduler stopped")
}

// runJob runs a single job on its schedule
func (s *Scheduler) runJob(job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	// Run immediately on start
	s.executeJob(s.ctx, job)

	for {
		select {
		case <-s.ctx.Done():
			slog.Info("Cron job stopping", "name", job.Name)
			return
		case <-ticker.C:
			s.executeJob(s.ctx, job)
		}
	}
}

// executeJob runs job unless a previous run is still in flight.
func (s *Scheduler) executeJob(ctx context.Context, job Job) error {
	if !job.running.CompareAndSwap(false, true) {
		slog.Warn("Cron job still running, skipping tick", "name", job.Name)
		return nil
	}
	defer job.running.Store(false)

	start := time.Now()
	slog.Debug("Cron job starting", "name", job.Name)

	if err := job.Fn(ctx); err != nil {
		slog.Error("Cron job failed", "name", job.Name, "error", err, "duration", time.Since(start))
		return fmt.Errorf("%s: %w", job.Name, err)
	}
	slog.Debug("Cron job completed", "name", job.Name, "duration", time.Since(start))
	return nil
}

// RunOnce runs every job once and joins their errors.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	var errs []error
	for _, job := range jobs {
		if err := s.executeJob(ctx, job); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
