// Package scheduler runs campaigns on cron schedules. At most one run is
// active at a time, because every job drives the same identity.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultJobTimeout bounds one scheduled run.
const DefaultJobTimeout = 3 * time.Hour

// Job represents a scheduled task
type Job func(ctx context.Context) error

// Scheduler manages periodic tasks
type Scheduler struct {
	cron     *cron.Cron
	jobs     map[string]cron.EntryID
	timezone *time.Location
	logger   *zap.Logger
	timeout  time.Duration

	// busy is held while any job runs.
	busy   sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Scheduler) { s.logger = l } }

// WithJobTimeout replaces DefaultJobTimeout.
func WithJobTimeout(d time.Duration) Option { return func(s *Scheduler) { s.timeout = d } }

// New creates a new scheduler with the given timezone
func New(timezone string, opts ...Option) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}

	s := &Scheduler{
		jobs:     make(map[string]cron.EntryID),
		timezone: loc,
		logger:   zap.NewNop(),
		timeout:  DefaultJobTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	cl := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl), s.exclusive()),
	)
	return s, nil
}

// exclusive skips a job while any other job is still running.
func (s *Scheduler) exclusive() cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			if !s.busy.TryLock() {
				s.logger.Info("another run is active, skipping")
				return
			}
			defer s.busy.Unlock()
			j.Run()
		})
	}
}

// AddJob adds a job with a cron schedule
// schedule format: "0 7 * * *" (at 7:00 AM daily)
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already scheduled", name)
	}
	entryID, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()

		log := s.logger.With(zap.String("job", name))
		log.Info("starting job")
		start := time.Now()

		if err := job(ctx); err != nil {
			log.Error("job failed", zap.Error(err))
		} else {
			log.Info("job completed", zap.Duration("elapsed", time.Since(start).Round(time.Second)))
		}
	})

	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	s.logger.Info("added job", zap.String("job", name), zap.String("schedule", schedule))

	return nil
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) {
	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		s.logger.Info("removed job", zap.String("job", name))
	}
}

// Entry is one named job with its cron schedule.
type Entry struct {
	Name     string
	Schedule string
	Job      Job
}

// SetJobs replaces every scheduled job with entries. On error the jobs
// added so far stay scheduled.
func (s *Scheduler) SetJobs(entries []Entry) error {
	for name := range s.jobs {
		s.RemoveJob(name)
	}
	for _, e := range entries {
		if err := s.AddJob(e.Name, e.Schedule, e.Job); err != nil {
			return err
		}
	}
	return nil
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.String("timezone", s.timezone.String()))
	s.cron.Start()
}

// Stop halts the scheduler and cancels running jobs. The returned context
// is done once they have returned.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("stopping scheduler")
	s.cancel()
	return s.cron.Stop()
}

// RunNow immediately executes a job under the same exclusion as scheduled
// runs.
func (s *Scheduler) RunNow(ctx context.Context, name string, job Job) error {
	if !s.busy.TryLock() {
		return fmt.Errorf("job %s not started: another run is active", name)
	}
	defer s.busy.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.logger.Info("running job now", zap.String("job", name))
	return job(ctx)
}

// ListJobs returns info about scheduled jobs
func (s *Scheduler) ListJobs() []JobInfo {
	entries := s.cron.Entries()
	infos := make([]JobInfo, 0, len(entries))

	for name, entryID := range s.jobs {
		for _, entry := range entries {
			if entry.ID == entryID {
				infos = append(infos, JobInfo{
					Name:    name,
					NextRun: entry.Next,
					LastRun: entry.Prev,
				})
				break
			}
		}
	}

	return infos
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
