//go:build !windows

// Command naverbot is the scheduling daemon: it runs the campaigns listed
// under [schedule] on their cron expressions until it receives a signal.
// SIGHUP reloads the config and its schedule; SIGUSR1 runs every job now.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/kolangzi/naver-automation/internal/app"
	"github.com/kolangzi/naver-automation/internal/config"
	"github.com/kolangzi/naver-automation/internal/observability"
	"github.com/kolangzi/naver-automation/internal/scheduler"
	"github.com/kolangzi/naver-automation/internal/store"
)

func main() {
	// Load or create configuration
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run - create default config
			cfg = config.Default()
			if err := cfg.Save(); err != nil {
				log.Printf("Warning: could not save default config: %v", err)
			} else {
				path, _ := config.ConfigPath()
				log.Printf("Created default config at: %s", path)
			}
		} else {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	cfg.Overlay(config.NewViper())

	observability.InitializeLogger(cfg.Logger)
	defer observability.Sync()
	logger := observability.GetLogger()

	st, err := store.Open()
	if err != nil {
		logger.Fatal("failed to open run store", zap.Error(err))
	}
	a, err := app.New(cfg, st, app.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to create app", zap.Error(err))
	}

	sched, err := scheduler.New(cfg.Schedule.Timezone, scheduler.WithLogger(logger.Named("scheduler")))
	if err != nil {
		logger.Fatal("failed to create scheduler", zap.Error(err))
	}
	if err := sched.SetJobs(entries(a, cfg)); err != nil {
		logger.Fatal("failed to schedule jobs", zap.Error(err))
	}
	if len(cfg.Schedule.Jobs) == 0 {
		logger.Warn("no jobs configured under [schedule], nothing will run")
	}

	logger.Info("naverbot starting...", zap.String("identity", cfg.Account.Identity))
	sched.Start()
	for _, j := range sched.ListJobs() {
		logger.Info("next run", zap.String("job", j.Name), zap.Time("at", j.NextRun))
	}

	ctx, cancel := context.WithCancel(context.Background())
	var manual sync.WaitGroup

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)
loop:
	for sig := range sigs {
		switch sig {
		case syscall.SIGHUP:
			if err := a.ReloadConfig(); err != nil {
				logger.Error("failed to reload config", zap.Error(err))
				continue
			}
			// The timezone is fixed at startup.
			if err := sched.SetJobs(entries(a, a.Config())); err != nil {
				logger.Error("failed to reschedule jobs", zap.Error(err))
			}
		case syscall.SIGUSR1:
			manual.Add(1)
			go func() {
				defer manual.Done()
				runAll(ctx, sched, entries(a, a.Config()), logger)
			}()
		default:
			break loop
		}
	}

	logger.Info("shutting down, waiting for the active run to stop")
	cancel()
	manual.Wait()
	<-sched.Stop().Done()
	logger.Info("naverbot stopped")
}

// entries maps the configured jobs to scheduler entries.
func entries(a *app.App, cfg *config.Config) []scheduler.Entry {
	out := make([]scheduler.Entry, 0, len(cfg.Schedule.Jobs))
	for _, j := range cfg.Schedule.Jobs {
		out = append(out, scheduler.Entry{Name: j.Name, Schedule: j.Cron, Job: a.Job(j.Campaign, j.Seed)})
	}
	return out
}

// runAll runs every configured job once, in order, outside its schedule.
func runAll(ctx context.Context, sched *scheduler.Scheduler, jobs []scheduler.Entry, logger *zap.Logger) {
	for _, e := range jobs {
		if ctx.Err() != nil {
			return
		}
		if err := sched.RunNow(ctx, e.Name, e.Job); err != nil {
			logger.Error("manual run failed", zap.String("job", e.Name), zap.Error(err))
		}
	}
}
