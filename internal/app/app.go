// Package app wires configuration, the browser session, a campaign and the
// engine into one run, and records its outcome.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kolangzi/naver-automation/internal/auth"
	drv "github.com/kolangzi/naver-automation/internal/browser"
	"github.com/kolangzi/naver-automation/internal/campaign"
	"github.com/kolangzi/naver-automation/internal/config"
	"github.com/kolangzi/naver-automation/internal/engine"
	"github.com/kolangzi/naver-automation/internal/governor"
	"github.com/kolangzi/naver-automation/internal/notifier"
	"github.com/kolangzi/naver-automation/internal/observability"
	"github.com/kolangzi/naver-automation/internal/report"
	"github.com/kolangzi/naver-automation/internal/store"
	"github.com/kolangzi/naver-automation/internal/textgen"
	"github.com/kolangzi/naver-automation/internal/types"
)

// maxReportTargets caps the rows of a rendered report.
const maxReportTargets = 200

// App holds the application state.
type App struct {
	mu     sync.RWMutex
	store  *store.Store // immutable after creation
	logger *zap.Logger

	// Mutable fields - use getSnapshot() for concurrent access.
	config   *config.Config
	notifier *notifier.Notifier

	launcher drv.Launcher
	sleep    governor.Sleeper
}

// snapshot holds fields that may be replaced by ReloadConfig.
// Use getSnapshot() to obtain a consistent, point-in-time copy.
type snapshot struct {
	config   *config.Config
	notifier *notifier.Notifier
}

// getSnapshot returns a snapshot of mutable fields under read lock.
func (a *App) getSnapshot() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return snapshot{
		config:   a.config,
		notifier: a.notifier,
	}
}

// Option customizes an App.
type Option func(*App)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(a *App) { a.logger = l } }

// WithLauncher replaces the Chrome launcher.
func WithLauncher(l drv.Launcher) Option { return func(a *App) { a.launcher = l } }

// WithSleeper replaces every pause of a run.
func WithSleeper(s governor.Sleeper) Option { return func(a *App) { a.sleep = s } }

// New creates a new App instance.
func New(cfg *config.Config, st *store.Store, opts ...Option) (*App, error) {
	a := &App{
		config:   cfg,
		store:    st,
		logger:   zap.NewNop(),
		launcher: drv.ChromeLauncher,
		sleep:    governor.Sleep,
	}
	for _, opt := range opts {
		opt(a)
	}
	n, err := notifier.NewFromConfig(cfg.Email)
	if err != nil {
		return nil, err
	}
	a.notifier = n
	return a, nil
}

// Config returns the current configuration.
func (a *App) Config() *config.Config { return a.getSnapshot().config }

func (a *App) authManager(cfg *config.Config, log *zap.Logger, extra ...auth.Option) *auth.Manager {
	opts := []auth.Option{
		auth.WithLauncher(a.launcher),
		auth.WithSleeper(a.sleep),
		auth.WithLogger(log.Named("auth")),
	}
	return auth.NewManager(cfg, append(opts, extra...)...)
}

// RunOptions selects what a run does and who observes it.
type RunOptions struct {
	Campaign string
	// Seed is the post URL of the neighbor campaign.
	Seed string
	// Stop may be nil; the run then creates its own signal.
	Stop *engine.StopSignal
	Sink observability.Sink
}

// Run executes one campaign run and records it. Cancelling ctx aborts
// in-flight browser calls; use RunOptions.Stop for a cooperative stop.
func (a *App) Run(ctx context.Context, opts RunOptions) (types.Summary, error) {
	s := a.getSnapshot()
	cfg := s.config
	if err := cfg.Validate(); err != nil {
		return types.Summary{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if !slices.Contains(campaign.Names, opts.Campaign) {
		return types.Summary{}, fmt.Errorf("unknown campaign %q", opts.Campaign)
	}
	stop := opts.Stop
	if stop == nil {
		stop = engine.NewStopSignal()
	}

	log := a.logger.Named("app").With(zap.String("campaign", opts.Campaign))
	pacer := governor.NewPacer(cfg.Pacing,
		governor.WithSleeper(a.sleep),
		governor.WithLogger(a.logger.Named("governor")))

	text, err := a.textSource(ctx, cfg, log)
	if err != nil {
		return types.Summary{}, err
	}

	open := func(ctx context.Context, l *zap.Logger) (*auth.Manager, error) {
		m := a.authManager(cfg, l, auth.WithPacer(pacer), auth.WithStopped(stop.Stopped))
		if err := m.Open(ctx); err != nil {
			_ = m.Close()
			return nil, err
		}
		return m, nil
	}
	build := func(m *auth.Manager, l *zap.Logger) (engine.Campaign, error) {
		return campaign.New(opts.Campaign, cfg, campaign.Deps{
			Page:     m.Page(),
			Pacer:    pacer,
			Logger:   l.Named("campaign"),
			Identity: m.Identity(),
			Text:     text,
			Stopped:  stop.Stopped,
		}, opts.Seed)
	}

	runner := engine.New(
		engine.Config{
			Identity: cfg.Account.Identity,
			RunCap:   cfg.Quota.RunCap,
			DailyCap: cfg.Quota.DailyCap,
		},
		open, build, pacer,
		engine.WithStop(stop),
		engine.WithSink(opts.Sink),
		engine.WithLogger(a.logger),
	)

	sum, runErr := runner.Run(ctx)
	a.record(sum, s, log)
	return sum, runErr
}

// textSource builds the text generation bridge. Without an API key the
// campaigns fall back to their templates.
func (a *App) textSource(ctx context.Context, cfg *config.Config, log *zap.Logger) (campaign.TextSource, error) {
	if cfg.TextGen.APIKey == "" {
		log.Info("no text service configured")
		return nil, nil
	}
	opts := []textgen.Option{textgen.WithLogger(a.logger.Named("textgen"))}
	if cfg.Debug.SaveArtifacts && a.store != nil {
		opts = append(opts, textgen.WithRecorder(a.store))
	}
	gen, err := textgen.New(ctx, cfg.TextGen, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create text generator: %w", err)
	}
	return gen, nil
}

// record saves the summary and its report, then mails the report. Every
// failure here is logged only; the run itself is already over.
func (a *App) record(sum types.Summary, s snapshot, log *zap.Logger) {
	if a.store == nil {
		return
	}
	if path, err := a.store.SaveRun(sum); err != nil {
		log.Warn("failed to save run summary", zap.Error(err))
	} else {
		log.Info("saved run summary", zap.String("path", path))
	}

	loc, err := time.LoadLocation(s.config.Schedule.Timezone)
	if err != nil {
		loc = time.Local
	}
	b, err := report.New(maxReportTargets, loc)
	if err != nil {
		log.Warn("failed to create report builder", zap.Error(err))
		return
	}
	r, err := b.Build(sum)
	if err != nil {
		log.Warn("failed to build report", zap.Error(err))
		return
	}
	if path, err := a.store.SaveTextOutput(store.StepReports, sum.Campaign, r.HTMLBody, ".html"); err != nil {
		log.Warn("failed to save report", zap.Error(err))
	} else {
		log.Info("saved run report", zap.String("path", path))
	}

	if s.notifier != nil {
		if err := s.notifier.SendReport(r); err != nil {
			log.Warn("failed to send report email", zap.Error(err))
		} else {
			log.Info("sent report email")
		}
	}
}

// RunInterruptible runs next to a goroutine that turns SIGINT and SIGTERM
// into a cooperative stop. A signal never cancels an in-flight call.
func (a *App) RunInterruptible(ctx context.Context, opts RunOptions) (types.Summary, error) {
	if opts.Stop == nil {
		opts.Stop = engine.NewStopSignal()
	}
	sigCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	done := make(chan struct{})
	var sum types.Summary
	var g errgroup.Group
	g.Go(func() error {
		defer close(done)
		var err error
		sum, err = a.Run(ctx, opts)
		return err
	})
	g.Go(func() error {
		select {
		case <-sigCtx.Done():
			if ctx.Err() == nil {
				a.logger.Info("stop requested, finishing the current action")
				opts.Stop.Stop()
			}
		case <-done:
		}
		return nil
	})
	err := g.Wait()
	return sum, err
}

// Job returns a scheduler job for one campaign. The job's deadline stops
// the run cooperatively instead of cancelling browser calls.
func (a *App) Job(name, seed string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		stop := engine.NewStopSignal()
		release := context.AfterFunc(ctx, stop.Stop)
		defer release()
		if ctx.Err() != nil {
			stop.Stop()
		}

		sum, err := a.Run(context.WithoutCancel(ctx), RunOptions{Campaign: name, Seed: seed, Stop: stop})
		if err != nil {
			return err
		}
		if sum.State == string(engine.StateCancelled) {
			return errors.New("run cancelled")
		}
		return nil
	}
}

// IsAuthenticated checks if a valid Naver session is stored.
func (a *App) IsAuthenticated() bool {
	return a.authManager(a.Config(), a.logger).IsAuthenticated()
}

// TriggerLogin starts the interactive Naver login flow.
func (a *App) TriggerLogin(ctx context.Context) error {
	log := a.logger.Named("app")
	log.Info("login triggered, opening browser for Naver authentication")
	if err := a.authManager(a.Config(), a.logger).Login(ctx); err != nil {
		log.Error("login failed", zap.Error(err))
		return err
	}
	log.Info("login successful, cookies saved")
	return nil
}

// TriggerLogout clears the stored Naver session.
func (a *App) TriggerLogout() error {
	log := a.logger.Named("app")
	if err := a.authManager(a.Config(), a.logger).Logout(); err != nil {
		log.Error("logout failed", zap.Error(err))
		return err
	}
	log.Info("logout successful, cookies cleared")
	return nil
}

// Status describes the stored session and the last run.
type Status struct {
	Identity      string
	Authenticated bool
	LastRun       *types.Summary
	LastRunPath   string
}

// Status reports the state without launching a browser.
func (a *App) Status() Status {
	cfg := a.Config()
	st := Status{
		Identity:      cfg.Account.Identity,
		Authenticated: a.IsAuthenticated(),
	}
	if a.store != nil {
		if sum, path, err := a.store.LatestRun(); err == nil {
			st.LastRun, st.LastRunPath = &sum, path
		}
	}
	return st
}

// ViewLastReport opens the most recent run report.
func (a *App) ViewLastReport() error {
	if a.store == nil {
		return errors.New("no report store")
	}
	path, err := a.store.LatestStepFile(store.StepReports)
	if err != nil {
		return err
	}
	a.logger.Named("app").Info("opening report", zap.String("path", path))
	return browser.OpenFile(path)
}

// ReloadConfig reloads the configuration from disk.
func (a *App) ReloadConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Overlay(config.NewViper())

	n, err := notifier.NewFromConfig(cfg.Email)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.config = cfg
	a.notifier = n
	a.mu.Unlock()

	a.logger.Named("app").Info("configuration reloaded")
	return nil
}
