// Package governor paces interactions with human-like jitter and carries the
// per-run quota counters.
package governor

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/kolangzi/naver-automation/internal/config"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-time Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pacer draws every pause uniformly from a configured band so that no
// fixed cadence is observable.
type Pacer struct {
	cfg    config.PacingConfig
	sleep  Sleeper
	rand   func() float64
	logger *zap.Logger
}

// Option customizes a Pacer.
type Option func(*Pacer)

// WithSleeper replaces the real-time sleeper.
func WithSleeper(s Sleeper) Option { return func(p *Pacer) { p.sleep = s } }

// WithRand replaces the uniform [0,1) source.
func WithRand(r func() float64) Option { return func(p *Pacer) { p.rand = r } }

// WithLogger sets the logger used for idle pause announcements.
func WithLogger(l *zap.Logger) Option { return func(p *Pacer) { p.logger = l } }

// NewPacer creates a pacer for the given bands.
func NewPacer(cfg config.PacingConfig, opts ...Option) *Pacer {
	p := &Pacer{
		cfg:    cfg,
		sleep:  Sleep,
		rand:   rand.Float64,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Draw returns a uniform duration within b.
func (p *Pacer) Draw(b config.Band) time.Duration {
	lo, hi := b.Min(), b.Max()
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(p.rand()*float64(hi-lo))
}

func (p *Pacer) pause(ctx context.Context, b config.Band) error {
	return p.sleep(ctx, p.Draw(b))
}

// PageLoad waits after a navigation.
func (p *Pacer) PageLoad(ctx context.Context) error { return p.pause(ctx, p.cfg.PageLoad) }

// Settle waits for a heavy list view to finish rendering.
func (p *Pacer) Settle(ctx context.Context) error { return p.pause(ctx, p.cfg.Settle) }

// BeforeClick waits before triggering a control.
func (p *Pacer) BeforeClick(ctx context.Context) error { return p.pause(ctx, p.cfg.BeforeClick) }

// AfterPopup waits after a popup step.
func (p *Pacer) AfterPopup(ctx context.Context) error { return p.pause(ctx, p.cfg.AfterPopup) }

// Short is the generic in-chain pause.
func (p *Pacer) Short(ctx context.Context) error { return p.pause(ctx, p.cfg.Short) }

// BetweenTargets waits between two action chains.
func (p *Pacer) BetweenTargets(ctx context.Context) error {
	return p.pause(ctx, p.cfg.BetweenTargets)
}

// Keystroke returns one inter-key delay.
func (p *Pacer) Keystroke() time.Duration { return p.Draw(p.cfg.Keystroke) }

// Reading simulates reading a post body of bodyLen characters. The pause
// grows with the body and is clamped to the reading band.
func (p *Pacer) Reading(ctx context.Context, bodyLen int) error {
	lo, hi := p.cfg.Reading.Min(), p.cfg.Reading.Max()
	// roughly 25 characters per second, plus jitter
	d := lo + time.Duration(bodyLen)*40*time.Millisecond
	d += time.Duration(p.rand() * float64(2*time.Second))
	if d > hi {
		d = hi
	}
	return p.sleep(ctx, d)
}

// Idle takes an additional long pause with low probability. It reports
// whether a pause was taken.
func (p *Pacer) Idle(ctx context.Context) (bool, error) {
	if p.cfg.IdleProbability <= 0 || p.rand() >= p.cfg.IdleProbability {
		return false, nil
	}
	d := p.Draw(p.cfg.Idle)
	p.logger.Info("taking an idle pause", zap.Duration("duration", d.Round(time.Second)))
	return true, p.sleep(ctx, d)
}
