// Package textgen produces short comments and replies through an external
// text service. Calls are spaced by a minimum interval and retried with
// exponential backoff on transient failures. Failures never surface as
// errors; callers get ok=false.
package textgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kolangzi/naver-automation/internal/config"
	"github.com/kolangzi/naver-automation/internal/store"
	"github.com/kolangzi/naver-automation/internal/textgen/providers"
)

// Provider is one text service backend.
type Provider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Recorder keeps prompt/response pairs for debugging.
type Recorder interface {
	SaveExchange(store.Exchange) (string, error)
}

// Generator is the text generation bridge.
type Generator struct {
	provider    Provider
	limiter     *rate.Limiter
	attempts    int
	baseBackoff time.Duration
	maxChars    int
	recorder    Recorder
	logger      *zap.Logger
}

// Option customizes a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(g *Generator) { g.logger = l } }

// WithRecorder records every exchange.
func WithRecorder(r Recorder) Option { return func(g *Generator) { g.recorder = r } }

// WithLimiter replaces the minimum-interval limiter.
func WithLimiter(l *rate.Limiter) Option { return func(g *Generator) { g.limiter = l } }

// WithBaseBackoff replaces the first retry delay.
func WithBaseBackoff(d time.Duration) Option { return func(g *Generator) { g.baseBackoff = d } }

// New creates a generator for the configured provider.
func New(ctx context.Context, cfg config.TextGenConfig, opts ...Option) (*Generator, error) {
	var p Provider
	switch cfg.Provider {
	case config.ProviderGemini, "":
		gp, err := providers.NewGeminiProvider(ctx, cfg.APIKey, modelFor(cfg, providers.DefaultGeminiModel))
		if err != nil {
			return nil, err
		}
		p = gp
	case config.ProviderAnthropic:
		p = providers.NewAnthropicProvider(cfg.APIKey, modelFor(cfg, providers.DefaultAnthropicModel))
	default:
		return nil, fmt.Errorf("unknown text generation provider: %s", cfg.Provider)
	}
	return NewWithProvider(p, cfg, opts...), nil
}

// modelFor ignores a model name that belongs to the other provider, which
// happens when only the provider is switched in the config file.
func modelFor(cfg config.TextGenConfig, fallback string) string {
	if cfg.Model == "" || (cfg.Provider == config.ProviderAnthropic) != isClaudeModel(cfg.Model) {
		return fallback
	}
	return cfg.Model
}

func isClaudeModel(m string) bool {
	return strings.HasPrefix(m, "claude")
}

// NewWithProvider creates a generator over an existing provider.
func NewWithProvider(p Provider, cfg config.TextGenConfig, opts ...Option) *Generator {
	g := &Generator{
		provider:    p,
		limiter:     rate.NewLimiter(rate.Every(time.Duration(cfg.MinIntervalSeconds)*time.Second), 1),
		attempts:    max(cfg.MaxAttempts, 1),
		baseBackoff: time.Duration(cfg.BaseBackoffSeconds) * time.Second,
		maxChars:    cfg.MaxChars,
		logger:      zap.NewNop(),
	}
	if cfg.MinIntervalSeconds <= 0 {
		g.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Comment generates a comment for a post.
func (g *Generator) Comment(ctx context.Context, title, body string) (string, bool) {
	return g.generate(ctx, "comment", CommentPrompt(title, body))
}

// Reply generates a reply to comment on a post.
func (g *Generator) Reply(ctx context.Context, title, body, comment string) (string, bool) {
	return g.generate(ctx, "reply", ReplyPrompt(title, body, comment))
}

func (g *Generator) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.baseBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = g.baseBackoff << g.attempts
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(g.attempts-1)), ctx)
}

func (g *Generator) generate(ctx context.Context, purpose, prompt string) (string, bool) {
	log := g.logger.With(zap.String("purpose", purpose), zap.String("provider", g.provider.Name()))
	attempt := 0
	var text string

	operation := func() error {
		attempt++
		if err := g.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		raw, err := g.provider.Generate(ctx, prompt)
		g.record(purpose, attempt, prompt, raw, err)
		if err == nil {
			if text = Clean(raw, g.maxChars); text == "" {
				err = fmt.Errorf("blank after cleanup: %w", providers.ErrEmptyResponse)
			}
		}
		if err != nil && !providers.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("transient text service error, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", g.attempts),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(operation, g.newBackOff(ctx), notify); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("text generation cancelled")
		} else {
			log.Error("text generation failed", zap.Int("attempts", attempt), zap.Error(err))
		}
		return "", false
	}
	log.Debug("generated text", zap.String("text", text))
	return text, true
}

func (g *Generator) record(purpose string, attempt int, prompt, response string, err error) {
	if g.recorder == nil {
		return
	}
	ex := store.Exchange{
		Timestamp: time.Now(),
		Provider:  g.provider.Name(),
		Model:     g.provider.Model(),
		Purpose:   purpose,
		Attempt:   attempt,
		Prompt:    prompt,
		Response:  response,
	}
	if err != nil {
		ex.Error = err.Error()
	}
	if _, err := g.recorder.SaveExchange(ex); err != nil {
		g.logger.Debug("failed to record text exchange", zap.Error(err))
	}
}
