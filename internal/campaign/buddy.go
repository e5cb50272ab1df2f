package campaign

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kolangzi/naver-automation/internal/config"
	"github.com/kolangzi/naver-automation/internal/engine"
	"github.com/kolangzi/naver-automation/internal/scraper"
	"github.com/kolangzi/naver-automation/internal/types"
)

// BuddyCampaign comments on the newest post of every neighbor in one group
// of the admin table.
type BuddyCampaign struct {
	*commenter
	query scraper.BuddyQuery
	now   func() time.Time
}

// NewBuddy creates the buddy campaign from the [buddy] settings.
func NewBuddy(cfg *config.Config, d Deps) *BuddyCampaign {
	return &BuddyCampaign{
		commenter: newCommenter(d, cfg.Buddy.CommentTemplate, 0),
		query: scraper.BuddyQuery{
			BlogID: cfg.BlogID(),
			Group:  cfg.Buddy.Group,
			Sort:   cfg.Buddy.Sort,
			Cutoff: cfg.Buddy.CutoffDate,
		},
		now: time.Now,
	}
}

func (b *BuddyCampaign) Name() string { return Buddy }

// Prepare collects the whole neighbor list up front.
func (b *BuddyCampaign) Prepare(ctx context.Context) (engine.Source, error) {
	q := b.query
	q.Cutoff = scraper.CutoffOrToday(q.Cutoff, b.now())
	collector := scraper.NewBuddyCollector(b.d.Page, b.d.Pacer, b.logger.Named("scraper"), b.d.stopped())
	targets, err := collector.Collect(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to collect neighbors: %w", err)
	}
	b.logger.Info("collected neighbors",
		zap.Int("count", len(targets)),
		zap.String("group", q.Group),
		zap.String("cutoff", q.Cutoff))
	return engine.NewStaticSource(targets), nil
}

// Act reads the neighbor's newest post, reacts to it and comments unless
// the identity already did.
func (b *BuddyCampaign) Act(ctx context.Context, t *types.Target) engine.Result {
	log := b.logger.With(zap.String("target", t.Label()))
	v, res := b.open(ctx, t.ID, "")
	if v.logNo != "" {
		t.LogNo = v.logNo
	}
	if res != nil {
		return *res
	}
	if err := b.read(ctx, v); err != nil {
		return failed(err.Error())
	}

	if r := b.exec.React(ctx, v.frame); r.Outcome != types.OutcomeSucceeded {
		log.Info("reaction not applied", zap.String("reason", r.Reason))
	}
	if b.authored(ctx, v) {
		return skipped(reasonAuthored)
	}
	return b.comment(ctx, v, "comment", log)
}

// Retry reopens the post the primary chain deferred on and tries once more.
func (b *BuddyCampaign) Retry(ctx context.Context, item *types.DeferredItem) engine.Result {
	log := b.logger.With(zap.String("target", item.Target.Label()))
	v, res := b.open(ctx, item.Target.ID, item.Target.LogNo)
	if res != nil {
		return *res
	}
	if err := b.read(ctx, v); err != nil {
		return failed(err.Error())
	}
	if b.authored(ctx, v) {
		return skipped(reasonAuthored)
	}
	return b.comment(ctx, v, "comment", log)
}
