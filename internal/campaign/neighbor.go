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

// NeighborCampaign sends follow requests to the accounts that reacted to a
// seed post. The reaction list reorders after every request, so every
// chain asks for a reload.
type NeighborCampaign struct {
	*commenter
	cfg  config.NeighborConfig
	seed string
}

// NewNeighbor creates the neighbor campaign for the post at seed.
func NewNeighbor(cfg *config.Config, d Deps, seed string) *NeighborCampaign {
	timeout := time.Duration(cfg.Neighbor.PopupTimeoutSeconds) * time.Second
	return &NeighborCampaign{
		commenter: newCommenter(d, "", timeout),
		cfg:       cfg.Neighbor,
		seed:      seed,
	}
}

func (n *NeighborCampaign) Name() string { return Neighbor }

// Prepare reacts to the seed post once and opens its reaction list.
func (n *NeighborCampaign) Prepare(ctx context.Context) (engine.Source, error) {
	blogID, logNo, ok := scraper.ParsePostURL(n.seed)
	if !ok {
		return nil, fmt.Errorf("not a blog post URL: %s", n.seed)
	}

	if v, res := n.open(ctx, blogID, logNo); res == nil {
		_ = v.frame.ScrollToBottom(ctx)
		if err := n.d.Pacer.Short(ctx); err != nil {
			return nil, err
		}
		r := n.exec.React(ctx, v.frame)
		n.logger.Info("reacted to the seed post", zap.String("outcome", string(r.Outcome)), zap.String("reason", r.Reason))
	} else {
		n.logger.Warn("could not open the seed post", zap.String("reason", res.Reason))
	}

	src := scraper.NewSympathySource(n.d.Page, n.d.Pacer, n.logger.Named("scraper"), blogID, logNo)
	if err := src.Reload(ctx); err != nil {
		return nil, err
	}
	return src, nil
}

// Act sends one follow request and, when enabled, comments on the
// account's newest post afterwards.
func (n *NeighborCampaign) Act(ctx context.Context, t *types.Target) engine.Result {
	log := n.logger.With(zap.String("target", t.Label()))
	res := fromAction(n.exec.Follow(ctx, t.ID, n.cfg.Message))
	res.NeedsReload = true
	if res.Outcome != types.OutcomeSucceeded || !n.cfg.CommentAfter {
		return res
	}

	v, fail := n.open(ctx, t.ID, "")
	if v.logNo != "" {
		t.LogNo = v.logNo
	}
	if fail != nil {
		log.Info("comment skipped", zap.String("reason", fail.Reason))
		res.Reason = "comment " + string(fail.Outcome) + ": " + fail.Reason
		return res
	}
	c := n.comment(ctx, v, "comment", log)
	if c.Defer != nil {
		// The follow request stands; only the comment is replayed, and it
		// does not count against the quota again.
		c.Defer.Counts = false
		res.Defer = c.Defer
		return res
	}
	res.Reason = "comment " + string(c.Outcome)
	if c.Reason != "" {
		res.Reason += ": " + c.Reason
	}
	return res
}

// Retry replays a deferred comment_after step.
func (n *NeighborCampaign) Retry(ctx context.Context, item *types.DeferredItem) engine.Result {
	log := n.logger.With(zap.String("target", item.Target.Label()))
	v, res := n.open(ctx, item.Target.ID, item.Target.LogNo)
	if res != nil {
		return *res
	}
	return n.comment(ctx, v, item.Step, log)
}
