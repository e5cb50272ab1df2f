// Package campaign binds discovery sources to action chains. Each campaign
// is driven by the engine, which owns quota, pacing between targets and the
// deferred replay.
package campaign

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kolangzi/naver-automation/internal/actions"
	"github.com/kolangzi/naver-automation/internal/browser"
	"github.com/kolangzi/naver-automation/internal/config"
	"github.com/kolangzi/naver-automation/internal/content"
	"github.com/kolangzi/naver-automation/internal/engine"
	"github.com/kolangzi/naver-automation/internal/governor"
	"github.com/kolangzi/naver-automation/internal/types"
)

// Campaign names
const (
	Neighbor = "neighbor"
	Buddy    = "buddy"
	Reply    = "reply"
)

// Names lists every campaign in a stable order.
var Names = []string{Neighbor, Buddy, Reply}

// Reasons shared by the chains
const (
	reasonNoText        = "no text source"
	reasonNoContent     = "post has no content"
	reasonGenFailed     = "text generation failed"
	reasonAuthored      = "already commented"
	reasonNoLatest      = "latest post not found"
	reasonFrameNotFound = "frame not found"
)

// TextSource writes comments and replies about a post. Both calls report
// false once their retry budget is spent.
type TextSource interface {
	Comment(ctx context.Context, title, body string) (string, bool)
	Reply(ctx context.Context, title, body, comment string) (string, bool)
}

// Deps are the collaborators every campaign shares.
type Deps struct {
	Page     browser.Page
	Pacer    *governor.Pacer
	Logger   *zap.Logger
	Identity string
	// Text may be nil when no text service is configured.
	Text TextSource
	// Stopped is polled by the up-front collectors. It may be nil.
	Stopped func() bool
}

func (d Deps) stopped() func() bool {
	if d.Stopped == nil {
		return func() bool { return false }
	}
	return d.Stopped
}

// New builds the named campaign. seed is the post URL of the neighbor
// campaign and ignored by the others.
func New(name string, cfg *config.Config, d Deps, seed string) (engine.Campaign, error) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	switch name {
	case Neighbor:
		if seed == "" {
			return nil, fmt.Errorf("the %s campaign needs a seed post URL", Neighbor)
		}
		return NewNeighbor(cfg, d, seed), nil
	case Buddy:
		return NewBuddy(cfg, d), nil
	case Reply:
		return NewReply(cfg, d), nil
	default:
		return nil, fmt.Errorf("unknown campaign %q", name)
	}
}

func fromAction(r actions.Result) engine.Result {
	return engine.Result{Outcome: r.Outcome, Reason: r.Reason}
}

func skipped(reason string) engine.Result {
	return engine.Result{Outcome: types.OutcomeSkipped, Reason: reason}
}

func failed(reason string) engine.Result {
	return engine.Result{Outcome: types.OutcomeFailed, Reason: reason}
}

// deferred postpones the primary chain of a target to the replay pass.
func deferred(step string, c types.Content) engine.Result {
	return engine.Result{
		Outcome: types.OutcomeDeferred,
		Reason:  reasonGenFailed,
		Defer:   &types.DeferredItem{Content: c, Step: step, Counts: true},
	}
}

// textStatus tells why a chain has or lacks text to post.
type textStatus int

const (
	textReady textStatus = iota
	textFailed
	textNoSource
	textNoContent
)

// commenter runs the comment chain shared by the buddy campaign and the
// neighbor campaign's comment_after step.
type commenter struct {
	d        Deps
	exec     *actions.Executor
	fetch    *content.Fetcher
	template string
	logger   *zap.Logger
}

func newCommenter(d Deps, template string, popupTimeout time.Duration) *commenter {
	return &commenter{
		d:        d,
		exec:     actions.NewExecutor(d.Page, d.Pacer, d.Logger.Named("actions"), popupTimeout),
		fetch:    content.NewFetcher(d.Page, d.Pacer, d.Logger.Named("content")),
		template: template,
		logger:   d.Logger,
	}
}

// postView is an opened post.
type postView struct {
	logNo   string
	content types.Content
	frame   browser.Document
}

// open navigates to blogID/logNo, resolving the newest post when logNo is
// empty. A failure comes with the result to record.
func (c *commenter) open(ctx context.Context, blogID, logNo string) (postView, *engine.Result) {
	if logNo == "" {
		latest, ok := c.fetch.FetchLatest(ctx, blogID)
		if !ok {
			res := skipped(reasonNoLatest)
			return postView{}, &res
		}
		logNo = latest
	}
	cont, frame, ok := c.fetch.FetchContent(ctx, blogID, logNo)
	if !ok {
		res := failed(reasonFrameNotFound)
		return postView{logNo: logNo}, &res
	}
	return postView{logNo: logNo, content: cont, frame: frame}, nil
}

// read simulates reading the post and scrolls to its comment box.
func (c *commenter) read(ctx context.Context, v postView) error {
	if err := c.d.Pacer.Reading(ctx, len([]rune(v.content.Body))); err != nil {
		return err
	}
	_ = c.d.Page.ScrollToBottom(ctx)
	if err := c.d.Pacer.Short(ctx); err != nil {
		return err
	}
	_ = v.frame.ScrollToBottom(ctx)
	return c.d.Pacer.Short(ctx)
}

// text picks the comment text for a post: generated when a text source is
// configured, else the configured template.
func (c *commenter) text(ctx context.Context, cont types.Content) (string, textStatus) {
	if c.d.Text == nil {
		if c.template != "" {
			return c.template, textReady
		}
		return "", textNoSource
	}
	if cont.Empty() {
		return "", textNoContent
	}
	text, ok := c.d.Text.Comment(ctx, cont.Title, cont.Body)
	if !ok {
		return "", textFailed
	}
	return text, textReady
}

// authored reports whether the identity already commented on the post.
// An unknown answer proceeds.
func (c *commenter) authored(ctx context.Context, v postView) bool {
	return c.fetch.AlreadyAuthored(ctx, v.frame, c.d.Identity) == types.ProbeTrue
}

// comment generates and posts a comment on an opened post. step names the
// deferred item when generation fails.
func (c *commenter) comment(ctx context.Context, v postView, step string, log *zap.Logger) engine.Result {
	text, status := c.text(ctx, v.content)
	switch status {
	case textNoSource:
		return skipped(reasonNoText)
	case textNoContent:
		return skipped(reasonNoContent)
	case textFailed:
		log.Info("text generation failed, deferring")
		return deferred(step, v.content)
	}
	log.Info("posting comment", zap.String("text", text))
	return fromAction(c.exec.Comment(ctx, v.frame, text))
}
