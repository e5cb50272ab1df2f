package campaign

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kolangzi/naver-automation/internal/browser"
	"github.com/kolangzi/naver-automation/internal/config"
	"github.com/kolangzi/naver-automation/internal/engine"
	"github.com/kolangzi/naver-automation/internal/scraper"
	"github.com/kolangzi/naver-automation/internal/types"
)

const (
	reasonReplied         = "already replied"
	reasonEmptyComment    = "comment has no text"
	reasonCommentNotFound = "comment not found"
)

// ReplyCampaign answers the top-level comments on the identity's own posts.
type ReplyCampaign struct {
	*commenter
	blogID string
	cutoff string
	now    func() time.Time
	source *commentSource
}

// NewReply creates the reply campaign from the [reply] settings.
func NewReply(cfg *config.Config, d Deps) *ReplyCampaign {
	return &ReplyCampaign{
		commenter: newCommenter(d, "", 0),
		blogID:    cfg.BlogID(),
		cutoff:    cfg.Reply.CutoffDate,
		now:       time.Now,
	}
}

func (r *ReplyCampaign) Name() string { return Reply }

// Prepare collects the own posts newer than the cutoff and opens the
// comment box of the first one that renders.
func (r *ReplyCampaign) Prepare(ctx context.Context) (engine.Source, error) {
	cutoff := scraper.CutoffOrToday(r.cutoff, r.now())
	collector := scraper.NewPostCollector(r.d.Page, r.d.Pacer, r.logger.Named("scraper"), r.d.stopped())
	posts, err := collector.Collect(ctx, r.blogID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to collect posts: %w", err)
	}
	r.logger.Info("collected posts", zap.Int("count", len(posts)), zap.String("cutoff", cutoff))

	r.source = &commentSource{r: r, posts: posts, idx: -1}
	if err := r.source.Reload(ctx); err != nil {
		return nil, err
	}
	return r.source, nil
}

// Act replies to one comment on the post currently open.
func (r *ReplyCampaign) Act(ctx context.Context, t *types.Target) engine.Result {
	if r.source == nil || r.source.frame == nil {
		return failed(reasonFrameNotFound)
	}
	return r.reply(ctx, r.source.frame, t, "reply")
}

// Retry reopens the post, pages to the comment and replies once more.
func (r *ReplyCampaign) Retry(ctx context.Context, item *types.DeferredItem) engine.Result {
	v, res := r.open(ctx, r.blogID, item.Target.LogNo)
	if res != nil {
		return *res
	}
	if err := r.read(ctx, v); err != nil {
		return failed(err.Error())
	}
	box := scraper.NewCommentBox(v.frame, r.d.Pacer)
	if ok, err := box.Reveal(ctx); err != nil || !ok {
		return failed(reasonCommentNotFound)
	}
	if err := box.First(ctx); err != nil {
		return failed(err.Error())
	}
	for {
		comments, err := box.Comments(ctx)
		if err != nil {
			return failed(err.Error())
		}
		for _, c := range comments {
			if c.No == item.Target.ID {
				t := item.Target
				t.Post = &item.Content
				return r.reply(ctx, v.frame, &t, item.Step)
			}
		}
		more, err := box.Next(ctx)
		if err != nil {
			return failed(err.Error())
		}
		if !more {
			return failed(reasonCommentNotFound)
		}
	}
}

func (r *ReplyCampaign) reply(ctx context.Context, frame browser.Document, t *types.Target, step string) engine.Result {
	log := r.logger.With(zap.String("target", t.Label()))
	if r.fetch.AlreadyReplied(ctx, frame, t.ID, r.d.Identity) == types.ProbeTrue {
		return skipped(reasonReplied)
	}
	if t.Text == "" {
		return skipped(reasonEmptyComment)
	}
	if r.d.Text == nil {
		return skipped(reasonNoText)
	}

	var post types.Content
	if t.Post != nil {
		post = *t.Post
	}
	text, ok := r.d.Text.Reply(ctx, post.Title, post.Body, t.Text)
	if !ok {
		log.Info("text generation failed, deferring")
		return deferred(step, post)
	}
	log.Info("posting reply", zap.String("text", text))
	return fromAction(r.exec.Reply(ctx, frame, t.ID, text))
}

// commentSource walks the top-level comments of each collected post, one
// comment page at a time. Collect only parses the page that is open.
type commentSource struct {
	r     *ReplyCampaign
	posts []scraper.PostRow
	idx   int

	post  types.Content
	frame browser.Document
	box   *scraper.CommentBox
}

// Collect returns the top-level comments of the open comment page.
func (s *commentSource) Collect(ctx context.Context) ([]types.Target, bool, error) {
	if s.box == nil {
		return nil, false, nil
	}
	comments, err := s.box.Comments(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read comments: %w", err)
	}
	row := s.posts[s.idx]
	post := s.post

	var targets []types.Target
	for _, c := range comments {
		// Own comments are never answered.
		if c.Level != 1 || c.No == "" || c.OwnerBadge {
			continue
		}
		targets = append(targets, types.Target{
			ID:      c.No,
			Name:    c.Nick,
			Kind:    types.KindComment,
			BlogID:  s.r.blogID,
			LogNo:   row.LogNo,
			Text:    c.Text,
			Date:    row.Date,
			Post:    &post,
			Outcome: types.OutcomePending,
		})
	}
	return targets, s.idx < len(s.posts)-1 || s.hasNextPage(ctx), nil
}

func (s *commentSource) hasNextPage(ctx context.Context) bool {
	ok, _ := s.frame.Exists(ctx, fmt.Sprintf(scraper.CommentPageFmt, s.box.Page()+1))
	return ok
}

// Advance moves to the next comment page, or to the next post once the
// last page is done.
func (s *commentSource) Advance(ctx context.Context) (bool, error) {
	if s.box != nil {
		more, err := s.box.Next(ctx)
		if err != nil || more {
			return more, err
		}
	}
	return s.nextPost(ctx)
}

// Reload opens the first post that renders a comment box.
func (s *commentSource) Reload(ctx context.Context) error {
	s.idx = -1
	_, err := s.nextPost(ctx)
	return err
}

// RestoreDepth is never needed: reply chains stay on the open post.
func (s *commentSource) RestoreDepth(context.Context, int) int { return 0 }

func (s *commentSource) nextPost(ctx context.Context) (bool, error) {
	s.box, s.frame = nil, nil
	for s.idx+1 < len(s.posts) {
		s.idx++
		row := s.posts[s.idx]
		log := s.r.logger.With(zap.String("log_no", row.LogNo), zap.String("title", row.Title))
		log.Info("opening post", zap.Int("index", s.idx+1), zap.Int("total", len(s.posts)))

		v, res := s.r.open(ctx, s.r.blogID, row.LogNo)
		if res != nil {
			log.Info("post skipped", zap.String("reason", res.Reason))
			continue
		}
		if err := s.r.read(ctx, v); err != nil {
			return false, err
		}
		box := scraper.NewCommentBox(v.frame, s.r.d.Pacer)
		shown, err := box.Reveal(ctx)
		if err != nil || !shown {
			log.Info("post has no comments")
			continue
		}
		if err := box.First(ctx); err != nil {
			return false, err
		}
		s.post, s.frame, s.box = v.content, v.frame, box
		return true, nil
	}
	return false, nil
}
