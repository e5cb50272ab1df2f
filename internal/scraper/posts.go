package scraper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kolangzi/naver-automation/internal/browser"
	"github.com/kolangzi/naver-automation/internal/governor"
)

// PostCollector walks a blog's post list from the first page.
type PostCollector struct {
	page    browser.Page
	pacer   *governor.Pacer
	logger  *zap.Logger
	stopped func() bool
	now     func() time.Time
}

// NewPostCollector creates a collector. stopped may be nil.
func NewPostCollector(page browser.Page, pacer *governor.Pacer, logger *zap.Logger, stopped func() bool) *PostCollector {
	if stopped == nil {
		stopped = func() bool { return false }
	}
	return &PostCollector{page: page, pacer: pacer, logger: logger, stopped: stopped, now: time.Now}
}

// Collect returns every post of blogID dated on or after cutoff, newest
// first. It stops at the first older post or when the pager has no link
// to the next page.
func (c *PostCollector) Collect(ctx context.Context, blogID, cutoff string) ([]PostRow, error) {
	var posts []PostRow
	seen := make(map[string]bool)
	today := c.now()

	for pageNum := 1; pageNum <= maxListPages && !c.stopped(); pageNum++ {
		url := fmt.Sprintf(PostListURL, blogID, pageNum)
		c.logger.Info("opening post list", zap.Int("page", pageNum))
		if err := c.page.Navigate(ctx, url); err != nil {
			return posts, fmt.Errorf("failed to open post list: %w", err)
		}
		if err := c.pacer.PageLoad(ctx); err != nil {
			return posts, err
		}

		html, err := c.page.HTML(ctx)
		if err != nil {
			return posts, fmt.Errorf("failed to read post list: %w", err)
		}
		list, err := ParsePostList(html, today, cutoff)
		if err != nil {
			return posts, err
		}
		if list.NoTable {
			c.logger.Warn("post list table not found")
			break
		}

		added := 0
		for _, p := range list.Posts {
			if seen[p.LogNo] {
				continue
			}
			seen[p.LogNo] = true
			posts = append(posts, p)
			added++
		}
		c.logger.Info("posts collected", zap.Int("page", pageNum), zap.Int("count", added), zap.String("cutoff", cutoff))

		if list.ReachedCutoff {
			c.logger.Info("reached a post older than the cutoff")
			break
		}
		if !list.HasPage(pageNum + 1) {
			c.logger.Info("reached the last post list page")
			break
		}
	}
	return posts, nil
}
