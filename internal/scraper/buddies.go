package scraper

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kolangzi/naver-automation/internal/browser"
	"github.com/kolangzi/naver-automation/internal/config"
	"github.com/kolangzi/naver-automation/internal/governor"
	"github.com/kolangzi/naver-automation/internal/types"
)

// maxListPages bounds every numbered pagination walk.
const maxListPages = 500

// BuddyQuery selects which neighbors to collect from the admin table.
type BuddyQuery struct {
	BlogID string
	Group  string
	Sort   string
	// Cutoff is YYYY-MM-DD; rows dated before it end the walk.
	Cutoff string
}

// BuddyCollector walks the admin neighbor table page by page.
type BuddyCollector struct {
	page    browser.Page
	pacer   *governor.Pacer
	logger  *zap.Logger
	stopped func() bool
}

// NewBuddyCollector creates a collector. stopped is polled between pages
// and may be nil.
func NewBuddyCollector(page browser.Page, pacer *governor.Pacer, logger *zap.Logger, stopped func() bool) *BuddyCollector {
	if stopped == nil {
		stopped = func() bool { return false }
	}
	return &BuddyCollector{page: page, pacer: pacer, logger: logger, stopped: stopped}
}

// Collect opens the admin table, applies the group and sort selection and
// returns every neighbor dated on or after the cutoff. Rows without a date
// are skipped.
func (c *BuddyCollector) Collect(ctx context.Context, q BuddyQuery) ([]types.Target, error) {
	url := fmt.Sprintf(BuddyAdminURL, q.BlogID)
	c.logger.Info("opening neighbor admin", zap.String("url", url))
	if err := c.page.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("failed to open neighbor admin: %w", err)
	}
	if err := c.pacer.Settle(ctx); err != nil {
		return nil, err
	}

	frame := c.page.FrameByName(BuddyFrame)
	if _, err := frame.HTML(ctx); err != nil {
		if errors.Is(err, browser.ErrFrameNotFound) {
			return nil, fmt.Errorf("%s frame not found: %w", BuddyFrame, err)
		}
		return nil, err
	}

	if err := c.selectGroup(ctx, frame, q.Group); err != nil {
		return nil, err
	}
	if err := c.selectSort(ctx, frame, q.Sort); err != nil {
		return nil, err
	}

	var targets []types.Target
	seen := make(map[string]bool)
	for pageNum := 1; pageNum <= maxListPages && !c.stopped(); pageNum++ {
		html, err := frame.HTML(ctx)
		if err != nil {
			return targets, fmt.Errorf("failed to read neighbor table: %w", err)
		}
		rows, err := ParseBuddyRows(html, q.Sort)
		if err != nil {
			return targets, err
		}
		c.logger.Info("neighbor page parsed", zap.Int("page", pageNum), zap.Int("rows", len(rows)))
		if len(rows) == 0 {
			break
		}

		reachedCutoff := false
		for _, r := range rows {
			if r.RawDate == "-" || r.Date == "" {
				continue
			}
			if r.Date < q.Cutoff {
				reachedCutoff = true
				break
			}
			if seen[r.BlogID] {
				continue
			}
			seen[r.BlogID] = true
			targets = append(targets, types.Target{
				ID:      r.BlogID,
				Name:    r.Nick,
				Kind:    types.KindPost,
				BlogID:  r.BlogID,
				Date:    r.Date,
				Outcome: types.OutcomePending,
			})
		}
		if reachedCutoff {
			c.logger.Info("reached a neighbor older than the cutoff", zap.String("cutoff", q.Cutoff))
			break
		}

		moved, err := c.nextPage(ctx, frame, html)
		if err != nil {
			return targets, err
		}
		if !moved {
			c.logger.Info("reached the last neighbor page")
			break
		}
	}
	return targets, nil
}

func (c *BuddyCollector) selectGroup(ctx context.Context, frame browser.Document, group string) error {
	if group == "" {
		return nil
	}
	ok, err := frame.Exists(ctx, GroupSelectBox)
	if err != nil || !ok {
		c.logger.Warn("group dropdown not found, using the full list", zap.String("group", group))
		return nil
	}
	if err := frame.Click(ctx, GroupSelectBox); err != nil {
		return nil
	}
	if err := c.pacer.Short(ctx); err != nil {
		return err
	}
	found, err := frame.ClickText(ctx, GroupSelectItems, group)
	if err != nil || !found {
		c.logger.Warn("group not found", zap.String("group", group))
		return nil
	}
	c.logger.Info("group selected", zap.String("group", group))
	return c.pacer.PageLoad(ctx)
}

func (c *BuddyCollector) selectSort(ctx context.Context, frame browser.Document, sort string) error {
	keyword := SortKeywordAdded
	if sort == config.SortByUpdate {
		keyword = SortKeywordUpdate
	}
	if label, err := frame.Text(ctx, SortSelectLabel); err == nil && strings.Contains(label, keyword) {
		c.logger.Debug("sort order already applied", zap.String("sort", sort))
		return nil
	}
	if err := frame.Click(ctx, SortSelectBox); err != nil {
		c.logger.Warn("sort dropdown not found", zap.Error(err))
		return nil
	}
	if err := c.pacer.Short(ctx); err != nil {
		return err
	}
	found, err := frame.ClickText(ctx, SortSelectItems, keyword)
	if err != nil || !found {
		c.logger.Warn("sort option not found", zap.String("sort", sort))
		return nil
	}
	c.logger.Info("sort order selected", zap.String("sort", sort))
	return c.pacer.PageLoad(ctx)
}

// nextPage clicks the link to the page after the current one, falling back
// to the "next" control.
func (c *BuddyCollector) nextPage(ctx context.Context, frame browser.Document, html string) (bool, error) {
	pager, err := ParseBuddyPager(html)
	if err != nil {
		return false, err
	}
	label := strconv.Itoa(pager.Current + 1)

	var clicked bool
	switch {
	case pager.HasLink(label):
		err = frame.Evaluate(ctx, clickExactTextFn(BuddyPageLinks, label), &clicked)
	case pager.HasNext:
		err = frame.Evaluate(ctx, clickNextFn(), &clicked)
	}
	if err != nil || !clicked {
		return false, nil
	}
	if err := c.pacer.PageLoad(ctx); err != nil {
		return false, err
	}
	return true, nil
}
