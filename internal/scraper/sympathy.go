package scraper

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/kolangzi/naver-automation/internal/browser"
	"github.com/kolangzi/naver-automation/internal/governor"
	"github.com/kolangzi/naver-automation/internal/types"
)

var postURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`blog\.naver\.com/([^/?&#]+)/(\d+)`),
	regexp.MustCompile(`blogId=([^&]+).*logNo=(\d+)`),
	regexp.MustCompile(`blog\.naver\.com/PostView\.naver\?blogId=([^&]+)&logNo=(\d+)`),
}

// ParsePostURL extracts the blog id and post number from a post URL.
func ParsePostURL(url string) (blogID, logNo string, ok bool) {
	for _, p := range postURLPatterns {
		if m := p.FindStringSubmatch(url); m != nil {
			return m[1], m[2], true
		}
	}
	return "", "", false
}

// RestoreDepth replays advance up to depth times and returns how many
// succeeded. The result never exceeds depth.
func RestoreDepth(ctx context.Context, depth int, advance func(context.Context) (bool, error)) int {
	restored := 0
	for restored < depth {
		ok, err := advance(ctx)
		if err != nil || !ok {
			break
		}
		restored++
	}
	return restored
}

// SympathySource discovers follow-request candidates from the reaction
// history of one post. The list grows through a "load more" control and
// reorders after every follow request, so the caller tracks depth.
type SympathySource struct {
	page   browser.Page
	pacer  *governor.Pacer
	logger *zap.Logger
	url    string
}

// NewSympathySource binds a source to the reaction list of blogID/logNo.
func NewSympathySource(page browser.Page, pacer *governor.Pacer, logger *zap.Logger, blogID, logNo string) *SympathySource {
	return &SympathySource{
		page:   page,
		pacer:  pacer,
		logger: logger,
		url:    fmt.Sprintf(SympathyListURL, blogID, logNo),
	}
}

// URL returns the list URL.
func (s *SympathySource) URL() string { return s.url }

// Reload navigates the list back to its natural order.
func (s *SympathySource) Reload(ctx context.Context) error {
	s.logger.Info("opening sympathy list", zap.String("url", s.url))
	if err := s.page.Navigate(ctx, s.url); err != nil {
		return fmt.Errorf("failed to open sympathy list: %w", err)
	}
	if err := s.pacer.PageLoad(ctx); err != nil {
		return err
	}
	return s.pacer.Settle(ctx)
}

// Collect parses the rendered list. It has no side effects.
func (s *SympathySource) Collect(ctx context.Context) ([]types.Target, bool, error) {
	html, err := s.page.HTML(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read sympathy list: %w", err)
	}
	accounts, err := ParseAccounts(html)
	if err != nil {
		return nil, false, err
	}
	hasMore, err := s.page.Visible(ctx, LoadMore)
	if err != nil {
		return accounts, false, nil
	}
	return accounts, hasMore, nil
}

// Advance clicks "load more" when it is visible and waits for the list to
// settle.
func (s *SympathySource) Advance(ctx context.Context) (bool, error) {
	visible, err := s.page.Visible(ctx, LoadMore)
	if err != nil || !visible {
		return false, nil
	}
	if err := s.page.Click(ctx, LoadMore); err != nil {
		return false, nil
	}
	if err := s.pacer.PageLoad(ctx); err != nil {
		return false, err
	}
	if err := s.pacer.BetweenTargets(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// RestoreDepth replays Advance after a reload.
func (s *SympathySource) RestoreDepth(ctx context.Context, depth int) int {
	return RestoreDepth(ctx, depth, s.Advance)
}
