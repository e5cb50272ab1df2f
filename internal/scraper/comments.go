package scraper

import (
	"context"
	"fmt"

	"github.com/kolangzi/naver-automation/internal/browser"
	"github.com/kolangzi/naver-automation/internal/governor"
)

// CommentBox drives the paginated comment box inside a post frame.
type CommentBox struct {
	frame browser.Document
	pacer *governor.Pacer
	page  int
}

// NewCommentBox wraps the comment box of a post frame.
func NewCommentBox(frame browser.Document, pacer *governor.Pacer) *CommentBox {
	return &CommentBox{frame: frame, pacer: pacer, page: 1}
}

// Page returns the current comment page number.
func (b *CommentBox) Page() int { return b.page }

// Reveal opens the comment list when no comment is rendered yet. It
// reports whether the box shows comments afterwards.
func (b *CommentBox) Reveal(ctx context.Context) (bool, error) {
	rendered, err := b.frame.Exists(ctx, CommentNick)
	if err != nil {
		return false, err
	}
	if rendered {
		return true, nil
	}
	if toggle, _ := b.frame.Exists(ctx, CommentListToggle); toggle {
		if err := b.frame.Click(ctx, CommentListToggle); err == nil {
			if err := b.pacer.Settle(ctx); err != nil {
				return false, err
			}
		}
	}
	return b.frame.Exists(ctx, CommentRows)
}

// First moves to comment page 1 when the pager is shown.
func (b *CommentBox) First(ctx context.Context) error {
	sel := fmt.Sprintf(CommentPageFmt, 1)
	if ok, _ := b.frame.Exists(ctx, sel); ok {
		if err := b.frame.Click(ctx, sel); err == nil {
			if err := b.pacer.BetweenTargets(ctx); err != nil {
				return err
			}
		}
	}
	b.page = 1
	return nil
}

// Next moves to the following comment page. It reports false on the last
// page.
func (b *CommentBox) Next(ctx context.Context) (bool, error) {
	sel := fmt.Sprintf(CommentPageFmt, b.page+1)
	ok, err := b.frame.Exists(ctx, sel)
	if err != nil || !ok {
		return false, nil
	}
	if err := b.frame.Click(ctx, sel); err != nil {
		return false, nil
	}
	if err := b.pacer.BetweenTargets(ctx); err != nil {
		return false, err
	}
	b.page++
	return true, nil
}

// Comments parses the rendered comment rows.
func (b *CommentBox) Comments(ctx context.Context) ([]Comment, error) {
	html, err := b.frame.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return ParseComments(html)
}
