package actions

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kolangzi/naver-automation/internal/browser"
	"github.com/kolangzi/naver-automation/internal/scraper"
)

// reasonNoConfirm marks a request sent without a final confirm step.
const reasonNoConfirm = "no confirm control"

// FollowButton returns the selector of the add-buddy button of accountID.
// Rows carry no stable id, so the button is matched by its _param token.
func FollowButton(accountID string) string {
	return fmt.Sprintf(`%s[class*="_param(%s)"]`, scraper.AddBuddyButton, accountID)
}

// Follow sends a mutual follow request to accountID from the current list
// page. A popup that never opens means the relationship already exists or
// is pending, which is a skip. The popup is always closed before return.
func (e *Executor) Follow(ctx context.Context, accountID, message string) Result {
	log := e.logger.With(zap.String("account", accountID))
	btn := FollowButton(accountID)

	found, err := e.page.Exists(ctx, btn)
	if err != nil {
		return failedErr("locate follow button", err)
	}
	if !found {
		return failed("follow button not found")
	}
	if err := e.pacer.BeforeClick(ctx); err != nil {
		return failedErr("pause", err)
	}

	out, err := e.page.ExpectPopup(ctx, e.popupTimeout, func(ctx context.Context) error {
		return e.page.Click(ctx, btn)
	})
	if err != nil {
		return failedErr("open follow popup", err)
	}
	if out.Kind == browser.PopupTimedOut {
		log.Info("follow popup did not open")
		return skipped("popup did not open (already related or pending)")
	}

	popup := out.Popup
	defer e.closePopup(ctx, popup)
	log.Debug("follow popup opened")
	if err := e.pacer.AfterPopup(ctx); err != nil {
		return failedErr("pause", err)
	}
	return e.followInPopup(ctx, popup, message)
}

func (e *Executor) followInPopup(ctx context.Context, popup browser.Popup, message string) Result {
	mutual, err := popup.Exists(ctx, scraper.MutualOption)
	if err != nil {
		return failedErr("locate mutual option", err)
	}
	if !mutual {
		return skipped("mutual option not offered")
	}
	if disabled, _ := popup.Exists(ctx, scraper.MutualOptionDisabled); disabled {
		return skipped("mutual option disabled")
	}
	if err := e.pacer.BeforeClick(ctx); err != nil {
		return failedErr("pause", err)
	}
	if err := popup.Click(ctx, scraper.MutualOption); err != nil {
		return skipped("mutual option not clickable")
	}
	if err := e.pacer.Short(ctx); err != nil {
		return failedErr("pause", err)
	}

	// optional "next" step
	next, _ := popup.Exists(ctx, scraper.PopupNext)
	if next {
		if err := e.pacer.BeforeClick(ctx); err != nil {
			return failedErr("pause", err)
		}
		if err := popup.Click(ctx, scraper.PopupNext); err != nil {
			return failedErr("click next", err)
		}
	} else {
		next, _ = popup.ClickText(ctx, scraper.PopupAnchor, scraper.KeywordNext)
	}
	if next {
		if err := e.pacer.AfterPopup(ctx); err != nil {
			return failedErr("pause", err)
		}
	}
	if popup.Closed(ctx) {
		return succeeded("popup closed by the site")
	}

	if hasMessage, _ := popup.Exists(ctx, scraper.PopupMessage); hasMessage && message != "" {
		if err := popup.Fill(ctx, scraper.PopupMessage, message); err != nil {
			return failedErr("fill message", err)
		}
		if err := e.pacer.Short(ctx); err != nil {
			return failedErr("pause", err)
		}
	}

	if err := e.pacer.BeforeClick(ctx); err != nil {
		return failedErr("pause", err)
	}
	// The final confirm is optional.
	if ok, _ := popup.Exists(ctx, scraper.PopupSubmit); ok {
		if err := popup.Click(ctx, scraper.PopupSubmit); err != nil {
			return failedErr("submit", err)
		}
	} else if !e.clickAny(ctx, popup,
		[2]string{scraper.PopupAnchor, scraper.KeywordConfirm},
		[2]string{scraper.PopupAnchor, scraper.KeywordApply},
		[2]string{scraper.PopupButton, scraper.KeywordConfirm},
	) {
		e.logger.Debug("no final confirm control, closing the popup")
		return succeeded(reasonNoConfirm)
	}
	if err := e.pacer.AfterPopup(ctx); err != nil {
		return failedErr("pause", err)
	}
	return succeeded("")
}

// clickAny clicks the first (selector, text) pair that resolves.
func (e *Executor) clickAny(ctx context.Context, d browser.Document, pairs ...[2]string) bool {
	for _, p := range pairs {
		if ok, err := d.ClickText(ctx, p[0], p[1]); err == nil && ok {
			return true
		}
	}
	return false
}

// closePopup dismisses a final confirmation and force-closes the popup.
func (e *Executor) closePopup(ctx context.Context, popup browser.Popup) {
	if popup.Closed(ctx) {
		return
	}
	if e.clickAny(ctx, popup,
		[2]string{scraper.PopupAnchor, scraper.KeywordConfirm},
		[2]string{scraper.PopupButton, scraper.KeywordConfirm},
	) {
		_ = e.pacer.Short(ctx)
	}
	if popup.Closed(ctx) {
		return
	}
	if err := popup.Close(ctx); err != nil {
		e.logger.Debug("failed to close popup", zap.Error(err))
	}
}
