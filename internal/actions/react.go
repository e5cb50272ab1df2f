package actions

import (
	"context"

	"github.com/kolangzi/naver-automation/internal/browser"
	"github.com/kolangzi/naver-automation/internal/scraper"
)

// React presses the reaction face and then the heart option. A reaction
// that is already applied counts as done.
func (e *Executor) React(ctx context.Context, frame browser.Document) Result {
	class, _, err := frame.Attribute(ctx, scraper.ReactionFace, "class")
	if err != nil {
		return failedErr("locate reaction button", err)
	}
	if hasClassToken(class, "on") {
		return succeeded("already reacted")
	}
	if err := frame.Click(ctx, scraper.ReactionFace); err != nil {
		return failedErr("click reaction button", err)
	}
	if err := e.pacer.Short(ctx); err != nil {
		return failedErr("pause", err)
	}

	pressed, _, err := frame.Attribute(ctx, scraper.ReactionLike, "aria-pressed")
	if err != nil {
		return failedErr("locate like option", err)
	}
	if pressed == "true" {
		return succeeded("already reacted")
	}
	if err := frame.Click(ctx, scraper.ReactionLike); err != nil {
		return failedErr("click like option", err)
	}
	if err := e.pacer.BetweenTargets(ctx); err != nil {
		return failedErr("pause", err)
	}
	return succeeded("")
}
