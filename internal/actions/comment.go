package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/kolangzi/naver-automation/internal/browser"
	"github.com/kolangzi/naver-automation/internal/scraper"
)

// replyEditorTimeout bounds the wait for an inline reply editor.
const replyEditorTimeout = 5 * time.Second

// Comment posts text as a new comment in a post frame.
func (e *Executor) Comment(ctx context.Context, frame browser.Document, text string) Result {
	revealed, err := frame.ClickText(ctx, scraper.PopupAnchor, scraper.CommentWriteKeyword)
	if err != nil {
		return failedErr("reveal comment editor", err)
	}
	if !revealed {
		revealed, _ = frame.ClickText(ctx, scraper.PopupAnchor, scraper.CommentKeyword)
	}
	if revealed {
		if err := e.pacer.Settle(ctx); err != nil {
			return failedErr("pause", err)
		}
	}

	if guide, _ := frame.Exists(ctx, scraper.CommentGuide); guide {
		if err := frame.Click(ctx, scraper.CommentGuide); err == nil {
			if err := e.pacer.Short(ctx); err != nil {
				return failedErr("pause", err)
			}
		}
	}

	editor := scraper.CommentEditor
	if ok, _ := frame.Exists(ctx, editor); !ok {
		editor = scraper.CommentEditorAny
		if ok, _ := frame.Exists(ctx, editor); !ok {
			return failed("comment editor not found")
		}
	}
	if err := frame.SetRichText(ctx, editor, text); err != nil {
		return failedErr("enter comment", err)
	}
	if err := e.pacer.Short(ctx); err != nil {
		return failedErr("pause", err)
	}

	if ok, _ := frame.Exists(ctx, scraper.CommentUpload); ok {
		if err := frame.Click(ctx, scraper.CommentUpload); err != nil {
			return failedErr("submit comment", err)
		}
	} else if ok, _ := frame.ClickText(ctx, scraper.PopupButton, scraper.RegisterKeyword); !ok {
		return failed("submit control not found")
	}
	if err := e.pacer.Settle(ctx); err != nil {
		return failedErr("pause", err)
	}
	return succeeded("")
}

// Reply posts text as a reply to commentNo. The submit control is searched
// upwards from the reply editor, because several reply editors can be open
// at once; the last upload control in the frame is the fallback.
func (e *Executor) Reply(ctx context.Context, frame browser.Document, commentNo, text string) Result {
	var opened bool
	if err := frame.Evaluate(ctx, openReplyFn(commentNo), &opened); err != nil {
		return failedErr("open reply editor", err)
	}
	if !opened {
		return failed("comment row not found")
	}
	if err := e.pacer.Short(ctx); err != nil {
		return failedErr("pause", err)
	}

	editor := fmt.Sprintf(scraper.ReplyEditorFmt, commentNo)
	ok, err := browser.WaitFor(ctx, frame, editor, replyEditorTimeout)
	if err != nil {
		return failedErr("locate reply editor", err)
	}
	if !ok {
		return failed("reply editor not found")
	}
	if err := frame.SetRichText(ctx, editor, text); err != nil {
		return failedErr("enter reply", err)
	}
	if err := e.pacer.Short(ctx); err != nil {
		return failedErr("pause", err)
	}

	var via string
	if err := frame.Evaluate(ctx, submitNearestFn(editor), &via); err != nil {
		return failedErr("submit reply", err)
	}
	if via == "" {
		return failed("submit control not found")
	}
	if err := e.pacer.Settle(ctx); err != nil {
		return failedErr("pause", err)
	}
	if via == submitFallback {
		return succeeded("submitted via the last upload control")
	}
	return succeeded("")
}
