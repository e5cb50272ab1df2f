package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kolangzi/naver-automation/internal/browser"
	"github.com/kolangzi/naver-automation/internal/browser/browsertest"
	"github.com/kolangzi/naver-automation/internal/config"
	"github.com/kolangzi/naver-automation/internal/governor"
	"github.com/kolangzi/naver-automation/internal/scraper"
	"github.com/kolangzi/naver-automation/internal/types"
)

func newExecutor(page browser.Page) *Executor {
	pacer := governor.NewPacer(config.Default().Pacing,
		governor.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	return NewExecutor(page, pacer, zap.NewNop(), 0)
}

func followPage(id string, popup *browsertest.Popup) *browsertest.Page {
	page := browsertest.NewPage()
	page.Set(FollowButton(id), nil)
	if popup != nil {
		page.OnPopup = browsertest.Opened(popup)
	}
	return page
}

func TestFollow(t *testing.T) {
	ctx := context.Background()

	t.Run("button missing", func(t *testing.T) {
		page := browsertest.NewPage()
		res := newExecutor(page).Follow(ctx, "alice01", "hi")
		assert.Equal(t, types.OutcomeFailed, res.Outcome)
		assert.Equal(t, "follow button not found", res.Reason)
	})

	t.Run("popup timeout is a skip", func(t *testing.T) {
		page := followPage("alice01", nil)
		res := newExecutor(page).Follow(ctx, "alice01", "hi")
		assert.Equal(t, types.OutcomeSkipped, res.Outcome)
		assert.Contains(t, res.Reason, "already related or pending")
		assert.True(t, page.Clicked(FollowButton("alice01")))
	})

	t.Run("trigger error fails", func(t *testing.T) {
		page := followPage("alice01", nil)
		page.OnPopup = func() (browser.PopupOutcome, error) {
			return browser.PopupOutcome{}, errors.New("target crashed")
		}
		res := newExecutor(page).Follow(ctx, "alice01", "hi")
		assert.Equal(t, types.OutcomeFailed, res.Outcome)
		assert.Contains(t, res.Reason, "target crashed")
	})

	t.Run("mutual option missing", func(t *testing.T) {
		popup := browsertest.NewPopup()
		res := newExecutor(followPage("alice01", popup)).Follow(ctx, "alice01", "hi")
		assert.Equal(t, types.OutcomeSkipped, res.Outcome)
		assert.True(t, popup.IsClosed)
		assert.Equal(t, 1, popup.CloseCalls)
	})

	t.Run("mutual option disabled", func(t *testing.T) {
		popup := browsertest.NewPopup()
		popup.Set(scraper.MutualOption, nil).Set(scraper.MutualOptionDisabled, nil)
		res := newExecutor(followPage("alice01", popup)).Follow(ctx, "alice01", "hi")
		assert.Equal(t, types.OutcomeSkipped, res.Outcome)
		assert.Equal(t, "mutual option disabled", res.Reason)
		assert.False(t, popup.Clicked(scraper.MutualOption))
		assert.True(t, popup.IsClosed)
	})

	t.Run("full request", func(t *testing.T) {
		popup := browsertest.NewPopup()
		popup.Set(scraper.MutualOption, nil).
			Set(scraper.PopupNext, nil).
			Set(scraper.PopupMessage, nil).
			Set(scraper.PopupSubmit, nil)
		res := newExecutor(followPage("alice01", popup)).Follow(ctx, "alice01", "반가워요")
		assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
		assert.Equal(t, "반가워요", popup.Fills[scraper.PopupMessage])
		assert.True(t, popup.Clicked(scraper.MutualOption))
		assert.True(t, popup.Clicked(scraper.PopupSubmit))
		assert.True(t, popup.IsClosed)
	})

	t.Run("keyword submit and confirm", func(t *testing.T) {
		popup := browsertest.NewPopup()
		popup.Set(scraper.MutualOption, nil).Set(scraper.PopupMessage, nil)
		popup.AddTextControl(scraper.PopupAnchor, scraper.KeywordNext, nil)
		popup.AddTextControl(scraper.PopupButton, scraper.KeywordConfirm, nil)
		res := newExecutor(followPage("alice01", popup)).Follow(ctx, "alice01", "")
		assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
		assert.Empty(t, popup.Fills)
		assert.Contains(t, popup.Clicks, scraper.PopupAnchor+"|"+scraper.KeywordNext)
		assert.Contains(t, popup.Clicks, scraper.PopupButton+"|"+scraper.KeywordConfirm)
	})

	t.Run("site closes the popup after next", func(t *testing.T) {
		popup := browsertest.NewPopup()
		popup.Set(scraper.MutualOption, nil)
		popup.Set(scraper.PopupNext, &browsertest.Element{OnClick: func() { popup.IsClosed = true }})
		res := newExecutor(followPage("alice01", popup)).Follow(ctx, "alice01", "hi")
		assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
		assert.Empty(t, popup.Fills)
		assert.Zero(t, popup.CloseCalls)
	})

	t.Run("no submit control", func(t *testing.T) {
		popup := browsertest.NewPopup()
		popup.Set(scraper.MutualOption, nil)
		res := newExecutor(followPage("alice01", popup)).Follow(ctx, "alice01", "hi")
		assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
		assert.Equal(t, reasonNoConfirm, res.Reason)
		assert.True(t, popup.Clicked(scraper.MutualOption))
		assert.True(t, popup.IsClosed, "the popup is closed even without a confirm")
	})
}

func commentFrame() *browsertest.Doc {
	frame := browsertest.NewDoc()
	frame.AddTextControl(scraper.PopupAnchor, "댓글 쓰기", nil)
	frame.Set(scraper.CommentGuide, nil).
		Set(scraper.CommentEditor, nil).
		Set(scraper.CommentUpload, nil)
	return frame
}

func TestComment(t *testing.T) {
	ctx := context.Background()
	exec := newExecutor(browsertest.NewPage())

	t.Run("posts", func(t *testing.T) {
		frame := commentFrame()
		res := exec.Comment(ctx, frame, "잘 보고 가요")
		assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
		assert.Equal(t, "잘 보고 가요", frame.Rich[scraper.CommentEditor])
		assert.True(t, frame.Clicked(scraper.CommentGuide))
		assert.True(t, frame.Clicked(scraper.CommentUpload))
	})

	t.Run("generic editor and keyword submit", func(t *testing.T) {
		frame := browsertest.NewDoc()
		frame.Set(scraper.CommentEditorAny, nil)
		frame.AddTextControl(scraper.PopupButton, "등록", nil)
		res := exec.Comment(ctx, frame, "좋아요")
		assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
		assert.Equal(t, "좋아요", frame.Rich[scraper.CommentEditorAny])
	})

	t.Run("editor missing", func(t *testing.T) {
		frame := commentFrame()
		frame.Remove(scraper.CommentEditor)
		res := exec.Comment(ctx, frame, "x")
		assert.Equal(t, types.OutcomeFailed, res.Outcome)
		assert.Equal(t, "comment editor not found", res.Reason)
		assert.False(t, frame.Clicked(scraper.CommentUpload))
	})

	t.Run("frame missing", func(t *testing.T) {
		res := exec.Comment(ctx, &browsertest.Doc{Missing: true}, "x")
		assert.Equal(t, types.OutcomeFailed, res.Outcome)
		assert.Equal(t, "frame not found", res.Reason)
	})
}

func TestReact(t *testing.T) {
	ctx := context.Background()
	exec := newExecutor(browsertest.NewPage())

	t.Run("already on", func(t *testing.T) {
		frame := browsertest.NewDoc()
		frame.Set(scraper.ReactionFace, &browsertest.Element{Attrs: map[string]string{"class": "u_likeit_button _face on"}})
		res := exec.React(ctx, frame)
		assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
		assert.Empty(t, frame.Clicks)
	})

	t.Run("class token must match exactly", func(t *testing.T) {
		frame := browsertest.NewDoc()
		frame.Set(scraper.ReactionFace, &browsertest.Element{Attrs: map[string]string{"class": "u_likeit_button button_on"}})
		frame.Set(scraper.ReactionLike, &browsertest.Element{Attrs: map[string]string{"aria-pressed": "false"}})
		res := exec.React(ctx, frame)
		assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
		assert.Equal(t, []string{scraper.ReactionFace, scraper.ReactionLike}, frame.Clicks)
	})

	t.Run("like already pressed", func(t *testing.T) {
		frame := browsertest.NewDoc()
		frame.Set(scraper.ReactionFace, nil)
		frame.Set(scraper.ReactionLike, &browsertest.Element{Attrs: map[string]string{"aria-pressed": "true"}})
		res := exec.React(ctx, frame)
		assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
		assert.Equal(t, []string{scraper.ReactionFace}, frame.Clicks)
	})

	t.Run("button missing", func(t *testing.T) {
		res := exec.React(ctx, browsertest.NewDoc())
		assert.Equal(t, types.OutcomeFailed, res.Outcome)
	})
}

func replyFrame(commentNo string, via string) *browsertest.Doc {
	frame := browsertest.NewDoc()
	frame.Set(fmt.Sprintf(scraper.ReplyEditorFmt, commentNo), nil)
	frame.EvalFunc = func(fn string, out any) error {
		switch v := out.(type) {
		case *bool:
			*v = strings.Contains(fn, scraper.CommentReplyButton)
		case *string:
			*v = via
		}
		return nil
	}
	return frame
}

func TestReply(t *testing.T) {
	ctx := context.Background()
	exec := newExecutor(browsertest.NewPage())

	t.Run("nearest submit", func(t *testing.T) {
		frame := replyFrame("1002", submitNearest)
		res := exec.Reply(ctx, frame, "1002", "감사해요")
		assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
		assert.Empty(t, res.Reason)
		assert.Equal(t, "감사해요", frame.Rich[fmt.Sprintf(scraper.ReplyEditorFmt, "1002")])
		require.Len(t, frame.Evaluated, 2)
		assert.Contains(t, frame.Evaluated[0], `"1002"`)
	})

	t.Run("fallback submit still succeeds", func(t *testing.T) {
		res := exec.Reply(ctx, replyFrame("1002", submitFallback), "1002", "감사해요")
		assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
		assert.NotEmpty(t, res.Reason)
	})

	t.Run("no submit control", func(t *testing.T) {
		res := exec.Reply(ctx, replyFrame("1002", ""), "1002", "감사해요")
		assert.Equal(t, types.OutcomeFailed, res.Outcome)
	})

	t.Run("row not found", func(t *testing.T) {
		frame := replyFrame("1002", submitNearest)
		frame.EvalFunc = browsertest.EvalJSON(false)
		res := exec.Reply(ctx, frame, "1002", "감사해요")
		assert.Equal(t, types.OutcomeFailed, res.Outcome)
		assert.Equal(t, "comment row not found", res.Reason)
	})
}
