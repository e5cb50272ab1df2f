package campaign

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kolangzi/naver-automation/internal/actions"
	"github.com/kolangzi/naver-automation/internal/browser"
	"github.com/kolangzi/naver-automation/internal/browser/browsertest"
	"github.com/kolangzi/naver-automation/internal/config"
	"github.com/kolangzi/naver-automation/internal/governor"
	"github.com/kolangzi/naver-automation/internal/scraper"
	"github.com/kolangzi/naver-automation/internal/types"
)

const (
	testLogNo    = "223344"
	testIdentity = "me01"
)

type fakeText struct {
	fail     bool
	comments []string
	replies  []string
}

func (f *fakeText) Comment(_ context.Context, title, _ string) (string, bool) {
	f.comments = append(f.comments, title)
	if f.fail {
		return "", false
	}
	return "잘 보고 가요", true
}

func (f *fakeText) Reply(_ context.Context, _, _, comment string) (string, bool) {
	f.replies = append(f.replies, comment)
	if f.fail {
		return "", false
	}
	return "감사해요", true
}

func testDeps(page browser.Page, text TextSource) Deps {
	pacer := governor.NewPacer(config.Default().Pacing,
		governor.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	return Deps{Page: page, Pacer: pacer, Logger: zap.NewNop(), Identity: testIdentity, Text: text}
}

func postFrame(title string) *browsertest.Doc {
	frame := browsertest.NewDoc()
	frame.Set(scraper.PostTitleText, &browsertest.Element{Text: title}).
		Set(scraper.PostBody, &browsertest.Element{Text: "벚꽃이 예뻤다"}).
		Set(scraper.ReactionFace, &browsertest.Element{Attrs: map[string]string{"class": "u_likeit_button _face"}}).
		Set(scraper.ReactionLike, &browsertest.Element{Attrs: map[string]string{"aria-pressed": "false"}}).
		Set(scraper.CommentGuide, nil).
		Set(scraper.CommentEditor, nil).
		Set(scraper.CommentUpload, nil)
	return frame
}

func postPage(frame *browsertest.Doc) *browsertest.Page {
	page := browsertest.NewPage()
	page.FrameList = []browser.Frame{{
		Name: "sympathyFrm" + testLogNo,
		URL:  "https://blog.naver.com/PostView.naver?logNo=" + testLogNo,
	}}
	page.ByURL[scraper.PostViewFrame] = frame
	return page
}

func TestNew(t *testing.T) {
	cfg := config.Default()
	d := testDeps(browsertest.NewPage(), nil)

	for _, name := range []string{Buddy, Reply} {
		c, err := New(name, cfg, d, "")
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
	c, err := New(Neighbor, cfg, d, "https://blog.naver.com/seed/1")
	require.NoError(t, err)
	assert.Equal(t, Neighbor, c.Name())

	_, err = New(Neighbor, cfg, d, "")
	assert.Error(t, err)
	_, err = New("unknown", cfg, d, "")
	assert.Error(t, err)
}

func TestBuddyAct(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()

	t.Run("reacts and comments", func(t *testing.T) {
		frame := postFrame("봄 산책")
		text := &fakeText{}
		b := NewBuddy(cfg, testDeps(postPage(frame), text))
		target := &types.Target{ID: "friend01"}

		res := b.Act(ctx, target)
		assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
		assert.Equal(t, testLogNo, target.LogNo)
		assert.Equal(t, []string{"봄 산책"}, text.comments)
		assert.Equal(t, "잘 보고 가요", frame.Rich[scraper.CommentEditor])
		assert.True(t, frame.Clicked(scraper.ReactionFace))
		assert.True(t, frame.Clicked(scraper.CommentUpload))
	})

	t.Run("missing post frame fails without generating", func(t *testing.T) {
		page := postPage(postFrame("봄 산책"))
		page.FrameList[0].URL = "about:blank"
		text := &fakeText{}
		res := NewBuddy(cfg, testDeps(page, text)).Act(ctx, &types.Target{ID: "friend01"})
		assert.Equal(t, types.OutcomeFailed, res.Outcome)
		assert.Equal(t, "frame not found", res.Reason)
		assert.Empty(t, text.comments)
	})

	t.Run("no latest post is a skip", func(t *testing.T) {
		page := postPage(postFrame("봄 산책"))
		page.FrameList = nil
		res := NewBuddy(cfg, testDeps(page, &fakeText{})).Act(ctx, &types.Target{ID: "friend01"})
		assert.Equal(t, types.OutcomeSkipped, res.Outcome)
		assert.Equal(t, reasonNoLatest, res.Reason)
	})

	t.Run("generation failure defers", func(t *testing.T) {
		frame := postFrame("봄 산책")
		res := NewBuddy(cfg, testDeps(postPage(frame), &fakeText{fail: true})).Act(ctx, &types.Target{ID: "friend01"})
		assert.Equal(t, types.OutcomeDeferred, res.Outcome)
		require.NotNil(t, res.Defer)
		assert.Equal(t, "comment", res.Defer.Step)
		assert.True(t, res.Defer.Counts)
		assert.Equal(t, "봄 산책", res.Defer.Content.Title)
		assert.Empty(t, frame.Rich)
	})

	t.Run("template without text service", func(t *testing.T) {
		c := config.Default()
		c.Buddy.CommentTemplate = "좋은 글 감사합니다"
		frame := postFrame("봄 산책")
		res := NewBuddy(c, testDeps(postPage(frame), nil)).Act(ctx, &types.Target{ID: "friend01"})
		assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
		assert.Equal(t, "좋은 글 감사합니다", frame.Rich[scraper.CommentEditor])
	})

	t.Run("no text source", func(t *testing.T) {
		frame := postFrame("봄 산책")
		res := NewBuddy(cfg, testDeps(postPage(frame), nil)).Act(ctx, &types.Target{ID: "friend01"})
		assert.Equal(t, types.OutcomeSkipped, res.Outcome)
		assert.Equal(t, "no text source", res.Reason)
	})

	t.Run("empty post", func(t *testing.T) {
		frame := postFrame("")
		frame.Remove(scraper.PostBody)
		res := NewBuddy(cfg, testDeps(postPage(frame), &fakeText{})).Act(ctx, &types.Target{ID: "friend01"})
		assert.Equal(t, types.OutcomeSkipped, res.Outcome)
		assert.Equal(t, reasonNoContent, res.Reason)
	})

	t.Run("already commented", func(t *testing.T) {
		frame := postFrame("봄 산책")
		frame.Markup = `<ul><li class="u_cbox_comment"><span class="u_cbox_nick">ME 01</span></li></ul>`
		text := &fakeText{}
		res := NewBuddy(cfg, testDeps(postPage(frame), text)).Act(ctx, &types.Target{ID: "friend01"})
		assert.Equal(t, types.OutcomeSkipped, res.Outcome)
		assert.Equal(t, reasonAuthored, res.Reason)
		assert.Empty(t, text.comments)
	})
}

func TestBuddyRetryReopensTheSamePost(t *testing.T) {
	frame := postFrame("봄 산책")
	page := postPage(frame)
	item := &types.DeferredItem{Target: types.Target{ID: "friend01", LogNo: testLogNo}, Step: "comment", Counts: true}

	res := NewBuddy(config.Default(), testDeps(page, &fakeText{})).Retry(context.Background(), item)
	assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
	assert.Equal(t, []string{fmt.Sprintf(scraper.PostURL, "friend01", testLogNo)}, page.Visited)
}

func followPopup() *browsertest.Popup {
	popup := browsertest.NewPopup()
	popup.Set(scraper.MutualOption, nil).
		Set(scraper.PopupMessage, nil).
		Set(scraper.PopupSubmit, nil)
	return popup
}

func TestNeighborPrepare(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects a seed that is not a post", func(t *testing.T) {
		n := NewNeighbor(config.Default(), testDeps(browsertest.NewPage(), nil), "https://example.com")
		_, err := n.Prepare(ctx)
		assert.Error(t, err)
	})

	t.Run("reacts once and opens the list", func(t *testing.T) {
		frame := postFrame("봄 산책")
		page := postPage(frame)
		n := NewNeighbor(config.Default(), testDeps(page, nil), "https://blog.naver.com/seedblog/"+testLogNo)

		src, err := n.Prepare(ctx)
		require.NoError(t, err)
		require.NotNil(t, src)
		assert.True(t, frame.Clicked(scraper.ReactionFace))
		require.NotEmpty(t, page.Visited)
		assert.Equal(t, fmt.Sprintf(scraper.SympathyListURL, "seedblog", testLogNo), page.Visited[len(page.Visited)-1])
	})
}

func TestNeighborAct(t *testing.T) {
	ctx := context.Background()

	t.Run("follow asks for a reload", func(t *testing.T) {
		page := postPage(postFrame("봄 산책"))
		page.Set(actions.FollowButton("alice01"), nil)
		popup := followPopup()
		page.OnPopup = browsertest.Opened(popup)

		cfg := config.Default()
		res := NewNeighbor(cfg, testDeps(page, &fakeText{}), "seed").Act(ctx, &types.Target{ID: "alice01"})
		assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
		assert.True(t, res.NeedsReload)
		assert.Nil(t, res.Defer)
		assert.Equal(t, cfg.Neighbor.Message, popup.Fills[scraper.PopupMessage])
		assert.Empty(t, page.Visited)
	})

	t.Run("skipped follow still reloads", func(t *testing.T) {
		page := postPage(postFrame("봄 산책"))
		page.Set(actions.FollowButton("alice01"), nil)
		cfg := config.Default()
		cfg.Neighbor.CommentAfter = true

		res := NewNeighbor(cfg, testDeps(page, &fakeText{}), "seed").Act(ctx, &types.Target{ID: "alice01"})
		assert.Equal(t, types.OutcomeSkipped, res.Outcome)
		assert.True(t, res.NeedsReload)
		assert.Empty(t, page.Visited)
	})

	t.Run("comment after follow", func(t *testing.T) {
		frame := postFrame("봄 산책")
		page := postPage(frame)
		page.Set(actions.FollowButton("alice01"), nil)
		page.OnPopup = browsertest.Opened(followPopup())
		cfg := config.Default()
		cfg.Neighbor.CommentAfter = true

		target := &types.Target{ID: "alice01"}
		res := NewNeighbor(cfg, testDeps(page, &fakeText{}), "seed").Act(ctx, target)
		assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
		assert.Equal(t, "comment succeeded", res.Reason)
		assert.Equal(t, testLogNo, target.LogNo)
		assert.Equal(t, "잘 보고 가요", frame.Rich[scraper.CommentEditor])
	})

	t.Run("failed comment generation is a follow-up", func(t *testing.T) {
		page := postPage(postFrame("봄 산책"))
		page.Set(actions.FollowButton("alice01"), nil)
		page.OnPopup = browsertest.Opened(followPopup())
		cfg := config.Default()
		cfg.Neighbor.CommentAfter = true

		res := NewNeighbor(cfg, testDeps(page, &fakeText{fail: true}), "seed").Act(ctx, &types.Target{ID: "alice01"})
		assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
		require.NotNil(t, res.Defer)
		assert.False(t, res.Defer.Counts)
		assert.Equal(t, "comment", res.Defer.Step)
	})
}

const commentMarkup = `<ul>
<li class="u_cbox_comment" data-info="commentNo:'%[1]s1', replyLevel:1, parentCommentNo:'%[1]s1'">
  <span class="u_cbox_nick">Jane H</span><span class="u_cbox_contents">사진이 너무 예뻐요!</span>
</li>
<li class="u_cbox_comment" data-info="commentNo:'%[1]s2', replyLevel:1, parentCommentNo:'%[1]s2'">
  <span class="u_cbox_nick">방문자</span><span class="u_cbox_contents">좋은 정보 감사해요</span>
</li>
<li class="u_cbox_comment" data-info="commentNo:'%[1]s3', replyLevel:2, parentCommentNo:'%[1]s2'">
  <span class="u_cbox_ico_editor">블로그주인</span><span class="u_cbox_nick">주인장</span><span class="u_cbox_contents">감사합니다</span>
</li>
<li class="u_cbox_comment" data-info="commentNo:'%[1]s4', replyLevel:1, parentCommentNo:'%[1]s4'">
  <span class="u_cbox_ico_editor">블로그주인</span><span class="u_cbox_nick">주인장</span><span class="u_cbox_contents">공지입니다</span>
</li>
</ul>`

// commentFrame renders comments numbered prefix1 to prefix4. Replies
// always find their editor and the nearest submit control.
func commentFrame(title, prefix string) *browsertest.Doc {
	frame := postFrame(title)
	frame.Set(scraper.CommentNick, nil)
	frame.Markup = fmt.Sprintf(commentMarkup, prefix)
	for i := 1; i <= 4; i++ {
		frame.Set(fmt.Sprintf(scraper.ReplyEditorFmt, fmt.Sprintf("%s%d", prefix, i)), nil)
	}
	frame.EvalFunc = func(_ string, out any) error {
		switch v := out.(type) {
		case *bool:
			*v = true
		case *string:
			*v = "nearest"
		}
		return nil
	}
	return frame
}

func replyCampaign(t *testing.T, page *browsertest.Page, text TextSource, posts ...scraper.PostRow) (*ReplyCampaign, *commentSource) {
	t.Helper()
	r := NewReply(config.Default(), testDeps(page, text))
	r.blogID = testIdentity
	r.source = &commentSource{r: r, posts: posts}
	require.NoError(t, r.source.Reload(context.Background()))
	return r, r.source
}

func TestCommentSource(t *testing.T) {
	ctx := context.Background()
	first, second := commentFrame("봄 산책", "10"), commentFrame("가을 여행", "20")
	page := postPage(first)
	page.OnNavigate = func(url string) error {
		if strings.HasSuffix(url, "/999") {
			page.ByURL[scraper.PostViewFrame] = second
		}
		return nil
	}
	_, src := replyCampaign(t, page, &fakeText{},
		scraper.PostRow{LogNo: testLogNo, Title: "봄 산책"},
		scraper.PostRow{LogNo: "999", Title: "가을 여행"})

	targets, more, err := src.Collect(ctx)
	require.NoError(t, err)
	assert.True(t, more)
	require.Len(t, targets, 2)
	assert.Equal(t, "101", targets[0].ID)
	assert.Equal(t, "사진이 너무 예뻐요!", targets[0].Text)
	assert.Equal(t, types.KindComment, targets[0].Kind)
	assert.Equal(t, testLogNo, targets[0].LogNo)
	assert.Equal(t, "봄 산책", targets[0].Post.Title)
	assert.Equal(t, "102", targets[1].ID)

	moved, err := src.Advance(ctx)
	require.NoError(t, err)
	require.True(t, moved)

	targets, more, err = src.Collect(ctx)
	require.NoError(t, err)
	assert.False(t, more)
	require.Len(t, targets, 2)
	assert.Equal(t, "201", targets[0].ID)
	assert.Equal(t, "999", targets[0].LogNo)
	assert.Equal(t, "가을 여행", targets[0].Post.Title)

	moved, err = src.Advance(ctx)
	require.NoError(t, err)
	assert.False(t, moved)
	targets, more, err = src.Collect(ctx)
	require.NoError(t, err)
	assert.Empty(t, targets)
	assert.False(t, more)
}

func TestReplyAct(t *testing.T) {
	ctx := context.Background()

	t.Run("replies and skips answered comments", func(t *testing.T) {
		frame := commentFrame("봄 산책", "10")
		text := &fakeText{}
		r, src := replyCampaign(t, postPage(frame), text, scraper.PostRow{LogNo: testLogNo})
		targets, _, err := src.Collect(ctx)
		require.NoError(t, err)
		require.Len(t, targets, 2)

		res := r.Act(ctx, &targets[0])
		assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
		assert.Equal(t, "감사해요", frame.Rich[fmt.Sprintf(scraper.ReplyEditorFmt, "101")])

		res = r.Act(ctx, &targets[1])
		assert.Equal(t, types.OutcomeSkipped, res.Outcome)
		assert.Equal(t, reasonReplied, res.Reason)
		assert.Equal(t, []string{"사진이 너무 예뻐요!"}, text.replies)
	})

	t.Run("generation failure defers with the post", func(t *testing.T) {
		frame := commentFrame("봄 산책", "10")
		r, src := replyCampaign(t, postPage(frame), &fakeText{fail: true}, scraper.PostRow{LogNo: testLogNo})
		targets, _, err := src.Collect(ctx)
		require.NoError(t, err)

		res := r.Act(ctx, &targets[0])
		assert.Equal(t, types.OutcomeDeferred, res.Outcome)
		require.NotNil(t, res.Defer)
		assert.Equal(t, "reply", res.Defer.Step)
		assert.True(t, res.Defer.Counts)
		assert.Equal(t, "봄 산책", res.Defer.Content.Title)
	})

	t.Run("no text source", func(t *testing.T) {
		r, src := replyCampaign(t, postPage(commentFrame("봄 산책", "10")), nil, scraper.PostRow{LogNo: testLogNo})
		targets, _, err := src.Collect(ctx)
		require.NoError(t, err)
		res := r.Act(ctx, &targets[0])
		assert.Equal(t, types.OutcomeSkipped, res.Outcome)
		assert.Equal(t, reasonNoText, res.Reason)
	})
}

func TestReplyRetry(t *testing.T) {
	ctx := context.Background()
	frame := commentFrame("봄 산책", "10")
	page := postPage(frame)
	r := NewReply(config.Default(), testDeps(page, &fakeText{}))

	item := &types.DeferredItem{
		Target:  types.Target{ID: "101", LogNo: testLogNo, Text: "사진이 너무 예뻐요!"},
		Content: types.Content{Title: "봄 산책"},
		Step:    "reply",
		Counts:  true,
	}
	res := r.Retry(ctx, item)
	assert.Equal(t, types.OutcomeSucceeded, res.Outcome)

	item.Target.ID = "105"
	res = r.Retry(ctx, item)
	assert.Equal(t, types.OutcomeFailed, res.Outcome)
	assert.Equal(t, reasonCommentNotFound, res.Reason)
}
