package textgen

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/kolangzi/naver-automation/internal/config"
	"github.com/kolangzi/naver-automation/internal/store"
)

type reply struct {
	text string
	err  error
}

type fakeProvider struct {
	replies []reply
	prompts []string
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-1" }

func (f *fakeProvider) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if len(f.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return r.text, r.err
}

type memRecorder struct{ exchanges []store.Exchange }

func (m *memRecorder) SaveExchange(e store.Exchange) (string, error) {
	m.exchanges = append(m.exchanges, e)
	return "", nil
}

func newTestGenerator(p Provider, opts ...Option) *Generator {
	cfg := config.Default().TextGen
	opts = append([]Option{WithBaseBackoff(time.Millisecond), WithLimiter(rate.NewLimiter(rate.Inf, 1))}, opts...)
	return NewWithProvider(p, cfg, opts...)
}

func TestDefaultPacing(t *testing.T) {
	g := NewWithProvider(&fakeProvider{}, config.Default().TextGen)

	assert.Equal(t, rate.Every(4*time.Second), g.limiter.Limit())
	assert.Equal(t, 1, g.limiter.Burst())
	assert.Equal(t, 3, g.attempts)

	b := g.newBackOff(context.Background())
	var waits []time.Duration
	for range 3 {
		waits = append(waits, b.NextBackOff())
	}
	assert.Equal(t, []time.Duration{15 * time.Second, 30 * time.Second, backoff.Stop}, waits)
}

func TestGeneratorRetriesTransientErrors(t *testing.T) {
	p := &fakeProvider{replies: []reply{{err: errors.New("Error 503, UNAVAILABLE")}}}
	rec := &memRecorder{}
	text, ok := newTestGenerator(p, WithRecorder(rec)).Comment(context.Background(), "제목", "본문")
	assert.False(t, ok)
	assert.Empty(t, text)
	assert.Len(t, p.prompts, 3)
	require.Len(t, rec.exchanges, 3)
	assert.Equal(t, 3, rec.exchanges[2].Attempt)
	assert.Contains(t, rec.exchanges[0].Error, "503")
}

func TestGeneratorStopsOnFatalError(t *testing.T) {
	p := &fakeProvider{replies: []reply{{err: errors.New("Error 400, INVALID_ARGUMENT: API key not valid")}}}
	_, ok := newTestGenerator(p).Comment(context.Background(), "제목", "본문")
	assert.False(t, ok)
	assert.Len(t, p.prompts, 1)
}

func TestGeneratorRecoversAfterTransientError(t *testing.T) {
	p := &fakeProvider{replies: []reply{
		{err: errors.New("429 RESOURCE_EXHAUSTED")},
		{text: ""},
		{text: "  \"사진 분위기 너무 좋아요 😌\"  "},
	}}
	text, ok := newTestGenerator(p).Comment(context.Background(), "제목", "본문")
	require.True(t, ok)
	assert.Equal(t, "사진 분위기 너무 좋아요 😌", text)
	assert.Len(t, p.prompts, 3)
}

func TestGeneratorDeadlineIsTransient(t *testing.T) {
	p := &fakeProvider{replies: []reply{
		{err: context.DeadlineExceeded},
		{text: "좋아요"},
	}}
	text, ok := newTestGenerator(p).Reply(context.Background(), "t", "b", "c")
	require.True(t, ok)
	assert.Equal(t, "좋아요", text)
}

func TestGeneratorHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &fakeProvider{replies: []reply{{text: "좋아요"}}}
	gen := newTestGenerator(p, WithLimiter(rate.NewLimiter(rate.Every(time.Hour), 1)))
	_, ok := gen.Comment(ctx, "t", "b")
	assert.False(t, ok)
	assert.Empty(t, p.prompts)
}

func TestGeneratorTruncates(t *testing.T) {
	p := &fakeProvider{replies: []reply{{text: strings.Repeat("가", 80)}}}
	text, ok := newTestGenerator(p).Comment(context.Background(), "t", "b")
	require.True(t, ok)
	assert.Len(t, []rune(text), 50)
}

func TestPrompts(t *testing.T) {
	body := strings.Repeat("나", 700)
	comment := strings.Repeat("다", 300)

	cp := CommentPrompt("봄 산책", body)
	assert.True(t, strings.HasPrefix(cp, "너는 30대 여성 네이버 블로거야.\n"))
	assert.Contains(t, cp, "제목: 봄 산책\n")
	assert.Contains(t, cp, "본문: "+strings.Repeat("나", 500)+"\n")
	assert.NotContains(t, cp, strings.Repeat("나", 501))
	assert.True(t, strings.HasSuffix(cp, "댓글:"))

	rp := ReplyPrompt("봄 산책", body, comment)
	assert.Contains(t, rp, "댓글: "+strings.Repeat("다", 200)+"\n")
	assert.NotContains(t, rp, strings.Repeat("다", 201))
	assert.True(t, strings.HasSuffix(rp, "답글:"))
}

func TestClean(t *testing.T) {
	assert.Equal(t, "좋아요", Clean("  '좋아요'\n", 50))
	assert.Equal(t, "좋아", Clean("“좋아요”", 2))
	assert.Equal(t, "", Clean(" \"\" ", 50))
}

func TestModelFor(t *testing.T) {
	assert.Equal(t, "gemini-x", modelFor(config.TextGenConfig{Provider: config.ProviderGemini, Model: "gemini-x"}, "d"))
	assert.Equal(t, "d", modelFor(config.TextGenConfig{Provider: config.ProviderAnthropic, Model: "gemini-x"}, "d"))
	assert.Equal(t, "claude-y", modelFor(config.TextGenConfig{Provider: config.ProviderAnthropic, Model: "claude-y"}, "d"))
	assert.Equal(t, "d", modelFor(config.TextGenConfig{Provider: config.ProviderGemini}, "d"))
}
