// Package content reads posts and comment boxes for the campaigns that
// generate text about them.
package content

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/kolangzi/naver-automation/internal/browser"
	"github.com/kolangzi/naver-automation/internal/governor"
	"github.com/kolangzi/naver-automation/internal/scraper"
	"github.com/kolangzi/naver-automation/internal/types"
)

// MaxBodyChars caps the extracted body excerpt.
const MaxBodyChars = 1000

var sympathyFrame = regexp.MustCompile(`sympathyFrm(\d+)`)

// iframeLogNosFn lists distinct post numbers embedded in iframe names.
const iframeLogNosFn = `(doc) => {
  const out = [];
  doc.querySelectorAll('iframe').forEach(f => {
    const m = (f.name || '').match(/\d{10,}/);
    if (m && out.indexOf(m[0]) < 0) { out.push(m[0]); }
  });
  return out;
}`

// Fetcher navigates the session page to posts and extracts their content.
type Fetcher struct {
	page   browser.Page
	pacer  *governor.Pacer
	logger *zap.Logger
}

// NewFetcher creates a fetcher over page.
func NewFetcher(page browser.Page, pacer *governor.Pacer, logger *zap.Logger) *Fetcher {
	return &Fetcher{page: page, pacer: pacer, logger: logger}
}

// FetchLatest finds the newest post number of blogID from its post list.
func (f *Fetcher) FetchLatest(ctx context.Context, blogID string) (string, bool) {
	log := f.logger.With(zap.String("blog", blogID))
	if err := f.page.Navigate(ctx, fmt.Sprintf(scraper.LatestPostURL, blogID)); err != nil {
		log.Warn("failed to open post list", zap.Error(err))
		return "", false
	}
	if err := f.pacer.PageLoad(ctx); err != nil {
		return "", false
	}

	frames, err := f.page.Frames(ctx)
	if err != nil {
		log.Warn("failed to list frames", zap.Error(err))
	}
	for _, fr := range frames {
		if m := sympathyFrame.FindStringSubmatch(fr.Name); m != nil {
			log.Debug("found latest post", zap.String("log_no", m[1]))
			return m[1], true
		}
	}

	var found []string
	if err := f.page.Evaluate(ctx, iframeLogNosFn, &found); err != nil {
		log.Warn("failed to scan iframes", zap.Error(err))
		return "", false
	}
	if len(found) == 0 {
		log.Info("no post number found")
		return "", false
	}
	return found[0], true
}

// FetchContent opens blogID/logNo and extracts title and body from the
// PostView frame. The returned frame stays bound to that post view.
func (f *Fetcher) FetchContent(ctx context.Context, blogID, logNo string) (types.Content, browser.Document, bool) {
	url := fmt.Sprintf(scraper.PostURL, blogID, logNo)
	log := f.logger.With(zap.String("url", url))
	if err := f.page.Navigate(ctx, url); err != nil {
		log.Warn("failed to open post", zap.Error(err))
		return types.Content{}, nil, false
	}
	if err := f.pacer.PageLoad(ctx); err != nil {
		return types.Content{}, nil, false
	}

	frames, err := f.page.Frames(ctx)
	if err != nil {
		log.Warn("failed to list frames", zap.Error(err))
		return types.Content{}, nil, false
	}
	if _, ok := browser.FindFrame(frames, scraper.PostViewFrame); !ok {
		log.Info("post view frame not found")
		return types.Content{}, nil, false
	}
	frame := f.page.FrameByURL(scraper.PostViewFrame)

	// Either part may be missing on legacy editor layouts.
	title, _ := frame.Text(ctx, scraper.PostTitleText)
	body, _ := frame.Text(ctx, scraper.PostBody)
	c := types.Content{
		Title: strings.TrimSpace(title),
		Body:  truncate(strings.TrimSpace(body), MaxBodyChars),
	}
	log.Debug("fetched post", zap.String("title", truncate(c.Title, 50)))
	return c, frame, true
}

// AlreadyAuthored reports whether identity already commented in frame.
// Nicknames are matched loosely after normalization, author links exactly.
func (f *Fetcher) AlreadyAuthored(ctx context.Context, frame browser.Document, identity string) types.Probe {
	nicks, ids, err := f.authors(ctx, frame)
	if err != nil {
		f.logger.Debug("failed to read comment authors", zap.Error(err))
		return types.ProbeUnknown
	}
	if len(nicks) == 0 {
		if ok, _ := frame.Exists(ctx, scraper.CommentListToggle); ok {
			if err := frame.Click(ctx, scraper.CommentListToggle); err == nil {
				if err := f.pacer.Settle(ctx); err != nil {
					return types.ProbeUnknown
				}
				if nicks, ids, err = f.authors(ctx, frame); err != nil {
					return types.ProbeUnknown
				}
			}
		}
	}
	return types.ProbeOf(MatchesAuthor(nicks, ids, identity))
}

func (f *Fetcher) authors(ctx context.Context, frame browser.Document) ([]string, []string, error) {
	html, err := frame.HTML(ctx)
	if err != nil {
		return nil, nil, err
	}
	return scraper.CommentAuthors(html)
}

// AlreadyReplied reports whether the blog owner already replied to
// commentNo in the rendered comment page.
func (f *Fetcher) AlreadyReplied(ctx context.Context, frame browser.Document, commentNo, identity string) types.Probe {
	html, err := frame.HTML(ctx)
	if err != nil {
		return types.ProbeUnknown
	}
	comments, err := scraper.ParseComments(html)
	if err != nil {
		return types.ProbeUnknown
	}
	return types.ProbeOf(scraper.HasOwnerReply(comments, commentNo, identity))
}

// MatchesAuthor reports whether identity appears among nicks (normalized
// substring) or ids (case-insensitive equality).
func MatchesAuthor(nicks, ids []string, identity string) bool {
	want := normalize(identity)
	if want == "" {
		return false
	}
	for _, n := range nicks {
		if strings.Contains(normalize(n), want) {
			return true
		}
	}
	for _, id := range ids {
		if strings.EqualFold(id, identity) {
			return true
		}
	}
	return false
}

// normalize lowercases s and keeps only letters and digits.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
