package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/kolangzi/naver-automation/internal/config"
	"github.com/kolangzi/naver-automation/internal/types"
)

var (
	paramPattern  = regexp.MustCompile(`_param\(([^)]+)\)`)
	blogIDPattern = regexp.MustCompile(`blog\.naver\.com/([^/?&#]+)`)
	logNoPattern  = regexp.MustCompile(`logNo=(\d+)`)
)

func parseHTML(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}

func text(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

// BlogIDFromHref extracts the blog id from a blog.naver.com link.
func BlogIDFromHref(href string) (string, bool) {
	m := blogIDPattern.FindStringSubmatch(href)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseAccounts extracts follow-request candidates from the sympathy list.
// Each add-buddy button carries its account id in a _param(id) class token.
// Buttons without the token are skipped.
func ParseAccounts(html string) ([]types.Target, error) {
	doc, err := parseHTML(html)
	if err != nil {
		return nil, err
	}

	var accounts []types.Target
	seen := make(map[string]bool)
	doc.Find(AddBuddyButton).Each(func(_ int, s *goquery.Selection) {
		cls, _ := s.Attr("class")
		m := paramPattern.FindStringSubmatch(cls)
		if m == nil {
			return
		}
		id := strings.TrimSpace(m[1])
		if id == "" || seen[id] {
			return
		}
		seen[id] = true

		name := id
		if n := s.Closest("li").Find(AccountNameInRow).First(); n.Length() > 0 {
			if t := text(n); t != "" {
				name = t
			}
		}
		accounts = append(accounts, types.Target{
			ID:      id,
			Name:    name,
			Kind:    types.KindAccount,
			BlogID:  id,
			Outcome: types.OutcomePending,
		})
	})
	return accounts, nil
}

// BuddyRow is one row of the admin neighbor table.
type BuddyRow struct {
	BlogID  string
	Nick    string
	Date    string
	RawDate string
}

// ParseBuddyRows extracts neighbor rows. The date column depends on the
// sort order: the update date for SortByUpdate, the added date otherwise.
func ParseBuddyRows(html, sort string) ([]BuddyRow, error) {
	doc, err := parseHTML(html)
	if err != nil {
		return nil, err
	}

	dateCol := 6
	if sort == config.SortByUpdate {
		dateCol = 5
	}

	var rows []BuddyRow
	doc.Find(BuddyRows).Each(func(_ int, row *goquery.Selection) {
		tds := row.Find("td")
		if tds.Length() < 7 {
			return
		}
		href, ok := row.Find(BuddyBlogLink).First().Attr("href")
		if !ok {
			return
		}
		id, ok := BlogIDFromHref(href)
		if !ok {
			return
		}
		nick := id
		if n := text(row.Find(BuddyNickname).First()); n != "" {
			nick = n
		}
		raw := text(tds.Eq(dateCol))
		rows = append(rows, BuddyRow{
			BlogID:  id,
			Nick:    nick,
			Date:    ParseAdminDate(raw),
			RawDate: raw,
		})
	})
	return rows, nil
}

// BuddyPager is the numbered pagination state of the admin table.
type BuddyPager struct {
	Current int
	Links   []string
	HasNext bool
}

// ParseBuddyPager reads the current page number and the sibling links.
func ParseBuddyPager(html string) (BuddyPager, error) {
	doc, err := parseHTML(html)
	if err != nil {
		return BuddyPager{}, err
	}
	p := BuddyPager{Current: 1}
	if n, err := strconv.Atoi(text(doc.Find(BuddyCurrentPage).First())); err == nil {
		p.Current = n
	}
	doc.Find(BuddyPageLinks).Each(func(_ int, s *goquery.Selection) {
		p.Links = append(p.Links, text(s))
	})
	p.HasNext = doc.Find(BuddyNextLink).Length() > 0
	doc.Find(BuddyPaginate).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(text(s), KeywordNext) {
			p.HasNext = true
			return false
		}
		return true
	})
	return p, nil
}

// HasLink reports whether a pager link reads exactly label.
func (p BuddyPager) HasLink(label string) bool {
	for _, l := range p.Links {
		if l == label {
			return true
		}
	}
	return false
}

// PostRow is one post of the own post list.
type PostRow struct {
	LogNo string
	Title string
	Date  string
}

// PostListPage is one parsed page of the post list.
type PostListPage struct {
	Posts []PostRow
	// NoTable is set when the list table has no rows at all.
	NoTable bool
	// ReachedCutoff is set once a post older than the cutoff is seen.
	ReachedCutoff bool
	pages         map[int]bool
}

// HasPage reports whether the pager links to page n.
func (p PostListPage) HasPage(n int) bool { return p.pages[n] }

// ParsePostList extracts posts dated on or after cutoff (YYYY-MM-DD) and
// stops at the first older one. Rows without a parsable date are skipped.
func ParsePostList(html string, today time.Time, cutoff string) (PostListPage, error) {
	doc, err := parseHTML(html)
	if err != nil {
		return PostListPage{}, err
	}

	page := PostListPage{pages: make(map[int]bool)}
	rows := doc.Find(PostRows)
	page.NoTable = rows.Length() == 0

	rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
		title := row.Find(PostTitle)
		dateEl := row.Find(PostDate)
		if title.Length() == 0 || dateEl.Length() == 0 {
			return true
		}
		date, ok := ParsePostDate(text(dateEl.First()), today)
		if !ok {
			return true
		}
		if date < cutoff {
			page.ReachedCutoff = true
			return false
		}
		link := title.Find(PostLink).Last()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		m := logNoPattern.FindStringSubmatch(href)
		if m == nil {
			return true
		}
		page.Posts = append(page.Posts, PostRow{LogNo: m[1], Title: text(link), Date: date})
		return true
	})

	doc.Find(PostPageLink).Each(func(_ int, s *goquery.Selection) {
		cls, _ := s.Attr("class")
		if m := paramPattern.FindStringSubmatch(cls); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				page.pages[n] = true
			}
		}
	})
	return page, nil
}

// ParseDataInfo parses a comment row's data-info blob of comma separated
// key:'value' pairs.
func ParseDataInfo(raw string) map[string]string {
	info := make(map[string]string)
	for _, kv := range strings.Split(raw, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(kv), ":")
		if !ok {
			continue
		}
		info[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(val), "'")
	}
	return info
}

// Comment is one rendered comment row.
type Comment struct {
	No       string
	ParentNo string
	Level    int
	Nick     string
	Text     string
	// OwnerBadge marks a comment written by the blog owner.
	OwnerBadge bool
	NameHref   string
}

// ParseComments extracts every comment row of a comment box.
func ParseComments(html string) ([]Comment, error) {
	doc, err := parseHTML(html)
	if err != nil {
		return nil, err
	}
	var comments []Comment
	doc.Find(CommentRows).Each(func(_ int, row *goquery.Selection) {
		raw, _ := row.Attr("data-info")
		info := ParseDataInfo(raw)
		level, _ := strconv.Atoi(info["replyLevel"])
		href, _ := row.Find(CommentNameLink).First().Attr("href")
		comments = append(comments, Comment{
			No:         info["commentNo"],
			ParentNo:   info["parentCommentNo"],
			Level:      level,
			Nick:       text(row.Find(CommentNick).First()),
			Text:       text(row.Find(CommentContents).First()),
			OwnerBadge: row.Find(CommentOwnerBadge).Length() > 0,
			NameHref:   href,
		})
	})
	return comments, nil
}

// HasOwnerReply reports whether a level-2 reply to commentNo was written by
// the owner, recognized by the owner badge or an author link naming
// identity.
func HasOwnerReply(comments []Comment, commentNo, identity string) bool {
	id := strings.ToLower(identity)
	for _, c := range comments {
		if c.Level != 2 || c.ParentNo != commentNo {
			continue
		}
		if c.OwnerBadge {
			return true
		}
		if id != "" && strings.Contains(strings.ToLower(c.NameHref), id) {
			return true
		}
	}
	return false
}

// CommentAuthors lists the rendered nicknames and the blog ids of author
// links in a comment box.
func CommentAuthors(html string) (nicks []string, ids []string, err error) {
	doc, err := parseHTML(html)
	if err != nil {
		return nil, nil, err
	}
	doc.Find(CommentNick).Each(func(_ int, s *goquery.Selection) {
		if n := text(s); n != "" {
			nicks = append(nicks, n)
		}
	})
	doc.Find(CommentAuthorLink).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if id, ok := BlogIDFromHref(href); ok {
			ids = append(ids, id)
		}
	})
	return nicks, ids, nil
}
