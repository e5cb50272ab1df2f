// Package browsertest provides in-memory fakes of the browser capability
// surface. Fakes are not safe for concurrent use.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/kolangzi/naver-automation/internal/browser"
)

// Element is one addressable node of a fake document.
type Element struct {
	Hidden  bool
	Attrs   map[string]string
	Text    string
	OnClick func()
}

type textControl struct {
	sel     string
	text    string
	onClick func()
}

// Doc is a fake browser.Document keyed by exact selector strings.
type Doc struct {
	Elements map[string]*Element
	Markup   string
	// EvalFunc answers Evaluate calls. When nil, Evaluate leaves out untouched.
	EvalFunc func(fn string, out any) error
	// Missing makes every call fail with browser.ErrFrameNotFound.
	Missing bool

	controls []textControl

	Clicks    []string
	Fills     map[string]string
	Rich      map[string]string
	Evaluated []string
	Scrolls   int
}

// NewDoc returns an empty document.
func NewDoc() *Doc {
	return &Doc{
		Elements: map[string]*Element{},
		Fills:    map[string]string{},
		Rich:     map[string]string{},
	}
}

// Set adds or replaces the element answering sel.
func (d *Doc) Set(sel string, el *Element) *Doc {
	if el == nil {
		el = &Element{}
	}
	d.Elements[sel] = el
	return d
}

// Remove drops sel.
func (d *Doc) Remove(sel string) { delete(d.Elements, sel) }

// AddTextControl registers a control that ClickText(sel, text) resolves.
func (d *Doc) AddTextControl(sel, text string, onClick func()) *Doc {
	d.controls = append(d.controls, textControl{sel: sel, text: text, onClick: onClick})
	return d
}

// EvalJSON makes Evaluate decode v into its result.
func EvalJSON(v any) func(string, any) error {
	return func(_ string, out any) error {
		if out == nil {
			return nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, out)
	}
}

// Clicked reports whether sel was clicked.
func (d *Doc) Clicked(sel string) bool {
	for _, c := range d.Clicks {
		if c == sel {
			return true
		}
	}
	return false
}

func (d *Doc) element(sel string) (*Element, error) {
	if d.Missing {
		return nil, browser.ErrFrameNotFound
	}
	el, ok := d.Elements[sel]
	if !ok {
		return nil, fmt.Errorf("%s: %w", sel, browser.ErrNotFound)
	}
	return el, nil
}

func (d *Doc) Exists(_ context.Context, sel string) (bool, error) {
	if d.Missing {
		return false, browser.ErrFrameNotFound
	}
	_, ok := d.Elements[sel]
	return ok, nil
}

func (d *Doc) Visible(_ context.Context, sel string) (bool, error) {
	if d.Missing {
		return false, browser.ErrFrameNotFound
	}
	el, ok := d.Elements[sel]
	return ok && !el.Hidden, nil
}

func (d *Doc) Attribute(_ context.Context, sel, name string) (string, bool, error) {
	el, err := d.element(sel)
	if err != nil {
		return "", false, err
	}
	v, ok := el.Attrs[name]
	return v, ok, nil
}

func (d *Doc) Text(_ context.Context, sel string) (string, error) {
	el, err := d.element(sel)
	if err != nil {
		return "", err
	}
	return el.Text, nil
}

func (d *Doc) Click(_ context.Context, sel string) error {
	el, err := d.element(sel)
	if err != nil {
		return err
	}
	d.Clicks = append(d.Clicks, sel)
	if el.OnClick != nil {
		el.OnClick()
	}
	return nil
}

func (d *Doc) ClickText(_ context.Context, sel, text string) (bool, error) {
	if d.Missing {
		return false, browser.ErrFrameNotFound
	}
	for _, c := range d.controls {
		if c.sel == sel && strings.Contains(c.text, text) {
			d.Clicks = append(d.Clicks, sel+"|"+text)
			if c.onClick != nil {
				c.onClick()
			}
			return true, nil
		}
	}
	return false, nil
}

func (d *Doc) Fill(_ context.Context, sel, value string) error {
	if _, err := d.element(sel); err != nil {
		return err
	}
	d.Fills[sel] = value
	return nil
}

func (d *Doc) SetRichText(_ context.Context, sel, text string) error {
	if _, err := d.element(sel); err != nil {
		return err
	}
	d.Rich[sel] = text
	return nil
}

func (d *Doc) HTML(_ context.Context) (string, error) {
	if d.Missing {
		return "", browser.ErrFrameNotFound
	}
	return d.Markup, nil
}

func (d *Doc) Evaluate(_ context.Context, fn string, out any) error {
	if d.Missing {
		return browser.ErrFrameNotFound
	}
	d.Evaluated = append(d.Evaluated, fn)
	if d.EvalFunc == nil {
		return nil
	}
	return d.EvalFunc(fn, out)
}

func (d *Doc) ScrollToBottom(context.Context) error {
	if d.Missing {
		return browser.ErrFrameNotFound
	}
	d.Scrolls++
	return nil
}

// Popup is a fake browser.Popup.
type Popup struct {
	*Doc
	IsClosed   bool
	CloseCalls int
}

// NewPopup returns an open popup over an empty document.
func NewPopup() *Popup { return &Popup{Doc: NewDoc()} }

func (p *Popup) Closed(context.Context) bool { return p.IsClosed }

func (p *Popup) Close(context.Context) error {
	p.CloseCalls++
	p.IsClosed = true
	return nil
}

// Page is a fake browser.Page. Frames are resolved on every call, so tests
// may swap frame documents between steps to simulate reloads.
type Page struct {
	*Doc
	FrameList []browser.Frame
	Named     map[string]*Doc
	ByURL     map[string]*Doc

	// OnNavigate runs on every Navigate after the URL is recorded.
	OnNavigate func(url string) error
	// OnPopup decides the outcome of ExpectPopup after the trigger ran.
	// When nil every popup times out.
	OnPopup func() (browser.PopupOutcome, error)

	CookieJar  []*network.Cookie
	Visited    []string
	Typed      map[string]string
	CloseCalls int
}

// NewPage returns an empty page.
func NewPage() *Page {
	return &Page{
		Doc:   NewDoc(),
		Named: map[string]*Doc{},
		ByURL: map[string]*Doc{},
		Typed: map[string]string{},
	}
}

func (p *Page) Navigate(_ context.Context, url string) error {
	p.Visited = append(p.Visited, url)
	if p.OnNavigate != nil {
		return p.OnNavigate(url)
	}
	return nil
}

func (p *Page) Frames(context.Context) ([]browser.Frame, error) {
	return append([]browser.Frame(nil), p.FrameList...), nil
}

func (p *Page) FrameByName(name string) browser.Document {
	return &frameRef{resolve: func() *Doc { return p.Named[name] }}
}

func (p *Page) FrameByURL(substr string) browser.Document {
	return &frameRef{resolve: func() *Doc {
		for part, d := range p.ByURL {
			if strings.Contains(part, substr) {
				return d
			}
		}
		return nil
	}}
}

func (p *Page) TypeText(_ context.Context, sel, text string, delay func() time.Duration) error {
	if _, err := p.element(sel); err != nil {
		return err
	}
	if delay != nil {
		for range text {
			delay()
		}
	}
	p.Typed[sel] += text
	return nil
}

func (p *Page) ExpectPopup(ctx context.Context, _ time.Duration, trigger func(ctx context.Context) error) (browser.PopupOutcome, error) {
	if err := trigger(ctx); err != nil {
		return browser.PopupOutcome{}, err
	}
	if p.OnPopup == nil {
		return browser.PopupOutcome{Kind: browser.PopupTimedOut}, nil
	}
	return p.OnPopup()
}

func (p *Page) Cookies(context.Context) ([]*network.Cookie, error) {
	return p.CookieJar, nil
}

func (p *Page) SetCookies(_ context.Context, cookies []*network.Cookie) error {
	p.CookieJar = append(p.CookieJar, cookies...)
	return nil
}

func (p *Page) Close() error {
	p.CloseCalls++
	return nil
}

// Opened wraps popup as an opened outcome.
func Opened(popup *Popup) func() (browser.PopupOutcome, error) {
	return func() (browser.PopupOutcome, error) {
		return browser.PopupOutcome{Kind: browser.PopupOpened, Popup: popup}, nil
	}
}

// frameRef resolves its document lazily.
type frameRef struct {
	resolve func() *Doc
}

func (f *frameRef) doc() *Doc {
	if d := f.resolve(); d != nil {
		return d
	}
	return &Doc{Missing: true}
}

func (f *frameRef) Exists(ctx context.Context, sel string) (bool, error) {
	return f.doc().Exists(ctx, sel)
}

func (f *frameRef) Visible(ctx context.Context, sel string) (bool, error) {
	return f.doc().Visible(ctx, sel)
}

func (f *frameRef) Attribute(ctx context.Context, sel, name string) (string, bool, error) {
	return f.doc().Attribute(ctx, sel, name)
}

func (f *frameRef) Text(ctx context.Context, sel string) (string, error) {
	return f.doc().Text(ctx, sel)
}

func (f *frameRef) Click(ctx context.Context, sel string) error { return f.doc().Click(ctx, sel) }

func (f *frameRef) ClickText(ctx context.Context, sel, text string) (bool, error) {
	return f.doc().ClickText(ctx, sel, text)
}

func (f *frameRef) Fill(ctx context.Context, sel, value string) error {
	return f.doc().Fill(ctx, sel, value)
}

func (f *frameRef) SetRichText(ctx context.Context, sel, text string) error {
	return f.doc().SetRichText(ctx, sel, text)
}

func (f *frameRef) HTML(ctx context.Context) (string, error) { return f.doc().HTML(ctx) }

func (f *frameRef) Evaluate(ctx context.Context, fn string, out any) error {
	return f.doc().Evaluate(ctx, fn, out)
}

func (f *frameRef) ScrollToBottom(ctx context.Context) error { return f.doc().ScrollToBottom(ctx) }

var (
	_ browser.Page  = (*Page)(nil)
	_ browser.Popup = (*Popup)(nil)
)
