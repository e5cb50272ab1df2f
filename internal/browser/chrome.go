package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// Launcher starts a browser session. It exists so sessions can be tested
// against a fake page.
type Launcher func(ctx context.Context, o LaunchOptions) (Page, error)

// ChromeLauncher launches a real Chrome instance.
func ChromeLauncher(ctx context.Context, o LaunchOptions) (Page, error) {
	p, err := Launch(ctx, o)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// tab is one chromedp target plus the per-call timeout.
type tab struct {
	ctx     context.Context
	timeout time.Duration
}

// scope derives a call context bounded by the operation timeout that is
// also cancelled when the caller's context is.
func (t *tab) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := t.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c, cancel := context.WithTimeout(t.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return c, func() {
		stop()
		cancel()
	}
}

// chromeDoc addresses the top document or a sub-frame of a tab.
type chromeDoc struct {
	t       *tab
	locator string
}

func (d chromeDoc) run(ctx context.Context, script string) (opResult, error) {
	var res opResult
	c, cancel := d.t.scope(ctx)
	defer cancel()
	if err := chromedp.Run(c, chromedp.Evaluate(script, &res)); err != nil {
		return res, err
	}
	if !res.Frame {
		return res, ErrFrameNotFound
	}
	return res, nil
}

func (d chromeDoc) Exists(ctx context.Context, sel string) (bool, error) {
	res, err := d.run(ctx, existsScript(d.locator, sel))
	return res.Found, err
}

func (d chromeDoc) Visible(ctx context.Context, sel string) (bool, error) {
	res, err := d.run(ctx, visibleScript(d.locator, sel))
	if err != nil || !res.Found {
		return false, err
	}
	var visible bool
	if err := json.Unmarshal(res.Value, &visible); err != nil {
		return false, err
	}
	return visible, nil
}

func (d chromeDoc) Attribute(ctx context.Context, sel, name string) (string, bool, error) {
	res, err := d.run(ctx, attributeScript(d.locator, sel, name))
	if err != nil {
		return "", false, err
	}
	if !res.Found {
		return "", false, fmt.Errorf("%s: %w", sel, ErrNotFound)
	}
	var value *string
	if err := json.Unmarshal(res.Value, &value); err != nil {
		return "", false, err
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

func (d chromeDoc) Text(ctx context.Context, sel string) (string, error) {
	res, err := d.run(ctx, textScript(d.locator, sel))
	if err != nil {
		return "", err
	}
	if !res.Found {
		return "", fmt.Errorf("%s: %w", sel, ErrNotFound)
	}
	var text string
	err = json.Unmarshal(res.Value, &text)
	return text, err
}

func (d chromeDoc) mutate(ctx context.Context, sel, script string) error {
	res, err := d.run(ctx, script)
	if err != nil {
		return err
	}
	if !res.Found {
		return fmt.Errorf("%s: %w", sel, ErrNotFound)
	}
	return nil
}

func (d chromeDoc) Click(ctx context.Context, sel string) error {
	return d.mutate(ctx, sel, clickScript(d.locator, sel))
}

func (d chromeDoc) ClickText(ctx context.Context, sel, text string) (bool, error) {
	res, err := d.run(ctx, clickTextScript(d.locator, sel, text))
	return res.Found, err
}

func (d chromeDoc) Fill(ctx context.Context, sel, value string) error {
	return d.mutate(ctx, sel, fillScript(d.locator, sel, value))
}

func (d chromeDoc) SetRichText(ctx context.Context, sel, text string) error {
	return d.mutate(ctx, sel, richTextScript(d.locator, sel, text))
}

func (d chromeDoc) HTML(ctx context.Context) (string, error) {
	res, err := d.run(ctx, htmlScript(d.locator))
	if err != nil {
		return "", err
	}
	var html string
	err = json.Unmarshal(res.Value, &html)
	return html, err
}

func (d chromeDoc) Evaluate(ctx context.Context, fn string, out any) error {
	res, err := d.run(ctx, evaluateScript(d.locator, fn))
	if err != nil || out == nil || len(res.Value) == 0 {
		return err
	}
	return json.Unmarshal(res.Value, out)
}

func (d chromeDoc) ScrollToBottom(ctx context.Context) error {
	_, err := d.run(ctx, scrollScript(d.locator))
	return err
}

// ChromePage is a Page backed by a chromedp tab.
type ChromePage struct {
	chromeDoc
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	once        sync.Once
}

// Launch starts Chrome with the stealth allocator options, applies locale
// and timezone overrides and registers the stealth script for every new
// document. The browser lives until Close or until ctx is done, so callers
// that want in-flight steps to finish on interrupt should pass a context
// that is not tied to the signal.
func Launch(ctx context.Context, o LaunchOptions) (*ChromePage, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, Options(o)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		if o.Timezone != "" {
			if err := emulation.SetTimezoneOverride(o.Timezone).Do(ctx); err != nil {
				return fmt.Errorf("timezone override: %w", err)
			}
		}
		if o.Locale != "" {
			if err := emulation.SetLocaleOverride().WithLocale(o.Locale).Do(ctx); err != nil {
				return fmt.Errorf("locale override: %w", err)
			}
		}
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	}))
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &ChromePage{
		chromeDoc:   chromeDoc{t: &tab{ctx: tabCtx, timeout: o.OpTimeout}, locator: topDocument},
		allocCancel: allocCancel,
		tabCancel:   tabCancel,
	}, nil
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	c, cancel := p.t.scope(ctx)
	defer cancel()
	if err := chromedp.Run(c, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *ChromePage) Frames(ctx context.Context) ([]Frame, error) {
	c, cancel := p.t.scope(ctx)
	defer cancel()

	var tree *page.FrameTree
	err := chromedp.Run(c, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		tree, err = page.GetFrameTree().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	var frames []Frame
	var walk func(nodes []*page.FrameTree)
	walk = func(nodes []*page.FrameTree) {
		for _, n := range nodes {
			if n.Frame != nil {
				frames = append(frames, Frame{Name: n.Frame.Name, URL: n.Frame.URL})
			}
			walk(n.ChildFrames)
		}
	}
	if tree != nil {
		walk(tree.ChildFrames)
	}
	return frames, nil
}

func (p *ChromePage) FrameByName(name string) Document {
	return chromeDoc{t: p.t, locator: frameLocator(name, "")}
}

func (p *ChromePage) FrameByURL(substr string) Document {
	return chromeDoc{t: p.t, locator: frameLocator("", substr)}
}

func (p *ChromePage) TypeText(ctx context.Context, sel, text string, delay func() time.Duration) error {
	c, cancel := p.t.scope(ctx)
	err := chromedp.Run(c, chromedp.Focus(sel, chromedp.ByQuery))
	cancel()
	if err != nil {
		return fmt.Errorf("focus %s: %w", sel, err)
	}

	for _, r := range text {
		c, cancel := p.t.scope(ctx)
		err := chromedp.Run(c, chromedp.KeyEvent(string(r)))
		cancel()
		if err != nil {
			return err
		}
		if delay == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay()):
		}
	}
	return nil
}

func (p *ChromePage) ExpectPopup(ctx context.Context, timeout time.Duration, trigger func(ctx context.Context) error) (PopupOutcome, error) {
	self := chromedp.FromContext(p.t.ctx)
	if self == nil || self.Target == nil {
		return PopupOutcome{}, fmt.Errorf("no active tab")
	}
	opener := self.Target.TargetID

	waitCtx, cancelWait := context.WithTimeout(p.t.ctx, timeout)
	defer cancelWait()
	stop := context.AfterFunc(ctx, cancelWait)
	defer stop()

	opened := chromedp.WaitNewTarget(waitCtx, func(info *target.Info) bool {
		return info.Type == "page" && info.OpenerID == opener
	})

	if err := trigger(ctx); err != nil {
		return PopupOutcome{}, err
	}

	select {
	case id, ok := <-opened:
		if !ok {
			return PopupOutcome{Kind: PopupTimedOut}, nil
		}
		return p.attach(ctx, id)
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return PopupOutcome{}, ctx.Err()
		}
		return PopupOutcome{Kind: PopupTimedOut}, nil
	}
}

func (p *ChromePage) attach(ctx context.Context, id target.ID) (PopupOutcome, error) {
	popupCtx, cancel := chromedp.NewContext(p.t.ctx, chromedp.WithTargetID(id))
	pt := &tab{ctx: popupCtx, timeout: p.t.timeout}

	c, cancelScope := pt.scope(ctx)
	defer cancelScope()
	if err := chromedp.Run(c, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		cancel()
		return PopupOutcome{}, fmt.Errorf("attach popup: %w", err)
	}

	return PopupOutcome{
		Kind: PopupOpened,
		Popup: &chromePopup{
			chromeDoc: chromeDoc{t: pt, locator: topDocument},
			id:        id,
			parent:    p.t,
			cancel:    cancel,
		},
	}, nil
}

func (p *ChromePage) Cookies(ctx context.Context) ([]*network.Cookie, error) {
	c, cancel := p.t.scope(ctx)
	defer cancel()

	var cookies []*network.Cookie
	err := chromedp.Run(c,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)
	return cookies, err
}

func (p *ChromePage) SetCookies(ctx context.Context, cookies []*network.Cookie) error {
	c, cancel := p.t.scope(ctx)
	defer cancel()

	return chromedp.Run(c,
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, ck := range cookies {
				err := network.SetCookie(ck.Name, ck.Value).
					WithDomain(ck.Domain).
					WithPath(ck.Path).
					WithSecure(ck.Secure).
					WithHTTPOnly(ck.HTTPOnly).
					WithSameSite(ck.SameSite).
					Do(ctx)
				if err != nil {
					return err
				}
			}
			return nil
		}),
	)
}

// Close shuts the browser down. It is safe to call more than once.
func (p *ChromePage) Close() error {
	p.once.Do(func() {
		p.tabCancel()
		p.allocCancel()
	})
	return nil
}

type chromePopup struct {
	chromeDoc
	id     target.ID
	parent *tab
	cancel context.CancelFunc
}

func (w *chromePopup) Closed(ctx context.Context) bool {
	c, cancel := w.parent.scope(ctx)
	defer cancel()
	infos, err := chromedp.Targets(c)
	if err != nil {
		return false
	}
	for _, info := range infos {
		if info.TargetID == w.id {
			return false
		}
	}
	return true
}

func (w *chromePopup) Close(ctx context.Context) error {
	defer w.cancel()
	if w.Closed(ctx) {
		return nil
	}
	c, cancel := w.t.scope(ctx)
	defer cancel()
	return chromedp.Run(c, page.Close())
}
