package browser

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
)

var (
	// ErrNotFound is returned when a selector matches no element.
	ErrNotFound = errors.New("element not found")
	// ErrFrameNotFound is returned when a sub-frame cannot be resolved.
	ErrFrameNotFound = errors.New("frame not found")
)

// Frame describes one sub-frame of the current page.
type Frame struct {
	Name string
	URL  string
}

// Document is a scripted view over one browsing surface: the top page, a
// sub-frame or a popup. Selectors are CSS selectors and always address the
// first match.
type Document interface {
	Exists(ctx context.Context, sel string) (bool, error)
	// Visible reports whether the first match is rendered, not merely present.
	Visible(ctx context.Context, sel string) (bool, error)
	// Attribute returns the attribute value and whether it is set.
	Attribute(ctx context.Context, sel, name string) (string, bool, error)
	Text(ctx context.Context, sel string) (string, error)
	Click(ctx context.Context, sel string) error
	// ClickText clicks the first match whose text contains text.
	ClickText(ctx context.Context, sel, text string) (bool, error)
	// Fill sets the value of a plain form field.
	Fill(ctx context.Context, sel, value string) error
	// SetRichText writes into a contenteditable element and dispatches
	// input, change and keyup so the page's own validation accepts it.
	SetRichText(ctx context.Context, sel, text string) error
	// HTML returns the outer HTML of the document element.
	HTML(ctx context.Context) (string, error)
	// Evaluate calls fn, a JavaScript function expression taking the
	// document, and decodes its JSON result into res.
	Evaluate(ctx context.Context, fn string, res any) error
	ScrollToBottom(ctx context.Context) error
}

// PopupKind tags the outcome of racing a trigger against a new window.
type PopupKind int

const (
	PopupTimedOut PopupKind = iota
	PopupOpened
)

// PopupOutcome is either {Opened, Popup} or {TimedOut, nil}.
type PopupOutcome struct {
	Kind  PopupKind
	Popup Popup
}

// Popup is a detached browsing context opened by the page.
type Popup interface {
	Document
	// Closed reports whether the popup closed itself.
	Closed(ctx context.Context) bool
	Close(ctx context.Context) error
}

// Page is the single tab a session drives.
type Page interface {
	Document
	Navigate(ctx context.Context, url string) error
	Frames(ctx context.Context) ([]Frame, error)
	// FrameByName and FrameByURL return documents that resolve the frame
	// on every call, so they stay valid across reloads.
	FrameByName(name string) Document
	FrameByURL(substr string) Document
	// TypeText focuses sel and types text one key at a time.
	TypeText(ctx context.Context, sel, text string, delay func() time.Duration) error
	// ExpectPopup runs trigger and waits up to timeout for it to open a new
	// window.
	ExpectPopup(ctx context.Context, timeout time.Duration, trigger func(ctx context.Context) error) (PopupOutcome, error)
	Cookies(ctx context.Context) ([]*network.Cookie, error)
	SetCookies(ctx context.Context, cookies []*network.Cookie) error
	Close() error
}

// WaitFor polls until sel exists or timeout elapses. A timeout is reported
// as false, not as an error.
func WaitFor(ctx context.Context, d Document, sel string, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		ok, err := d.Exists(ctx, sel)
		if err == nil && ok {
			return true, nil
		}
		if err != nil && !errors.Is(err, ErrFrameNotFound) {
			return false, err
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

// FindFrame returns the first frame whose URL contains substr.
func FindFrame(frames []Frame, substr string) (Frame, bool) {
	for _, f := range frames {
		if substr != "" && strings.Contains(f.URL, substr) {
			return f, true
		}
	}
	return Frame{}, false
}
