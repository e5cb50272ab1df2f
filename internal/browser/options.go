// Package browser provides the driver capability surface the automation
// core runs against, and its chromedp implementation with anti-bot-detection
// measures.
package browser

import (
	"math/rand/v2"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/kolangzi/naver-automation/internal/config"
)

// DefaultUserAgent is used when no user agent pool is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// LaunchOptions is everything needed to start one browser session.
type LaunchOptions struct {
	Headless bool
	// ProfileDir is the persisted user data directory for one identity.
	ProfileDir string
	UserAgent  string
	Width      int
	Height     int
	Locale     string
	Timezone   string
	// OpTimeout bounds each single driver call.
	OpTimeout time.Duration
}

// LaunchOptionsFrom builds launch options for identity, picking a user agent
// at random from the configured pool.
func LaunchOptionsFrom(cfg *config.Config, identity string) (LaunchOptions, error) {
	profile, err := cfg.ProfileDir(identity)
	if err != nil {
		return LaunchOptions{}, err
	}
	ua := DefaultUserAgent
	if pool := cfg.Browser.UserAgents; len(pool) > 0 {
		ua = pool[rand.IntN(len(pool))]
	}
	return LaunchOptions{
		Headless:   cfg.Browser.Headless,
		ProfileDir: profile,
		UserAgent:  ua,
		Width:      cfg.Browser.WindowWidth,
		Height:     cfg.Browser.WindowHeight,
		Locale:     cfg.Browser.Locale,
		Timezone:   cfg.Browser.Timezone,
		OpTimeout:  time.Duration(cfg.Browser.OperationTimeoutSeconds) * time.Second,
	}, nil
}

// Options returns chromedp allocator options with anti-bot-detection measures.
// All browser instances should use this to ensure consistent stealth configuration.
func Options(o LaunchOptions) []chromedp.ExecAllocatorOption {
	ua := o.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	width, height := o.Width, o.Height
	if width == 0 || height == 0 {
		width, height = 1280, 900
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),

		// Prevent navigator.webdriver = true detection
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-accelerator-table", true),

		chromedp.UserAgent(ua),
		chromedp.WindowSize(width, height),

		// Disable automation-related extensions and features
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	if o.Locale != "" {
		opts = append(opts, chromedp.Flag("lang", o.Locale))
	}
	if o.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(o.ProfileDir))
	}
	if o.Headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}

	return opts
}

// stealthScript runs before any page script on every new document.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
if (!window.chrome) { window.chrome = { runtime: {} }; }
Object.defineProperty(navigator, 'languages', { get: () => ['ko-KR', 'ko', 'en-US', 'en'] });
`
