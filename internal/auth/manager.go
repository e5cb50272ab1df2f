// Package auth owns the browser lifecycle and the Naver login state of one
// identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"go.uber.org/zap"

	"github.com/kolangzi/naver-automation/internal/browser"
	"github.com/kolangzi/naver-automation/internal/config"
	"github.com/kolangzi/naver-automation/internal/governor"
	"github.com/kolangzi/naver-automation/internal/scraper"
	"github.com/kolangzi/naver-automation/internal/types"
)

// ErrAuthWindowExpired is returned when the manual login window elapses
// without the session becoming authenticated.
var ErrAuthWindowExpired = errors.New("manual login window expired")

// ErrStopped is returned when a stop is requested during the manual wait.
var ErrStopped = errors.New("stopped while waiting for login")

// interactiveLoginTimeout bounds the headful Login flow.
const interactiveLoginTimeout = 5 * time.Minute

// Manager handles the browser session of one Naver identity. A Manager is
// single-use: Open once, Close once.
type Manager struct {
	cfg      *config.Config
	identity string
	launch   browser.Launcher
	pacer    *governor.Pacer
	sleep    governor.Sleeper
	stopped  func() bool
	logger   *zap.Logger

	page      browser.Page
	closeOnce sync.Once
	closeErr  error
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLauncher replaces the Chrome launcher.
func WithLauncher(l browser.Launcher) Option { return func(m *Manager) { m.launch = l } }

// WithPacer sets the pacer used for page loads and keystrokes.
func WithPacer(p *governor.Pacer) Option { return func(m *Manager) { m.pacer = p } }

// WithSleeper replaces the sleeper used by the manual login poll.
func WithSleeper(s governor.Sleeper) Option { return func(m *Manager) { m.sleep = s } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.logger = l } }

// WithStopped sets the cooperative stop flag checked by the manual login poll.
func WithStopped(f func() bool) Option { return func(m *Manager) { m.stopped = f } }

// NewManager creates a new session manager for the configured identity
func NewManager(cfg *config.Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		identity: cfg.Account.Identity,
		launch:   browser.ChromeLauncher,
		sleep:    governor.Sleep,
		stopped:  func() bool { return false },
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.pacer == nil {
		m.pacer = governor.NewPacer(cfg.Pacing, governor.WithSleeper(m.sleep))
	}
	return m
}

// Identity returns the identity this manager authenticates.
func (m *Manager) Identity() string { return m.identity }

// Page returns the session's page. It is nil before Open.
func (m *Manager) Page() browser.Page { return m.page }

func (m *Manager) cookieStore() (*CookieStore, error) {
	dir, err := m.cfg.ProfileDir(m.identity)
	if err != nil {
		return nil, err
	}
	return NewCookieStore(CookieStorePath(dir)), nil
}

// Open launches the browser on the identity's persisted profile and
// restores a still-valid cookie snapshot before the first navigation.
func (m *Manager) Open(ctx context.Context) error {
	if m.page != nil {
		return errors.New("session already open")
	}
	opts, err := browser.LaunchOptionsFrom(m.cfg, m.identity)
	if err != nil {
		return fmt.Errorf("failed to resolve launch options: %w", err)
	}
	if err := os.MkdirAll(opts.ProfileDir, 0700); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	page, err := m.launch(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	m.page = page
	m.logger.Info("browser started", zap.String("identity", m.identity), zap.Bool("headless", opts.Headless))

	if store, err := m.cookieStore(); err == nil && store.IsValid() {
		cookies, err := store.SessionCookies()
		if err == nil {
			err = page.SetCookies(ctx, cookies)
		}
		if err != nil {
			m.logger.Warn("failed to restore session cookies", zap.Error(err))
		} else {
			m.logger.Debug("restored session cookies", zap.Int("count", len(cookies)))
		}
	}
	return nil
}

// VerifyAuthenticated navigates to the landing page and probes for the
// login link. A navigation error is returned; a failed probe is Unknown.
func (m *Manager) VerifyAuthenticated(ctx context.Context) (types.Probe, error) {
	if m.page == nil {
		return types.ProbeUnknown, errors.New("session not open")
	}
	if err := m.page.Navigate(ctx, scraper.LandingURL); err != nil {
		return types.ProbeUnknown, err
	}
	if err := m.pacer.PageLoad(ctx); err != nil {
		return types.ProbeUnknown, err
	}
	present, err := m.page.Exists(ctx, scraper.LoginLink)
	if err != nil {
		m.logger.Debug("login probe failed", zap.Error(err))
		return types.ProbeUnknown, nil
	}
	return types.ProbeOf(!present), nil
}

// Authenticate submits the login form once and re-verifies. It never
// retries; the caller falls back to AwaitManual.
func (m *Manager) Authenticate(ctx context.Context, password string) (bool, error) {
	m.logger.Info("attempting login")
	if err := m.page.Navigate(ctx, scraper.LoginURL); err != nil {
		return false, err
	}
	if err := m.pacer.PageLoad(ctx); err != nil {
		return false, err
	}

	steps := []struct {
		sel, text string
	}{
		{scraper.LoginID, m.identity},
		{scraper.LoginPassword, password},
	}
	for _, s := range steps {
		if err := m.pacer.BeforeClick(ctx); err != nil {
			return false, err
		}
		if err := m.page.TypeText(ctx, s.sel, s.text, m.pacer.Keystroke); err != nil {
			m.logger.Warn("login form not usable", zap.String("field", s.sel), zap.Error(err))
			return false, nil
		}
	}
	if err := m.pacer.BeforeClick(ctx); err != nil {
		return false, err
	}
	if err := m.page.Click(ctx, scraper.LoginSubmit); err != nil {
		m.logger.Warn("login button not found", zap.Error(err))
		return false, nil
	}
	if err := m.pacer.PageLoad(ctx); err != nil {
		return false, err
	}

	probe, err := m.VerifyAuthenticated(ctx)
	if err != nil {
		return false, err
	}
	if probe != types.ProbeTrue {
		m.logger.Warn("login not confirmed, a captcha or second factor may be required", zap.Stringer("probe", probe))
		return false, nil
	}
	m.logger.Info("login succeeded")
	return true, nil
}

// AwaitManual polls VerifyAuthenticated every interval until the session is
// authenticated, window elapses or a stop is requested.
func (m *Manager) AwaitManual(ctx context.Context, window, interval time.Duration) error {
	m.logger.Info("waiting for manual login", zap.Duration("window", window))
	if interval <= 0 {
		interval = time.Second
	}
	var waited time.Duration
	for waited < window {
		if err := m.sleep(ctx, interval); err != nil {
			return err
		}
		if m.stopped() {
			m.logger.Info("stop requested, leaving the manual login wait")
			return ErrStopped
		}
		waited += interval

		probe, err := m.VerifyAuthenticated(ctx)
		if err != nil {
			m.logger.Debug("manual login poll failed", zap.Error(err))
			continue
		}
		if probe == types.ProbeTrue {
			m.logger.Info("manual login detected")
			return nil
		}
	}
	return ErrAuthWindowExpired
}

// EnsureAuthenticated verifies the session, then tries the configured
// password, then waits for a manual login.
func (m *Manager) EnsureAuthenticated(ctx context.Context) error {
	probe, err := m.VerifyAuthenticated(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify login: %w", err)
	}
	if probe == types.ProbeTrue {
		m.logger.Info("already logged in")
		m.snapshot(ctx)
		return nil
	}

	if pw := m.cfg.Account.Password; pw != "" {
		ok, err := m.Authenticate(ctx, pw)
		if err != nil {
			return fmt.Errorf("failed to log in: %w", err)
		}
		if ok {
			m.snapshot(ctx)
			return nil
		}
	}

	window := time.Duration(m.cfg.Auth.ManualWaitSeconds) * time.Second
	interval := time.Duration(m.cfg.Auth.PollIntervalSeconds) * time.Second
	if err := m.AwaitManual(ctx, window, interval); err != nil {
		return err
	}
	m.snapshot(ctx)
	return nil
}

// snapshot writes the current session cookies. Failures are logged only.
func (m *Manager) snapshot(ctx context.Context) {
	store, err := m.cookieStore()
	if err != nil {
		return
	}
	cookies, err := m.page.Cookies(ctx)
	if err == nil {
		err = store.Save(cookies)
	}
	if err != nil {
		m.logger.Warn("failed to save session cookies", zap.Error(err))
	}
}

// Close releases the browser. It is safe to call on every path and more
// than once.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		if m.page == nil {
			return
		}
		m.closeErr = m.page.Close()
		m.logger.Info("browser closed")
	})
	return m.closeErr
}

// IsAuthenticated reports whether a valid session snapshot is stored,
// without launching a browser.
func (m *Manager) IsAuthenticated() bool {
	store, err := m.cookieStore()
	if err != nil {
		return false
	}
	return store.IsValid()
}

// Login opens a visible browser on the login page and waits for the user
// to sign in, then stores the session cookies.
func (m *Manager) Login(ctx context.Context) error {
	opts, err := browser.LaunchOptionsFrom(m.cfg, m.identity)
	if err != nil {
		return err
	}
	opts.Headless = false
	if err := os.MkdirAll(opts.ProfileDir, 0700); err != nil {
		return err
	}

	page, err := m.launch(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	defer page.Close()

	if err := page.Navigate(ctx, scraper.LoginURL); err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}

	cookies, err := m.waitForLogin(ctx, page)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	store, err := m.cookieStore()
	if err != nil {
		return err
	}
	if err := store.Save(cookies); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	return nil
}

// waitForLogin polls until the auth cookie shows up
func (m *Manager) waitForLogin(ctx context.Context, page browser.Page) ([]*network.Cookie, error) {
	deadline := time.Now().Add(interactiveLoginTimeout)
	interval := time.Duration(m.cfg.Auth.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}

	for time.Now().Before(deadline) {
		if err := m.sleep(ctx, interval); err != nil {
			return nil, err
		}
		cookies, err := page.Cookies(ctx)
		if err != nil {
			continue
		}
		for _, c := range cookies {
			if c.Name == scraper.CookieAuth && c.Value != "" {
				return cookies, nil
			}
		}
	}
	return nil, fmt.Errorf("login timeout exceeded")
}

// Logout clears the stored session snapshot
func (m *Manager) Logout() error {
	store, err := m.cookieStore()
	if err != nil {
		return err
	}
	return store.Clear()
}
