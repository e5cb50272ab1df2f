package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolangzi/naver-automation/internal/browser"
	"github.com/kolangzi/naver-automation/internal/browser/browsertest"
	"github.com/kolangzi/naver-automation/internal/config"
	"github.com/kolangzi/naver-automation/internal/governor"
	"github.com/kolangzi/naver-automation/internal/scraper"
	"github.com/kolangzi/naver-automation/internal/types"
)

func noSleep(context.Context, time.Duration) error { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Account.Identity = "jane_h"
	cfg.Browser.ProfileRoot = t.TempDir()
	cfg.Auth.ManualWaitSeconds = 15
	cfg.Auth.PollIntervalSeconds = 5
	return cfg
}

func sessionCookies() []*network.Cookie {
	return []*network.Cookie{
		{Name: scraper.CookieAuth, Value: "aut", Domain: ".naver.com", Path: "/"},
		{Name: scraper.CookieSession, Value: "ses", Domain: ".naver.com", Path: "/"},
		{Name: "tracking", Value: "x", Domain: ".example.com", Path: "/"},
	}
}

func newTestManager(t *testing.T, cfg *config.Config, page *browsertest.Page) *Manager {
	t.Helper()
	launch := func(context.Context, browser.LaunchOptions) (browser.Page, error) { return page, nil }
	m := NewManager(cfg,
		WithLauncher(launch),
		WithSleeper(noSleep),
		WithPacer(governor.NewPacer(cfg.Pacing, governor.WithSleeper(noSleep))),
	)
	require.NoError(t, m.Open(context.Background()))
	return m
}

func TestVerifyAuthenticated(t *testing.T) {
	ctx := context.Background()

	t.Run("login link present means not authenticated", func(t *testing.T) {
		page := browsertest.NewPage()
		page.Set(scraper.LoginLink, nil)
		m := newTestManager(t, testConfig(t), page)

		probe, err := m.VerifyAuthenticated(ctx)
		require.NoError(t, err)
		assert.Equal(t, types.ProbeFalse, probe)
		assert.Equal(t, []string{scraper.LandingURL}, page.Visited)
	})

	t.Run("login link absent means authenticated", func(t *testing.T) {
		m := newTestManager(t, testConfig(t), browsertest.NewPage())
		probe, err := m.VerifyAuthenticated(ctx)
		require.NoError(t, err)
		assert.Equal(t, types.ProbeTrue, probe)
	})

	t.Run("navigation errors propagate", func(t *testing.T) {
		page := browsertest.NewPage()
		page.OnNavigate = func(string) error { return errors.New("net::ERR_INTERNET_DISCONNECTED") }
		m := newTestManager(t, testConfig(t), page)

		probe, err := m.VerifyAuthenticated(ctx)
		assert.Error(t, err)
		assert.Equal(t, types.ProbeUnknown, probe)
	})
}

func TestEnsureAuthenticatedWithPassword(t *testing.T) {
	cfg := testConfig(t)
	cfg.Account.Password = "secret"

	page := browsertest.NewPage()
	page.CookieJar = sessionCookies()
	page.Set(scraper.LoginLink, nil)
	page.Set(scraper.LoginID, nil)
	page.Set(scraper.LoginPassword, nil)
	page.Set(scraper.LoginSubmit, &browsertest.Element{OnClick: func() { page.Remove(scraper.LoginLink) }})

	m := newTestManager(t, cfg, page)
	require.NoError(t, m.EnsureAuthenticated(context.Background()))

	assert.Equal(t, "jane_h", page.Typed[scraper.LoginID])
	assert.Equal(t, "secret", page.Typed[scraper.LoginPassword])
	assert.True(t, page.Clicked(scraper.LoginSubmit))
	assert.True(t, m.IsAuthenticated(), "cookie snapshot is written after login")
}

func TestEnsureAuthenticatedFallsBackToManualWindow(t *testing.T) {
	ctx := context.Background()

	t.Run("manual login within the window", func(t *testing.T) {
		page := browsertest.NewPage()
		page.Set(scraper.LoginLink, nil)
		navigations := 0
		page.OnNavigate = func(string) error {
			navigations++
			if navigations == 3 {
				page.Remove(scraper.LoginLink)
			}
			return nil
		}
		m := newTestManager(t, testConfig(t), page)
		require.NoError(t, m.EnsureAuthenticated(ctx))
	})

	t.Run("window expiry is fatal", func(t *testing.T) {
		page := browsertest.NewPage()
		page.Set(scraper.LoginLink, nil)
		m := newTestManager(t, testConfig(t), page)

		err := m.EnsureAuthenticated(ctx)
		assert.ErrorIs(t, err, ErrAuthWindowExpired)
		// one initial probe plus 15s/5s polls
		assert.Len(t, page.Visited, 4)
	})

	t.Run("stop ends the wait at the next poll", func(t *testing.T) {
		page := browsertest.NewPage()
		page.Set(scraper.LoginLink, nil)
		cfg := testConfig(t)
		cfg.Auth.ManualWaitSeconds = 180

		stopped := false
		polls := 0
		sleep := func(context.Context, time.Duration) error {
			polls++
			stopped = true
			return nil
		}
		launch := func(context.Context, browser.LaunchOptions) (browser.Page, error) { return page, nil }
		m := NewManager(cfg,
			WithLauncher(launch),
			WithSleeper(sleep),
			WithStopped(func() bool { return stopped }),
			WithPacer(governor.NewPacer(cfg.Pacing, governor.WithSleeper(noSleep))),
		)
		require.NoError(t, m.Open(ctx))

		err := m.EnsureAuthenticated(ctx)
		assert.ErrorIs(t, err, ErrStopped)
		assert.Equal(t, 1, polls)
		assert.Len(t, page.Visited, 1, "no probe after the stop")
	})
}

func TestAuthenticateDoesNotRetry(t *testing.T) {
	page := browsertest.NewPage()
	page.Set(scraper.LoginLink, nil)
	page.Set(scraper.LoginID, nil)
	page.Set(scraper.LoginPassword, nil)
	page.Set(scraper.LoginSubmit, nil)
	m := newTestManager(t, testConfig(t), page)

	ok, err := m.Authenticate(context.Background(), "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, countOf(page.Clicks, scraper.LoginSubmit))
}

func TestOpenRestoresSnapshot(t *testing.T) {
	cfg := testConfig(t)
	dir, err := cfg.ProfileDir(cfg.Account.Identity)
	require.NoError(t, err)
	require.NoError(t, NewCookieStore(CookieStorePath(dir)).Save(sessionCookies()))

	page := browsertest.NewPage()
	newTestManager(t, cfg, page)

	require.Len(t, page.CookieJar, 2)
	assert.Equal(t, scraper.CookieAuth, page.CookieJar[0].Name)
}

func TestCloseIsIdempotent(t *testing.T) {
	page := browsertest.NewPage()
	m := newTestManager(t, testConfig(t), page)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, 1, page.CloseCalls)
}

func TestCookieStore(t *testing.T) {
	path := CookieStorePath(t.TempDir())
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("both auth cookies make a valid snapshot", func(t *testing.T) {
		cs := NewCookieStore(path)
		cs.now = func() time.Time { return now }
		require.NoError(t, cs.Save(sessionCookies()))
		assert.True(t, cs.IsValid())

		stored, err := cs.Load()
		require.NoError(t, err)
		assert.Len(t, stored.Cookies, 2, "non-naver cookies are dropped")
		assert.Equal(t, now.Add(sessionCookieTTL), stored.ExpiresAt)
	})

	t.Run("expired snapshot is invalid", func(t *testing.T) {
		cs := NewCookieStore(path)
		cs.now = func() time.Time { return now }
		require.NoError(t, cs.Save(sessionCookies()))

		cs.now = func() time.Time { return now.Add(sessionCookieTTL + time.Minute) }
		assert.False(t, cs.IsValid())
	})

	t.Run("explicit expiry wins over the ttl", func(t *testing.T) {
		cs := NewCookieStore(path)
		cs.now = func() time.Time { return now }
		cookies := sessionCookies()
		cookies[0].Expires = float64(now.Add(time.Hour).Unix())
		require.NoError(t, cs.Save(cookies))

		stored, err := cs.Load()
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Hour).Unix(), stored.ExpiresAt.Unix())
	})

	t.Run("missing session cookie is invalid", func(t *testing.T) {
		cs := NewCookieStore(path)
		require.NoError(t, cs.Save(sessionCookies()[:1]))
		assert.False(t, cs.IsValid())
	})

	t.Run("clear tolerates a missing file", func(t *testing.T) {
		cs := NewCookieStore(path)
		require.NoError(t, cs.Clear())
		require.NoError(t, cs.Clear())
		assert.False(t, cs.IsValid())
	})
}

func countOf(list []string, s string) int {
	n := 0
	for _, v := range list {
		if v == s {
			n++
		}
	}
	return n
}
