package auth

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/kolangzi/naver-automation/internal/scraper"
)

// sessionCookieTTL bounds a snapshot whose auth cookies carry no expiry,
// which is how Naver issues them for sessions without "stay signed in".
const sessionCookieTTL = 12 * time.Hour

// CookieStore handles storage of Naver session cookies for one identity
type CookieStore struct {
	path string
	now  func() time.Time
}

// StoredCookies represents the persisted cookie data
type StoredCookies struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// NewCookieStore creates a cookie store at the given path
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path, now: time.Now}
}

// CookieStorePath returns the snapshot path inside a profile directory
func CookieStorePath(profileDir string) string {
	return filepath.Join(profileDir, "session_cookies.json")
}

func isAuthCookie(name string) bool {
	return name == scraper.CookieAuth || name == scraper.CookieSession
}

// Save persists the Naver cookies among cookies to disk
func (cs *CookieStore) Save(cookies []*network.Cookie) error {
	if err := os.MkdirAll(filepath.Dir(cs.path), 0700); err != nil {
		return err
	}

	now := cs.now()
	var kept []*network.Cookie
	var earliestExpiry time.Time
	for _, c := range cookies {
		if !isNaverDomain(c.Domain) {
			continue
		}
		kept = append(kept, c)
		if !isAuthCookie(c.Name) {
			continue
		}
		exp := now.Add(sessionCookieTTL)
		if c.Expires > 0 {
			exp = time.Unix(int64(c.Expires), 0)
		}
		if earliestExpiry.IsZero() || exp.Before(earliestExpiry) {
			earliestExpiry = exp
		}
	}

	stored := StoredCookies{
		Cookies:    kept,
		CapturedAt: now,
		ExpiresAt:  earliestExpiry,
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(cs.path, data, 0600)
}

// Load retrieves cookies from disk
func (cs *CookieStore) Load() (*StoredCookies, error) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return nil, err
	}

	var stored StoredCookies
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}

	return &stored, nil
}

// IsValid checks if stored cookies are still valid
func (cs *CookieStore) IsValid() bool {
	stored, err := cs.Load()
	if err != nil {
		return false
	}

	if stored.ExpiresAt.IsZero() || cs.now().After(stored.ExpiresAt) {
		return false
	}

	hasAuth, hasSession := false, false
	for _, c := range stored.Cookies {
		if c.Value == "" {
			continue
		}
		switch c.Name {
		case scraper.CookieAuth:
			hasAuth = true
		case scraper.CookieSession:
			hasSession = true
		}
	}

	return hasAuth && hasSession
}

// Clear removes stored cookies. A missing snapshot is not an error.
func (cs *CookieStore) Clear() error {
	err := os.Remove(cs.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// SessionCookies returns the stored cookies when the snapshot is still valid
func (cs *CookieStore) SessionCookies() ([]*network.Cookie, error) {
	if !cs.IsValid() {
		return nil, errors.New("no valid session snapshot")
	}
	stored, err := cs.Load()
	if err != nil {
		return nil, err
	}
	return stored.Cookies, nil
}

func isNaverDomain(domain string) bool {
	d := strings.TrimPrefix(domain, ".")
	return d == "naver.com" || strings.HasSuffix(d, ".naver.com")
}
