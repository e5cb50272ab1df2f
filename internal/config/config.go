package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

const appName = "naverbot"

// Text generation providers
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Buddy list sort orders
const (
	SortByUpdate = "update"
	SortByAdded  = "added"
)

// Config holds all application configuration
type Config struct {
	Version  int            `toml:"version"`
	Account  AccountConfig  `toml:"account"`
	Browser  BrowserConfig  `toml:"browser"`
	Auth     AuthConfig     `toml:"auth"`
	Pacing   PacingConfig   `toml:"pacing"`
	Quota    QuotaConfig    `toml:"quota"`
	Neighbor NeighborConfig `toml:"neighbor"`
	Buddy    BuddyConfig    `toml:"buddy"`
	Reply    ReplyConfig    `toml:"reply"`
	TextGen  TextGenConfig  `toml:"textgen"`
	Logger   LoggerConfig   `toml:"logger"`
	Schedule ScheduleConfig `toml:"schedule"`
	Email    EmailConfig    `toml:"email"`
	Debug    DebugConfig    `toml:"debug"`
}

type AccountConfig struct {
	Identity string `toml:"identity"`
	Password string `toml:"password"`
	// BlogID defaults to Identity when empty.
	BlogID string `toml:"blog_id"`
}

type BrowserConfig struct {
	Headless     bool     `toml:"headless"`
	ProfileRoot  string   `toml:"profile_root"`
	WindowWidth  int      `toml:"window_width"`
	WindowHeight int      `toml:"window_height"`
	Locale       string   `toml:"locale"`
	Timezone     string   `toml:"timezone"`
	UserAgents   []string `toml:"user_agents"`
	// OperationTimeoutSeconds bounds every single driver call.
	OperationTimeoutSeconds int `toml:"operation_timeout_seconds"`
}

type AuthConfig struct {
	ManualWaitSeconds   int `toml:"manual_wait_seconds"`
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
}

// Band is a uniform random interval in milliseconds.
type Band struct {
	MinMS int `toml:"min_ms"`
	MaxMS int `toml:"max_ms"`
}

// Min returns the lower bound as a duration.
func (b Band) Min() time.Duration { return time.Duration(b.MinMS) * time.Millisecond }

// Max returns the upper bound as a duration.
func (b Band) Max() time.Duration { return time.Duration(b.MaxMS) * time.Millisecond }

type PacingConfig struct {
	PageLoad        Band    `toml:"page_load"`
	Settle          Band    `toml:"settle"`
	BeforeClick     Band    `toml:"before_click"`
	AfterPopup      Band    `toml:"after_popup"`
	Short           Band    `toml:"short"`
	BetweenTargets  Band    `toml:"between_targets"`
	Keystroke       Band    `toml:"keystroke"`
	Reading         Band    `toml:"reading"`
	Idle            Band    `toml:"idle"`
	IdleProbability float64 `toml:"idle_probability"`
}

type QuotaConfig struct {
	RunCap int `toml:"run_cap"`
	// DailyCap is counted per process only; it does not survive a restart.
	DailyCap int `toml:"daily_cap"`
}

type NeighborConfig struct {
	Message             string `toml:"message"`
	CommentAfter        bool   `toml:"comment_after"`
	PopupTimeoutSeconds int    `toml:"popup_timeout_seconds"`
}

type BuddyConfig struct {
	Group string `toml:"group"`
	Sort  string `toml:"sort"`
	// CutoffDate is YYYY-MM-DD; empty means today.
	CutoffDate      string `toml:"cutoff_date"`
	CommentTemplate string `toml:"comment_template"`
}

type ReplyConfig struct {
	CutoffDate string `toml:"cutoff_date"`
}

type TextGenConfig struct {
	Provider           string `toml:"provider"`
	APIKey             string `toml:"api_key"`
	Model              string `toml:"model"`
	MinIntervalSeconds int    `toml:"min_interval_seconds"`
	MaxAttempts        int    `toml:"max_attempts"`
	BaseBackoffSeconds int    `toml:"base_backoff_seconds"`
	MaxChars           int    `toml:"max_chars"`
}

type LoggerConfig struct {
	Level       string `toml:"level"`
	Format      string `toml:"format"`
	ServiceName string `toml:"service_name"`
	LogFile     string `toml:"log_file"`
	MaxSize     int    `toml:"max_size"`
	MaxBackups  int    `toml:"max_backups"`
	MaxAge      int    `toml:"max_age"`
	Compress    bool   `toml:"compress"`
	AddSource   bool   `toml:"add_source"`
}

type ScheduleConfig struct {
	Timezone string        `toml:"timezone"`
	Jobs     []ScheduleJob `toml:"jobs"`
}

// ScheduleJob runs one campaign on a cron schedule.
type ScheduleJob struct {
	Name     string `toml:"name"`
	Campaign string `toml:"campaign"`
	Cron     string `toml:"cron"`
	// Seed is the post URL for the neighbor campaign.
	Seed string `toml:"seed"`
}

type EmailConfig struct {
	Enabled  bool   `toml:"enabled"`
	Provider string `toml:"provider"`
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
	SMTPUser string `toml:"smtp_user"`
	SMTPPass string `toml:"smtp_pass"`
	FromAddr string `toml:"from_address"`
	ToAddr   string `toml:"to_address"`
}

type DebugConfig struct {
	SaveArtifacts bool `toml:"save_artifacts"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Browser: BrowserConfig{
			Headless:     false,
			WindowWidth:  1280,
			WindowHeight: 900,
			Locale:       "ko-KR",
			Timezone:     "Asia/Seoul",
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
			},
			OperationTimeoutSeconds: 30,
		},
		Auth: AuthConfig{
			ManualWaitSeconds:   180,
			PollIntervalSeconds: 5,
		},
		Pacing: PacingConfig{
			PageLoad:        Band{2000, 4000},
			Settle:          Band{3000, 6000},
			BeforeClick:     Band{500, 1500},
			AfterPopup:      Band{1000, 2000},
			Short:           Band{800, 2000},
			BetweenTargets:  Band{1500, 3000},
			Keystroke:       Band{50, 150},
			Reading:         Band{3000, 12000},
			Idle:            Band{15000, 45000},
			IdleProbability: 0.1,
		},
		Quota: QuotaConfig{
			RunCap:   100,
			DailyCap: 100,
		},
		Neighbor: NeighborConfig{
			Message:             "블로그 글 잘 봤습니다. 서로이웃 신청드려요!",
			PopupTimeoutSeconds: 5,
		},
		Buddy: BuddyConfig{
			Group: "이웃1",
			Sort:  SortByUpdate,
		},
		TextGen: TextGenConfig{
			Provider:           ProviderGemini,
			Model:              "gemini-3-flash-preview",
			MinIntervalSeconds: 4,
			MaxAttempts:        3,
			BaseBackoffSeconds: 15,
			MaxChars:           50,
		},
		Logger: LoggerConfig{
			Level:       "info",
			Format:      "console",
			ServiceName: "naverbot",
			MaxSize:     100,
			MaxBackups:  5,
			MaxAge:      30,
			Compress:    true,
		},
		Schedule: ScheduleConfig{
			Timezone: "Asia/Seoul",
		},
		Email: EmailConfig{
			Provider: "smtp",
			SMTPPort: 587,
		},
		Debug: DebugConfig{
			SaveArtifacts: true,
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the directory for debug artifacts and run reports
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, appName), nil
}

// ProfileDir returns the persisted browser profile directory for an identity.
func (c *Config) ProfileDir(identity string) (string, error) {
	root := c.Browser.ProfileRoot
	if root == "" {
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		root = filepath.Join(dir, "profiles")
	}
	return filepath.Join(root, identity), nil
}

// BlogID returns the configured blog id, falling back to the identity.
func (c *Config) BlogID() string {
	if c.Account.BlogID != "" {
		return c.Account.BlogID
	}
	return c.Account.Identity
}

// Load reads config from disk
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads config from the given path on top of the defaults, so
// keys missing from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes config to the given path with owner-only permissions.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// Overlay applies environment and flag overrides bound in v. Only keys
// that are explicitly set win over the file values.
func (c *Config) Overlay(v *viper.Viper) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	str("account.identity", &c.Account.Identity)
	str("account.password", &c.Account.Password)
	str("account.blog_id", &c.Account.BlogID)
	str("textgen.provider", &c.TextGen.Provider)
	str("textgen.api_key", &c.TextGen.APIKey)
	str("textgen.model", &c.TextGen.Model)
	str("logger.level", &c.Logger.Level)
	str("neighbor.message", &c.Neighbor.Message)
	str("buddy.group", &c.Buddy.Group)
	str("buddy.sort", &c.Buddy.Sort)
	str("buddy.cutoff_date", &c.Buddy.CutoffDate)
	str("reply.cutoff_date", &c.Reply.CutoffDate)
	num("quota.run_cap", &c.Quota.RunCap)
	num("quota.daily_cap", &c.Quota.DailyCap)
	if v.IsSet("browser.headless") {
		c.Browser.Headless = v.GetBool("browser.headless")
	}
	if v.IsSet("neighbor.comment_after") {
		c.Neighbor.CommentAfter = v.GetBool("neighbor.comment_after")
	}
}

// NewViper returns a viper instance reading NAVERBOT_* environment variables
// with dotted keys mapped to underscores.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("NAVERBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"account.identity", "account.password", "textgen.api_key"} {
		_ = v.BindEnv(key)
	}
	return v
}

// Validate checks the configuration for values a run cannot work with.
func (c *Config) Validate() error {
	if c.Account.Identity == "" {
		return fmt.Errorf("account.identity is required")
	}
	if c.Quota.RunCap <= 0 {
		return fmt.Errorf("quota.run_cap must be a positive integer")
	}
	if c.Quota.DailyCap <= 0 {
		return fmt.Errorf("quota.daily_cap must be a positive integer")
	}
	if c.Auth.ManualWaitSeconds < 0 || c.Auth.PollIntervalSeconds <= 0 {
		return fmt.Errorf("auth.poll_interval_seconds must be positive and auth.manual_wait_seconds non-negative")
	}
	if c.Browser.OperationTimeoutSeconds <= 0 {
		return fmt.Errorf("browser.operation_timeout_seconds must be a positive integer")
	}
	if err := c.Pacing.validate(); err != nil {
		return err
	}
	switch c.TextGen.Provider {
	case "", ProviderGemini, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown text generation provider: %s", c.TextGen.Provider)
	}
	if c.TextGen.MaxAttempts <= 0 {
		return fmt.Errorf("textgen.max_attempts must be a positive integer")
	}
	if c.TextGen.MaxChars <= 0 {
		return fmt.Errorf("textgen.max_chars must be a positive integer")
	}
	switch c.Buddy.Sort {
	case SortByUpdate, SortByAdded:
	default:
		return fmt.Errorf("buddy.sort must be %q or %q", SortByUpdate, SortByAdded)
	}
	for _, d := range []string{c.Buddy.CutoffDate, c.Reply.CutoffDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("invalid cutoff date %q: expected YYYY-MM-DD", d)
		}
	}
	return c.Schedule.validate()
}

func (s ScheduleConfig) validate() error {
	seen := make(map[string]bool, len(s.Jobs))
	for _, j := range s.Jobs {
		if j.Name == "" || j.Cron == "" {
			return fmt.Errorf("schedule jobs need a name and a cron expression")
		}
		if seen[j.Name] {
			return fmt.Errorf("duplicate schedule job %q", j.Name)
		}
		seen[j.Name] = true
		switch j.Campaign {
		case "buddy", "reply":
		case "neighbor":
			if j.Seed == "" {
				return fmt.Errorf("schedule job %q: the neighbor campaign needs a seed post URL", j.Name)
			}
		default:
			return fmt.Errorf("schedule job %q: unknown campaign %q", j.Name, j.Campaign)
		}
	}
	return nil
}

func (p PacingConfig) validate() error {
	bands := map[string]Band{
		"page_load":       p.PageLoad,
		"settle":          p.Settle,
		"before_click":    p.BeforeClick,
		"after_popup":     p.AfterPopup,
		"short":           p.Short,
		"between_targets": p.BetweenTargets,
		"keystroke":       p.Keystroke,
		"reading":         p.Reading,
		"idle":            p.Idle,
	}
	for name, b := range bands {
		if b.MinMS < 0 || b.MaxMS < b.MinMS {
			return fmt.Errorf("pacing.%s must satisfy 0 <= min_ms <= max_ms", name)
		}
	}
	if p.IdleProbability < 0 || p.IdleProbability > 1 {
		return fmt.Errorf("pacing.idle_probability must be within [0, 1]")
	}
	return nil
}
