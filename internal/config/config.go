package config

import (
	"fmt"
	"time"
)

type Config struct {
	Browser        BrowserConfig       `yaml:"browser"`
	Platform       PlatformConfig      `yaml:"platform"`
	Login          LoginConfig         `yaml:"login"`
	Backoff        BackoffConfig       `yaml:"backoff"`
	Search         SearchConfig        `yaml:"search"`
	Comments       CommentsConfig      `yaml:"comments"`
	Poster         PosterConfig        `yaml:"poster"`
	Normalize      NormalizeConfig     `yaml:"normalize"`
	Export         ExportConfig        `yaml:"export"`
	Storage        StorageConfig       `yaml:"storage"`
	SelectorsFile  string              `yaml:"selectors_file"`
	DictionaryFile string              `yaml:"dictionary_file"`
	Observability  ObservabilityConfig `yaml:"observability"`
}

type BrowserConfig struct {
	ChromePath          string `yaml:"chrome_path"`
	Headless            bool   `yaml:"headless"`
	ProfileDir          string `yaml:"profile_dir"`
	UserAgent           string `yaml:"user_agent"`
	ViewportWidth       int    `yaml:"viewport_width"`
	ViewportHeight      int    `yaml:"viewport_height"`
	NavigationTimeoutS  int    `yaml:"navigation_timeout_s"`
	WaitTimeoutMS       int    `yaml:"wait_timeout_ms"`
	ScrollSettleDelayMS int    `yaml:"scroll_settle_delay_ms"`
}

type PlatformConfig struct {
	BaseURL    string `yaml:"base_url"`
	SearchPath string `yaml:"search_path"`
}

type LoginConfig struct {
	TimeoutS       int      `yaml:"timeout_s"`
	PollIntervalMS int      `yaml:"poll_interval_ms"`
	ProgressEveryS int      `yaml:"progress_every_s"`
	Words          []string `yaml:"words"`
}

type BackoffConfig struct {
	MinMS     int `yaml:"min_ms"`
	MaxMS     int `yaml:"max_ms"`
	JitterPct int `yaml:"jitter_pct"`
}

type SearchConfig struct {
	Scrolls      int `yaml:"scrolls"`
	ScrollStepPX int `yaml:"scroll_step_px"`
	RoundDelayMS int `yaml:"round_delay_ms"`
	DefaultLimit int `yaml:"default_limit"`
	DeepLimit    int `yaml:"deep_limit"`
}

type CommentsConfig struct {
	Scrolls     int `yaml:"scrolls"`
	MaxComments int `yaml:"max_comments"`
}

type PosterConfig struct {
	ConfirmTimeoutMS int `yaml:"confirm_timeout_ms"`
}

type NormalizeConfig struct {
	TrimNBSP        bool `yaml:"trim_nbsp"`
	CollapseSpaces  bool `yaml:"collapse_spaces"`
	MaxPreviewChars int  `yaml:"max_preview_chars"`
}

type ExportConfig struct {
	DataDir string `yaml:"data_dir"`
}

type StorageConfig struct {
	Driver           string `yaml:"driver"`
	DSN              string `yaml:"dsn"`
	CommandTimeoutMS int    `yaml:"command_timeout_ms"`
}

type ObservabilityConfig struct {
	LogPath       string `yaml:"log_path"`
	LogLevel      string `yaml:"log_level"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	MetricsPath   string `yaml:"metrics_path"`
}

// Default возвращает конфиг, с которым сервис работает без файла.
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:            false,
			ProfileDir:          "browser_data",
			UserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			ViewportWidth:       1920,
			ViewportHeight:      1080,
			NavigationTimeoutS:  60,
			WaitTimeoutMS:       8000,
			ScrollSettleDelayMS: 1500,
		},
		Platform: PlatformConfig{
			BaseURL:    "https://www.xiaohongshu.com",
			SearchPath: "/search_result",
		},
		Login: LoginConfig{
			TimeoutS:       300,
			PollIntervalMS: 1000,
			ProgressEveryS: 30,
			Words:          []string{"登录"},
		},
		Backoff: BackoffConfig{
			MinMS:     100,
			MaxMS:     1000,
			JitterPct: 20,
		},
		Search: SearchConfig{
			Scrolls:      3,
			ScrollStepPX: 1000,
			RoundDelayMS: 2000,
			DefaultLimit: 10,
			DeepLimit:    5,
		},
		Comments: CommentsConfig{
			Scrolls:     3,
			MaxComments: 20,
		},
		Poster: PosterConfig{
			ConfirmTimeoutMS: 3000,
		},
		Normalize: NormalizeConfig{
			TrimNBSP:        true,
			CollapseSpaces:  true,
			MaxPreviewChars: 200,
		},
		Export: ExportConfig{
			DataDir: "data",
		},
		Storage: StorageConfig{
			CommandTimeoutMS: 5000,
		},
		Observability: ObservabilityConfig{
			LogPath:       "logs/xhs-scout.log",
			LogLevel:      "info",
			LogMaxSizeMB:  50,
			LogMaxBackups: 3,
		},
	}
}

// Validation
func (c *Config) Validate() error {
	if c.Browser.ProfileDir == "" {
		return fmt.Errorf("browser.profile_dir is required")
	}
	if c.Browser.NavigationTimeoutS <= 0 {
		return fmt.Errorf("browser.navigation_timeout_s must be > 0")
	}
	if c.Browser.WaitTimeoutMS <= 0 {
		return fmt.Errorf("browser.wait_timeout_ms must be > 0")
	}
	if c.Browser.ScrollSettleDelayMS < 0 {
		return fmt.Errorf("browser.scroll_settle_delay_ms must be >= 0")
	}
	if c.Platform.BaseURL == "" {
		return fmt.Errorf("platform.base_url is required")
	}
	if c.Platform.SearchPath == "" {
		return fmt.Errorf("platform.search_path is required")
	}
	if c.Login.TimeoutS <= 0 {
		return fmt.Errorf("login.timeout_s must be > 0")
	}
	if c.Login.PollIntervalMS <= 0 {
		return fmt.Errorf("login.poll_interval_ms must be > 0")
	}
	if c.Login.ProgressEveryS <= 0 {
		return fmt.Errorf("login.progress_every_s must be > 0")
	}
	if len(c.Login.Words) == 0 {
		return fmt.Errorf("login.words must not be empty")
	}
	if c.Backoff.MinMS <= 0 {
		return fmt.Errorf("backoff.min_ms must be > 0")
	}
	if c.Backoff.MaxMS <= 0 {
		return fmt.Errorf("backoff.max_ms must be > 0")
	}
	if c.Backoff.MinMS > c.Backoff.MaxMS {
		return fmt.Errorf("backoff.min_ms must be <= backoff.max_ms")
	}
	if c.Backoff.JitterPct < 0 || c.Backoff.JitterPct > 100 {
		return fmt.Errorf("backoff.jitter_pct must be between 0 and 100")
	}
	if c.Search.Scrolls < 0 || c.Search.Scrolls > 10 {
		return fmt.Errorf("search.scrolls must be between 0 and 10")
	}
	if c.Search.ScrollStepPX <= 0 {
		return fmt.Errorf("search.scroll_step_px must be > 0")
	}
	if c.Search.RoundDelayMS < 0 {
		return fmt.Errorf("search.round_delay_ms must be >= 0")
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.default_limit must be > 0")
	}
	if c.Search.DeepLimit <= 0 {
		return fmt.Errorf("search.deep_limit must be > 0")
	}
	if c.Comments.Scrolls < 0 || c.Comments.Scrolls > 10 {
		return fmt.Errorf("comments.scrolls must be between 0 and 10")
	}
	if c.Comments.MaxComments <= 0 {
		return fmt.Errorf("comments.max_comments must be > 0")
	}
	if c.Poster.ConfirmTimeoutMS <= 0 {
		return fmt.Errorf("poster.confirm_timeout_ms must be > 0")
	}
	if c.Normalize.MaxPreviewChars <= 0 {
		return fmt.Errorf("normalize.max_preview_chars must be > 0")
	}
	if c.Export.DataDir == "" {
		return fmt.Errorf("export.data_dir is required")
	}
	switch c.Storage.Driver {
	case "":
	case "sqlite", "mssql":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required when storage.driver is set")
		}
		if c.Storage.CommandTimeoutMS <= 0 {
			return fmt.Errorf("storage.command_timeout_ms must be > 0")
		}
	default:
		return fmt.Errorf("storage.driver must be '', 'sqlite' or 'mssql'")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("observability.log_level is required")
	}
	return nil
}

// Getters
func (c *Config) GetNavigationTimeout() time.Duration {
	return time.Duration(c.Browser.NavigationTimeoutS) * time.Second
}

func (c *Config) GetWaitTimeout() time.Duration {
	return time.Duration(c.Browser.WaitTimeoutMS) * time.Millisecond
}

func (c *Config) GetScrollSettleDelay() time.Duration {
	return time.Duration(c.Browser.ScrollSettleDelayMS) * time.Millisecond
}

func (c *Config) GetLoginTimeout() time.Duration {
	return time.Duration(c.Login.TimeoutS) * time.Second
}

func (c *Config) GetLoginPollInterval() time.Duration {
	return time.Duration(c.Login.PollIntervalMS) * time.Millisecond
}

func (c *Config) GetLoginProgressEvery() time.Duration {
	return time.Duration(c.Login.ProgressEveryS) * time.Second
}

func (c *Config) GetBackoffMin() time.Duration {
	return time.Duration(c.Backoff.MinMS) * time.Millisecond
}

func (c *Config) GetBackoffMax() time.Duration {
	return time.Duration(c.Backoff.MaxMS) * time.Millisecond
}

func (c *Config) GetRoundDelay() time.Duration {
	return time.Duration(c.Search.RoundDelayMS) * time.Millisecond
}

func (c *Config) GetConfirmTimeout() time.Duration {
	return time.Duration(c.Poster.ConfirmTimeoutMS) * time.Millisecond
}

func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Storage.CommandTimeoutMS) * time.Millisecond
}
