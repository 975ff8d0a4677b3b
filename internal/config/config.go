package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"cadprobe/internal/appdirs"
)

// Config represents the cadprobe configuration.
type Config struct {
	App     AppConfig     `toml:"app"`
	Browser BrowserConfig `toml:"browser"`
	Timing  TimingConfig  `toml:"timing"`
	Output  OutputConfig  `toml:"output"`
	Logging LoggingConfig `toml:"logging"`
}

// AppConfig describes the application under test and the placement written to it.
type AppConfig struct {
	URL      string    `toml:"url"`
	Hook     string    `toml:"hook"`
	ObjectID int       `toml:"object_id"`
	Position []float64 `toml:"position"`
	Rotation []float64 `toml:"rotation"`
}

// BrowserConfig contains browser launch settings.
type BrowserConfig struct {
	Driver           string   `toml:"driver"`
	Headless         bool     `toml:"headless"`
	Bin              string   `toml:"bin"`
	Stealth          bool     `toml:"stealth"`
	IgnoreCertErrors bool     `toml:"ignore_cert_errors"`
	Viewport         string   `toml:"viewport"`
	Timeout          Duration `toml:"timeout"`
}

// TimingConfig holds the fixed delays between scenario steps.
type TimingConfig struct {
	Sync             string   `toml:"sync"`
	AfterNavigate    Duration `toml:"after_navigate"`
	AfterMenu        Duration `toml:"after_menu"`
	AfterAdd         Duration `toml:"after_add"`
	AfterUpdate      Duration `toml:"after_update"`
	BeforeScreenshot Duration `toml:"before_screenshot"`
}

// OutputConfig contains artifact destinations.
type OutputConfig struct {
	Screenshot string `toml:"screenshot"`
	Report     string `toml:"report"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `toml:"level"`
}

const (
	SyncSleep = "sleep"
	SyncReady = "ready"
)

// Duration is a time.Duration that reads "500ms"-style strings from TOML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}

// Discover returns the config files to load. An explicit path always wins;
// otherwise the first existing candidate from appdirs is used.
func Discover(explicit string) []string {
	if strings.TrimSpace(explicit) != "" {
		return []string{explicit}
	}
	for _, path := range appdirs.ConfigCandidates() {
		if _, err := os.Stat(path); err == nil {
			return []string{path}
		}
	}
	return nil
}

// LoadFromFiles loads configuration with priority:
// defaults -> file1 -> file2 -> ... -> env.
func LoadFromFiles(paths ...string) (*Config, error) {
	cfg := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies CADPROBE_* environment variable overrides.
// A value that does not parse is an error rather than being ignored.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("CADPROBE_URL"); v != "" {
		cfg.App.URL = v
	}
	if v := os.Getenv("CADPROBE_HOOK"); v != "" {
		cfg.App.Hook = v
	}
	if v := os.Getenv("CADPROBE_OBJECT_ID"); v != "" {
		id, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("CADPROBE_OBJECT_ID %q is not an integer", v)
		}
		cfg.App.ObjectID = id
	}
	if v := os.Getenv("CADPROBE_DRIVER"); v != "" {
		cfg.Browser.Driver = v
	}
	if v := os.Getenv("CADPROBE_HEADLESS"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("CADPROBE_HEADLESS %q is not a boolean", v)
		}
		cfg.Browser.Headless = b
	}
	// CHROME_BIN is what container images usually export.
	if v := os.Getenv("CHROME_BIN"); v != "" {
		cfg.Browser.Bin = v
	}
	if v := os.Getenv("CADPROBE_BROWSER_BIN"); v != "" {
		cfg.Browser.Bin = v
	}
	if v := os.Getenv("CADPROBE_SCREENSHOT"); v != "" {
		cfg.Output.Screenshot = v
	}
	if v := os.Getenv("CADPROBE_REPORT"); v != "" {
		cfg.Output.Report = v
	}
	if v := os.Getenv("CADPROBE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// Validate reports the first inconsistency in cfg.
func (c *Config) Validate() error {
	u, err := url.Parse(c.App.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: app.url %q is not an absolute URL", c.App.URL)
	}
	if strings.TrimSpace(c.App.Hook) == "" {
		return fmt.Errorf("config: app.hook must not be empty")
	}
	if len(c.App.Position) != 3 {
		return fmt.Errorf("config: app.position needs 3 components, got %d", len(c.App.Position))
	}
	if len(c.App.Rotation) != 4 {
		return fmt.Errorf("config: app.rotation needs 4 components, got %d", len(c.App.Rotation))
	}
	switch c.Timing.Sync {
	case SyncSleep, SyncReady:
	default:
		return fmt.Errorf("config: timing.sync must be %q or %q, got %q", SyncSleep, SyncReady, c.Timing.Sync)
	}
	for name, d := range map[string]Duration{
		"after_navigate":    c.Timing.AfterNavigate,
		"after_menu":        c.Timing.AfterMenu,
		"after_add":         c.Timing.AfterAdd,
		"after_update":      c.Timing.AfterUpdate,
		"before_screenshot": c.Timing.BeforeScreenshot,
		"browser.timeout":   c.Browser.Timeout,
	} {
		if d < 0 {
			return fmt.Errorf("config: %s must not be negative", name)
		}
	}
	if strings.TrimSpace(c.Output.Screenshot) == "" {
		return fmt.Errorf("config: output.screenshot must not be empty")
	}
	if _, _, err := ParseViewport(c.Browser.Viewport); err != nil {
		return fmt.Errorf("config: browser.viewport: %w", err)
	}
	return nil
}

// ParseViewport parses "WxH". An empty string yields 0, 0 (library default).
func ParseViewport(raw string) (int, int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, 0, nil
	}
	parts := strings.SplitN(strings.ToLower(raw), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("viewport %q must look like 1280x720", raw)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("viewport %q has an invalid width", raw)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("viewport %q has an invalid height", raw)
	}
	return w, h, nil
}
