package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cadprobe.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultsMatchReproduction(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.App.URL != "http://localhost:5173" {
		t.Errorf("url = %s", cfg.App.URL)
	}
	if cfg.App.ObjectID != 1 {
		t.Errorf("object id = %d", cfg.App.ObjectID)
	}
	if cfg.Timing.AfterNavigate.Std() != 2*time.Second ||
		cfg.Timing.AfterMenu.Std() != 500*time.Millisecond ||
		cfg.Timing.AfterAdd.Std() != time.Second ||
		cfg.Timing.AfterUpdate.Std() != time.Second ||
		cfg.Timing.BeforeScreenshot.Std() != time.Second {
		t.Errorf("unexpected delays: %+v", cfg.Timing)
	}
	if cfg.Output.Screenshot != "/home/jules/verification/reproduce_manual.png" {
		t.Errorf("screenshot = %s", cfg.Output.Screenshot)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadFromFilesOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[app]
url = "http://127.0.0.1:4000"
object_id = 7
position = [1.5, 2, 3]

[browser]
driver = "chromedp"
viewport = "1280x720"

[timing]
sync = "ready"
after_menu = "250ms"
`)

	cfg, err := LoadFromFiles(path)
	if err != nil {
		t.Fatalf("LoadFromFiles: %v", err)
	}
	if cfg.App.URL != "http://127.0.0.1:4000" || cfg.App.ObjectID != 7 {
		t.Fatalf("app section not applied: %+v", cfg.App)
	}
	if len(cfg.App.Position) != 3 || cfg.App.Position[0] != 1.5 {
		t.Fatalf("position not applied: %v", cfg.App.Position)
	}
	if cfg.App.Hook != DefaultHook {
		t.Fatalf("hook default lost: %s", cfg.App.Hook)
	}
	if cfg.Browser.Driver != "chromedp" {
		t.Fatalf("driver = %s", cfg.Browser.Driver)
	}
	if cfg.Timing.AfterMenu.Std() != 250*time.Millisecond {
		t.Fatalf("after_menu = %s", cfg.Timing.AfterMenu.Std())
	}
	if cfg.Timing.AfterAdd.Std() != time.Second {
		t.Fatalf("after_add default lost: %s", cfg.Timing.AfterAdd.Std())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLaterFilesWin(t *testing.T) {
	first := writeConfig(t, "[app]\nobject_id = 2\n")
	second := writeConfig(t, "[app]\nobject_id = 3\n")

	cfg, err := LoadFromFiles(first, second)
	if err != nil {
		t.Fatalf("LoadFromFiles: %v", err)
	}
	if cfg.App.ObjectID != 3 {
		t.Fatalf("expected later file to win, got %d", cfg.App.ObjectID)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "[app]\nobject_id = 2\n[browser]\nbin = \"/from/file\"\n")
	t.Setenv("CADPROBE_OBJECT_ID", "9")
	t.Setenv("CHROME_BIN", "/from/chrome-bin")
	t.Setenv("CADPROBE_BROWSER_BIN", "/from/cadprobe")
	t.Setenv("CADPROBE_LOG_LEVEL", "debug")

	cfg, err := LoadFromFiles(path)
	if err != nil {
		t.Fatalf("LoadFromFiles: %v", err)
	}
	if cfg.App.ObjectID != 9 {
		t.Fatalf("object id = %d", cfg.App.ObjectID)
	}
	if cfg.Browser.Bin != "/from/cadprobe" {
		t.Fatalf("CADPROBE_BROWSER_BIN should beat CHROME_BIN, got %s", cfg.Browser.Bin)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("log level = %s", cfg.Logging.Level)
	}
}

func TestEnvOverridesRejectMalformedValues(t *testing.T) {
	cases := map[string]string{
		"CADPROBE_OBJECT_ID": "one",
		"CADPROBE_HEADLESS":  "sometimes",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := LoadFromFiles()
			if err == nil || !strings.Contains(err.Error(), key) {
				t.Fatalf("err = %v, want %s error", err, key)
			}
		})
	}
}

func TestLoadFromFilesReportsParseErrors(t *testing.T) {
	path := writeConfig(t, "[timing]\nafter_menu = \"soon\"\n")
	_, err := LoadFromFiles(path)
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("error should name the file: %v", err)
	}
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	if _, err := LoadFromFiles(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative url", func(c *Config) { c.App.URL = "localhost" }, "app.url"},
		{"short position", func(c *Config) { c.App.Position = []float64{1, 2} }, "app.position"},
		{"short rotation", func(c *Config) { c.App.Rotation = []float64{0, 0, 1} }, "app.rotation"},
		{"sync mode", func(c *Config) { c.Timing.Sync = "poll" }, "timing.sync"},
		{"negative delay", func(c *Config) { c.Timing.AfterAdd = Duration(-time.Second) }, "after_add"},
		{"empty screenshot", func(c *Config) { c.Output.Screenshot = " " }, "output.screenshot"},
		{"bad viewport", func(c *Config) { c.Browser.Viewport = "wide" }, "viewport"},
		{"empty hook", func(c *Config) { c.App.Hook = "" }, "app.hook"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestParseViewport(t *testing.T) {
	w, h, err := ParseViewport("375X812")
	if err != nil || w != 375 || h != 812 {
		t.Fatalf("got %d %d %v", w, h, err)
	}
	w, h, err = ParseViewport("")
	if err != nil || w != 0 || h != 0 {
		t.Fatalf("empty viewport should be zero, got %d %d %v", w, h, err)
	}
	if _, _, err := ParseViewport("0x10"); err == nil {
		t.Fatalf("expected error for zero width")
	}
}

func TestDiscoverPrefersExplicitPath(t *testing.T) {
	got := Discover("custom.toml")
	if len(got) != 1 || got[0] != "custom.toml" {
		t.Fatalf("unexpected %v", got)
	}
}

func TestDiscoverFindsHomeConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CADPROBE_HOME", home)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	if got := Discover(""); len(got) != 0 {
		t.Fatalf("expected no config, got %v", got)
	}

	path := filepath.Join(home, "cadprobe.toml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := Discover("")
	if len(got) != 1 || got[0] != path {
		t.Fatalf("expected %s, got %v", path, got)
	}
}
