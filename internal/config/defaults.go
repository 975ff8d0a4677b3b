package config

import "time"

const (
	DefaultURL        = "http://localhost:5173"
	DefaultHook       = "useCADStore"
	DefaultObjectID   = 1
	DefaultDriver     = "rod"
	DefaultScreenshot = "/home/jules/verification/reproduce_manual.png"
)

// NewDefaultConfig returns the values the reproduction was written against.
func NewDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			URL:      DefaultURL,
			Hook:     DefaultHook,
			ObjectID: DefaultObjectID,
			Position: []float64{5, 0, 0},
			Rotation: []float64{0, 0, 0, 1},
		},
		Browser: BrowserConfig{
			Driver:   DefaultDriver,
			Headless: true,
		},
		Timing: TimingConfig{
			Sync:             SyncSleep,
			AfterNavigate:    Duration(2 * time.Second),
			AfterMenu:        Duration(500 * time.Millisecond),
			AfterAdd:         Duration(time.Second),
			AfterUpdate:      Duration(time.Second),
			BeforeScreenshot: Duration(time.Second),
		},
		Output: OutputConfig{
			Screenshot: DefaultScreenshot,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
