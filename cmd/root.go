package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"cadprobe/internal/config"
	"cadprobe/internal/driver"
	"cadprobe/internal/logging"
	"cadprobe/internal/scenario"
)

var Verbose bool
var Stealth bool
var IgnoreCertErrors bool

var (
	configPath string
	driverName string
	logLevel   string
	appURL     string
	objectID   int

	outputPath string
	reportPath string
	syncMode   string
)

// Test seams.
var (
	openSessionFunc = driver.Open
	sleepFunc       func(ctx context.Context, d time.Duration) error
)

var RootCmd = &cobra.Command{
	Use:   "cadprobe",
	Short: "Reproduce and inspect object placement in the RustyCAD web app",
	Long: `cadprobe drives the RustyCAD web app in a headless browser. Without a
subcommand it runs the placement reproduction: open the app, add a box
through the menu, move it with the store's updatePlacement action, print the
position the store reports afterwards and save a screenshot. Page console
output is relayed as "PAGE LOG:" lines.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runReproduce,
}

func runReproduce(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	params, err := scenario.ParamsFromConfig(cfg)
	if err != nil {
		return err
	}

	logger.Debug().Str("url", params.URL).Int("object_id", params.ObjectID).Str("driver", cfg.Browser.Driver).Str("sync", params.Sync).Msg("starting reproduction")
	runner := &scenario.Runner{
		Open:   sessionOpener(cfg, logger),
		Out:    cmd.OutOrStdout(),
		Logger: logger,
		Sleep:  sleepFunc,
	}
	_, err = runner.Run(cmd.Context(), params)
	return err
}

// setup loads and validates configuration and builds the logger.
func setup(cmd *cobra.Command) (*config.Config, *log.Logger, error) {
	cfg, err := config.LoadFromFiles(config.Discover(configPath)...)
	if err != nil {
		return nil, nil, err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if _, err := driver.ParseKind(cfg.Browser.Driver); err != nil {
		return nil, nil, err
	}

	level := cfg.Logging.Level
	if Verbose {
		level = "debug"
	}
	return cfg, logging.New(level, cmd.ErrOrStderr()), nil
}

// applyFlags overlays explicitly set flags on cfg; flags win over file and env.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("driver") {
		cfg.Browser.Driver = driverName
	}
	if flags.Changed("stealth") {
		cfg.Browser.Stealth = Stealth
	}
	if flags.Changed("ignore-cert-errors") {
		cfg.Browser.IgnoreCertErrors = IgnoreCertErrors
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("url") {
		cfg.App.URL = appURL
	}
	if flags.Changed("object-id") {
		cfg.App.ObjectID = objectID
	}
	if flags.Changed("output") {
		cfg.Output.Screenshot = outputPath
	}
	if flags.Changed("report") {
		cfg.Output.Report = reportPath
	}
	if flags.Changed("sync") {
		cfg.Timing.Sync = syncMode
	}
}

func sessionOptions(cfg *config.Config, logger *log.Logger) driver.Options {
	w, h, _ := config.ParseViewport(cfg.Browser.Viewport)
	return driver.Options{
		Headless:         cfg.Browser.Headless,
		Bin:              cfg.Browser.Bin,
		Stealth:          cfg.Browser.Stealth,
		IgnoreCertErrors: cfg.Browser.IgnoreCertErrors,
		ViewportWidth:    w,
		ViewportHeight:   h,
		Timeout:          cfg.Browser.Timeout.Std(),
		Logger:           logger,
	}
}

func sessionOpener(cfg *config.Config, logger *log.Logger) scenario.OpenFunc {
	return func(ctx context.Context) (driver.Session, error) {
		kind, err := driver.ParseKind(cfg.Browser.Driver)
		if err != nil {
			return nil, err
		}
		return openSessionFunc(ctx, kind, sessionOptions(cfg, logger))
	}
}

// pause waits between interactive steps, honouring the test seam.
func pause(ctx context.Context, d time.Duration) error {
	if sleepFunc != nil {
		return sleepFunc(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a cadprobe.toml config file")
	RootCmd.PersistentFlags().StringVar(&driverName, "driver", config.DefaultDriver, fmt.Sprintf("browser driver: %v", driver.Kinds()))
	RootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "Enable verbose mode")
	RootCmd.PersistentFlags().BoolVarP(&Stealth, "stealth", "s", false, "Enable stealth mode (rod driver)")
	RootCmd.PersistentFlags().BoolVarP(&IgnoreCertErrors, "ignore-cert-errors", "k", false, "Ignore certificate errors")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	RootCmd.PersistentFlags().StringVarP(&appURL, "url", "u", config.DefaultURL, "address of the running CAD app")
	RootCmd.PersistentFlags().IntVar(&objectID, "object-id", config.DefaultObjectID, "id of the object to move and read back")

	RootCmd.Flags().StringVarP(&outputPath, "output", "o", config.DefaultScreenshot, "screenshot path; the directory must exist")
	RootCmd.Flags().StringVar(&reportPath, "report", "", "optional path for a JSON run report")
	RootCmd.Flags().StringVar(&syncMode, "sync", config.SyncSleep, "wait after navigation: sleep (fixed delay) or ready (poll the store)")

	RootCmd.SetOut(os.Stdout)
	RootCmd.SetErr(os.Stderr)
}
