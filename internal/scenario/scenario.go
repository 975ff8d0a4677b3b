// Package scenario runs the placement reproduction against the CAD web app:
// open the app, add a box through the menu, move it through the store hook,
// read the position back and capture a screenshot.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/phuslu/log"

	"cadprobe/internal/config"
	"cadprobe/internal/driver"
	"cadprobe/internal/store"
)

const (
	LabelToggleMenu = "Toggle Menu"
	LabelAddBox     = "Add Box"

	consolePrefix = "PAGE LOG: "

	// readyPoll is the interval between readiness checks in ready sync mode.
	readyPoll = 100 * time.Millisecond
	// readyFactor bounds the readiness wait as a multiple of the
	// post-navigation delay.
	readyFactor = 10
)

var ErrNotReady = errors.New("store did not become ready")

// Delays between steps.
type Delays struct {
	AfterNavigate    time.Duration
	AfterMenu        time.Duration
	AfterAdd         time.Duration
	AfterUpdate      time.Duration
	BeforeScreenshot time.Duration
}

// Params holds what one run targets and produces.
type Params struct {
	URL        string
	Hook       string
	ObjectID   int
	Position   store.Vec3
	Rotation   store.Quat
	Sync       string
	Delays     Delays
	Screenshot string
	Report     string
}

// ParamsFromConfig converts a validated configuration into run parameters.
func ParamsFromConfig(cfg *config.Config) (Params, error) {
	pos, err := store.Vec3From(cfg.App.Position)
	if err != nil {
		return Params{}, fmt.Errorf("app.position: %w", err)
	}
	rot, err := store.QuatFrom(cfg.App.Rotation)
	if err != nil {
		return Params{}, fmt.Errorf("app.rotation: %w", err)
	}
	return Params{
		URL:      cfg.App.URL,
		Hook:     cfg.App.Hook,
		ObjectID: cfg.App.ObjectID,
		Position: pos,
		Rotation: rot,
		Sync:     cfg.Timing.Sync,
		Delays: Delays{
			AfterNavigate:    cfg.Timing.AfterNavigate.Std(),
			AfterMenu:        cfg.Timing.AfterMenu.Std(),
			AfterAdd:         cfg.Timing.AfterAdd.Std(),
			AfterUpdate:      cfg.Timing.AfterUpdate.Std(),
			BeforeScreenshot: cfg.Timing.BeforeScreenshot.Std(),
		},
		Screenshot: cfg.Output.Screenshot,
		Report:     cfg.Output.Report,
	}, nil
}

// OpenFunc starts the browser session a run drives.
type OpenFunc func(ctx context.Context) (driver.Session, error)

// Runner executes the scenario once. Out receives progress lines and the
// relayed page console; it is written from the console goroutine too.
type Runner struct {
	Open   OpenFunc
	Out    io.Writer
	Logger *log.Logger

	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// WriteFile stores the screenshot. Defaults to os.WriteFile, which
	// fails when the parent directory is missing.
	WriteFile func(name string, data []byte, perm os.FileMode) error
	Now       func() time.Time
}

// Result is what a run observed.
type Result struct {
	Position        *store.Vec3
	ScreenshotBytes int
	Console         []string
}

type step struct {
	name string
	run  func(ctx context.Context) error
}

// Run executes the scenario steps in order. The first failing step ends the
// run; the session is closed either way. When p.Report is set a report is
// written even for failed runs.
func (r *Runner) Run(ctx context.Context, p Params) (*Result, error) {
	r.defaults()
	rep := newReport(p, r.Now())

	res, err := r.run(ctx, p)
	if p.Report != "" {
		rep.finish(res, err, r.Now())
		if werr := rep.write(p.Report); werr != nil {
			r.Logger.Error().Err(werr).Str("path", p.Report).Msg("failed to write run report")
			if err == nil {
				err = werr
			}
		}
	}
	return res, err
}

func (r *Runner) run(ctx context.Context, p Params) (*Result, error) {
	out := &lockedWriter{w: r.Out}
	res := &Result{}

	sess, err := r.Open(ctx)
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			r.Logger.Warn().Err(cerr).Msg("failed to close browser session")
		}
	}()

	var consoleMu sync.Mutex
	sess.OnConsole(func(m driver.ConsoleMessage) {
		out.println(consolePrefix + m.Text)
		consoleMu.Lock()
		res.Console = append(res.Console, m.Text)
		consoleMu.Unlock()
	})
	// No handler runs once OnConsole(nil) returns, so res is ours again.
	defer sess.OnConsole(nil)

	bridge, err := store.New(sess, p.Hook)
	if err != nil {
		return res, err
	}

	steps := []step{
		{"navigate", func(ctx context.Context) error {
			out.println("Navigating to app...")
			if err := sess.Navigate(ctx, p.URL); err != nil {
				return err
			}
			if p.Sync == config.SyncReady {
				return r.waitReady(ctx, bridge, p.Delays.AfterNavigate*readyFactor)
			}
			return r.Sleep(ctx, p.Delays.AfterNavigate)
		}},
		{"toggle menu", func(ctx context.Context) error {
			out.println("Adding Box...")
			if err := sess.ClickByLabel(ctx, LabelToggleMenu); err != nil {
				return err
			}
			return r.Sleep(ctx, p.Delays.AfterMenu)
		}},
		{"add box", func(ctx context.Context) error {
			if err := sess.ClickByLabel(ctx, LabelAddBox); err != nil {
				return err
			}
			return r.Sleep(ctx, p.Delays.AfterAdd)
		}},
		{"update placement", func(ctx context.Context) error {
			out.printf("Updating placement manually to %s...\n", p.Position)
			if err := bridge.UpdatePlacement(ctx, p.ObjectID, p.Position, p.Rotation); err != nil {
				return err
			}
			return r.Sleep(ctx, p.Delays.AfterUpdate)
		}},
		{"read position", func(ctx context.Context) error {
			pos, err := bridge.Position(ctx, p.ObjectID)
			if err != nil {
				return err
			}
			res.Position = pos
			out.printf("Store position after update: %s\n", FormatPosition(pos))
			return r.Sleep(ctx, p.Delays.BeforeScreenshot)
		}},
		{"screenshot", func(ctx context.Context) error {
			out.println("Taking screenshot...")
			data, err := sess.Screenshot(ctx)
			if err != nil {
				return err
			}
			if err := r.WriteFile(p.Screenshot, data, 0o644); err != nil {
				return fmt.Errorf("write screenshot: %w", err)
			}
			res.ScreenshotBytes = len(data)
			r.Logger.Info().Str("path", p.Screenshot).Int("bytes", len(data)).Msg("screenshot saved")
			return nil
		}},
	}

	for _, s := range steps {
		r.Logger.Debug().Str("step", s.name).Msg("running step")
		if err := s.run(ctx); err != nil {
			return res, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return res, nil
}

// waitReady polls the store until its core is initialised or limit passes.
func (r *Runner) waitReady(ctx context.Context, b *store.Bridge, limit time.Duration) error {
	deadline := r.Now().Add(limit)
	for {
		ready, err := b.Ready(ctx)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		if !r.Now().Before(deadline) {
			return fmt.Errorf("%w within %s", ErrNotReady, limit)
		}
		if err := r.Sleep(ctx, readyPoll); err != nil {
			return err
		}
	}
}

// PrintConsole returns a console handler that writes each page message to w
// as a PAGE LOG line. Writes are serialised.
func PrintConsole(w io.Writer) driver.ConsoleHandler {
	out := &lockedWriter{w: w}
	return func(m driver.ConsoleMessage) {
		out.println(consolePrefix + m.Text)
	}
}

// FormatPosition renders a position read back from the store; a missing
// object prints as undefined.
func FormatPosition(pos *store.Vec3) string {
	if pos == nil {
		return "undefined"
	}
	return pos.String()
}

func (r *Runner) defaults() {
	if r.Out == nil {
		r.Out = os.Stdout
	}
	if r.Logger == nil {
		r.Logger = &log.DefaultLogger
	}
	if r.Sleep == nil {
		r.Sleep = sleepContext
	}
	if r.WriteFile == nil {
		r.WriteFile = os.WriteFile
	}
	if r.Now == nil {
		r.Now = time.Now
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) println(s string) {
	l.mu.Lock()
	fmt.Fprintln(l.w, s)
	l.mu.Unlock()
}

func (l *lockedWriter) printf(format string, args ...interface{}) {
	l.mu.Lock()
	fmt.Fprintf(l.w, format, args...)
	l.mu.Unlock()
}
