package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/phuslu/log"

	"cadprobe/internal/appdirs"
	"cadprobe/internal/driver"
	"cadprobe/internal/store"
)

// maxConsoleLines caps the console buffer; older lines are dropped first.
const maxConsoleLines = 1000

// Toolbox implements the tool handlers on one lazily opened browser session.
// Callers serialise access; handlers are not safe for concurrent use.
type Toolbox struct {
	Open     func(ctx context.Context) (driver.Session, error)
	URL      string
	Hook     string
	ObjectID int
	Logger   *log.Logger
	// ArtifactDir receives screenshots saved under a relative path.
	ArtifactDir string

	sess   driver.Session
	bridge *store.Bridge

	consoleMu sync.Mutex
	console   []string
}

// Install registers a handler for every definition.
func (tb *Toolbox) Install() {
	RegisterHandler(ToolNavigate, tb.navigate)
	RegisterHandler(ToolClickLabel, tb.clickLabel)
	RegisterHandler(ToolUpdatePlacement, tb.updatePlacement)
	RegisterHandler(ToolGetPosition, tb.getPosition)
	RegisterHandler(ToolListObjects, tb.listObjects)
	RegisterHandler(ToolScreenshot, tb.screenshot)
	RegisterHandler(ToolConsoleLog, tb.consoleLog)
}

// session opens the browser on first use.
func (tb *Toolbox) session(ctx context.Context) (driver.Session, error) {
	if tb.sess != nil {
		return tb.sess, nil
	}
	if tb.Logger == nil {
		tb.Logger = &log.DefaultLogger
	}
	s, err := tb.Open(ctx)
	if err != nil {
		return nil, err
	}
	b, err := store.New(s, tb.Hook)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.OnConsole(tb.recordConsole)
	tb.sess, tb.bridge = s, b
	tb.Logger.Info().Msg("browser session opened for tool calls")
	return s, nil
}

// Close releases the session if one was opened.
func (tb *Toolbox) Close() error {
	if tb.sess == nil {
		return nil
	}
	err := tb.sess.Close()
	tb.sess, tb.bridge = nil, nil
	return err
}

func (tb *Toolbox) recordConsole(m driver.ConsoleMessage) {
	tb.consoleMu.Lock()
	defer tb.consoleMu.Unlock()
	tb.console = append(tb.console, m.Text)
	if over := len(tb.console) - maxConsoleLines; over > 0 {
		tb.console = append([]string(nil), tb.console[over:]...)
	}
}

func (tb *Toolbox) navigate(ctx context.Context, args map[string]interface{}) (Result, error) {
	url, err := argString(args, "url", false)
	if err != nil {
		return Result{}, err
	}
	if url == "" {
		url = tb.URL
	}
	s, err := tb.session(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := s.Navigate(ctx, url); err != nil {
		return Result{}, err
	}
	return Result{Text: "navigated to " + url}, nil
}

func (tb *Toolbox) clickLabel(ctx context.Context, args map[string]interface{}) (Result, error) {
	label, err := argString(args, "label", true)
	if err != nil {
		return Result{}, err
	}
	s, err := tb.session(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := s.ClickByLabel(ctx, label); err != nil {
		return Result{}, err
	}
	return Result{Text: fmt.Sprintf("clicked %q", label)}, nil
}

func (tb *Toolbox) updatePlacement(ctx context.Context, args map[string]interface{}) (Result, error) {
	id, err := argInt(args, "id", tb.ObjectID)
	if err != nil {
		return Result{}, err
	}
	posVals, err := argFloats(args, "position", 3, nil)
	if err != nil {
		return Result{}, err
	}
	if posVals == nil {
		return Result{}, fmt.Errorf("%w: position is required", ErrBadArgument)
	}
	rotVals, err := argFloats(args, "rotation", 4, store.Identity[:])
	if err != nil {
		return Result{}, err
	}
	pos, _ := store.Vec3From(posVals)
	rot, _ := store.QuatFrom(rotVals)

	if _, err := tb.session(ctx); err != nil {
		return Result{}, err
	}
	if err := tb.bridge.UpdatePlacement(ctx, id, pos, rot); err != nil {
		return Result{}, err
	}
	return Result{Text: fmt.Sprintf("updatePlacement(%d, %s, %s) sent", id, pos, rot)}, nil
}

func (tb *Toolbox) getPosition(ctx context.Context, args map[string]interface{}) (Result, error) {
	id, err := argInt(args, "id", tb.ObjectID)
	if err != nil {
		return Result{}, err
	}
	if _, err := tb.session(ctx); err != nil {
		return Result{}, err
	}
	pos, err := tb.bridge.Position(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if pos == nil {
		return Result{Text: "undefined"}, nil
	}
	return Result{Text: pos.String()}, nil
}

func (tb *Toolbox) listObjects(ctx context.Context, _ map[string]interface{}) (Result, error) {
	if _, err := tb.session(ctx); err != nil {
		return Result{}, err
	}
	objs, err := tb.bridge.Objects(ctx)
	if err != nil {
		return Result{}, err
	}
	if objs == nil {
		objs = []store.Object{}
	}
	data, err := json.MarshalIndent(objs, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("encode objects: %w", err)
	}
	return Result{Text: string(data)}, nil
}

func (tb *Toolbox) screenshot(ctx context.Context, args map[string]interface{}) (Result, error) {
	output, err := argString(args, "output", false)
	if err != nil {
		return Result{}, err
	}
	s, err := tb.session(ctx)
	if err != nil {
		return Result{}, err
	}
	data, err := s.Screenshot(ctx)
	if err != nil {
		return Result{}, err
	}
	if output == "" {
		return Result{Binary: data, ContentType: "image/png"}, nil
	}
	if tb.ArtifactDir != "" && !filepath.IsAbs(output) {
		if err := appdirs.EnsureDir(tb.ArtifactDir); err != nil {
			return Result{}, err
		}
		output = filepath.Join(tb.ArtifactDir, output)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return Result{}, fmt.Errorf("write screenshot: %w", err)
	}
	return Result{
		Text:        fmt.Sprintf("saved %d bytes to %s", len(data), output),
		FilePath:    output,
		ContentType: "image/png",
	}, nil
}

func (tb *Toolbox) consoleLog(_ context.Context, args map[string]interface{}) (Result, error) {
	tb.consoleMu.Lock()
	lines := append([]string(nil), tb.console...)
	if !argBool(args, "keep") {
		tb.console = nil
	}
	tb.consoleMu.Unlock()

	if len(lines) == 0 {
		return Result{Text: "(no console messages)"}, nil
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString("PAGE LOG: ")
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return Result{Text: b.String()}, nil
}
