package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/phuslu/log"

	"cadprobe/browser"
)

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	timeout  opTimeout
	logger   *log.Logger
	console  consoleRelay

	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

func openRod(ctx context.Context, opts Options) (Session, error) {
	path := opts.Bin
	if path == "" {
		found, ok := launcher.LookPath()
		if !ok {
			return nil, errors.New("browser executable path not found")
		}
		path = found
	}

	l := launcher.New().Context(ctx).Bin(path).
		Set("disable-setuid-sandbox").
		Set("no-sandbox").
		Set("no-first-run", "true").
		Set("disable-gpu").
		Set("disable-dev-shm-usage")
	if opts.IgnoreCertErrors {
		l.Set("ignore-certificate-errors")
	}
	controlURL, err := l.Headless(opts.Headless).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	b := rod.New().ControlURL(controlURL).Context(sessCtx)
	if err := b.Connect(); err != nil {
		cancel()
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	s := &rodSession{
		launcher: l,
		browser:  b,
		timeout:  opTimeout(opts.Timeout),
		logger:   opts.Logger,
		cancel:   cancel,
	}

	if opts.Stealth {
		s.page, err = stealth.Page(b)
	} else {
		s.page, err = b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}

	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		err = s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.ViewportWidth,
			Height:            opts.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("set viewport: %w", err)
		}
	}

	go s.page.EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
		s.console.emit(ConsoleMessage{Type: string(e.Type), Text: browser.ConsoleText(e)})
	})()

	s.logger.Debug().Str("driver", string(KindRod)).Str("bin", path).Bool("stealth", opts.Stealth).Msg("browser launched")
	return s, nil
}

func (s *rodSession) OnConsole(h ConsoleHandler) { s.console.set(h) }

// pageFor binds the page to ctx and the per-operation timeout.
func (s *rodSession) pageFor(ctx context.Context) (*rod.Page, context.CancelFunc) {
	ctx, cancel := s.timeout.bind(ctx)
	return s.page.Context(ctx), cancel
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	p, cancel := s.pageFor(ctx)
	defer cancel()
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait for %s to load: %w", url, err)
	}
	return nil
}

func (s *rodSession) ClickByLabel(ctx context.Context, label string) error {
	p, cancel := s.pageFor(ctx)
	defer cancel()
	els, err := browser.ElementsByLabel(p, label)
	if err != nil {
		return fmt.Errorf("find %q: %w", label, err)
	}
	if err := labelError(label, len(els)); err != nil {
		return err
	}
	if err := els[0].Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %q: %w", label, err)
	}
	return nil
}

func (s *rodSession) Evaluate(ctx context.Context, expr string) (json.RawMessage, error) {
	p, cancel := s.pageFor(ctx)
	defer cancel()
	res, err := p.Eval("() => (" + expr + ")")
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	if res.Type == proto.RuntimeRemoteObjectTypeUndefined {
		return nil, nil
	}
	return json.RawMessage(res.Value.JSON("", "")), nil
}

func (s *rodSession) Screenshot(ctx context.Context) ([]byte, error) {
	p, cancel := s.pageFor(ctx)
	defer cancel()
	res, err := browser.CaptureScreenshot(p, browser.ScreenshotOptions{Format: "png"})
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

func (s *rodSession) HTML(ctx context.Context) (string, error) {
	p, cancel := s.pageFor(ctx)
	defer cancel()
	html, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.browser.Close()
		s.cancel()
		s.launcher.Cleanup()
		s.logger.Debug().Str("driver", string(KindRod)).Msg("browser closed")
	})
	return s.closeErr
}
