package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/phuslu/log"
	"github.com/playwright-community/playwright-go"
)

type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	logger  *log.Logger
	console consoleRelay

	closeOnce sync.Once
	closeErr  error
}

func openPlaywright(ctx context.Context, opts Options) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     []string{"--no-sandbox", "--disable-gpu", "--disable-dev-shm-usage"},
	}
	if opts.Bin != "" {
		launch.ExecutablePath = playwright.String(opts.Bin)
	}
	b, err := pw.Chromium.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	s := &playwrightSession{pw: pw, browser: b, logger: opts.Logger}

	ctxOpts := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(opts.IgnoreCertErrors),
	}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		ctxOpts.Viewport = &playwright.Size{Width: opts.ViewportWidth, Height: opts.ViewportHeight}
	}
	bctx, err := b.NewContext(ctxOpts)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("create browser context: %w", err)
	}
	s.page, err = bctx.NewPage()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	if opts.Timeout > 0 {
		s.page.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))
	}
	if opts.Stealth {
		opts.Logger.Warn().Str("driver", string(KindPlaywright)).Msg("stealth is only supported by the rod driver; ignoring")
	}

	s.page.OnConsole(func(msg playwright.ConsoleMessage) {
		s.console.emit(ConsoleMessage{Type: msg.Type(), Text: msg.Text()})
	})

	s.logger.Debug().Str("driver", string(KindPlaywright)).Str("bin", opts.Bin).Msg("browser launched")
	return s, nil
}

func (s *playwrightSession) OnConsole(h ConsoleHandler) { s.console.set(h) }

func (s *playwrightSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (s *playwrightSession) ClickByLabel(ctx context.Context, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc := labelLocator(s.page, label)
	n, err := loc.Count()
	if err != nil {
		return fmt.Errorf("find %q: %w", label, err)
	}
	if err := labelError(label, n); err != nil {
		return err
	}
	if err := loc.Click(); err != nil {
		return fmt.Errorf("click %q: %w", label, err)
	}
	return nil
}

// labelLocator matches the same sources as the in-page matcher. GetByLabel
// does not look at title, so title matches are added with Or.
func labelLocator(page playwright.Page, label string) playwright.Locator {
	byLabel := page.GetByLabel(label, playwright.PageGetByLabelOptions{Exact: playwright.Bool(true)})
	byTitle := page.GetByTitle(label, playwright.PageGetByTitleOptions{Exact: playwright.Bool(true)})
	return byLabel.Or(byTitle)
}

// Evaluate serialises inside the page so undefined and null stay distinct.
func (s *playwrightSession) Evaluate(ctx context.Context, expr string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wrapped := "(() => { const v = (" + expr + "); return v === undefined ? undefined : JSON.stringify(v); })()"
	res, err := s.page.Evaluate(wrapped)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	if res == nil {
		return nil, nil
	}
	text, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("evaluate: unexpected result type %T", res)
	}
	return json.RawMessage(text), nil
}

func (s *playwrightSession) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return data, nil
}

func (s *playwrightSession) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	html, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

func (s *playwrightSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = errors.Join(s.browser.Close(), s.pw.Stop())
		s.logger.Debug().Str("driver", string(KindPlaywright)).Msg("browser closed")
	})
	return s.closeErr
}
