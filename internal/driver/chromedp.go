package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/phuslu/log"

	"cadprobe/browser"
)

type chromedpSession struct {
	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	timeout     opTimeout
	logger      *log.Logger
	console     consoleRelay

	closeOnce sync.Once
	closeErr  error
}

func openChromedp(ctx context.Context, opts Options) (Session, error) {
	flags := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.Bin != "" {
		flags = append(flags, chromedp.ExecPath(opts.Bin))
	}
	if opts.IgnoreCertErrors {
		flags = append(flags, chromedp.Flag("ignore-certificate-errors", true))
	}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		flags = append(flags, chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight))
	}
	if opts.Stealth {
		opts.Logger.Warn().Str("driver", string(KindChromedp)).Msg("stealth is only supported by the rod driver; ignoring")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), flags...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &chromedpSession{
		ctx:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		timeout:     opTimeout(opts.Timeout),
		logger:      opts.Logger,
	}

	// The first Run starts the browser and binds it to tabCtx, so it must not
	// run on a derived context.
	stop := context.AfterFunc(ctx, tabCancel)
	err := chromedp.Run(tabCtx)
	stop()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*runtime.EventConsoleAPICalled); ok {
			s.console.emit(ConsoleMessage{Type: string(e.Type), Text: cdpConsoleText(e)})
		}
	})

	s.logger.Debug().Str("driver", string(KindChromedp)).Str("bin", opts.Bin).Msg("browser launched")
	return s, nil
}

// run executes actions on the tab, aborting when ctx is done or the
// per-operation timeout expires.
func (s *chromedpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := s.timeout.bind(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(opCtx, actions...)
}

func (s *chromedpSession) OnConsole(h ConsoleHandler) { s.console.set(h) }

func (s *chromedpSession) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (s *chromedpSession) ClickByLabel(ctx context.Context, label string) error {
	matches := labelMatchExpr(label)

	var n int
	if err := s.run(ctx, chromedp.Evaluate(matches+".length", &n)); err != nil {
		return fmt.Errorf("find %q: %w", label, err)
	}
	if err := labelError(label, n); err != nil {
		return err
	}
	if err := s.run(ctx, chromedp.Click(matches+"[0]", chromedp.ByJSPath)); err != nil {
		return fmt.Errorf("click %q: %w", label, err)
	}
	return nil
}

func (s *chromedpSession) Evaluate(ctx context.Context, expr string) (json.RawMessage, error) {
	var res *runtime.RemoteObject
	if err := s.run(ctx, chromedp.Evaluate(expr, &res, chromedp.EvalAsValue)); err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	if res == nil || res.Type == runtime.TypeUndefined {
		return nil, nil
	}
	return json.RawMessage(res.Value), nil
}

func (s *chromedpSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

func (s *chromedpSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

func (s *chromedpSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.ctx)
		s.tabCancel()
		s.allocCancel()
		s.logger.Debug().Str("driver", string(KindChromedp)).Msg("browser closed")
	})
	return s.closeErr
}

// labelMatchExpr is a JS expression evaluating to the array of elements
// carrying label.
func labelMatchExpr(label string) string {
	quoted, _ := json.Marshal(label)
	return "(" + browser.LabelMatcherJS + ")(" + string(quoted) + ")"
}

func cdpConsoleText(e *runtime.EventConsoleAPICalled) string {
	parts := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		parts = append(parts, cdpObjectText(arg))
	}
	return strings.Join(parts, " ")
}

func cdpObjectText(arg *runtime.RemoteObject) string {
	if arg == nil {
		return ""
	}
	switch arg.Type {
	case runtime.TypeString:
		var s string
		if err := json.Unmarshal([]byte(arg.Value), &s); err == nil {
			return s
		}
	case runtime.TypeUndefined:
		return "undefined"
	}
	if len(arg.Value) == 0 {
		if arg.Description != "" {
			return arg.Description
		}
		if arg.Subtype == runtime.SubtypeNull {
			return "null"
		}
		return string(arg.Type)
	}
	return string(arg.Value)
}
