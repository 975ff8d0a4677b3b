// Package driver opens a headless browser session and exposes the handful of
// page operations the reproduction needs: navigate, click by accessible
// label, evaluate an expression in the page, and capture a screenshot.
//
// Three backends implement Session: rod (default), chromedp and playwright.
package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"
)

type Kind string

const (
	KindRod        Kind = "rod"
	KindChromedp   Kind = "chromedp"
	KindPlaywright Kind = "playwright"
)

var (
	ErrUnknownDriver  = errors.New("unknown driver")
	ErrLabelNotFound  = errors.New("no element with accessible label")
	ErrLabelAmbiguous = errors.New("accessible label matches more than one element")
	ErrSessionClosed  = errors.New("session closed")
)

// Options controls how the browser is launched.
type Options struct {
	Headless         bool
	Bin              string
	Stealth          bool
	IgnoreCertErrors bool
	ViewportWidth    int
	ViewportHeight   int

	// Timeout bounds each page operation. Zero keeps the library default.
	Timeout time.Duration

	Logger *log.Logger
}

// ConsoleMessage is one console call made by the page.
type ConsoleMessage struct {
	Type string
	Text string
}

type ConsoleHandler func(ConsoleMessage)

// Session is one browser process with one open page.
type Session interface {
	// OnConsole replaces the console handler. Messages arrive in emission order.
	OnConsole(h ConsoleHandler)
	Navigate(ctx context.Context, url string) error
	ClickByLabel(ctx context.Context, label string) error
	// Evaluate runs a JavaScript expression in the page and returns its JSON
	// value. An undefined result yields a nil RawMessage and no error.
	Evaluate(ctx context.Context, expr string) (json.RawMessage, error)
	Screenshot(ctx context.Context) ([]byte, error)
	HTML(ctx context.Context) (string, error)
	// Close releases the browser. It is safe to call more than once.
	Close() error
}

// Opener starts a Session for one backend.
type Opener func(ctx context.Context, opts Options) (Session, error)

var (
	openersMu sync.RWMutex
	openers   = map[Kind]Opener{
		KindRod:        openRod,
		KindChromedp:   openChromedp,
		KindPlaywright: openPlaywright,
	}
)

// Register installs or replaces the opener for kind.
func Register(kind Kind, o Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[kind] = o
}

// Kinds lists the registered backends in name order.
func Kinds() []Kind {
	openersMu.RLock()
	defer openersMu.RUnlock()
	out := make([]Kind, 0, len(openers))
	for k := range openers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if k == "" {
		return KindRod, nil
	}
	openersMu.RLock()
	_, ok := openers[k]
	openersMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, raw)
	}
	return k, nil
}

// Open launches a browser with the named backend.
func Open(ctx context.Context, kind Kind, opts Options) (Session, error) {
	openersMu.RLock()
	o, ok := openers[kind]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("open session: %w: %q", ErrUnknownDriver, kind)
	}
	if opts.Logger == nil {
		opts.Logger = &log.DefaultLogger
	}
	s, err := o(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s session: %w", kind, err)
	}
	return s, nil
}

// labelError maps a match count to the lookup sentinel errors.
func labelError(label string, n int) error {
	switch {
	case n == 0:
		return fmt.Errorf("%w %q", ErrLabelNotFound, label)
	case n > 1:
		return fmt.Errorf("%w: %q (%d matches)", ErrLabelAmbiguous, label, n)
	default:
		return nil
	}
}

// consoleRelay holds the current console handler for a session.
type consoleRelay struct {
	mu sync.Mutex
	h  ConsoleHandler
}

func (r *consoleRelay) set(h ConsoleHandler) {
	r.mu.Lock()
	r.h = h
	r.mu.Unlock()
}

func (r *consoleRelay) emit(msg ConsoleMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.h != nil {
		r.h(msg)
	}
}

// opTimeout bounds a single page operation. Zero means no extra bound.
type opTimeout time.Duration

func (t opTimeout) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	if t <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(t))
}
