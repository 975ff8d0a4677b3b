package browser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Result describes the outcome of a capture operation.
type Result struct {
	Data     []byte
	MimeType string
}

// ScreenshotOptions controls Page screenshot behaviour.
type ScreenshotOptions struct {
	// FullPage extends the viewport before capture.
	FullPage bool

	// Format is one of png, jpeg. Defaults to png.
	Format string

	// Quality configures lossy formats (0-100). Ignored for png.
	Quality *int
}

// CaptureScreenshot captures the page's visible viewport (or the full page)
// and returns raw bytes plus mime type.
func CaptureScreenshot(page *rod.Page, opts ScreenshotOptions) (*Result, error) {
	if page == nil {
		return nil, errors.New("capture screenshot: page is nil")
	}

	protoFormat, mimeType, err := screenshotFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	req := &proto.PageCaptureScreenshot{
		Format:      protoFormat,
		FromSurface: true,
	}
	if opts.Quality != nil && protoFormat != proto.PageCaptureScreenshotFormatPng {
		req.Quality = opts.Quality
	}

	data, err := page.Screenshot(opts.FullPage, req)
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: page: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("capture screenshot: browser returned an empty image")
	}

	return &Result{Data: data, MimeType: mimeType}, nil
}

func screenshotFormat(raw string) (proto.PageCaptureScreenshotFormat, string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "png":
		return proto.PageCaptureScreenshotFormatPng, "image/png", nil
	case "jpeg", "jpg":
		return proto.PageCaptureScreenshotFormatJpeg, "image/jpeg", nil
	default:
		return "", "", fmt.Errorf("capture screenshot: unsupported format %q", raw)
	}
}
