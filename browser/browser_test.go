package browser

import (
	"strings"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

func TestConsoleTextJoinsArguments(t *testing.T) {
	e := &proto.RuntimeConsoleAPICalled{
		Type: proto.RuntimeConsoleAPICalledTypeLog,
		Args: []*proto.RuntimeRemoteObject{
			{Type: proto.RuntimeRemoteObjectTypeString, Value: gson.New("RustyCAD Core Initialized. Document ID:")},
			{Type: proto.RuntimeRemoteObjectTypeNumber, Value: gson.New(3)},
		},
	}
	if got := ConsoleText(e); got != "RustyCAD Core Initialized. Document ID: 3" {
		t.Fatalf("ConsoleText = %q", got)
	}
}

func TestConsoleTextNonPrimitiveArguments(t *testing.T) {
	e := &proto.RuntimeConsoleAPICalled{
		Args: []*proto.RuntimeRemoteObject{
			{Type: proto.RuntimeRemoteObjectTypeObject, Value: gson.New([]interface{}{5, 0, 0})},
			{Type: proto.RuntimeRemoteObjectTypeUndefined},
			{Type: proto.RuntimeRemoteObjectTypeObject, Subtype: proto.RuntimeRemoteObjectSubtypeNull},
			{Type: proto.RuntimeRemoteObjectTypeFunction, Description: "() => {}"},
		},
	}
	got := ConsoleText(e)
	want := "[5,0,0] undefined null () => {}"
	if got != want {
		t.Fatalf("ConsoleText = %q, want %q", got, want)
	}
}

func TestConsoleTextNil(t *testing.T) {
	if got := ConsoleText(nil); got != "" {
		t.Fatalf("ConsoleText(nil) = %q", got)
	}
}

func TestScreenshotFormat(t *testing.T) {
	cases := []struct {
		in   string
		want proto.PageCaptureScreenshotFormat
		mime string
	}{
		{"", proto.PageCaptureScreenshotFormatPng, "image/png"},
		{"PNG", proto.PageCaptureScreenshotFormatPng, "image/png"},
		{"jpg", proto.PageCaptureScreenshotFormatJpeg, "image/jpeg"},
	}
	for _, tc := range cases {
		got, mime, err := screenshotFormat(tc.in)
		if err != nil || got != tc.want || mime != tc.mime {
			t.Errorf("screenshotFormat(%q) = %q, %q, %v", tc.in, got, mime, err)
		}
	}
	if _, _, err := screenshotFormat("gif"); err == nil {
		t.Fatal("gif should be rejected")
	}
}

func TestCaptureScreenshotNilPage(t *testing.T) {
	if _, err := CaptureScreenshot(nil, ScreenshotOptions{}); err == nil || !strings.Contains(err.Error(), "page is nil") {
		t.Fatalf("err = %v", err)
	}
}

func TestLabelMatcherCoversLabelSources(t *testing.T) {
	for _, src := range []string{"aria-label", "aria-labelledby", "querySelectorAll('label')", "[title]"} {
		if !strings.Contains(LabelMatcherJS, src) {
			t.Errorf("matcher does not consult %s", src)
		}
	}
}
