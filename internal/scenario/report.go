package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"cadprobe/internal/store"
)

// Report is the JSON summary written by --report.
type Report struct {
	RunID           string      `json:"run_id"`
	URL             string      `json:"url"`
	ObjectID        int         `json:"object_id"`
	Requested       store.Vec3  `json:"requested_position"`
	Position        *store.Vec3 `json:"position"`
	Screenshot      string      `json:"screenshot"`
	ScreenshotBytes int         `json:"screenshot_bytes"`
	Console         []string    `json:"console"`
	Error           string      `json:"error,omitempty"`
	StartedAt       time.Time   `json:"started_at"`
	FinishedAt      time.Time   `json:"finished_at"`
}

func newReport(p Params, start time.Time) *Report {
	return &Report{
		RunID:      uuid.NewString(),
		URL:        p.URL,
		ObjectID:   p.ObjectID,
		Requested:  p.Position,
		Screenshot: p.Screenshot,
		Console:    []string{},
		StartedAt:  start,
	}
}

func (r *Report) finish(res *Result, err error, end time.Time) {
	r.FinishedAt = end
	if res != nil {
		r.Position = res.Position
		r.ScreenshotBytes = res.ScreenshotBytes
		if res.Console != nil {
			r.Console = res.Console
		}
	}
	if err != nil {
		r.Error = err.Error()
	}
}

func (r *Report) write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
