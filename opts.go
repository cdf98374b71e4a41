package rectify

import (
	"time"

	"github.com/fogfish/opts"

	"github.com/casualjim/rectify/detect"
	"github.com/casualjim/rectify/diag"
	"github.com/casualjim/rectify/pkg/clockx"
)

// Config collects the recognized options. Loading and validating
// configuration files is a collaborator's job; this struct is what the
// collaborator hands over.
type Config struct {
	RequestTimeout time.Duration
	QueueWait      time.Duration
	WindowSize     int
	WindowOverlap  int
	MaxWindows     int
	Hook           diag.Hook
	Clock          clockx.Clock
}

func defaultConfig() Config {
	return Config{
		RequestTimeout: 60 * time.Second,
		QueueWait:      30 * time.Second,
		WindowSize:     detect.DefaultWindowSize,
		WindowOverlap:  detect.DefaultWindowOverlap,
		MaxWindows:     detect.DefaultMaxWindows,
		Hook:           diag.NoopHook{},
		Clock:          clockx.Real(),
	}
}

// WithRequestTimeout sets the per-request processing timeout before
// forced failure. Default 60s.
var WithRequestTimeout = opts.ForName[Config, time.Duration]("RequestTimeout")

// WithQueueWaitTimeout sets the maximum wait before a queue stall
// triggers forced cleanup. Default 30s.
var WithQueueWaitTimeout = opts.ForName[Config, time.Duration]("QueueWait")

// WithDetectionWindowSize tunes the sliding-window detector. Default 500.
var WithDetectionWindowSize = opts.ForName[Config, int]("WindowSize")

// WithDetectionWindowOverlap tunes the sliding-window overlap. Default 100.
var WithDetectionWindowOverlap = opts.ForName[Config, int]("WindowOverlap")

// WithMaxDetectionWindows bounds scan cost per detection call. Default 20.
var WithMaxDetectionWindows = opts.ForName[Config, int]("MaxWindows")

// WithHook installs a diagnostics hook.
var WithHook = opts.ForName[Config, diag.Hook]("Hook")

// WithClock substitutes the wall clock; tests use a fake.
var WithClock = opts.ForName[Config, clockx.Clock]("Clock")
