package webdrill

import (
	"time"

	"go.uber.org/zap"
)

type options struct {
	width        int
	height       int
	timeout      time.Duration
	pollInterval time.Duration
	cpuThrottle  float64
	launch       LaunchOptions
	spinner      string
	logger       *zap.Logger
}

// Option configures a Session created by New or Runner.NewSession.
type Option func(*options)

// WithViewport sets the page viewport dimensions in pixels.
func WithViewport(width, height int) Option {
	return func(o *options) {
		o.width = width
		o.height = height
	}
}

// WithTimeout sets the default timeout for Query, WaitFor, and Poll.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithPollInterval sets the default polling interval for WaitFor and Poll.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

// WithCPUThrottle applies a CPU slowdown multiplier to the page via the
// browser's debugging protocol. 1.0 means no throttling.
func WithCPUThrottle(factor float64) Option {
	return func(o *options) {
		o.cpuThrottle = factor
	}
}

// WithLaunchOptions sets the browser launch configuration for the session.
func WithLaunchOptions(lo LaunchOptions) Option {
	return func(o *options) {
		o.launch = lo
	}
}

// WithSpinner sets the selector of the application's loading indicator,
// used by WaitNoSpinner.
func WithSpinner(selector string) Option {
	return func(o *options) {
		o.spinner = selector
	}
}

// WithLogger sets the base zap logger for the session's step reporter.
// Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WaitOption configures a single WaitFor, Poll, or Query call.
type WaitOption func(*waitOptions)

type waitOptions struct {
	timeout      time.Duration
	pollInterval time.Duration
	allowHidden  bool
}

// Within overrides the timeout for a single call.
// A value of 0 means "use defaults".
func Within(d time.Duration) WaitOption {
	return func(o *waitOptions) {
		o.timeout = d
	}
}

// Every overrides the polling interval for a single call.
// A value of 0 means "use defaults". Positive values under 10ms are
// clamped to 10ms.
func Every(d time.Duration) WaitOption {
	return func(o *waitOptions) {
		o.pollInterval = d
	}
}

// AllowHidden lets Query accept elements that are present in the DOM but
// not visible.
func AllowHidden() WaitOption {
	return func(o *waitOptions) {
		o.allowHidden = true
	}
}

const (
	defaultWidth        = 1280
	defaultHeight       = 800
	defaultTimeout      = 20 * time.Second
	defaultPollInterval = 100 * time.Millisecond
	minPollInterval     = 10 * time.Millisecond
	defaultSpinner      = ".mx_Spinner"
)

func defaultOptions() options {
	return options{
		width:        defaultWidth,
		height:       defaultHeight,
		timeout:      defaultTimeout,
		pollInterval: defaultPollInterval,
		cpuThrottle:  1.0,
		launch:       LaunchOptions{Headless: true},
		spinner:      defaultSpinner,
	}
}
