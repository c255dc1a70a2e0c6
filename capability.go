package webdrill

import (
	"context"
	"time"
)

// EventSource is a stream of page events of one kind. Subscribers are
// invoked in event-firing order, one event at a time, from the source's
// dispatch goroutine.
type EventSource[E any] interface {
	Subscribe(fn func(E))
}

// ConsoleMessage is one console API call observed on a page.
type ConsoleMessage struct {
	Time time.Time
	Kind string // "log", "warn", "error", ...
	Text string
}

// NetworkEvent is one finished network request observed on a page.
//
// Response resolves the response metadata for the request. Resolution may
// involve an asynchronous lookup and may fail when the browser never
// delivered a response (for example a request aborted mid-flight); callers
// must treat a failed lookup as "no response", not as a dropped event.
type NetworkEvent struct {
	Time         time.Time
	Method       string
	URL          string
	ResourceType string
	Response     func(ctx context.Context) (*NetworkResponse, error)
}

// NetworkResponse is the response metadata for a finished request.
type NetworkResponse struct {
	Status     int64
	StatusText string
}

// Page is the capability surface a session needs from one browser page.
// Find and FindAll are single-shot queries; the session layers polling on
// top of them.
type Page interface {
	Navigate(ctx context.Context, url string) error
	SetViewport(ctx context.Context, width, height int) error
	SetCPUThrottle(ctx context.Context, factor float64) error
	Find(ctx context.Context, selector string, visibleOnly bool) (Element, error)
	FindAll(ctx context.Context, selector string) ([]Element, error)
	Content(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Evaluate(ctx context.Context, expr string, out any) error
	Console() EventSource[ConsoleMessage]
	Network() EventSource[NetworkEvent]
}

// Element is a handle to one DOM element resolved by Find or FindAll.
type Element interface {
	Click(ctx context.Context) error
	TripleClick(ctx context.Context) error
	Type(ctx context.Context, text string) error
	Press(ctx context.Context, key Key) error
	Text(ctx context.Context) (string, error)
}

// Browser is a handle to one browser process.
type Browser interface {
	// Close terminates the browser process. There is no timeout: an
	// unresponsive process can make Close hang.
	Close(ctx context.Context) error
}

// LaunchOptions configures a browser launch.
type LaunchOptions struct {
	Headless  bool
	Devtools  bool
	NoSandbox bool
	ExecPath  string // empty = resolve from the host
	// TypeDelay inserts a pause between keystrokes when typing.
	// Zero means full speed.
	TypeDelay time.Duration
}

// Launcher produces an isolated browser process with one open page.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, Page, error)
}
