package webdrill

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// settleDelay is a fixed pause inside ReplaceInputText between selecting
// the existing text and deleting it. It papers over an input animation
// race in the application under test; it is an anti-flake measure, not a
// correctness guarantee.
const settleDelay = 300 * time.Millisecond

// Session is one isolated browser identity under test: one browser
// process, one page, two log buffers, and a step logger. The session
// exclusively owns the process and page for its lifetime.
type Session struct {
	Identity   string
	AppURL     string
	ServiceURL string
	Log        *Logger

	browser    Browser
	page       Page
	consoleLog *LogBuffer[ConsoleMessage]
	networkLog *LogBuffer[NetworkEvent]
	opts       options
	closed     atomic.Bool
}

// New launches an isolated browser process, opens its page, sets the
// viewport, optionally applies CPU throttling, attaches both log buffers,
// and returns the session. A launch or throttle failure aborts the session
// and is not retried.
func New(ctx context.Context, launcher Launcher, identity, appURL, serviceURL string, userOpts ...Option) (*Session, error) {
	opts := defaultOptions()
	for _, o := range userOpts {
		o(&opts)
	}

	browser, page, err := launcher.Launch(ctx, opts.launch)
	if err != nil {
		return nil, fmt.Errorf("webdrill: open %q: %w", identity, err)
	}

	if err := page.SetViewport(ctx, opts.width, opts.height); err != nil {
		_ = browser.Close(ctx)
		return nil, fmt.Errorf("webdrill: open %q: viewport: %w", identity, err)
	}
	if opts.cpuThrottle != 0 && opts.cpuThrottle != 1.0 {
		if err := page.SetCPUThrottle(ctx, opts.cpuThrottle); err != nil {
			_ = browser.Close(ctx)
			return nil, fmt.Errorf("webdrill: open %q: cpu throttle: %w", identity, err)
		}
	}

	return &Session{
		Identity:   identity,
		AppURL:     appURL,
		ServiceURL: serviceURL,
		Log:        NewLogger(opts.logger, identity),
		browser:    browser,
		page:       page,
		consoleLog: NewLogBuffer(page.Console(), FormatConsole),
		networkLog: NewLogBuffer(page.Network(), FormatNetwork),
		opts:       opts,
	}, nil
}

// Page exposes the session's page for conditions and diagnostics capture.
// Scenario code should prefer the session's own operations.
func (s *Session) Page() Page { return s.page }

// ConsoleLog is the ordered transcript of console messages.
func (s *Session) ConsoleLog() *LogBuffer[ConsoleMessage] { return s.consoleLog }

// NetworkLog is the ordered transcript of finished network requests.
func (s *Session) NetworkLog() *LogBuffer[NetworkEvent] { return s.networkLog }

// Navigate loads the given URL in the session's page.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.page.Navigate(ctx, url)
}

// Query waits until an element matching the selector becomes visible (or,
// with AllowHidden, merely present) and returns it. On timeout it returns
// an error wrapping ErrNotFound.
func (s *Session) Query(ctx context.Context, selector string, wopts ...WaitOption) (Element, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	wo := waitOptions{}
	for _, o := range wopts {
		o(&wo)
	}

	var el Element
	w := s.waiter(wo)
	ok := w.Poll(ctx, func(ctx context.Context) (bool, error) {
		found, err := s.page.Find(ctx, selector, !wo.allowHidden)
		if err != nil {
			return false, err
		}
		el = found
		return true, nil
	})
	if !ok {
		return nil, fmt.Errorf("webdrill: query: timed out after %v waiting for %q: %w", w.Timeout, selector, ErrNotFound)
	}
	return el, nil
}

// QueryAll waits (with the session's default timeout) for at least one
// element matching the selector, then returns every current match. If no
// element ever appears, QueryAll returns an empty slice and no error:
// empty-after-wait is a valid result, and callers who require a non-empty
// result must assert on the length themselves.
func (s *Session) QueryAll(ctx context.Context, selector string, wopts ...WaitOption) ([]Element, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	wo := waitOptions{}
	for _, o := range wopts {
		o(&wo)
	}

	var els []Element
	s.waiter(wo).Poll(ctx, func(ctx context.Context) (bool, error) {
		found, err := s.page.FindAll(ctx, selector)
		if err != nil {
			return false, err
		}
		els = found
		return len(found) > 0, nil
	})
	return els, nil
}

// ReplaceInputText replaces the contents of a text input: it selects the
// existing text with a triple click, pauses for a fixed settle delay,
// deletes via backspace, and types the new text.
func (s *Session) ReplaceInputText(ctx context.Context, input Element, text string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	if err := input.TripleClick(ctx); err != nil {
		return fmt.Errorf("webdrill: replace-input: select: %w", err)
	}
	if err := (realClock{}).Sleep(ctx, settleDelay); err != nil {
		return err
	}
	if err := input.Press(ctx, Backspace); err != nil {
		return fmt.Errorf("webdrill: replace-input: clear: %w", err)
	}
	if err := input.Type(ctx, text); err != nil {
		return fmt.Errorf("webdrill: replace-input: type: %w", err)
	}
	return nil
}

// WaitNoSpinner waits until the application's loading indicator is absent
// or hidden.
func (s *Session) WaitNoSpinner(ctx context.Context, wopts ...WaitOption) error {
	return s.WaitFor(ctx, Absent(s.opts.spinner), wopts...)
}

// WaitFor polls the page until the condition holds or the timeout expires.
// On timeout it returns an error wrapping ErrNotFound that carries the
// condition's description.
func (s *Session) WaitFor(ctx context.Context, cond Condition, wopts ...WaitOption) error {
	if s.closed.Load() {
		return ErrClosed
	}

	wo := waitOptions{}
	for _, o := range wopts {
		o(&wo)
	}

	lastDesc := "condition"
	w := s.waiter(wo)
	ok := w.Poll(ctx, func(ctx context.Context) (bool, error) {
		ok, desc := cond(ctx, s.page)
		lastDesc = desc
		return ok, nil
	})
	if !ok {
		return fmt.Errorf("webdrill: wait-for: timed out after %v waiting for %s: %w", w.Timeout, lastDesc, ErrNotFound)
	}
	return nil
}

// Poll delegates to the session's polling waiter: it repeatedly evaluates
// pred until it holds or the session's timeout elapses, and reports the
// result. A predicate error counts as "not yet".
func (s *Session) Poll(ctx context.Context, pred Predicate, wopts ...WaitOption) bool {
	wo := waitOptions{}
	for _, o := range wopts {
		o(&wo)
	}
	return s.waiter(wo).Poll(ctx, pred)
}

// Close terminates the session's browser process. The first call wins;
// subsequent calls return ErrClosed without touching the process. Close
// has no timeout of its own: an unresponsive browser process can make it
// hang.
func (s *Session) Close(ctx context.Context) error {
	if s.closed.Swap(true) {
		return ErrClosed
	}
	return s.browser.Close(ctx)
}

func (s *Session) waiter(wo waitOptions) *Waiter {
	timeout := s.opts.timeout
	if wo.timeout > 0 {
		timeout = wo.timeout
	}
	interval := s.opts.pollInterval
	if wo.pollInterval > 0 {
		interval = wo.pollInterval
		if interval < minPollInterval {
			interval = minPollInterval
		}
	}
	return NewWaiter(interval, timeout)
}
