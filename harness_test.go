package webdrill

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeSource is an EventSource driven directly by tests. Fire invokes
// subscribers synchronously, mimicking the in-order dispatch of a real
// page's event goroutine.
type fakeSource[E any] struct {
	mu   sync.Mutex
	subs []func(E)
}

func (s *fakeSource[E]) Subscribe(fn func(E)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *fakeSource[E]) Fire(ev E) {
	s.mu.Lock()
	subs := s.subs
	s.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// fakeElement records the operations performed on it.
type fakeElement struct {
	mu  sync.Mutex
	ops []string
}

func (e *fakeElement) record(op string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ops = append(e.ops, op)
}

func (e *fakeElement) Ops() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([]string, len(e.ops))
	copy(cp, e.ops)
	return cp
}

func (e *fakeElement) Click(context.Context) error       { e.record("click"); return nil }
func (e *fakeElement) TripleClick(context.Context) error { e.record("triple-click"); return nil }

func (e *fakeElement) Type(_ context.Context, text string) error {
	e.record("type:" + text)
	return nil
}

func (e *fakeElement) Press(_ context.Context, key Key) error {
	e.record("press:" + string(key))
	return nil
}

func (e *fakeElement) Text(context.Context) (string, error) { return "", nil }

// fakePage implements Page in memory. Visible selectors resolve to
// elements; behavior hooks let individual tests override one operation.
type fakePage struct {
	mu       sync.Mutex
	visible  map[string]*fakeElement
	hidden   map[string]*fakeElement
	content  string
	shot     []byte
	evalFn   func(expr string, out any) error
	shotErr  error
	throttle float64
	width    int
	height   int

	console *fakeSource[ConsoleMessage]
	network *fakeSource[NetworkEvent]
}

func newFakePage() *fakePage {
	return &fakePage{
		visible: map[string]*fakeElement{},
		hidden:  map[string]*fakeElement{},
		content: "<html></html>",
		shot:    []byte{0x89, 'P', 'N', 'G'},
		console: &fakeSource[ConsoleMessage]{},
		network: &fakeSource[NetworkEvent]{},
	}
}

func (p *fakePage) show(selector string)   { p.setEl(p.visible, selector) }
func (p *fakePage) showHidden(sel string)  { p.setEl(p.hidden, sel) }
func (p *fakePage) hide(selector string)   { p.mu.Lock(); delete(p.visible, selector); p.mu.Unlock() }
func (p *fakePage) remove(selector string) { p.hide(selector) }

func (p *fakePage) setEl(m map[string]*fakeElement, sel string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m[sel] = &fakeElement{}
}

func (p *fakePage) Navigate(context.Context, string) error { return nil }

func (p *fakePage) SetViewport(_ context.Context, w, h int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.width, p.height = w, h
	return nil
}

func (p *fakePage) SetCPUThrottle(_ context.Context, factor float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.throttle = factor
	return nil
}

func (p *fakePage) Find(_ context.Context, selector string, visibleOnly bool) (Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.visible[selector]; ok {
		return el, nil
	}
	if !visibleOnly {
		if el, ok := p.hidden[selector]; ok {
			return el, nil
		}
	}
	return nil, fmt.Errorf("fake: find %q: %w", selector, ErrNotFound)
}

func (p *fakePage) FindAll(_ context.Context, selector string) ([]Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var els []Element
	if el, ok := p.visible[selector]; ok {
		els = append(els, el)
	}
	if el, ok := p.hidden[selector]; ok {
		els = append(els, el)
	}
	return els, nil
}

func (p *fakePage) Content(context.Context) (string, error) { return p.content, nil }

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	if p.shotErr != nil {
		return nil, p.shotErr
	}
	return p.shot, nil
}

func (p *fakePage) Evaluate(_ context.Context, expr string, out any) error {
	if p.evalFn != nil {
		return p.evalFn(expr, out)
	}
	// Default: the instrumentation object is absent.
	return nil
}

func (p *fakePage) Console() EventSource[ConsoleMessage] { return p.console }
func (p *fakePage) Network() EventSource[NetworkEvent]   { return p.network }

// fakeBrowser counts Close calls.
type fakeBrowser struct {
	mu     sync.Mutex
	closed int
}

func (b *fakeBrowser) Close(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

func (b *fakeBrowser) Closed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// fakeLauncher hands out pre-built fake pages, one per Launch call.
type fakeLauncher struct {
	mu       sync.Mutex
	pages    []*fakePage
	browsers []*fakeBrowser
	launchEr error
	throttEr error
}

func (l *fakeLauncher) Launch(context.Context, LaunchOptions) (Browser, Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.launchEr != nil {
		return nil, nil, l.launchEr
	}
	p := newFakePage()
	b := &fakeBrowser{}
	l.pages = append(l.pages, p)
	l.browsers = append(l.browsers, b)
	if l.throttEr != nil {
		return b, &throttleFailPage{fakePage: p, err: l.throttEr}, nil
	}
	return b, p, nil
}

// throttleFailPage fails SetCPUThrottle and delegates everything else.
type throttleFailPage struct {
	*fakePage
	err error
}

func (p *throttleFailPage) SetCPUThrottle(context.Context, float64) error { return p.err }

// fakeClock drives the poll loop in virtual time: Sleep advances the
// clock instantly.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return nil
}

// delayedFormatter returns a formatter whose completion time is controlled
// per event, to simulate slow asynchronous lookups finishing out of order.
func delayedFormatter(delayFor func(s string) time.Duration) Formatter[string] {
	return func(_ context.Context, ev string) (string, error) {
		if d := delayFor(ev); d > 0 {
			time.Sleep(d)
		}
		return ev, nil
	}
}
