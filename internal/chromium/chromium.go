// Package chromium implements the webdrill browser capability surface on
// top of chromedp. It is internal to the harness.
package chromium

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/cboone/webdrill"
)

// Launcher launches isolated Chromium processes, one per session.
type Launcher struct{}

// NewLauncher returns a Launcher.
func NewLauncher() *Launcher { return &Launcher{} }

// Launch starts a dedicated Chromium process with its own user data
// directory and opens one page in it. The returned Browser terminates the
// process on Close.
func (l *Launcher) Launch(ctx context.Context, opts webdrill.LaunchOptions) (webdrill.Browser, webdrill.Page, error) {
	eopts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.NoSandbox {
		eopts = append(eopts, chromedp.Flag("no-sandbox", true))
	}
	if opts.Devtools {
		eopts = append(eopts, chromedp.Flag("auto-open-devtools-for-tabs", true))
	}
	if opts.ExecPath != "" {
		eopts = append(eopts, chromedp.ExecPath(opts.ExecPath))
	}

	// The allocator lives until Close, not until the launch call returns.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), eopts...)
	pageCtx, cancelPage := chromedp.NewContext(allocCtx)

	p := &Page{
		ctx:       pageCtx,
		typeDelay: opts.TypeDelay,
		console:   &eventSource[webdrill.ConsoleMessage]{},
		network:   &eventSource[webdrill.NetworkEvent]{},
		requests:  map[network.RequestID]*requestRecord{},
	}
	p.listen()

	// Start the process and enable network events before the caller can
	// navigate, so no early request is missed.
	startCtx, cancel := mergeDeadline(pageCtx, ctx)
	defer cancel()
	if err := chromedp.Run(startCtx, network.Enable()); err != nil {
		cancelPage()
		cancelAlloc()
		return nil, nil, fmt.Errorf("chromium: launch: %w", err)
	}

	b := &Browser{pageCtx: pageCtx, cancelPage: cancelPage, cancelAlloc: cancelAlloc}
	return b, p, nil
}

// Browser owns one Chromium process.
type Browser struct {
	pageCtx     context.Context
	cancelPage  context.CancelFunc
	cancelAlloc context.CancelFunc
}

// Close terminates the browser process, waiting for a graceful shutdown.
func (b *Browser) Close(_ context.Context) error {
	err := chromedp.Cancel(b.pageCtx)
	b.cancelPage()
	b.cancelAlloc()
	return err
}

// Page is one browser tab driven over the DevTools protocol.
type Page struct {
	ctx       context.Context
	typeDelay time.Duration
	console   *eventSource[webdrill.ConsoleMessage]
	network   *eventSource[webdrill.NetworkEvent]

	// requests is touched only from the ListenTarget goroutine.
	requests map[network.RequestID]*requestRecord
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *Page) SetViewport(ctx context.Context, width, height int) error {
	return p.run(ctx, chromedp.EmulateViewport(int64(width), int64(height)))
}

func (p *Page) SetCPUThrottle(ctx context.Context, factor float64) error {
	return p.run(ctx, emulation.SetCPUThrottlingRate(factor))
}

// Find is a single-shot query: it inspects the current DOM once and
// returns webdrill.ErrNotFound when no (visible) element matches right
// now. The session layers polling on top.
func (p *Page) Find(ctx context.Context, selector string, visibleOnly bool) (webdrill.Element, error) {
	nodes, err := p.queryNodes(ctx, selector)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if !visibleOnly {
			return &element{page: p, node: n}, nil
		}
		vis, err := p.nodeVisible(ctx, n)
		if err != nil {
			return nil, err
		}
		if vis {
			return &element{page: p, node: n}, nil
		}
	}
	return nil, fmt.Errorf("chromium: find %q: %w", selector, webdrill.ErrNotFound)
}

func (p *Page) FindAll(ctx context.Context, selector string) ([]webdrill.Element, error) {
	nodes, err := p.queryNodes(ctx, selector)
	if err != nil {
		return nil, err
	}
	els := make([]webdrill.Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &element{page: p, node: n})
	}
	return els, nil
}

func (p *Page) Content(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html))
	return html, err
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.FullScreenshot(&buf, 90))
	return buf, err
}

func (p *Page) Evaluate(ctx context.Context, expr string, out any) error {
	return p.run(ctx, chromedp.Evaluate(expr, out))
}

func (p *Page) Console() webdrill.EventSource[webdrill.ConsoleMessage] { return p.console }

func (p *Page) Network() webdrill.EventSource[webdrill.NetworkEvent] { return p.network }

func (p *Page) queryNodes(ctx context.Context, selector string) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("chromium: query %q: %w", selector, err)
	}
	return nodes, nil
}

func (p *Page) nodeVisible(ctx context.Context, n *cdp.Node) (bool, error) {
	expr := fmt.Sprintf(`(() => {
		const el = document.evaluate(%q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		if (!el) { return false; }
		const s = window.getComputedStyle(el);
		const r = el.getBoundingClientRect();
		return s.display !== 'none' && s.visibility !== 'hidden' && r.width > 0 && r.height > 0;
	})()`, n.FullXPath())
	var vis bool
	if err := p.run(ctx, chromedp.Evaluate(expr, &vis)); err != nil {
		return false, err
	}
	return vis, nil
}

// run executes actions on the page, honoring the caller's deadline without
// detaching from the page's own lifetime.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := mergeDeadline(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// mergeDeadline derives a context from base that is also canceled when
// caller is done. chromedp actions must run on the page context, but the
// caller's timeout still has to apply.
func mergeDeadline(base, caller context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(base)
	if caller == nil {
		return ctx, cancel
	}
	stop := context.AfterFunc(caller, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// element is a resolved DOM node. Operations address it by its full XPath
// so they survive sibling insertions better than a bare selector would.
type element struct {
	page *Page
	node *cdp.Node
}

func (e *element) xpath() string { return e.node.FullXPath() }

func (e *element) Click(ctx context.Context) error {
	return e.page.run(ctx, chromedp.MouseClickNode(e.node))
}

func (e *element) TripleClick(ctx context.Context) error {
	return e.page.run(ctx, chromedp.MouseClickNode(e.node, chromedp.ClickCount(3)))
}

func (e *element) Type(ctx context.Context, text string) error {
	if e.page.typeDelay <= 0 {
		return e.page.run(ctx, chromedp.KeyEventNode(e.node, text))
	}
	// Slow typing: one key event per rune with a pause in between.
	for _, r := range text {
		if err := e.page.run(ctx, chromedp.KeyEventNode(e.node, string(r))); err != nil {
			return err
		}
		select {
		case <-time.After(e.page.typeDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (e *element) Press(ctx context.Context, key webdrill.Key) error {
	code, err := keyCode(key)
	if err != nil {
		return err
	}
	return e.page.run(ctx, chromedp.KeyEventNode(e.node, code))
}

func (e *element) Text(ctx context.Context) (string, error) {
	var out string
	err := e.page.run(ctx, chromedp.Text(e.xpath(), &out, chromedp.BySearch))
	return out, err
}

// keyCode maps a webdrill key name to the chromedp/kb key sequence.
func keyCode(key webdrill.Key) (string, error) {
	switch key {
	case webdrill.Enter:
		return kb.Enter, nil
	case webdrill.Escape:
		return kb.Escape, nil
	case webdrill.Tab:
		return kb.Tab, nil
	case webdrill.Backspace:
		return kb.Backspace, nil
	case webdrill.Delete:
		return kb.Delete, nil
	case webdrill.Up:
		return kb.ArrowUp, nil
	case webdrill.Down:
		return kb.ArrowDown, nil
	case webdrill.Left:
		return kb.ArrowLeft, nil
	case webdrill.Right:
		return kb.ArrowRight, nil
	case webdrill.Home:
		return kb.Home, nil
	case webdrill.End:
		return kb.End, nil
	case webdrill.PageUp:
		return kb.PageUp, nil
	case webdrill.PageDown:
		return kb.PageDown, nil
	}
	return "", fmt.Errorf("chromium: unknown key %q", key)
}
