package chromium

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/cboone/webdrill"
)

// eventSource fans one event stream out to its subscribers. emit is called
// only from the ListenTarget dispatch goroutine, so subscribers observe
// events in firing order.
type eventSource[E any] struct {
	mu   sync.Mutex
	subs []func(E)
}

func (s *eventSource[E]) Subscribe(fn func(E)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *eventSource[E]) emit(ev E) {
	s.mu.Lock()
	subs := s.subs
	s.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// requestRecord accumulates what is known about one in-flight request.
type requestRecord struct {
	method       string
	url          string
	resourceType string
	response     *network.Response
}

// listen wires DevTools protocol events into the page's console and
// network sources. ListenTarget invokes the callback sequentially from one
// goroutine, which is what preserves event order end to end.
func (p *Page) listen() {
	chromedp.ListenTarget(p.ctx, func(ev any) {
		switch ev := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			p.console.emit(consoleMessage(ev))

		case *network.EventRequestWillBeSent:
			p.requests[ev.RequestID] = &requestRecord{
				method:       ev.Request.Method,
				url:          ev.Request.URL,
				resourceType: strings.ToLower(string(ev.Type)),
			}

		case *network.EventResponseReceived:
			if rec, ok := p.requests[ev.RequestID]; ok {
				rec.response = ev.Response
			}

		case *network.EventLoadingFinished:
			rec, ok := p.requests[ev.RequestID]
			if !ok {
				return
			}
			delete(p.requests, ev.RequestID)
			p.network.emit(networkEvent(rec))
		}
	})
}

func consoleMessage(ev *runtime.EventConsoleAPICalled) webdrill.ConsoleMessage {
	parts := make([]string, 0, len(ev.Args))
	for _, arg := range ev.Args {
		if arg.Value != nil {
			parts = append(parts, string(arg.Value))
		} else if arg.Description != "" {
			parts = append(parts, arg.Description)
		}
	}
	return webdrill.ConsoleMessage{
		Time: time.Now(),
		Kind: string(ev.Type),
		Text: strings.Join(parts, " "),
	}
}

func networkEvent(rec *requestRecord) webdrill.NetworkEvent {
	// Snapshot taken on the dispatch goroutine; the closure below may run
	// later, on a formatter goroutine.
	resp := rec.response
	return webdrill.NetworkEvent{
		Time:         time.Now(),
		Method:       rec.method,
		URL:          rec.url,
		ResourceType: rec.resourceType,
		Response: func(context.Context) (*webdrill.NetworkResponse, error) {
			if resp == nil {
				return nil, fmt.Errorf("chromium: request %s %s finished without a response", rec.method, rec.url)
			}
			return &webdrill.NetworkResponse{
				Status:     resp.Status,
				StatusText: resp.StatusText,
			}, nil
		},
	}
}
