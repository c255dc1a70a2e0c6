package webdrill

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// timestampLayout is the ISO-8601 prefix on every log line.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// noResponseSentinel marks a finished request whose response was never
// observed (aborted, or still pending when the request finished firing).
const noResponseSentinel = "<no response>"

// Formatter renders one event into a log line. It may perform asynchronous
// lookups (such as resolving a request's response) and therefore may
// complete out of order relative to other events; the buffer re-serializes
// appends into firing order. A returned error never drops the event: the
// error text is recorded as the line instead.
type Formatter[E any] func(ctx context.Context, ev E) (string, error)

// LogBuffer is an append-only, order-preserving transcript of one event
// stream from a page. It grows monotonically until the owning session is
// closed; there is no unsubscribe — the buffer's lifetime is the session's
// lifetime, and the page it observes is torn down with the session.
type LogBuffer[E any] struct {
	format Formatter[E]

	// prev is the completion token of the most recently fired event's
	// append. The source's dispatch goroutine replaces it on every fire,
	// in firing order; that handoff is what keeps lines ordered even
	// when formatting finishes out of order. seqMu guards it so Drain
	// can snapshot the token while events keep firing.
	seqMu sync.Mutex
	prev  chan struct{}

	mu  sync.Mutex
	buf strings.Builder
}

// NewLogBuffer subscribes to src and returns a buffer that records every
// event as one formatted line, in firing order.
func NewLogBuffer[E any](src EventSource[E], format Formatter[E]) *LogBuffer[E] {
	done := make(chan struct{})
	close(done)
	b := &LogBuffer[E]{format: format, prev: done}
	src.Subscribe(b.observe)
	return b
}

func (b *LogBuffer[E]) observe(ev E) {
	// Sequence token captured at fire time.
	b.seqMu.Lock()
	prev := b.prev
	done := make(chan struct{})
	b.prev = done
	b.seqMu.Unlock()

	go func() {
		defer close(done)

		line, err := b.format(context.Background(), ev)
		if err != nil {
			line = fmt.Sprintf("<formatting failed: %v>", err)
		}

		// Wait for the previous event's line before appending ours.
		<-prev

		b.mu.Lock()
		b.buf.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			b.buf.WriteByte('\n')
		}
		b.mu.Unlock()
	}()
}

// Contents returns the accumulated transcript. The result is a snapshot;
// events whose formatting is still in flight are not included.
func (b *LogBuffer[E]) Contents() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Drain waits until every event fired before the call has been appended.
// Events that fire later may or may not be included. It is safe to call
// while the page is still producing events, which is the case during
// diagnostics capture: the page is only closed afterwards, in teardown.
func (b *LogBuffer[E]) Drain(ctx context.Context) error {
	// The latest token closes only after its event's append, and each
	// append waits for the one before it, so this single channel covers
	// everything fired so far.
	b.seqMu.Lock()
	last := b.prev
	b.seqMu.Unlock()

	select {
	case <-last:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FormatConsole renders one console message as
// "<timestamp> <kind> <text>".
func FormatConsole(_ context.Context, m ConsoleMessage) (string, error) {
	return fmt.Sprintf("%s %s %s", m.Time.Format(timestampLayout), m.Kind, m.Text), nil
}

// FormatNetwork renders one finished request as
// "<timestamp> <resource type> <status> <method> <url>". A request whose
// response cannot be resolved is recorded with the "<no response>"
// sentinel in the status field.
func FormatNetwork(ctx context.Context, ev NetworkEvent) (string, error) {
	status := noResponseSentinel
	if ev.Response != nil {
		if resp, err := ev.Response(ctx); err == nil && resp != nil {
			status = fmt.Sprintf("%d", resp.Status)
		}
	}
	return fmt.Sprintf("%s %s %s %s %s",
		ev.Time.Format(timestampLayout), ev.ResourceType, status, ev.Method, ev.URL), nil
}
