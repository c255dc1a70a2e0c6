package webdrill

import (
	"context"
)

// Entry is one named timing measurement emitted by the instrumented page.
type Entry struct {
	Name      string  `json:"name"`
	StartTime float64 `json:"startTime"`
	Duration  float64 `json:"duration"`
}

// Recognized entry names produced by the application under test.
const (
	EntryRegister   = "register"
	EntryLogin      = "login"
	EntryJoinRoom   = "join-room"
	EntryCreateDM   = "create-dm"
	EntryVerifyE2EE = "verify-e2ee"
)

// perfExtractExpr reads the page's instrumentation object. It evaluates to
// null when the instrumentation is absent, which is the case after the
// page navigated away from the application.
const perfExtractExpr = `(() => {
	const mon = window.mxPerformanceMonitor;
	if (!mon || typeof mon.getEntries !== 'function') {
		return null;
	}
	return mon.getEntries().map(e => ({name: e.name, startTime: e.startTime, duration: e.duration}));
})()`

// ExtractEntries reads the performance entries the page has collected.
// A page without the instrumentation object, or one that can no longer be
// evaluated, yields an empty set rather than an error: missing optional
// instrumentation is an expected condition at teardown.
func ExtractEntries(ctx context.Context, p Page) []Entry {
	var entries []Entry
	if err := p.Evaluate(ctx, perfExtractExpr, &entries); err != nil {
		return nil
	}
	return entries
}
