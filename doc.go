// Package webdrill provides black-box end-to-end testing for web clients.
//
// webdrill drives a real Chromium process, captures ordered console and
// network log streams from the page while a scenario runs, and exposes a
// bounded-time polling primitive for asserting eventually-consistent DOM
// state. When a scenario fails, the harness persists per-identity diagnostic
// artifacts: the console transcript, the network transcript, an HTML
// snapshot, and a full-page screenshot.
//
// # Quick Start
//
//	runner := webdrill.NewRunner(chromium.NewLauncher(), webdrill.WithArtifactDir("logs"))
//	outcome := runner.Run(ctx, func(ctx context.Context, r *webdrill.Runner) error {
//		alice, err := r.NewSession(ctx, "alice", appURL, serviceURL)
//		if err != nil {
//			return err
//		}
//		if err := alice.Navigate(ctx, appURL); err != nil {
//			return err
//		}
//		return alice.WaitFor(ctx, webdrill.Visible(".mx_HomePage"))
//	})
//
// Sessions created through the runner are closed by the runner after the
// scenario returns; performance entries exposed by the page are extracted
// just before close and aggregated into a single JSON record.
//
// # Session Lifecycle
//
// Each session owns one isolated browser process and one page for its whole
// life. [Runner.NewSession] launches the browser, opens the page, applies the
// viewport and optional CPU throttling, and attaches both log buffers before
// returning. [Session.Close] terminates the browser process; a second Close
// returns [ErrClosed].
//
// # Waiting and Conditions
//
// [Session.WaitFor] and [Session.Poll] poll until a condition holds or a
// timeout expires. This is the core reliability mechanism and avoids ad hoc
// sleeps in scenarios.
//
// Wait behavior:
//
//   - Defaults: 20s timeout, 100ms poll interval
//   - Per-session overrides: [WithTimeout], [WithPollInterval]
//   - Per-call overrides: [Within], [Every]
//   - A predicate that returns an error counts as "not yet" and is retried
//   - Context cancellation ends the wait early
//
// Built-in conditions include [Visible], [Present], [Absent],
// [TextPresent], [Not], [All], and [Any].
//
// # Log Capture
//
// Two [LogBuffer] instances per session subscribe to the page's console
// stream and its finished-request network stream. Lines appear in each
// buffer in the exact order the events fired, even though per-event
// formatting (such as looking up a request's response) runs asynchronously.
// A finished request whose response was never observed is recorded with a
// "<no response>" sentinel rather than dropped.
//
// # Diagnostics
//
// On scenario failure with an artifact directory configured, the runner
// writes console.log, network.log, app.html, and screenshot.png under a
// per-identity subdirectory. Artifact writing is isolated per session: one
// session's write failure is logged and does not block the others.
//
// # Requirements
//
//   - Go 1.24+
//   - Chromium or Chrome reachable on the host (or set [LaunchOptions].ExecPath)
//   - Linux or macOS
package webdrill
