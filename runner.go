package webdrill

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// drainTimeout bounds how long teardown waits for in-flight log formatting
// before reading a session's transcripts.
const drainTimeout = 5 * time.Second

// Scenario is external test logic that drives one or more sessions created
// through the runner and returns an error on failure.
type Scenario func(ctx context.Context, r *Runner) error

// Outcome is the structured result of one scenario run. The runner never
// exits the process; the caller decides what to do with a failed outcome.
type Outcome struct {
	RunID       string
	Err         error
	Entries     []Entry
	ArtifactDir string
}

// Failed reports whether the scenario failed.
func (o Outcome) Failed() bool { return o.Err != nil }

// Runner orchestrates sessions through a scenario: it tracks every session
// created through it, captures failure, dumps per-session diagnostics when
// an artifact directory is configured, and aggregates performance entries
// at teardown.
type Runner struct {
	launcher    Launcher
	artifactDir string
	log         *zap.Logger
	sessionOpts []Option
	inspect     func(ctx context.Context, err error)
	runID       string

	mu       sync.Mutex
	sessions []*Session
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithArtifactDir enables diagnostics capture: on scenario failure the
// runner writes per-identity artifacts under this directory, and on any
// run with performance data it writes performance-entries.json there.
func WithArtifactDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.artifactDir = dir
	}
}

// WithRunnerLogger sets the zap logger for the runner and the sessions it
// creates. Defaults to a no-op logger.
func WithRunnerLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		r.log = l
	}
}

// WithInspectionHook registers a function the runner calls after a failed
// scenario's diagnostics are captured but before teardown, while every
// browser is still open. The process shell uses it to pause a windowed
// run so a human can inspect the live browsers; it is never called on
// success.
func WithInspectionHook(fn func(ctx context.Context, err error)) RunnerOption {
	return func(r *Runner) {
		r.inspect = fn
	}
}

// WithSessionOptions sets default options applied to every session the
// runner creates, before any per-session options.
func WithSessionOptions(opts ...Option) RunnerOption {
	return func(r *Runner) {
		r.sessionOpts = opts
	}
}

// NewRunner returns a Runner that creates sessions with the given launcher.
func NewRunner(launcher Launcher, ropts ...RunnerOption) *Runner {
	r := &Runner{
		launcher: launcher,
		log:      zap.NewNop(),
		runID:    uuid.NewString()[:8],
	}
	for _, o := range ropts {
		o(r)
	}
	return r
}

// NewSession creates a session through the runner's launcher and tracks it
// for diagnostics and teardown. Scenario code decides how many identities
// it needs.
func (r *Runner) NewSession(ctx context.Context, identity, appURL, serviceURL string, opts ...Option) (*Session, error) {
	all := make([]Option, 0, len(r.sessionOpts)+len(opts)+1)
	all = append(all, WithLogger(r.log))
	all = append(all, r.sessionOpts...)
	all = append(all, opts...)

	s, err := New(ctx, r.launcher, identity, appURL, serviceURL, all...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions = append(r.sessions, s)
	r.mu.Unlock()
	return s, nil
}

// Sessions returns the sessions created so far, in creation order.
func (r *Runner) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]*Session, len(r.sessions))
	copy(cp, r.sessions)
	return cp
}

// Run executes the scenario and performs the post-run sequence: on failure,
// per-session diagnostics capture (when an artifact directory is
// configured); then, for every session concurrently, performance
// extraction followed by close; finally aggregation of all non-empty
// entry sets into a single persisted record.
func (r *Runner) Run(ctx context.Context, scenario Scenario) Outcome {
	log := r.log.With(zap.String("run", r.runID))

	err := r.runScenario(ctx, scenario)
	if err != nil {
		log.Error("scenario failed", zap.Error(err))
		if r.artifactDir != "" {
			r.captureDiagnostics(ctx, log)
		}
		if r.inspect != nil {
			// Sessions are still open here; teardown only starts once
			// the hook returns.
			r.inspect(ctx, err)
		}
	}

	entries := r.teardown(ctx, log)
	if len(entries) > 0 && r.artifactDir != "" {
		if werr := r.writeEntries(entries); werr != nil {
			log.Warn("writing performance entries failed", zap.Error(werr))
		}
	}

	return Outcome{
		RunID:       r.runID,
		Err:         err,
		Entries:     entries,
		ArtifactDir: r.artifactDir,
	}
}

// runScenario executes the scenario body, converting a panic into a
// failure so teardown still runs.
func (r *Runner) runScenario(ctx context.Context, scenario Scenario) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("webdrill: scenario panic: %v", rec)
		}
	}()
	return scenario(ctx, r)
}

// captureDiagnostics writes per-identity artifacts for every session
// created so far. Sessions are isolated from each other: one session's
// write failure is logged and the rest are still captured.
func (r *Runner) captureDiagnostics(ctx context.Context, log *zap.Logger) {
	// Distinct identities can sanitize to the same directory name
	// (replaced characters, or truncation of long names); suffix the
	// repeats so no session's artifacts are lost to a collision.
	seen := map[string]int{}
	for _, s := range r.Sessions() {
		name := sanitizeName(s.Identity)
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s-%d", name, n)
		}
		if err := r.captureSession(ctx, s, name); err != nil {
			log.Warn("diagnostics capture failed",
				zap.String("identity", s.Identity), zap.Error(err))
		}
	}
}

func (r *Runner) captureSession(ctx context.Context, s *Session, name string) error {
	dir := filepath.Join(r.artifactDir, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	// Let in-flight log formatting settle before reading transcripts.
	drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	_ = s.ConsoleLog().Drain(drainCtx)
	_ = s.NetworkLog().Drain(drainCtx)

	html, err := s.Page().Content(ctx)
	if err != nil {
		return fmt.Errorf("page content: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.html"), []byte(html), 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "console.log"), []byte(s.ConsoleLog().Contents()), 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "network.log"), []byte(s.NetworkLog().Contents()), 0o644); err != nil {
		return err
	}

	shot, err := s.Page().Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "screenshot.png"), shot, 0o644)
}

// teardown extracts performance entries from every session and closes it.
// Sessions are handled concurrently relative to each other; within one
// session, extraction always completes before close.
func (r *Runner) teardown(ctx context.Context, log *zap.Logger) []Entry {
	var (
		mu  sync.Mutex
		all []Entry
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range r.Sessions() {
		s := s
		g.Go(func() error {
			entries := ExtractEntries(gctx, s.Page())
			if len(entries) > 0 {
				mu.Lock()
				all = append(all, entries...)
				mu.Unlock()
			}
			if err := s.Close(gctx); err != nil {
				log.Warn("session close failed",
					zap.String("identity", s.Identity), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return all
}

// sanitizeName replaces characters that are not filesystem-safe, so an
// identity can name its artifact directory.
func sanitizeName(name string) string {
	var b []byte
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b = append(b, byte(r))
		default:
			b = append(b, '_')
		}
	}
	s := string(b)
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}

func (r *Runner) writeEntries(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(r.artifactDir, "performance-entries.json"), data, 0o644)
}
