package main

import (
	"context"
	"fmt"

	"github.com/cboone/webdrill"
)

// smokeScenario drives a single identity through the client's loading
// path: the app must come up, its spinner must clear, and the home surface
// must render. Richer flows (register, room join, DM, E2EE verification)
// plug in as further scenarios with the same shape; the registration
// secret from the CLI is what those flows hand to the service under test.
func smokeScenario(cfg config) webdrill.Scenario {
	return func(ctx context.Context, r *webdrill.Runner) error {
		alice, err := r.NewSession(ctx, "alice", cfg.appURL, cfg.serviceURL)
		if err != nil {
			return err
		}

		alice.Log.Step("loading %s", cfg.appURL)
		if err := alice.Navigate(ctx, cfg.appURL); err != nil {
			return err
		}
		if err := alice.WaitNoSpinner(ctx); err != nil {
			return fmt.Errorf("client never finished loading: %w", err)
		}
		alice.Log.Done("client loaded")

		alice.Log.Step("checking home surface")
		if err := alice.WaitFor(ctx, webdrill.Any(
			webdrill.Visible(".mx_HomePage"),
			webdrill.Visible(".mx_MatrixChat"),
		)); err != nil {
			return fmt.Errorf("home surface not rendered: %w", err)
		}
		alice.Log.Done("home surface rendered")
		return nil
	}
}
