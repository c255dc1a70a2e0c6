package webdrill

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// A Condition reports whether a page satisfies some state.
// The string return is a human-readable description for error messages.
// A condition treats query failures as "not satisfied"; WaitFor retries it
// until its timeout.
type Condition func(ctx context.Context, p Page) (ok bool, description string)

// Visible holds when at least one element matching the selector is visible.
func Visible(selector string) Condition {
	return func(ctx context.Context, p Page) (bool, string) {
		desc := fmt.Sprintf("element %q to be visible", selector)
		_, err := p.Find(ctx, selector, true)
		return err == nil, desc
	}
}

// Present holds when at least one element matches the selector, visible or
// not.
func Present(selector string) Condition {
	return func(ctx context.Context, p Page) (bool, string) {
		desc := fmt.Sprintf("element %q to be present", selector)
		_, err := p.Find(ctx, selector, false)
		return err == nil, desc
	}
}

// Absent holds when no visible element matches the selector. An element
// that exists but is hidden counts as absent.
func Absent(selector string) Condition {
	return func(ctx context.Context, p Page) (bool, string) {
		desc := fmt.Sprintf("no visible element %q", selector)
		_, err := p.Find(ctx, selector, true)
		if err == nil {
			return false, desc
		}
		// Only a confirmed miss counts; a transient query failure is
		// "unknown", not "absent".
		return errors.Is(err, ErrNotFound), desc
	}
}

// TextPresent holds when the page body contains the substring.
func TextPresent(substr string) Condition {
	return func(ctx context.Context, p Page) (bool, string) {
		desc := fmt.Sprintf("page to contain %q", substr)
		var found bool
		expr := fmt.Sprintf(`!!document.body && document.body.innerText.includes(%q)`, substr)
		if err := p.Evaluate(ctx, expr, &found); err != nil {
			return false, desc
		}
		return found, desc
	}
}

// Not inverts a condition.
func Not(c Condition) Condition {
	return func(ctx context.Context, p Page) (bool, string) {
		ok, desc := c(ctx, p)
		return !ok, "NOT(" + desc + ")"
	}
}

// All holds when every provided condition holds.
func All(conds ...Condition) Condition {
	return func(ctx context.Context, p Page) (bool, string) {
		descs := make([]string, 0, len(conds))
		for _, c := range conds {
			ok, desc := c(ctx, p)
			descs = append(descs, desc)
			if !ok {
				return false, "all of: " + strings.Join(descs, ", ")
			}
		}
		return true, "all of: " + strings.Join(descs, ", ")
	}
}

// Any holds when at least one provided condition holds.
func Any(conds ...Condition) Condition {
	return func(ctx context.Context, p Page) (bool, string) {
		descs := make([]string, 0, len(conds))
		for _, c := range conds {
			ok, desc := c(ctx, p)
			descs = append(descs, desc)
			if ok {
				return true, "any of: " + strings.Join(descs, ", ")
			}
		}
		return false, "any of: " + strings.Join(descs, ", ")
	}
}
