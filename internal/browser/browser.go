// Package browser owns live browser sessions for runs. A Driver creates
// isolated pages; the Manager enforces the one-session-per-run rule and
// reclaims idle sessions.
package browser

import "context"

// Driver launches browser pages. Implementations are safe for use from
// multiple goroutines.
type Driver interface {
	NewPage(ctx context.Context) (Page, error)
	Shutdown(ctx context.Context) error
}

// Page is one live, isolated browser page. Methods block until the
// action completes or ctx expires; failures come back as classified
// step errors.
type Page interface {
	// Navigate opens the URL and waits for the page to load.
	Navigate(ctx context.Context, url string) error

	// ClickText clicks the element whose text matches. Exact matches are
	// preferred over contains matches.
	ClickText(ctx context.Context, text string) error

	// ClickSelector clicks the first element matching a CSS selector.
	ClickSelector(ctx context.Context, selector string) error

	// TypeByID replaces the content of the element with the given id.
	TypeByID(ctx context.Context, field, value string) error

	// WaitText blocks until the text is present and visible.
	WaitText(ctx context.Context, text string) error

	// AssertText checks that the text is present and visible right now.
	AssertText(ctx context.Context, text string) error

	// WaitURLContains blocks until the page URL contains the fragment.
	WaitURLContains(ctx context.Context, fragment string) error

	// Screenshot captures the full page as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// Settle gives an in-flight navigation a chance to finish. Best
	// effort; it never fails the step.
	Settle(ctx context.Context)

	// Info returns the current URL and title, empty on error.
	Info(ctx context.Context) (url, title string)

	Close(ctx context.Context) error
}
