package probe

import "context"

// Prober looks for the widget marker on a page.
// It returns a non-empty credential (the evidence of the marker) on a hit,
// and an empty string when nothing was found. Errors are treated as not found.
type Prober interface {
	Scan(ctx context.Context, target string) (string, error)
}

// Verifier confirms that a page on which the marker was found is live.
// Errors are treated as a failed verification.
type Verifier interface {
	Check(ctx context.Context, target string) (bool, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, target string) (string, error)

// Scan implements Prober.
func (f ProberFunc) Scan(ctx context.Context, target string) (string, error) {
	return f(ctx, target)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, target string) (bool, error)

// Check implements Verifier.
func (f VerifierFunc) Check(ctx context.Context, target string) (bool, error) {
	return f(ctx, target)
}
