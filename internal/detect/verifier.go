package detect

import (
	"context"
	"io"
	"net/http"
)

// ReachabilityVerifier confirms a page by requiring a 2xx answer to GET.
type ReachabilityVerifier struct {
	client *http.Client
}

// NewReachabilityVerifier creates a verifier using client.
// A nil client falls back to http.DefaultClient.
func NewReachabilityVerifier(client *http.Client) *ReachabilityVerifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &ReachabilityVerifier{client: client}
}

// Check reports whether target answers GET with a 2xx status.
// Transport errors are returned with a false verdict.
func (v *ReachabilityVerifier) Check(ctx context.Context, target string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, DefaultMaxBodySize)) //nolint:errcheck // Drain for connection reuse

	return resp.StatusCode >= 200 && resp.StatusCode <= 299, nil
}
