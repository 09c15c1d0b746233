package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nao1215/starsweep/internal/model"
)

// Default search settings.
const (
	// DefaultBaseURL is the public GitHub REST API.
	DefaultBaseURL = "https://api.github.com"

	// DefaultQuery restricts results to live, non-fork repositories that publish a homepage.
	DefaultQuery = "homepage:http* archived:false fork:false"

	// DefaultPerPage is the page size; the API maximum.
	DefaultPerPage = 100

	// DefaultMaxRetries bounds attempts on hard-limit responses.
	DefaultMaxRetries = 5

	// apiVersion pins the REST API version.
	apiVersion = "2022-11-28"

	// maxErrorBody limits how much of an error response is kept for logs.
	maxErrorBody = 512
)

// Throttler blocks against the API quota. ratelimit.Governor implements it.
type Throttler interface {
	// Throttle is called after every successful response.
	Throttle(ctx context.Context, h http.Header) error

	// Backoff is called after every hard-limit response, before retrying.
	Backoff(ctx context.Context, h http.Header) error
}

// Client queries the repository search endpoint.
type Client struct {
	httpClient *http.Client
	throttler  Throttler
	baseURL    string
	token      string
	query      string
	perPage    int
	maxRetries int
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Used by tests and GitHub Enterprise.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithToken sets the bearer token. Unauthenticated search has a much lower quota.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithQuery replaces the keyword part of the query (everything except the star range).
func WithQuery(query string) Option {
	return func(c *Client) {
		c.query = strings.TrimSpace(query)
	}
}

// WithPerPage sets the page size.
func WithPerPage(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.perPage = n
		}
	}
}

// WithMaxRetries sets the number of attempts allowed on hard-limit responses.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a search Client.
func NewClient(httpClient *http.Client, throttler Throttler, opts ...Option) *Client {
	c := &Client{
		httpClient: httpClient,
		throttler:  throttler,
		baseURL:    DefaultBaseURL,
		query:      DefaultQuery,
		perPage:    DefaultPerPage,
		maxRetries: DefaultMaxRetries,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// searchResponse is the subset of the search response the crawler reads.
type searchResponse struct {
	TotalCount int          `json:"total_count"`
	Items      []repository `json:"items"`
}

// repository is one search result item.
type repository struct {
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	Homepage        string `json:"homepage"`
	StargazersCount int    `json:"stargazers_count"`
	Description     string `json:"description"`
}

// Result is the outcome of one search call.
type Result struct {
	// Candidates holds the items that publish a homepage.
	Candidates []model.Candidate

	// Batch describes every returned item, including those without a homepage,
	// so the scheduler sees the true page fill.
	Batch model.BatchResult
}

// Query returns the full query string for a window.
func (c *Client) Query(window model.Window) string {
	q := "stars:" + window.String()
	if c.query != "" {
		q += " " + c.query
	}
	return q
}

// Search fetches one page of repositories inside window.
// Errors wrap ErrRateLimited, ErrInvalidQuery or ErrTransient; a cancelled
// context is returned as-is.
func (c *Client) Search(ctx context.Context, window model.Window) (*Result, error) {
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err := c.do(ctx, window)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", ErrTransient, err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return c.handleOK(ctx, resp)

		case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
			drain(resp)
			c.logger.Warn("search rate limited",
				"window", window.String(),
				"status", resp.StatusCode,
				"attempt", attempt,
				"maxRetries", c.maxRetries,
			)
			if attempt < c.maxRetries {
				if err := c.throttler.Backoff(ctx, resp.Header); err != nil {
					return nil, err
				}
			}

		case resp.StatusCode == http.StatusUnprocessableEntity:
			body := errorBody(resp)
			return nil, fmt.Errorf("%w: window %s: %s", ErrInvalidQuery, window, body)

		default:
			body := errorBody(resp)
			return nil, fmt.Errorf("%w: status %d: %s", ErrTransient, resp.StatusCode, body)
		}
	}

	return nil, fmt.Errorf("%w: window %s after %d attempts", ErrRateLimited, window, c.maxRetries)
}

// do sends one search request.
func (c *Client) do(ctx context.Context, window model.Window) (*http.Response, error) {
	params := url.Values{}
	params.Set("q", c.Query(window))
	params.Set("sort", "stars")
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(c.perPage))
	params.Set("page", "1")

	endpoint := c.baseURL + "/search/repositories?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

// handleOK decodes a successful response and applies quota throttling.
func (c *Client) handleOK(ctx context.Context, resp *http.Response) (*Result, error) {
	defer resp.Body.Close()

	var body searchResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	// Throttle even when the body is bad: the request still consumed quota.
	if err := c.throttler.Throttle(ctx, resp.Header); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrTransient, decodeErr)
	}

	all := make([]model.Candidate, 0, len(body.Items))
	candidates := make([]model.Candidate, 0, len(body.Items))
	for _, item := range body.Items {
		cand := model.Candidate{
			Name:        item.Name,
			FullName:    item.FullName,
			Homepage:    strings.TrimSpace(item.Homepage),
			Stars:       item.StargazersCount,
			Description: strings.TrimSpace(item.Description),
		}
		all = append(all, cand)
		if cand.Homepage != "" {
			candidates = append(candidates, cand)
		}
	}

	return &Result{
		Candidates: candidates,
		Batch:      model.NewBatchResult(all),
	}, nil
}

// Classify maps a Search error to the scheduler's failure kind.
func Classify(err error) model.FailureKind {
	switch {
	case err == nil:
		return model.FailureNone
	case errors.Is(err, ErrRateLimited):
		return model.FailureRateLimited
	case errors.Is(err, ErrInvalidQuery):
		return model.FailureInvalidQuery
	default:
		return model.FailureTransient
	}
}

// errorBody reads a bounded snippet of an error response and closes it.
func errorBody(resp *http.Response) string {
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// drain discards and closes a response body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // Best effort
	_ = resp.Body.Close()
}
