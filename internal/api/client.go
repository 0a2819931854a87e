package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v82/github"
	"github.com/shurcooL/graphql"
	"golang.org/x/time/rate"

	"github.com/swfz/gh-repos/internal/models"
)

const (
	// DefaultQuery is the search term used when none is configured
	DefaultQuery = "javascript"
	// DefaultPerPage matches the search API default page size
	DefaultPerPage = 30

	graphqlEndpoint = "https://api.github.com/graphql"
)

// ErrMalformedResponse is returned when the search response lacks the
// expected items array or an item lacks its id
var ErrMalformedResponse = errors.New("malformed search response")

// ClientConfig configures a Client
type ClientConfig struct {
	Query         string       // Search term (q parameter)
	PerPage       int          // Items per page
	HTTPClient    *http.Client // nil uses an unauthenticated client
	Authenticated bool         // HTTPClient carries a token; enables GraphQL quota lookups
	BaseURL       string       // REST API base URL override (tests, GHES)
	GraphQLURL    string       // GraphQL endpoint override (empty = github.com)
	RateLimit     rate.Limit   // Search requests per second (0 = derived from Authenticated)
	Burst         int          // Limiter burst (0 = 3)
	Logger        *slog.Logger
}

// Client wraps the GitHub search API with rate limiting
type Client struct {
	github        *github.Client
	graphqlClient *graphql.Client
	rateLimiter   *rate.Limiter
	query         string
	perPage       int
	logger        *slog.Logger
}

// NewClient creates a search client
func NewClient(cfg ClientConfig) (*Client, error) {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	gh := github.NewClient(httpClient)
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
		}
		gh.BaseURL = u
	}

	var graphqlClient *graphql.Client
	if cfg.Authenticated {
		endpoint := cfg.GraphQLURL
		if endpoint == "" {
			endpoint = graphqlEndpoint
		}
		graphqlClient = graphql.NewClient(endpoint, httpClient)
	}

	// Search API: 10 requests/minute unauthenticated, 30 authenticated.
	// Stay just under both.
	limit := cfg.RateLimit
	if limit == 0 {
		limit = rate.Every(7 * time.Second)
		if cfg.Authenticated {
			limit = rate.Every(2500 * time.Millisecond)
		}
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 3
	}

	query := cfg.Query
	if query == "" {
		query = DefaultQuery
	}
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		github:        gh,
		graphqlClient: graphqlClient,
		rateLimiter:   rate.NewLimiter(limit, burst),
		query:         query,
		perPage:       perPage,
		logger:        logger,
	}, nil
}

// Search fetches one page of repositories matching the configured query
func (c *Client) Search(ctx context.Context, sort models.Sort, page int) ([]models.Repository, error) {
	// Wait for rate limiter
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	opts := &github.SearchOptions{
		Sort:        sort.Field.APIParam(),
		Order:       string(sort.Order),
		ListOptions: github.ListOptions{Page: page, PerPage: c.perPage},
	}

	c.logger.Debug("searching repositories", "query", c.query, "sort", opts.Sort, "order", opts.Order, "page", page)

	result, resp, err := c.github.Search.Repositories(ctx, c.query, opts)
	if err != nil {
		return nil, c.describeError(err)
	}

	if resp != nil {
		c.logger.Debug("search quota", "remaining", resp.Rate.Remaining, "limit", resp.Rate.Limit)
	}

	return convertRepositories(result)
}

// describeError adds context for the rate limit failures the search API is prone to
func (c *Client) describeError(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("search rate limit exceeded, resets at %s: %w",
			rateErr.Rate.Reset.Format(time.Kitchen), err)
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("secondary rate limit hit, retry after %s: %w", abuseErr.GetRetryAfter(), err)
	}

	return fmt.Errorf("search request failed: %w", err)
}

// convertRepositories validates the response shape and maps items to models
func convertRepositories(result *github.RepositoriesSearchResult) ([]models.Repository, error) {
	if result == nil || result.Repositories == nil {
		return nil, fmt.Errorf("%w: missing items", ErrMalformedResponse)
	}

	repos := make([]models.Repository, 0, len(result.Repositories))
	for i, item := range result.Repositories {
		if item == nil || item.ID == nil {
			return nil, fmt.Errorf("%w: item %d has no id", ErrMalformedResponse, i)
		}

		repos = append(repos, models.Repository{
			ID:          item.GetID(),
			Name:        item.GetName(),
			Description: item.GetDescription(),
			StarCount:   item.GetStargazersCount(),
			UpdatedAt:   item.GetUpdatedAt().Time,
		})
	}

	return repos, nil
}
