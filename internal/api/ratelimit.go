package api

import (
	"context"
	"fmt"
	"time"
)

// RateLimitInfo contains information about one GitHub API rate limit resource
type RateLimitInfo struct {
	Resource  string // search, core, graphql
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// CheckRateLimit queries the current rate limit status.
// The GraphQL quota is only reported for authenticated clients.
func (c *Client) CheckRateLimit(ctx context.Context) ([]RateLimitInfo, error) {
	limits, _, err := c.github.RateLimit.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rate limits: %w", err)
	}

	var infos []RateLimitInfo
	if limits.Search != nil {
		infos = append(infos, RateLimitInfo{
			Resource:  "search",
			Limit:     limits.Search.Limit,
			Remaining: limits.Search.Remaining,
			ResetAt:   limits.Search.Reset.Time,
		})
	}
	if limits.Core != nil {
		infos = append(infos, RateLimitInfo{
			Resource:  "core",
			Limit:     limits.Core.Limit,
			Remaining: limits.Core.Remaining,
			ResetAt:   limits.Core.Reset.Time,
		})
	}

	if c.graphqlClient == nil {
		return infos, nil
	}

	// GraphQL query for rate limit info
	var query struct {
		RateLimit struct {
			Limit     int
			Remaining int
			ResetAt   time.Time
		}
	}

	if err := c.graphqlClient.Query(ctx, &query, nil); err != nil {
		return nil, fmt.Errorf("GraphQL query failed: %w", err)
	}

	return append(infos, RateLimitInfo{
		Resource:  "graphql",
		Limit:     query.RateLimit.Limit,
		Remaining: query.RateLimit.Remaining,
		ResetAt:   query.RateLimit.ResetAt,
	}), nil
}
