package api

import (
	"fmt"
	"net/http"
	"time"

	ghapi "github.com/cli/go-gh/v2/pkg/api"
	"github.com/cli/go-gh/v2/pkg/auth"
)

// DefaultHost is the GitHub host searched
const DefaultHost = "github.com"

// NewHTTPClient returns an HTTP client for host. An explicit token wins;
// otherwise the token gh CLI stores for host is used. Without any token the
// client is unauthenticated, which the search API allows at a lower quota.
// The second result reports whether the client is authenticated.
func NewHTTPClient(host, token string, timeout time.Duration) (*http.Client, bool, error) {
	if host == "" {
		host = DefaultHost
	}

	if token == "" {
		// Use gh CLI's authentication
		token, _ = auth.TokenForHost(host)
	}

	if token == "" {
		return &http.Client{Timeout: timeout}, false, nil
	}

	httpClient, err := ghapi.NewHTTPClient(ghapi.ClientOptions{
		Host:      host,
		AuthToken: token,
		Timeout:   timeout,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return httpClient, true, nil
}

// RESTBaseURL returns the REST API root for host. github.com needs no
// override and yields "".
func RESTBaseURL(host string) string {
	if host == "" || host == DefaultHost {
		return ""
	}
	return fmt.Sprintf("https://%s/api/v3/", host)
}

// GraphQLURL returns the GraphQL endpoint for host
func GraphQLURL(host string) string {
	if host == "" || host == DefaultHost {
		return graphqlEndpoint
	}
	return fmt.Sprintf("https://%s/api/graphql", host)
}
