package interfaces

import (
	"context"
	"net/url"
)

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for outbound HTTP with retry logic.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// Get performs a GET request to the specified URL with parameters.
	// Returns the response body as bytes or an error.
	Get(ctx context.Context, url string, params map[string]string) ([]byte, error)

	// -----------------------------------------------------------------------------

	// PostForm performs a POST with a URL-encoded form body and optional
	// HTTP basic credentials. Returns the response body as bytes or an error.
	PostForm(ctx context.Context, url string, form url.Values, basicUser, basicPass string) ([]byte, error)
}
