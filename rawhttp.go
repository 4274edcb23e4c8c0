// Package rawhttp is a convenience façade over cabot's packages: build a
// request with request.NewBuilder, run it with a client.Client, and read
// back a response.Response. Importing this package alone is enough for the
// common case; pkg/client, pkg/request and friends remain usable directly by
// callers who want the CLI's streaming Sink path instead of a buffered
// Response.
package rawhttp

import (
	"context"

	"github.com/mardiros/cabot/pkg/client"
	"github.com/mardiros/cabot/pkg/constants"
	cerrors "github.com/mardiros/cabot/pkg/errors"
	"github.com/mardiros/cabot/pkg/request"
	"github.com/mardiros/cabot/pkg/response"
)

// Version is the current version of the cabot library.
const Version = constants.Version

// Re-export key types for easier usage.
type (
	// Client runs requests per the engine described in pkg/client: resolve,
	// connect, optionally TLS, write, decode, follow redirects.
	Client = client.Client

	// Request is an immutable, wire-ready HTTP/1.1 request.
	Request = request.Request

	// RequestBuilder accumulates request parameters before validation.
	RequestBuilder = request.Builder

	// Response is a fully buffered HTTP/1.1 response.
	Response = response.Response

	// Error is a structured, kind-tagged error returned by any stage of the
	// engine: URL parsing, DNS, connect, TLS, read, or decode.
	Error = cerrors.Error
)

// NewClient returns a Client configured with the library's default
// timeouts and redirect limit; chain its With* setters to customize it.
func NewClient() *Client {
	return client.New()
}

// NewRequest is a shorthand for request.NewBuilder(rawURL).Build(), for
// callers who don't need to set headers, method, or body.
func NewRequest(rawURL string) (*Request, error) {
	return request.NewBuilder(rawURL).Build()
}

// NewBuilder starts a RequestBuilder for rawURL.
func NewBuilder(rawURL string) *RequestBuilder {
	return request.NewBuilder(rawURL)
}

// Get is a one-shot convenience: build a GET request for rawURL and execute
// it with a default Client.
func Get(ctx context.Context, rawURL string) (*Response, error) {
	req, err := NewRequest(rawURL)
	if err != nil {
		return nil, err
	}
	return NewClient().Execute(ctx, req)
}
