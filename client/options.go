package client

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds each request when no custom HTTP client is set.
const DefaultTimeout = 30 * time.Second

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}
