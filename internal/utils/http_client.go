package utils

import (
	"github.com/go-resty/resty/v2"
)

// HTTPClient wraps resty.Client. Embedding *resty.Client exposes its full
// API while leaving room for application-specific extensions.
type HTTPClient struct {
	*resty.Client
}

// NewHTTPClient returns an independent HTTPClient with its own connection
// pool and configuration.
func NewHTTPClient() *HTTPClient {
	return &HTTPClient{Client: resty.New()}
}
