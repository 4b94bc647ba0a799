package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/torosent/protoduel/internal/placeholders"
)

// RequestBuilder builds GET requests for one entity route.
type RequestBuilder struct {
	base    string
	path    string
	headers http.Header
}

// NewRequestBuilder validates baseURL and headers. pathTemplate is appended to
// baseURL and may reference {{id}}.
func NewRequestBuilder(baseURL, pathTemplate string, headers map[string]string) (*RequestBuilder, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errors.New("base URL is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: missing host", baseURL)
	}

	path := strings.TrimSpace(pathTemplate)
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	h := http.Header{}
	h.Set("Accept", "application/json")
	for key, value := range headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		h.Set(canonicalKey, value)
	}

	return &RequestBuilder{base: base, path: path, headers: h}, nil
}

// Target returns the URL requested for id.
func (b *RequestBuilder) Target(id int) string {
	return b.base + placeholders.ApplyID(b.path, id)
}

// Base returns the normalized base URL.
func (b *RequestBuilder) Base() string {
	return b.base
}

// Path returns the route template.
func (b *RequestBuilder) Path() string {
	return b.path
}

// Build returns a GET request for id bound to ctx.
func (b *RequestBuilder) Build(ctx context.Context, id int) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.Target(id), nil)
	if err != nil {
		return nil, err
	}
	req.Header = b.headers.Clone()
	return req, nil
}

// NewClient returns a client with a pooled transport sized for maxConnsPerHost
// concurrent callers. A zero timeout leaves deadlines to the request context.
func NewClient(timeout time.Duration, maxConnsPerHost int) *http.Client {
	if timeout < 0 {
		timeout = 0
	}
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = 32
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          max(256, maxConnsPerHost),
		MaxIdleConnsPerHost:   maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
