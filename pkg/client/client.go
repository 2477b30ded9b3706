// Package client builds the long-lived HTTP clients request steps use to
// call other mesh nodes.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/getmockd/mockmesh/internal/id"
	"github.com/getmockd/mockmesh/pkg/logging"
	"github.com/getmockd/mockmesh/pkg/policy"
)

// Kind is the configuration type of a client entry.
const Kind = "ClientConfig"

// ErrInvalidAddress is returned for a base address that is not an absolute
// http or https URL.
var ErrInvalidAddress = errors.New("invalid base address")

// Config is the declarative form of a client.
type Config struct {
	BaseAddress string            `json:"baseAddress"`
	Policies    []string          `json:"policies,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// Schema is the JSON Schema for a client entry's value.
const Schema = `{
	"type": "object",
	"required": ["baseAddress"],
	"properties": {
		"baseAddress": {"type": "string", "minLength": 1},
		"policies": {"type": "array", "items": {"type": "string", "minLength": 1}},
		"headers": {"type": "object", "additionalProperties": {"type": "string"}}
	}
}`

// Validate implements factory.Validator.
func (c *Config) Validate() error {
	_, err := parseBase(c.BaseAddress)
	return err
}

func parseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q must use http or https", ErrInvalidAddress, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidAddress, raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// Client is a named HTTP client bound to a base address with its policy
// chain applied. It is safe for concurrent use.
type Client struct {
	name    string
	base    *url.URL
	headers http.Header
	http    *http.Client
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*options)

type options struct {
	transport http.RoundTripper
	logger    *slog.Logger
	timeout   time.Duration
}

// WithTransport sets the transport the policy chain wraps. Clients created
// by one registry share a single transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithTimeout sets an overall client timeout. Zero means none; use a
// TimeoutPolicy for per-call limits.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// New builds a client from its configuration and compiled policies, in the
// order the configuration lists them.
func New(name string, cfg *Config, policies []policy.Policy, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("client %q has no configuration", name)
	}
	base, err := parseBase(cfg.BaseAddress)
	if err != nil {
		return nil, fmt.Errorf("client %q: %w", name, err)
	}

	o := options{transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	headers := make(http.Header, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}

	return &Client{
		name:    name,
		base:    base,
		headers: headers,
		http: &http.Client{
			Transport: policy.Chain(o.transport, policies...),
			Timeout:   o.timeout,
		},
		log: logging.Component(o.logger, "client").With("client", name),
	}, nil
}

// Name returns the registry key of the client.
func (c *Client) Name() string { return c.name }

// BaseURL returns a copy of the base address.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// Resolve returns the absolute URL for path relative to the base address.
func (c *Client) Resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	return c.base.ResolveReference(ref), nil
}

// Send issues a request to path relative to the base address. The caller
// must close the response body.
func (c *Client) Send(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	target, err := c.Resolve(path)
	if err != nil {
		return nil, err
	}
	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range c.headers {
		req.Header[k] = append([]string(nil), v...)
	}
	if rid := id.FromContext(ctx); rid != "" && req.Header.Get(id.HeaderRequestID) == "" {
		req.Header.Set(id.HeaderRequestID, rid)
	}
	if len(body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	}

	c.log.Debug("sending request", "operation", policy.OperationKey(req))
	return c.http.Do(req)
}
