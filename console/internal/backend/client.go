package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

const defaultUserAgent = "vpnconsole"

// Client is the only code path that talks to the provisioning backend.
// Each call is a single attempt; retries are left to callers.
type Client struct {
	resty  *resty.Client
	tokens *TokenHolder
}

type Option func(*options)

type options struct {
	httpClient *http.Client
	tokens     *TokenHolder
	logger     resty.Logger
	userAgent  string
}

// WithTokenHolder shares the bearer token with the session that owns it.
func WithTokenHolder(h *TokenHolder) Option {
	return func(o *options) { o.tokens = h }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func WithLogger(l resty.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

func New(baseURL string, opts ...Option) *Client {
	o := options{userAgent: defaultUserAgent}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tokens == nil {
		o.tokens = NewTokenHolder("")
	}

	var rc *resty.Client
	if o.httpClient != nil {
		rc = resty.NewWithClient(o.httpClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", o.userAgent)
	if o.logger != nil {
		rc.SetLogger(o.logger)
	}
	return &Client{resty: rc, tokens: o.tokens}
}

// Tokens returns the holder used for Authorization headers.
func (c *Client) Tokens() *TokenHolder {
	return c.tokens
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.resty.R().SetContext(ctx)
	if token := c.tokens.Token(); token != "" {
		req.SetAuthToken(token)
	}
	return req
}

func (c *Client) jsonRequest(ctx context.Context, body any) *resty.Request {
	return c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
}

// malformed reports a successful response whose body does not have the
// expected shape.
func malformed(resp *resty.Response, err error, format string, args ...any) *APIError {
	what := fmt.Sprintf(format, args...)
	return &APIError{
		StatusCode: resp.StatusCode(),
		Message:    fmt.Sprintf("%s: unexpected response: %v", what, err),
		Err:        err,
	}
}

// decode turns a resty result into either a decoded body or an *APIError.
func decode(resp *resty.Response, err error, dst any) error {
	if err != nil {
		return &APIError{Message: err.Error(), Err: err}
	}
	if !resp.IsSuccess() {
		return newAPIError(resp.StatusCode(), resp.Status(), resp.Body())
	}
	body := bytes.TrimSpace(resp.Body())
	if dst == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &APIError{
			StatusCode: resp.StatusCode(),
			Message:    fmt.Sprintf("decode %s response: %v", resp.Request.URL, err),
			Err:        err,
		}
	}
	return nil
}
