package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// RequestInterceptor decorates an outgoing request before it is resolved
// against the base URL and sent. The request URL may still be relative.
type RequestInterceptor func(req *http.Request) *http.Request

// AuthFailureHandler is offered every 401 response. The returned error
// replaces the status error; it must not be nil.
type AuthFailureHandler interface {
	HandleAuthFailure(req *http.Request, resp *Response) error
}

// StatusError is returned for responses with a status code >= 400.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	if e.StatusCode >= 500 {
		return fmt.Sprintf("server error: %d - %s", e.StatusCode, string(e.Body))
	}
	return fmt.Sprintf("client error: %d - %s", e.StatusCode, string(e.Body))
}

type Client struct {
	httpClient   *http.Client
	baseURL      *url.URL
	interceptors []RequestInterceptor
	authFailure  AuthFailureHandler
	logger       *zap.Logger
}

// Options configures a Client. All fields are optional.
type Options struct {
	// BaseURL resolves relative request URLs.
	BaseURL            string
	Timeout            time.Duration
	Jar                http.CookieJar
	AuthFailureHandler AuthFailureHandler
}

type RequestOptions struct {
	Method          string
	URL             string
	Headers         map[string]string
	Body            interface{}
	Context         context.Context
	MaxTries        uint
	MaxElapsed      time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

func NewClient() *Client {
	logger, _ := zap.NewProduction()
	return NewClientWithLogger(logger)
}

// NewClientWithLogger creates a new HTTP client with a custom logger
func NewClientWithLogger(logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// NewClientWithOptions creates a client bound to a base URL, cookie jar and
// auth-failure handler.
func NewClientWithOptions(opts Options, logger *zap.Logger) (*Client, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     opts.Jar,
		},
		authFailure: opts.AuthFailureHandler,
		logger:      logger,
	}

	if opts.BaseURL != "" {
		base, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse base URL: %w", err)
		}
		if !base.IsAbs() {
			return nil, fmt.Errorf("base URL must be absolute: %s", opts.BaseURL)
		}
		c.baseURL = base
	}

	return c, nil
}

// Use registers a request interceptor. Interceptors run in registration order.
func (c *Client) Use(interceptor RequestInterceptor) {
	c.interceptors = append(c.interceptors, interceptor)
}

// BaseURL returns the URL relative requests are resolved against, or nil.
func (c *Client) BaseURL() *url.URL {
	return c.baseURL
}

// Jar returns the client's cookie jar, or nil.
func (c *Client) Jar() http.CookieJar {
	return c.httpClient.Jar
}

func (c *Client) Do(opts RequestOptions) (*Response, error) {
	// Set default backoff configuration
	if opts.MaxTries == 0 {
		opts.MaxTries = 1
	}
	if opts.MaxElapsed == 0 {
		opts.MaxElapsed = 5 * time.Minute
	}
	if opts.InitialInterval == 0 {
		opts.InitialInterval = 100 * time.Millisecond
	}
	if opts.MaxInterval == 0 {
		opts.MaxInterval = 30 * time.Second
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = opts.InitialInterval
	expBackoff.MaxInterval = opts.MaxInterval
	expBackoff.Reset()

	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	operation := func() (*Response, error) {
		req, err := c.buildRequest(ctx, opts)
		if err != nil {
			c.logger.Error("Failed to build request", zap.Error(err), zap.String("method", opts.Method), zap.String("url", opts.URL))
			return nil, backoff.Permanent(err)
		}

		req, err = c.prepare(req)
		if err != nil {
			c.logger.Error("Failed to prepare request", zap.Error(err), zap.String("method", opts.Method), zap.String("url", opts.URL))
			return nil, backoff.Permanent(err)
		}

		c.logger.Debug("Making HTTP request",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()))

		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			// Network errors are retryable
			c.logger.Warn("HTTP request failed",
				zap.Error(err),
				zap.String("method", opts.Method),
				zap.String("url", opts.URL))
			return nil, err
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(httpResp.Body)
		if err != nil {
			c.logger.Error("Failed to read response body", zap.Error(err))
			return nil, backoff.Permanent(fmt.Errorf("failed to read response body: %w", err))
		}

		resp := &Response{
			StatusCode: httpResp.StatusCode,
			Headers:    httpResp.Header,
			Body:       body,
		}

		if httpResp.StatusCode >= 500 {
			c.logger.Warn("Server error",
				zap.Int("status_code", httpResp.StatusCode),
				zap.String("method", opts.Method),
				zap.String("url", opts.URL))
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
		}

		if httpResp.StatusCode == http.StatusUnauthorized && c.authFailure != nil {
			c.logger.Warn("Unauthorized response, handing over to auth failure handler",
				zap.String("method", opts.Method),
				zap.String("url", opts.URL))
			if handled := c.authFailure.HandleAuthFailure(req, resp); handled != nil {
				return nil, backoff.Permanent(handled)
			}
		}

		// 4xx errors are not retryable
		if httpResp.StatusCode >= 400 {
			c.logger.Error("Client error, not retryable",
				zap.Int("status_code", httpResp.StatusCode),
				zap.String("method", opts.Method),
				zap.String("url", opts.URL),
				zap.String("response", string(body)))
			return nil, backoff.Permanent(&StatusError{StatusCode: resp.StatusCode, Body: body})
		}

		c.logger.Debug("HTTP request successful",
			zap.Int("status_code", httpResp.StatusCode),
			zap.String("method", opts.Method),
			zap.String("url", opts.URL))

		return resp, nil
	}

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxElapsedTime(opts.MaxElapsed),
		backoff.WithMaxTries(opts.MaxTries),
	}

	resp, err := backoff.Retry(ctx, operation, retryOpts...)
	if err != nil {
		c.logger.Error("HTTP request failed",
			zap.Error(err),
			zap.String("method", opts.Method),
			zap.String("url", opts.URL),
			zap.Uint("max_tries", opts.MaxTries))
		return nil, err
	}

	c.logger.Info("HTTP request completed successfully",
		zap.Int("status_code", resp.StatusCode),
		zap.String("method", opts.Method),
		zap.String("url", opts.URL))

	return resp, nil
}

// prepare runs the interceptors and resolves a relative URL against the base URL.
func (c *Client) prepare(req *http.Request) (*http.Request, error) {
	for _, intercept := range c.interceptors {
		req = intercept(req)
		if req == nil {
			return nil, errors.New("request interceptor returned no request")
		}
	}

	if req.URL == nil {
		return nil, errors.New("request has no URL")
	}
	if !req.URL.IsAbs() {
		if c.baseURL == nil {
			return nil, fmt.Errorf("relative URL %q without a base URL", req.URL.String())
		}
		req.URL = c.baseURL.ResolveReference(req.URL)
		req.Host = req.URL.Host
	}

	return req, nil
}

func (c *Client) buildRequest(ctx context.Context, opts RequestOptions) (*http.Request, error) {
	var bodyReader io.Reader
	if opts.Body != nil {
		if bodyBytes, ok := opts.Body.([]byte); ok {
			bodyReader = bytes.NewReader(bodyBytes)
		} else {
			// If Content-Type explicitly requests form encoding, honor it.
			contentType := opts.Headers["Content-Type"]
			if contentType == "" {
				contentType = opts.Headers["content-type"]
			}

			if strings.HasPrefix(strings.ToLower(contentType), "application/x-www-form-urlencoded") {
				form := url.Values{}

				switch v := opts.Body.(type) {
				case url.Values:
					form = v
				case map[string]string:
					for k, val := range v {
						form.Set(k, val)
					}
				default:
					bodyJSON, err := json.Marshal(opts.Body)
					if err != nil {
						return nil, fmt.Errorf("failed to marshal request body: %w", err)
					}
					var m map[string]interface{}
					if err := json.Unmarshal(bodyJSON, &m); err != nil {
						return nil, fmt.Errorf("failed to unmarshal request body: %w", err)
					}
					for k, val := range m {
						if val == nil {
							continue
						}
						form.Set(k, fmt.Sprint(val))
					}
				}

				bodyReader = strings.NewReader(form.Encode())
			} else {
				bodyJSON, err := json.Marshal(opts.Body)
				if err != nil {
					return nil, fmt.Errorf("failed to marshal request body: %w", err)
				}
				bodyReader = bytes.NewReader(bodyJSON)
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set default headers
	if opts.Body != nil && opts.Headers["Content-Type"] == "" && opts.Headers["content-type"] == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.Do(RequestOptions{
		Method:  http.MethodGet,
		URL:     url,
		Headers: headers,
		Context: ctx,
	})
}

func (c *Client) Post(ctx context.Context, url string, headers map[string]string, body interface{}) (*Response, error) {
	return c.Do(RequestOptions{
		Method:  http.MethodPost,
		URL:     url,
		Headers: headers,
		Body:    body,
		Context: ctx,
	})
}

func (c *Client) Patch(ctx context.Context, url string, headers map[string]string, body interface{}) (*Response, error) {
	return c.Do(RequestOptions{
		Method:  http.MethodPatch,
		URL:     url,
		Headers: headers,
		Body:    body,
		Context: ctx,
	})
}

// DoRequest executes a fully-constructed net/http request without interceptors
// or retries. The caller owns the response body.
func (c *Client) DoRequest(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}
