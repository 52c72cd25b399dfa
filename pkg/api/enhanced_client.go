package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httputil "github.com/lepinkainen/subwatch/pkg/http"
)

// DefaultUserAgent mimics a desktop browser; reddit throttles generic
// library agents on its public JSON endpoints.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; rv:128.0) Gecko/20100101 Firefox/128.0"

// EnhancedClientConfig configures the enhanced HTTP client
type EnhancedClientConfig struct {
	BaseClient     *http.Client
	RateLimiter    RateLimiter
	RetryPolicy    *RetryPolicy
	UserAgent      string
	DefaultHeaders map[string]string
}

// EnhancedClient wraps http.Client with rate limiting, retries and standard headers
type EnhancedClient struct {
	client         *http.Client
	rateLimiter    RateLimiter
	retryPolicy    *RetryPolicy
	userAgent      string
	defaultHeaders map[string]string
}

// NewEnhancedClient creates a new enhanced HTTP client with the provided configuration
func NewEnhancedClient(config *EnhancedClientConfig) *EnhancedClient {
	if config.BaseClient == nil {
		config.BaseClient = &http.Client{Timeout: 30 * time.Second}
	}
	if config.RateLimiter == nil {
		config.RateLimiter = NewNoOpRateLimiter()
	}
	if config.RetryPolicy == nil {
		config.RetryPolicy = DefaultRetryPolicy()
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.DefaultHeaders == nil {
		config.DefaultHeaders = make(map[string]string)
	}

	return &EnhancedClient{
		client:         config.BaseClient,
		rateLimiter:    config.RateLimiter,
		retryPolicy:    config.RetryPolicy,
		userAgent:      config.UserAgent,
		defaultHeaders: config.DefaultHeaders,
	}
}

// NewRedditClient creates a client for reddit's public JSON and RSS endpoints
func NewRedditClient(baseClient *http.Client, userAgent string, minDelay time.Duration) *EnhancedClient {
	var limiter RateLimiter = NewNoOpRateLimiter()
	if minDelay > 0 {
		limiter = NewSimpleRateLimiter(minDelay)
	}
	return NewEnhancedClient(&EnhancedClientConfig{
		BaseClient:  baseClient,
		RateLimiter: limiter,
		RetryPolicy: ConservativeRetryPolicy(),
		UserAgent:   userAgent,
	})
}

// GetAndDecode performs a GET request with rate limiting and retries and
// decodes the JSON body into target
func (ec *EnhancedClient) GetAndDecode(ctx context.Context, url string, target any, additionalHeaders map[string]string) error {
	operation := func() error {
		res, err := ec.do(ctx, url, additionalHeaders)
		if err != nil {
			return err
		}
		if err := httputil.DecodeJSONResponse(res, target); err != nil {
			slog.Warn("API response decode failed", "url", url, "error", err)
			return fmt.Errorf("failed to decode json response: %w", err)
		}
		return nil
	}

	return ExecuteWithRetry(ctx, operation, ec.retryPolicy, "GET "+url)
}

// Get performs a GET request with rate limiting and retries. The caller
// owns the returned response body.
func (ec *EnhancedClient) Get(ctx context.Context, url string, additionalHeaders map[string]string) (*http.Response, error) {
	var response *http.Response

	operation := func() error {
		res, err := ec.do(ctx, url, additionalHeaders)
		if err != nil {
			return err
		}
		response = res
		return nil
	}

	if err := ExecuteWithRetry(ctx, operation, ec.retryPolicy, "GET "+url); err != nil {
		return nil, err
	}
	return response, nil
}

// do runs a single attempt. Non-200 responses are closed and returned as *HTTPError.
func (ec *EnhancedClient) do(ctx context.Context, url string, additionalHeaders map[string]string) (*http.Response, error) {
	if err := ec.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", ec.userAgent)
	for key, value := range ec.defaultHeaders {
		req.Header.Set(key, value)
	}
	// additional headers override defaults
	for key, value := range additionalHeaders {
		req.Header.Set(key, value)
	}

	start := time.Now()
	res, err := ec.client.Do(req)
	duration := time.Since(start)

	if err != nil {
		ec.logAPICall(url, duration, 0, err)
		return nil, fmt.Errorf("failed to perform GET request: %w", err)
	}

	if err := httputil.EnsureStatusOK(res); err != nil {
		ec.logAPICall(url, duration, res.StatusCode, err)
		_ = res.Body.Close()
		return nil, &HTTPError{
			StatusCode: res.StatusCode,
			Message:    err.Error(),
		}
	}

	ec.logAPICall(url, duration, res.StatusCode, nil)
	return res, nil
}

func (ec *EnhancedClient) logAPICall(url string, duration time.Duration, statusCode int, err error) {
	fields := []any{
		"url", url,
		"duration", duration,
		"status", statusCode,
	}

	if err != nil {
		slog.Warn("API call failed", append(fields, "error", err)...)
		return
	}
	slog.Debug("API call completed", fields...)
}
