// Package graphql implements the authenticated transport against the remote
// graph API: GraphQL POSTs plus plain GET/POST helpers, with retry/backoff,
// client-side rate limiting and bearer auth injection.
package graphql

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/opslens-cli/api/schemas"
	"github.com/xkilldash9x/opslens-cli/internal/network"
	"github.com/xkilldash9x/opslens-cli/internal/observability"
)

// Config holds the settings for the transport.
type Config struct {
	// Endpoint is the GraphQL endpoint URL. Required.
	Endpoint string
	// Token is the bearer token injected into every request. Optional; some
	// deployments sit behind network-level auth.
	Token string
	// MaxRetries is the number of additional attempts after the first
	// failed one. Retries apply to network errors, HTTP 429 and 5xx.
	MaxRetries int
	// RetryBackoff is the base backoff, doubled per attempt.
	RetryBackoff time.Duration
	// RateLimit / RateBurst bound the request rate across all callers.
	RateLimit float64
	RateBurst int
	// RequestTimeout bounds a single attempt.
	RequestTimeout time.Duration
	// IgnoreTLSErrors disables certificate verification.
	IgnoreTLSErrors bool
}

// Client implements schemas.Transport over the tuned HTTP client.
type Client struct {
	cfg     Config
	httpc   *network.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// Compile-time interface check.
var _ schemas.Transport = (*Client)(nil)

// graphQLRequest is the wire form of a GraphQL POST body.
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// New creates a transport. A missing endpoint is the one structural
// misconfiguration surfaced as an error before any request is attempted.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("graphql: endpoint is required")
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}

	httpCfg := network.NewDefaultClientConfig()
	httpCfg.IgnoreTLSErrors = cfg.IgnoreTLSErrors
	if cfg.RequestTimeout > 0 {
		httpCfg.RequestTimeout = cfg.RequestTimeout
	}

	c := &Client{
		cfg:     cfg,
		httpc:   network.NewClient(httpCfg),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		log:     observability.GetLogger().Named("graphql"),
	}
	c.warnIfTokenExpired()
	return c, nil
}

// warnIfTokenExpired inspects a JWT-shaped bearer token without verifying
// it, purely for diagnosability: an expired token otherwise surfaces as an
// opaque stream of 401s.
func (c *Client) warnIfTokenExpired() {
	if c.cfg.Token == "" {
		return
	}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(c.cfg.Token, jwt.MapClaims{})
	if err != nil {
		// Not a JWT. Opaque API keys are fine.
		return
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}
	switch {
	case exp.Before(time.Now()):
		c.log.Warn("API token is expired", zap.Time("expired_at", exp.Time))
	case time.Until(exp.Time) < 24*time.Hour:
		c.log.Warn("API token expires soon", zap.Time("expires_at", exp.Time))
	}
}

// Query executes a GraphQL query. GraphQL-level errors are returned inside
// the response envelope, not as a Go error; the resolver decides how to
// degrade.
func (c *Client) Query(ctx context.Context, query string, variables map[string]any) (*schemas.GraphQLResponse, error) {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("graphql: encoding request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.cfg.Endpoint, body, "application/json")
	if err != nil {
		return nil, err
	}

	var envelope schemas.GraphQLResponse
	if err := json.Unmarshal(resp.Data, &envelope); err != nil {
		return nil, fmt.Errorf("graphql: malformed response: %w", err)
	}
	return &envelope, nil
}

// Get issues a GET against an absolute URL.
func (c *Client) Get(ctx context.Context, url string) (*schemas.RESTResponse, error) {
	return c.do(ctx, http.MethodGet, url, nil, "")
}

// Post issues a POST with a JSON body against an absolute URL.
func (c *Client) Post(ctx context.Context, url string, body any) (*schemas.RESTResponse, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("graphql: encoding request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, url, encoded, "application/json")
}

// do runs one request through the limiter and retry loop.
func (c *Client) do(ctx context.Context, method, url string, body []byte, contentType string) (*schemas.RESTResponse, error) {
	requestID := uuid.NewString()
	log := c.log.With(zap.String("request_id", requestID), zap.String("method", method))

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.RetryBackoff << (attempt - 1)
			log.Debug("Retrying request", zap.Int("attempt", attempt), zap.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, retryable, err := c.attempt(ctx, method, url, body, contentType, requestID)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, lastErr
}

// attempt performs a single HTTP round trip. The second return value
// reports whether the failure is worth retrying.
func (c *Client) attempt(ctx context.Context, method, url string, body []byte, contentType, requestID string) (*schemas.RESTResponse, bool, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, false, fmt.Errorf("graphql: building request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("graphql: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("graphql: reading response: %w", err)
	}

	c.log.Debug("Request completed",
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("graphql: unexpected status %d", resp.StatusCode)
	}

	return &schemas.RESTResponse{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Data:    data,
	}, false, nil
}
