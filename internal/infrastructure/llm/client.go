// Package llm verifies low-confidence recognitions against an
// OpenAI-compatible chat-completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyQTO/internal/intelligence/recognizer"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// Config is the verification section of the service configuration.
type Config struct {
	Enabled           bool          `mapstructure:"enabled"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	RetryMax          int           `mapstructure:"retry_max"`
	RetryWaitMin      time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax      time.Duration `mapstructure:"retry_wait_max"`
	Temperature       float64       `mapstructure:"temperature"`
	CacheVerdicts     bool          `mapstructure:"cache_verdicts"`
}

// ApplyDefaults fills zero-valued settings.
func ApplyDefaults(cfg *Config) {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst == 0 {
		cfg.Burst = 4
	}
	if cfg.RetryMax == 0 {
		cfg.RetryMax = 2
	}
	if cfg.RetryWaitMin == 0 {
		cfg.RetryWaitMin = 500 * time.Millisecond
	}
	if cfg.RetryWaitMax == 0 {
		cfg.RetryWaitMax = 5 * time.Second
	}
}

// Client is a recognizer.Verifier backed by a chat-completions API.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	temp       float64
	httpClient *http.Client
	limiter    *rate.Limiter
	retryMax   int
	waitMin    time.Duration
	waitMax    time.Duration
	logger     logging.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLimiter replaces the request rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// NewClient validates cfg and returns a client.
func NewClient(cfg Config, logger logging.Logger, opts ...Option) (*Client, error) {
	ApplyDefaults(&cfg)
	if cfg.BaseURL == "" {
		return nil, errors.InvalidParam("verification base_url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.InvalidParam("verification base_url must be an http or https URL").WithDetail(cfg.BaseURL)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	c := &Client{
		endpoint:   strings.TrimSuffix(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		temp:       cfg.Temperature,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		retryMax:   cfg.RetryMax,
		waitMin:    cfg.RetryWaitMin,
		waitMax:    cfg.RetryWaitMax,
		logger:     logger.Named("verifier"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Verify asks the model to judge req and returns its verdict.
func (c *Client) Verify(ctx context.Context, req recognizer.VerificationRequest) (*recognizer.Verdict, error) {
	user, err := userPrompt(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode verification request")
	}
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
		Temperature:    c.temp,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode chat request")
	}

	var resp chatResponse
	if err := c.do(ctx, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New(errors.ErrCodeVerifierBadResponse, "verifier returned no choices")
	}
	return ParseVerdict(resp.Choices[0].Message.Content)
}

func (c *Client) do(ctx context.Context, body []byte, out *chatResponse) error {
	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			backoff := c.backoff(attempt)
			c.logger.Debug("retrying verification", logging.Int("attempt", attempt), logging.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), errors.CodeCancelled, "verification cancelled")
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, errors.ErrCodeVerifierRateLimited, "verification rate limit wait aborted")
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to build verification request")
		}
		requestID := uuid.NewString()
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")
		httpReq.Header.Set("X-Request-ID", requestID)
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return errors.Wrap(ctx.Err(), errors.CodeCancelled, "verification cancelled")
			}
			lastErr = errors.Wrap(err, errors.ErrCodeVerifierUnavailable, "verifier request failed")
			continue
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if err != nil {
			lastErr = errors.Wrap(err, errors.ErrCodeVerifierUnavailable, "failed to read verifier response")
			continue
		}
		c.logger.Debug("verifier responded",
			logging.Int("status", resp.StatusCode),
			logging.String("request_id", requestID),
			logging.Duration("elapsed", time.Since(start)))

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = errors.New(errors.ErrCodeVerifierRateLimited, "verifier rate limited").WithDetail(requestID)
			if wait := retryAfter(resp.Header.Get("Retry-After")); wait > 0 && attempt < c.retryMax {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return errors.Wrap(ctx.Err(), errors.CodeCancelled, "verification cancelled")
				}
			}
			continue
		case resp.StatusCode >= 500:
			lastErr = errors.Newf(errors.ErrCodeVerifierUnavailable, "verifier returned HTTP %d", resp.StatusCode).WithDetail(requestID)
			continue
		case resp.StatusCode >= 400:
			return errors.Newf(errors.ErrCodeVerifierBadResponse, "verifier rejected request with HTTP %d", resp.StatusCode).
				WithDetail(apiMessage(data))
		}

		if err := json.Unmarshal(data, out); err != nil {
			return errors.Wrap(err, errors.ErrCodeVerifierBadResponse, "failed to decode verifier response")
		}
		return nil
	}
	return lastErr
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.waitMin * time.Duration(1<<uint(attempt-1))
	if d > c.waitMax {
		d = c.waitMax
	}
	if q := int64(d / 4); q > 0 {
		d += time.Duration(rand.Int63n(q))
	}
	return d
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func apiMessage(data []byte) string {
	var r chatResponse
	if json.Unmarshal(data, &r) == nil && r.Error != nil {
		return r.Error.Message
	}
	if len(data) > 200 {
		data = data[:200]
	}
	return string(data)
}

//Personal.AI order the ending
