// Package openrouter talks to an OpenAI-compatible chat completions endpoint
// (OpenRouter by default) with per-call retry ladders and free-tier model
// fallback.
package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/mindloop/internal/catalog"
)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Policy is a retry ladder: the number of attempts and the first backoff
// delay. Later delays double.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

var (
	AgentPolicy       = Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second}
	CoordinatorPolicy = Policy{MaxAttempts: 5, BaseDelay: 3 * time.Second}
)

func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	return p
}

func (p Policy) backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Request is one chat completion.
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float32
	Policy       Policy
}

// Response carries the completion text and the model that produced it, which
// differs from the requested model when a fallback answered.
type Response struct {
	Content  string
	Model    string
	Attempts int
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Metrics receives completion outcomes. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ObserveAttempt(model, outcome string, d time.Duration)
	ObserveRetry(reason string)
	ObserveFallback(model string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveAttempt(string, string, time.Duration) {}
func (nopMetrics) ObserveRetry(string)                          {}
func (nopMetrics) ObserveFallback(string)                       {}

// Options configure a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL   string
	Referer   string
	Title     string
	Timeout   time.Duration
	Transport http.RoundTripper
	Fallbacks []string
	Logger    *zap.Logger
	Metrics   Metrics
	Sleep     Sleeper
}

// Client performs completions. It is safe for concurrent use.
type Client struct {
	baseURL   string
	timeout   time.Duration
	http      *http.Client
	fallbacks []string
	logger    *zap.Logger
	metrics   Metrics
	sleep     Sleeper
}

func New(opts Options) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		timeout:   opts.Timeout,
		fallbacks: opts.Fallbacks,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		sleep:     opts.Sleep,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = 60 * time.Second
	}
	if c.fallbacks == nil {
		c.fallbacks = catalog.FallbackModels
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.metrics == nil {
		c.metrics = nopMetrics{}
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.http = &http.Client{Transport: headerTransport{base: base, referer: opts.Referer, title: opts.Title}}
	return c
}

// Complete runs req against the endpoint with the request's retry policy.
func (c *Client) Complete(ctx context.Context, apiKey string, req Request) (Response, error) {
	if strings.TrimSpace(apiKey) == "" {
		return Response{}, ErrMissingAPIKey
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = c.http
	api := openai.NewClientWithConfig(cfg)

	policy := req.Policy.normalize()
	bo := policy.backoff()
	log := c.logger.With(zap.String("model", req.Model))

	var (
		lastErr    error
		lastStatus int
		lastKind   Kind
	)
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		content, status, err := c.attempt(ctx, api, req, req.Model)
		if err == nil {
			return Response{Content: content, Model: req.Model, Attempts: attempt}, nil
		}
		if ctx.Err() != nil {
			return Response{}, fmt.Errorf("completion canceled: %w", ctx.Err())
		}
		if status == http.StatusNotFound {
			return c.fallback(ctx, api, req, attempt, err)
		}
		if errors.Is(err, errEmptyChoices) {
			return Response{}, &CompletionError{Kind: KindTransport, Model: req.Model, Attempts: attempt, StatusCode: status, Err: err}
		}

		lastErr, lastStatus = err, status
		lastKind = classify(status, err)
		if attempt == policy.MaxAttempts {
			break
		}
		delay := bo.NextBackOff()
		c.metrics.ObserveRetry(string(lastKind))
		log.Warn("completion attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Int("status", status),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := c.sleep(ctx, delay); err != nil {
			return Response{}, fmt.Errorf("completion canceled: %w", err)
		}
	}
	return Response{}, &CompletionError{Kind: lastKind, Model: req.Model, Attempts: policy.MaxAttempts, StatusCode: lastStatus, Err: lastErr}
}

// fallback retries a free-tier request once on every distinct fallback model.
func (c *Client) fallback(ctx context.Context, api *openai.Client, req Request, attempts int, cause error) (Response, error) {
	unavailable := &CompletionError{Kind: KindModelUnavailable, Model: req.Model, StatusCode: http.StatusNotFound, Err: cause}
	if !catalog.IsFreeTier(req.Model) {
		unavailable.Attempts = attempts
		return Response{}, unavailable
	}
	tried := map[string]struct{}{req.Model: {}}
	for _, model := range c.fallbacks {
		if _, ok := tried[model]; ok {
			continue
		}
		tried[model] = struct{}{}
		attempts++
		c.logger.Info("model not found, trying fallback", zap.String("model", req.Model), zap.String("fallback", model))
		content, _, err := c.attempt(ctx, api, req, model)
		if err == nil {
			c.metrics.ObserveFallback(model)
			return Response{Content: content, Model: model, Attempts: attempts}, nil
		}
		if ctx.Err() != nil {
			return Response{}, fmt.Errorf("completion canceled: %w", ctx.Err())
		}
	}
	unavailable.Attempts = attempts
	return Response{}, unavailable
}

// attempt performs a single HTTP exchange bounded by the per-attempt timeout.
func (c *Client) attempt(ctx context.Context, api *openai.Client, req Request, model string) (string, int, error) {
	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt})

	start := time.Now()
	resp, err := api.CreateChatCompletion(actx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	elapsed := time.Since(start)
	if err != nil {
		status := statusOf(err)
		if status == 0 && errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: no response within %s", ErrTimeout, c.timeout)
		}
		c.metrics.ObserveAttempt(model, outcome(status, err), elapsed)
		return "", status, err
	}
	if len(resp.Choices) == 0 {
		c.metrics.ObserveAttempt(model, "empty", elapsed)
		return "", http.StatusOK, errEmptyChoices
	}
	c.metrics.ObserveAttempt(model, "ok", elapsed)
	return resp.Choices[0].Message.Content, http.StatusOK, nil
}

func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func classify(status int, err error) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	default:
		return KindTransport
	}
}

func outcome(status int, err error) string {
	switch classify(status, err) {
	case KindRateLimit:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	}
	if status == http.StatusNotFound {
		return "not_found"
	}
	return "error"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// headerTransport sets the OpenRouter attribution headers.
type headerTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		req.Header.Set("X-Title", t.title)
	}
	return t.base.RoundTrip(req)
}
