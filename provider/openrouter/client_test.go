package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatBody struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type recorder struct {
	mu      sync.Mutex
	models  []string
	headers []http.Header
	bodies  []chatBody
}

func (r *recorder) add(h http.Header, b chatBody) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = append(r.models, b.Model)
	r.headers = append(r.headers, h.Clone())
	r.bodies = append(r.bodies, b)
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, content)
}

func writeError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"message":"status %d","code":%d}}`, status, status)
}

// scripted answers each request with the next status; 200 returns "ok".
func scripted(t *testing.T, rec *recorder, statuses ...int) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	i := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body chatBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		rec.add(r.Header, body)
		mu.Lock()
		status := http.StatusOK
		if i < len(statuses) {
			status = statuses[i]
		}
		i++
		mu.Unlock()
		if status == http.StatusOK {
			writeCompletion(w, "ok from "+body.Model)
			return
		}
		writeError(w, status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type sleepLog struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepLog) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func TestRateLimitRetriesWithGrowingDelay(t *testing.T) {
	rec := &recorder{}
	srv := scripted(t, rec, 429, 429, 200)
	sl := &sleepLog{}
	c := New(Options{BaseURL: srv.URL, Sleep: sl.sleep, Referer: "https://mindloop.local", Title: "Mindloop"})

	resp, err := c.Complete(context.Background(), "sk-test", Request{
		Model:      "openai/gpt-4o",
		UserPrompt: "hello",
		MaxTokens:  1200,
		Policy:     AgentPolicy,
	})
	require.NoError(t, err)
	assert.Equal(t, "ok from openai/gpt-4o", resp.Content)
	assert.Equal(t, 3, resp.Attempts)

	require.Len(t, sl.delays, 2)
	assert.Equal(t, 2*time.Second, sl.delays[0])
	assert.Equal(t, 4*time.Second, sl.delays[1])
	assert.Greater(t, sl.delays[1], sl.delays[0])

	require.Len(t, rec.headers, 3)
	assert.Equal(t, "Bearer sk-test", rec.headers[0].Get("Authorization"))
	assert.Equal(t, "https://mindloop.local", rec.headers[0].Get("HTTP-Referer"))
	assert.Equal(t, "Mindloop", rec.headers[0].Get("X-Title"))
	assert.Equal(t, 1200, rec.bodies[0].MaxTokens)
}

func TestRateLimitExhausted(t *testing.T) {
	rec := &recorder{}
	srv := scripted(t, rec, 429, 429, 429)
	sl := &sleepLog{}
	c := New(Options{BaseURL: srv.URL, Sleep: sl.sleep})

	_, err := c.Complete(context.Background(), "k", Request{Model: "m", UserPrompt: "p", Policy: AgentPolicy})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimitExhausted), "got %v", err)

	var cerr *CompletionError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 3, cerr.Attempts)
	assert.Equal(t, http.StatusTooManyRequests, cerr.StatusCode)
	assert.Len(t, sl.delays, 2)
	assert.Len(t, rec.models, 3)
}

func TestNotFoundOnFreeModelTriesEachFallback(t *testing.T) {
	rec := &recorder{}
	srv := scripted(t, rec, 404, 404, 404, 404)
	sl := &sleepLog{}
	c := New(Options{BaseURL: srv.URL, Sleep: sl.sleep, Fallbacks: []string{"a:free", "b:free", "a:free", "vendor/x:free"}})

	_, err := c.Complete(context.Background(), "k", Request{Model: "vendor/x:free", UserPrompt: "p", Policy: CoordinatorPolicy})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelUnavailable), "got %v", err)
	assert.Equal(t, []string{"vendor/x:free", "a:free", "b:free"}, rec.models)
	assert.Empty(t, sl.delays)
}

func TestNotFoundFallbackSucceeds(t *testing.T) {
	rec := &recorder{}
	srv := scripted(t, rec, 404, 404, 200)
	c := New(Options{BaseURL: srv.URL, Fallbacks: []string{"a:free", "b:free", "c:free"}})

	resp, err := c.Complete(context.Background(), "k", Request{Model: "vendor/x:free", UserPrompt: "p", Policy: AgentPolicy})
	require.NoError(t, err)
	assert.Equal(t, "b:free", resp.Model)
	assert.Equal(t, 3, resp.Attempts)
}

func TestNotFoundOnPaidModelFailsImmediately(t *testing.T) {
	rec := &recorder{}
	srv := scripted(t, rec, 404)
	c := New(Options{BaseURL: srv.URL})

	_, err := c.Complete(context.Background(), "k", Request{Model: "openai/gpt-4o", UserPrompt: "p", Policy: AgentPolicy})
	assert.True(t, errors.Is(err, ErrModelUnavailable), "got %v", err)
	assert.Len(t, rec.models, 1)
}

func TestServerErrorsBecomeTransportError(t *testing.T) {
	rec := &recorder{}
	srv := scripted(t, rec, 500, 502)
	sl := &sleepLog{}
	c := New(Options{BaseURL: srv.URL, Sleep: sl.sleep})

	_, err := c.Complete(context.Background(), "k", Request{Model: "m", UserPrompt: "p", Policy: Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}})
	assert.True(t, errors.Is(err, ErrTransport), "got %v", err)
	assert.Equal(t, []time.Duration{time.Millisecond}, sl.delays)
}

func TestAttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	sl := &sleepLog{}
	c := New(Options{BaseURL: srv.URL, Timeout: 20 * time.Millisecond, Sleep: sl.sleep})

	_, err := c.Complete(context.Background(), "k", Request{Model: "m", UserPrompt: "p", Policy: Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}})
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	assert.Len(t, sl.delays, 1)
}

func TestMissingAPIKey(t *testing.T) {
	c := New(Options{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Complete(context.Background(), " ", Request{Model: "m", UserPrompt: "p"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestSystemPromptIsSentFirst(t *testing.T) {
	rec := &recorder{}
	srv := scripted(t, rec)
	c := New(Options{BaseURL: srv.URL})

	_, err := c.Complete(context.Background(), "k", Request{Model: "m", SystemPrompt: "persona", UserPrompt: "task"})
	require.NoError(t, err)
	require.Len(t, rec.bodies, 1)
	msgs := rec.bodies[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "persona", msgs[0].Content)
	assert.Equal(t, "user", msgs[1].Role)
}
