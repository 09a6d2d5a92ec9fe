package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	complete func(ctx context.Context, msgs []ChatMessage) (string, error)
}

func (f fakeCompleter) Model() string { return "fake" }

func (f fakeCompleter) Complete(ctx context.Context, msgs []ChatMessage) (string, error) {
	return f.complete(ctx, msgs)
}

func TestGenerateSuccess(t *testing.T) {
	var got []ChatMessage
	g := NewResponseGenerator(fakeCompleter{complete: func(ctx context.Context, msgs []ChatMessage) (string, error) {
		got = msgs
		return "  hi there \n", nil
	}}, time.Second, zerolog.Nop())

	in := []ChatMessage{{Role: "system", Content: "s"}, {Role: "user", Content: "Hello"}}
	text, err := g.Generate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)
	assert.Equal(t, in, got)
}

func TestGenerateTimeoutCancelsBackend(t *testing.T) {
	var cancelled atomic.Bool
	g := NewResponseGenerator(fakeCompleter{complete: func(ctx context.Context, _ []ChatMessage) (string, error) {
		<-ctx.Done()
		cancelled.Store(true)
		return "", ctx.Err()
	}}, 30*time.Millisecond, zerolog.Nop())

	_, err := g.Generate(context.Background(), nil)
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, KindServiceUnavailable, ge.Kind)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.Eventually(t, cancelled.Load, time.Second, 5*time.Millisecond)
}

func TestGenerateAbandonsBackendIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	g := NewResponseGenerator(fakeCompleter{complete: func(ctx context.Context, _ []ChatMessage) (string, error) {
		<-release
		return "too late", nil
	}}, 20*time.Millisecond, zerolog.Nop())

	start := time.Now()
	_, err := g.Generate(context.Background(), nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, KindServiceUnavailable, Classify(err))
}

func TestGenerateEmptyResponse(t *testing.T) {
	g := NewResponseGenerator(fakeCompleter{complete: func(context.Context, []ChatMessage) (string, error) {
		return "   ", nil
	}}, time.Second, zerolog.Nop())

	_, err := g.Generate(context.Background(), nil)
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, KindDefault, ge.Kind)
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, FallbackText(KindDefault), ge.FallbackText())
}

func TestGenerateRecoversBackendPanic(t *testing.T) {
	g := NewResponseGenerator(fakeCompleter{complete: func(context.Context, []ChatMessage) (string, error) {
		panic("boom")
	}}, time.Second, zerolog.Nop())

	_, err := g.Generate(context.Background(), nil)
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, KindDefault, ge.Kind)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindServiceUnavailable},
		{"openai quota", &openai.APIError{Code: "insufficient_quota", HTTPStatusCode: 429, Message: "You exceeded your current quota"}, KindQuotaExceeded},
		{"openai rate limit", &openai.APIError{Code: "rate_limit_exceeded", HTTPStatusCode: 429}, KindRateLimit},
		{"openai bare 429", &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}, KindRateLimit},
		{"openai 503", &openai.APIError{HTTPStatusCode: 503, Message: "overloaded"}, KindServiceUnavailable},
		{"openai 400", &openai.APIError{HTTPStatusCode: 400, Message: "bad request"}, KindDefault},
		{"request error 502", &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}, KindServiceUnavailable},
		{"gemini exhausted", &GeminiError{StatusCode: 429, Status: "RESOURCE_EXHAUSTED", Message: "Resource has been exhausted"}, KindRateLimit},
		{"gemini billing", &GeminiError{StatusCode: 429, Status: "RESOURCE_EXHAUSTED", Message: "check your plan and billing details"}, KindQuotaExceeded},
		{"gemini 500", &GeminiError{StatusCode: 500, Status: "INTERNAL"}, KindServiceUnavailable},
		{"string unavailable", errors.New("dial tcp: connection refused"), KindServiceUnavailable},
		{"string rate", errors.New("Too Many Requests"), KindRateLimit},
		{"unknown", errors.New("weird"), KindDefault},
		{"nil", nil, KindDefault},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestFallbackTextNeverLeaksError(t *testing.T) {
	ge := &GenerationError{Kind: KindRateLimit, Err: errors.New("secret upstream detail")}
	assert.NotContains(t, ge.FallbackText(), "secret upstream detail")
	for _, k := range []Kind{KindRateLimit, KindQuotaExceeded, KindServiceUnavailable, KindDefault} {
		assert.NotEmpty(t, FallbackText(k))
	}
	assert.Equal(t, FallbackText(KindDefault), FallbackText(Kind("nope")))
}

func TestOpenAIServiceComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"你好"}}]}`))
	}))
	defer srv.Close()

	s := NewOpenAIService(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-test"})
	text, err := s.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "你好", text)
}

func TestOpenAIServiceQuotaError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	s := NewOpenAIService(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	_, err := s.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Equal(t, KindQuotaExceeded, Classify(err))
}

func TestGeminiServiceComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"哈囉"},{"text":"！"}]}}]}`))
	}))
	defer srv.Close()

	s := NewGeminiService(GeminiConfig{APIKey: "g-key", Model: "gemini-test", BaseURL: srv.URL})
	text, err := s.Complete(context.Background(), []ChatMessage{{Role: "system", Content: "s"}, {Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "哈囉！", text)
}

func TestGeminiServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"The model is overloaded.","status":"UNAVAILABLE"}}`))
	}))
	defer srv.Close()

	s := NewGeminiService(GeminiConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})
	_, err := s.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
	var ge *GeminiError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "UNAVAILABLE", ge.Status)
	assert.Equal(t, KindServiceUnavailable, Classify(err))
}

func TestGeminiPayloadRoles(t *testing.T) {
	p := geminiPayload([]ChatMessage{
		{Role: "system", Content: "rules"},
		{Role: "user", Content: "q1"},
		{Role: "assistant", Content: "a1"},
		{Role: "user", Content: "q2"},
	}, 0.5, 100)

	require.NotNil(t, p.SystemInstruction)
	assert.Equal(t, "rules", p.SystemInstruction.Parts[0].Text)
	require.Len(t, p.Contents, 3)
	assert.Equal(t, []string{"user", "model", "user"}, []string{p.Contents[0].Role, p.Contents[1].Role, p.Contents[2].Role})
}

func TestLocalService(t *testing.T) {
	text, err := LocalService{}.Complete(context.Background(), []ChatMessage{{Role: "system", Content: "s"}, {Role: "user", Content: "Hello"}})
	require.NoError(t, err)
	assert.Contains(t, text, "Hello")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = LocalService{}.Complete(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
