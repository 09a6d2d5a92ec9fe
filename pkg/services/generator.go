package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"LineRelay/pkg/metrics"
)

// Kind classifies a generation failure for the user-facing fallback.
type Kind string

const (
	KindRateLimit          Kind = "RATE_LIMIT"
	KindQuotaExceeded      Kind = "QUOTA_EXCEEDED"
	KindServiceUnavailable Kind = "SERVICE_UNAVAILABLE"
	KindDefault            Kind = "DEFAULT"
)

var fallbackTexts = map[Kind]string{
	KindRateLimit:          "目前詢問的人有點多，請稍等一下再傳一次訊息 🙏",
	KindQuotaExceeded:      "抱歉，AI 服務的使用額度暫時用完了，請稍後再試，或聯絡管理員。",
	KindServiceUnavailable: "AI 服務暫時無法回應，請稍後再試一次。",
	KindDefault:            "抱歉，我現在沒辦法回答這個問題，請稍後再試。",
}

// FallbackText returns the fixed user-facing text for k.
func FallbackText(k Kind) string {
	if s, ok := fallbackTexts[k]; ok {
		return s
	}
	return fallbackTexts[KindDefault]
}

var ErrEmptyResponse = errors.New("model returned an empty response")

// GenerationError is returned by ResponseGenerator.Generate for every failure.
type GenerationError struct {
	Kind Kind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// FallbackText is the text shown to the user instead of the raw error.
func (e *GenerationError) FallbackText() string { return FallbackText(e.Kind) }

// ResponseGenerator issues one model call under a hard deadline.
type ResponseGenerator struct {
	backend Completer
	timeout time.Duration
	log     zerolog.Logger
}

func NewResponseGenerator(backend Completer, timeout time.Duration, log zerolog.Logger) *ResponseGenerator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ResponseGenerator{
		backend: backend,
		timeout: timeout,
		log:     log.With().Str("component", "generator").Str("model", backend.Model()).Logger(),
	}
}

func (g *ResponseGenerator) Model() string { return g.backend.Model() }

// Generate returns the trimmed model reply or a *GenerationError. The backend
// call is cancelled when the deadline passes; a backend that ignores
// cancellation is abandoned and its result discarded.
func (g *ResponseGenerator) Generate(ctx context.Context, msgs []ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("backend panic: %v", r)}
			}
		}()
		text, err := g.backend.Complete(ctx, msgs)
		done <- result{text: text, err: err}
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		r.err = ctx.Err()
	}
	elapsed := time.Since(start)

	if r.err == nil && strings.TrimSpace(r.text) == "" {
		r.err = ErrEmptyResponse
	}
	if r.err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(r.err, context.DeadlineExceeded) {
			r.err = fmt.Errorf("%w: %v", context.DeadlineExceeded, r.err)
		}
		kind := Classify(r.err)
		metrics.GenerationDuration.WithLabelValues("error").Observe(elapsed.Seconds())
		metrics.GenerationFailuresTotal.WithLabelValues(string(kind)).Inc()
		g.log.Warn().Err(r.err).Str("kind", string(kind)).Dur("elapsed", elapsed).Msg("generation failed")
		return "", &GenerationError{Kind: kind, Err: r.err}
	}

	metrics.GenerationDuration.WithLabelValues("ok").Observe(elapsed.Seconds())
	g.log.Debug().Dur("elapsed", elapsed).Int("messages", len(msgs)).Msg("generation done")
	return strings.TrimSpace(r.text), nil
}

// statusError is implemented by backend errors that carry an HTTP status.
type statusError interface {
	HTTPStatus() int
}

// Classify maps a backend error to a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindDefault
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindServiceUnavailable
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		switch {
		case code == "insufficient_quota" || apiErr.Type == "insufficient_quota":
			return KindQuotaExceeded
		case code == "rate_limit_exceeded" || apiErr.HTTPStatusCode == 429:
			return KindRateLimit
		case apiErr.HTTPStatusCode >= 500:
			return KindServiceUnavailable
		}
		return classifyMessage(apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.HTTPStatusCode == 429:
			return classify429(reqErr.Error())
		case reqErr.HTTPStatusCode >= 500:
			return KindServiceUnavailable
		}
	}

	var se statusError
	if errors.As(err, &se) {
		switch s := se.HTTPStatus(); {
		case s == 429:
			return classify429(err.Error())
		case s >= 500:
			return KindServiceUnavailable
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindServiceUnavailable
	}

	return classifyMessage(err.Error())
}

func classify429(msg string) Kind {
	if isQuotaMessage(strings.ToLower(msg)) {
		return KindQuotaExceeded
	}
	return KindRateLimit
}

func isQuotaMessage(e string) bool {
	return strings.Contains(e, "insufficient_quota") ||
		strings.Contains(e, "exceeded your current quota") ||
		strings.Contains(e, "billing")
}

// classifyMessage is the last resort for errors without structure.
func classifyMessage(msg string) Kind {
	e := strings.ToLower(msg)
	switch {
	case isQuotaMessage(e):
		return KindQuotaExceeded
	case strings.Contains(e, "status 429") || strings.Contains(e, "rate limit") ||
		strings.Contains(e, "too many requests") || strings.Contains(e, "resource_exhausted"):
		return KindRateLimit
	case strings.Contains(e, "status 503") || strings.Contains(e, "status 502") ||
		strings.Contains(e, "unavailable") || strings.Contains(e, "overloaded") ||
		strings.Contains(e, "connection refused"):
		return KindServiceUnavailable
	}
	return KindDefault
}
