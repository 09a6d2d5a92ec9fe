package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"LineRelay/models"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiService calls the Gemini generateContent REST endpoint.
type GeminiService struct {
	http        *resty.Client
	apiKey      string
	model       string
	temperature float32
	maxTokens   int
}

type GeminiConfig struct {
	APIKey      string
	Model       string
	BaseURL     string // tests only
	Temperature float32
	MaxTokens   int
}

func NewGeminiService(cfg GeminiConfig) *GeminiService {
	base := cfg.BaseURL
	if base == "" {
		base = geminiBaseURL
	}
	return &GeminiService{
		http: resty.New().
			SetBaseURL(base).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json").
			SetTimeout(120 * time.Second),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (s *GeminiService) Model() string { return s.model }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  map[string]any  `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GeminiError is a non-2xx answer from the Gemini API.
type GeminiError struct {
	StatusCode int
	Status     string // e.g. RESOURCE_EXHAUSTED
	Message    string
}

func (e *GeminiError) Error() string {
	return fmt.Sprintf("gemini: status %d %s: %s", e.StatusCode, e.Status, e.Message)
}

func (e *GeminiError) HTTPStatus() int { return e.StatusCode }

// geminiPayload maps chat roles onto Gemini's user/model roles; system
// entries become the system instruction.
func geminiPayload(msgs []ChatMessage, temperature float32, maxTokens int) geminiRequest {
	req := geminiRequest{Contents: make([]geminiContent, 0, len(msgs))}
	var system []string
	for _, m := range msgs {
		switch m.Role {
		case models.RoleSystem:
			system = append(system, m.Content)
		case models.RoleAssistant:
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: strings.Join(system, "\n\n")}}}
	}
	req.GenerationConfig = map[string]any{
		"temperature":     temperature,
		"maxOutputTokens": maxTokens,
	}
	return req
}

func (s *GeminiService) Complete(ctx context.Context, msgs []ChatMessage) (string, error) {
	var out geminiResponse
	var apiErr geminiErrorBody
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("key", s.apiKey).
		SetBody(geminiPayload(msgs, s.temperature, s.maxTokens)).
		SetResult(&out).
		SetError(&apiErr).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", s.model))
	if err != nil {
		return "", fmt.Errorf("gemini: http error: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return "", &GeminiError{StatusCode: resp.StatusCode(), Status: apiErr.Error.Status, Message: msg}
	}

	for _, c := range out.Candidates {
		var b strings.Builder
		for _, p := range c.Content.Parts {
			b.WriteString(p.Text)
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			return text, nil
		}
	}
	return "", ErrEmptyResponse
}
